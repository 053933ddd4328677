package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultHistoryBackend = "file"
	defaultStateFile      = ".svn-action-state.json"
	defaultStateVariable  = "SVN_ACTION_STATE"
	defaultStateKey       = "svn-action"
	defaultShell          = "/bin/sh"

	// neutralExitCode is the CI convention for "stopped, nothing to do".
	neutralExitCode = 78
)

const (
	HistoryFile   = "file"
	HistoryGitHub = "github"
	HistoryNone   = "none"
)

var supportedHistoryBackends = map[string]struct{}{
	HistoryFile:   {},
	HistoryGitHub: {},
	HistoryNone:   {},
}

// Config captures runtime options sourced from GitHub Action inputs or environment variables.
type Config struct {
	LogLevel  string
	LogFormat string
	Verbose   bool

	FieldsFile string
	EventName  string
	EventPath  string

	HistoryBackend string
	StateFile      string
	StateVariable  string
	StateKey       string

	GitHubToken     string
	GitHubBaseURL   string
	GitHubUploadURL string
	Repository      string

	WorkspaceRoot   string
	MetricsTextfile string
	SkipExitCode    int
	Timeout         time.Duration
	Shell           string
}

// LoadConfig reads action inputs from the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		LogLevel:       strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_LEVEL", defaultLogLevel))),
		LogFormat:      strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_LOG_FORMAT", defaultLogFormat))),
		HistoryBackend: strings.ToLower(strings.TrimSpace(envOrDefault("INPUT_HISTORY_BACKEND", defaultHistoryBackend))),
		StateFile:      envOrDefault("INPUT_STATE_FILE", defaultStateFile),
		StateVariable:  envOrDefault("INPUT_STATE_VARIABLE", defaultStateVariable),
		Shell:          envOrDefault("INPUT_SHELL", defaultShell),
	}

	cfg.FieldsFile = strings.TrimSpace(os.Getenv("INPUT_FIELDS_FILE"))
	cfg.EventName = strings.TrimSpace(os.Getenv("GITHUB_EVENT_NAME"))
	cfg.EventPath = strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	cfg.WorkspaceRoot = strings.TrimSpace(os.Getenv("INPUT_WORKSPACE_ROOT"))
	cfg.MetricsTextfile = strings.TrimSpace(os.Getenv("INPUT_METRICS_TEXTFILE"))
	cfg.Repository = strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY"))

	cfg.StateKey = envOrDefault("INPUT_STATE_KEY", envOrDefault("GITHUB_ACTION", defaultStateKey))

	cfg.GitHubToken = strings.TrimSpace(os.Getenv("INPUT_GITHUB_TOKEN"))
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.GitHubBaseURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_BASE_URL"))
	cfg.GitHubUploadURL = strings.TrimSpace(os.Getenv("INPUT_GITHUB_UPLOAD_URL"))

	if rawVerbose := strings.TrimSpace(os.Getenv("INPUT_VERBOSE")); rawVerbose != "" {
		verbose, err := strconv.ParseBool(rawVerbose)
		if err != nil {
			return Config{}, fmt.Errorf("parse INPUT_VERBOSE: %w", err)
		}
		cfg.Verbose = verbose
	}

	cfg.SkipExitCode = neutralExitCode
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true") {
		cfg.SkipExitCode = 0
	}
	if rawSkip := strings.TrimSpace(os.Getenv("INPUT_SKIP_EXIT_CODE")); rawSkip != "" {
		code, err := strconv.Atoi(rawSkip)
		if err != nil {
			return Config{}, fmt.Errorf("parse INPUT_SKIP_EXIT_CODE: %w", err)
		}
		if code < 0 || code > 255 {
			return Config{}, fmt.Errorf("INPUT_SKIP_EXIT_CODE must be between 0 and 255, got %d", code)
		}
		cfg.SkipExitCode = code
	}

	if rawTimeout := strings.TrimSpace(os.Getenv("INPUT_TIMEOUT")); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse INPUT_TIMEOUT: %w", err)
		}
		if timeout < 0 {
			return Config{}, fmt.Errorf("INPUT_TIMEOUT must not be negative, got %s", timeout)
		}
		cfg.Timeout = timeout
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return Config{}, fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	if _, ok := supportedHistoryBackends[cfg.HistoryBackend]; !ok {
		return Config{}, fmt.Errorf("unsupported history backend %q", cfg.HistoryBackend)
	}

	if cfg.HistoryBackend == HistoryGitHub {
		if cfg.GitHubToken == "" {
			return Config{}, fmt.Errorf("github token is required for the github history backend (set INPUT_GITHUB_TOKEN or GITHUB_TOKEN)")
		}
		if cfg.Repository == "" {
			return Config{}, fmt.Errorf("GITHUB_REPOSITORY is required for the github history backend")
		}
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
