package gh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const (
	defaultUserAgent  = "rancher-svn-action"
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// NewRESTFactory returns a GitHub client factory backed by the go-github REST client. When
// base and upload URLs are provided, the factory targets a GitHub Enterprise instance.
func NewRESTFactory(baseURL, uploadURL string) Factory {
	return &restFactory{
		userAgent:  defaultUserAgent,
		baseURL:    strings.TrimSpace(baseURL),
		uploadURL:  strings.TrimSpace(uploadURL),
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
}

type restFactory struct {
	userAgent  string
	baseURL    string
	uploadURL  string
	attempts   int
	retryDelay time.Duration
}

type restClient struct {
	client     *github.Client
	attempts   int
	retryDelay time.Duration
}

func (f *restFactory) New(ctx context.Context, token string) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)

	if f.baseURL == "" && f.uploadURL != "" {
		return nil, fmt.Errorf("github upload url cannot be set without base url")
	}

	var ghClient *github.Client
	if f.baseURL != "" {
		baseURLNormalized, err := normalizeGitHubURL(f.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		uploadURL := f.uploadURL
		if uploadURL == "" {
			return nil, fmt.Errorf("github upload url must be provided when base url is set")
		}

		uploadURLNormalized, err := normalizeGitHubURL(uploadURL)
		if err != nil {
			return nil, fmt.Errorf("parse github upload url: %w", err)
		}

		ghClient, err = github.NewClient(tc).WithEnterpriseURLs(baseURLNormalized, uploadURLNormalized)
		if err != nil {
			return nil, fmt.Errorf("construct enterprise github client: %w", err)
		}
	} else {
		ghClient = github.NewClient(tc)
	}

	if f.userAgent != "" {
		ghClient.UserAgent = f.userAgent
	}

	attempts := f.attempts
	if attempts < 1 {
		attempts = 1
	}
	return &restClient{client: ghClient, attempts: attempts, retryDelay: f.retryDelay}, nil
}

func normalizeGitHubURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		return "", fmt.Errorf("url must include scheme (e.g. https://)")
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("url must include host")
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), nil
}

func (c *restClient) GetVariable(ctx context.Context, owner, repo, name string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := c.withRetry(ctx, func() error {
		variable, resp, err := c.client.Actions.GetRepoVariable(ctx, owner, repo, name)
		if err != nil {
			if isNotFound(resp, err) {
				found = false
				return nil
			}
			return classifyGitHubError(err)
		}
		value, found = variable.Value, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get variable %s: %w", name, err)
	}
	return value, found, nil
}

// PutVariable updates name, creating it when the repository does not have it
// yet.
func (c *restClient) PutVariable(ctx context.Context, owner, repo, name, value string) error {
	variable := &github.ActionsVariable{Name: name, Value: value}

	var missing bool
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.Actions.UpdateRepoVariable(ctx, owner, repo, variable)
		if err != nil {
			if isNotFound(resp, err) {
				missing = true
				return nil
			}
			return classifyGitHubError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update variable %s: %w", name, err)
	}
	if !missing {
		return nil
	}

	err = c.withRetry(ctx, func() error {
		if _, err := c.client.Actions.CreateRepoVariable(ctx, owner, repo, variable); err != nil {
			return classifyGitHubError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create variable %s: %w", name, err)
	}
	return nil
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or the
// attempts are exhausted. The delay doubles after each retryable failure.
func (c *restClient) withRetry(ctx context.Context, fn func() error) error {
	delay := c.retryDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) || attempt >= c.attempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var githubErr *github.ErrorResponse
	if errors.As(err, &githubErr) {
		if githubErr.Response != nil && githubErr.Response.StatusCode == http.StatusNotFound {
			return true
		}
	}
	return false
}

func classifyGitHubError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryableGitHubError(err) {
		return &retryableError{err: err}
	}
	return err
}

func isRetryableGitHubError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if respErr.Response != nil {
			code := respErr.Response.StatusCode
			if code == http.StatusTooManyRequests || (code >= 500 && code <= 599) {
				return true
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	return false
}
