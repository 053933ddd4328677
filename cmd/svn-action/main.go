package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/rancher/svn-action/internal/app"
	"github.com/rancher/svn-action/internal/orchestrator"
)

var version = "dev"

// CLI flags override the matching INPUT_* variables.
type CLI struct {
	EnvFile    []string         `name:"env-file" help:"Load environment variables from dotenv files before reading inputs"`
	FieldsFile string           `name:"fields-file" type:"path" help:"YAML or JSON file with step fields"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Checkout CheckoutCmd `cmd:"" default:"1" help:"Check out or update a working copy and decide whether a build is needed"`
	Copy     CopyCmd     `cmd:"" help:"Create a branch or tag with svn copy"`
}

// AfterApply loads dotenv files. Variables already set in the environment win.
func (c *CLI) AfterApply() error {
	if len(c.EnvFile) == 0 {
		return nil
	}
	if err := godotenv.Load(c.EnvFile...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

type CheckoutCmd struct{}

func (CheckoutCmd) Run(ctx context.Context, cli *CLI) error {
	return execute(ctx, cli, orchestrator.OperationCheckout)
}

type CopyCmd struct{}

func (CopyCmd) Run(ctx context.Context, cli *CLI) error {
	return execute(ctx, cli, orchestrator.OperationCopy)
}

// skipExit ends the process with the configured skip status.
type skipExit int

func (s skipExit) Error() string {
	return fmt.Sprintf("build not needed (exit status %d)", int(s))
}

func execute(ctx context.Context, cli *CLI, op orchestrator.Operation) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cli.FieldsFile != "" {
		cfg.FieldsFile = cli.FieldsFile
	}
	if cli.Verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}

	runner, err := app.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	result, err := runner.Run(ctx, op)
	if err != nil {
		return err
	}
	if result.Skipped() && cfg.SkipExitCode != 0 {
		return skipExit(cfg.SkipExitCode)
	}
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("svn-action"),
		kong.Description("Subversion checkout and copy steps for CI pipelines."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(&cli)
	stop()
	if err == nil {
		return
	}

	var skip skipExit
	if errors.As(err, &skip) {
		os.Exit(int(skip))
	}
	log.Printf("svn %s failed: %v", kctx.Command(), err)
	os.Exit(1)
}
