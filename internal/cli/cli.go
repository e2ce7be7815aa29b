// Package cli implements citypulse-runner, the one-shot command line front end
// to the ingestion pipeline.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"github.com/STRATINT/citypulse/internal/app"
	"github.com/STRATINT/citypulse/internal/config"
	"github.com/STRATINT/citypulse/internal/logging"
	"github.com/STRATINT/citypulse/internal/models"
)

// Runner is the pipeline surface the commands drive.
type Runner interface {
	RunFullCycle(ctx context.Context) models.RunReport
	RunSingleSource(ctx context.Context, name string) models.ScrapeResult
	RunMaintenanceSweep(ctx context.Context) (models.MaintenanceResult, error)
	Status() models.PipelineStatus
}

// Opener builds a Runner. The returned closer releases its store.
type Opener func(ctx context.Context, logger *slog.Logger) (Runner, io.Closer, error)

// GlobalFlags apply to every command.
type GlobalFlags struct {
	Verbose bool `short:"v" long:"verbose" description:"Log pipeline progress to stderr"`
	Compact bool `long:"compact" description:"Print single-line JSON"`
}

type environment struct {
	globals *GlobalFlags
	out     io.Writer
	open    Opener
}

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Cycle  *CycleCommand
	Source *SourceCommand
	Sweep  *SweepCommand
	Status *StatusCommand
}

func buildParser(out io.Writer, open Opener) (*goflags.Parser, *commands) {
	var globals GlobalFlags
	env := &environment{globals: &globals, out: out, open: open}

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "citypulse-runner"
	parser.LongDescription = "Run the citypulse ingestion pipeline once and print the JSON report."

	cmds := &commands{
		Cycle:  &CycleCommand{env: env},
		Source: &SourceCommand{env: env},
		Sweep:  &SweepCommand{env: env},
		Status: &StatusCommand{env: env},
	}

	parser.AddCommand("cycle", "Run every configured source", "Run a full ingestion cycle over every configured source, in order.", cmds.Cycle)
	parser.AddCommand("source", "Run a single source", "Run one configured source by name (case-insensitive).", cmds.Source)
	parser.AddCommand("sweep", "Run the maintenance sweep", "Delete long-inactive entries, then mark past events inactive and age stale new entries.", cmds.Sweep)
	parser.AddCommand("status", "List configured sources", "Print the pipeline status and the configured sources.", cmds.Status)

	return parser, cmds
}

// Run parses os.Args and executes the matched command against the store
// selected by the environment configuration.
func Run() error {
	return RunWithArgs(os.Args[1:], os.Stdout, DefaultOpener)
}

// RunWithArgs parses args and executes the matched command.
func RunWithArgs(args []string, out io.Writer, open Opener) error {
	parser, _ := buildParser(out, open)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}
	return nil
}

// DefaultOpener wires the service from environment configuration.
func DefaultOpener(ctx context.Context, logger *slog.Logger) (Runner, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc.Pipeline, closerFunc(svc.Close), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// with opens a runner for the duration of fn.
func (e *environment) with(fn func(ctx context.Context, r Runner) error) error {
	ctx, stop := signalContext()
	defer stop()

	logger := logging.Discard()
	if e.globals.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	r, closer, err := e.open(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return fn(ctx, r)
}

func (e *environment) print(v any) error {
	enc := json.NewEncoder(e.out)
	if !e.globals.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
