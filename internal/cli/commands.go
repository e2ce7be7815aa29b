package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// CycleCommand runs a full ingestion cycle.
type CycleCommand struct {
	env *environment
}

// Execute implements the go-flags Commander interface for CycleCommand.
func (c *CycleCommand) Execute(args []string) error {
	return c.env.with(func(ctx context.Context, r Runner) error {
		report := r.RunFullCycle(ctx)
		if err := c.env.print(report); err != nil {
			return err
		}
		if !report.Success {
			return errors.New(report.Message)
		}
		return nil
	})
}

// SourceCommand runs one configured source.
type SourceCommand struct {
	Name string `short:"n" long:"name" required:"true" description:"Source name as configured"`

	env *environment
}

// Execute implements the go-flags Commander interface for SourceCommand.
func (c *SourceCommand) Execute(args []string) error {
	return c.env.with(func(ctx context.Context, r Runner) error {
		res := r.RunSingleSource(ctx, c.Name)
		if err := c.env.print(res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("%s: %s", c.Name, res.Error)
		}
		return nil
	})
}

// SweepCommand runs cleanup and the status sweep.
type SweepCommand struct {
	env *environment
}

// Execute implements the go-flags Commander interface for SweepCommand.
func (c *SweepCommand) Execute(args []string) error {
	return c.env.with(func(ctx context.Context, r Runner) error {
		res, err := r.RunMaintenanceSweep(ctx)
		if err != nil {
			return fmt.Errorf("maintenance sweep: %w", err)
		}
		return c.env.print(res)
	})
}

// StatusCommand prints the pipeline status.
type StatusCommand struct {
	env *environment
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return c.env.with(func(ctx context.Context, r Runner) error {
		return c.env.print(r.Status())
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
