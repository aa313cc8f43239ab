package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/mhoffs/skoda-watch/internal/model"
)

// Refresher is the coordinator surface the status command needs.
type Refresher interface {
	FullRefresh(ctx context.Context) error
	Data() model.State
}

// StatusOptions configures the status command
type StatusOptions struct {
	Format OutputFormat
	Pretty bool
}

// StatusCommand fetches and displays the current vehicle state once.
type StatusCommand struct {
	coord  Refresher
	output io.Writer
}

// NewStatusCommand creates a new status command
func NewStatusCommand(coord Refresher, output io.Writer) *StatusCommand {
	return &StatusCommand{
		coord:  coord,
		output: output,
	}
}

// Run executes the status command.
func (c *StatusCommand) Run(ctx context.Context, opts StatusOptions) error {
	if err := c.coord.FullRefresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	formatter, err := NewFormatter(opts.Format, opts.Pretty)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}

	return formatter.FormatState(c.output, c.coord.Data())
}
