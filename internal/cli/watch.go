package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mhoffs/skoda-watch/internal/model"
)

// Watcher is the coordinator surface the watch command needs.
type Watcher interface {
	Run(ctx context.Context) error
	Subscribe(fn func(model.State))
}

// WatchOptions configures the watch command
type WatchOptions struct {
	Format OutputFormat
	Pretty bool
}

// WatchCommand streams state updates until interrupted. Every published
// State produces one formatted output record.
type WatchCommand struct {
	coord  Watcher
	output io.Writer
}

// NewWatchCommand creates a new watch command
func NewWatchCommand(coord Watcher, output io.Writer) *WatchCommand {
	return &WatchCommand{
		coord:  coord,
		output: output,
	}
}

// Run executes the watch command
func (c *WatchCommand) Run(ctx context.Context, opts WatchOptions) error {
	formatter, err := NewFormatter(opts.Format, opts.Pretty)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			_, _ = fmt.Fprintln(os.Stderr, "\nShutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Observers run on the coordinator's publish path; the lock keeps
	// formatted records from interleaving.
	var mu sync.Mutex
	c.coord.Subscribe(func(state model.State) {
		mu.Lock()
		defer mu.Unlock()
		if err := formatter.FormatState(c.output, state); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error formatting state: %v\n", err)
		}
	})

	err = c.coord.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
