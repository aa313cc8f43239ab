package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

// Commander is the coordinator surface for remote commands.
type Commander interface {
	StartCharging(ctx context.Context) error
	StopCharging(ctx context.Context) error
	SetChargeLimit(ctx context.Context, percent int) error
	StartAirConditioning(ctx context.Context, temperatureC float64) error
	StopAirConditioning(ctx context.Context) error
	StartWindowHeating(ctx context.Context) error
	StopWindowHeating(ctx context.Context) error
	StartAuxiliaryHeating(ctx context.Context, durationMinutes int) error
	StopAuxiliaryHeating(ctx context.Context) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// CommandDispatch maps a command verb and its arguments onto a coordinator
// call. Completion is asynchronous; the watch output shows the result.
type CommandDispatch struct {
	coord  Commander
	output io.Writer
}

// NewCommandDispatch creates a new command dispatcher
func NewCommandDispatch(coord Commander, output io.Writer) *CommandDispatch {
	return &CommandDispatch{
		coord:  coord,
		output: output,
	}
}

// Verbs lists the supported command verbs for usage output.
func (c *CommandDispatch) Verbs() []string {
	return []string{
		"lock", "unlock",
		"start-charging", "stop-charging", "charge-limit <percent>",
		"start-climate <temperature>", "stop-climate",
		"start-window-heating", "stop-window-heating",
		"start-aux-heating <minutes>", "stop-aux-heating",
	}
}

// Run executes one command verb
func (c *CommandDispatch) Run(ctx context.Context, verb string, args []string) error {
	var err error
	switch verb {
	case "lock":
		err = c.coord.Lock(ctx)
	case "unlock":
		err = c.coord.Unlock(ctx)
	case "start-charging":
		err = c.coord.StartCharging(ctx)
	case "stop-charging":
		err = c.coord.StopCharging(ctx)
	case "charge-limit":
		var percent int
		if percent, err = intArg(args, "percent"); err == nil {
			err = c.coord.SetChargeLimit(ctx, percent)
		}
	case "start-climate":
		var temperature float64
		if temperature, err = floatArg(args, "temperature"); err == nil {
			err = c.coord.StartAirConditioning(ctx, temperature)
		}
	case "stop-climate":
		err = c.coord.StopAirConditioning(ctx)
	case "start-window-heating":
		err = c.coord.StartWindowHeating(ctx)
	case "stop-window-heating":
		err = c.coord.StopWindowHeating(ctx)
	case "start-aux-heating":
		var minutes int
		if minutes, err = intArg(args, "minutes"); err == nil {
			err = c.coord.StartAuxiliaryHeating(ctx, minutes)
		}
	case "stop-aux-heating":
		err = c.coord.StopAuxiliaryHeating(ctx)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}

	_, _ = fmt.Fprintf(c.output, "%s requested; completion arrives via the event stream\n", verb)
	return nil
}

func intArg(args []string, name string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return n, nil
}

func floatArg(args []string, name string) (float64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing %s argument", name)
	}
	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return f, nil
}
