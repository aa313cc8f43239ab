package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhoffs/skoda-watch/internal/model"
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// ErrNoSPIN is returned when a security-sensitive command is issued without
// a configured S-PIN.
var ErrNoSPIN = errors.New("s-pin not configured")

// command wraps a remote command with the readonly check and S-PIN issue
// reporting. Completion (and the follow-up refresh) arrives asynchronously
// as an operation event on the push stream.
func (c *Coordinator) command(name string, fn func() error) error {
	if c.opts.ReadOnly {
		return ErrReadOnly
	}
	if err := fn(); err != nil {
		if myskoda.IsPreconditionFailed(err) && c.issues != nil {
			c.issues.SPINInvalid()
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Coordinator) spin() (string, error) {
	if c.opts.SPIN == "" {
		return "", ErrNoSPIN
	}
	return c.opts.SPIN, nil
}

// StartCharging requests the vehicle to start charging.
func (c *Coordinator) StartCharging(ctx context.Context) error {
	return c.command("start charging", func() error {
		return c.client.StartCharging(ctx, c.opts.VIN)
	})
}

// StopCharging requests the vehicle to stop charging.
func (c *Coordinator) StopCharging(ctx context.Context) error {
	return c.command("stop charging", func() error {
		return c.client.StopCharging(ctx, c.opts.VIN)
	})
}

// SetChargeLimit sets the target state of charge in percent.
func (c *Coordinator) SetChargeLimit(ctx context.Context, percent int) error {
	if percent < 50 || percent > 100 {
		return fmt.Errorf("charge limit %d out of range [50, 100]", percent)
	}
	return c.command("set charge limit", func() error {
		return c.client.SetChargeLimit(ctx, c.opts.VIN, percent)
	})
}

// SetReducedCurrentLimit toggles reduced AC charging current.
func (c *Coordinator) SetReducedCurrentLimit(ctx context.Context, reduced bool) error {
	return c.command("set charging current", func() error {
		return c.client.SetReducedCurrentLimit(ctx, c.opts.VIN, reduced)
	})
}

// StartAirConditioning starts climatisation at the given temperature.
func (c *Coordinator) StartAirConditioning(ctx context.Context, temperatureC float64) error {
	return c.command("start air conditioning", func() error {
		return c.client.StartAirConditioning(ctx, c.opts.VIN, temperatureC)
	})
}

// StopAirConditioning stops climatisation.
func (c *Coordinator) StopAirConditioning(ctx context.Context) error {
	return c.command("stop air conditioning", func() error {
		return c.client.StopAirConditioning(ctx, c.opts.VIN)
	})
}

// StartWindowHeating starts front and rear window heating.
func (c *Coordinator) StartWindowHeating(ctx context.Context) error {
	return c.command("start window heating", func() error {
		return c.client.StartWindowHeating(ctx, c.opts.VIN)
	})
}

// StopWindowHeating stops window heating.
func (c *Coordinator) StopWindowHeating(ctx context.Context) error {
	return c.command("stop window heating", func() error {
		return c.client.StopWindowHeating(ctx, c.opts.VIN)
	})
}

// StartAuxiliaryHeating starts the auxiliary heater, using the configured
// duration override when one is set.
func (c *Coordinator) StartAuxiliaryHeating(ctx context.Context, durationMinutes int) error {
	spin, err := c.spin()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if override := c.state.Config.AuxiliaryHeaterDurationMinutes; override != nil {
		durationMinutes = *override
	}
	c.mu.Unlock()

	return c.command("start auxiliary heating", func() error {
		return c.client.StartAuxiliaryHeating(ctx, c.opts.VIN, spin, durationMinutes)
	})
}

// StopAuxiliaryHeating stops the auxiliary heater.
func (c *Coordinator) StopAuxiliaryHeating(ctx context.Context) error {
	spin, err := c.spin()
	if err != nil {
		return err
	}
	return c.command("stop auxiliary heating", func() error {
		return c.client.StopAuxiliaryHeating(ctx, c.opts.VIN, spin)
	})
}

// Lock locks the vehicle.
func (c *Coordinator) Lock(ctx context.Context) error {
	spin, err := c.spin()
	if err != nil {
		return err
	}
	return c.command("lock", func() error {
		return c.client.Lock(ctx, c.opts.VIN, spin)
	})
}

// Unlock unlocks the vehicle.
func (c *Coordinator) Unlock(ctx context.Context) error {
	spin, err := c.spin()
	if err != nil {
		return err
	}
	return c.command("unlock", func() error {
		return c.client.Unlock(ctx, c.opts.VIN, spin)
	})
}

// SetAuxiliaryHeaterDuration updates the coordinator-owned duration override
// and publishes the new State. A nil duration restores the vehicle default.
func (c *Coordinator) SetAuxiliaryHeaterDuration(minutes *int) {
	c.set(func(s *model.State) {
		s.Config.AuxiliaryHeaterDurationMinutes = minutes
	})
}
