package coordinator

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

func TestCommandsRejectedWhenReadOnly(t *testing.T) {
	f := newFixture(t, Options{ReadOnly: true, SPIN: "1234"}, myskoda.CapabilityState)
	ctx := context.Background()

	commands := map[string]func() error{
		"StartCharging":        func() error { return f.coord.StartCharging(ctx) },
		"StopCharging":         func() error { return f.coord.StopCharging(ctx) },
		"SetChargeLimit":       func() error { return f.coord.SetChargeLimit(ctx, 80) },
		"StartAirConditioning": func() error { return f.coord.StartAirConditioning(ctx, 21.5) },
		"StopAirConditioning":  func() error { return f.coord.StopAirConditioning(ctx) },
		"StartWindowHeating":   func() error { return f.coord.StartWindowHeating(ctx) },
		"Lock":                 func() error { return f.coord.Lock(ctx) },
		"Unlock":               func() error { return f.coord.Unlock(ctx) },
	}
	for name, cmd := range commands {
		if err := cmd(); !errors.Is(err, ErrReadOnly) {
			t.Errorf("%s error = %v, want ErrReadOnly", name, err)
		}
	}

	for _, endpoint := range []string{"start-charging", "stop-charging", "lock", "unlock"} {
		if got := f.client.count(endpoint); got != 0 {
			t.Errorf("%s calls = %d, want 0 in read-only mode", endpoint, got)
		}
	}
}

func TestSecurityCommandsRequireSPIN(t *testing.T) {
	f := newFixture(t, Options{}, myskoda.CapabilityState)
	ctx := context.Background()

	for name, cmd := range map[string]func() error{
		"Lock":                  func() error { return f.coord.Lock(ctx) },
		"Unlock":                func() error { return f.coord.Unlock(ctx) },
		"StartAuxiliaryHeating": func() error { return f.coord.StartAuxiliaryHeating(ctx, 30) },
		"StopAuxiliaryHeating":  func() error { return f.coord.StopAuxiliaryHeating(ctx) },
	} {
		if err := cmd(); !errors.Is(err, ErrNoSPIN) {
			t.Errorf("%s error = %v, want ErrNoSPIN", name, err)
		}
	}
}

func TestLockPassesSPIN(t *testing.T) {
	f := newFixture(t, Options{SPIN: "4321"}, myskoda.CapabilityState)

	if err := f.coord.Lock(context.Background()); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if got := f.client.count("lock"); got != 1 {
		t.Fatalf("lock calls = %d, want 1", got)
	}
	f.client.mu.Lock()
	spin := f.client.lastSPIN
	f.client.mu.Unlock()
	if spin != "4321" {
		t.Errorf("lock s-pin = %q, want 4321", spin)
	}
}

func TestSetChargeLimitValidatesRange(t *testing.T) {
	f := newFixture(t, Options{}, myskoda.CapabilityState)
	ctx := context.Background()

	for _, percent := range []int{0, 49, 101} {
		if err := f.coord.SetChargeLimit(ctx, percent); err == nil {
			t.Errorf("SetChargeLimit(%d) error = nil, want out-of-range error", percent)
		}
	}
	if got := f.client.count("set-charge-limit"); got != 0 {
		t.Fatalf("set-charge-limit calls = %d, want 0 for invalid input", got)
	}

	if err := f.coord.SetChargeLimit(ctx, 80); err != nil {
		t.Fatalf("SetChargeLimit(80) error = %v", err)
	}
	f.client.mu.Lock()
	limit := f.client.lastChargeLimit
	f.client.mu.Unlock()
	if limit != 80 {
		t.Errorf("charge limit sent = %d, want 80", limit)
	}
}

func TestAuxiliaryHeatingUsesConfiguredDuration(t *testing.T) {
	f := newFixture(t, Options{SPIN: "1234"}, myskoda.CapabilityState)
	ctx := context.Background()

	if err := f.coord.StartAuxiliaryHeating(ctx, 60); err != nil {
		t.Fatalf("StartAuxiliaryHeating() error = %v", err)
	}
	f.client.mu.Lock()
	duration := f.client.lastDuration
	f.client.mu.Unlock()
	if duration != 60 {
		t.Errorf("duration sent = %d, want caller value 60", duration)
	}

	override := 20
	f.coord.SetAuxiliaryHeaterDuration(&override)

	if err := f.coord.StartAuxiliaryHeating(ctx, 60); err != nil {
		t.Fatalf("StartAuxiliaryHeating() with override error = %v", err)
	}
	f.client.mu.Lock()
	duration = f.client.lastDuration
	f.client.mu.Unlock()
	if duration != 20 {
		t.Errorf("duration sent = %d, want override 20", duration)
	}

	if got := f.coord.Data().Config.AuxiliaryHeaterDurationMinutes; got == nil || *got != 20 {
		t.Errorf("published duration override = %v, want 20", got)
	}
}

func TestCommandPreconditionFailureReportsSPINIssue(t *testing.T) {
	f := newFixture(t, Options{}, myskoda.CapabilityState)
	f.client.chargingErr = &myskoda.APIError{StatusCode: http.StatusPreconditionFailed, Message: "wrong s-pin"}

	if err := f.coord.StartCharging(context.Background()); err == nil {
		t.Fatal("StartCharging() error = nil, want 412 propagated")
	}
	if spin, _ := f.issues.counts(); spin != 1 {
		t.Errorf("s-pin issues = %d, want 1", spin)
	}
}
