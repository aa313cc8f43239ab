package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// RefreshFunc is one sub-resource's refresh function.
type RefreshFunc func(ctx context.Context) error

// Debouncer rate-limits calls to a RefreshFunc so that bursts of triggers
// within the cooldown window collapse into at most one underlying call.
//
// In immediate (leading-edge) mode the function runs on the first trigger
// and further triggers are ignored until the cooldown elapses. In
// trailing-edge mode each trigger re-arms a timer and the function runs once
// after a full cooldown with no further triggers.
//
// At most one underlying call is in flight at a time; the call runs on its
// own goroutine so triggering never blocks the caller. A trigger that
// becomes due while a call is still in flight is not lost: one follow-up
// run is scheduled when the call completes.
type Debouncer struct {
	clock     clock.Clock
	cooldown  time.Duration
	immediate bool
	fn        RefreshFunc
	log       *zap.Logger

	mu      sync.Mutex
	timer   *clock.Timer
	lastRun time.Time
	running bool
	pending bool
}

// NewDebouncer creates a debouncer around fn.
func NewDebouncer(clk clock.Clock, cooldown time.Duration, immediate bool, fn RefreshFunc, log *zap.Logger) *Debouncer {
	return &Debouncer{
		clock:     clk,
		cooldown:  cooldown,
		immediate: immediate,
		fn:        fn,
		log:       log,
	}
}

// Trigger requests a refresh. Bursts within the cooldown window collapse
// into one underlying call.
func (d *Debouncer) Trigger(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.immediate {
		if d.running {
			// Triggers during an in-flight run carry new information;
			// re-run once the current call completes.
			d.pending = true
			return
		}
		if !d.lastRun.IsZero() && d.clock.Since(d.lastRun) < d.cooldown {
			return
		}
		d.start(ctx)
		return
	}

	// Trailing edge: (re-)arm the quiet-period timer.
	if d.timer != nil {
		d.timer.Reset(d.cooldown)
		return
	}
	d.arm(ctx)
}

// arm schedules the trailing-edge run. Caller must hold d.mu.
func (d *Debouncer) arm(ctx context.Context) {
	d.timer = d.clock.AfterFunc(d.cooldown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.timer = nil
		if d.running {
			d.pending = true
			return
		}
		d.start(ctx)
	})
}

// start launches the refresh goroutine. Caller must hold d.mu.
func (d *Debouncer) start(ctx context.Context) {
	d.running = true
	d.lastRun = d.clock.Now()

	go func() {
		err := d.fn(ctx)

		d.mu.Lock()
		d.running = false
		if d.pending {
			d.pending = false
			if d.immediate {
				d.start(ctx)
			} else if d.timer == nil {
				d.arm(ctx)
			}
		}
		d.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			d.log.Warn("debounced refresh failed", zap.Error(err))
		}
	}()
}
