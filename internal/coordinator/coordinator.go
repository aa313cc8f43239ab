package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/mhoffs/skoda-watch/internal/model"
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

const (
	// DefaultPollInterval is the scheduled full-refresh period.
	DefaultPollInterval = 30 * time.Minute

	// MinPollInterval and MaxPollInterval bound the configurable period.
	MinPollInterval = time.Minute
	MaxPollInterval = 24 * time.Hour

	// DefaultCooldown is the debounce window for REST refreshes.
	DefaultCooldown = 30 * time.Second

	// userTTL is how long a fetched user profile stays fresh.
	userTTL = 3 * time.Hour

	// healthTTL limits health polls. Too-frequent health fetches trigger
	// battery protection on some vehicle models.
	healthTTL = 24 * time.Hour

	maxStoredOperations    = 2
	maxStoredServiceEvents = 10

	resourceUser   = "user"
	resourceHealth = "health"
)

// UpdateFailedError signals that a refresh cycle failed outright with no
// usable previous value. The poll loop retries on the next scheduled tick.
type UpdateFailedError struct {
	Op  string
	Err error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update failed: %s: %v", e.Op, e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

// ErrReadOnly is returned by command methods when the coordinator was
// configured read-only.
var ErrReadOnly = errors.New("coordinator is read-only")

// EventSource is the push-event stream the coordinator drains. Connect must
// not block beyond its context; once connected the implementation is
// responsible for reconnecting on its own.
type EventSource interface {
	Connect(ctx context.Context) error
	Connected() bool
	Events() <-chan *myskoda.Event
}

// IssueReporter surfaces actionable configuration problems (as opposed to
// transient API failures) to the user.
type IssueReporter interface {
	SPINInvalid()
	TermsNotAccepted()
}

// Options configures a Coordinator for one vehicle.
type Options struct {
	VIN          string
	PollInterval time.Duration
	Cooldown     time.Duration

	// ReadOnly disables all remote commands.
	ReadOnly bool

	// SPIN authorizes security-sensitive commands (lock, auxiliary heating).
	SPIN string

	// ExcludedCapabilities lists sub-resources that must never be fetched for
	// this vehicle, for models whose fetches of certain resources misbehave.
	ExcludedCapabilities []myskoda.Capability
}

func (o *Options) withDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PollInterval < MinPollInterval {
		o.PollInterval = MinPollInterval
	}
	if o.PollInterval > MaxPollInterval {
		o.PollInterval = MaxPollInterval
	}
	if o.Cooldown == 0 {
		o.Cooldown = DefaultCooldown
	}
}

func (o *Options) excluded(c myskoda.Capability) bool {
	for _, e := range o.ExcludedCapabilities {
		if e == c {
			return true
		}
	}
	return false
}

// Coordinator manages all data for one vehicle: it polls the REST API on a
// fixed interval, drains the push-event stream, debounces redundant REST
// calls and publishes a consistent State to its observers on every change.
type Coordinator struct {
	client myskoda.Client
	stream EventSource
	clock  clock.Clock
	log    *zap.Logger
	issues IssueReporter
	opts   Options
	fresh  *Freshness

	mu        sync.Mutex
	state     model.State
	ready     bool
	listeners []func(model.State)

	connecting atomic.Bool

	vehicleRefresh     *Debouncer
	statusRefresh      *Debouncer
	statusRefreshNow   *Debouncer
	chargingRefresh    *Debouncer
	airConRefresh      *Debouncer
	auxHeatRefresh     *Debouncer
	rangeRefresh       *Debouncer
	positionsRefresh   *Debouncer
	maintenanceRefresh *Debouncer
	departureRefresh   *Debouncer
}

// New creates a coordinator. All collaborators are injected; nothing is
// resolved from ambient state. issues may be nil.
func New(client myskoda.Client, stream EventSource, clk clock.Clock, logger *zap.Logger, issues IssueReporter, opts Options) *Coordinator {
	opts.withDefaults()

	c := &Coordinator{
		client: client,
		stream: stream,
		clock:  clk,
		log:    logger,
		issues: issues,
		opts:   opts,
		fresh:  NewFreshness(clk),
	}

	debounce := func(name string, immediate bool, fn RefreshFunc) *Debouncer {
		return NewDebouncer(clk, opts.Cooldown, immediate, fn, logger.Named(name))
	}
	c.vehicleRefresh = debounce("refresh.vehicle", false, c.refreshVehicle)
	c.statusRefresh = debounce("refresh.status", false, c.refreshStatus)
	c.statusRefreshNow = debounce("refresh.status", true, c.refreshStatus)
	c.chargingRefresh = debounce("refresh.charging", false, c.refreshCharging)
	c.airConRefresh = debounce("refresh.air-conditioning", false, c.refreshAirConditioning)
	c.auxHeatRefresh = debounce("refresh.auxiliary-heating", false, c.refreshAuxiliaryHeating)
	c.rangeRefresh = debounce("refresh.driving-range", false, c.refreshDrivingRange)
	c.positionsRefresh = debounce("refresh.positions", false, c.refreshPositions)
	c.maintenanceRefresh = debounce("refresh.maintenance", false, c.refreshMaintenance)
	c.departureRefresh = debounce("refresh.departure", false, c.refreshDepartureInfo)

	return c
}

// Subscribe registers an observer. Observers are notified synchronously on
// every publish with a cloned State and must not block.
func (c *Coordinator) Subscribe(fn func(model.State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Data returns the current State.
func (c *Coordinator) Data() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// set applies a mutation to the State and publishes the result. Mutation and
// publish form one synchronous sequence; observers never see a partial view.
func (c *Coordinator) set(mutate func(*model.State)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.publish()
}

// publish notifies every observer with a clone of the current State.
func (c *Coordinator) publish() {
	c.mu.Lock()
	clone := c.state.Clone()
	listeners := append([]func(model.State){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(clone)
	}
}

// Run performs the initial fetch, starts the event stream in the background
// and then polls on the configured interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.firstRefresh(ctx); err != nil {
		return err
	}

	go c.eventLoop(ctx)

	// Connecting to the broker must not delay startup. If it fails we stay
	// in polling-only mode and retry on later ticks.
	c.connectStream(ctx)

	ticker := c.clock.Ticker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Warn("scheduled refresh failed, retrying next tick", zap.Error(err))
			}
			if !c.stream.Connected() {
				c.connectStream(ctx)
			}
		}
	}
}

func (c *Coordinator) connectStream(ctx context.Context) {
	if !c.connecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.connecting.Store(false)
		if err := c.stream.Connect(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("event stream unavailable, falling back to polling", zap.Error(err))
		}
	}()
}

// firstRefresh is the cheap minimal fetch performed during setup: user
// profile and vehicle identity only. Sub-resources arrive with the first
// scheduled refresh or with push events.
func (c *Coordinator) firstRefresh(ctx context.Context) error {
	c.log.Debug("performing initial fetch", zap.String("vin", c.opts.VIN))

	user, err := c.client.GetUser(ctx)
	if err != nil {
		c.reportUserIssues(err)
		return &UpdateFailedError{Op: "setup user", Err: err}
	}
	c.fresh.MarkFetched(resourceUser)

	info, err := c.client.GetVehicle(ctx, c.opts.VIN)
	if err != nil {
		return &UpdateFailedError{Op: "setup vehicle", Err: err}
	}

	c.set(func(s *model.State) {
		s.Vehicle = model.NewVehicle(*info, c.clock.Now())
		s.User = user
		s.Operations = model.NewOperations(maxStoredOperations)
		s.ServiceEvents = model.NewServiceEvents(maxStoredServiceEvents)
	})

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// Refresh runs one poll cycle: the minimal setup fetch when the coordinator
// has not loaded vehicle identity yet, otherwise the full fetch of the user
// profile (TTL-gated, with stale fallback) and every supported vehicle
// sub-resource.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if !ready {
		return c.firstRefresh(ctx)
	}
	return c.fullCycle(ctx)
}

// FullRefresh forces a complete fetch in one call, running setup first when
// needed. One-shot commands use it instead of stepping through the setup
// state machine.
func (c *Coordinator) FullRefresh(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()
	if !ready {
		if err := c.firstRefresh(ctx); err != nil {
			return err
		}
	}
	return c.fullCycle(ctx)
}

func (c *Coordinator) fullCycle(ctx context.Context) error {
	c.log.Debug("performing full refresh", zap.String("vin", c.opts.VIN))

	if err := c.refreshUser(ctx); err != nil {
		return err
	}
	return c.refreshVehicle(ctx)
}

// refreshUser fetches the user profile unless the cached copy is fresh. A
// failed fetch falls back to the cached copy; the cycle fails only when no
// usable profile exists at all.
func (c *Coordinator) refreshUser(ctx context.Context) error {
	if c.fresh.Fresh(resourceUser, userTTL) {
		return nil
	}

	user, err := c.client.GetUser(ctx)
	if err != nil {
		c.reportUserIssues(err)
		if cycleErr := c.classify("user", err); cycleErr != nil {
			c.mu.Lock()
			hasUser := c.state.User != nil
			c.mu.Unlock()
			if !hasUser {
				return cycleErr
			}
			c.log.Warn("user refresh failed, keeping cached profile", zap.Error(err))
		}
		return nil
	}

	c.fresh.MarkFetched(resourceUser)
	c.set(func(s *model.State) {
		s.User = user
	})
	return nil
}

// reportUserIssues maps user-fetch failures that require user action onto
// the issue sink. HTTP 403 on the profile means the account has not accepted
// updated terms of service in the mobile app.
func (c *Coordinator) reportUserIssues(err error) {
	var apiErr *myskoda.APIError
	if c.issues != nil && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		c.issues.TermsNotAccepted()
	}
}

// subResourceFetch describes one independently-fetchable facet of the full
// vehicle refresh.
type subResourceFetch struct {
	name       string
	capability myskoda.Capability
	fetch      func(ctx context.Context, patch *model.Vehicle) error
}

// refreshVehicle fetches every supported sub-resource and publishes the
// result once. Individual failures are isolated: a sub-resource keeps its
// previous value and the cycle fails only when a fetch fails hard with no
// previous value to fall back on.
func (c *Coordinator) refreshVehicle(ctx context.Context) error {
	c.mu.Lock()
	vehicle := c.state.Vehicle
	c.mu.Unlock()

	fetches := []subResourceFetch{
		{"status", myskoda.CapabilityState, func(ctx context.Context, v *model.Vehicle) error {
			status, err := c.client.GetStatus(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.Status = status
			return nil
		}},
		{"charging", myskoda.CapabilityCharging, func(ctx context.Context, v *model.Vehicle) error {
			charging, err := c.client.GetCharging(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.Charging = charging
			return nil
		}},
		{"driving range", myskoda.CapabilityState, func(ctx context.Context, v *model.Vehicle) error {
			drivingRange, err := c.client.GetDrivingRange(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.DrivingRange = drivingRange
			return nil
		}},
		{"air conditioning", myskoda.CapabilityAirConditioning, func(ctx context.Context, v *model.Vehicle) error {
			airCon, err := c.client.GetAirConditioning(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.AirConditioning = airCon
			return nil
		}},
		{"auxiliary heating", myskoda.CapabilityAuxiliaryHeating, func(ctx context.Context, v *model.Vehicle) error {
			auxHeat, err := c.client.GetAuxiliaryHeating(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.AuxiliaryHeating = auxHeat
			return nil
		}},
		{"maintenance", myskoda.CapabilityState, func(ctx context.Context, v *model.Vehicle) error {
			maintenance, err := c.client.GetMaintenance(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.Maintenance = maintenance
			return nil
		}},
		{"positions", myskoda.CapabilityParkingPosition, func(ctx context.Context, v *model.Vehicle) error {
			positions, err := c.client.GetPositions(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.Positions = positions
			return nil
		}},
		{"departure info", myskoda.CapabilityDepartureTimers, func(ctx context.Context, v *model.Vehicle) error {
			departure, err := c.client.GetDepartureInfo(ctx, c.opts.VIN)
			if err != nil {
				return err
			}
			v.DepartureInfo = departure
			return nil
		}},
	}

	var cycleErr error
	for _, f := range fetches {
		if !vehicle.Info.HasCapability(f.capability) || c.opts.excluded(f.capability) {
			continue
		}
		if err := f.fetch(ctx, &vehicle); err != nil {
			if clsErr := c.classify(f.name, err); clsErr != nil && cycleErr == nil {
				cycleErr = clsErr
			}
			continue
		}
	}

	// Health is fetched at most once per TTL: the call wakes the vehicle on
	// some models and drains the 12V battery.
	if vehicle.Info.HasCapability(myskoda.CapabilityVehicleHealth) &&
		!c.opts.excluded(myskoda.CapabilityVehicleHealth) &&
		!c.fresh.Fresh(resourceHealth, healthTTL) {
		health, err := c.client.GetHealth(ctx, c.opts.VIN)
		if err != nil {
			if clsErr := c.classify("health", err); clsErr != nil && cycleErr == nil {
				cycleErr = clsErr
			}
		} else {
			vehicle.Health = health
			c.fresh.MarkFetched(resourceHealth)
		}
	}

	vehicle.UpdatedAt = c.clock.Now()
	c.set(func(s *model.State) {
		s.Vehicle = vehicle
	})

	if cycleErr != nil {
		// The publish above already delivered whatever we did get; the error
		// only matters when nothing usable was retained.
		if c.hasUsableVehicle() {
			c.log.Warn("partial vehicle refresh", zap.Error(cycleErr))
			return nil
		}
		return cycleErr
	}
	return nil
}

// hasUsableVehicle reports whether at least one sub-resource has ever been
// fetched, i.e. whether observers have something meaningful to show.
func (c *Coordinator) hasUsableVehicle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.state.Vehicle
	return v.Status != nil || v.Charging != nil || v.DrivingRange != nil ||
		v.AirConditioning != nil || v.Maintenance != nil || v.Positions != nil
}

// classify applies the error taxonomy to a sub-resource fetch failure:
// 412 raises an S-PIN issue and is swallowed, rate limits and server errors
// are logged and swallowed, everything else becomes a retryable cycle error.
func (c *Coordinator) classify(op string, err error) error {
	switch {
	case myskoda.IsPreconditionFailed(err):
		c.log.Warn("precondition failed, check s-pin", zap.String("resource", op))
		if c.issues != nil {
			c.issues.SPINInvalid()
		}
		return nil
	case myskoda.IsTransient(err):
		c.log.Warn("transient api error, keeping previous value",
			zap.String("resource", op), zap.Error(err))
		return nil
	default:
		return &UpdateFailedError{Op: op, Err: err}
	}
}

// Per-sub-resource refresh functions. Each fetches one facet, patches the
// snapshot and publishes. They are only ever invoked through their debouncer.

func (c *Coordinator) refreshStatus(ctx context.Context) error {
	status, err := c.client.GetStatus(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("status", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.Status = status
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshCharging(ctx context.Context) error {
	charging, err := c.client.GetCharging(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("charging", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.Charging = charging
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshAirConditioning(ctx context.Context) error {
	airCon, err := c.client.GetAirConditioning(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("air conditioning", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.AirConditioning = airCon
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshAuxiliaryHeating(ctx context.Context) error {
	auxHeat, err := c.client.GetAuxiliaryHeating(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("auxiliary heating", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.AuxiliaryHeating = auxHeat
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshDrivingRange(ctx context.Context) error {
	drivingRange, err := c.client.GetDrivingRange(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("driving range", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.DrivingRange = drivingRange
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshPositions(ctx context.Context) error {
	positions, err := c.client.GetPositions(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("positions", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.Positions = positions
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshMaintenance(ctx context.Context) error {
	maintenance, err := c.client.GetMaintenance(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("maintenance", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.Maintenance = maintenance
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

func (c *Coordinator) refreshDepartureInfo(ctx context.Context) error {
	departure, err := c.client.GetDepartureInfo(ctx, c.opts.VIN)
	if err != nil {
		return c.classify("departure info", err)
	}
	c.set(func(s *model.State) {
		s.Vehicle.DepartureInfo = departure
		s.Vehicle.UpdatedAt = c.clock.Now()
	})
	return nil
}

// Debounced trigger functions exposed to consumers. Bursts of triggers on
// one sub-resource collapse into a single REST call without delaying
// unrelated sub-resources.

// UpdateVehicle triggers a debounced full vehicle refresh.
func (c *Coordinator) UpdateVehicle(ctx context.Context) { c.vehicleRefresh.Trigger(ctx) }

// UpdateStatus triggers a debounced status refresh. With immediate the
// refresh fires on the leading edge of the cooldown window.
func (c *Coordinator) UpdateStatus(ctx context.Context, immediate bool) {
	if immediate {
		c.statusRefreshNow.Trigger(ctx)
		return
	}
	c.statusRefresh.Trigger(ctx)
}

// UpdateCharging triggers a debounced charging refresh.
func (c *Coordinator) UpdateCharging(ctx context.Context) { c.chargingRefresh.Trigger(ctx) }

// UpdateAirConditioning triggers a debounced air-conditioning refresh.
func (c *Coordinator) UpdateAirConditioning(ctx context.Context) { c.airConRefresh.Trigger(ctx) }

// UpdateAuxiliaryHeating triggers a debounced auxiliary-heating refresh.
func (c *Coordinator) UpdateAuxiliaryHeating(ctx context.Context) { c.auxHeatRefresh.Trigger(ctx) }

// UpdateDrivingRange triggers a debounced driving-range refresh.
func (c *Coordinator) UpdateDrivingRange(ctx context.Context) { c.rangeRefresh.Trigger(ctx) }

// UpdatePositions triggers a debounced positions refresh.
func (c *Coordinator) UpdatePositions(ctx context.Context) { c.positionsRefresh.Trigger(ctx) }

// UpdateMaintenance triggers a debounced maintenance refresh.
func (c *Coordinator) UpdateMaintenance(ctx context.Context) { c.maintenanceRefresh.Trigger(ctx) }

// UpdateDepartureInfo triggers a debounced departure-timers refresh.
func (c *Coordinator) UpdateDepartureInfo(ctx context.Context) { c.departureRefresh.Trigger(ctx) }
