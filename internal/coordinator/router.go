package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/mhoffs/skoda-watch/internal/model"
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// eventLoop drains the push-event stream until ctx is cancelled.
func (c *Coordinator) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.stream.Events():
			if !ok {
				return
			}
			c.handleEvent(ctx, event)
		}
	}
}

// handleEvent classifies one push event and dispatches it to the matching
// incremental-update or refresh handler.
func (c *Coordinator) handleEvent(ctx context.Context, event *myskoda.Event) {
	if event.VIN != c.opts.VIN {
		return
	}

	switch event.Type {
	case myskoda.EventTypeOperation:
		c.handleOperationEvent(ctx, event.Operation)
	case myskoda.EventTypeServiceEvent:
		c.handleServiceEvent(ctx, event)
	default:
		c.log.Debug("ignoring event of unknown type", zap.String("type", string(event.Type)))
	}
}

// handleOperationEvent records the operation in the bounded history and
// publishes immediately, so diagnostic observers see the transition in real
// time regardless of whether a REST refresh follows.
func (c *Coordinator) handleOperationEvent(ctx context.Context, op *myskoda.OperationEvent) {
	c.set(func(s *model.State) {
		s.Operations.Add(op)
	})

	if !op.Status.Terminal() {
		return
	}

	if op.Status == myskoda.OperationError {
		// The failed operation's side effects are unknown; re-fetching
		// everything is the safest recovery.
		c.log.Error("operation failed",
			zap.String("operation", string(op.Operation)),
			zap.String("request_id", op.RequestID),
			zap.String("error_code", op.ErrorCode))
		c.UpdateVehicle(ctx)
		return
	}

	c.triggerForOperation(ctx, op.Operation)
}

// triggerForOperation maps a completed operation onto the narrowest refresh
// that covers its side effects. Unknown operations fall back to a full
// vehicle refresh.
func (c *Coordinator) triggerForOperation(ctx context.Context, op myskoda.OperationName) {
	switch op {
	case myskoda.OpStartCharging, myskoda.OpStopCharging,
		myskoda.OpUpdateChargeLimit, myskoda.OpUpdateChargeMode,
		myskoda.OpUpdateChargingCurrent:
		c.UpdateCharging(ctx)
	case myskoda.OpStartAirConditioning, myskoda.OpStopAirConditioning,
		myskoda.OpSetTargetTemperature,
		myskoda.OpStartWindowHeating, myskoda.OpStopWindowHeating:
		c.UpdateAirConditioning(ctx)
	case myskoda.OpStartAuxiliaryHeating, myskoda.OpStopAuxiliaryHeating:
		c.UpdateAuxiliaryHeating(ctx)
	case myskoda.OpLock, myskoda.OpUnlock:
		c.UpdateStatus(ctx, true)
	case myskoda.OpUpdateDepartureTimers:
		c.UpdateDepartureInfo(ctx)
	default:
		c.log.Debug("unknown operation, refreshing everything",
			zap.String("operation", string(op)))
		c.UpdateVehicle(ctx)
	}
}

// handleServiceEvent records the raw event for diagnostics, publishes, and
// then either patches cached state directly or triggers the topic's
// debounced refresh.
func (c *Coordinator) handleServiceEvent(ctx context.Context, event *myskoda.Event) {
	c.set(func(s *model.State) {
		s.ServiceEvents.Add(event)
	})

	se := event.Service
	switch se.Topic {
	case myskoda.TopicCharging:
		c.handleChargingEvent(ctx, se)
	case myskoda.TopicAccess:
		c.UpdateStatus(ctx, true)
	case myskoda.TopicAirConditioning:
		c.UpdateAirConditioning(ctx)
	case myskoda.TopicDeparture:
		c.UpdateDepartureInfo(ctx)
	case myskoda.TopicOdometer:
		c.UpdateMaintenance(ctx)
	default:
		c.log.Debug("service event on unhandled topic", zap.String("topic", string(se.Topic)))
	}
}

// handleChargingEvent applies the event's delta directly into the cached
// charging and driving-range data when possible, avoiding a REST round-trip.
// When the charging sub-resource was never fetched, or the delta carries no
// state of charge, it falls back to a debounced REST refresh.
func (c *Coordinator) handleChargingEvent(ctx context.Context, se *myskoda.ServiceEvent) {
	c.mu.Lock()
	applied := c.state.Vehicle.ApplyChargingDelta(se.Data, c.clock.Now())
	c.mu.Unlock()

	if applied {
		c.log.Debug("applied incremental charging update", zap.String("event", se.Name))
		c.publish()
		return
	}
	c.UpdateCharging(ctx)
}
