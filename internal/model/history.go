package model

import (
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// Operations is a bounded insertion-ordered history of operation events,
// keyed by request id. It is a diagnostic audit trail, not a work queue:
// when capacity is exceeded the oldest record is evicted first. Updating an
// existing request id replaces the record in place without changing its
// position.
type Operations struct {
	capacity int
	order    []string
	byID     map[string]*myskoda.OperationEvent
}

// NewOperations creates an empty history bounded to capacity records.
func NewOperations(capacity int) *Operations {
	return &Operations{
		capacity: capacity,
		byID:     make(map[string]*myskoda.OperationEvent),
	}
}

// Add records an operation event, evicting the oldest entries beyond capacity.
func (o *Operations) Add(event *myskoda.OperationEvent) {
	if event.RequestID == "" {
		return
	}

	if _, ok := o.byID[event.RequestID]; ok {
		o.byID[event.RequestID] = event
		return
	}

	o.order = append(o.order, event.RequestID)
	o.byID[event.RequestID] = event

	for len(o.order) > o.capacity {
		oldest := o.order[0]
		o.order = o.order[1:]
		delete(o.byID, oldest)
	}
}

// Get returns the record for a request id.
func (o *Operations) Get(requestID string) (*myskoda.OperationEvent, bool) {
	event, ok := o.byID[requestID]
	return event, ok
}

// Len returns the number of retained records.
func (o *Operations) Len() int {
	return len(o.order)
}

// All returns the retained records in insertion order.
func (o *Operations) All() []*myskoda.OperationEvent {
	events := make([]*myskoda.OperationEvent, 0, len(o.order))
	for _, id := range o.order {
		events = append(events, o.byID[id])
	}
	return events
}

// Clone returns a copy whose containers are independent of the original.
// The records themselves are shared and treated as read-only.
func (o *Operations) Clone() *Operations {
	clone := NewOperations(o.capacity)
	clone.order = append(clone.order, o.order...)
	for id, event := range o.byID {
		clone.byID[id] = event
	}
	return clone
}

// ServiceEvents is a bounded most-recent-first history of raw push events,
// retained for diagnostics. Oldest entries are dropped first.
type ServiceEvents struct {
	capacity int
	events   []*myskoda.Event
}

// NewServiceEvents creates an empty history bounded to capacity events.
func NewServiceEvents(capacity int) *ServiceEvents {
	return &ServiceEvents{capacity: capacity}
}

// Add prepends an event, dropping the oldest beyond capacity.
func (s *ServiceEvents) Add(event *myskoda.Event) {
	s.events = append([]*myskoda.Event{event}, s.events...)
	if len(s.events) > s.capacity {
		s.events = s.events[:s.capacity]
	}
}

// Len returns the number of retained events.
func (s *ServiceEvents) Len() int {
	return len(s.events)
}

// All returns the retained events, most recent first.
func (s *ServiceEvents) All() []*myskoda.Event {
	events := make([]*myskoda.Event, len(s.events))
	copy(events, s.events)
	return events
}

// Clone returns a copy whose backing slice is independent of the original.
func (s *ServiceEvents) Clone() *ServiceEvents {
	clone := NewServiceEvents(s.capacity)
	clone.events = append(clone.events, s.events...)
	return clone
}
