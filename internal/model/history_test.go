package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

func opEvent(requestID string, status myskoda.OperationStatus) *myskoda.OperationEvent {
	return &myskoda.OperationEvent{
		RequestID: requestID,
		Operation: myskoda.OpStartCharging,
		Status:    status,
	}
}

func TestOperationsFIFOEviction(t *testing.T) {
	ops := NewOperations(2)

	ops.Add(opEvent("a", myskoda.OperationInProgress))
	ops.Add(opEvent("b", myskoda.OperationInProgress))
	ops.Add(opEvent("c", myskoda.OperationInProgress))

	if ops.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ops.Len())
	}
	if _, ok := ops.Get("a"); ok {
		t.Error("oldest record 'a' should have been evicted")
	}
	if _, ok := ops.Get("b"); !ok {
		t.Error("record 'b' should be retained")
	}
	if _, ok := ops.Get("c"); !ok {
		t.Error("record 'c' should be retained")
	}

	all := ops.All()
	if all[0].RequestID != "b" || all[1].RequestID != "c" {
		t.Errorf("All() order = [%s %s], want [b c]", all[0].RequestID, all[1].RequestID)
	}
}

func TestOperationsUpdateInPlace(t *testing.T) {
	ops := NewOperations(2)

	ops.Add(opEvent("a", myskoda.OperationInProgress))
	ops.Add(opEvent("b", myskoda.OperationInProgress))
	// Status transition for "a" must not re-insert it and must not evict "b".
	ops.Add(opEvent("a", myskoda.OperationCompletedSuccess))

	if ops.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ops.Len())
	}
	got, ok := ops.Get("a")
	if !ok {
		t.Fatal("record 'a' missing")
	}
	if got.Status != myskoda.OperationCompletedSuccess {
		t.Errorf("Status = %q, want COMPLETED_SUCCESS", got.Status)
	}
	if ops.All()[0].RequestID != "a" {
		t.Error("update should not change insertion order")
	}
}

func TestOperationsIgnoresEmptyRequestID(t *testing.T) {
	ops := NewOperations(2)
	ops.Add(&myskoda.OperationEvent{Operation: myskoda.OpLock})
	if ops.Len() != 0 {
		t.Errorf("Len = %d, want 0", ops.Len())
	}
}

func TestServiceEventsBoundMostRecentFirst(t *testing.T) {
	events := NewServiceEvents(3)

	for i := 0; i < 5; i++ {
		events.Add(&myskoda.Event{
			VIN:  "VIN1",
			Type: myskoda.EventTypeServiceEvent,
			Service: &myskoda.ServiceEvent{
				Topic: myskoda.TopicCharging,
				Name:  fmt.Sprintf("event-%d", i),
			},
		})
	}

	if events.Len() != 3 {
		t.Fatalf("Len = %d, want 3", events.Len())
	}

	all := events.All()
	for i, want := range []string{"event-4", "event-3", "event-2"} {
		if all[i].Service.Name != want {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Service.Name, want)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	ops := NewOperations(2)
	ops.Add(opEvent("a", myskoda.OperationInProgress))

	events := NewServiceEvents(2)
	events.Add(&myskoda.Event{Type: myskoda.EventTypeServiceEvent, Service: &myskoda.ServiceEvent{Name: "first"}})

	state := State{
		Vehicle:       Vehicle{VIN: "VIN1", UpdatedAt: time.Now()},
		Operations:    ops,
		ServiceEvents: events,
	}

	clone := state.Clone()

	ops.Add(opEvent("b", myskoda.OperationInProgress))
	events.Add(&myskoda.Event{Type: myskoda.EventTypeServiceEvent, Service: &myskoda.ServiceEvent{Name: "second"}})

	if clone.Operations.Len() != 1 {
		t.Errorf("clone Operations.Len = %d, want 1", clone.Operations.Len())
	}
	if clone.ServiceEvents.Len() != 1 {
		t.Errorf("clone ServiceEvents.Len = %d, want 1", clone.ServiceEvents.Len())
	}
}
