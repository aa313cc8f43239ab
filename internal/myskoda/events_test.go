package myskoda

import (
	"testing"
	"time"
)

func TestDecodeOperationEvent(t *testing.T) {
	payload := []byte(`{
		"version": 1,
		"traceId": "trace-1",
		"requestId": "req-42",
		"operation": "start-charging",
		"status": "IN_PROGRESS"
	}`)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event, err := DecodeEvent("user-1/TMBJB9NY0SF000000/operation-request/charging/start-stop-charging", payload, now)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.Type != EventTypeOperation {
		t.Errorf("Type = %q, want %q", event.Type, EventTypeOperation)
	}
	if event.VIN != "TMBJB9NY0SF000000" {
		t.Errorf("VIN = %q", event.VIN)
	}
	if event.Operation == nil {
		t.Fatal("Operation is nil")
	}
	if event.Operation.RequestID != "req-42" {
		t.Errorf("RequestID = %q", event.Operation.RequestID)
	}
	if event.Operation.Operation != OpStartCharging {
		t.Errorf("Operation = %q", event.Operation.Operation)
	}
	if event.Operation.Status != OperationInProgress {
		t.Errorf("Status = %q", event.Operation.Status)
	}
	if !event.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v", event.Timestamp)
	}
}

func TestDecodeOperationEventNameFromTopic(t *testing.T) {
	// Older payload versions omit the operation name; it comes from the topic.
	payload := []byte(`{"version": 1, "requestId": "req-1", "status": "COMPLETED_SUCCESS"}`)

	event, err := DecodeEvent("u/VIN1/operation-request/air-conditioning/stop-air-conditioning", payload, time.Now())
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if event.Operation.Operation != OpStopAirConditioning {
		t.Errorf("Operation = %q, want %q", event.Operation.Operation, OpStopAirConditioning)
	}
}

func TestDecodeServiceEventCharging(t *testing.T) {
	// The broker sends numeric fields as quoted strings in some versions.
	payload := []byte(`{
		"version": 1,
		"name": "change-soc",
		"data": {
			"vin": "VIN1",
			"userId": "user-1",
			"mode": "manual",
			"state": "charging",
			"soc": "80",
			"chargedRange": 150,
			"timeToFinish": "45"
		}
	}`)

	event, err := DecodeEvent("user-1/VIN1/service-event/charging", payload, time.Now())
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.Type != EventTypeServiceEvent {
		t.Fatalf("Type = %q", event.Type)
	}
	se := event.Service
	if se == nil {
		t.Fatal("Service is nil")
	}
	if se.Topic != TopicCharging {
		t.Errorf("Topic = %q", se.Topic)
	}
	if se.Name != "change-soc" {
		t.Errorf("Name = %q", se.Name)
	}
	if se.Data.SoCPercent == nil || *se.Data.SoCPercent != 80 {
		t.Errorf("SoCPercent = %v, want 80", se.Data.SoCPercent)
	}
	if se.Data.ChargedRangeKM == nil || *se.Data.ChargedRangeKM != 150 {
		t.Errorf("ChargedRangeKM = %v, want 150", se.Data.ChargedRangeKM)
	}
	if se.Data.TimeToFinishMinutes == nil || *se.Data.TimeToFinishMinutes != 45 {
		t.Errorf("TimeToFinishMinutes = %v, want 45", se.Data.TimeToFinishMinutes)
	}
	if se.Data.State == nil || *se.Data.State != "charging" {
		t.Errorf("State = %v", se.Data.State)
	}
}

func TestDecodeServiceEventPartialPayload(t *testing.T) {
	payload := []byte(`{"version": 1, "name": "change-soc", "data": {"vin": "VIN1", "soc": "55"}}`)

	event, err := DecodeEvent("u/VIN1/service-event/charging", payload, time.Now())
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	data := event.Service.Data
	if data.SoCPercent == nil || *data.SoCPercent != 55 {
		t.Errorf("SoCPercent = %v, want 55", data.SoCPercent)
	}
	if data.ChargedRangeKM != nil {
		t.Errorf("ChargedRangeKM = %v, want nil", data.ChargedRangeKM)
	}
	if data.TimeToFinishMinutes != nil {
		t.Errorf("TimeToFinishMinutes = %v, want nil", data.TimeToFinishMinutes)
	}
}

func TestDecodeServiceEventTopics(t *testing.T) {
	tests := []struct {
		subtopic string
		want     ServiceEventTopic
	}{
		{"charging", TopicCharging},
		{"vehicle-status/access", TopicAccess},
		{"air-conditioning", TopicAirConditioning},
		{"departure", TopicDeparture},
		{"vehicle-status/odometer", TopicOdometer},
	}

	for _, tt := range tests {
		payload := []byte(`{"version": 1, "name": "x", "data": {"vin": "VIN1"}}`)
		event, err := DecodeEvent("u/VIN1/service-event/"+tt.subtopic, payload, time.Now())
		if err != nil {
			t.Fatalf("DecodeEvent(%s) failed: %v", tt.subtopic, err)
		}
		if event.Service.Topic != tt.want {
			t.Errorf("topic %q = %q, want %q", tt.subtopic, event.Service.Topic, tt.want)
		}
	}
}

func TestDecodeEventMalformedTopic(t *testing.T) {
	if _, err := DecodeEvent("too/short", []byte(`{}`), time.Now()); err == nil {
		t.Error("expected error for malformed topic")
	}
	if _, err := DecodeEvent("u/VIN1/unknown-kind/x", []byte(`{}`), time.Now()); err == nil {
		t.Error("expected error for unknown event kind")
	}
}

func TestOperationStatusTerminal(t *testing.T) {
	if OperationInProgress.Terminal() {
		t.Error("IN_PROGRESS should not be terminal")
	}
	for _, s := range []OperationStatus{OperationCompletedSuccess, OperationCompletedWarning, OperationError} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
