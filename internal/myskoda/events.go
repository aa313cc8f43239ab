package myskoda

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType distinguishes the two kinds of push events the broker delivers.
type EventType string

const (
	// EventTypeOperation is a lifecycle notification for a previously issued
	// remote command.
	EventTypeOperation EventType = "OPERATION"

	// EventTypeServiceEvent is a server-pushed telemetry notification about a
	// sub-resource change.
	EventTypeServiceEvent EventType = "SERVICE_EVENT"
)

// ServiceEventTopic identifies which sub-resource a service event concerns.
type ServiceEventTopic string

const (
	TopicCharging        ServiceEventTopic = "charging"
	TopicAccess          ServiceEventTopic = "access"
	TopicAirConditioning ServiceEventTopic = "air-conditioning"
	TopicDeparture       ServiceEventTopic = "departure"
	TopicOdometer        ServiceEventTopic = "odometer"
)

// OperationStatus is the lifecycle state of a remote command.
type OperationStatus string

const (
	OperationInProgress       OperationStatus = "IN_PROGRESS"
	OperationCompletedSuccess OperationStatus = "COMPLETED_SUCCESS"
	OperationCompletedWarning OperationStatus = "COMPLETED_WARNING"
	OperationError            OperationStatus = "ERROR"
)

// Terminal reports whether the status is a final one.
func (s OperationStatus) Terminal() bool {
	return s != OperationInProgress
}

// OperationName identifies a remote command as reported by the broker.
type OperationName string

const (
	OpStartCharging         OperationName = "start-charging"
	OpStopCharging          OperationName = "stop-charging"
	OpUpdateChargeLimit     OperationName = "update-charge-limit"
	OpUpdateChargeMode      OperationName = "update-charge-mode"
	OpUpdateChargingCurrent OperationName = "update-charging-current"
	OpStartAirConditioning  OperationName = "start-air-conditioning"
	OpStopAirConditioning   OperationName = "stop-air-conditioning"
	OpSetTargetTemperature  OperationName = "set-air-conditioning-target-temperature"
	OpStartWindowHeating    OperationName = "start-window-heating"
	OpStopWindowHeating     OperationName = "stop-window-heating"
	OpStartAuxiliaryHeating OperationName = "start-auxiliary-heating"
	OpStopAuxiliaryHeating  OperationName = "stop-auxiliary-heating"
	OpLock                  OperationName = "lock"
	OpUnlock                OperationName = "unlock"
	OpUpdateDepartureTimers OperationName = "update-departure-timers"
)

// OperationEvent is the payload of an operation-request event.
type OperationEvent struct {
	RequestID string
	TraceID   string
	Operation OperationName
	Status    OperationStatus
	ErrorCode string
}

// ServiceEventData carries the optional delta fields of a service event. The
// upstream schema does not guarantee any field is present.
type ServiceEventData struct {
	UserID              string
	Mode                string
	State               *string
	SoCPercent          *int
	ChargedRangeKM      *int
	TimeToFinishMinutes *int
}

// ServiceEvent is the payload of a telemetry-push event.
type ServiceEvent struct {
	Topic ServiceEventTopic
	Name  string
	Data  ServiceEventData
}

// Event is one push event addressed to a vehicle.
type Event struct {
	VIN       string
	Type      EventType
	Timestamp time.Time

	// Exactly one of the following is set, matching Type.
	Operation *OperationEvent
	Service   *ServiceEvent
}

// flexInt decodes a JSON value that the broker sends either as a number or as
// a quoted string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty value")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse int %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type operationWire struct {
	Version   int    `json:"version"`
	TraceID   string `json:"traceId"`
	RequestID string `json:"requestId"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode"`
}

type serviceEventWire struct {
	Version int    `json:"version"`
	TraceID string `json:"traceId"`
	Name    string `json:"name"`
	Data    struct {
		VIN          string   `json:"vin"`
		UserID       string   `json:"userId"`
		Mode         string   `json:"mode"`
		State        *string  `json:"state"`
		SoC          *flexInt `json:"soc"`
		ChargedRange *flexInt `json:"chargedRange"`
		TimeToFinish *flexInt `json:"timeToFinish"`
	} `json:"data"`
}

// DecodeEvent parses a raw broker message into an Event. The topic has the
// shape <userID>/<vin>/<kind>/<subtopic...>.
func DecodeEvent(topic string, payload []byte, now time.Time) (*Event, error) {
	parts := strings.SplitN(topic, "/", 4)
	if len(parts) < 4 {
		return nil, fmt.Errorf("malformed topic %q", topic)
	}
	vin, kind, subtopic := parts[1], parts[2], parts[3]

	switch kind {
	case "operation-request":
		var wire operationWire
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("decode operation event: %w", err)
		}
		op := wire.Operation
		if op == "" {
			// Older payload versions carry the name only in the topic,
			// e.g. charging/start-stop-charging.
			if idx := strings.LastIndex(subtopic, "/"); idx >= 0 {
				op = subtopic[idx+1:]
			} else {
				op = subtopic
			}
		}
		return &Event{
			VIN:       vin,
			Type:      EventTypeOperation,
			Timestamp: now,
			Operation: &OperationEvent{
				RequestID: wire.RequestID,
				TraceID:   wire.TraceID,
				Operation: OperationName(op),
				Status:    OperationStatus(wire.Status),
				ErrorCode: wire.ErrorCode,
			},
		}, nil

	case "service-event":
		var wire serviceEventWire
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("decode service event: %w", err)
		}
		ev := &Event{
			VIN:       vin,
			Type:      EventTypeServiceEvent,
			Timestamp: now,
			Service: &ServiceEvent{
				Topic: serviceEventTopic(subtopic),
				Name:  wire.Name,
				Data: ServiceEventData{
					UserID: wire.Data.UserID,
					Mode:   wire.Data.Mode,
					State:  wire.Data.State,
				},
			},
		}
		if wire.Data.SoC != nil {
			v := int(*wire.Data.SoC)
			ev.Service.Data.SoCPercent = &v
		}
		if wire.Data.ChargedRange != nil {
			v := int(*wire.Data.ChargedRange)
			ev.Service.Data.ChargedRangeKM = &v
		}
		if wire.Data.TimeToFinish != nil {
			v := int(*wire.Data.TimeToFinish)
			ev.Service.Data.TimeToFinishMinutes = &v
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// serviceEventTopic normalizes broker subtopics to the coarse topic set the
// coordinator routes on.
func serviceEventTopic(subtopic string) ServiceEventTopic {
	switch {
	case strings.HasPrefix(subtopic, "charging"):
		return TopicCharging
	case strings.HasPrefix(subtopic, "vehicle-status/access"), strings.HasPrefix(subtopic, "access"):
		return TopicAccess
	case strings.HasPrefix(subtopic, "air-conditioning"):
		return TopicAirConditioning
	case strings.HasPrefix(subtopic, "departure"):
		return TopicDeparture
	case strings.HasPrefix(subtopic, "vehicle-status/odometer"), strings.HasPrefix(subtopic, "odometer"):
		return TopicOdometer
	default:
		return ServiceEventTopic(subtopic)
	}
}
