package myskoda

import (
	"strings"
	"time"
)

// VehicleInfo holds the identity and capability set of a vehicle.
type VehicleInfo struct {
	VIN          string
	Name         string
	Model        string
	ModelYear    string
	Capabilities []Capability
}

// HasCapability returns true if the vehicle supports the given capability.
func (v VehicleInfo) HasCapability(c Capability) bool {
	for _, cap := range v.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// Capability identifies an independently-fetchable facet of vehicle state.
type Capability string

const (
	CapabilityState            Capability = "STATE"
	CapabilityCharging         Capability = "CHARGING"
	CapabilityAirConditioning  Capability = "AIR_CONDITIONING"
	CapabilityAuxiliaryHeating Capability = "AUXILIARY_HEATING"
	CapabilityParkingPosition  Capability = "PARKING_POSITION"
	CapabilityDepartureTimers  Capability = "DEPARTURE_TIMERS"
	CapabilityVehicleHealth    Capability = "VEHICLE_HEALTH_INSPECTION"
)

// Status represents the vehicle-status sub-resource (locks and closures).
type Status struct {
	Locked      bool
	DoorsOpen   bool
	WindowsOpen bool
	TrunkOpen   bool
	BonnetOpen  bool
	LightsOn    bool
	CapturedAt  time.Time
}

// ChargeState represents the charging status reported by the vehicle.
type ChargeState string

const (
	ChargeStateUnknown           ChargeState = "unknown"
	ChargeStateCharging          ChargeState = "charging"
	ChargeStateConnectCable      ChargeState = "connect_cable"
	ChargeStateReadyForCharging  ChargeState = "ready_for_charging"
	ChargeStateConservation      ChargeState = "conservation"
	ChargeStateChargingCompleted ChargeState = "charging_completed"
)

// ParseChargeState maps the API's (and the event stream's) charging state
// enum onto ChargeState. Unrecognized values map to ChargeStateUnknown.
func ParseChargeState(s string) ChargeState {
	switch strings.ToUpper(s) {
	case "CHARGING":
		return ChargeStateCharging
	case "CONNECT_CABLE":
		return ChargeStateConnectCable
	case "READY_FOR_CHARGING":
		return ChargeStateReadyForCharging
	case "CONSERVATION":
		return ChargeStateConservation
	case "CHARGING_COMPLETED", "CHARGINGCOMPLETED":
		return ChargeStateChargingCompleted
	default:
		return ChargeStateUnknown
	}
}

// ChargingSettings holds user-configurable charging parameters.
type ChargingSettings struct {
	TargetSoCPercent   int
	MaxChargeCurrentAC string
}

// ChargingStatus holds the live charging telemetry.
type ChargingStatus struct {
	State                ChargeState
	ChargeType           string
	ChargingPowerKW      float64
	RemainingTimeMinutes *int // nil when not charging
	SoCPercent           int
	RemainingRangeKM     int
}

// Charging represents the charging sub-resource.
type Charging struct {
	Settings ChargingSettings
	Status   *ChargingStatus // nil when the vehicle has never reported one
}

// AirConditioningState represents the climatisation state.
type AirConditioningState string

const (
	AirConditioningStateOff     AirConditioningState = "off"
	AirConditioningStateOn      AirConditioningState = "on"
	AirConditioningStateCooling AirConditioningState = "cooling"
	AirConditioningStateHeating AirConditioningState = "heating"
)

// AirConditioning represents the air-conditioning sub-resource.
type AirConditioning struct {
	State                  AirConditioningState
	TargetTemperatureC     float64
	WindowHeatingFront     bool
	WindowHeatingRear      bool
	EstimatedReachDateTime *time.Time
}

// AuxiliaryHeating represents the auxiliary-heater sub-resource.
type AuxiliaryHeating struct {
	State           AirConditioningState
	DurationMinutes int
}

// EngineType classifies the vehicle's drive train.
type EngineType string

const (
	EngineTypeElectric EngineType = "electric"
	EngineTypeHybrid   EngineType = "hybrid"
	EngineTypeGasoline EngineType = "gasoline"
)

// DrivingRange represents the driving-range sub-resource.
type DrivingRange struct {
	CarType              EngineType
	TotalRangeKM         int
	PrimaryEngineRangeKM int
	PrimaryEngineSoC     int // percent
}

// Health represents the vehicle-health sub-resource. Fetching it wakes the
// vehicle on some models, so it is polled sparingly.
type Health struct {
	MileageKM  int
	Warnings   []string
	CapturedAt time.Time
}

// Maintenance represents the maintenance/inspection sub-resource.
type Maintenance struct {
	MileageKM          int
	InspectionDueDays  int
	InspectionDueKM    int
	OilServiceDueDays  *int // nil for electric vehicles
	ServicePartnerName string
}

// Position is one GPS fix of the vehicle.
type Position struct {
	Latitude  float64
	Longitude float64
	Type      string
}

// Positions represents the positions sub-resource. The API returns an error
// entry instead of a fix while the vehicle is in motion.
type Positions struct {
	Positions []Position
	Errors    []string
}

// DepartureTimer is one scheduled departure.
type DepartureTimer struct {
	ID      int
	Enabled bool
	Time    string // "HH:MM" local vehicle time
	Type    string // one-off or recurring
}

// DepartureInfo represents the departure-timers sub-resource.
type DepartureInfo struct {
	Timers            []DepartureTimer
	MinimumSoCPercent int
}

// User is the authenticated account's identity info.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}
