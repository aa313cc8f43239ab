package myskoda

import (
	"context"
)

// Client defines the interface for interacting with the MySkoda API.
// This interface allows for easy mocking in tests.
type Client interface {
	// GetUser retrieves the authenticated account's profile.
	GetUser(ctx context.Context) (*User, error)

	// GetVehicle retrieves identity and capabilities for a vehicle.
	GetVehicle(ctx context.Context, vin string) (*VehicleInfo, error)

	// GetStatus retrieves the lock/closure status sub-resource.
	GetStatus(ctx context.Context, vin string) (*Status, error)

	// GetCharging retrieves the charging sub-resource.
	GetCharging(ctx context.Context, vin string) (*Charging, error)

	// GetAirConditioning retrieves the air-conditioning sub-resource.
	GetAirConditioning(ctx context.Context, vin string) (*AirConditioning, error)

	// GetAuxiliaryHeating retrieves the auxiliary-heater sub-resource.
	GetAuxiliaryHeating(ctx context.Context, vin string) (*AuxiliaryHeating, error)

	// GetDrivingRange retrieves the driving-range sub-resource.
	GetDrivingRange(ctx context.Context, vin string) (*DrivingRange, error)

	// GetHealth retrieves the vehicle-health sub-resource. This call can wake
	// the vehicle and should be rate-limited by the caller.
	GetHealth(ctx context.Context, vin string) (*Health, error)

	// GetMaintenance retrieves the maintenance sub-resource.
	GetMaintenance(ctx context.Context, vin string) (*Maintenance, error)

	// GetPositions retrieves the last known GPS positions.
	GetPositions(ctx context.Context, vin string) (*Positions, error)

	// GetDepartureInfo retrieves the departure timers.
	GetDepartureInfo(ctx context.Context, vin string) (*DepartureInfo, error)

	// StartCharging requests the vehicle to start charging.
	StartCharging(ctx context.Context, vin string) error

	// StopCharging requests the vehicle to stop charging.
	StopCharging(ctx context.Context, vin string) error

	// SetChargeLimit sets the target state of charge in percent.
	SetChargeLimit(ctx context.Context, vin string, percent int) error

	// SetReducedCurrentLimit toggles reduced AC charging current.
	SetReducedCurrentLimit(ctx context.Context, vin string, reduced bool) error

	// StartAirConditioning starts climatisation at the given temperature.
	StartAirConditioning(ctx context.Context, vin string, temperatureC float64) error

	// StopAirConditioning stops climatisation.
	StopAirConditioning(ctx context.Context, vin string) error

	// StartWindowHeating starts front and rear window heating.
	StartWindowHeating(ctx context.Context, vin string) error

	// StopWindowHeating stops window heating.
	StopWindowHeating(ctx context.Context, vin string) error

	// StartAuxiliaryHeating starts the auxiliary heater. Requires the S-PIN.
	StartAuxiliaryHeating(ctx context.Context, vin, spin string, durationMinutes int) error

	// StopAuxiliaryHeating stops the auxiliary heater. Requires the S-PIN.
	StopAuxiliaryHeating(ctx context.Context, vin, spin string) error

	// Lock locks the vehicle. Requires the S-PIN.
	Lock(ctx context.Context, vin, spin string) error

	// Unlock unlocks the vehicle. Requires the S-PIN.
	Unlock(ctx context.Context, vin, spin string) error
}
