package model

import (
	"time"

	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// Vehicle is the aggregate snapshot of one vehicle's independently-fetchable
// sub-resources. A nil sub-resource means "not yet fetched or not supported";
// consumers must treat it as unknown, never as false/zero.
type Vehicle struct {
	VIN  string
	Info myskoda.VehicleInfo

	Status           *myskoda.Status
	Charging         *myskoda.Charging
	AirConditioning  *myskoda.AirConditioning
	AuxiliaryHeating *myskoda.AuxiliaryHeating
	DrivingRange     *myskoda.DrivingRange
	Health           *myskoda.Health
	Maintenance      *myskoda.Maintenance
	Positions        *myskoda.Positions
	DepartureInfo    *myskoda.DepartureInfo

	// Timestamp of last update to any sub-resource
	UpdatedAt time.Time
}

// NewVehicle creates a snapshot with identity info only.
func NewVehicle(info myskoda.VehicleInfo, now time.Time) Vehicle {
	return Vehicle{
		VIN:       info.VIN,
		Info:      info,
		UpdatedAt: now,
	}
}

// ApplyChargingDelta applies an optimistic incremental charging update from a
// service event, replacing the cached charging status and deriving the
// matching driving-range fields so the two views stay consistent without a
// REST round-trip. Published snapshots alias the old sub-resource pointers,
// so the patch builds fresh values instead of writing through them.
//
// The patch is applied only when a cached charging status exists and the
// delta carries a state of charge; fields absent from the delta keep their
// cached values. Returns false when no patch was applied, in which case the
// caller should fall back to a REST refresh.
func (v *Vehicle) ApplyChargingDelta(data myskoda.ServiceEventData, now time.Time) bool {
	if v.Charging == nil || v.Charging.Status == nil || data.SoCPercent == nil {
		return false
	}

	charging := *v.Charging
	status := *charging.Status
	status.SoCPercent = *data.SoCPercent
	if data.ChargedRangeKM != nil {
		status.RemainingRangeKM = *data.ChargedRangeKM
	}
	if data.TimeToFinishMinutes != nil {
		minutes := *data.TimeToFinishMinutes
		status.RemainingTimeMinutes = &minutes
	}
	if data.State != nil {
		status.State = myskoda.ParseChargeState(*data.State)
	}
	charging.Status = &status
	v.Charging = &charging

	if v.DrivingRange != nil {
		drivingRange := *v.DrivingRange
		drivingRange.PrimaryEngineSoC = status.SoCPercent
		drivingRange.PrimaryEngineRangeKM = status.RemainingRangeKM
		if drivingRange.CarType == myskoda.EngineTypeElectric {
			drivingRange.TotalRangeKM = status.RemainingRangeKM
		}
		v.DrivingRange = &drivingRange
	}

	v.UpdatedAt = now
	return true
}
