package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mhoffs/skoda-watch/internal/model"
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// Formatter handles output formatting
type Formatter interface {
	FormatState(w io.Writer, state model.State) error
}

// stateView is the serializable projection of a State. The history
// containers hide their internals, so machine-readable formats flatten them
// here.
type stateView struct {
	VIN       string        `json:"vin" yaml:"vin"`
	Name      string        `json:"name" yaml:"name"`
	Model     string        `json:"model" yaml:"model"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
	User      *myskoda.User `json:"user,omitempty" yaml:"user,omitempty"`

	Status           *myskoda.Status           `json:"status,omitempty" yaml:"status,omitempty"`
	Charging         *myskoda.Charging         `json:"charging,omitempty" yaml:"charging,omitempty"`
	AirConditioning  *myskoda.AirConditioning  `json:"air_conditioning,omitempty" yaml:"air_conditioning,omitempty"`
	AuxiliaryHeating *myskoda.AuxiliaryHeating `json:"auxiliary_heating,omitempty" yaml:"auxiliary_heating,omitempty"`
	DrivingRange     *myskoda.DrivingRange     `json:"driving_range,omitempty" yaml:"driving_range,omitempty"`
	Health           *myskoda.Health           `json:"health,omitempty" yaml:"health,omitempty"`
	Maintenance      *myskoda.Maintenance      `json:"maintenance,omitempty" yaml:"maintenance,omitempty"`
	Positions        *myskoda.Positions        `json:"positions,omitempty" yaml:"positions,omitempty"`
	DepartureInfo    *myskoda.DepartureInfo    `json:"departure_info,omitempty" yaml:"departure_info,omitempty"`

	Operations    []*myskoda.OperationEvent `json:"operations,omitempty" yaml:"operations,omitempty"`
	ServiceEvents []*myskoda.Event          `json:"service_events,omitempty" yaml:"service_events,omitempty"`
}

func makeView(state model.State) stateView {
	v := stateView{
		VIN:              state.Vehicle.VIN,
		Name:             state.Vehicle.Info.Name,
		Model:            state.Vehicle.Info.Model,
		UpdatedAt:        state.Vehicle.UpdatedAt,
		User:             state.User,
		Status:           state.Vehicle.Status,
		Charging:         state.Vehicle.Charging,
		AirConditioning:  state.Vehicle.AirConditioning,
		AuxiliaryHeating: state.Vehicle.AuxiliaryHeating,
		DrivingRange:     state.Vehicle.DrivingRange,
		Health:           state.Vehicle.Health,
		Maintenance:      state.Vehicle.Maintenance,
		Positions:        state.Vehicle.Positions,
		DepartureInfo:    state.Vehicle.DepartureInfo,
	}
	if state.Operations != nil {
		v.Operations = state.Operations.All()
	}
	if state.ServiceEvents != nil {
		v.ServiceEvents = state.ServiceEvents.All()
	}
	return v
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) FormatState(w io.Writer, state model.State) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(makeView(state))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatState(w io.Writer, state model.State) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	return encoder.Encode(makeView(state))
}

// TextFormatter formats output as human-readable text
type TextFormatter struct{}

func (f *TextFormatter) FormatState(w io.Writer, state model.State) error {
	v := state.Vehicle

	name := v.Info.Name
	if name == "" {
		name = v.VIN
	}
	fmt.Fprintf(w, "Vehicle: %s (%s)\n", name, v.Info.Model)
	fmt.Fprintf(w, "VIN: %s\n", v.VIN)
	fmt.Fprintf(w, "Updated: %s\n", v.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\n")

	if v.DrivingRange != nil {
		fmt.Fprintf(w, "Battery: %d%% | Range: %d km\n",
			v.DrivingRange.PrimaryEngineSoC, v.DrivingRange.TotalRangeKM)
	}

	if v.Charging != nil && v.Charging.Status != nil {
		status := v.Charging.Status
		line := fmt.Sprintf("Charging: %s | Target: %d%%",
			status.State, v.Charging.Settings.TargetSoCPercent)
		if status.State == myskoda.ChargeStateCharging {
			line += fmt.Sprintf(" @ %.1f kW", status.ChargingPowerKW)
			if status.RemainingTimeMinutes != nil {
				line += fmt.Sprintf(" (%s remaining)",
					formatMinutes(*status.RemainingTimeMinutes))
			}
		}
		fmt.Fprintf(w, "%s\n", line)
	}
	fmt.Fprintf(w, "\n")

	if v.Status != nil {
		fmt.Fprintf(w, "Lock: %s\n", formatLockStatus(v.Status.Locked))
		fmt.Fprintf(w, "Doors: %s | Windows: %s | Trunk: %s\n",
			formatClosure(v.Status.DoorsOpen),
			formatClosure(v.Status.WindowsOpen),
			formatClosure(v.Status.TrunkOpen))
		fmt.Fprintf(w, "\n")
	}

	if v.AirConditioning != nil {
		fmt.Fprintf(w, "Climate: %s | Target: %.1f°C\n",
			v.AirConditioning.State, v.AirConditioning.TargetTemperatureC)
	}
	if v.AuxiliaryHeating != nil && v.AuxiliaryHeating.State != myskoda.AirConditioningStateOff {
		fmt.Fprintf(w, "Auxiliary heater: %s (%d min)\n",
			v.AuxiliaryHeating.State, v.AuxiliaryHeating.DurationMinutes)
	}

	if v.Positions != nil && len(v.Positions.Positions) > 0 {
		pos := v.Positions.Positions[0]
		fmt.Fprintf(w, "Location: %.4f, %.4f\n", pos.Latitude, pos.Longitude)
	}

	if v.Maintenance != nil {
		fmt.Fprintf(w, "Odometer: %d km | Inspection due in %d days\n",
			v.Maintenance.MileageKM, v.Maintenance.InspectionDueDays)
	}

	if v.DepartureInfo != nil && len(v.DepartureInfo.Timers) > 0 {
		fmt.Fprintf(w, "\nDeparture timers:\n")
		for _, timer := range v.DepartureInfo.Timers {
			fmt.Fprintf(w, "  %s at %s (%s)\n",
				formatEnabled(timer.Enabled), timer.Time, timer.Type)
		}
	}

	if state.Operations != nil && state.Operations.Len() > 0 {
		fmt.Fprintf(w, "\nRecent operations:\n")
		for _, op := range state.Operations.All() {
			fmt.Fprintf(w, "  %s: %s\n", op.Operation, op.Status)
		}
	}

	return nil
}

// TableFormatter formats output as one compact row per state, suitable for
// streaming updates.
type TableFormatter struct {
	headerWritten bool
}

func (f *TableFormatter) FormatState(w io.Writer, state model.State) error {
	if !f.headerWritten {
		fmt.Fprintf(w, "%-19s  %-7s  %-8s  %-8s  %-18s  %s\n",
			"TIMESTAMP", "BATTERY", "RANGE", "LOCK", "CHARGING", "CLIMATE")
		fmt.Fprintf(w, "%-19s  %-7s  %-8s  %-8s  %-18s  %s\n",
			"-------------------", "-------", "--------", "--------", "------------------", "-------")
		f.headerWritten = true
	}

	v := state.Vehicle

	battery, rangeKM := "-", "-"
	if v.DrivingRange != nil {
		battery = fmt.Sprintf("%d%%", v.DrivingRange.PrimaryEngineSoC)
		rangeKM = fmt.Sprintf("%dkm", v.DrivingRange.TotalRangeKM)
	}

	lock := "-"
	if v.Status != nil {
		lock = formatLockStatusShort(v.Status.Locked)
	}

	charging := "-"
	if v.Charging != nil && v.Charging.Status != nil {
		charging = string(v.Charging.Status.State)
	}

	climate := "-"
	if v.AirConditioning != nil {
		climate = string(v.AirConditioning.State)
	}

	fmt.Fprintf(w, "%-19s  %-7s  %-8s  %-8s  %-18s  %s\n",
		v.UpdatedAt.Format("2006-01-02 15:04:05"),
		battery, rangeKM, lock, charging, climate)

	return nil
}

// NewFormatter creates a formatter for the given format
func NewFormatter(format OutputFormat, pretty bool) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: pretty}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatText:
		return &TextFormatter{}, nil
	case FormatTable:
		return &TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// Helper functions

func formatLockStatus(locked bool) string {
	if locked {
		return "Locked"
	}
	return "Unlocked"
}

func formatLockStatusShort(locked bool) string {
	if locked {
		return "locked"
	}
	return "unlocked"
}

func formatClosure(open bool) string {
	if open {
		return "Open"
	}
	return "Closed"
}

func formatEnabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func formatMinutes(minutes int) string {
	if minutes < 0 {
		return "0m"
	}

	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
