package model

import (
	"github.com/mhoffs/skoda-watch/internal/myskoda"
)

// Config is the coordinator's small mutable sub-config. It survives across
// refresh cycles, unlike per-run configuration which lives in the config file.
type Config struct {
	// AuxiliaryHeaterDurationMinutes overrides the heater run time for the
	// start-auxiliary-heating command. nil means vehicle default.
	AuxiliaryHeaterDurationMinutes *int
}

// State is the complete tuple published to observers. Exactly one State is
// current at any time per vehicle; observers receive a clone on every publish
// and never see a mid-mutation view.
type State struct {
	Vehicle       Vehicle
	User          *myskoda.User
	Config        Config
	Operations    *Operations
	ServiceEvents *ServiceEvents
}

// Clone copies the aggregate so observers do not alias the coordinator's
// mutable history containers. Sub-resource pointers are shared and must be
// treated as read-only by observers.
func (s State) Clone() State {
	clone := s
	if s.Operations != nil {
		clone.Operations = s.Operations.Clone()
	}
	if s.ServiceEvents != nil {
		clone.ServiceEvents = s.ServiceEvents.Clone()
	}
	return clone
}
