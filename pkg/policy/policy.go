// Package policy implements the privacy policy deciding which requests
// the controller refuses to send.
//
// A policy blocks hazards globally, for every device, or locally, for a
// single device identified by its controller identifier. A request is
// skipped when any of its declared hazards is blocked; a request without
// hazards is never skipped.
package policy

import (
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
)

// Policy is a privacy policy over device hazards.
type Policy struct {
	global *hazard.Hazards
	local  map[int]*hazard.Hazards
}

// Init creates an empty policy blocking nothing.
func Init() *Policy {
	return &Policy{
		global: hazard.New(),
		local:  make(map[int]*hazard.Hazards),
	}
}

// New creates a policy blocking the given hazards on every device.
func New(global *hazard.Hazards) *Policy {
	p := Init()
	if global != nil {
		p.global = global
	}
	return p
}

// BlockDeviceOnHazards blocks the given hazards on the device with the
// given identifier, replacing a previous local block for that device.
func (p *Policy) BlockDeviceOnHazards(id int, hazards *hazard.Hazards) *Policy {
	p.local[id] = hazards
	return p
}

// GlobalBlockedHazards returns the intersection between the globally
// blocked hazards and the given ones.
func (p *Policy) GlobalBlockedHazards(hazards *hazard.Hazards) *hazard.Hazards {
	return p.global.Intersection(hazards)
}

// LocalBlockedHazards returns the intersection between the hazards
// blocked on the device with the given identifier and the given ones.
func (p *Policy) LocalBlockedHazards(id int, hazards *hazard.Hazards) *hazard.Hazards {
	return p.local[id].Intersection(hazards)
}
