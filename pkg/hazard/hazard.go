// Package hazard defines the safety and privacy tags a device route may
// declare, plus a small set type used by the privacy policy.
package hazard

import "encoding/json"

// Hazard identifies a category of risk a device operation may pose.
type Hazard string

// All hazards known to the protocol. The set is open: devices may advertise
// hazards this controller build does not know about, and they still
// participate in policy evaluation as opaque tags.
const (
	AirPoisoning               Hazard = "AirPoisoning"
	Asphyxia                   Hazard = "Asphyxia"
	AudioVideoDisplay          Hazard = "AudioVideoDisplay"
	AudioVideoRecordAndStore   Hazard = "AudioVideoRecordAndStore"
	ElectricEnergyConsumption  Hazard = "ElectricEnergyConsumption"
	Explosion                  Hazard = "Explosion"
	FireHazard                 Hazard = "FireHazard"
	GasConsumption             Hazard = "GasConsumption"
	LogEnergyConsumption       Hazard = "LogEnergyConsumption"
	LogUsageTime               Hazard = "LogUsageTime"
	PaySubscriptionFee         Hazard = "PaySubscriptionFee"
	PowerOutage                Hazard = "PowerOutage"
	PowerSurge                 Hazard = "PowerSurge"
	RecordIssuedCommands       Hazard = "RecordIssuedCommands"
	RecordUserPreferences      Hazard = "RecordUserPreferences"
	SpendMoney                 Hazard = "SpendMoney"
	SpoiledFood                Hazard = "SpoiledFood"
	TakeDeviceScreenshots      Hazard = "TakeDeviceScreenshots"
	TakePictures               Hazard = "TakePictures"
	UnauthorisedPhysicalAccess Hazard = "UnauthorisedPhysicalAccess"
	VideoDisplay               Hazard = "VideoDisplay"
	VideoRecordAndStore        Hazard = "VideoRecordAndStore"
	WaterConsumption           Hazard = "WaterConsumption"
	WaterFlooding              Hazard = "WaterFlooding"
)

// String returns the hazard name.
func (h Hazard) String() string {
	return string(h)
}

// Hazards is a deduplicated set of Hazard preserving insertion order.
// The zero value is not usable; create one with New.
type Hazards struct {
	items []Hazard
	index map[Hazard]struct{}
}

// New creates an empty Hazards set.
func New(hazards ...Hazard) *Hazards {
	h := &Hazards{index: make(map[Hazard]struct{})}
	for _, hz := range hazards {
		h.Add(hz)
	}
	return h
}

// Add inserts a hazard, ignoring duplicates. Returns the set for chaining.
func (h *Hazards) Add(hazard Hazard) *Hazards {
	if _, ok := h.index[hazard]; ok {
		return h
	}
	h.index[hazard] = struct{}{}
	h.items = append(h.items, hazard)
	return h
}

// Contains reports whether the hazard is in the set.
func (h *Hazards) Contains(hazard Hazard) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[hazard]
	return ok
}

// Intersection returns a new set with the hazards present in both sets.
func (h *Hazards) Intersection(other *Hazards) *Hazards {
	result := New()
	if h == nil || other == nil {
		return result
	}
	for _, hz := range h.items {
		if other.Contains(hz) {
			result.Add(hz)
		}
	}
	return result
}

// IsEmpty reports whether the set has no hazards.
func (h *Hazards) IsEmpty() bool {
	return h == nil || len(h.items) == 0
}

// Len returns the number of hazards in the set.
func (h *Hazards) Len() int {
	if h == nil {
		return 0
	}
	return len(h.items)
}

// All returns the hazards in insertion order. The returned slice must not
// be modified.
func (h *Hazards) All() []Hazard {
	if h == nil {
		return nil
	}
	return h.items
}

// MarshalJSON encodes the set as a JSON array of hazard names.
func (h *Hazards) MarshalJSON() ([]byte, error) {
	if h == nil || len(h.items) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(h.items)
}

// UnmarshalJSON decodes a JSON array of hazard names, dropping duplicates.
func (h *Hazards) UnmarshalJSON(data []byte) error {
	var items []Hazard
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	h.items = nil
	h.index = make(map[Hazard]struct{})
	for _, hz := range items {
		h.Add(hz)
	}
	return nil
}
