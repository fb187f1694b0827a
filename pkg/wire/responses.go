package wire

// OkResponse is the fixed success marker an Ok-kind route returns.
type OkResponse struct {
	OK bool `json:"ok"`
}

// OkMarker returns the expected success marker value.
func OkMarker() OkResponse {
	return OkResponse{OK: true}
}

// EnergyEfficiency is one energy efficiency entry with its class.
type EnergyEfficiency struct {
	Value int64  `json:"value"`
	Class string `json:"class"`
}

// CarbonFootprint is one carbon footprint entry with its class.
type CarbonFootprint struct {
	Value int64  `json:"value"`
	Class string `json:"class"`
}

// WaterUseEfficiency collects water efficiency metrics.
type WaterUseEfficiency struct {
	GPP                    float64 `json:"gpp,omitempty"`
	PenmanMonteithEquation float64 `json:"penman_monteith_equation,omitempty"`
	WER                    float64 `json:"wer,omitempty"`
}

// Energy is the energy block of a device-info response.
type Energy struct {
	EnergyEfficiencies []EnergyEfficiency  `json:"energy_efficiencies,omitempty"`
	CarbonFootprints   []CarbonFootprint   `json:"carbon_footprints,omitempty"`
	WaterUseEfficiency *WaterUseEfficiency `json:"water_use_efficiency,omitempty"`
}

// CostTimespan is the billing period of a cost entry.
type CostTimespan string

const (
	CostDay   CostTimespan = "Day"
	CostWeek  CostTimespan = "Week"
	CostMonth CostTimespan = "Month"
	CostYear  CostTimespan = "Year"
)

// Cost is one running cost entry.
type Cost struct {
	Value    uint64       `json:"value"`
	Timespan CostTimespan `json:"timespan"`
}

// Roi is one return-on-investment entry with its energy class.
type Roi struct {
	Value uint64 `json:"value"`
	Class string `json:"class"`
}

// Economy is the economy block of a device-info response.
type Economy struct {
	Costs []Cost `json:"costs,omitempty"`
	Rois  []Roi  `json:"roi,omitempty"`
}

// DeviceInfo is the fixed payload of an Info-kind route: the device's
// energy and economy information.
type DeviceInfo struct {
	Energy  Energy  `json:"energy,omitempty"`
	Economy Economy `json:"economy,omitempty"`
}
