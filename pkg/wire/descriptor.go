package wire

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tosca-protocol/tosca-go/pkg/hazard"
)

// RouteConfig is one route declaration from the device descriptor.
type RouteConfig struct {
	// Name is the route display name.
	Name string `json:"name"`
	// Path is the route suffix, e.g. "/on". It is unique per device and
	// keys the controller's request map.
	Path string `json:"path"`
	// Description is an optional human description.
	Description string `json:"description,omitempty"`
	// Hazards are the risks the route declares.
	Hazards *hazard.Hazards `json:"hazards,omitempty"`
	// Parameters is the route input parameter schema.
	Parameters *ParametersData `json:"parameters,omitempty"`
	// RestKind is the REST verb.
	RestKind RestKind `json:"REST kind"`
	// ResponseKind is the reply shape contract.
	ResponseKind ResponseKind `json:"response kind"`
}

// RouteConfigs is the set of routes a device declares.
type RouteConfigs []RouteConfig

// BrokerData locates the message broker a device publishes events to.
type BrokerData struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
}

// EventKind is the value type of a declared event.
type EventKind string

const (
	BoolEvent EventKind = "Bool"
	U8Event   EventKind = "U8"
	I32Event  EventKind = "I32"
	F32Event  EventKind = "F32"
	F64Event  EventKind = "F64"
)

// EventConfig declares one event a device can emit.
type EventConfig struct {
	Name string    `json:"name"`
	Kind EventKind `json:"kind"`
}

// EventsDescription is the event capability block of a device descriptor:
// where to subscribe and what the device emits there.
type EventsDescription struct {
	Broker BrokerData    `json:"broker"`
	Topic  string        `json:"topic"`
	Events []EventConfig `json:"events,omitempty"`
}

// Event is one event value inside a published snapshot.
type Event struct {
	Name  string    `json:"name"`
	Kind  EventKind `json:"kind"`
	Value any       `json:"value"`
}

// Events is the JSON snapshot a device publishes to its broker topic.
type Events []Event

// DeviceData is the device descriptor fetched over HTTP from a device's
// base URL.
type DeviceData struct {
	// Kind is the device kind.
	Kind DeviceKind `json:"kind"`
	// Environment is the device runtime class.
	Environment DeviceEnvironment `json:"environment"`
	// Description is an optional human description.
	Description string `json:"description,omitempty"`
	// WifiMac is the Wi-Fi MAC address, if any.
	WifiMac *MAC `json:"wifi_mac,omitempty"`
	// EthernetMac is the Ethernet MAC address, if any.
	EthernetMac *MAC `json:"ethernet_mac,omitempty"`
	// MainRoute is the prefix every route path hangs off.
	MainRoute string `json:"main route"`
	// RouteConfigs lists every route the device serves.
	RouteConfigs RouteConfigs `json:"route_configs"`
	// MandatoryRoutes is how many of the routes the device-side builder
	// marked mandatory.
	MandatoryRoutes uint8 `json:"mandatory_routes"`
	// EventsDescription is present iff the device supports events.
	EventsDescription *EventsDescription `json:"events_description,omitempty"`
}

// HasMAC reports whether the descriptor carries at least one MAC address.
// A MAC is the de-facto stable device identity: discovery rejects devices
// without one.
func (d *DeviceData) HasMAC() bool {
	return d.WifiMac != nil || d.EthernetMac != nil
}

// DecodeDeviceData reads and validates a device descriptor.
func DecodeDeviceData(r io.Reader) (*DeviceData, error) {
	var data DeviceData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}
	if int(data.MandatoryRoutes) > len(data.RouteConfigs) {
		return nil, fmt.Errorf("descriptor declares %d mandatory routes but only %d routes",
			data.MandatoryRoutes, len(data.RouteConfigs))
	}
	for _, rc := range data.RouteConfigs {
		if !rc.RestKind.Valid() {
			return nil, fmt.Errorf("route %q: unknown REST kind %q", rc.Path, rc.RestKind)
		}
	}
	return &data, nil
}
