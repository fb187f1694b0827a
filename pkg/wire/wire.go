// Package wire defines the JSON wire format a tosca device exposes to the
// controller: the device descriptor served at its base URL, the route and
// parameter schemas contained in it, and the fixed response body shapes.
//
// The controller only consumes this format; it is produced by the
// device-side route-declaration builder.
package wire

import (
	"encoding/json"
	"fmt"
)

// SerializationErrorHeader is the reserved response header a device sets
// when it failed to serialize a response body. The body then carries the
// error text instead of the declared payload.
const SerializationErrorHeader = "tosca-serialization-error"

// RestKind is the REST verb of a route.
type RestKind string

const (
	Get    RestKind = "Get"
	Put    RestKind = "Put"
	Post   RestKind = "Post"
	Delete RestKind = "Delete"
)

// Method returns the HTTP method for the verb.
func (k RestKind) Method() string {
	switch k {
	case Get:
		return "GET"
	case Put:
		return "PUT"
	case Post:
		return "POST"
	case Delete:
		return "DELETE"
	default:
		return ""
	}
}

// Valid reports whether the verb is one of the four supported kinds.
func (k RestKind) Valid() bool {
	return k.Method() != ""
}

// ResponseKind is the shape contract of a route's reply.
type ResponseKind string

const (
	// OkKind is a plain success marker.
	OkKind ResponseKind = "Ok"
	// SerialKind is a typed JSON payload chosen by the device operation.
	SerialKind ResponseKind = "Serial"
	// InfoKind is the fixed device-info payload (energy/economy).
	InfoKind ResponseKind = "Info"
	// StreamKind is a raw byte stream.
	StreamKind ResponseKind = "Stream"
)

// DeviceKind describes what a device is. The enumeration is extensible:
// unknown kinds are carried through as-is.
type DeviceKind string

const (
	Unknown DeviceKind = "Unknown"
	Light   DeviceKind = "Light"
)

// DeviceEnvironment is the runtime class of a device. It drives the
// request-building strategy on the controller side.
type DeviceEnvironment string

const (
	// Os marks devices running a general-purpose operating system.
	Os DeviceEnvironment = "Os"
	// Esp32 marks microcontroller-class devices.
	Esp32 DeviceEnvironment = "Esp32"
)

// MAC is a 6-byte hardware address. On the wire it is a JSON array of six
// numbers, matching the device descriptor format.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// MarshalJSON encodes the address as an array of numbers.
func (m MAC) MarshalJSON() ([]byte, error) {
	return json.Marshal([6]byte(m))
}

// UnmarshalJSON decodes an array of exactly six numbers.
func (m *MAC) UnmarshalJSON(data []byte) error {
	var raw []uint16
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 6 {
		return fmt.Errorf("mac address must have 6 bytes, got %d", len(raw))
	}
	for i, b := range raw {
		if b > 0xff {
			return fmt.Errorf("mac address byte %d out of range: %d", i, b)
		}
		m[i] = byte(b)
	}
	return nil
}
