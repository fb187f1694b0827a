package device

import (
	"fmt"
	"net"
	"strconv"

	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// BuildDeviceAddress builds the base URL used to contact a device at one
// of its addresses.
func BuildDeviceAddress(scheme string, address net.IP, port uint16) string {
	return fmt.Sprintf("%s://%s", scheme,
		net.JoinHostPort(address.String(), strconv.Itoa(int(port))))
}

// NetworkInformation is everything needed to contact a device in a
// network.
type NetworkInformation struct {
	// Name is the complete service name the device announced.
	Name string
	// Addresses are all addresses the device resolved to.
	Addresses []net.IP
	// WifiMac is the Wi-Fi MAC address, if any.
	WifiMac *wire.MAC
	// EthernetMac is the Ethernet MAC address, if any.
	EthernetMac *wire.MAC
	// Port is the device port.
	Port uint16
	// Properties are the TXT properties the device announced.
	Properties map[string]string
	// LastReachableAddress is the base URL the device last answered on.
	LastReachableAddress string
}

// Description collects the properties describing what a device is.
type Description struct {
	// Kind is the device kind.
	Kind wire.DeviceKind
	// Environment is the device runtime class.
	Environment wire.DeviceEnvironment
	// MainRoute is the prefix every route path hangs off.
	MainRoute string
}
