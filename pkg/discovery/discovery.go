// Package discovery detects compliant devices on the local network.
//
// Devices announce themselves over mDNS. A discovery browses the
// configured service, collects resolved announcements until the network
// stays quiet for the configured timeout, deduplicates them, and then
// contacts every surviving announcement over HTTP to fetch its device
// descriptor and build the typed device model.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/tosca-protocol/tosca-go/pkg/device"
	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// defaultTopLevelDomain is the top-level domain a service is browsed in
// unless configured otherwise.
const defaultTopLevelDomain = "local"

// defaultTimeout is the quiet window ending a browse session: discovery
// stops when no announcement arrives for this long.
const defaultTimeout = 2 * time.Second

var httpClient = &http.Client{Timeout: 10 * time.Second}

// TransportProtocol is the transport a service is announced on.
type TransportProtocol int

const (
	// TCP service.
	TCP TransportProtocol = iota
	// UDP service.
	UDP
)

func (t TransportProtocol) String() string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// browseFunc matches zeroconf.Browse. Tests substitute their own.
type browseFunc func(
	ctx context.Context,
	service, domain string,
	entries chan<- *zeroconf.ServiceEntry,
	removed chan<- *zeroconf.ServiceEntry,
	opts ...zeroconf.ClientOption,
) error

// Discovery is a device discovery configuration.
type Discovery struct {
	domain             string
	transportProtocol  TransportProtocol
	topLevelDomain     string
	timeout            time.Duration
	disableIPv6        bool
	disabledIPs        []net.IP
	disabledInterfaces []string

	browse browseFunc
}

// New creates a Discovery for the given service domain with a TCP
// transport, the "local" top-level domain, and the default quiet window.
func New(domain string) *Discovery {
	return &Discovery{
		domain:            domain,
		transportProtocol: TCP,
		topLevelDomain:    defaultTopLevelDomain,
		timeout:           defaultTimeout,
		browse:            zeroconf.Browse,
	}
}

// Timeout sets the quiet window ending a browse session.
func (d *Discovery) Timeout(timeout time.Duration) *Discovery {
	d.timeout = timeout
	return d
}

// TransportProtocol sets the service transport protocol.
func (d *Discovery) TransportProtocol(transportProtocol TransportProtocol) *Discovery {
	d.transportProtocol = transportProtocol
	return d
}

// Domain changes the service domain.
func (d *Discovery) Domain(domain string) *Discovery {
	d.domain = domain
	return d
}

// TopLevelDomain sets the service top-level domain.
func (d *Discovery) TopLevelDomain(topLevelDomain string) *Discovery {
	d.topLevelDomain = topLevelDomain
	return d
}

// DisableIPv6 excludes IPv6 addresses from discovery.
func (d *Discovery) DisableIPv6() *Discovery {
	d.disableIPv6 = true
	return d
}

// DisableIP excludes the given address from discovery.
func (d *Discovery) DisableIP(ip net.IP) *Discovery {
	d.disabledIPs = append(d.disabledIPs, ip)
	return d
}

// DisableNetworkInterface excludes the given network interface from
// discovery.
func (d *Discovery) DisableNetworkInterface(name string) *Discovery {
	d.disabledInterfaces = append(d.disabledInterfaces, name)
	return d
}

// service returns the mDNS service to browse, e.g. "_tosca._tcp".
func (d *Discovery) service() string {
	return fmt.Sprintf("_%s._%s", d.domain, d.transportProtocol)
}

// resolvedService is one deduplicated announcement.
type resolvedService struct {
	fullname   string
	addresses  []net.IP
	port       uint16
	properties map[string]string
}

// Discover detects all available devices in the network.
func (d *Discovery) Discover(ctx context.Context) (*device.Devices, error) {
	services, err := d.discoverServices(ctx)
	if err != nil {
		return nil, err
	}
	return d.materializeDevices(ctx, services)
}

func (d *Discovery) clientOptions() ([]zeroconf.ClientOption, error) {
	if len(d.disabledInterfaces) == 0 {
		return nil, nil
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, errs.Wrap(errs.Discovery, err)
	}

	disabled := make(map[string]struct{}, len(d.disabledInterfaces))
	for _, name := range d.disabledInterfaces {
		disabled[name] = struct{}{}
	}

	selected := make([]net.Interface, 0, len(interfaces))
	for _, iface := range interfaces {
		if _, ok := disabled[iface.Name]; !ok {
			selected = append(selected, iface)
		}
	}

	return []zeroconf.ClientOption{zeroconf.SelectIfaces(selected)}, nil
}

// discoverServices browses the network until it stays quiet for the
// configured timeout. Every received announcement, duplicate or not,
// resets the quiet window.
func (d *Discovery) discoverServices(ctx context.Context) ([]resolvedService, error) {
	opts, err := d.clientOptions()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErrs := make(chan error, 1)

	go func() {
		browseErrs <- d.browse(ctx, d.service(), d.topLevelDomain+".", entries, removed, opts...)
	}()

	var services []resolvedService

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.timeout)
	}

	for {
		select {
		case <-timer.C:
			return services, nil
		case <-ctx.Done():
			return services, nil
		case err := <-browseErrs:
			// The browse session ended before the quiet window did.
			// A cancellation is the normal way it stops; anything
			// else is fatal for the whole discovery.
			if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				return nil, errs.Wrap(errs.Discovery, err)
			}
			return services, nil
		case <-removed:
			resetTimer()
		case entry, ok := <-entries:
			if !ok {
				return services, nil
			}
			resetTimer()

			service, ok := d.resolve(entry)
			if !ok {
				continue
			}
			if isDuplicate(services, service) {
				continue
			}
			services = append(services, service)
		}
	}
}

// resolve converts an announcement into a resolvedService, applying the
// configured address exclusions.
func (d *Discovery) resolve(entry *zeroconf.ServiceEntry) (resolvedService, bool) {
	fullname := fmt.Sprintf("%s.%s.%s.", entry.Instance, d.service(), d.topLevelDomain)

	var addresses []net.IP
	if !d.disableIPv6 {
		for _, ip := range entry.AddrIPv6 {
			if !d.ipDisabled(ip) {
				addresses = append(addresses, ip)
			}
		}
	}
	for _, ip := range entry.AddrIPv4 {
		if !d.ipDisabled(ip) {
			addresses = append(addresses, ip)
		}
	}

	if len(addresses) == 0 {
		slog.Warn("No device address available", "service", fullname)
		return resolvedService{}, false
	}

	return resolvedService{
		fullname:   fullname,
		addresses:  addresses,
		port:       uint16(entry.Port),
		properties: parseProperties(entry.Text),
	}, true
}

func (d *Discovery) ipDisabled(ip net.IP) bool {
	for _, disabled := range d.disabledIPs {
		if disabled.Equal(ip) {
			return true
		}
	}
	return false
}

func parseProperties(text []string) map[string]string {
	properties := make(map[string]string, len(text))
	for _, entry := range text {
		key, value, _ := strings.Cut(entry, "=")
		if key != "" {
			properties[key] = value
		}
	}
	return properties
}

// isDuplicate reports whether a resolved announcement describes an
// already known device.
//
// Two announcements describe the same device when they share the port
// and either have an address in common or carry the same full name.
// Devices in the same network cannot share an address and port pair, nor
// a full name, which acts as the device identifier. Announcements with
// distinct ports always describe distinct devices.
func isDuplicate(services []resolvedService, candidate resolvedService) bool {
	for _, service := range services {
		if service.port != candidate.port {
			continue
		}

		for _, address := range service.addresses {
			for _, other := range candidate.addresses {
				if address.Equal(other) {
					return true
				}
			}
		}

		if service.fullname == candidate.fullname {
			return true
		}
	}
	return false
}

// materializeDevices contacts every resolved announcement to fetch its
// device descriptor, trying each address until one answers. Devices
// without a MAC address are ignored: the MAC is the stable device
// identity.
func (d *Discovery) materializeDevices(ctx context.Context, services []resolvedService) (*device.Devices, error) {
	devices := device.NewDevices()

	for _, service := range services {
		scheme := service.properties["scheme"]
		if scheme == "" {
			scheme = "http"
		}

		for _, address := range service.addresses {
			completeAddress := device.BuildDeviceAddress(scheme, address, service.port)
			slog.Info("Complete address", "address", completeAddress)

			data, err := fetchDeviceData(ctx, completeAddress)
			if err != nil {
				if errs.IsKind(err, errs.Request) {
					return nil, err
				}
				slog.Warn("Impossible to contact address",
					"address", completeAddress, "error", err)
				continue
			}

			if !data.HasMAC() {
				slog.Warn("Ignoring device because no valid MAC addresses have been found",
					"address", completeAddress)
				continue
			}

			devices.Add(device.FromData(device.NetworkInformation{
				Name:                 service.fullname,
				Addresses:            service.addresses,
				Port:                 service.port,
				Properties:           service.properties,
				LastReachableAddress: completeAddress,
			}, data))

			// A single reachable address is enough.
			break
		}
	}

	return devices, nil
}

// fetchDeviceData fetches and decodes the descriptor a device serves at
// its base URL. Transport failures are plain errors so the caller can
// move on to the next address; a malformed descriptor is a Request error
// and aborts the discovery.
func fetchDeviceData(ctx context.Context, url string) (*wire.DeviceData, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	data, err := wire.DecodeDeviceData(response.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Request, err)
	}
	return data, nil
}
