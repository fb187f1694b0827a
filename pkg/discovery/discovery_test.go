package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

func fakeBrowse(sent []*zeroconf.ServiceEntry) browseFunc {
	return func(
		ctx context.Context,
		service, domain string,
		entries chan<- *zeroconf.ServiceEntry,
		removed chan<- *zeroconf.ServiceEntry,
		opts ...zeroconf.ClientOption,
	) error {
		for _, entry := range sent {
			select {
			case entries <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return nil
	}
}

func entry(instance string, port int, ipv4 []string, text ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  "_tosca._tcp",
			Domain:   "local.",
		},
	}
	e.Port = port
	e.Text = text
	for _, ip := range ipv4 {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(ip))
	}
	return e
}

func TestDiscoveryDefaults(t *testing.T) {
	d := New("tosca")

	assert.Equal(t, "_tosca._tcp", d.service())
	assert.Equal(t, defaultTopLevelDomain, d.topLevelDomain)
	assert.Equal(t, defaultTimeout, d.timeout)
}

func TestDiscoveryConfiguration(t *testing.T) {
	d := New("tosca").
		Timeout(time.Second).
		TransportProtocol(UDP).
		TopLevelDomain("home").
		DisableIPv6().
		DisableIP(net.ParseIP("192.168.1.50")).
		DisableNetworkInterface("docker0")

	assert.Equal(t, "_tosca._udp", d.service())
	assert.Equal(t, "home", d.topLevelDomain)
	assert.True(t, d.disableIPv6)
	assert.Equal(t, []string{"docker0"}, d.disabledInterfaces)
}

func TestDiscoverServicesDeduplicates(t *testing.T) {
	d := New("tosca").Timeout(50 * time.Millisecond)
	d.browse = fakeBrowse([]*zeroconf.ServiceEntry{
		entry("device1", 5000, []string{"192.168.1.174"}),
		// Same port and a shared address: duplicate.
		entry("device1-dup", 5000, []string{"192.168.1.174", "192.168.1.200"}),
		// Same port and the same instance, no shared address: duplicate.
		entry("device1", 5000, []string{"192.168.1.201"}),
		// Same address but a distinct port: a different device.
		entry("device2", 5500, []string{"192.168.1.174"}),
	})

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)

	require.Len(t, services, 2)
	assert.Equal(t, "device1._tosca._tcp.local.", services[0].fullname)
	assert.Equal(t, uint16(5000), services[0].port)
	assert.Equal(t, "device2._tosca._tcp.local.", services[1].fullname)
	assert.Equal(t, uint16(5500), services[1].port)
}

func TestDiscoverServicesFailsWhenBrowseFails(t *testing.T) {
	d := New("tosca").Timeout(50 * time.Millisecond)
	d.browse = func(
		ctx context.Context,
		service, domain string,
		entries chan<- *zeroconf.ServiceEntry,
		removed chan<- *zeroconf.ServiceEntry,
		opts ...zeroconf.ClientOption,
	) error {
		return errors.New("failed to open client sockets")
	}

	_, err := d.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Discovery))
	assert.ErrorContains(t, err, "failed to open client sockets")
}

func TestDiscoverServicesStopsWhenBrowseEnds(t *testing.T) {
	// A browse session ending without an error closes the quiet window
	// early, keeping what was collected so far.
	d := New("tosca").Timeout(time.Hour)
	d.browse = func(
		ctx context.Context,
		service, domain string,
		entries chan<- *zeroconf.ServiceEntry,
		removed chan<- *zeroconf.ServiceEntry,
		opts ...zeroconf.ClientOption,
	) error {
		select {
		case entries <- entry("device1", 5000, []string{"192.168.1.174"}):
		case <-ctx.Done():
		}
		return nil
	}

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 1)
}

func TestDiscoverServicesSkipsEntriesWithoutAddresses(t *testing.T) {
	d := New("tosca").Timeout(50 * time.Millisecond)
	d.browse = fakeBrowse([]*zeroconf.ServiceEntry{
		entry("device1", 5000, nil),
	})

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestDiscoverServicesAppliesIPExclusions(t *testing.T) {
	d := New("tosca").
		Timeout(50 * time.Millisecond).
		DisableIP(net.ParseIP("192.168.1.174"))
	d.browse = fakeBrowse([]*zeroconf.ServiceEntry{
		entry("device1", 5000, []string{"192.168.1.174", "192.168.1.175"}),
	})

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)

	require.Len(t, services, 1)
	require.Len(t, services[0].addresses, 1)
	assert.Equal(t, "192.168.1.175", services[0].addresses[0].String())
}

func TestDiscoverServicesFiltersIPv6(t *testing.T) {
	d := New("tosca").Timeout(50 * time.Millisecond).DisableIPv6()
	e := entry("device1", 5000, []string{"192.168.1.174"})
	e.AddrIPv6 = append(e.AddrIPv6, net.ParseIP("fe80::1"))
	d.browse = fakeBrowse([]*zeroconf.ServiceEntry{e})

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)

	require.Len(t, services, 1)
	require.Len(t, services[0].addresses, 1)
	assert.Equal(t, "192.168.1.174", services[0].addresses[0].String())
}

func TestDiscoverServicesParsesProperties(t *testing.T) {
	d := New("tosca").Timeout(50 * time.Millisecond)
	d.browse = fakeBrowse([]*zeroconf.ServiceEntry{
		entry("device1", 5000, []string{"192.168.1.174"}, "scheme=https", "version=1"),
	})

	services, err := d.discoverServices(context.Background())
	require.NoError(t, err)

	require.Len(t, services, 1)
	assert.Equal(t, "https", services[0].properties["scheme"])
	assert.Equal(t, "1", services[0].properties["version"])
}

const descriptorBody = `{
	"kind": "Light",
	"environment": "Os",
	"wifi_mac": [2, 17, 34, 51, 68, 85],
	"main route": "light/",
	"route_configs": [
		{"name": "On", "path": "/on", "REST kind": "Put", "response kind": "Ok"}
	],
	"mandatory_routes": 1
}`

func serverService(t *testing.T, server *httptest.Server, fullname string) resolvedService {
	t.Helper()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	return resolvedService{
		fullname:   fullname,
		addresses:  []net.IP{net.ParseIP(parsed.Hostname())},
		port:       uint16(port),
		properties: map[string]string{"scheme": "http"},
	}
}

func TestMaterializeDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(descriptorBody))
	}))
	defer server.Close()

	d := New("tosca")
	devices, err := d.materializeDevices(context.Background(), []resolvedService{
		serverService(t, server, "device1._tosca._tcp.local."),
	})
	require.NoError(t, err)

	require.Equal(t, 1, devices.Len())
	found := devices.Get(0)
	assert.Equal(t, wire.Light, found.Description().Kind)
	assert.Equal(t, "device1._tosca._tcp.local.", found.NetworkInfo().Name)
	assert.Equal(t, server.URL, found.NetworkInfo().LastReachableAddress)
	require.NotNil(t, found.Request("/on"))
}

func TestMaterializeDevicesIgnoresDevicesWithoutMAC(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"kind": "Light",
			"environment": "Os",
			"main route": "light/",
			"route_configs": [],
			"mandatory_routes": 0
		}`))
	}))
	defer server.Close()

	d := New("tosca")
	devices, err := d.materializeDevices(context.Background(), []resolvedService{
		serverService(t, server, "device1._tosca._tcp.local."),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, devices.Len())
}

func TestMaterializeDevicesSkipsUnreachableAnnouncements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(descriptorBody))
	}))
	server.Close()

	d := New("tosca")
	devices, err := d.materializeDevices(context.Background(), []resolvedService{
		serverService(t, server, "device1._tosca._tcp.local."),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, devices.Len())
}
