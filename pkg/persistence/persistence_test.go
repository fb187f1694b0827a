package persistence

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-protocol/tosca-go/pkg/device"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

func storedLight() *device.Device {
	wifi := wire.MAC{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
	return device.FromData(device.NetworkInformation{
		Name:                 "light._tosca._tcp.local.",
		Addresses:            []net.IP{net.ParseIP("192.168.1.174")},
		Port:                 5000,
		Properties:           map[string]string{"scheme": "http"},
		LastReachableAddress: "http://192.168.1.174:5000",
	}, &wire.DeviceData{
		Kind:        wire.Light,
		Environment: wire.Os,
		WifiMac:     &wifi,
		MainRoute:   "light/",
		RouteConfigs: wire.RouteConfigs{
			{
				Name:         "On",
				Path:         "/on",
				Hazards:      hazard.New(hazard.ElectricEnergyConsumption),
				RestKind:     wire.Put,
				ResponseKind: wire.OkKind,
			},
			{
				Name: "Toggle",
				Path: "/toggle",
				Parameters: wire.NewParametersData().
					Add("brightness", wire.RangeU64(0, 20, 1, 0)),
				RestKind:     wire.Get,
				ResponseKind: wire.SerialKind,
			},
		},
		EventsDescription: &wire.EventsDescription{
			Broker: wire.BrokerData{Address: "192.168.1.10", Port: 1883},
			Topic:  "light/events/021122334455",
		},
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "devices.cbor"))

	devices := device.FromDevices([]*device.Device{storedLight()})
	require.NoError(t, store.Save(devices))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 1, loaded.Len())

	d := loaded.Get(0)
	assert.Equal(t, "light._tosca._tcp.local.", d.NetworkInfo().Name)
	assert.Equal(t, "http://192.168.1.174:5000", d.NetworkInfo().LastReachableAddress)
	assert.Equal(t, uint16(5000), d.NetworkInfo().Port)
	require.NotNil(t, d.NetworkInfo().WifiMac)
	assert.Equal(t, "02:11:22:33:44:55", d.NetworkInfo().WifiMac.String())

	assert.Equal(t, wire.Light, d.Description().Kind)
	assert.Equal(t, 2, d.RequestsCount())

	toggle := d.Request("/toggle")
	require.NotNil(t, toggle)
	assert.Equal(t, "http://192.168.1.174:5000/light/toggle", toggle.URL())
	assert.Equal(t, []string{"brightness"}, toggle.ParametersData().Names())

	require.True(t, d.HasEvents())
	assert.Equal(t, "light/events/021122334455", d.EventsMetadata().Topic)
}

func TestLoadMissingSnapshotReturnsNil(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.cbor"))

	devices, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, devices)
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "dir", "devices.cbor"))

	require.NoError(t, store.Save(device.NewDevices()))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0, loaded.Len())
}
