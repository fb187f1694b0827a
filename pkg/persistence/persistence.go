// Package persistence snapshots the discovered device collection to
// disk, so a controller can come back up without re-running discovery.
//
// Snapshots are CBOR files. The device descriptor travels inside the
// snapshot verbatim, in its JSON wire form, and devices are rebuilt from
// it exactly as discovery builds them.
package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/tosca-protocol/tosca-go/pkg/device"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// Store manages persistence of the device collection to a CBOR file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store writing to the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

type snapshot struct {
	Version int            `cbor:"version"`
	SavedAt time.Time      `cbor:"saved_at"`
	Devices []deviceRecord `cbor:"devices,omitempty"`
}

type deviceRecord struct {
	Name                 string            `cbor:"name"`
	Addresses            []string          `cbor:"addresses,omitempty"`
	Port                 uint16            `cbor:"port"`
	Properties           map[string]string `cbor:"properties,omitempty"`
	LastReachableAddress string            `cbor:"last_reachable_address"`
	// Descriptor is the device descriptor in its JSON wire form.
	Descriptor []byte `cbor:"descriptor"`
}

// Save persists the device collection to disk. The write is atomic: a
// crash never leaves a truncated snapshot behind.
func (s *Store) Save(devices *device.Devices) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now(),
	}

	for _, d := range devices.All() {
		record, err := recordDevice(d)
		if err != nil {
			return err
		}
		snap.Devices = append(snap.Devices, record)
	}

	data, err := cbor.Marshal(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the device collection from disk. It returns nil, nil when
// no snapshot exists.
func (s *Store) Load() (*device.Devices, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	devices := device.NewDevices()
	for _, record := range snap.Devices {
		d, err := restoreDevice(record)
		if err != nil {
			return nil, err
		}
		devices.Add(d)
	}
	return devices, nil
}

func recordDevice(d *device.Device) (deviceRecord, error) {
	networkInfo := d.NetworkInfo()
	description := d.Description()

	descriptor, err := json.Marshal(&wire.DeviceData{
		Kind:              description.Kind,
		Environment:       description.Environment,
		WifiMac:           networkInfo.WifiMac,
		EthernetMac:       networkInfo.EthernetMac,
		MainRoute:         description.MainRoute,
		RouteConfigs:      d.RouteConfigs(),
		EventsDescription: d.EventsMetadata(),
	})
	if err != nil {
		return deviceRecord{}, err
	}

	addresses := make([]string, 0, len(networkInfo.Addresses))
	for _, address := range networkInfo.Addresses {
		addresses = append(addresses, address.String())
	}

	return deviceRecord{
		Name:                 networkInfo.Name,
		Addresses:            addresses,
		Port:                 networkInfo.Port,
		Properties:           networkInfo.Properties,
		LastReachableAddress: networkInfo.LastReachableAddress,
		Descriptor:           descriptor,
	}, nil
}

func restoreDevice(record deviceRecord) (*device.Device, error) {
	data, err := wire.DecodeDeviceData(bytes.NewReader(record.Descriptor))
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", record.Name, err)
	}

	addresses := make([]net.IP, 0, len(record.Addresses))
	for _, address := range record.Addresses {
		if ip := net.ParseIP(address); ip != nil {
			addresses = append(addresses, ip)
		}
	}

	return device.FromData(device.NetworkInformation{
		Name:                 record.Name,
		Addresses:            addresses,
		Port:                 record.Port,
		Properties:           record.Properties,
		LastReachableAddress: record.LastReachableAddress,
	}, data), nil
}
