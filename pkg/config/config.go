// Package config loads the controller configuration from a YAML file
// and builds the runtime pieces it describes.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tosca-protocol/tosca-go/pkg/discovery"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/policy"
)

// Config holds the controller configuration.
type Config struct {
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Policy      PolicyConfig      `yaml:"policy"`
	Events      EventsConfig      `yaml:"events"`
	Logging     LoggingConfig     `yaml:"logging"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// DiscoveryConfig configures the mDNS discovery.
type DiscoveryConfig struct {
	// Domain is the service domain to browse, e.g. "tosca".
	Domain string `yaml:"domain"`
	// TransportProtocol is "tcp" or "udp".
	TransportProtocol string `yaml:"transport_protocol"`
	// TopLevelDomain is the service top-level domain.
	TopLevelDomain string `yaml:"top_level_domain"`
	// Timeout is the quiet window ending a browse session, e.g. "2s".
	Timeout string `yaml:"timeout"`
	// DisableIPv6 excludes IPv6 addresses from discovery.
	DisableIPv6 bool `yaml:"disable_ipv6"`
	// DisabledIPs are addresses excluded from discovery.
	DisabledIPs []string `yaml:"disabled_ips"`
	// DisabledInterfaces are network interfaces excluded from discovery.
	DisabledInterfaces []string `yaml:"disabled_interfaces"`
}

// PolicyConfig configures the privacy policy.
type PolicyConfig struct {
	// GlobalBlockedHazards are hazards blocked on every device.
	GlobalBlockedHazards []string `yaml:"global_blocked_hazards"`
	// DeviceBlockedHazards are hazards blocked per device identifier.
	DeviceBlockedHazards map[int][]string `yaml:"device_blocked_hazards"`
}

// EventsConfig configures the event receivers.
type EventsConfig struct {
	// BufferSize is how many payloads the shared event channel holds.
	BufferSize int `yaml:"buffer_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// PersistenceConfig configures the device snapshot store.
type PersistenceConfig struct {
	// Path is where the snapshot file lives. Empty disables persistence.
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Discovery: DiscoveryConfig{
			Domain:            "tosca",
			TransportProtocol: "tcp",
			TopLevelDomain:    "local",
			Timeout:           "2s",
		},
		Events:  EventsConfig{BufferSize: 32},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file, overlaying it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// BuildDiscovery builds the discovery the configuration describes.
func (c Config) BuildDiscovery() (*discovery.Discovery, error) {
	d := discovery.New(c.Discovery.Domain)

	switch c.Discovery.TransportProtocol {
	case "", "tcp":
	case "udp":
		d.TransportProtocol(discovery.UDP)
	default:
		return nil, fmt.Errorf("unknown transport protocol %q", c.Discovery.TransportProtocol)
	}

	if c.Discovery.TopLevelDomain != "" {
		d.TopLevelDomain(c.Discovery.TopLevelDomain)
	}

	if c.Discovery.Timeout != "" {
		timeout, err := time.ParseDuration(c.Discovery.Timeout)
		if err != nil {
			return nil, fmt.Errorf("discovery timeout: %w", err)
		}
		d.Timeout(timeout)
	}

	if c.Discovery.DisableIPv6 {
		d.DisableIPv6()
	}
	for _, raw := range c.Discovery.DisabledIPs {
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid disabled IP %q", raw)
		}
		d.DisableIP(ip)
	}
	for _, name := range c.Discovery.DisabledInterfaces {
		d.DisableNetworkInterface(name)
	}

	return d, nil
}

// BuildPolicy builds the privacy policy the configuration describes.
func (c Config) BuildPolicy() *policy.Policy {
	p := policy.New(toHazards(c.Policy.GlobalBlockedHazards))
	for id, names := range c.Policy.DeviceBlockedHazards {
		p.BlockDeviceOnHazards(id, toHazards(names))
	}
	return p
}

func toHazards(names []string) *hazard.Hazards {
	hazards := hazard.New()
	for _, name := range names {
		hazards.Add(hazard.Hazard(name))
	}
	return hazards
}
