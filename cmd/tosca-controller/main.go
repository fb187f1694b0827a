// Command tosca-controller is a reference tosca controller implementation.
//
// This command demonstrates a complete controller runtime with:
//   - CLI argument parsing
//   - Configuration file support
//   - mDNS device discovery
//   - Privacy-policy gated request sending
//   - MQTT event receivers
//   - Interactive command interface
//
// Usage:
//
//	tosca-controller [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-log-level string   Log level: debug, info, warn, error
//	-log-format string  Log format: text, json
//	-state string       Snapshot file for persisting discovered devices
//	-discover           Discover devices before entering interactive mode
//
// Examples:
//
//	# Start the controller and discover devices right away
//	tosca-controller -discover
//
//	# Start with a configuration file and debug logging
//	tosca-controller -config controller.yaml -log-level debug
//
//	# Start with persistence (remembers devices across restarts)
//	tosca-controller -state /var/lib/tosca/devices.cbor
//
// Interactive Commands:
//
//	discover    - Discover devices in the network
//	devices     - List discovered devices
//	info <id>   - Show the routes of a device
//	send <id> <route> [k=v ...] - Send a request to a device
//	events      - Start event receivers for all capable devices
//	policy      - Inspect or change the privacy policy
//	save        - Snapshot the devices to disk
//	load        - Rebuild the devices from the snapshot
//	quit        - Exit the controller
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tosca-protocol/tosca-go/cmd/tosca-controller/interactive"
	"github.com/tosca-protocol/tosca-go/internal/logging"
	"github.com/tosca-protocol/tosca-go/pkg/config"
	"github.com/tosca-protocol/tosca-go/pkg/controller"
	"github.com/tosca-protocol/tosca-go/pkg/persistence"
)

var flags struct {
	configFile string
	logLevel   string
	logFormat  string
	statePath  string
	discover   bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.logFormat, "log-format", "", "Log format: text, json")
	flag.StringVar(&flags.statePath, "state", "", "Snapshot file for persisting discovered devices")
	flag.BoolVar(&flags.discover, "discover", false, "Discover devices before entering interactive mode")
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags win over the configuration file.
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.statePath != "" {
		cfg.Persistence.Path = flags.statePath
	}

	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}

	disc, err := cfg.BuildDiscovery()
	if err != nil {
		slog.Error("Invalid discovery configuration", "error", err)
		os.Exit(1)
	}

	ctrl := controller.New(disc).WithPolicy(cfg.BuildPolicy())

	var store *persistence.Store
	if cfg.Persistence.Path != "" {
		store = persistence.NewStore(cfg.Persistence.Path)
		devices, err := store.Load()
		if err != nil {
			slog.Warn("Failed to load the device snapshot", "error", err)
		} else if devices != nil {
			slog.Info("Restored devices from snapshot", "count", devices.Len())
			ctrl.ReplaceDevices(devices)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flags.discover {
		slog.Info("Discovering devices...")
		if err := ctrl.Discover(ctx); err != nil {
			slog.Error("Discovery failed", "error", err)
		} else {
			slog.Info("Discovery finished", "count", ctrl.Devices().Len())
		}
	}

	ic, err := interactive.New(ctrl, store, cfg.Events.BufferSize)
	if err != nil {
		slog.Error("Failed to create the interactive controller", "error", err)
		os.Exit(1)
	}
	go ic.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")

	if store != nil && !ctrl.Devices().IsEmpty() {
		if err := store.Save(ctrl.Devices()); err != nil {
			slog.Warn("Failed to save the device snapshot", "error", err)
		}
	}

	cancel()
	ctrl.Shutdown()
}
