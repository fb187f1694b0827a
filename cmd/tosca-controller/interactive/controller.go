// Package interactive provides the interactive command-line interface
// for the tosca controller.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tosca-protocol/tosca-go/pkg/controller"
	"github.com/tosca-protocol/tosca-go/pkg/device"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/persistence"
	"github.com/tosca-protocol/tosca-go/pkg/policy"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// Controller handles interactive mode for tosca-controller.
type Controller struct {
	ctrl  *controller.Controller
	store *persistence.Store
	rl    *readline.Instance

	// Policy building blocks, so blocks can be added incrementally.
	globalHazards *hazard.Hazards
	localHazards  map[int]*hazard.Hazards

	eventsBufferSize int
	eventsRunning    bool
}

// New creates a new interactive controller handler. The store may be nil
// when persistence is disabled.
func New(ctrl *controller.Controller, store *persistence.Store, eventsBufferSize int) (*Controller, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tosca> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Controller{
		ctrl:             ctrl,
		store:            store,
		rl:               rl,
		globalHazards:    hazard.New(),
		localHazards:     make(map[int]*hazard.Hazards),
		eventsBufferSize: eventsBufferSize,
	}, nil
}

// Stdout returns a writer that coordinates with the readline input.
func (c *Controller) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Controller) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "discover", "d":
			c.cmdDiscover(ctx)

		case "devices", "list", "l":
			c.cmdDevices()

		case "info", "i":
			c.cmdInfo(args)

		case "send", "s":
			c.cmdSend(ctx, args)

		case "events", "e":
			c.cmdEvents(ctx, args)

		case "policy", "p":
			c.cmdPolicy(args)

		case "save":
			c.cmdSave()

		case "load":
			c.cmdLoad()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Controller) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
tosca Controller Commands:
  Discovery:
    discover                     - Discover devices in the network
    devices                      - List discovered devices
    info <id>                    - Show the routes of a device

  Requests:
    send <id> <route> [k=v ...]  - Send a request, optionally with parameters

  Events:
    events                       - Start event receivers for all capable devices
    events stop                  - Stop the running event receivers

  Policy:
    policy                       - Show the active policy blocks
    policy block <hazard>        - Block a hazard on every device
    policy block <id> <hazard>   - Block a hazard on one device
    policy clear                 - Remove every block

  Persistence:
    save                         - Snapshot the devices to disk
    load                         - Rebuild the devices from the snapshot

  quit                           - Exit the controller`)
}

func (c *Controller) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(c.rl.Stdout(), "Discovering devices...")
	if err := c.ctrl.Discover(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery failed: %v\n", err)
		return
	}
	c.eventsRunning = false
	fmt.Fprintf(c.rl.Stdout(), "Found %d device(s)\n", c.ctrl.Devices().Len())
}

func (c *Controller) cmdDevices() {
	devices := c.ctrl.Devices()
	if devices.IsEmpty() {
		fmt.Fprintln(c.rl.Stdout(), "No devices found.")
		return
	}

	for id, d := range devices.All() {
		info := d.NetworkInfo()
		events := ""
		if d.HasEvents() {
			events = " [events]"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d: %s (%s) at %s, %d route(s)%s\n",
			id, info.Name, d.Description().Kind, info.LastReachableAddress,
			d.RequestsCount(), events)
	}
}

func (c *Controller) cmdInfo(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: info <id>")
		return
	}

	d, ok := c.lookupDevice(args[0])
	if !ok {
		return
	}

	for _, info := range d.RequestsInfo() {
		fmt.Fprintf(c.rl.Stdout(), "  %s %s (%s -> %s)\n",
			info.RestKind, info.Route, info.Name, info.ResponseKind)
		if info.Description != "" {
			fmt.Fprintf(c.rl.Stdout(), "      %s\n", info.Description)
		}
		if !info.Hazards.IsEmpty() {
			fmt.Fprintf(c.rl.Stdout(), "      hazards: %v\n", info.Hazards.All())
		}
		for _, name := range info.ParametersData.Names() {
			kind, _ := info.ParametersData.Get(name)
			fmt.Fprintf(c.rl.Stdout(), "      parameter %s: %s (default %s)\n",
				name, kind.AsType(), kind.DefaultString())
		}
	}
}

func (c *Controller) cmdSend(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <id> <route> [name=value ...]")
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid device id %q\n", args[0])
		return
	}

	sender, err := c.ctrl.Device(id)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	route := args[1]
	request, err := sender.Request(route)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	var response *device.Response
	if len(args) > 2 {
		values, err := c.parseValues(sender.Device(), route, args[2:])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		response, err = request.SendWithValues(ctx, values)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
	} else {
		response, err = request.Send(ctx)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
	}

	c.printResponse(response)
}

// parseValues parses name=value arguments against the route's parameter
// schema, so every value carries the type the schema expects.
func (c *Controller) parseValues(d *device.Device, route string, args []string) (*wire.Values, error) {
	request := d.Request(route)
	values := wire.NewValues()

	for _, arg := range args {
		name, raw, found := strings.Cut(arg, "=")
		if !found {
			return nil, fmt.Errorf("parameter %q is not in name=value form", arg)
		}

		kind, ok := request.ParametersData().Get(name)
		if !ok {
			return nil, fmt.Errorf("parameter %q does not exist", name)
		}

		switch kind.AsType() {
		case "bool":
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.Bool(name, v)
		case "u8":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.U8(name, uint8(v))
		case "u16":
			v, err := strconv.ParseUint(raw, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.U16(name, uint16(v))
		case "u32":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.U32(name, uint32(v))
		case "u64":
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.U64(name, v)
		case "f32":
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.F32(name, float32(v))
		case "f64":
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			values.F64(name, v)
		default:
			values.Str(name, raw)
		}
	}

	return values, nil
}

func (c *Controller) printResponse(response *device.Response) {
	switch response.Variant() {
	case device.Skipped:
		fmt.Fprintln(c.rl.Stdout(), "Skipped by the privacy policy")

	case device.OkBody:
		ok, err := response.ParseOkBody()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "ok: %t\n", ok.OK)

	case device.SerialBody:
		var body any
		if err := response.ParseSerialBody(&body); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		pretty, _ := json.MarshalIndent(body, "", "  ")
		fmt.Fprintln(c.rl.Stdout(), string(pretty))

	case device.InfoBody:
		info, err := response.ParseInfoBody()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		pretty, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(c.rl.Stdout(), string(pretty))

	case device.StreamBody:
		stream, err := response.Stream()
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		n, _ := io.Copy(io.Discard, stream)
		stream.Close()
		fmt.Fprintf(c.rl.Stdout(), "stream: %d byte(s)\n", n)
	}
}

func (c *Controller) cmdEvents(ctx context.Context, args []string) {
	if len(args) == 1 && args[0] == "stop" {
		if !c.eventsRunning {
			fmt.Fprintln(c.rl.Stdout(), "No event receivers running")
			return
		}
		c.ctrl.Shutdown()
		c.eventsRunning = false
		fmt.Fprintln(c.rl.Stdout(), "Event receivers stopped")
		return
	}

	if c.eventsRunning {
		fmt.Fprintln(c.rl.Stdout(), "Event receivers already running")
		return
	}

	payloads, err := c.ctrl.StartEventReceivers(ctx, c.eventsBufferSize)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}
	c.eventsRunning = true
	fmt.Fprintln(c.rl.Stdout(), "Event receivers started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-payloads:
				for _, event := range payload.Events {
					fmt.Fprintf(c.rl.Stdout(), "event device=%d %s=%v\n",
						payload.DeviceID, event.Name, event.Value)
				}
			}
		}
	}()
}

func (c *Controller) cmdPolicy(args []string) {
	switch {
	case len(args) == 0:
		c.printPolicy()

	case args[0] == "clear":
		c.globalHazards = hazard.New()
		c.localHazards = make(map[int]*hazard.Hazards)
		c.applyPolicy()
		fmt.Fprintln(c.rl.Stdout(), "Policy cleared")

	case args[0] == "block" && len(args) == 2:
		c.globalHazards.Add(hazard.Hazard(args[1]))
		c.applyPolicy()
		fmt.Fprintf(c.rl.Stdout(), "Blocked %s on every device\n", args[1])

	case args[0] == "block" && len(args) == 3:
		id, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid device id %q\n", args[1])
			return
		}
		if c.localHazards[id] == nil {
			c.localHazards[id] = hazard.New()
		}
		c.localHazards[id].Add(hazard.Hazard(args[2]))
		c.applyPolicy()
		fmt.Fprintf(c.rl.Stdout(), "Blocked %s on device %d\n", args[2], id)

	default:
		fmt.Fprintln(c.rl.Stdout(), "Usage: policy [block <hazard> | block <id> <hazard> | clear]")
	}
}

func (c *Controller) printPolicy() {
	if c.globalHazards.IsEmpty() && len(c.localHazards) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No blocks active")
		return
	}
	if !c.globalHazards.IsEmpty() {
		fmt.Fprintf(c.rl.Stdout(), "  global: %v\n", c.globalHazards.All())
	}
	for id, hazards := range c.localHazards {
		fmt.Fprintf(c.rl.Stdout(), "  device %d: %v\n", id, hazards.All())
	}
}

func (c *Controller) applyPolicy() {
	p := policy.New(c.globalHazards)
	for id, hazards := range c.localHazards {
		p.BlockDeviceOnHazards(id, hazards)
	}
	c.ctrl.ChangePolicy(p)
}

func (c *Controller) cmdSave() {
	if c.store == nil {
		fmt.Fprintln(c.rl.Stdout(), "Persistence is disabled")
		return
	}
	if err := c.store.Save(c.ctrl.Devices()); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Save failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Saved %d device(s)\n", c.ctrl.Devices().Len())
}

func (c *Controller) cmdLoad() {
	if c.store == nil {
		fmt.Fprintln(c.rl.Stdout(), "Persistence is disabled")
		return
	}
	devices, err := c.store.Load()
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Load failed: %v\n", err)
		return
	}
	if devices == nil {
		fmt.Fprintln(c.rl.Stdout(), "No snapshot found")
		return
	}
	c.ctrl.ReplaceDevices(devices)
	c.eventsRunning = false
	fmt.Fprintf(c.rl.Stdout(), "Loaded %d device(s)\n", devices.Len())
}

func (c *Controller) lookupDevice(arg string) (*device.Device, bool) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid device id %q\n", arg)
		return nil, false
	}
	d := c.ctrl.Devices().Get(id)
	if d == nil {
		fmt.Fprintf(c.rl.Stdout(), "No device with id %d\n", id)
		return nil, false
	}
	return d, true
}
