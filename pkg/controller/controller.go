// Package controller ties discovery, the device model, the privacy
// policy, and the event receivers together into the request-sending
// surface of the runtime.
//
// A controller sends or refuses to send requests to devices according to
// its privacy policy. A refused request yields a Skipped response, never
// an error: skipping is a normal outcome. Responses from devices are
// forwarded to the caller untouched.
package controller

import (
	"context"
	"log/slog"

	"github.com/tosca-protocol/tosca-go/pkg/device"
	"github.com/tosca-protocol/tosca-go/pkg/discovery"
	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/events"
	"github.com/tosca-protocol/tosca-go/pkg/policy"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// Controller sends requests to discovered devices.
type Controller struct {
	discovery     *discovery.Discovery
	devices       *device.Devices
	privacyPolicy *policy.Policy
	runner        *events.Runner
}

// New creates a Controller with the given discovery configuration, an
// empty device collection, and a policy blocking nothing.
func New(d *discovery.Discovery) *Controller {
	return &Controller{
		discovery:     d,
		devices:       device.NewDevices(),
		privacyPolicy: policy.Init(),
		runner:        events.NewRunner(),
	}
}

// FromDevices creates a Controller with an initial device collection.
//
// Useful when devices are rebuilt from stored data.
func FromDevices(d *discovery.Discovery, devices *device.Devices) *Controller {
	c := New(d)
	c.devices = devices
	return c
}

// WithPolicy sets the privacy policy.
func (c *Controller) WithPolicy(p *policy.Policy) *Controller {
	c.privacyPolicy = p
	return c
}

// WithEventsRunner replaces the events runner.
func (c *Controller) WithEventsRunner(runner *events.Runner) *Controller {
	c.runner = runner
	return c
}

// ChangePolicy replaces the privacy policy.
func (c *Controller) ChangePolicy(p *policy.Policy) {
	c.privacyPolicy = p
}

// Devices returns the device collection.
func (c *Controller) Devices() *device.Devices {
	return c.devices
}

// Discover detects all available devices in the network, replacing the
// current collection. Event receivers running for the old devices are
// stopped first.
func (c *Controller) Discover(ctx context.Context) error {
	for _, d := range c.devices.All() {
		d.StopEventReceiver()
	}

	devices, err := c.discovery.Discover(ctx)
	if err != nil {
		return err
	}
	c.devices = devices
	return nil
}

// ReplaceDevices swaps in a new device collection, stopping the event
// receivers of the old one first.
//
// Useful when devices are rebuilt from stored data.
func (c *Controller) ReplaceDevices(devices *device.Devices) {
	for _, d := range c.devices.All() {
		d.StopEventReceiver()
	}
	c.devices = devices
}

// StartEventReceivers starts an event receiver for every device that
// supports events, delivering snapshots tagged with the device
// identifier on the returned channel. The channel holds up to bufferSize
// payloads; when it is full the receivers wait until one is consumed.
//
// An error is returned when not a single receiver could start.
func (c *Controller) StartEventReceivers(ctx context.Context, bufferSize int) (<-chan events.Payload, error) {
	out := make(chan events.Payload, bufferSize)

	started := 0
	for id, d := range c.devices.All() {
		if d.IsEventReceiverRunning() {
			slog.Warn("Skip device: event receiver already started", "id", id)
			continue
		}
		if !d.HasEvents() {
			slog.Warn("Skip device: it does not support events", "id", id)
			continue
		}

		if err := d.StartGlobalEventReceiver(ctx, c.runner, id, out); err != nil {
			// A device whose receiver fails to start is skipped, so one
			// unreachable broker cannot strand the receivers already
			// running for the other devices.
			slog.Warn("Skip device: event receiver failed to start",
				"id", id, "error", err)
			continue
		}
		started++
	}

	if started == 0 {
		return nil, errs.New(errs.Events, "No event receiver tasks has started")
	}

	return out, nil
}

// Device builds a DeviceSender for the device with the given identifier.
func (c *Controller) Device(id int) (*DeviceSender, error) {
	if c.devices.IsEmpty() {
		return nil, errs.New(errs.Sender, "No devices found.")
	}

	d := c.devices.Get(id)
	if d == nil {
		return nil, errs.Newf(errs.Sender,
			"Error in retrieving the device with identifier %d.", id)
	}

	return &DeviceSender{controller: c, device: d, id: id}, nil
}

// Shutdown stops every running event receiver and waits for each one to
// terminate. It must be called before discarding the Controller for a
// graceful shutdown.
func (c *Controller) Shutdown() {
	for _, d := range c.devices.All() {
		d.StopEventReceiver()
	}
}

// DeviceSender builds request senders for one device.
type DeviceSender struct {
	controller *Controller
	device     *device.Device
	id         int
}

// Device returns the underlying device.
func (s *DeviceSender) Device() *device.Device {
	return s.device
}

// Request builds the RequestSender for the given route. The privacy
// policy is evaluated here: a request whose hazards intersect the
// blocked ones is marked to be skipped.
func (s *DeviceSender) Request(route string) (*RequestSender, error) {
	request := s.device.Request(route)
	if request == nil {
		return nil, errs.Newf(errs.Sender,
			"Error in retrieving the request with route `%s`.", route)
	}

	// A request without hazards is never skipped.
	skip := false
	if !request.Hazards().IsEmpty() {
		skip = s.evaluatePrivacyPolicy(request, route)
	}

	return &RequestSender{request: request, skip: skip}, nil
}

func (s *DeviceSender) evaluatePrivacyPolicy(request *device.Request, route string) bool {
	skip := false

	globalBlocked := s.controller.privacyPolicy.GlobalBlockedHazards(request.Hazards())
	localBlocked := s.controller.privacyPolicy.LocalBlockedHazards(s.id, request.Hazards())

	if !globalBlocked.IsEmpty() {
		slog.Warn("The route is skipped because it contains globally blocked hazards",
			"route", route, "hazards", globalBlocked.All())
		skip = true
	}

	if !localBlocked.IsEmpty() {
		slog.Warn("The route is skipped because the device contains locally blocked hazards",
			"route", route, "hazards", localBlocked.All())
		skip = true
	}

	return skip
}

// RequestSender sends one prepared request.
type RequestSender struct {
	request *device.Request
	skip    bool
}

// Send sends the request, with every parameter at its schema default.
// A request blocked by the privacy policy yields a Skipped response
// without any network exchange.
func (s *RequestSender) Send(ctx context.Context) (*device.Response, error) {
	if s.skip {
		return device.NewSkipped(), nil
	}
	return s.request.Send(ctx)
}

// SendWithValues sends the request with the given parameter values.
// When the route declares no parameters the values are ignored and the
// request degrades to a plain Send.
func (s *RequestSender) SendWithValues(ctx context.Context, values *wire.Values) (*device.Response, error) {
	if s.request.ParametersData().IsEmpty() {
		slog.Warn("The request does not have input parameters.")
		return s.Send(ctx)
	}

	if s.skip {
		return device.NewSkipped(), nil
	}
	return s.request.SendWithValues(ctx, values)
}
