// Package device models a discovered device on the controller side: the
// network information needed to reach it, its description, the prepared
// requests for its routes, and the lifecycle of its event receiver.
package device

import (
	"context"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/events"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// RequestInfo is a read-only view over one prepared request.
type RequestInfo struct {
	// Route is the route path keying the request.
	Route string
	// Name is the route display name.
	Name string
	// Description is the route description, empty when absent.
	Description string
	// RestKind is the REST verb.
	RestKind wire.RestKind
	// Hazards are the route hazards, nil when the route declares none.
	Hazards *hazard.Hazards
	// ParametersData is the route parameter schema, nil when the route
	// declares no parameters.
	ParametersData *wire.ParametersData
	// ResponseKind is the reply shape contract.
	ResponseKind wire.ResponseKind
}

// Device is a compliant device.
type Device struct {
	networkInfo  NetworkInformation
	description  Description
	routeConfigs wire.RouteConfigs
	requests     map[string]*Request

	// eventsDescription is nil when the device does not support events.
	eventsDescription *wire.EventsDescription
	eventTask         *events.Task
}

// New creates a Device from network information, a description, and route
// configurations, preparing one request per route.
//
// Useful to rebuild devices from stored data.
func New(networkInfo NetworkInformation, description Description, routeConfigs wire.RouteConfigs) *Device {
	return &Device{
		networkInfo: networkInfo,
		description: description,
		// Configurations are retained so the device can be snapshotted
		// and rebuilt.
		routeConfigs: routeConfigs,
		requests: createRequests(
			routeConfigs,
			networkInfo.LastReachableAddress,
			description.MainRoute,
			description.Environment,
		),
	}
}

// FromData creates a Device from network information and a decoded device
// descriptor.
func FromData(networkInfo NetworkInformation, data *wire.DeviceData) *Device {
	networkInfo.WifiMac = data.WifiMac
	networkInfo.EthernetMac = data.EthernetMac

	d := New(networkInfo, Description{
		Kind:        data.Kind,
		Environment: data.Environment,
		MainRoute:   data.MainRoute,
	}, data.RouteConfigs)
	d.eventsDescription = data.EventsDescription
	return d
}

// NetworkInfo returns the device network information.
func (d *Device) NetworkInfo() NetworkInformation {
	return d.networkInfo
}

// Description returns the device description.
func (d *Device) Description() Description {
	return d.description
}

// RouteConfigs returns the route configurations the device was built
// from.
func (d *Device) RouteConfigs() wire.RouteConfigs {
	return d.routeConfigs
}

// EventsMetadata returns the device event capabilities, nil when the
// device does not support events.
func (d *Device) EventsMetadata() *wire.EventsDescription {
	return d.eventsDescription
}

// SetEventsMetadata attaches event capabilities to the device.
//
// Useful to rebuild devices from stored data.
func (d *Device) SetEventsMetadata(description *wire.EventsDescription) {
	d.eventsDescription = description
}

// Request returns the prepared request for the given route, nil when the
// route does not exist.
func (d *Device) Request(route string) *Request {
	return d.requests[route]
}

// RequestsCount returns the number of prepared requests.
func (d *Device) RequestsCount() int {
	return len(d.requests)
}

// RequestsInfo returns a view over every prepared request.
func (d *Device) RequestsInfo() []RequestInfo {
	infos := make([]RequestInfo, 0, len(d.requests))
	for route, request := range d.requests {
		infos = append(infos, RequestInfo{
			Route:          route,
			Name:           request.name,
			Description:    request.description,
			RestKind:       request.kind,
			Hazards:        request.hazards,
			ParametersData: request.parameters,
			ResponseKind:   request.responseKind,
		})
	}
	return infos
}

// HasEvents reports whether the device supports events.
func (d *Device) HasEvents() bool {
	return d.eventsDescription != nil
}

// IsEventReceiverRunning reports whether an event receiver is running for
// the device.
func (d *Device) IsEventReceiverRunning() bool {
	return d.eventTask != nil
}

// StartEventReceiver starts the event receiver for the device, delivering
// snapshots on the returned stream. The stream holds up to bufferSize
// snapshots; when it is full the receiver waits until one is consumed.
//
// Closing the returned stream terminates the receiver.
func (d *Device) StartEventReceiver(
	ctx context.Context,
	runner *events.Runner,
	id int,
	bufferSize int,
) (*events.EventStream, error) {
	if d.eventTask != nil {
		return nil, errs.Newf(errs.Events,
			"Event receiver already started for device with id `%d`", id)
	}
	if d.eventsDescription == nil {
		return nil, errs.Newf(errs.Events,
			"The device with id `%d` does not support events", id)
	}

	stream, err := runner.RunDeviceSubscriber(ctx, d.eventsDescription, id, bufferSize)
	if err != nil {
		return nil, err
	}
	d.eventTask = stream.Task()
	return stream, nil
}

// StartGlobalEventReceiver starts an event receiver for the device that
// feeds the shared channel out, tagging each snapshot with the device
// identifier.
func (d *Device) StartGlobalEventReceiver(
	ctx context.Context,
	runner *events.Runner,
	id int,
	out chan<- events.Payload,
) error {
	if d.eventTask != nil {
		return errs.Newf(errs.Events,
			"Event receiver already started for device with id `%d`", id)
	}
	if d.eventsDescription == nil {
		return errs.Newf(errs.Events,
			"The device with id `%d` does not support events", id)
	}

	task, err := runner.RunGlobalSubscriber(ctx, d.eventsDescription, id, out)
	if err != nil {
		return err
	}
	d.eventTask = task
	return nil
}

// StopEventReceiver stops the event receiver and waits for it to
// terminate. It is a no-op when no receiver is running.
func (d *Device) StopEventReceiver() {
	if d.eventTask == nil {
		return
	}
	d.eventTask.Stop()
	d.eventTask = nil
}

// Devices is an ordered collection of devices. The position of a device
// is its controller identifier.
type Devices struct {
	items []*Device
}

// NewDevices creates an empty collection.
func NewDevices() *Devices {
	return &Devices{}
}

// FromDevices creates a collection from a slice of devices.
func FromDevices(items []*Device) *Devices {
	return &Devices{items: items}
}

// Add appends a device to the collection.
func (d *Devices) Add(device *Device) {
	d.items = append(d.items, device)
}

// IsEmpty reports whether the collection holds no devices.
func (d *Devices) IsEmpty() bool {
	return d.Len() == 0
}

// Len returns the number of devices.
func (d *Devices) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

// Get returns the device at the given index, nil when out of range.
func (d *Devices) Get(index int) *Device {
	if d == nil || index < 0 || index >= len(d.items) {
		return nil
	}
	return d.items[index]
}

// All returns the devices in identifier order.
func (d *Devices) All() []*Device {
	if d == nil {
		return nil
	}
	return d.items
}
