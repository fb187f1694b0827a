// Package events runs the subscriber tasks that receive event snapshots
// from device brokers.
//
// A device that supports events publishes JSON snapshots of its current
// event values to a topic on an MQTT broker. The controller runs one
// subscriber task per device. A task either feeds a device-private
// EventStream or a channel shared by every device, tagging each snapshot
// with the device identifier.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// Payload is one decoded event snapshot tagged with the device that
// emitted it.
type Payload struct {
	// DeviceID is the controller identifier of the emitting device.
	DeviceID int
	// Events is the decoded snapshot.
	Events wire.Events
}

// Subscription is a live broker subscription delivering raw message
// payloads until closed.
type Subscription interface {
	// Messages returns the channel raw payloads arrive on.
	Messages() <-chan []byte
	// Close tears the subscription down. It is safe to call twice.
	Close()
}

// Subscriber opens broker subscriptions. The default implementation talks
// MQTT; tests substitute their own.
type Subscriber interface {
	Subscribe(broker wire.BrokerData, topic, clientID string) (Subscription, error)
}

// Task is a running subscriber goroutine.
type Task struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the unique task identifier.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Done returns a channel closed when the task has fully terminated.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Stop cancels the task and waits for it to terminate.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// EventStream delivers decoded snapshots from a single device.
type EventStream struct {
	events chan wire.Events
	task   *Task
}

// Events returns the channel decoded snapshots arrive on.
func (s *EventStream) Events() <-chan wire.Events {
	return s.events
}

// Task returns the subscriber task feeding the stream.
func (s *EventStream) Task() *Task {
	return s.task
}

// Close stops the subscriber task feeding the stream and waits for it to
// terminate.
func (s *EventStream) Close() {
	s.task.Stop()
}

// Runner starts subscriber tasks against device brokers.
type Runner struct {
	subscriber Subscriber
}

// NewRunner creates a Runner backed by the MQTT subscriber.
func NewRunner() *Runner {
	return &Runner{subscriber: mqttSubscriber{}}
}

// NewRunnerWithSubscriber creates a Runner with a custom subscriber.
func NewRunnerWithSubscriber(subscriber Subscriber) *Runner {
	return &Runner{subscriber: subscriber}
}

// RunDeviceSubscriber starts a subscriber task for a single device and
// returns the stream its snapshots arrive on. The stream channel holds up
// to bufferSize snapshots; when it is full the task waits until one is
// consumed.
//
// Closing the returned stream terminates the task.
func (r *Runner) RunDeviceSubscriber(
	ctx context.Context,
	description *wire.EventsDescription,
	deviceID int,
	bufferSize int,
) (*EventStream, error) {
	events := make(chan wire.Events, bufferSize)

	task, err := r.run(ctx, description, deviceID, func(ctx context.Context, snapshot wire.Events) {
		select {
		case events <- snapshot:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}

	return &EventStream{events: events, task: task}, nil
}

// RunGlobalSubscriber starts a subscriber task for a single device feeding
// the shared channel out. When out is full the task waits until a payload
// is consumed.
func (r *Runner) RunGlobalSubscriber(
	ctx context.Context,
	description *wire.EventsDescription,
	deviceID int,
	out chan<- Payload,
) (*Task, error) {
	return r.run(ctx, description, deviceID, func(ctx context.Context, snapshot wire.Events) {
		select {
		case out <- Payload{DeviceID: deviceID, Events: snapshot}:
		case <-ctx.Done():
		}
	})
}

func (r *Runner) run(
	ctx context.Context,
	description *wire.EventsDescription,
	deviceID int,
	deliver func(context.Context, wire.Events),
) (*Task, error) {
	id := uuid.New()

	subscription, err := r.subscriber.Subscribe(
		description.Broker,
		description.Topic,
		"tosca-controller-"+id.String(),
	)
	if err != nil {
		return nil, errs.Newf(errs.Events,
			"Error in subscribing to the broker topic `%s` for device with id `%d`: %s",
			description.Topic, deviceID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{id: id, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer subscription.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-subscription.Messages():
				if !ok {
					return
				}
				var snapshot wire.Events
				if err := json.Unmarshal(raw, &snapshot); err != nil {
					slog.Error("Discarding malformed event snapshot",
						"device", deviceID, "topic", description.Topic, "error", err)
					continue
				}
				deliver(ctx, snapshot)
			}
		}
	}()

	return task, nil
}
