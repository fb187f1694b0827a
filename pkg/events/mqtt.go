package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

const (
	subscribeQos      = 1
	keepAlive         = 60 * time.Second
	pingTimeout       = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// mqttSubscriber opens one MQTT connection per subscription. Device
// brokers are independent, so connections are not shared.
type mqttSubscriber struct{}

func (mqttSubscriber) Subscribe(broker wire.BrokerData, topic, clientID string) (Subscription, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker.Address, broker.Port))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(pingTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("Connection to the device broker lost", "topic", topic, "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	sub := &mqttSubscription{
		client:   client,
		topic:    topic,
		messages: make(chan []byte),
		stop:     make(chan struct{}),
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case sub.messages <- msg.Payload():
		case <-sub.stop:
		}
	}
	if token := client.Subscribe(topic, subscribeQos, handler); token.Wait() && token.Error() != nil {
		client.Disconnect(disconnectQuiesce)
		return nil, token.Error()
	}

	return sub, nil
}

type mqttSubscription struct {
	client   mqtt.Client
	topic    string
	messages chan []byte
	stop     chan struct{}
	once     sync.Once
}

func (s *mqttSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *mqttSubscription) Close() {
	s.once.Do(func() {
		close(s.stop)
		if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
			slog.Warn("Error in unsubscribing from the broker topic",
				"topic", s.topic, "error", token.Error())
		}
		s.client.Disconnect(disconnectQuiesce)
	})
}
