package notify

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/batthud/pkg/alert"
)

// RealPublisher publishes to an MQTT broker.
type RealPublisher struct {
	client paho.Client
	topic  string
}

// NewRealPublisher connects to broker. The broker keeps an OFFLINE
// message on TopicSystem as our will.
func NewRealPublisher(broker, topic, clientID string) (*RealPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logrus.WithError(err).Warn("mqtt connection lost")
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			logrus.WithField("broker", broker).Info("mqtt connected")
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, pkgerrors.Errorf("timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to broker %s", broker)
	}

	return &RealPublisher{
		client: client,
		topic:  topic,
	}, nil
}

// Publish sends an alert with QoS 0.
func (p *RealPublisher) Publish(ev alert.Event) error {
	payload, err := FormatPayload(ev)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to format payload")
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return pkgerrors.New("publish timeout")
	}
	return pkgerrors.Wrap(token.Error(), "failed to publish")
}

// PublishSystem sends a retained lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(ev SystemEvent) error {
	payload, err := FormatSystemPayload(ev)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to format system payload")
	}

	token := p.client.Publish(TopicSystem, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return pkgerrors.New("publish system timeout")
	}
	return pkgerrors.Wrap(token.Error(), "failed to publish system event")
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
