package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/store"
)

const (
	qosAtLeastOnce = 1
	quiesceMillis  = 250
)

// MQTTOptions configure an MQTT publisher.
type MQTTOptions struct {
	// Broker URL, e.g. tcp://192.168.1.2:1883.
	Broker   string
	ClientID string
	Username string
	Password string

	// TopicPrefix roots every topic: {prefix}/devices/{host}/reading.
	TopicPrefix string

	// Timeout bounds connect and each publish.
	Timeout time.Duration

	Logger logger.Logger
}

// broker is the part of mqtt.Client the publisher uses.
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTT publishes readings as JSON to an MQTT broker.
type MQTT struct {
	client  broker
	prefix  string
	timeout time.Duration
	log     logger.Logger
}

// NewMQTT connects to the broker and returns a publisher. Reconnects after
// a lost connection happen in the background.
func NewMQTT(ctx context.Context, o MQTTOptions) (*MQTT, error) {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	p := &MQTT{
		prefix:  strings.TrimRight(o.TopicPrefix, "/"),
		timeout: o.Timeout,
		log:     logger.OrDefault(o.Logger),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetConnectTimeout(o.Timeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.log.Info("mqtt connected to %s", o.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("mqtt connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, errors.WrapWithCode(ctx.Err(), errors.ErrPublish, "MQTT connect cancelled", "")
	case <-time.After(o.Timeout):
		client.Disconnect(0)
		return nil, errors.New(errors.ErrPublish,
			fmt.Sprintf("Timed out connecting to MQTT broker %s", o.Broker),
			"Check mqtt.broker, or leave it empty to disable publishing.")
	}
	if err := token.Error(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrPublish,
			fmt.Sprintf("Can't connect to MQTT broker %s", o.Broker),
			"Check mqtt.broker and the mqtt credentials.")
	}

	p.client = client
	return p, nil
}

// Topic returns the topic a reading for host is published on.
func (p *MQTT) Topic(host string) string {
	return p.prefix + "/devices/" + topicSegment(host) + "/reading"
}

// Publish sends r with QoS 1, not retained.
func (p *MQTT) Publish(ctx context.Context, r store.Reading) error {
	if !p.IsConnected() {
		return errors.New(errors.ErrPublish, "MQTT client not connected", "")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrPublish, "Can't encode reading", "")
	}

	topic := p.Topic(r.Host)
	token := p.client.Publish(topic, qosAtLeastOnce, false, data)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return errors.WrapWithCode(ctx.Err(), errors.ErrPublish, "Publish to "+topic+" cancelled", "")
	case <-timer.C:
		return errors.New(errors.ErrPublish, "Publish timeout for topic "+topic, "")
	}
	if err := token.Error(); err != nil {
		return errors.WrapWithCode(err, errors.ErrPublish, "Publish to "+topic+" failed", "")
	}

	p.log.Debug("published %s", topic)
	return nil
}

// IsConnected reports whether the broker connection is up, as tracked by
// the client itself.
func (p *MQTT) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *MQTT) Close() {
	if p.client != nil {
		p.client.Disconnect(quiesceMillis)
	}
	p.log.Info("mqtt disconnected")
}

// topicSegment keeps a host usable as a single topic level.
func topicSegment(host string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(host)
}
