package publish

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/store"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	msgs         []published
	token        mqtt.Token
	offline      bool
	disconnected bool
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic, qos, retained, payload.([]byte)})
	if b.token != nil {
		return b.token
	}
	return doneToken(nil)
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.offline && !b.disconnected
}

func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	b.disconnected = true
	b.mu.Unlock()
}

func newTestPublisher(b *fakeBroker) *MQTT {
	return &MQTT{
		client:  b,
		prefix:  "pimon",
		timeout: 50 * time.Millisecond,
		log:     logger.Noop(),
	}
}

func TestPublish(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b)

	up := int64(86400)
	ts := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), store.Reading{Host: "192.168.1.30", Temperature: 45.231, Uptime: &up, LastUpdate: ts}))

	require.Len(t, b.msgs, 1)
	msg := b.msgs[0]
	assert.Equal(t, "pimon/devices/192.168.1.30/reading", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var got store.Reading
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "192.168.1.30", got.Host)
	assert.InDelta(t, 45.231, got.Temperature, 1e-9)
}

func TestPublish_BrokerError(t *testing.T) {
	b := &fakeBroker{token: doneToken(stderrors.New("not authorized"))}
	err := newTestPublisher(b).Publish(context.Background(), store.Reading{Host: "h"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPublish))
	assert.Contains(t, errors.Oneline(err), "not authorized")
}

func TestPublish_Timeout(t *testing.T) {
	b := &fakeBroker{token: &fakeToken{done: make(chan struct{})}}
	err := newTestPublisher(b).Publish(context.Background(), store.Reading{Host: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestPublish_NotConnected(t *testing.T) {
	b := &fakeBroker{offline: true}
	err := newTestPublisher(b).Publish(context.Background(), store.Reading{Host: "h"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPublish))
	assert.Empty(t, b.msgs)
}

// The OnConnect handler runs on its own goroutine, so the first publish can
// happen before it fires. Connection state comes from the client alone.
func TestPublish_BeforeOnConnectHandlerRuns(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b)

	require.True(t, p.IsConnected())
	require.NoError(t, p.Publish(context.Background(), store.Reading{Host: "10.0.0.1"}))
	assert.Len(t, b.msgs, 1)
}

func TestClose(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b)
	p.Close()
	assert.True(t, b.disconnected)
	assert.False(t, p.IsConnected())
}

func TestTopic(t *testing.T) {
	p := &MQTT{prefix: "home/pimon"}
	assert.Equal(t, "home/pimon/devices/10.0.0.1/reading", p.Topic("10.0.0.1"))
	assert.Equal(t, "home/pimon/devices/a_b_c/reading", p.Topic("a/b#c"))
}

func TestNewMQTT_Unreachable(t *testing.T) {
	_, err := NewMQTT(context.Background(), MQTTOptions{
		Broker:   "tcp://127.0.0.1:1",
		ClientID: "pimon-test",
		Timeout:  500 * time.Millisecond,
		Logger:   logger.Noop(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrPublish))
}

func TestNoop(t *testing.T) {
	p := Noop()
	assert.NoError(t, p.Publish(context.Background(), store.Reading{}))
	p.Close()
}
