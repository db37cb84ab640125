package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehdgml1/vehicle-sim/core/broker"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	connected   bool
	connectErrs []error
	handlers    map[string]paho.MessageHandler
	subscribed  map[string]byte
	published   []published
	publishErrs []error
}

func newMock() *mockClient {
	return &mockClient{handlers: map[string]paho.MessageHandler{}, subscribed: map[string]byte{}}
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) Connect() paho.Token {
	m.mu.Lock()
	if len(m.connectErrs) > 0 {
		err := m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
		m.mu.Unlock()
		return &dummyToken{err: err}
	}
	m.connected = true
	m.mu.Unlock()
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, qos, retained, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed[topic] = qos
	m.handlers[topic] = h
	return &dummyToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return m.IsConnected() }

// deliver routes a message to the handler subscribed on filter.
func (m *mockClient) deliver(filter, topic string, payload []byte) {
	m.mu.Lock()
	h := m.handlers[filter]
	m.mu.Unlock()
	h(m, mockMessage{topic: topic, p: payload})
}

func (m *mockClient) deliverRetained(filter, topic string, payload []byte) {
	m.mu.Lock()
	h := m.handlers[filter]
	m.mu.Unlock()
	h(m, mockMessage{topic: topic, p: payload, retained: true})
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic    string
	p        []byte
	retained bool
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return m.retained }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func newTestBroker(t *testing.T, cfg Config) (*Broker, *mockClient) {
	t.Helper()
	mc := newMock()
	withMock(t, mc)
	b, err := NewBroker(cfg, logger.NopLogger{})
	require.NoError(t, err)
	return b, mc
}

func TestDialSubscribes(t *testing.T) {
	b, mc := newTestBroker(t, Config{QoS: 1})
	require.NoError(t, b.Dial(context.Background()))
	assert.Equal(t, map[string]byte{
		"vss/actuator/#":       1,
		"vss/command/scenario": 1,
		"vss/command/dtc":      1,
	}, mc.subscribed)
	// already connected: no second connect
	require.NoError(t, b.Dial(context.Background()))
	b.Close()
	assert.False(t, mc.IsConnected())
}

func TestDialError(t *testing.T) {
	mc := newMock()
	mc.connectErrs = []error{fmt.Errorf("refused")}
	withMock(t, mc)
	b, err := NewBroker(Config{}, logger.NopLogger{})
	require.NoError(t, err)
	err = b.Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	require.NoError(t, b.Dial(context.Background()))
}

func TestPublishSignals(t *testing.T) {
	b, mc := newTestBroker(t, Config{TopicPrefix: "/car/", QoS: 1})
	fixed := time.UnixMilli(1706000000123)
	b.now = func() time.Time { return fixed }

	signals := model.NewSignalMap()
	signals.Set(model.PathVehicleSpeed, model.Float(61.5))
	signals.Set(model.PathDTCList, model.Strings(nil))

	assert.ErrorIs(t, b.Publish(context.Background(), signals), broker.ErrNotConnected)

	require.NoError(t, b.Dial(context.Background()))
	require.NoError(t, b.Publish(context.Background(), signals))
	require.Len(t, mc.published, 2)

	first := mc.published[0]
	assert.Equal(t, "car/Vehicle/Speed", first.topic)
	assert.True(t, first.retained)
	assert.Equal(t, byte(1), first.qos)
	assert.JSONEq(t, `{"path":"Vehicle.Speed","value":61.5,"timestamp":1706000000123}`, string(first.payload))

	second := mc.published[1]
	assert.Equal(t, "car/Vehicle/OBD/DTCList", second.topic)
	var msg SignalMessage
	require.NoError(t, json.Unmarshal(second.payload, &msg))
	codes, ok := msg.Value.List()
	require.True(t, ok)
	assert.Empty(t, codes)
}

func TestPublishRetry(t *testing.T) {
	b, mc := newTestBroker(t, Config{MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, b.Dial(context.Background()))
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}

	signals := model.NewSignalMap()
	signals.Set(model.PathVehicleSpeed, model.Float(50))
	require.NoError(t, b.Publish(context.Background(), signals))
	assert.Len(t, mc.published, 2)
}

func TestPublishRetryExhausted(t *testing.T) {
	b, mc := newTestBroker(t, Config{MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, b.Dial(context.Background()))
	mc.publishErrs = []error{errors.New("one"), errors.New("two")}

	signals := model.NewSignalMap()
	signals.Set(model.PathVehicleSpeed, model.Float(50))
	signals.Set(model.PathEngineSpeed, model.Float(900))
	err := b.Publish(context.Background(), signals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), model.PathVehicleSpeed)
	assert.Len(t, mc.published, 2)
}

func TestActuatorValues(t *testing.T) {
	b, mc := newTestBroker(t, Config{})
	require.NoError(t, b.Dial(context.Background()))

	_, err := b.CurrentValue(context.Background(), model.PathHvacTarget)
	assert.ErrorIs(t, err, broker.ErrNoValue)

	topic := ActuatorTopic("vss", model.PathHvacTarget)
	mc.deliver("vss/actuator/#", topic, []byte(`{"value":24.5}`))
	v, err := b.CurrentValue(context.Background(), model.PathHvacTarget)
	require.NoError(t, err)
	f, _ := v.Float()
	assert.Equal(t, 24.5, f)

	mc.deliver("vss/actuator/#", topic, []byte(` 19 `))
	v, _ = b.CurrentValue(context.Background(), model.PathHvacTarget)
	f, _ = v.Float()
	assert.Equal(t, 19.0, f)

	mc.deliver("vss/actuator/#", topic, []byte(`not-a-number`))
	v, _ = b.CurrentValue(context.Background(), model.PathHvacTarget)
	f, _ = v.Float()
	assert.Equal(t, 19.0, f)
}

func TestCommands(t *testing.T) {
	b, mc := newTestBroker(t, Config{})
	require.NoError(t, b.Dial(context.Background()))

	mc.deliver("vss/command/scenario", "vss/command/scenario", []byte("engine_warning"))
	mc.deliver("vss/command/scenario", "vss/command/scenario", []byte(`"battery_low"`))
	mc.deliver("vss/command/scenario", "vss/command/scenario", []byte("warp_speed"))
	mc.deliver("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"inject","code":"p0128"}`))
	mc.deliver("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"clear"}`))
	mc.deliver("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"inject"}`))
	mc.deliver("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"explode"}`))

	want := []broker.Command{
		{Kind: broker.CommandSetScenario, Scenario: model.EngineWarning},
		{Kind: broker.CommandSetScenario, Scenario: model.BatteryLow},
		{Kind: broker.CommandInjectDTC, Code: "P0128"},
		{Kind: broker.CommandClearDTCs},
	}
	for _, w := range want {
		select {
		case got := <-b.Commands():
			assert.Equal(t, w, got)
		default:
			t.Fatalf("missing command %v", w.Kind)
		}
	}
	select {
	case c := <-b.Commands():
		t.Fatalf("unexpected command %v", c.Kind)
	default:
	}
}

func TestRetainedCommandsIgnored(t *testing.T) {
	b, mc := newTestBroker(t, Config{})
	require.NoError(t, b.Dial(context.Background()))

	mc.deliverRetained("vss/command/scenario", "vss/command/scenario", []byte("battery_low"))
	mc.deliverRetained("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"inject","code":"P0420"}`))
	assert.Empty(t, b.Commands())

	// retained actuator targets are still honoured
	mc.deliverRetained("vss/actuator/#", ActuatorTopic("vss", model.PathHvacTarget), []byte("21"))
	v, err := b.CurrentValue(context.Background(), model.PathHvacTarget)
	require.NoError(t, err)
	f, _ := v.Float()
	assert.Equal(t, 21.0, f)

	mc.deliver("vss/command/scenario", "vss/command/scenario", []byte("battery_low"))
	require.Len(t, b.Commands(), 1)
	assert.Equal(t, broker.Command{Kind: broker.CommandSetScenario, Scenario: model.BatteryLow}, <-b.Commands())
}

func TestCommandQueueFull(t *testing.T) {
	b, mc := newTestBroker(t, Config{})
	require.NoError(t, b.Dial(context.Background()))
	for i := 0; i < commandBuffer+5; i++ {
		mc.deliver("vss/command/dtc", "vss/command/dtc", []byte(`{"action":"clear"}`))
	}
	assert.Len(t, b.Commands(), commandBuffer)
}

func TestLWTConfigured(t *testing.T) {
	mc := newMock()
	withMock(t, mc)
	_, err := NewBroker(Config{LWTTopic: "vss/status", LWTPayload: "offline", LWTQoS: 1}, logger.NopLogger{})
	require.NoError(t, err)
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "vss/status" || string(mc.opts.WillPayload) != "offline" {
		t.Fatalf("will options incorrect")
	}
}
