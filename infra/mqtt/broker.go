package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ehdgml1/vehicle-sim/core/broker"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
)

const commandBuffer = 16

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// SignalMessage is the retained payload published for every VSS path.
type SignalMessage struct {
	Path      string            `json:"path"`
	Value     model.SignalValue `json:"value"`
	Timestamp int64             `json:"timestamp"`
}

// Broker publishes signal maps over MQTT and listens for actuator targets
// and runtime commands. It implements broker.Broker.
type Broker struct {
	cli     pahoClient
	log     logger.Logger
	prefix  string
	qos     byte
	retries int
	backoff time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	values map[string]model.SignalValue

	commands chan broker.Command
}

var _ broker.Broker = (*Broker)(nil)

// NewBroker prepares a client for cfg without connecting. Call Dial to
// connect; subscriptions are (re)established on every connect.
func NewBroker(cfg Config, log logger.Logger) (*Broker, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_broker")
	}
	b := &Broker{
		log:      log,
		prefix:   cfg.TopicPrefix,
		qos:      cfg.QoS,
		retries:  cfg.MaxRetries,
		backoff:  time.Duration(cfg.BackoffMS) * time.Millisecond,
		now:      time.Now,
		values:   make(map[string]model.SignalValue),
		commands: make(chan broker.Command, commandBuffer),
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		b.subscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	b.cli = newMQTTClient(opts)
	return b, nil
}

func (b *Broker) subscribe(c paho.Client) {
	subs := map[string]paho.MessageHandler{
		ActuatorFilter(b.prefix):           b.onActuator,
		CommandTopic(b.prefix, "scenario"): b.onScenario,
		CommandTopic(b.prefix, "dtc"):      b.onDTC,
	}
	for topic, h := range subs {
		if token := c.Subscribe(topic, b.qos, h); token.Wait() && token.Error() != nil {
			b.log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

// Dial performs a single connection attempt bounded by ctx.
func (b *Broker) Dial(ctx context.Context) error {
	if b.cli.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, b.cli.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Publish sends one retained message per signal.
func (b *Broker) Publish(ctx context.Context, signals *model.SignalMap) error {
	if !b.cli.IsConnected() {
		return broker.ErrNotConnected
	}
	ts := b.now().UnixMilli()
	var err error
	signals.Range(func(path string, v model.SignalValue) bool {
		payload, merr := json.Marshal(SignalMessage{Path: path, Value: v, Timestamp: ts})
		if merr != nil {
			err = fmt.Errorf("encode %s: %w", path, merr)
			return false
		}
		if perr := b.publishWithRetry(ctx, SignalTopic(b.prefix, path), payload); perr != nil {
			err = fmt.Errorf("publish %s: %w", path, perr)
			return false
		}
		return true
	})
	return err
}

func (b *Broker) publishWithRetry(ctx context.Context, topic string, payload []byte) error {
	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		err = waitToken(ctx, b.cli.Publish(topic, b.qos, true, payload))
		if err == nil || ctx.Err() != nil {
			return err
		}
		b.log.Warnf("publish attempt %d to %s failed: %v", attempt+1, topic, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.backoff * time.Duration(1<<attempt)):
		}
	}
	return err
}

// CurrentValue returns the latest actuator target received for path.
func (b *Broker) CurrentValue(_ context.Context, path string) (model.SignalValue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[path]
	if !ok {
		return model.SignalValue{}, fmt.Errorf("%s: %w", path, broker.ErrNoValue)
	}
	return v, nil
}

// Commands returns the queue of runtime commands.
func (b *Broker) Commands() <-chan broker.Command { return b.commands }

// Close gracefully closes the MQTT connection.
func (b *Broker) Close() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

func (b *Broker) onActuator(_ paho.Client, msg paho.Message) {
	path, ok := pathFromTopic(ActuatorPrefix(b.prefix), msg.Topic())
	if !ok {
		return
	}
	v, err := decodeValue(msg.Payload())
	if err != nil {
		b.log.Warnf("invalid actuator payload on %s: %v", msg.Topic(), err)
		return
	}
	b.mu.Lock()
	b.values[path] = v
	b.mu.Unlock()
	b.log.Debugw("actuator target received", map[string]any{"path": path, "value": v.Interface()})
}

// staleCommand reports retained command messages. The broker replays them
// on every (re)subscribe, so acting on them would repeat an old command.
func (b *Broker) staleCommand(msg paho.Message) bool {
	if !msg.Retained() {
		return false
	}
	b.log.Warnf("ignoring retained command on %s", msg.Topic())
	return true
}

func (b *Broker) onScenario(_ paho.Client, msg paho.Message) {
	if b.staleCommand(msg) {
		return
	}
	name := strings.TrimSpace(string(msg.Payload()))
	var quoted string
	if json.Unmarshal(msg.Payload(), &quoted) == nil {
		name = quoted
	}
	mode, err := model.ParseScenarioMode(name)
	if err != nil {
		b.log.Warnf("ignoring scenario command: %v", err)
		return
	}
	b.enqueue(broker.Command{Kind: broker.CommandSetScenario, Scenario: mode})
}

type dtcCommand struct {
	Action string `json:"action"`
	Code   string `json:"code"`
}

func (b *Broker) onDTC(_ paho.Client, msg paho.Message) {
	if b.staleCommand(msg) {
		return
	}
	var c dtcCommand
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		b.log.Warnf("invalid dtc command: %v", err)
		return
	}
	switch strings.ToLower(c.Action) {
	case "inject":
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			b.log.Warnf("dtc inject without code")
			return
		}
		b.enqueue(broker.Command{Kind: broker.CommandInjectDTC, Code: code})
	case "clear":
		b.enqueue(broker.Command{Kind: broker.CommandClearDTCs})
	default:
		b.log.Warnf("unknown dtc action %q", c.Action)
	}
}

func (b *Broker) enqueue(c broker.Command) {
	select {
	case b.commands <- c:
		b.log.Infof("queued command %s", c.Kind)
	default:
		b.log.Warnf("command queue full, dropping %s", c.Kind)
	}
}

// SignalTopic maps a VSS path to its publish topic.
func SignalTopic(prefix, path string) string {
	return prefix + "/" + strings.ReplaceAll(path, ".", "/")
}

// ActuatorPrefix is the topic root for actuator targets.
func ActuatorPrefix(prefix string) string { return prefix + "/actuator/" }

// ActuatorTopic maps a VSS path to the topic carrying its target value.
func ActuatorTopic(prefix, path string) string {
	return ActuatorPrefix(prefix) + strings.ReplaceAll(path, ".", "/")
}

// ActuatorFilter subscribes to every actuator target.
func ActuatorFilter(prefix string) string { return ActuatorPrefix(prefix) + "#" }

// CommandTopic returns the topic for a named command.
func CommandTopic(prefix, name string) string { return prefix + "/command/" + name }

func pathFromTopic(root, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, root)
	if !ok || rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, "/", "."), true
}

// decodeValue accepts a SignalMessage, {"value": x}, a bare number or a
// JSON array of strings.
func decodeValue(p []byte) (model.SignalValue, error) {
	var wrapped struct {
		Value *model.SignalValue `json:"value"`
	}
	if err := json.Unmarshal(p, &wrapped); err == nil && wrapped.Value != nil {
		return *wrapped.Value, nil
	}
	var v model.SignalValue
	if err := json.Unmarshal(p, &v); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(p)), 64)
	if err != nil {
		return model.SignalValue{}, err
	}
	return model.Float(f), nil
}

func waitToken(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
