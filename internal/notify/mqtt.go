package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
)

// unreachable is left on the status topic by the broker when the daemon
// disappears without saying goodbye.
var unreachable = []byte(`{"kind":"offline","state":"unreachable"}`)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker   string // e.g. tcp://broker.local:1883
	Topic    string // status goes to <Topic>/status
	ClientID string // defaults to <program><pid>
	Username string
	Password string
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes every outcome as retained JSON on <topic>/status.
type MQTT struct {
	client publisher
	topic  string
}

// DialMQTT connects to the broker. The client reconnects on its own after
// the first connection succeeds.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("%v%v", path.Base(os.Args[0]), os.Getpid())
	}
	topic := statusTopic(cfg.Topic)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetBinaryWill(topic, unreachable, qosAtLeastOnce, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	logging.Info("Connecting to MQTT broker", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	logging.Info("MQTT client connected", zap.String("client_id", cfg.ClientID))

	return newMQTT(client, cfg.Topic), nil
}

func newMQTT(client publisher, topic string) *MQTT {
	return &MQTT{client: client, topic: statusTopic(topic)}
}

func statusTopic(base string) string {
	if base == "" {
		base = "wifiprov"
	}
	return path.Join(base, "status")
}

// Topic is where outcomes are published.
func (m *MQTT) Topic() string { return m.topic }

// Notify implements wifi.Notifier. Delivery is confirmed in the background.
func (m *MQTT) Notify(o wifi.Outcome) {
	payload, err := json.Marshal(o)
	if err != nil {
		logging.Error("Failed to encode outcome", zap.Error(err))
		return
	}
	token := m.client.Publish(m.topic, qosAtLeastOnce, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			logging.Warn("MQTT publish not acknowledged", zap.String("topic", m.topic))
			return
		}
		if err := token.Error(); err != nil {
			logging.Warn("MQTT publish failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
