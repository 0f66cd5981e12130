// Package mqttsink publishes tag samples to an MQTT broker as JSON
// messages, one per topic derived from each sample's tag address.
package mqttsink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/plcgo/goenip/logx"
	"github.com/plcgo/goenip/telemetry"
)

// Config configures the broker connection and topic layout. Broker is
// a full URL including scheme, e.g. "tcp://localhost:1883" or
// "ssl://localhost:8883".
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	UseTLS    bool
	RootTopic string
}

// message is the JSON payload published for each sample. Error is
// only set when the sample's read failed; Data/TypeCode are then zero.
type message struct {
	Tag       string `json:"tag"`
	TypeCode  uint16 `json:"type_code,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Sink publishes telemetry.Sample values to MQTT. It implements
// telemetry.Sink.
type Sink struct {
	cfg    Config
	log    logx.Logger
	mu     sync.RWMutex
	client pahomqtt.Client
}

var _ telemetry.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

// WithLogger injects a logger.
func WithLogger(l logx.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Sink and connects to the broker.
func New(cfg Config, opts ...Option) (*Sink, error) {
	s := &Sink{cfg: cfg, log: logx.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(cfg.Broker)
	if cfg.UseTLS {
		clientOpts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	clientOpts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		clientOpts.SetUsername(cfg.Username)
		clientOpts.SetPassword(cfg.Password)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(5 * time.Second)
	clientOpts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(clientOpts)
	s.log.Infof("mqttsink: connecting to %s", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqttsink: connection timeout")
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqttsink: connect: %w", token.Error())
	}

	s.client = client
	return s, nil
}

// Publish implements telemetry.Sink. It publishes every sample in the
// batch, including failed reads, to its own topic and keeps going
// past a per-sample publish failure; the last error encountered, if
// any, is returned after all samples have been attempted.
func (s *Sink) Publish(ctx context.Context, samples []telemetry.Sample) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqttsink: not connected")
	}

	var lastErr error
	for _, sample := range samples {
		if err := s.publishOne(client, sample); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *Sink) publishOne(client pahomqtt.Client, sample telemetry.Sample) error {
	msg := message{
		Tag:       sample.Tag,
		Timestamp: sample.Timestamp,
	}
	if sample.Err != nil {
		msg.Error = sample.Err.Error()
	} else {
		msg.TypeCode = sample.Value.TypeCode
		msg.Data = sample.Value.Data
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqttsink: marshal: %w", err)
	}

	topic := s.cfg.RootTopic + "/" + sample.Tag
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqttsink: publish timeout for %s", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Disconnect(250)
		s.client = nil
	}
	return nil
}
