// Package kafkasink publishes tag samples to a Kafka topic as JSON
// messages keyed by tag address.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	"github.com/plcgo/goenip/logx"
	"github.com/plcgo/goenip/telemetry"
)

// Config configures the Kafka writer.
type Config struct {
	Brokers []string
	Topic   string
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

// Sink publishes telemetry.Sample values to Kafka. It implements
// telemetry.Sink.
type Sink struct {
	writer *kafka.Writer
	log    logx.Logger
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

// New builds a Sink writing to cfg.Topic across cfg.Brokers.
func New(cfg Config, opts ...Option) *Sink {
	s := &Sink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.Hash{},
		},
		log: logx.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish implements telemetry.Sink. It writes every sample in the
// batch, including failed reads, as its own Kafka message and keeps
// going past a per-sample write failure; the last error encountered,
// if any, is returned after all samples have been attempted.
func (s *Sink) Publish(ctx context.Context, samples []telemetry.Sample) error {
	var lastErr error
	for _, sample := range samples {
		if err := s.publishOne(ctx, sample); err != nil {
			s.log.Errorf("kafkasink: write failed for %s: %v", sample.Tag, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *Sink) publishOne(ctx context.Context, sample telemetry.Sample) error {
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
		return fmt.Errorf("kafkasink: marshal: %w", err)
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sample.Tag),
		Value: payload,
	})
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
