// Package telemetry polls a set of tags on an interval and publishes
// each tick's batch of samples to one or more Sinks. It has no
// knowledge of MQTT or Kafka specifically; those live in
// telemetry/mqttsink and telemetry/kafkasink as Sink implementations.
package telemetry

import (
	"context"
	"time"

	"github.com/plcgo/goenip/logx"
	"github.com/plcgo/goenip/tagio"
)

// Sample is one tag observation ready for publication. Err is set
// when the read for Tag failed; Value is then the zero Value. A
// failed read is still published, not dropped, so a sink never
// confuses "tag absent from this tick" with "tag read failed".
type Sample struct {
	Tag       string
	Value     tagio.Value
	Timestamp int64 // unix nanoseconds, stamped by the poller
	Err       error
}

// Sink receives one tick's batch of samples. Publish must be safe to
// call from the poller's single goroutine; sinks that need their own
// concurrency (a buffered channel to a network client) manage it
// internally.
type Sink interface {
	Publish(ctx context.Context, samples []Sample) error
}

// Job names one tag and how many elements to read each tick.
type Job struct {
	Tag   string
	Count int
}

// Poller reads a fixed set of tags on an interval and fans the tick's
// batch of samples out to every configured Sink. A failing sink is
// logged and does not block the others or stop the poll loop.
type Poller struct {
	backend  tagio.Backend
	jobs     []Job
	sinks    []Sink
	interval time.Duration
	log      logx.Logger
	now      func() time.Time
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger injects a logger.
func WithLogger(l logx.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// New builds a Poller over backend, polling jobs every interval and
// publishing to sinks.
func New(backend tagio.Backend, jobs []Job, sinks []Sink, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		backend:  backend,
		jobs:     jobs,
		sinks:    sinks,
		interval: interval,
		log:      logx.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce performs a single poll-and-publish pass and returns, for
// one-shot callers that don't want the ticker loop.
func (p *Poller) RunOnce(ctx context.Context) {
	p.tick(ctx)
}

// Run blocks, polling until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	samples := make([]Sample, 0, len(p.jobs))
	for _, job := range p.jobs {
		value, err := p.backend.ReadTag(ctx, job.Tag, job.Count)
		if err != nil {
			p.log.Warnf("telemetry: read %s failed: %v", job.Tag, err)
		}
		samples = append(samples, Sample{
			Tag:       job.Tag,
			Value:     value,
			Timestamp: p.now().UnixNano(),
			Err:       err,
		})
	}

	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, samples); err != nil {
			p.log.Errorf("telemetry: publish failed: %v", err)
		}
	}
}
