// Package metrics exposes Prometheus counters and histograms for tag
// read/write operations. A nil *Recorder is valid and records nothing,
// so callers that don't want metrics can simply not construct one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements cipclient.MetricsRecorder against a Prometheus
// registry.
type Recorder struct {
	reads    *prometheus.CounterVec
	writes   *prometheus.CounterVec
	readDur  prometheus.Histogram
	writeDur prometheus.Histogram
}

// New registers the recorder's metrics on reg and returns a Recorder.
// Passing a nil registry is an error; callers that want to disable
// metrics entirely should pass a nil *Recorder to cipclient.WithMetrics
// instead of calling New.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goenip",
			Name:      "tag_reads_total",
			Help:      "Tag read attempts by address and outcome.",
		}, []string{"address", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goenip",
			Name:      "tag_writes_total",
			Help:      "Tag write attempts by address and outcome.",
		}, []string{"address", "outcome"}),
		readDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goenip",
			Name:      "tag_read_duration_seconds",
			Help:      "Tag read latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		writeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goenip",
			Name:      "tag_write_duration_seconds",
			Help:      "Tag write latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.reads, r.writes, r.readDur, r.writeDur)
	return r
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// ObserveRead implements cipclient.MetricsRecorder.
func (r *Recorder) ObserveRead(address string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.reads.WithLabelValues(address, outcome(err)).Inc()
	r.readDur.Observe(d.Seconds())
}

// ObserveWrite implements cipclient.MetricsRecorder.
func (r *Recorder) ObserveWrite(address string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(address, outcome(err)).Inc()
	r.writeDur.Observe(d.Seconds())
}
