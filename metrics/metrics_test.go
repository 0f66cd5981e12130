package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveReadCountsOkAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveRead("Tag1", nil, 5*time.Millisecond)
	r.ObserveRead("Tag1", errors.New("timeout"), 5*time.Millisecond)
	r.ObserveRead("Tag1", nil, 5*time.Millisecond)

	if got := testutil.ToFloat64(r.reads.WithLabelValues("Tag1", "ok")); got != 2 {
		t.Errorf("ok reads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.reads.WithLabelValues("Tag1", "error")); got != 1 {
		t.Errorf("error reads = %v, want 1", got)
	}
}

func TestObserveWriteCountsOkAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveWrite("Tag2", nil, time.Millisecond)
	r.ObserveWrite("Tag2", errors.New("refused"), time.Millisecond)

	if got := testutil.ToFloat64(r.writes.WithLabelValues("Tag2", "ok")); got != 1 {
		t.Errorf("ok writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.writes.WithLabelValues("Tag2", "error")); got != 1 {
		t.Errorf("error writes = %v, want 1", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveRead("Tag1", nil, time.Millisecond)
	r.ObserveWrite("Tag1", nil, time.Millisecond)
}

func TestNewRegistersDistinctMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	// Counter vectors only show up in Gather once a label set is used.
	r.ObserveRead("Tag1", nil, time.Millisecond)
	r.ObserveWrite("Tag1", nil, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"goenip_tag_reads_total",
		"goenip_tag_writes_total",
		"goenip_tag_read_duration_seconds",
		"goenip_tag_write_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("missing registered metric %s", want)
		}
	}
}
