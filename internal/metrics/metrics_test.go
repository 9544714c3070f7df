package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	if m.CacheMisses == nil || m.RefloodsTriggered == nil || m.UnreachableDestinations == nil ||
		m.SendErrors == nil || m.ControllerShortcuts == nil || m.CacheEntriesInFlight == nil {
		t.Fatal("New left a collector nil")
	}
}

func TestRecordCacheMiss(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCacheMiss()
	m.RecordCacheMiss()

	if got := testutil.ToFloat64(m.CacheMisses); got != 2 {
		t.Errorf("CacheMisses = %v, want 2", got)
	}
}

func TestRecordSendErrorByNeighbour(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordSendError("3")
	m.RecordSendError("3")
	m.RecordSendError("4")

	if got := testutil.ToFloat64(m.SendErrors.WithLabelValues("3")); got != 2 {
		t.Errorf("SendErrors{3} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SendErrors.WithLabelValues("4")); got != 1 {
		t.Errorf("SendErrors{4} = %v, want 1", got)
	}
}

func TestSetCacheEntriesInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetCacheEntriesInFlight(7)
	if got := testutil.ToFloat64(m.CacheEntriesInFlight); got != 7 {
		t.Errorf("CacheEntriesInFlight = %v, want 7", got)
	}
}
