package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetGauges(42, 3, 120, 81, 1)
	m.ObserveChange("spread")
	m.ObserveChange("spread")
	m.ObserveChange("mature")
	m.ObserveCycle(3*time.Millisecond, 1, 2)
	m.ObserveBurst(7)

	if got := testutil.ToFloat64(m.tick); got != 42 {
		t.Fatalf("tick: got %v want 42", got)
	}
	if got := testutil.ToFloat64(m.frontier); got != 120 {
		t.Fatalf("frontier: got %v want 120", got)
	}
	if got := testutil.ToFloat64(m.conversions.WithLabelValues("spread")); got != 2 {
		t.Fatalf("spread changes: got %v want 2", got)
	}
	if got := testutil.ToFloat64(m.sourcesRemoved); got != 1 {
		t.Fatalf("removed: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.sourcesSkipped); got != 2 {
		t.Fatalf("skipped: got %v want 2", got)
	}
	if got := testutil.ToFloat64(m.burstBlocks); got != 7 {
		t.Fatalf("burst blocks: got %v want 7", got)
	}
}

func TestMetrics_HandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetGauges(5, 1, 1, 1, 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "festering_world_tick 5") {
		t.Fatalf("missing tick gauge in:\n%s", body)
	}
}
