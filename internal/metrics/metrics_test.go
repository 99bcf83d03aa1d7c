package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.ObserveRefresh(ViewListings, time.Now(), nil)
	m.ObserveRefresh(ViewListings, time.Now(), errors.New("boom"))
	m.RecordListings(3, 2)
	m.RecordListings(1, 1)
	m.RecordOutOfBand()
	m.RecordIntent("buy", "success")

	if got := testutil.ToFloat64(m.RefreshErrors.WithLabelValues(ViewListings)); got != 1 {
		t.Errorf("refresh errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveListings); got != 1 {
		t.Errorf("active listings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DroppedListings); got != 3 {
		t.Errorf("dropped listings = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Intents.WithLabelValues("buy", "success")); got != 1 {
		t.Errorf("intents = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRefresh(ViewStats, time.Now(), nil)
	m.RecordListings(1, 1)
	m.RecordOutOfBand()
	m.RecordIntent("mint", "failure")
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.RecordOutOfBand()
	if got := testutil.ToFloat64(b.OutOfBandRefresh); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordOutOfBand()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "carmarket_out_of_band_refreshes_total 1") {
		t.Errorf("exposition missing counter:\n%s", rec.Body.String())
	}
}
