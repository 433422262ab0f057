package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.ScraperRequestsTotal == nil {
		t.Error("ScraperRequestsTotal is nil")
	}
	if m.ScraperDurationSeconds == nil {
		t.Error("ScraperDurationSeconds is nil")
	}
	if m.SessionResolutionsTotal == nil {
		t.Error("SessionResolutionsTotal is nil")
	}
	if m.LoginAttemptsTotal == nil {
		t.Error("LoginAttemptsTotal is nil")
	}
	if m.RecordsParsedTotal == nil {
		t.Error("RecordsParsedTotal is nil")
	}
	if m.SchemaMismatchTotal == nil {
		t.Error("SchemaMismatchTotal is nil")
	}
	if m.RateLimiterWaitDuration == nil {
		t.Error("RateLimiterWaitDuration is nil")
	}
	if m.SyncTotal == nil {
		t.Error("SyncTotal is nil")
	}
	if m.SyncDuration == nil {
		t.Error("SyncDuration is nil")
	}
}

func TestRecordMethods(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordScraperRequest("GET", "2xx", 0.2)
	m.RecordScraperRequest("GET", "2xx", 0.3)
	m.RecordSessionResolution("dynamic")
	m.RecordLogin("demo", "success")
	m.RecordParsed("demo", "class", 35)
	m.RecordSchemaMismatch("demo", "grade")
	m.RecordRateLimiterWait(0.01)
	m.RecordSync("demo", "success", 4.2)

	if got := testutil.ToFloat64(m.ScraperRequestsTotal.WithLabelValues("GET", "2xx")); got != 2 {
		t.Errorf("scraper requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionResolutionsTotal.WithLabelValues("dynamic")); got != 1 {
		t.Errorf("session resolutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("demo", "success")); got != 1 {
		t.Errorf("login attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RecordsParsedTotal.WithLabelValues("demo", "class")); got != 35 {
		t.Errorf("records parsed = %v, want 35", got)
	}
	if got := testutil.ToFloat64(m.SchemaMismatchTotal.WithLabelValues("demo", "grade")); got != 1 {
		t.Errorf("schema mismatch = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SyncTotal.WithLabelValues("demo", "success")); got != 1 {
		t.Errorf("sync total = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics

	// None of these may panic
	m.RecordScraperRequest("GET", "error", 1)
	m.RecordSessionResolution("fallback")
	m.RecordLogin("demo", "auth_failed")
	m.RecordParsed("demo", "grade", 3)
	m.RecordSchemaMismatch("demo", "class")
	m.RecordRateLimiterWait(0.5)
	m.RecordSync("demo", "error", 1)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.RecordLogin("demo", "success")

	if err := WriteTextfile(registry, ""); err != nil {
		t.Fatalf("WriteTextfile() with empty path error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "openct.prom")
	if err := WriteTextfile(registry, path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "openct_login_attempts_total") {
		t.Errorf("textfile missing login metric:\n%s", data)
	}
}
