package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()

	m.CaptureOutcome("frame")
	m.CaptureOutcome("frame")
	m.CaptureOutcome("cancel_transient")
	m.BrightnessApplied(40)
	m.BrightnessReported(35)
	m.Brightness.Set(42)
	m.Decisions.WithLabelValues("learned").Inc()

	body := scrape(t, m)
	for _, want := range []string{
		`lumen_capture_outcomes_total{outcome="frame"} 2`,
		`lumen_capture_outcomes_total{outcome="cancel_transient"} 1`,
		"lumen_brightness_writes_total 1",
		"lumen_brightness_reports_total 1",
		"lumen_brightness_percent 42",
		`lumen_decisions_total{source="learned"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Overrides.Inc()

	if body := scrape(t, b); !strings.Contains(body, "lumen_overrides_total 0") {
		t.Error("second registry should not see the first one's overrides")
	}
}
