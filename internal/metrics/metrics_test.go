package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()

	m.PagerFetch("next", nil)
	m.PagerFetch("next", errors.New("boom"))
	m.PagerFetch("next", nil)
	m.LedgerFailure("total_spent")
	m.Event("task", "deleted")

	out := scrape(t, m)
	for _, want := range []string{
		`starchart_pager_fetches_total{action="next",result="ok"} 2`,
		`starchart_pager_fetches_total{action="next",result="error"} 1`,
		`starchart_ledger_read_failures_total{op="total_spent"} 1`,
		`starchart_mutation_events_total{action="deleted",entity="task"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PagerFetch("init", nil)
	m.LedgerFailure("x")
	m.Event("task", "created")
	m.ObserveRequest("GET", 200, time.Millisecond)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", 200, 10*time.Millisecond)

	out := scrape(t, m)
	if !strings.Contains(out, `starchart_http_requests_total{method="GET",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", out)
	}
}
