package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docrag-go/internal/eval"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := newTestServer()
	s.metrics = newServerMetrics(reg)
	return s, reg
}

// counterValue returns the value of the named counter with the given label
// pair, and whether it was found.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) (float64, bool) {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue(), true
				}
			}
		}
	}
	return 0, false
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_QueryOutcomeCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)
	s.querier = &fakeQuerier{resp: sampleResponse()}

	s.handleQuery(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"q"}`)))

	s.querier = &fakeQuerier{err: errors.New("boom")}
	s.handleQuery(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"q"}`)))

	if v, ok := counterValue(t, reg, "docrag_query_requests_total", "outcome", "ok"); !ok || v != 1 {
		t.Errorf("ok counter = %v (found=%v), want 1", v, ok)
	}
	if v, ok := counterValue(t, reg, "docrag_query_requests_total", "outcome", "error"); !ok || v != 1 {
		t.Errorf("error counter = %v (found=%v), want 1", v, ok)
	}
}

func Test_Metrics_EvalUnexpectedVerdictCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)
	s.evaluator = &fakeEvaluator{err: fmt.Errorf("eval: %w", errUnexpected())}

	s.handleEval(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/eval",
		strings.NewReader(`{"question":"q","expected":"e"}`)))

	if v, ok := counterValue(t, reg, "docrag_eval_verdicts_total", "verdict", "unexpected"); !ok || v != 1 {
		t.Errorf("unexpected counter = %v (found=%v), want 1", v, ok)
	}
}

func Test_Metrics_InFlightGauge(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	s.metrics.queriesInFlight.Inc()
	s.metrics.queriesInFlight.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "docrag_query_in_flight" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 2 {
				t.Errorf("want in_flight=2, got %v", v)
			}
			return
		}
	}
	t.Error("docrag_query_in_flight not found in gathered metrics")
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-expired.Done()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"nil error", context.Background(), nil, outcomeOK},
		{"plain error", context.Background(), errors.New("x"), outcomeError},
		{"wrapped deadline", context.Background(), fmt.Errorf("a: %w", context.DeadlineExceeded), outcomeTimeout},
		{"expired context", expired, errors.New("provider: timed out"), outcomeTimeout},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.ctx, tt.err); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func errUnexpected() error {
	return &eval.UnexpectedVerdictError{Text: "unsure"}
}
