// Package server implements the HTTP API that exposes the docrag query
// pipeline and evaluation harness. It is started by `docrag serve`.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docrag-go/internal/eval"
	"github.com/54b3r/docrag-go/internal/logging"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// New constructs a Server from the provided querier, optional evaluator and config.
func New(q Querier, ev Evaluator, cfg *Config) (*Server, error) {
	if q == nil {
		return nil, fmt.Errorf("server: querier must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 3 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Eval makes two model calls per request.
		cfg.WriteTimeout = 2*cfg.QueryTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		querier:   q,
		evaluator: ev,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	rl.onReject = func(path string) { s.metrics.rateLimitedTotal.WithLabelValues(path).Inc() }
	s.stopRL = stop

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, rl.middleware(authMiddleware(cfg.APIKey, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", protect("query", s.handleQuery))
	if ev != nil {
		mux.Handle("POST /api/eval", protect("eval", s.handleEval))
	}
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		log.Warn("server: DOCRAG_API_KEY not set, API authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler. Tests drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queriesInFlight.Inc()
	defer s.metrics.queriesInFlight.Dec()
	start := time.Now()

	resp, err := s.querier.Query(ctx, req.Question)
	outcome := outcomeOf(ctx, err)
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("query failed", slog.String("outcome", outcome), slog.Any("error", err))
		status := http.StatusBadGateway
		if outcome == outcomeTimeout {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Response: resp.Text,
		Sources:  resp.Sources,
		Prompt:   resp.Prompt,
	}, log)
}

// handleEval handles POST /api/eval. A judge reply that is neither true nor
// false yields 422 with the raw judge text.
func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req evalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Expected) == "" {
		writeError(w, http.StatusBadRequest, "question and expected are required", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*s.cfg.QueryTimeout)
	defer cancel()

	res, err := s.evaluator.QueryAndValidate(ctx, req.Question, req.Expected)
	if err != nil {
		var uv *eval.UnexpectedVerdictError
		if errors.As(err, &uv) {
			s.metrics.evalVerdictsTotal.WithLabelValues("unexpected").Inc()
			log.Warn("eval: unexpected judge verdict", slog.String("judge", uv.Text))
			writeError(w, http.StatusUnprocessableEntity, "judge returned neither true nor false", uv.Text)
			return
		}
		s.metrics.evalVerdictsTotal.WithLabelValues(outcomeError).Inc()
		log.Error("eval failed", slog.Any("error", err))
		status := http.StatusBadGateway
		if outcomeOf(ctx, err) == outcomeTimeout {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error(), "")
		return
	}

	s.metrics.evalVerdictsTotal.WithLabelValues(string(res.Verdict)).Inc()
	writeJSON(w, http.StatusOK, evalResponse{
		Verdict:  string(res.Verdict),
		Judge:    res.Judge,
		Response: res.Actual,
		Sources:  res.Sources,
	}, log)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logging.FromContext(r.Context()))
}

// decodeJSON decodes a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes an errorResponse.
func writeError(w http.ResponseWriter, status int, msg, judge string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Judge: judge})
}
