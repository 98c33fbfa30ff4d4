package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docrag-go/internal/eval"
	"github.com/54b3r/docrag-go/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// It must exceed QueryTimeout plus the judge call on /api/eval.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single /api/query or /api/eval request
	// (default: 3 minutes).
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Querier answers a question through the RAG pipeline.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type Querier interface {
	Query(ctx context.Context, question string) (*pipeline.Response, error)
}

// Evaluator grades a pipeline answer against an expected one.
// *eval.Harness satisfies it.
type Evaluator interface {
	QueryAndValidate(ctx context.Context, question, expected string) (*eval.Result, error)
}

// Server is the HTTP server that exposes the query pipeline and the
// evaluation harness.
type Server struct {
	// querier handles POST /api/query.
	querier Querier
	// evaluator handles POST /api/eval. Nil leaves the route unregistered.
	evaluator Evaluator
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language query.
	Question string `json:"question"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Response is the model's answer.
	Response string `json:"response"`
	// Sources holds one document id per retrieved chunk, in rank order.
	Sources []string `json:"sources"`
	// Prompt is the exact prompt sent to the model.
	Prompt string `json:"prompt"`
}

// evalRequest is the JSON body for POST /api/eval.
type evalRequest struct {
	Question string `json:"question"`
	Expected string `json:"expected"`
}

// evalResponse is the JSON response for POST /api/eval.
type evalResponse struct {
	// Verdict is "pass" or "fail".
	Verdict string `json:"verdict"`
	// Judge is the normalized judge output.
	Judge string `json:"judge"`
	// Response is the pipeline's answer that was graded.
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// errorResponse is the JSON body for handler errors.
type errorResponse struct {
	Error string `json:"error"`
	// Judge carries the raw judge text on 422 responses.
	Judge string `json:"judge,omitempty"`
}
