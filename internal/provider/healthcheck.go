package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// httpHealthCheck probes a GET endpoint that costs no tokens.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

// HealthCheck returns nil when the endpoint answers with a 2xx status.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("health check: create request: %w", err)
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check: %s returned HTTP %d", h.url, resp.StatusCode)
	}
	return nil
}

// HealthCheckFor returns a zero-cost health check for backends that have one,
// or nil when readiness must fall back to a Generate call.
func HealthCheckFor(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	switch cfg.Backend {
	case BackendOllama:
		return &httpHealthCheck{
			url:    strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags",
			client: client,
		}
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &httpHealthCheck{
			url:    strings.TrimRight(base, "/") + "/models",
			header: http.Header{"Authorization": {"Bearer " + cfg.OpenAI.APIKey}},
			client: client,
		}
	default:
		return nil
	}
}
