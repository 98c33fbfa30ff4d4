package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckFor(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path == "/down/models" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hc := HealthCheckFor(&Config{Backend: BackendOllama, Ollama: ProviderOllama{Host: srv.URL + "/"}})
	if hc == nil {
		t.Fatal("expected ollama health check")
	}
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() unexpected error: %v", err)
	}
	if gotPath != "/api/tags" {
		t.Errorf("path = %q, want /api/tags", gotPath)
	}

	hc = HealthCheckFor(&Config{Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk", BaseURL: srv.URL + "/down"}})
	if err := hc.HealthCheck(context.Background()); err == nil {
		t.Error("expected error on 503")
	}
	if gotAuth != "Bearer sk" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	if HealthCheckFor(&Config{Backend: BackendGemini}) != nil {
		t.Error("gemini has no zero-cost health check")
	}
}
