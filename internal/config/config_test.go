package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: bedrock
  model: amazon.titan-embed-text-v1
aws:
  profile: default
  region: us-east-1
store:
  backend: sqlite
  dir: chroma
  top_k: 5
qdrant:
  host: qdrant.internal
  port: 6334
  collection: my-docs
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "AWS_PROFILE", "AWS_REGION",
		"DOCRAG_STORE_BACKEND", "DOCRAG_STORE_DIR", "DOCRAG_TOP_K",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "8192",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "bedrock",
		"EMBEDDING_MODEL":          "amazon.titan-embed-text-v1",
		"AWS_PROFILE":              "default",
		"AWS_REGION":               "us-east-1",
		"DOCRAG_STORE_BACKEND":     "sqlite",
		"DOCRAG_STORE_DIR":         "chroma",
		"DOCRAG_TOP_K":             "5",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "my-docs",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := []byte("OLLAMA_MODEL=mistral\nDOCRAG_STORE_DIR=from-dotenv\n# comment\n")
	if err := os.WriteFile(envPath, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OLLAMA_MODEL", "")
	os.Unsetenv("OLLAMA_MODEL")
	t.Setenv("DOCRAG_STORE_DIR", "from-process")

	loaded, err := LoadDotEnv(envPath, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != envPath {
		t.Errorf("loaded = %v, want [%s]", loaded, envPath)
	}
	if got := os.Getenv("OLLAMA_MODEL"); got != "mistral" {
		t.Errorf("OLLAMA_MODEL = %q, want mistral", got)
	}
	if got := os.Getenv("DOCRAG_STORE_DIR"); got != "from-process" {
		t.Errorf("DOCRAG_STORE_DIR = %q, process env must win", got)
	}
}

func TestLoad_ResolvesFromDocragConfigEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "docrag.yaml")
	if err := os.WriteFile(cfgPath, []byte("store:\n  top_k: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOCRAG_CONFIG", cfgPath)
	t.Setenv("DOCRAG_TOP_K", "")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded = %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("DOCRAG_TOP_K"); got != "3" {
		t.Errorf("DOCRAG_TOP_K = %q, want 3", got)
	}
}
