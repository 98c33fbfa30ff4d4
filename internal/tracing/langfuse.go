// Package tracing wires optional Langfuse tracing into the eino callback
// system so every chat model call made by the query pipeline and the
// evaluation judge is recorded.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Settings holds Langfuse credentials.
type Settings struct {
	Host      string
	PublicKey string
	SecretKey string
}

// SettingsFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY.
func SettingsFromEnv() Settings {
	s := Settings{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
	return s
}

// Enabled reports whether both keys are present.
func (s Settings) Enabled() bool {
	return s.PublicKey != "" && s.SecretKey != ""
}

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. Returns a flush function that must be called
// before process exit to ensure all traces are sent. If Langfuse is not
// configured, both return values are nil and tracing is silently disabled.
func Setup() (callbacks.Handler, func(), bool) {
	s := SettingsFromEnv()
	if !s.Enabled() {
		return nil, nil, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      s.Host,
		PublicKey: s.PublicKey,
		SecretKey: s.SecretKey,
	})

	return handler, flusher, true
}

// Install registers the Langfuse handler globally when configured and
// returns the flush function to defer. It always returns a callable func.
func Install(log *slog.Logger) func() {
	handler, flush, ok := Setup()
	if !ok {
		log.Debug("tracing: langfuse not configured")
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", SettingsFromEnv().Host))
	return flush
}
