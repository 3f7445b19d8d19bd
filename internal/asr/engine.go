package asr

import (
	"context"
	"fmt"
	"time"
)

// Engine is the capability interface for speech-to-text backends. A backend
// may take unbounded wall-clock time; the transcription worker wraps every
// call with its own timeout, so implementations only need to honor the
// context when they can.
type Engine interface {
	// Transcribe converts normalized mono samples at the given rate into text.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)

	// Name returns the backend name for logging.
	Name() string
}

// Backend identifiers selectable via configuration.
const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

// Config contains configuration for constructing an engine backend.
type Config struct {
	Backend       string
	Endpoint      string
	APIKey        string
	Model         string
	Language      string
	Prompt        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// New constructs the engine backend named by the configuration. Backend
// selection happens once at startup; there is no runtime probing or fallback
// between backends.
func New(config Config) (Engine, error) {
	switch config.Backend {
	case BackendHTTP:
		return NewHTTPEngine(config)
	case BackendOpenAI:
		return NewOpenAIEngine(config)
	default:
		return nil, fmt.Errorf("unknown transcription backend: %q", config.Backend)
	}
}
