package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
	"github.com/p4ulcristian/jarvis-sub000/internal/config"
	"github.com/p4ulcristian/jarvis-sub000/internal/conversation"
	"github.com/p4ulcristian/jarvis-sub000/internal/metrics"
	"github.com/p4ulcristian/jarvis-sub000/internal/transcriber"
)

// HTTPServer provides HTTP API endpoints for monitoring the voice pipeline
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	queue      *audio.CaptureQueue
	segmenter  *audio.Segmenter
	worker     *transcriber.Worker
	gatekeeper *conversation.Gatekeeper
	metrics    *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, queue *audio.CaptureQueue, segmenter *audio.Segmenter,
	worker *transcriber.Worker, gatekeeper *conversation.Gatekeeper, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		queue:      queue,
		segmenter:  segmenter,
		worker:     worker,
		gatekeeper: gatekeeper,
		metrics:    m,
		startTime:  time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Conversation state endpoint
	mux.HandleFunc("/conversation", h.withMetrics("/conversation", h.handleConversation))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Transcription statistics
	mux.HandleFunc("/stats/transcription", h.withMetrics("/stats/transcription", h.handleTranscriptionStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	queueStats := h.queue.Stats()
	workerMetrics := h.worker.Metrics()
	workerHealthy := h.worker.Healthy()

	status := "healthy"
	httpStatus := http.StatusOK
	if !workerHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "jarvis-voice-pipeline",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"capture_queue": map[string]interface{}{
				"status":   "running",
				"depth":    queueStats.Depth,
				"capacity": queueStats.Capacity,
				"dropped":  queueStats.Dropped,
			},
			"transcription_worker": map[string]interface{}{
				"healthy":     workerHealthy,
				"submitted":   workerMetrics.Submitted,
				"succeeded":   workerMetrics.Succeeded,
				"failed":      workerMetrics.Failed,
				"timed_out":   workerMetrics.TimedOut,
				"avg_latency": workerMetrics.AvgLatency.String(),
			},
			"conversation": map[string]interface{}{
				"state": string(h.gatekeeper.CurrentState()),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(health)
}

// handleConversation implements the /conversation endpoint
func (h *HTTPServer) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.gatekeeper.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":        h.config.Audio.SampleRate,
			"device_sample_rate": h.config.Audio.DeviceSampleRate,
			"channels":           h.config.Audio.Channels,
			"chunk_duration":     h.config.Audio.ChunkDuration,
			"queue_capacity":     h.config.Audio.QueueCapacity,
		},
		"vad": map[string]interface{}{
			"energy_threshold":       h.config.VAD.EnergyThreshold,
			"min_speech_ratio":       h.config.VAD.MinSpeechRatio,
			"min_speech_duration":    h.config.VAD.MinSpeechDuration,
			"silence_chunks":         h.config.VAD.SilenceChunks,
			"max_utterance_duration": h.config.VAD.MaxUtteranceDuration,
		},
		"transcription": map[string]interface{}{
			"backend":        h.config.Transcription.Backend,
			"endpoint":       h.config.Transcription.Endpoint,
			"model":          h.config.Transcription.Model,
			"timeout":        h.config.Transcription.Timeout,
			"max_retries":    h.config.Transcription.MaxRetries,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			"queue_size":     h.config.Transcription.QueueSize,
			// Note: API key is intentionally omitted for security
		},
		"conversation": map[string]interface{}{
			"wake_word":                 h.config.Conversation.WakeWord,
			"wake_word_timeout":         h.config.Conversation.WakeWordTimeout,
			"conversation_timeout":      h.config.Conversation.ConversationTimeout,
			"max_conversation_duration": h.config.Conversation.MaxConversationDuration,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":        uptime.String(),
		"timestamp":     time.Now().UTC(),
		"capture_queue": h.queue.Stats(),
		"segmenter":     h.segmenter.Stats(),
		"transcription": h.worker.Metrics(),
		"conversation":  h.gatekeeper.GetStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleTranscriptionStats implements the /stats/transcription endpoint
func (h *HTTPServer) handleTranscriptionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"healthy": h.worker.Healthy(),
		"metrics": h.worker.Metrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Jarvis Voice Pipeline",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                    "API documentation",
			"GET /health":              "Service health check",
			"GET /conversation":        "Current conversation state",
			"GET /config":              "Get service configuration",
			"GET /stats":               "Get service statistics",
			"GET /stats/transcription": "Get transcription worker statistics",
			"GET /metrics":             "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
