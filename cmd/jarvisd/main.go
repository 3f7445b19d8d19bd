package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p4ulcristian/jarvis-sub000/internal/asr"
	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
	"github.com/p4ulcristian/jarvis-sub000/internal/config"
	"github.com/p4ulcristian/jarvis-sub000/internal/control"
	"github.com/p4ulcristian/jarvis-sub000/internal/conversation"
	"github.com/p4ulcristian/jarvis-sub000/internal/lifecycle"
	"github.com/p4ulcristian/jarvis-sub000/internal/metrics"
	"github.com/p4ulcristian/jarvis-sub000/internal/pipeline"
	"github.com/p4ulcristian/jarvis-sub000/internal/server"
	"github.com/p4ulcristian/jarvis-sub000/internal/transcriber"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "jarvis-voice-pipeline"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("device_sample_rate", cfg.Audio.DeviceSampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Int("queue_capacity", cfg.Audio.QueueCapacity),
		slog.Int("energy_threshold", cfg.VAD.EnergyThreshold),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("wake_word", cfg.Conversation.WakeWord),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Capture queue between the device callback and the pipeline loop
	queue, err := audio.NewCaptureQueue(cfg.Audio.QueueCapacity)
	if err != nil {
		logger.Error("Failed to create capture queue", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Segmentation buffer accumulating chunks into utterances
	segmenter, err := audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:        cfg.Audio.SampleRate,
		EnergyThreshold:   cfg.VAD.EnergyThreshold,
		MinSpeechRatio:    cfg.VAD.MinSpeechRatio,
		MinSpeechDuration: cfg.VAD.GetMinSpeechDuration(),
		SilenceChunks:     cfg.VAD.SilenceChunks,
		MaxDuration:       cfg.VAD.GetMaxUtteranceDuration(),
	})
	if err != nil {
		logger.Error("Failed to create segmenter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Transcription engine backend
	engine, err := asr.New(asr.Config{
		Backend:       cfg.Transcription.Backend,
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Prompt:        cfg.Transcription.Prompt,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription engine initialized", slog.String("backend", engine.Name()))

	// Asynchronous transcription worker
	worker, err := transcriber.NewWorker(engine, transcriber.Config{
		Timeout:   cfg.Transcription.GetTimeoutDuration(),
		QueueSize: cfg.Transcription.QueueSize,
	}, logger)
	if err != nil {
		logger.Error("Failed to create transcription worker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Conversation gatekeeper
	gatekeeper := conversation.NewGatekeeper(conversation.Config{
		WakeWordTimeout:         cfg.Conversation.GetWakeWordTimeout(),
		ConversationTimeout:     cfg.Conversation.GetConversationTimeout(),
		MaxConversationDuration: cfg.Conversation.GetMaxConversationDuration(),
	}, logger)

	// Transcript sink
	sink := pipeline.NewFileSink(cfg.Pipeline.TranscriptFile)

	// Orchestration loop
	pipe, err := pipeline.New(pipeline.Config{
		WakeWord:        cfg.Conversation.WakeWord,
		PollInterval:    cfg.Pipeline.GetPollInterval(),
		ResultPoll:      cfg.Pipeline.GetResultPoll(),
		MetricsInterval: cfg.Pipeline.GetMetricsInterval(),
	}, queue, segmenter, worker, gatekeeper, sink, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Microphone capture
	capture, err := audio.NewCapture(audio.CaptureConfig{
		DeviceSampleRate: cfg.Audio.DeviceSampleRate,
		SampleRate:       cfg.Audio.SampleRate,
		Channels:         cfg.Audio.Channels,
		ChunkDuration:    cfg.Audio.GetChunkDuration(),
	}, queue, logger)
	if err != nil {
		logger.Error("Failed to create audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Shutdown coordinator. Registration order is startup order; teardown
	// happens last-registered first, so the monitoring surface and control
	// inputs go down before the loop, the loop before the worker, and the
	// device last.
	coordinator := lifecycle.NewCoordinator(cfg.Shutdown.GetComponentTimeout(), logger)

	if err := capture.Start(); err != nil {
		logger.Error("Failed to start audio capture", slog.String("error", err.Error()))
		os.Exit(1)
	}
	coordinator.Register("capture", capture.Stop, 0, nil)

	if err := worker.Start(); err != nil {
		logger.Error("Failed to start transcription worker", slog.String("error", err.Error()))
		coordinator.Shutdown()
		os.Exit(1)
	}
	coordinator.Register("transcription_worker", worker.Stop, 0, nil)

	if err := pipe.Start(); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		coordinator.Shutdown()
		os.Exit(1)
	}
	coordinator.Register("pipeline", pipe.Stop, 0, nil)

	// Trigger-file control surface (if enabled)
	if cfg.Control.Enabled {
		watcher, err := control.NewWatcher(cfg.Control.Dir, control.Actions{
			OnWake:  pipe.OnWakeWord,
			OnReset: pipe.ResetSegment,
			OnEnd:   func() { pipe.EndConversation("external_request") },
		}, logger)
		if err != nil {
			logger.Error("Failed to create control watcher", slog.String("error", err.Error()))
			coordinator.Shutdown()
			os.Exit(1)
		}

		if err := watcher.Start(); err != nil {
			logger.Error("Failed to start control watcher", slog.String("error", err.Error()))
			coordinator.Shutdown()
			os.Exit(1)
		}
		coordinator.Register("control_watcher", watcher.Stop, 0, nil)
		logger.Info("Control watcher started", slog.String("dir", cfg.Control.Dir))
	}

	// HTTP API server (if enabled)
	if cfg.HTTP.Enabled {
		httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, queue, segmenter, worker, gatekeeper, appMetrics)

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			coordinator.Shutdown()
			os.Exit(1)
		}

		coordinator.Register("http_server", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GetComponentTimeout())
			defer cancel()
			return httpServer.Stop(ctx)
		}, 0, nil)

		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	clean := coordinator.Shutdown()

	// Final statistics
	workerMetrics := worker.Metrics()
	logger.Info("Final pipeline statistics",
		slog.Uint64("chunks_dropped", queue.Dropped()),
		slog.Uint64("transcriptions_submitted", workerMetrics.Submitted),
		slog.Uint64("transcriptions_succeeded", workerMetrics.Succeeded),
		slog.Uint64("transcriptions_failed", workerMetrics.Failed),
		slog.Uint64("transcriptions_timed_out", workerMetrics.TimedOut),
		slog.Duration("avg_latency", workerMetrics.AvgLatency),
	)

	if !clean {
		logger.Warn("Service stopped with forced or failed components")
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
