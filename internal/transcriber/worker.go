package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p4ulcristian/jarvis-sub000/internal/asr"
	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
)

// Request is one utterance queued for transcription. Owned exclusively by the
// worker from acceptance until a Result is produced.
type Request struct {
	Audio     *audio.Utterance
	Submitted time.Time
	ID        uint64
}

// Result is the outcome of one accepted request. Exactly one Result is
// produced per accepted request, even on internal error.
type Result struct {
	RequestID uint64
	Text      string
	Latency   time.Duration
	Success   bool
	TimedOut  bool
	Err       string
}

// WorkerMetrics is a point-in-time snapshot of worker counters.
type WorkerMetrics struct {
	Submitted     uint64        `json:"submitted"`
	Succeeded     uint64        `json:"succeeded"`
	Failed        uint64        `json:"failed"`
	TimedOut      uint64        `json:"timed_out"`
	AvgLatency    time.Duration `json:"avg_latency"`
	MaxLatency    time.Duration `json:"max_latency"`
	QueueDepth    int           `json:"queue_depth"`
	QueueCapacity int           `json:"queue_capacity"`
}

// Config contains transcription worker configuration.
type Config struct {
	Timeout             time.Duration // hard bound on one engine call
	QueueSize           int
	MaxConsecFailures   int           // unhealthy above this many failures in a row
	MaxConsecTimeouts   int           // unhealthy above this many timeouts in a row
	SuccessStaleWindow  time.Duration // unhealthy when no success within this window
}

// Worker runs transcription asynchronously so a slow or hung engine can never
// stall audio capture. One request is in flight at a time; the engine call
// itself runs on a disposable goroutine joined with a hard timeout, and a call
// that outlives the timeout is abandoned: its eventual output is discarded and
// it never touches worker counters.
type Worker struct {
	engine asr.Engine
	config Config
	logger *slog.Logger

	requests chan *Request
	results  chan *Result
	stop     chan struct{}
	wg       sync.WaitGroup

	// Metrics, guarded by mu. Only the worker goroutine mutates them.
	metrics             WorkerMetrics
	consecutiveFailures int
	consecutiveTimeouts int
	lastSuccess         time.Time
	mu                  sync.Mutex

	nextRequestID uint64
	running       bool
	runMu         sync.Mutex
}

// engineOutcome carries the disposable goroutine's result back to the worker
// loop. The channel is buffered so an abandoned call can complete and exit
// without blocking forever.
type engineOutcome struct {
	text    string
	latency time.Duration
	err     error
}

// NewWorker creates a transcription worker for the given engine.
func NewWorker(engine asr.Engine, config Config, logger *slog.Logger) (*Worker, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	if config.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}

	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
	}

	if config.MaxConsecFailures <= 0 {
		config.MaxConsecFailures = 5
	}

	if config.MaxConsecTimeouts <= 0 {
		config.MaxConsecTimeouts = 3
	}

	if config.SuccessStaleWindow <= 0 {
		config.SuccessStaleWindow = 30 * time.Second
	}

	return &Worker{
		engine:   engine,
		config:   config,
		logger:   logger,
		requests: make(chan *Request, config.QueueSize),
		results:  make(chan *Result, config.QueueSize*2),
		stop:     make(chan struct{}),
		metrics:  WorkerMetrics{QueueCapacity: config.QueueSize},
	}, nil
}

// Start launches the worker loop.
func (w *Worker) Start() error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.mu.Lock()
	w.lastSuccess = time.Now()
	w.mu.Unlock()

	w.wg.Add(1)
	go w.workerLoop()

	w.logger.Info("Transcription worker started",
		slog.String("engine", w.engine.Name()),
		slog.Duration("timeout", w.config.Timeout),
		slog.Int("queue_size", w.config.QueueSize),
	)

	return nil
}

// Stop stops the worker loop. Requests still queued are not transcribed. A
// transcription already in flight keeps its goroutine until the configured
// timeout would have expired; its output is discarded.
func (w *Worker) Stop() error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stop)
	w.wg.Wait()

	w.logger.Info("Transcription worker stopped")
	return nil
}

// Submit enqueues an utterance for transcription. Returns false when the
// internal queue is full; the caller must treat that as the backpressure
// signal and skip the utterance rather than wait.
func (w *Worker) Submit(utterance *audio.Utterance) bool {
	w.runMu.Lock()
	running := w.running
	w.runMu.Unlock()

	if !running {
		w.logger.Error("Submit called before Start")
		return false
	}

	w.mu.Lock()
	id := w.nextRequestID
	w.nextRequestID++
	w.mu.Unlock()

	request := &Request{
		Audio:     utterance,
		Submitted: time.Now(),
		ID:        id,
	}

	select {
	case w.requests <- request:
	default:
		w.logger.Error("Transcription queue full - dropping request",
			slog.Uint64("request_id", id),
		)
		return false
	}

	w.mu.Lock()
	w.metrics.Submitted++
	w.mu.Unlock()

	depth := len(w.requests)
	utilization := float64(depth) / float64(w.config.QueueSize)
	if utilization > 0.75 {
		w.logger.Error("Transcription queue critical - system degraded",
			slog.Int("depth", depth),
			slog.Int("capacity", w.config.QueueSize),
		)
	} else if utilization > 0.50 {
		w.logger.Warn("Transcription queue high",
			slog.Int("depth", depth),
			slog.Int("capacity", w.config.QueueSize),
		)
	}

	return true
}

// PollResult retrieves the next result, waiting up to timeout. Returns
// (nil, false) on expiry. Results arrive asynchronously relative to
// submission, so callers poll every loop iteration.
func (w *Worker) PollResult(timeout time.Duration) (*Result, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-w.results:
		return result, true
	case <-timer.C:
		return nil, false
	}
}

// Metrics returns a thread-safe snapshot of worker counters.
func (w *Worker) Metrics() WorkerMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()

	m := w.metrics
	m.QueueDepth = len(w.requests)
	return m
}

// Healthy reports whether recent results can be trusted. False when failures
// or timeouts pile up consecutively, or when requests keep arriving but
// nothing has succeeded within the stale window. Surfaced as a status flag so
// the caller can decide to restart the engine out-of-band; never an error.
func (w *Worker) Healthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.consecutiveFailures > w.config.MaxConsecFailures {
		return false
	}

	if w.consecutiveTimeouts > w.config.MaxConsecTimeouts {
		return false
	}

	if w.metrics.Submitted > 0 && time.Since(w.lastSuccess) > w.config.SuccessStaleWindow {
		return false
	}

	return true
}

// workerLoop pulls one request at a time and records its result. Shutdown is
// observed immediately via the stop channel.
func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case request := <-w.requests:
			result := w.transcribeWithTimeout(request)
			w.recordResult(result)

			select {
			case w.results <- result:
			default:
				// The result queue is sized to absorb a slow consumer;
				// overflow means the orchestration loop is gone or wedged.
				w.logger.Error("Result queue full - dropping result",
					slog.Uint64("request_id", result.RequestID),
				)
			}
		}
	}
}

// transcribeWithTimeout runs one engine call on a disposable goroutine and
// joins it with a hard timeout. On expiry the result is synthesized as a
// timeout failure; the goroutine finishes (or hangs) in the background and
// its late outcome lands in a buffered channel that nothing reads.
func (w *Worker) transcribeWithTimeout(request *Request) *Result {
	done := make(chan engineOutcome, 1)
	ctx, cancel := context.WithTimeout(context.Background(), w.config.Timeout)
	defer cancel()

	go func() {
		startTime := time.Now()
		text, err := w.engine.Transcribe(ctx, request.Audio.Samples, request.Audio.SampleRate)
		done <- engineOutcome{text: text, latency: time.Since(startTime), err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			w.logger.Error("Transcription failed",
				slog.Uint64("request_id", request.ID),
				slog.String("error", outcome.err.Error()),
			)
			return &Result{
				RequestID: request.ID,
				Latency:   outcome.latency,
				Err:       outcome.err.Error(),
			}
		}

		return &Result{
			RequestID: request.ID,
			Text:      outcome.text,
			Latency:   outcome.latency,
			Success:   true,
		}

	case <-time.After(w.config.Timeout):
		w.logger.Error("Transcription timeout - abandoning engine call",
			slog.Uint64("request_id", request.ID),
			slog.Duration("timeout", w.config.Timeout),
		)
		return &Result{
			RequestID: request.ID,
			Latency:   w.config.Timeout,
			TimedOut:  true,
			Err:       fmt.Sprintf("timeout after %v", w.config.Timeout),
		}
	}
}

// recordResult updates counters and latency under the metrics lock.
func (w *Worker) recordResult(result *Result) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if result.Success {
		w.metrics.Succeeded++
		w.updateLatencyLocked(result.Latency)
		w.lastSuccess = time.Now()
		w.consecutiveFailures = 0
		w.consecutiveTimeouts = 0
		return
	}

	w.metrics.Failed++
	w.consecutiveFailures++
	if result.TimedOut {
		w.metrics.TimedOut++
		w.consecutiveTimeouts++
	}
}

// updateLatencyLocked folds one success latency into the rolling average and
// running max. The incremental form avg' = (avg*(n-1) + x) / n stays
// precision-stable over long sessions.
func (w *Worker) updateLatencyLocked(latency time.Duration) {
	n := int64(w.metrics.Succeeded)
	if n == 1 {
		w.metrics.AvgLatency = latency
	} else {
		w.metrics.AvgLatency = time.Duration((int64(w.metrics.AvgLatency)*(n-1) + int64(latency)) / n)
	}

	if latency > w.metrics.MaxLatency {
		w.metrics.MaxLatency = latency
	}
}
