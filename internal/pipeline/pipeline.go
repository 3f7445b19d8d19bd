package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
	"github.com/p4ulcristian/jarvis-sub000/internal/conversation"
	"github.com/p4ulcristian/jarvis-sub000/internal/metrics"
	"github.com/p4ulcristian/jarvis-sub000/internal/transcriber"
)

// Config contains orchestration loop configuration.
type Config struct {
	WakeWord        string
	PollInterval    time.Duration // capture queue wait per iteration
	ResultPoll      time.Duration // worker result wait per iteration
	MetricsInterval time.Duration // cadence of snapshot logging
}

// Pipeline is the orchestration loop tying capture, segmentation,
// transcription, and conversation gating together. It owns the segmenter;
// the capture queue and worker are shared only through their thread-safe
// surfaces. The loop never blocks longer than one poll interval, so shutdown
// is observed promptly and a wedged engine degrades the system instead of
// stalling it.
type Pipeline struct {
	config     Config
	logger     *slog.Logger
	queue      *audio.CaptureQueue
	segmenter  *audio.Segmenter
	worker     *transcriber.Worker
	gatekeeper *conversation.Gatekeeper
	sink       Sink
	metrics    *metrics.Metrics

	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	// Degradation tracking, touched only by the loop goroutine.
	rejectedSubmits   uint64
	droppedChunksSeen uint64
	forcedFlushesSeen uint64
	lastHealthy       bool
}

// New creates the orchestration loop. The metrics registry may be nil in
// tests.
func New(config Config, queue *audio.CaptureQueue, segmenter *audio.Segmenter,
	worker *transcriber.Worker, gatekeeper *conversation.Gatekeeper,
	sink Sink, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, error) {

	if queue == nil || segmenter == nil || worker == nil || gatekeeper == nil || sink == nil {
		return nil, fmt.Errorf("queue, segmenter, worker, gatekeeper and sink are all required")
	}

	if config.PollInterval <= 0 {
		config.PollInterval = 50 * time.Millisecond
	}

	if config.ResultPoll <= 0 {
		config.ResultPoll = 10 * time.Millisecond
	}

	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 60 * time.Second
	}

	return &Pipeline{
		config:      config,
		logger:      logger,
		queue:       queue,
		segmenter:   segmenter,
		worker:      worker,
		gatekeeper:  gatekeeper,
		sink:        sink,
		metrics:     m,
		lastHealthy: true,
	}, nil
}

// Start launches the orchestration loop.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pipeline already running")
	}

	p.running = true
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.run()

	p.logger.Info("Pipeline started",
		slog.String("wake_word", p.config.WakeWord),
		slog.Duration("poll_interval", p.config.PollInterval),
	)

	return nil
}

// Stop stops the orchestration loop. Buffered audio is discarded.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.segmenter.Reset()

	p.logger.Info("Pipeline stopped")
	return nil
}

// OnWakeWord is the external wake-word surface: a detector (hotkey, trigger
// file, dedicated model) calls this to activate the gatekeeper.
func (p *Pipeline) OnWakeWord() {
	p.gatekeeper.OnWakeWordDetected()
	if p.metrics != nil {
		p.metrics.RecordWakeWord()
	}
}

// ResetSegment discards the in-progress utterance, for push-to-talk style
// boundaries that invalidate buffered audio.
func (p *Pipeline) ResetSegment() {
	p.segmenter.Reset()
}

// EndConversation force-ends the current conversation.
func (p *Pipeline) EndConversation(reason string) {
	p.gatekeeper.EndConversation(reason)
}

// run is the loop body: pull one chunk, advance segmentation, submit complete
// utterances, poll one result, and periodically log a metrics snapshot.
func (p *Pipeline) run() {
	defer p.wg.Done()

	lastSnapshot := time.Now()

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if chunk, ok := p.queue.Pop(p.config.PollInterval); ok {
			p.onChunk(chunk)
		}

		if result, ok := p.worker.PollResult(p.config.ResultPoll); ok {
			p.onResult(result)
		}

		if time.Since(lastSnapshot) >= p.config.MetricsInterval {
			p.logSnapshot()
			lastSnapshot = time.Now()
		}
	}
}

func (p *Pipeline) onChunk(chunk *audio.Chunk) {
	speech := p.segmenter.OnChunk(chunk)

	// Speech arriving right after activation means the user is talking.
	if speech && p.gatekeeper.CurrentState() == conversation.StateActivated {
		p.gatekeeper.StartListening()
	}

	if p.metrics != nil {
		p.metrics.RecordChunkCaptured()
		p.metrics.SetQueueDepth(p.queue.Depth())
		if speech {
			p.metrics.RecordSpeechChunk()
		}

		if dropped := p.queue.Dropped(); dropped > p.droppedChunksSeen {
			p.metrics.AddChunksDropped(dropped - p.droppedChunksSeen)
			p.droppedChunksSeen = dropped
		}
	}

	if !p.segmenter.ShouldFlush() {
		return
	}

	utterance := p.segmenter.Flush()
	if utterance.Empty() {
		return
	}

	forced := false
	if stats := p.segmenter.Stats(); stats.ForcedFlushes > p.forcedFlushesSeen {
		forced = true
		p.forcedFlushesSeen = stats.ForcedFlushes
	}

	p.submit(utterance, forced)
}

func (p *Pipeline) submit(utterance *audio.Utterance, forced bool) {
	if p.metrics != nil {
		p.metrics.RecordUtterance(utterance.Duration().Seconds(), forced)
	}

	if p.worker.Submit(utterance) {
		if p.metrics != nil {
			p.metrics.RecordSubmission()
		}
		return
	}

	// Backpressure: skip this utterance rather than block capture. Repeated
	// rejections mean the engine cannot keep up.
	p.rejectedSubmits++
	if p.metrics != nil {
		p.metrics.RecordSubmissionRejected()
	}

	if p.rejectedSubmits%10 == 1 {
		p.logger.Warn("Transcription backlog - utterance skipped",
			slog.Uint64("rejected_total", p.rejectedSubmits),
			slog.Duration("utterance", utterance.Duration()),
		)
	}
}

func (p *Pipeline) onResult(result *transcriber.Result) {
	if p.metrics != nil {
		p.metrics.RecordTranscriptionResult(result.Success, result.TimedOut, result.Latency.Seconds())
		p.metrics.SetWorkerQueueDepth(p.worker.Metrics().QueueDepth)
	}

	if !result.Success {
		// Failure details were already logged by the worker; the pipeline
		// keeps listening and stays silent.
		return
	}

	if isHallucination(result.Text) {
		p.logger.Debug("Dropping empty or filler transcript",
			slog.Uint64("request_id", result.RequestID),
			slog.String("text", result.Text),
		)
		return
	}

	// The transcript itself can carry the wake word; that counts as a
	// detection for the conversation that this very transcript opens.
	if containsWakeWord(result.Text, p.config.WakeWord) {
		p.OnWakeWord()
	}

	allowed, reason := p.gatekeeper.ShouldTranscribe()
	if !allowed {
		p.logger.Debug("Transcript withheld",
			slog.Uint64("request_id", result.RequestID),
			slog.String("reason", reason),
		)
		if p.metrics != nil {
			p.metrics.RecordDispatchRejected(reason)
		}
		return
	}

	p.dispatch(result, reason)
}

func (p *Pipeline) dispatch(result *transcriber.Result, reason string) {
	p.gatekeeper.StartProcessing()

	err := p.sink.Dispatch(result.Text)

	p.gatekeeper.StartResponding()
	p.gatekeeper.FinishResponse()

	if err != nil {
		p.logger.Error("Dispatch failed",
			slog.Uint64("request_id", result.RequestID),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordDispatchAccepted()
	}

	p.logger.Info("Transcript dispatched",
		slog.Uint64("request_id", result.RequestID),
		slog.String("reason", reason),
		slog.Duration("latency", result.Latency),
		slog.Int("chars", len(result.Text)),
	)
}

// logSnapshot emits the periodic read-only metrics surface.
func (p *Pipeline) logSnapshot() {
	workerMetrics := p.worker.Metrics()
	queueStats := p.queue.Stats()
	segStats := p.segmenter.Stats()
	convStats := p.gatekeeper.GetStats()
	healthy := p.worker.Healthy()

	if p.metrics != nil {
		p.metrics.SetWorkerHealthy(healthy)
	}

	p.logger.Info("Pipeline snapshot",
		slog.Int("queue_depth", queueStats.Depth),
		slog.Uint64("chunks_dropped", queueStats.Dropped),
		slog.Uint64("utterances", segStats.Utterances),
		slog.Uint64("submitted", workerMetrics.Submitted),
		slog.Uint64("succeeded", workerMetrics.Succeeded),
		slog.Uint64("failed", workerMetrics.Failed),
		slog.Uint64("timed_out", workerMetrics.TimedOut),
		slog.Duration("avg_latency", workerMetrics.AvgLatency),
		slog.Duration("max_latency", workerMetrics.MaxLatency),
		slog.String("conversation_state", string(convStats.State)),
		slog.Uint64("rejected_utterances", convStats.RejectedUtterances),
		slog.Bool("worker_healthy", healthy),
	)

	if healthy != p.lastHealthy {
		if healthy {
			p.logger.Info("Transcription worker recovered")
		} else {
			p.logger.Warn("Transcription worker unhealthy - consider restarting the engine")
		}
		p.lastHealthy = healthy
	}
}
