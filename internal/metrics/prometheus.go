package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice pipeline
type Metrics struct {
	// Capture metrics
	ChunksCaptured    prometheus.Counter
	ChunksDropped     prometheus.Counter
	CaptureQueueDepth prometheus.Gauge

	// Segmentation metrics
	SpeechChunks      prometheus.Counter
	UtterancesFlushed prometheus.Counter
	ForcedFlushes     prometheus.Counter
	UtteranceDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionsSubmitted prometheus.Counter
	TranscriptionSuccesses  prometheus.Counter
	TranscriptionFailures   prometheus.Counter
	TranscriptionTimeouts   prometheus.Counter
	SubmissionsRejected     prometheus.Counter
	TranscriptionLatency    prometheus.Histogram
	WorkerQueueDepth        prometheus.Gauge
	WorkerHealthy           prometheus.Gauge

	// Conversation metrics
	WakeWords          prometheus.Counter
	DispatchesAccepted prometheus.Counter
	DispatchesRejected *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		ChunksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_captured_total",
			Help: "Total number of audio chunks consumed from the capture queue",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the capture queue was full",
		}),
		CaptureQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_capture_queue_depth",
			Help: "Current number of chunks buffered in the capture queue",
		}),

		// Segmentation metrics
		SpeechChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_speech_chunks_total",
			Help: "Total number of chunks classified as speech",
		}),
		UtterancesFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_utterances_total",
			Help: "Total number of utterances flushed from the segmenter",
		}),
		ForcedFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_forced_flushes_total",
			Help: "Total number of utterances cut by the max-duration cap",
		}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_utterance_duration_seconds",
			Help:    "Duration of flushed utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to ~30s
		}),

		// Transcription metrics
		TranscriptionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcriptions_submitted_total",
			Help: "Total number of utterances accepted by the transcription worker",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_failures_total",
			Help: "Total number of failed transcriptions",
		}),
		TranscriptionTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_timeouts_total",
			Help: "Total number of transcriptions abandoned at the timeout",
		}),
		SubmissionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_submissions_rejected_total",
			Help: "Total number of utterances rejected because the worker queue was full",
		}),
		TranscriptionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcription_latency_seconds",
			Help:    "Latency of successful transcriptions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		WorkerQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_worker_queue_depth",
			Help: "Current number of pending transcription requests",
		}),
		WorkerHealthy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voice_worker_healthy",
			Help: "1 when the transcription worker health predicate holds, 0 otherwise",
		}),

		// Conversation metrics
		WakeWords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_wake_words_total",
			Help: "Total number of wake word detections",
		}),
		DispatchesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voice_dispatches_accepted_total",
			Help: "Total number of transcripts dispatched to the action sink",
		}),
		DispatchesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_dispatches_rejected_total",
			Help: "Total number of transcripts withheld by the gatekeeper",
		}, []string{"reason"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordChunkCaptured increments the consumed chunk counter
func (m *Metrics) RecordChunkCaptured() {
	m.ChunksCaptured.Inc()
}

// SetQueueDepth sets the capture queue depth gauge
func (m *Metrics) SetQueueDepth(depth int) {
	m.CaptureQueueDepth.Set(float64(depth))
}

// AddChunksDropped adds newly observed capture overflow drops
func (m *Metrics) AddChunksDropped(delta uint64) {
	m.ChunksDropped.Add(float64(delta))
}

// RecordSpeechChunk increments the speech-classified chunk counter
func (m *Metrics) RecordSpeechChunk() {
	m.SpeechChunks.Inc()
}

// RecordUtterance records a flushed utterance
func (m *Metrics) RecordUtterance(durationSeconds float64, forced bool) {
	m.UtterancesFlushed.Inc()
	m.UtteranceDuration.Observe(durationSeconds)
	if forced {
		m.ForcedFlushes.Inc()
	}
}

// RecordSubmission increments the accepted submission counter
func (m *Metrics) RecordSubmission() {
	m.TranscriptionsSubmitted.Inc()
}

// RecordSubmissionRejected increments the backpressure rejection counter
func (m *Metrics) RecordSubmissionRejected() {
	m.SubmissionsRejected.Inc()
}

// RecordTranscriptionResult records one transcription outcome
func (m *Metrics) RecordTranscriptionResult(success, timedOut bool, latencySeconds float64) {
	if success {
		m.TranscriptionSuccesses.Inc()
		m.TranscriptionLatency.Observe(latencySeconds)
		return
	}

	m.TranscriptionFailures.Inc()
	if timedOut {
		m.TranscriptionTimeouts.Inc()
	}
}

// SetWorkerQueueDepth sets the pending request gauge
func (m *Metrics) SetWorkerQueueDepth(depth int) {
	m.WorkerQueueDepth.Set(float64(depth))
}

// SetWorkerHealthy sets the worker health gauge
func (m *Metrics) SetWorkerHealthy(healthy bool) {
	if healthy {
		m.WorkerHealthy.Set(1)
	} else {
		m.WorkerHealthy.Set(0)
	}
}

// RecordWakeWord increments the wake word counter
func (m *Metrics) RecordWakeWord() {
	m.WakeWords.Inc()
}

// RecordDispatchAccepted increments the accepted dispatch counter
func (m *Metrics) RecordDispatchAccepted() {
	m.DispatchesAccepted.Inc()
}

// RecordDispatchRejected increments the rejected dispatch counter by reason
func (m *Metrics) RecordDispatchRejected(reason string) {
	m.DispatchesRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
