package transcriber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
)

// mockEngine is a scriptable transcription backend for worker tests.
type mockEngine struct {
	transcribe func(ctx context.Context, samples []float32, sampleRate int) (string, error)
	calls      atomic.Int64
}

func (m *mockEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	m.calls.Add(1)
	return m.transcribe(ctx, samples, sampleRate)
}

func (m *mockEngine) Name() string {
	return "mock"
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUtterance() *audio.Utterance {
	return &audio.Utterance{
		Samples:    make([]float32, 8000),
		SampleRate: 16000,
		Chunks:     5,
	}
}

func startWorker(t *testing.T, engine *mockEngine, config Config) *Worker {
	t.Helper()

	worker, err := NewWorker(engine, config, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("Failed to start worker: %v", err)
	}
	t.Cleanup(func() { worker.Stop() })

	return worker
}

func TestNewWorkerValidation(t *testing.T) {
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}

	if _, err := NewWorker(nil, Config{Timeout: time.Second, QueueSize: 5}, testLogger()); err == nil {
		t.Error("Expected error for nil engine")
	}

	if _, err := NewWorker(engine, Config{Timeout: 0, QueueSize: 5}, testLogger()); err == nil {
		t.Error("Expected error for zero timeout")
	}

	if _, err := NewWorker(engine, Config{Timeout: time.Second, QueueSize: 0}, testLogger()); err == nil {
		t.Error("Expected error for zero queue size")
	}
}

func TestWorkerSuccessfulTranscription(t *testing.T) {
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "hello world", nil
	}}

	worker := startWorker(t, engine, Config{Timeout: time.Second, QueueSize: 5})

	if !worker.Submit(testUtterance()) {
		t.Fatalf("Submit rejected with an empty queue")
	}

	result, ok := worker.PollResult(time.Second)
	if !ok {
		t.Fatalf("No result within the poll timeout")
	}

	if !result.Success {
		t.Errorf("Expected success, got error %q", result.Err)
	}
	if result.Text != "hello world" {
		t.Errorf("Expected transcript 'hello world', got %q", result.Text)
	}
	if result.TimedOut {
		t.Errorf("Successful result must not be marked as timed out")
	}

	metrics := worker.Metrics()
	if metrics.Submitted != 1 || metrics.Succeeded != 1 {
		t.Errorf("Expected 1 submitted and 1 succeeded, got %d/%d",
			metrics.Submitted, metrics.Succeeded)
	}
}

func TestWorkerEngineFailure(t *testing.T) {
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", fmt.Errorf("backend unavailable")
	}}

	worker := startWorker(t, engine, Config{Timeout: time.Second, QueueSize: 5})

	worker.Submit(testUtterance())

	result, ok := worker.PollResult(time.Second)
	if !ok {
		t.Fatalf("No result within the poll timeout")
	}

	if result.Success {
		t.Errorf("Expected failure result")
	}
	if result.Err == "" {
		t.Errorf("Failure result must carry the error text")
	}

	metrics := worker.Metrics()
	if metrics.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", metrics.Failed)
	}
	if metrics.TimedOut != 0 {
		t.Errorf("Plain failure must not count as timeout, got %d", metrics.TimedOut)
	}
}

func TestWorkerHungEngineTimesOut(t *testing.T) {
	release := make(chan struct{})
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		<-release // hangs until the test ends
		return "too late", nil
	}}
	defer close(release)

	timeout := 100 * time.Millisecond
	worker := startWorker(t, engine, Config{Timeout: timeout, QueueSize: 5})

	worker.Submit(testUtterance())

	result, ok := worker.PollResult(time.Second)
	if !ok {
		t.Fatalf("No result within the poll timeout")
	}

	if !result.TimedOut {
		t.Errorf("Hung engine must produce a timeout result")
	}
	if result.Success {
		t.Errorf("Timeout result must not be a success")
	}
	if result.Latency != timeout {
		t.Errorf("Timeout result latency must equal the configured timeout, got %v", result.Latency)
	}

	metrics := worker.Metrics()
	if metrics.TimedOut != 1 {
		t.Errorf("Expected 1 timeout, got %d", metrics.TimedOut)
	}
}

func TestWorkerRecoversAfterHungCall(t *testing.T) {
	var hang atomic.Bool
	hang.Store(true)
	release := make(chan struct{})
	defer close(release)

	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		if hang.Load() {
			<-release
			return "", fmt.Errorf("abandoned")
		}
		return "recovered", nil
	}}

	worker := startWorker(t, engine, Config{Timeout: 50 * time.Millisecond, QueueSize: 5})

	worker.Submit(testUtterance())
	result, ok := worker.PollResult(time.Second)
	if !ok || !result.TimedOut {
		t.Fatalf("Expected a timeout result first")
	}

	// The abandoned call must not wedge the worker for later requests.
	hang.Store(false)
	worker.Submit(testUtterance())

	result, ok = worker.PollResult(time.Second)
	if !ok {
		t.Fatalf("Worker did not process a request after an abandoned call")
	}
	if !result.Success || result.Text != "recovered" {
		t.Errorf("Expected successful recovery, got success=%v text=%q", result.Success, result.Text)
	}
}

func TestWorkerSubmitBackpressure(t *testing.T) {
	release := make(chan struct{})
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		<-release
		return "", nil
	}}
	defer close(release)

	worker := startWorker(t, engine, Config{Timeout: 10 * time.Second, QueueSize: 2})

	// One request in flight plus two queued fills the worker.
	accepted := 0
	for i := 0; i < 5; i++ {
		if worker.Submit(testUtterance()) {
			accepted++
		}
		// Give the loop a moment to pull the first request into flight.
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	if accepted >= 5 {
		t.Errorf("Submit must reject once the queue fills, accepted all %d", accepted)
	}

	metrics := worker.Metrics()
	if metrics.Submitted != uint64(accepted) {
		t.Errorf("Submitted counter (%d) must match accepted submissions (%d)",
			metrics.Submitted, accepted)
	}
}

func TestWorkerRollingAverageLatency(t *testing.T) {
	worker, err := NewWorker(&mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}, Config{Timeout: time.Second, QueueSize: 5}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}

	// [2, 4] averages to 3; [2, 4, 6] averages to 4.
	worker.recordResult(&Result{Success: true, Latency: 2 * time.Second})
	worker.recordResult(&Result{Success: true, Latency: 4 * time.Second})

	if avg := worker.Metrics().AvgLatency; avg != 3*time.Second {
		t.Errorf("Expected rolling average 3s, got %v", avg)
	}

	worker.recordResult(&Result{Success: true, Latency: 6 * time.Second})

	if avg := worker.Metrics().AvgLatency; avg != 4*time.Second {
		t.Errorf("Expected rolling average 4s, got %v", avg)
	}

	if max := worker.Metrics().MaxLatency; max != 6*time.Second {
		t.Errorf("Expected max latency 6s, got %v", max)
	}

	// Failures leave the average untouched.
	worker.recordResult(&Result{Success: false, Latency: 100 * time.Second})
	if avg := worker.Metrics().AvgLatency; avg != 4*time.Second {
		t.Errorf("Failed result must not move the average, got %v", avg)
	}
}

func TestWorkerHealthPredicate(t *testing.T) {
	worker, err := NewWorker(&mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}, Config{
		Timeout:           time.Second,
		QueueSize:         5,
		MaxConsecFailures: 3,
		MaxConsecTimeouts: 2,
	}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}

	worker.mu.Lock()
	worker.lastSuccess = time.Now()
	worker.mu.Unlock()

	if !worker.Healthy() {
		t.Fatalf("Fresh worker must be healthy")
	}

	// Failures at the limit are still healthy; one past it is not.
	for i := 0; i < 3; i++ {
		worker.recordResult(&Result{Success: false})
	}
	if !worker.Healthy() {
		t.Errorf("Failures at the limit must still be healthy")
	}

	worker.recordResult(&Result{Success: false})
	if worker.Healthy() {
		t.Errorf("Failures past the limit must be unhealthy")
	}

	// A success resets both consecutive counters.
	worker.recordResult(&Result{Success: true, Latency: time.Millisecond})
	if !worker.Healthy() {
		t.Errorf("Success must restore health")
	}

	// Consecutive timeouts trip their own, lower limit.
	for i := 0; i < 3; i++ {
		worker.recordResult(&Result{Success: false, TimedOut: true})
	}
	if worker.Healthy() {
		t.Errorf("Timeouts past the limit must be unhealthy")
	}
}

func TestWorkerHealthStaleSuccess(t *testing.T) {
	worker, err := NewWorker(&mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}, Config{
		Timeout:            time.Second,
		QueueSize:          5,
		SuccessStaleWindow: 50 * time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}

	worker.mu.Lock()
	worker.lastSuccess = time.Now()
	worker.metrics.Submitted = 1
	worker.mu.Unlock()

	if !worker.Healthy() {
		t.Fatalf("Worker with a recent success must be healthy")
	}

	time.Sleep(80 * time.Millisecond)

	if worker.Healthy() {
		t.Errorf("Worker must go unhealthy once the last success is stale")
	}
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}

	worker, err := NewWorker(engine, Config{Timeout: time.Second, QueueSize: 5}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}
	if err := worker.Start(); err != nil {
		t.Fatalf("Failed to start worker: %v", err)
	}

	if err := worker.Stop(); err != nil {
		t.Errorf("First stop failed: %v", err)
	}
	if err := worker.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
}

func TestWorkerSubmitBeforeStart(t *testing.T) {
	engine := &mockEngine{transcribe: func(ctx context.Context, samples []float32, sampleRate int) (string, error) {
		return "", nil
	}}

	worker, err := NewWorker(engine, Config{Timeout: time.Second, QueueSize: 5}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}

	if worker.Submit(testUtterance()) {
		t.Errorf("Submit before Start must be rejected")
	}
}
