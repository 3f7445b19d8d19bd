package audio

import (
	"fmt"
	"sync/atomic"
	"time"
)

// CaptureQueue is a bounded FIFO of audio chunks between the capture goroutine
// and the pipeline. Push is called from the time-sensitive capture side and
// never blocks: when the queue is full the incoming chunk is dropped and
// counted. Pop blocks the single consumer up to a timeout.
type CaptureQueue struct {
	ch       chan *Chunk
	capacity int

	pushed  atomic.Uint64
	popped  atomic.Uint64
	dropped atomic.Uint64
}

// QueueStats is a snapshot of capture queue counters for monitoring.
type QueueStats struct {
	Capacity int    `json:"capacity"`
	Depth    int    `json:"depth"`
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Dropped  uint64 `json:"dropped"`
}

// NewCaptureQueue creates a capture queue with a fixed capacity. A reasonable
// capacity buffers one to ten seconds of audio at the configured chunk size.
func NewCaptureQueue(capacity int) (*CaptureQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("queue capacity must be positive, got %d", capacity)
	}

	return &CaptureQueue{
		ch:       make(chan *Chunk, capacity),
		capacity: capacity,
	}, nil
}

// Push enqueues a chunk without ever blocking the producer. Returns false when
// the queue is at capacity and the chunk was dropped. Blocking here would stall
// the audio driver callback and cause capture overruns, which is worse than
// losing one chunk.
func (q *CaptureQueue) Push(chunk *Chunk) bool {
	select {
	case q.ch <- chunk:
		q.pushed.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop dequeues the next chunk, waiting up to timeout. Returns (nil, false) on
// expiry so the consumer loop stays a bounded poll.
func (q *CaptureQueue) Pop(timeout time.Duration) (*Chunk, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk := <-q.ch:
		q.popped.Add(1)
		return chunk, true
	case <-timer.C:
		return nil, false
	}
}

// Depth returns the current number of buffered chunks.
func (q *CaptureQueue) Depth() int {
	return len(q.ch)
}

// Capacity returns the fixed queue capacity.
func (q *CaptureQueue) Capacity() int {
	return q.capacity
}

// Dropped returns the number of chunks discarded because the queue was full.
func (q *CaptureQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Stats returns a snapshot of queue counters.
func (q *CaptureQueue) Stats() QueueStats {
	return QueueStats{
		Capacity: q.capacity,
		Depth:    len(q.ch),
		Pushed:   q.pushed.Load(),
		Popped:   q.popped.Load(),
		Dropped:  q.dropped.Load(),
	}
}
