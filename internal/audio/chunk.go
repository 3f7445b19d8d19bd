package audio

import (
	"time"
)

// Chunk is a fixed-length block of normalized mono samples captured from the
// microphone. Samples are float32 in [-1, 1] at SampleRate. A chunk is
// immutable once pushed to the capture queue; ownership moves from the capture
// goroutine to the queue to the pipeline.
type Chunk struct {
	Samples    []float32
	SampleRate int
	Captured   time.Time
}

// Duration returns the chunk length derived from its sample count.
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Utterance is a contiguous span of speech-classified audio collected by the
// segmenter between two silences (or a forced max-duration cut).
type Utterance struct {
	Samples    []float32
	SampleRate int
	Chunks     int
}

// Duration returns the utterance length derived from its sample count.
func (u *Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(u.Samples)) / float64(u.SampleRate) * float64(time.Second))
}

// Empty reports whether the utterance carries no audio.
func (u *Utterance) Empty() bool {
	return len(u.Samples) == 0
}
