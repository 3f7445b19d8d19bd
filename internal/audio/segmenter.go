package audio

import (
	"fmt"
	"sync"
	"time"
)

// SegmenterConfig contains configuration for utterance segmentation.
type SegmenterConfig struct {
	SampleRate        int
	EnergyThreshold   int     // amplitude threshold on the int16 scale
	MinSpeechRatio    float64 // fraction of samples that must exceed the threshold
	MinSpeechDuration time.Duration
	SilenceChunks     int // consecutive silent chunks before flush
	MaxDuration       time.Duration
}

// Segmenter accumulates speech-classified chunks and decides when a spoken
// utterance is complete. Classification is an energy heuristic on a quantized
// int16 representation so thresholds behave the same across platforms; false
// positives are filtered downstream by the empty-text check. All duration
// accounting uses sample counts, never wall clock, so the segmenter is
// deterministic under test.
type Segmenter struct {
	config SegmenterConfig

	speech       [][]float32
	totalSamples int
	silenceRun   int

	// Statistics
	chunksSeen      uint64
	speechChunks    uint64
	utterancesMade  uint64
	forcedFlushes   uint64
	discardedResets uint64

	mu sync.Mutex
}

// SegmenterStats is a snapshot of segmentation counters for monitoring.
type SegmenterStats struct {
	ChunksSeen      uint64  `json:"chunks_seen"`
	SpeechChunks    uint64  `json:"speech_chunks"`
	Utterances      uint64  `json:"utterances"`
	ForcedFlushes   uint64  `json:"forced_flushes"`
	DiscardedResets uint64  `json:"discarded_resets"`
	BufferedSeconds float64 `json:"buffered_seconds"`
	SilenceRun      int     `json:"silence_run"`
}

// NewSegmenter creates a segmenter for the given configuration.
func NewSegmenter(config SegmenterConfig) (*Segmenter, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}

	if config.EnergyThreshold < 0 {
		return nil, fmt.Errorf("energy threshold must be non-negative, got %d", config.EnergyThreshold)
	}

	if config.MinSpeechRatio < 0 || config.MinSpeechRatio > 1 {
		return nil, fmt.Errorf("min speech ratio must be between 0 and 1, got %f", config.MinSpeechRatio)
	}

	if config.SilenceChunks <= 0 {
		return nil, fmt.Errorf("silence chunks must be positive, got %d", config.SilenceChunks)
	}

	if config.MaxDuration <= config.MinSpeechDuration {
		return nil, fmt.Errorf("max duration (%v) must exceed min speech duration (%v)",
			config.MaxDuration, config.MinSpeechDuration)
	}

	return &Segmenter{config: config}, nil
}

// Classify reports whether a chunk contains speech. Samples are quantized to
// the int16 scale before the amplitude comparison, the count of samples above
// EnergyThreshold is divided by the chunk length, and the chunk is speech iff
// that ratio exceeds MinSpeechRatio.
func (s *Segmenter) Classify(chunk *Chunk) bool {
	if len(chunk.Samples) == 0 {
		return false
	}

	above := 0
	for _, sample := range chunk.Samples {
		amp := int(sample * 32768)
		if amp < 0 {
			amp = -amp
		}
		if amp > s.config.EnergyThreshold {
			above++
		}
	}

	ratio := float64(above) / float64(len(chunk.Samples))
	return ratio > s.config.MinSpeechRatio
}

// OnChunk feeds one captured chunk into the segmenter and reports how it was
// classified. Speech chunks are appended to the working buffer and reset the
// silence run; silent chunks only grow the silence run.
func (s *Segmenter) OnChunk(chunk *Chunk) bool {
	speech := s.Classify(chunk)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunksSeen++

	if speech {
		s.speechChunks++
		s.speech = append(s.speech, chunk.Samples)
		s.totalSamples += len(chunk.Samples)
		s.silenceRun = 0
		return true
	}

	s.silenceRun++
	return false
}

// ShouldFlush reports whether the buffered speech forms a complete utterance:
// enough speech followed by enough quiet, or the hard duration cap regardless
// of ongoing speech. The cap bounds both per-utterance latency and memory.
func (s *Segmenter) ShouldFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.bufferedDurationLocked()

	if duration >= s.config.MaxDuration {
		return true
	}

	return duration >= s.config.MinSpeechDuration && s.silenceRun >= s.config.SilenceChunks
}

// Flush concatenates the buffered speech into an utterance and clears the
// working state. Safe to call on an empty buffer; the result is zero-length.
func (s *Segmenter) Flush() *Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	utterance := &Utterance{
		Samples:    make([]float32, 0, s.totalSamples),
		SampleRate: s.config.SampleRate,
		Chunks:     len(s.speech),
	}

	for _, samples := range s.speech {
		utterance.Samples = append(utterance.Samples, samples...)
	}

	if len(utterance.Samples) > 0 {
		s.utterancesMade++
		if s.bufferedDurationLocked() >= s.config.MaxDuration {
			s.forcedFlushes++
		}
	}

	s.speech = nil
	s.totalSamples = 0
	s.silenceRun = 0

	return utterance
}

// Reset discards buffered audio without producing an utterance. Used when an
// external boundary (push-to-talk release, conversation end) invalidates the
// in-progress utterance.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalSamples > 0 {
		s.discardedResets++
	}

	s.speech = nil
	s.totalSamples = 0
	s.silenceRun = 0
}

// BufferedDuration returns the sample-count duration of buffered speech.
func (s *Segmenter) BufferedDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferedDurationLocked()
}

func (s *Segmenter) bufferedDurationLocked() time.Duration {
	return time.Duration(float64(s.totalSamples) / float64(s.config.SampleRate) * float64(time.Second))
}

// Stats returns a snapshot of segmentation counters.
func (s *Segmenter) Stats() SegmenterStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SegmenterStats{
		ChunksSeen:      s.chunksSeen,
		SpeechChunks:    s.speechChunks,
		Utterances:      s.utterancesMade,
		ForcedFlushes:   s.forcedFlushes,
		DiscardedResets: s.discardedResets,
		BufferedSeconds: s.bufferedDurationLocked().Seconds(),
		SilenceRun:      s.silenceRun,
	}
}
