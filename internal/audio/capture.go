package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// CaptureConfig contains microphone capture configuration.
type CaptureConfig struct {
	DeviceSampleRate int // rate the hardware actually delivers
	SampleRate       int // rate the pipeline works at
	Channels         int
	ChunkDuration    time.Duration // cadence of chunks pushed to the queue
}

// Capture reads mono PCM from the default input device and pushes fixed-size
// normalized chunks to the capture queue. The read loop owns the device
// buffer; chunks handed to the queue are fresh allocations so nothing is
// shared across the thread boundary.
type Capture struct {
	config CaptureConfig
	queue  *CaptureQueue
	logger *slog.Logger

	stream  *portaudio.Stream
	buffer  []int16
	stride  int
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewCapture creates a capture source feeding the given queue.
func NewCapture(config CaptureConfig, queue *CaptureQueue, logger *slog.Logger) (*Capture, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}

	if config.DeviceSampleRate < config.SampleRate {
		return nil, fmt.Errorf("device sample rate (%d) must be at least the pipeline rate (%d)",
			config.DeviceSampleRate, config.SampleRate)
	}

	if config.DeviceSampleRate%config.SampleRate != 0 {
		return nil, fmt.Errorf("device sample rate (%d) must be an integer multiple of pipeline rate (%d)",
			config.DeviceSampleRate, config.SampleRate)
	}

	if config.Channels != 1 {
		return nil, fmt.Errorf("channels must be 1 (mono), got %d", config.Channels)
	}

	if config.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", config.ChunkDuration)
	}

	deviceChunkSize := int(float64(config.DeviceSampleRate) * config.ChunkDuration.Seconds())
	if deviceChunkSize <= 0 {
		return nil, fmt.Errorf("chunk duration %v too small for device rate %d",
			config.ChunkDuration, config.DeviceSampleRate)
	}

	return &Capture{
		config: config,
		queue:  queue,
		logger: logger,
		buffer: make([]int16, deviceChunkSize),
		stride: config.DeviceSampleRate / config.SampleRate,
	}, nil
}

// Start initializes portaudio, opens the default input stream and starts the
// read loop.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		c.config.Channels,
		0,
		float64(c.config.DeviceSampleRate),
		len(c.buffer),
		c.buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	c.stream = stream
	c.running = true
	c.stop = make(chan struct{})

	c.wg.Add(1)
	go c.readLoop()

	c.logger.Info("Audio capture started",
		slog.Int("device_sample_rate", c.config.DeviceSampleRate),
		slog.Int("sample_rate", c.config.SampleRate),
		slog.Duration("chunk_duration", c.config.ChunkDuration),
		slog.Int("resample_stride", c.stride),
	)

	return nil
}

// Stop stops the read loop and releases the device.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()

	var firstErr error
	if err := c.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := c.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to terminate portaudio: %w", err)
	}

	c.logger.Info("Audio capture stopped", slog.Uint64("chunks_dropped", c.queue.Dropped()))

	return firstErr
}

// readLoop pulls device-rate PCM and pushes pipeline-rate chunks. The only
// thing it ever waits on is the device read; the queue push is non-blocking.
func (c *Capture) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			select {
			case <-c.stop:
				return
			default:
			}
			c.logger.Warn("Audio read failed", slog.String("error", err.Error()))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		chunk := &Chunk{
			Samples:    c.convert(c.buffer),
			SampleRate: c.config.SampleRate,
			Captured:   time.Now(),
		}

		if !c.queue.Push(chunk) {
			// Overflow is counted by the queue; log at debug so a slow
			// consumer cannot flood the log at chunk cadence.
			c.logger.Debug("Capture queue full, chunk dropped",
				slog.Int("depth", c.queue.Depth()),
				slog.Uint64("dropped_total", c.queue.Dropped()),
			)
		}
	}
}

// convert resamples by stride decimation and normalizes int16 PCM into
// float32 in [-1, 1]. For 48 kHz capture at a 16 kHz pipeline rate this takes
// every third sample, matching the cheap decimation the rest of the pipeline
// is calibrated for.
func (c *Capture) convert(device []int16) []float32 {
	out := make([]float32, 0, len(device)/c.stride)
	for i := 0; i < len(device); i += c.stride {
		out = append(out, float32(device[i])/32768.0)
	}
	return out
}
