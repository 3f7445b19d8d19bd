package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Control       ControlConfig       `yaml:"control"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
	Shutdown      ShutdownConfig      `yaml:"shutdown"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	SampleRate       int     `yaml:"sample_rate"`        // pipeline rate, Hz
	DeviceSampleRate int     `yaml:"device_sample_rate"` // hardware rate, Hz
	Channels         int     `yaml:"channels"`
	ChunkDuration    float64 `yaml:"chunk_duration"` // seconds
	QueueCapacity    int     `yaml:"queue_capacity"` // chunks
}

// VADConfig contains energy-based voice activity detection and
// segmentation parameters
type VADConfig struct {
	EnergyThreshold      int     `yaml:"energy_threshold"`       // int16 amplitude scale
	MinSpeechRatio       float64 `yaml:"min_speech_ratio"`       // fraction of samples above threshold
	MinSpeechDuration    float64 `yaml:"min_speech_duration"`    // seconds
	SilenceChunks        int     `yaml:"silence_chunks"`         // consecutive silent chunks before flush
	MaxUtteranceDuration float64 `yaml:"max_utterance_duration"` // seconds, forced flush
}

// TranscriptionConfig contains ASR engine and worker configuration
type TranscriptionConfig struct {
	Backend       string `yaml:"backend"` // "http" or "openai"
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Prompt        string `yaml:"prompt"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	QueueSize     int    `yaml:"queue_size"`
}

// ConversationConfig contains wake-word gatekeeper configuration
type ConversationConfig struct {
	WakeWord                string  `yaml:"wake_word"`
	WakeWordTimeout         float64 `yaml:"wake_word_timeout"`         // seconds
	ConversationTimeout     float64 `yaml:"conversation_timeout"`      // seconds
	MaxConversationDuration float64 `yaml:"max_conversation_duration"` // seconds
}

// PipelineConfig contains orchestration loop configuration
type PipelineConfig struct {
	PollIntervalMs   int    `yaml:"poll_interval_ms"`
	ResultPollMs     int    `yaml:"result_poll_ms"`
	MetricsIntervalS int    `yaml:"metrics_interval"` // seconds
	TranscriptFile   string `yaml:"transcript_file"`
}

// ControlConfig contains the trigger-file control surface configuration
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// HTTPConfig contains monitoring HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ShutdownConfig contains shutdown coordinator configuration
type ShutdownConfig struct {
	ComponentTimeout float64 `yaml:"component_timeout"` // seconds, per component
}

// Load reads and parses the configuration file. A .env file next to the
// process, if present, plus the environment can supply the transcription
// API key so it never has to live in the YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Best-effort overlay; a missing .env is not an error.
	_ = godotenv.Load()

	if key := os.Getenv("TRANSCRIPTION_API_KEY"); key != "" {
		config.Transcription.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Conversation.Validate(); err != nil {
		return fmt.Errorf("conversation config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Control.Validate(); err != nil {
		return fmt.Errorf("control config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Shutdown.Validate(); err != nil {
		return fmt.Errorf("shutdown config: %w", err)
	}

	return nil
}

// Validate validates audio capture configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}

	if a.DeviceSampleRate < a.SampleRate {
		return fmt.Errorf("device_sample_rate (%d) must be at least sample_rate (%d)",
			a.DeviceSampleRate, a.SampleRate)
	}

	if a.DeviceSampleRate%a.SampleRate != 0 {
		return fmt.Errorf("device_sample_rate (%d) must be an integer multiple of sample_rate (%d)",
			a.DeviceSampleRate, a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.ChunkDuration <= 0 || a.ChunkDuration > 1.0 {
		return fmt.Errorf("chunk_duration must be in (0, 1.0] seconds, got %f", a.ChunkDuration)
	}

	if a.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", a.QueueCapacity)
	}

	return nil
}

// GetChunkDuration returns the chunk duration as time.Duration
func (a *AudioConfig) GetChunkDuration() time.Duration {
	return time.Duration(a.ChunkDuration * float64(time.Second))
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.EnergyThreshold < 0 {
		return fmt.Errorf("energy_threshold must be non-negative, got %d", v.EnergyThreshold)
	}

	if v.MinSpeechRatio < 0 || v.MinSpeechRatio > 1 {
		return fmt.Errorf("min_speech_ratio must be between 0 and 1, got %f", v.MinSpeechRatio)
	}

	if v.MinSpeechDuration <= 0 {
		return fmt.Errorf("min_speech_duration must be positive, got %f", v.MinSpeechDuration)
	}

	if v.SilenceChunks < 1 {
		return fmt.Errorf("silence_chunks must be at least 1, got %d", v.SilenceChunks)
	}

	if v.MaxUtteranceDuration <= v.MinSpeechDuration {
		return fmt.Errorf("max_utterance_duration (%f) must be greater than min_speech_duration (%f)",
			v.MaxUtteranceDuration, v.MinSpeechDuration)
	}

	return nil
}

// GetMinSpeechDuration returns the minimum speech duration as time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechDuration * float64(time.Second))
}

// GetMaxUtteranceDuration returns the forced-flush cap as time.Duration
func (v *VADConfig) GetMaxUtteranceDuration() time.Duration {
	return time.Duration(v.MaxUtteranceDuration * float64(time.Second))
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Backend {
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http backend")
		}
	case "openai":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai backend (set TRANSCRIPTION_API_KEY)")
		}
	default:
		return fmt.Errorf("backend must be \"http\" or \"openai\", got %q", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	if t.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", t.QueueSize)
	}

	return nil
}

// GetTimeoutDuration returns the transcription timeout as time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// Validate validates conversation configuration
func (c *ConversationConfig) Validate() error {
	if c.WakeWord == "" {
		return fmt.Errorf("wake_word cannot be empty")
	}

	if c.WakeWordTimeout <= 0 {
		return fmt.Errorf("wake_word_timeout must be positive, got %f", c.WakeWordTimeout)
	}

	if c.ConversationTimeout <= 0 {
		return fmt.Errorf("conversation_timeout must be positive, got %f", c.ConversationTimeout)
	}

	if c.MaxConversationDuration <= c.ConversationTimeout {
		return fmt.Errorf("max_conversation_duration (%f) must be greater than conversation_timeout (%f)",
			c.MaxConversationDuration, c.ConversationTimeout)
	}

	return nil
}

// GetWakeWordTimeout returns the wake word timeout as time.Duration
func (c *ConversationConfig) GetWakeWordTimeout() time.Duration {
	return time.Duration(c.WakeWordTimeout * float64(time.Second))
}

// GetConversationTimeout returns the inactivity timeout as time.Duration
func (c *ConversationConfig) GetConversationTimeout() time.Duration {
	return time.Duration(c.ConversationTimeout * float64(time.Second))
}

// GetMaxConversationDuration returns the hard conversation cap as
// time.Duration
func (c *ConversationConfig) GetMaxConversationDuration() time.Duration {
	return time.Duration(c.MaxConversationDuration * float64(time.Second))
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.PollIntervalMs < 1 {
		return fmt.Errorf("poll_interval_ms must be at least 1, got %d", p.PollIntervalMs)
	}

	if p.ResultPollMs < 1 {
		return fmt.Errorf("result_poll_ms must be at least 1, got %d", p.ResultPollMs)
	}

	if p.MetricsIntervalS < 1 {
		return fmt.Errorf("metrics_interval must be at least 1 second, got %d", p.MetricsIntervalS)
	}

	if p.TranscriptFile == "" {
		return fmt.Errorf("transcript_file cannot be empty")
	}

	return nil
}

// GetPollInterval returns the capture poll interval as time.Duration
func (p *PipelineConfig) GetPollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// GetResultPoll returns the result poll interval as time.Duration
func (p *PipelineConfig) GetResultPoll() time.Duration {
	return time.Duration(p.ResultPollMs) * time.Millisecond
}

// GetMetricsInterval returns the snapshot logging cadence as time.Duration
func (p *PipelineConfig) GetMetricsInterval() time.Duration {
	return time.Duration(p.MetricsIntervalS) * time.Second
}

// Validate validates control configuration
func (c *ControlConfig) Validate() error {
	if c.Enabled && c.Dir == "" {
		return fmt.Errorf("dir cannot be empty when control is enabled")
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("level must be one of debug/info/warn/error, got %q", l.Level)
	}

	switch l.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}

	return nil
}

// Validate validates shutdown configuration
func (s *ShutdownConfig) Validate() error {
	if s.ComponentTimeout <= 0 {
		return fmt.Errorf("component_timeout must be positive, got %f", s.ComponentTimeout)
	}

	return nil
}

// GetComponentTimeout returns the per-component shutdown timeout as
// time.Duration
func (s *ShutdownConfig) GetComponentTimeout() time.Duration {
	return time.Duration(s.ComponentTimeout * float64(time.Second))
}
