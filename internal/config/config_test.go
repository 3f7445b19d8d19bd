package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:       16000,
			DeviceSampleRate: 48000,
			Channels:         1,
			ChunkDuration:    0.1,
			QueueCapacity:    50,
		},
		VAD: VADConfig{
			EnergyThreshold:      10,
			MinSpeechRatio:       0.0001,
			MinSpeechDuration:    0.5,
			SilenceChunks:        8,
			MaxUtteranceDuration: 30.0,
		},
		Transcription: TranscriptionConfig{
			Backend:       "http",
			Endpoint:      "https://api.example.com/transcribe",
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 2,
			QueueSize:     10,
		},
		Conversation: ConversationConfig{
			WakeWord:                "jarvis",
			WakeWordTimeout:         10.0,
			ConversationTimeout:     15.0,
			MaxConversationDuration: 300.0,
		},
		Pipeline: PipelineConfig{
			PollIntervalMs:   50,
			ResultPollMs:     10,
			MetricsIntervalS: 60,
			TranscriptFile:   "/tmp/transcript.txt",
		},
		Control: ControlConfig{
			Enabled: true,
			Dir:     "/tmp/voice-control",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Shutdown: ShutdownConfig{
			ComponentTimeout: 5.0,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "device rate not a multiple of pipeline rate",
			mutate: func(c *Config) {
				c.Audio.DeviceSampleRate = 44100
			},
			expectError: true,
			errorMsg:    "integer multiple",
		},
		{
			name: "stereo capture rejected",
			mutate: func(c *Config) {
				c.Audio.Channels = 2
			},
			expectError: true,
			errorMsg:    "channels must be 1",
		},
		{
			name: "zero queue capacity",
			mutate: func(c *Config) {
				c.Audio.QueueCapacity = 0
			},
			expectError: true,
			errorMsg:    "queue_capacity must be at least 1",
		},
		{
			name: "speech ratio out of range",
			mutate: func(c *Config) {
				c.VAD.MinSpeechRatio = 1.5
			},
			expectError: true,
			errorMsg:    "min_speech_ratio must be between 0 and 1",
		},
		{
			name: "max utterance not above min speech",
			mutate: func(c *Config) {
				c.VAD.MaxUtteranceDuration = 0.3
			},
			expectError: true,
			errorMsg:    "max_utterance_duration",
		},
		{
			name: "unknown transcription backend",
			mutate: func(c *Config) {
				c.Transcription.Backend = "grpc"
			},
			expectError: true,
			errorMsg:    "backend must be",
		},
		{
			name: "http backend without endpoint",
			mutate: func(c *Config) {
				c.Transcription.Endpoint = ""
			},
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "openai backend without api key",
			mutate: func(c *Config) {
				c.Transcription.Backend = "openai"
				c.Transcription.APIKey = ""
			},
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name: "empty wake word",
			mutate: func(c *Config) {
				c.Conversation.WakeWord = ""
			},
			expectError: true,
			errorMsg:    "wake_word cannot be empty",
		},
		{
			name: "conversation cap below inactivity timeout",
			mutate: func(c *Config) {
				c.Conversation.MaxConversationDuration = 10.0
			},
			expectError: true,
			errorMsg:    "max_conversation_duration",
		},
		{
			name: "control enabled without dir",
			mutate: func(c *Config) {
				c.Control.Dir = ""
			},
			expectError: true,
			errorMsg:    "dir cannot be empty",
		},
		{
			name: "invalid http port",
			mutate: func(c *Config) {
				c.HTTP.Port = 70000
			},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name: "http disabled skips port check",
			mutate: func(c *Config) {
				c.HTTP.Enabled = false
				c.HTTP.Port = 0
			},
			expectError: false,
		},
		{
			name: "zero shutdown timeout",
			mutate: func(c *Config) {
				c.Shutdown.ComponentTimeout = 0
			},
			expectError: true,
			errorMsg:    "component_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
audio:
  sample_rate: 16000
  device_sample_rate: 48000
  channels: 1
  chunk_duration: 0.1
  queue_capacity: 50
vad:
  energy_threshold: 10
  min_speech_ratio: 0.0001
  min_speech_duration: 0.5
  silence_chunks: 8
  max_utterance_duration: 30.0
transcription:
  backend: "http"
  endpoint: "https://api.example.com/transcribe"
  timeout: 30
  max_retries: 3
  max_concurrent: 2
  queue_size: 10
conversation:
  wake_word: "jarvis"
  wake_word_timeout: 10.0
  conversation_timeout: 15.0
  max_conversation_duration: 300.0
pipeline:
  poll_interval_ms: 50
  result_poll_ms: 10
  metrics_interval: 60
  transcript_file: "/tmp/transcript.txt"
control:
  enabled: false
http:
  enabled: true
  address: "0.0.0.0"
  port: 8080
logging:
  level: "info"
  format: "json"
  output: "stdout"
shutdown:
  component_timeout: 5.0
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
audio:
  sample_rate: 16000
  queue_capacity: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
audio:
  sample_rate: 16000
  # missing the rest
`,
			expectError: true,
			errorMsg:    "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestConfigLoadEnvOverride(t *testing.T) {
	tempDir := t.TempDir()

	configYAML := `
audio:
  sample_rate: 16000
  device_sample_rate: 48000
  channels: 1
  chunk_duration: 0.1
  queue_capacity: 50
vad:
  energy_threshold: 10
  min_speech_ratio: 0.0001
  min_speech_duration: 0.5
  silence_chunks: 8
  max_utterance_duration: 30.0
transcription:
  backend: "openai"
  timeout: 30
  max_retries: 3
  max_concurrent: 2
  queue_size: 10
conversation:
  wake_word: "jarvis"
  wake_word_timeout: 10.0
  conversation_timeout: 15.0
  max_conversation_duration: 300.0
pipeline:
  poll_interval_ms: 50
  result_poll_ms: 10
  metrics_interval: 60
  transcript_file: "/tmp/transcript.txt"
control:
  enabled: false
http:
  enabled: false
logging:
  level: "info"
shutdown:
  component_timeout: 5.0
`

	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	t.Setenv("TRANSCRIPTION_API_KEY", "env-key")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	if config.Transcription.APIKey != "env-key" {
		t.Errorf("Expected API key from environment, got %q", config.Transcription.APIKey)
	}
}

func TestDurationHelpers(t *testing.T) {
	audio := AudioConfig{
		ChunkDuration: 0.1,
	}

	if audio.GetChunkDuration() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", audio.GetChunkDuration())
	}

	vad := VADConfig{
		MinSpeechDuration:    0.5,
		MaxUtteranceDuration: 30.0,
	}

	if vad.GetMinSpeechDuration() != 500*time.Millisecond {
		t.Errorf("Expected 0.5 seconds, got %v", vad.GetMinSpeechDuration())
	}

	if vad.GetMaxUtteranceDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", vad.GetMaxUtteranceDuration())
	}

	transcription := TranscriptionConfig{
		Timeout: 30,
	}

	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}

	conversation := ConversationConfig{
		WakeWordTimeout:         10.0,
		ConversationTimeout:     15.0,
		MaxConversationDuration: 300.0,
	}

	if conversation.GetWakeWordTimeout() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", conversation.GetWakeWordTimeout())
	}

	if conversation.GetConversationTimeout() != 15*time.Second {
		t.Errorf("Expected 15 seconds, got %v", conversation.GetConversationTimeout())
	}

	if conversation.GetMaxConversationDuration() != 5*time.Minute {
		t.Errorf("Expected 5 minutes, got %v", conversation.GetMaxConversationDuration())
	}

	pipeline := PipelineConfig{
		PollIntervalMs:   50,
		ResultPollMs:     10,
		MetricsIntervalS: 60,
	}

	if pipeline.GetPollInterval() != 50*time.Millisecond {
		t.Errorf("Expected 50ms, got %v", pipeline.GetPollInterval())
	}

	if pipeline.GetResultPoll() != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %v", pipeline.GetResultPoll())
	}

	if pipeline.GetMetricsInterval() != time.Minute {
		t.Errorf("Expected 1 minute, got %v", pipeline.GetMetricsInterval())
	}

	shutdown := ShutdownConfig{
		ComponentTimeout: 5.0,
	}

	if shutdown.GetComponentTimeout() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", shutdown.GetComponentTimeout())
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name: "valid json to stdout",
			config: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			valid: true,
		},
		{
			name: "valid text to stderr",
			config: LoggingConfig{
				Level:  "debug",
				Format: "text",
				Output: "stderr",
			},
			valid: true,
		},
		{
			name:   "empty fields use defaults",
			config: LoggingConfig{},
			valid:  true,
		},
		{
			name: "invalid log level",
			config: LoggingConfig{
				Level:  "trace",
				Format: "json",
				Output: "stdout",
			},
			valid: false,
		},
		{
			name: "invalid format",
			config: LoggingConfig{
				Level:  "info",
				Format: "xml",
				Output: "stdout",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

// Helper function to check if a string contains a substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > len(substr) && findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
