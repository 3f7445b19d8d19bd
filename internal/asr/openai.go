package asr

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/p4ulcristian/jarvis-sub000/internal/audio"
)

// OpenAIEngine transcribes utterances through the OpenAI audio API.
type OpenAIEngine struct {
	client   *openai.Client
	model    string
	language string
	prompt   string
}

// NewOpenAIEngine creates an OpenAI transcription backend.
func NewOpenAIEngine(config Config) (*OpenAIEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty for the openai backend")
	}

	model := config.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{
		client:   openai.NewClient(config.APIKey),
		model:    model,
		language: config.Language,
		prompt:   config.Prompt,
	}, nil
}

// Name returns the backend name for logging.
func (e *OpenAIEngine) Name() string {
	return BackendOpenAI
}

// Transcribe uploads the utterance as WAV and returns the recognized text.
func (e *OpenAIEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wav, err := audio.EncodeWAV(audio.QuantizePCM16(samples), sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode utterance: %w", err)
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: e.language,
		Prompt:   e.prompt,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	return resp.Text, nil
}
