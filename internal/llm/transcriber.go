package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// AudioConfig configures an OpenAI-compatible /audio/transcriptions endpoint.
type AudioConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AudioTranscriber uploads audio to a transcription endpoint.
type AudioTranscriber struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewAudioTranscriber creates a transcriber for the given endpoint.
func NewAudioTranscriber(cfg AudioConfig) *AudioTranscriber {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AudioTranscriber{client: openai.NewClientWithConfig(clientConfig), model: model, timeout: timeout}
}

// Transcribe returns the trimmed transcript of audio.
func (t *AudioTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
