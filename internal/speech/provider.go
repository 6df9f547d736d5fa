// Package speech is the boundary to the transcription and synthesis
// capabilities, plus the on-disk library of generated audio assets.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Transcriber converts recorded caller audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Synthesizer converts reply text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Config controls provider construction.
type Config struct {
	Mode     string
	APIKey   string
	STTModel string
	TTSModel string
	TTSVoice string
	BaseURL  string
}

// NewProvider resolves the speech backend for the configured mode. Auto
// uses the real engine when a key is present and the mock otherwise.
func NewProvider(cfg Config) (Transcriber, Synthesizer, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			p := NewOpenAISpeech(cfg)
			return p, p, nil
		}
		m := NewMockSpeech()
		return m, m, nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, nil, errors.New("OPENAI_API_KEY is required for openai speech mode")
		}
		p := NewOpenAISpeech(cfg)
		return p, p, nil
	case "mock":
		m := NewMockSpeech()
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unsupported speech mode %q", cfg.Mode)
	}
}

// MockSpeech runs the gateway without network speech capabilities. The
// transcriber reads the payload as UTF-8 text and the synthesizer emits the
// text bytes, which keeps end-to-end tests and demo mode deterministic.
type MockSpeech struct{}

func NewMockSpeech() *MockSpeech { return &MockSpeech{} }

func (m *MockSpeech) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return strings.TrimSpace(string(audio)), nil
}

func (m *MockSpeech) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return []byte(text), nil
}
