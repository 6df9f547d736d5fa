package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultSpeechBaseURL = "https://api.openai.com/v1"

// OpenAISpeech implements both Transcriber (whisper transcription) and
// Synthesizer (tts speech) over HTTP.
type OpenAISpeech struct {
	apiKey   string
	sttModel string
	ttsModel string
	ttsVoice string
	baseURL  string
	client   *http.Client
}

func NewOpenAISpeech(cfg Config) *OpenAISpeech {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultSpeechBaseURL
	}
	stt := strings.TrimSpace(cfg.STTModel)
	if stt == "" {
		stt = "whisper-1"
	}
	tts := strings.TrimSpace(cfg.TTSModel)
	if tts == "" {
		tts = "tts-1"
	}
	voice := strings.TrimSpace(cfg.TTSVoice)
	if voice == "" {
		voice = "echo"
	}
	return &OpenAISpeech{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		sttModel: stt,
		ttsModel: tts,
		ttsVoice: voice,
		baseURL:  base,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *OpenAISpeech) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		filename = "recording.wav"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", p.sttModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("transcription http status %d: %s", res.StatusCode, string(msg))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func (p *OpenAISpeech) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"model": p.ttsModel,
		"voice": p.ttsVoice,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("synthesis http status %d: %s", res.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}
