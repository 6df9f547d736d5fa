package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the phone assistant gateway.
type Config struct {
	BindAddr         string
	BaseURL          string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	OpenAIAPIKey  string
	BrainMode     string
	BrainModel    string
	SpeechMode    string
	STTModel      string
	TTSModel      string
	TTSVoice      string
	TranslateMode string

	StoreMode   string
	DatabaseURL string
	SQLitePath  string

	AudioDir    string
	PhrasesPath string

	CallIdleTTL          time.Duration
	MaxWaitPolls         int
	WaitTimeout          time.Duration
	MinRecordingBytes    int
	RecordMaxSeconds     int
	RecordSilenceSeconds int
	HistoryContextTurns  int
	MaxToolIterations    int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		BaseURL:          strings.TrimRight(envOrDefault("BASE_URL", "http://localhost:8080"), "/"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "maitred"),

		TwilioAccountSID:  stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: stringsTrimSpace("TWILIO_PHONE_NUMBER"),

		OpenAIAPIKey: stringsTrimSpace("OPENAI_API_KEY"),
		BrainMode:    envOrDefault("BRAIN_MODE", "auto"),
		BrainModel:   envOrDefault("BRAIN_MODEL", "gpt-4o-mini"),
		SpeechMode:   envOrDefault("SPEECH_MODE", "auto"),
		STTModel:     envOrDefault("STT_MODEL", "whisper-1"),
		TTSModel:     envOrDefault("TTS_MODEL", "tts-1"),
		TTSVoice:     envOrDefault("TTS_VOICE", "echo"),

		TranslateMode: envOrDefault("TRANSLATE_MODE", "auto"),

		StoreMode:   envOrDefault("STORE_MODE", "auto"),
		DatabaseURL: stringsTrimSpace("DATABASE_URL"),
		SQLitePath:  stringsTrimSpace("SQLITE_PATH"),

		AudioDir:    envOrDefault("AUDIO_DIR", "static/audio"),
		PhrasesPath: stringsTrimSpace("PHRASES_PATH"),

		ShutdownTimeout:      15 * time.Second,
		CallIdleTTL:          5 * time.Minute,
		MaxWaitPolls:         10,
		WaitTimeout:          90 * time.Second,
		MinRecordingBytes:    1000,
		RecordMaxSeconds:     30,
		RecordSilenceSeconds: 3,
		HistoryContextTurns:  6,
		MaxToolIterations:    8,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallIdleTTL, err = durationFromEnv("CALL_IDLE_TTL", cfg.CallIdleTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.WaitTimeout, err = durationFromEnv("WAIT_TIMEOUT", cfg.WaitTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxWaitPolls, err = intFromEnv("MAX_WAIT_POLLS", cfg.MaxWaitPolls)
	if err != nil {
		return Config{}, err
	}
	cfg.MinRecordingBytes, err = intFromEnv("MIN_RECORDING_BYTES", cfg.MinRecordingBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordMaxSeconds, err = intFromEnv("RECORD_MAX_SECONDS", cfg.RecordMaxSeconds)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordSilenceSeconds, err = intFromEnv("RECORD_SILENCE_TIMEOUT", cfg.RecordSilenceSeconds)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryContextTurns, err = intFromEnv("HISTORY_CONTEXT_TURNS", cfg.HistoryContextTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxToolIterations, err = intFromEnv("MAX_TOOL_ITERATIONS", cfg.MaxToolIterations)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallIdleTTL < 10*time.Second {
		return Config{}, fmt.Errorf("CALL_IDLE_TTL must be at least 10s")
	}
	if cfg.MaxWaitPolls <= 0 {
		return Config{}, fmt.Errorf("MAX_WAIT_POLLS must be positive")
	}
	if cfg.WaitTimeout <= 0 {
		return Config{}, fmt.Errorf("WAIT_TIMEOUT must be positive")
	}
	if cfg.MinRecordingBytes <= 0 {
		return Config{}, fmt.Errorf("MIN_RECORDING_BYTES must be positive")
	}
	if cfg.RecordMaxSeconds <= 0 || cfg.RecordMaxSeconds > 120 {
		return Config{}, fmt.Errorf("RECORD_MAX_SECONDS must be in 1..120")
	}
	if cfg.RecordSilenceSeconds <= 0 {
		return Config{}, fmt.Errorf("RECORD_SILENCE_TIMEOUT must be positive")
	}
	if cfg.HistoryContextTurns <= 0 {
		return Config{}, fmt.Errorf("HISTORY_CONTEXT_TURNS must be positive")
	}
	if cfg.MaxToolIterations < 4 || cfg.MaxToolIterations > 15 {
		return Config{}, fmt.Errorf("MAX_TOOL_ITERATIONS must be in 4..15")
	}

	return cfg, nil
}

// TwilioConfigured reports whether outbound Twilio API calls can be made.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// AudioURL builds the public URL for a generated or static audio asset.
func (c Config) AudioURL(name string) string {
	return c.BaseURL + "/static/audio/" + name
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
