package speech

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Names of the startup assets every call relies on.
const (
	AssetWelcome = "welcome.mp3"
	AssetGoodbye = "goodbye.mp3"
	AssetError   = "error.mp3"
	AssetHold    = "hold.mp3"
)

// Library manages the audio asset directory: startup prompts generated once
// and per-turn response files with unique names.
type Library struct {
	dir     string
	baseURL string
}

func NewLibrary(dir, baseURL string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Library{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory served under /static/audio.
func (l *Library) Dir() string { return l.dir }

// URLFor builds the public URL for an asset name.
func (l *Library) URLFor(name string) string {
	return l.baseURL + "/static/audio/" + name
}

// Has reports whether the asset exists on disk.
func (l *Library) Has(name string) bool {
	_, err := os.Stat(filepath.Join(l.dir, name))
	return err == nil
}

// SaveResponse stores synthesized reply audio under a per-turn unique name
// and returns its public URL.
func (l *Library) SaveResponse(callID string, audio []byte) (string, error) {
	name := fmt.Sprintf("response_%s_%s.mp3", sanitize(callID), uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(l.dir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("write response audio: %w", err)
	}
	return l.URLFor(name), nil
}

// EnsureStatic generates the startup prompt set through the synthesizer,
// skipping files that already exist. A single failed asset is logged and
// skipped so an offline synthesizer does not block startup.
func (l *Library) EnsureStatic(ctx context.Context, synth Synthesizer, texts map[string]string) error {
	for name, text := range texts {
		path := filepath.Join(l.dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		audio, err := synth.Synthesize(ctx, text, "en")
		if err != nil {
			log.Printf("static asset %s synthesis failed: %v", name, err)
			continue
		}
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return fmt.Errorf("write static asset %s: %w", name, err)
		}
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
