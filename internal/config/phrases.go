package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// PhraseSet holds the canned prompt texts and the multilingual exit-phrase
// list. All texts are in the pivot language; callers hear them translated
// and synthesized in their own language where applicable.
type PhraseSet struct {
	ExitPhrases []string `yaml:"exit_phrases"`
	Welcome     string   `yaml:"welcome"`
	Goodbye     string   `yaml:"goodbye"`
	Hold        string   `yaml:"hold"`
	Error       string   `yaml:"error"`
	Fallback    string   `yaml:"fallback"`
}

// DefaultPhraseSet returns the built-in phrase set.
func DefaultPhraseSet() PhraseSet {
	return PhraseSet{
		ExitPhrases: []string{
			"exit", "quit", "stop", "bye", "goodbye", "good bye",
			"au revoir", "aurevoir", "salut", "ciao", "tchao",
			"adios", "adiós", "hasta luego",
			"auf wiedersehen", "tschüss", "tschüß",
			"thank you", "thanks", "merci", "gracias", "danke",
		},
		Welcome:  "Hello, welcome to the restaurant. How can I help you?",
		Goodbye:  "Thank you for calling. Goodbye!",
		Hold:     "One moment please.",
		Error:    "Sorry, something went wrong. Could you repeat that?",
		Fallback: "I am sorry, I didn't understand your question.",
	}
}

// IsExit reports whether the text contains any exit phrase.
// Matching is case-insensitive and substring-based.
func (p PhraseSet) IsExit(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, phrase := range p.ExitPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// PhraseBook serves the current phrase set and supports hot reload from a
// YAML file.
type PhraseBook struct {
	mu      sync.RWMutex
	path    string
	current PhraseSet
}

// LoadPhraseBook reads the phrase file when a path is given, otherwise it
// starts from the built-in defaults. File values override defaults field by
// field; an empty exit list keeps the default list.
func LoadPhraseBook(path string) (*PhraseBook, error) {
	pb := &PhraseBook{path: path, current: DefaultPhraseSet()}
	if strings.TrimSpace(path) == "" {
		return pb, nil
	}
	if err := pb.reload(); err != nil {
		return nil, err
	}
	return pb, nil
}

// Current returns a copy of the active phrase set.
func (pb *PhraseBook) Current() PhraseSet {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	out := pb.current
	out.ExitPhrases = append([]string(nil), pb.current.ExitPhrases...)
	return out
}

// IsExit checks the text against the active exit-phrase list.
func (pb *PhraseBook) IsExit(text string) bool {
	return pb.Current().IsExit(text)
}

func (pb *PhraseBook) reload() error {
	raw, err := os.ReadFile(pb.path)
	if err != nil {
		return fmt.Errorf("read phrase file: %w", err)
	}
	merged := DefaultPhraseSet()
	var parsed PhraseSet
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse phrase file: %w", err)
	}
	if len(parsed.ExitPhrases) > 0 {
		merged.ExitPhrases = parsed.ExitPhrases
	}
	if strings.TrimSpace(parsed.Welcome) != "" {
		merged.Welcome = parsed.Welcome
	}
	if strings.TrimSpace(parsed.Goodbye) != "" {
		merged.Goodbye = parsed.Goodbye
	}
	if strings.TrimSpace(parsed.Hold) != "" {
		merged.Hold = parsed.Hold
	}
	if strings.TrimSpace(parsed.Error) != "" {
		merged.Error = parsed.Error
	}
	if strings.TrimSpace(parsed.Fallback) != "" {
		merged.Fallback = parsed.Fallback
	}

	pb.mu.Lock()
	pb.current = merged
	pb.mu.Unlock()
	return nil
}

// Watch reloads the phrase file when it changes on disk. It is a no-op when
// the book was built from defaults only.
func (pb *PhraseBook) Watch(ctx context.Context) error {
	if strings.TrimSpace(pb.path) == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(evt.Name) != filepath.Clean(pb.path) {
					continue
				}
				if err := pb.reload(); err != nil {
					log.Printf("phrase reload failed: %v", err)
				}
			case err := <-watcher.Errors:
				log.Printf("phrase watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(filepath.Dir(pb.path))
}
