package lang

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// stopwords drive the offline detector. Short, high-frequency function words
// are enough to separate the languages the restaurant actually hears.
var stopwords = map[string][]string{
	"en": {"the", "and", "for", "you", "please", "table", "hello", "thanks", "goodbye", "want", "would"},
	"fr": {"le", "la", "les", "une", "pour", "merci", "bonjour", "je", "voudrais", "revoir", "vous"},
	"es": {"el", "la", "los", "una", "por", "gracias", "hola", "quiero", "mesa", "adios", "usted"},
	"de": {"der", "die", "das", "und", "für", "danke", "hallo", "ich", "möchte", "bitte", "tisch"},
	"it": {"il", "la", "per", "una", "grazie", "ciao", "vorrei", "tavolo", "prego", "sono"},
}

// DetectHeuristic scores the text against per-language stopword lists and
// returns the best match, defaulting to the pivot language on a tie or when
// nothing matches.
func DetectHeuristic(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Pivot
	}
	present := make(map[string]bool, len(words))
	for _, w := range words {
		present[strings.Trim(w, ".,!?;:'\"")] = true
	}

	best, bestScore := Pivot, 0
	for lang, list := range stopwords {
		score := 0
		for _, w := range list {
			if present[w] {
				score++
			}
		}
		if score > bestScore || (score == bestScore && lang == Pivot && score > 0) {
			best, bestScore = lang, score
		}
	}
	if bestScore == 0 {
		return Pivot
	}
	return best
}

// MockTranslator runs the gateway without a network translation capability:
// detection is heuristic and translation is the identity.
type MockTranslator struct{}

func NewMockTranslator() *MockTranslator { return &MockTranslator{} }

func (t *MockTranslator) Detect(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty text")
	}
	return DetectHeuristic(text), nil
}

func (t *MockTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// NewTranslator builds a translator for the configured mode.
func NewTranslator(mode string) (Translator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto", "google":
		return NewGoogleTranslator(), nil
	case "mock":
		return NewMockTranslator(), nil
	default:
		return nil, fmt.Errorf("unsupported translate mode %q", mode)
	}
}
