// Package lang normalizes caller text to the pivot language used for
// routing and reasoning, and renders replies back to the caller's language.
package lang

import (
	"context"
	"log"
	"strings"
)

// Pivot is the common intermediate language for routing and reasoning.
const Pivot = "en"

// Translator is the boundary to the external translation capability.
type Translator interface {
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Normalizer wraps a Translator with the degrade-gracefully semantics the
// call pipeline relies on: translation failures never fail the turn.
type Normalizer struct {
	translator Translator
}

func NewNormalizer(translator Translator) *Normalizer {
	return &Normalizer{translator: translator}
}

// ToPivot detects the source language and translates to the pivot. A failed
// detection falls back to the pivot language; a failed translation returns
// the original text with the detected tag still honored.
func (n *Normalizer) ToPivot(ctx context.Context, text string) (string, string) {
	detected, err := n.translator.Detect(ctx, text)
	if err != nil || strings.TrimSpace(detected) == "" {
		if err != nil {
			log.Printf("language detection failed, defaulting to %s: %v", Pivot, err)
		}
		detected = Pivot
	}
	if detected == Pivot {
		return text, Pivot
	}

	translated, err := n.translator.Translate(ctx, text, detected, Pivot)
	if err != nil || strings.TrimSpace(translated) == "" {
		if err != nil {
			log.Printf("translate to pivot failed, keeping original text: %v", err)
		}
		return text, detected
	}
	return translated, detected
}

// FromPivot renders pivot-language text in the target language. It is a
// no-op for the pivot itself and returns the original text on failure.
func (n *Normalizer) FromPivot(ctx context.Context, text, target string) string {
	target = strings.TrimSpace(target)
	if target == "" || target == Pivot {
		return text
	}
	translated, err := n.translator.Translate(ctx, text, Pivot, target)
	if err != nil || strings.TrimSpace(translated) == "" {
		if err != nil {
			log.Printf("translate from pivot failed, keeping pivot text: %v", err)
		}
		return text
	}
	return translated
}
