package lang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator uses the public translate endpoint for both detection and
// translation.
type GoogleTranslator struct {
	endpoint string
	client   *http.Client
}

func NewGoogleTranslator() *GoogleTranslator {
	return &GoogleTranslator{
		endpoint: googleEndpoint,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewGoogleTranslatorWithEndpoint exists for tests.
func NewGoogleTranslatorWithEndpoint(endpoint string) *GoogleTranslator {
	t := NewGoogleTranslator()
	t.endpoint = strings.TrimSpace(endpoint)
	return t
}

func (t *GoogleTranslator) Detect(ctx context.Context, text string) (string, error) {
	_, detected, err := t.call(ctx, text, "auto", Pivot)
	if err != nil {
		return "", err
	}
	return detected, nil
}

func (t *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(source) == "" {
		source = "auto"
	}
	translated, _, err := t.call(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	return translated, nil
}

// call performs one translate request. The endpoint answers with a nested
// JSON array: element 0 holds [translated, original] segment pairs, element
// 2 the detected source language.
func (t *GoogleTranslator) call(ctx context.Context, text, source, target string) (string, string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return "", "", fmt.Errorf("translate http status %d: %s", res.StatusCode, string(body))
	}

	var payload []any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	if len(payload) == 0 {
		return "", "", errors.New("empty translate payload")
	}

	var out strings.Builder
	if segments, ok := payload[0].([]any); ok {
		for _, seg := range segments {
			pair, ok := seg.([]any)
			if !ok || len(pair) == 0 {
				continue
			}
			if s, ok := pair[0].(string); ok {
				out.WriteString(s)
			}
		}
	}

	detected := ""
	if len(payload) > 2 {
		if s, ok := payload[2].(string); ok {
			detected = s
		}
	}

	if out.Len() == 0 {
		return "", detected, errors.New("translate payload had no segments")
	}
	return out.String(), detected, nil
}
