package brain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientModes(t *testing.T) {
	if _, err := NewClient(Config{Mode: "openai"}); err == nil {
		t.Fatalf("openai mode without key should fail")
	}
	c, err := NewClient(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("auto mode error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("auto without key should yield mock, got %T", c)
	}
	c, err = NewClient(Config{Mode: "auto", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("auto mode with key error = %v", err)
	}
	if _, ok := c.(*FallbackClient); !ok {
		t.Fatalf("auto with key should yield fallback chain, got %T", c)
	}
	if _, err := NewClient(Config{Mode: "banana"}); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  reservation \n"}},
			},
		})
	}))
	defer ts.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: ts.URL})
	text, err := c.Complete(context.Background(), Request{System: "classify", Prompt: "book a table"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "reservation" {
		t.Fatalf("text = %q, want trimmed %q", text, "reservation")
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotBody.Messages)
	}
}

func TestOpenAIClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: ts.URL})
	if _, err := c.Complete(context.Background(), Request{Prompt: "hi"}); err == nil {
		t.Fatalf("Complete() accepted error status")
	}
}

type scriptedClient struct {
	text string
	err  error
}

func (s scriptedClient) Complete(context.Context, Request) (string, error) {
	return s.text, s.err
}

func TestFallbackClient(t *testing.T) {
	fb := NewFallbackClient(scriptedClient{err: errors.New("down")}, scriptedClient{text: "backup"})
	text, err := fb.Complete(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "backup" {
		t.Fatalf("text = %q, want backup", text)
	}

	fb = NewFallbackClient(scriptedClient{err: context.Canceled}, scriptedClient{text: "backup"})
	if _, err := fb.Complete(context.Background(), Request{Prompt: "hi"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation masked by fallback: %v", err)
	}
}

func TestMockClientClassification(t *testing.T) {
	m := NewMockClient()
	prompt := "Respond ONLY with a single word from: general, order, reservation\n\nCustomer request: can I book a table for two"
	text, err := m.Complete(context.Background(), Request{Prompt: prompt})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "reservation" {
		t.Fatalf("text = %q, want reservation", text)
	}
}
