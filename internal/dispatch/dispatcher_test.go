package dispatch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nprieur/maitred/internal/calls"
	"github.com/nprieur/maitred/internal/config"
	"github.com/nprieur/maitred/internal/lang"
	"github.com/nprieur/maitred/internal/speech"
)

type fakeFetcher struct {
	audio []byte
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.audio, f.err
}

type echoResponder struct {
	gotText    string
	gotHistory []calls.Turn
	reply      string
}

func (r *echoResponder) Respond(_ context.Context, text string, history []calls.Turn) string {
	r.gotText = text
	r.gotHistory = append([]calls.Turn(nil), history...)
	if r.reply != "" {
		return r.reply
	}
	return "you said: " + text
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", errors.New("whisper down")
}

type failingSynthesizer struct{}

func (failingSynthesizer) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("tts down")
}

type panickyResponder struct{}

func (panickyResponder) Respond(context.Context, string, []calls.Turn) string {
	panic("boom")
}

func newTestDispatcher(t *testing.T, mutate func(*Deps)) (*Dispatcher, *calls.Registry, *echoResponder) {
	t.Helper()
	registry := calls.NewRegistry(time.Minute)
	phrases, err := config.LoadPhraseBook("")
	if err != nil {
		t.Fatalf("LoadPhraseBook: %v", err)
	}
	library, err := speech.NewLibrary(t.TempDir(), "http://gw.example")
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	responder := &echoResponder{}
	deps := Deps{
		Registry:          registry,
		Fetcher:           &fakeFetcher{audio: []byte("book a table please")},
		Transcriber:       speech.NewMockSpeech(),
		Synthesizer:       speech.NewMockSpeech(),
		Normalizer:        lang.NewNormalizer(lang.NewMockTranslator()),
		Responder:         responder,
		Phrases:           phrases,
		Library:           library,
		MinRecordingBytes: 4,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return New(deps), registry, responder
}

func submitAndWait(t *testing.T, d *Dispatcher, callID, url string) Outcome {
	t.Helper()
	done := d.Await(callID)
	if !d.Submit(callID, url) {
		t.Fatal("Submit rejected a fresh turn")
	}
	select {
	case outcome := <-done:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("background unit never settled")
		return ""
	}
}

func TestCompletedTurn(t *testing.T) {
	d, registry, responder := newTestDispatcher(t, nil)
	registry.Ensure("CA1")

	outcome := submitAndWait(t, d, "CA1", "http://t.example/rec")
	if outcome != OutcomeCompleted {
		t.Fatalf("outcome = %q", outcome)
	}

	call, ok := registry.Get("CA1")
	if !ok {
		t.Fatal("call lost")
	}
	if call.Processing || !call.Ready {
		t.Fatalf("flags wrong: processing=%v ready=%v", call.Processing, call.Ready)
	}
	if len(call.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(call.History))
	}
	if call.History[0].Role != calls.RoleUser || call.History[1].Role != calls.RoleAssistant {
		t.Fatalf("history roles wrong: %+v", call.History)
	}
	if call.ShouldHangup {
		t.Fatal("completed turn must not hang up")
	}
	if !strings.Contains(call.ResponseAudioURL, "/static/audio/response_CA1_") {
		t.Fatalf("response URL = %q", call.ResponseAudioURL)
	}
	if responder.gotText != "book a table please" {
		t.Fatalf("responder received %q", responder.gotText)
	}
}

func TestSecondSubmitRejectedWhileProcessing(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, nil)
	registry.Ensure("CA1")

	done := d.Await("CA1")
	if !d.Submit("CA1", "http://t.example/rec") {
		t.Fatal("first submit rejected")
	}
	// The duplicate webhook arrives before the unit settles. BeginTurn's
	// claim makes this a no-op regardless of timing.
	if call, _ := registry.Get("CA1"); call != nil && call.Processing {
		if d.Submit("CA1", "http://t.example/rec") {
			t.Fatal("duplicate submit accepted while processing")
		}
	}
	<-done
}

func TestSmallRecordingTreatedAsNoInput(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Fetcher = &fakeFetcher{audio: bytes.Repeat([]byte{0x01}, 200)}
		deps.MinRecordingBytes = 1000
	})
	registry.Ensure("CA1")

	outcome := submitAndWait(t, d, "CA1", "http://t.example/rec")
	if outcome != OutcomeEmptyAudio {
		t.Fatalf("outcome = %q", outcome)
	}

	call, _ := registry.Get("CA1")
	if !call.Ready {
		t.Fatal("turn must end ready")
	}
	if len(call.History) != 0 {
		t.Fatal("history must be unchanged")
	}
	if call.ShouldHangup {
		t.Fatal("no-input turn must not hang up")
	}
	if !strings.HasSuffix(call.ResponseAudioURL, speech.AssetError) {
		t.Fatalf("expected error audio, got %q", call.ResponseAudioURL)
	}
}

func TestFetchFailureEndsReady(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Fetcher = &fakeFetcher{err: errors.New("404")}
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeFetchError {
		t.Fatalf("outcome = %q", outcome)
	}
	call, _ := registry.Get("CA1")
	if !call.Ready || len(call.History) != 0 {
		t.Fatalf("ready=%v history=%d", call.Ready, len(call.History))
	}
}

func TestTranscriptionFailureEndsReady(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Transcriber = failingTranscriber{}
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeProviderError {
		t.Fatalf("outcome = %q", outcome)
	}
	if call, _ := registry.Get("CA1"); !call.Ready {
		t.Fatal("turn must end ready")
	}
}

func TestEmptyTranscriptEndsReadyHistoryUnchanged(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Fetcher = &fakeFetcher{audio: []byte("     ")}
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeTranscriptionEmpty {
		t.Fatalf("outcome = %q", outcome)
	}
	call, _ := registry.Get("CA1")
	if !call.Ready || len(call.History) != 0 {
		t.Fatalf("ready=%v history=%d", call.Ready, len(call.History))
	}
}

func TestSynthesisFailureEndsReady(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Synthesizer = failingSynthesizer{}
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeProviderError {
		t.Fatalf("outcome = %q", outcome)
	}
	if call, _ := registry.Get("CA1"); !call.Ready {
		t.Fatal("turn must end ready")
	}
}

func TestExitPhraseHangsUpWithoutHistory(t *testing.T) {
	for _, phrase := range []string{"Thanks, goodbye!", "merci, au revoir"} {
		d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
			deps.Fetcher = &fakeFetcher{audio: []byte(phrase)}
		})
		registry.Ensure("CA1")

		if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeExit {
			t.Fatalf("%q: outcome = %q", phrase, outcome)
		}
		call, _ := registry.Get("CA1")
		if !call.ShouldHangup {
			t.Fatalf("%q must set shouldHangup", phrase)
		}
		if len(call.History) != 0 {
			t.Fatalf("%q: exit turn must not grow history", phrase)
		}
		if !strings.HasSuffix(call.ResponseAudioURL, speech.AssetGoodbye) {
			t.Fatalf("%q: expected goodbye audio, got %q", phrase, call.ResponseAudioURL)
		}
	}
}

func TestLanguageDetectedOnce(t *testing.T) {
	fetcher := &fakeFetcher{audio: []byte("je voudrais une table pour deux")}
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Fetcher = fetcher
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeCompleted {
		t.Fatalf("outcome = %q", outcome)
	}
	call, _ := registry.Get("CA1")
	if call.DetectedLanguage != "fr" {
		t.Fatalf("detected language = %q, want fr", call.DetectedLanguage)
	}

	// A later English-looking turn must not flip the stored language.
	fetcher.audio = []byte("the table for you would be great")
	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec2"); outcome != OutcomeCompleted {
		t.Fatalf("second turn outcome = %q", outcome)
	}
	call, _ = registry.Get("CA1")
	if call.DetectedLanguage != "fr" {
		t.Fatalf("language changed to %q after second turn", call.DetectedLanguage)
	}
}

func TestHistoryFlowsIntoResponder(t *testing.T) {
	d, registry, responder := newTestDispatcher(t, nil)
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomeCompleted {
		t.Fatalf("outcome = %q", outcome)
	}
	registry.ConsumeReady("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec2"); outcome != OutcomeCompleted {
		t.Fatalf("second outcome = %q", outcome)
	}
	if len(responder.gotHistory) != 2 {
		t.Fatalf("responder saw %d history turns, want 2", len(responder.gotHistory))
	}
	call, _ := registry.Get("CA1")
	if len(call.History) != 4 {
		t.Fatalf("history length = %d, want 4", len(call.History))
	}
}

func TestPanicRecoveryEndsReady(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, func(deps *Deps) {
		deps.Responder = panickyResponder{}
	})
	registry.Ensure("CA1")

	if outcome := submitAndWait(t, d, "CA1", "http://t.example/rec"); outcome != OutcomePanic {
		t.Fatalf("outcome = %q", outcome)
	}
	call, _ := registry.Get("CA1")
	if !call.Ready || call.Processing {
		t.Fatalf("panic must still end ready: ready=%v processing=%v", call.Ready, call.Processing)
	}
}
