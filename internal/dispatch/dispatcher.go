// Package dispatch runs one background unit of work per submitted
// recording: fetch, transcribe, route, synthesize, then flip the call's
// ready flag. Every path through a unit terminates with ready=true so the
// webhook poll loop can never wait forever on a finished turn.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nprieur/maitred/internal/calls"
	"github.com/nprieur/maitred/internal/config"
	"github.com/nprieur/maitred/internal/events"
	"github.com/nprieur/maitred/internal/lang"
	"github.com/nprieur/maitred/internal/observability"
	"github.com/nprieur/maitred/internal/speech"
)

// Outcome labels how a background unit ended.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"
	OutcomeExit               Outcome = "exit"
	OutcomeEmptyAudio         Outcome = "empty_audio"
	OutcomeFetchError         Outcome = "fetch_error"
	OutcomeTranscriptionEmpty Outcome = "transcription_empty"
	OutcomeProviderError      Outcome = "provider_error"
	OutcomePanic              Outcome = "panic"
)

// Fetcher downloads the audio behind a recording reference.
type Fetcher interface {
	Fetch(ctx context.Context, recordingURL string) ([]byte, error)
}

// Responder turns a pivot-language utterance plus history into a reply.
type Responder interface {
	Respond(ctx context.Context, text string, history []calls.Turn) string
}

// Dispatcher owns the background side of the call protocol.
type Dispatcher struct {
	registry   *calls.Registry
	fetcher    Fetcher
	stt        speech.Transcriber
	tts        speech.Synthesizer
	normalizer *lang.Normalizer
	responder  Responder
	phrases    *config.PhraseBook
	library    *speech.Library
	metrics    *observability.Metrics
	hub        *events.Hub

	minRecordingBytes int

	mu      sync.Mutex
	waiters map[string][]chan Outcome
}

type Deps struct {
	Registry          *calls.Registry
	Fetcher           Fetcher
	Transcriber       speech.Transcriber
	Synthesizer       speech.Synthesizer
	Normalizer        *lang.Normalizer
	Responder         Responder
	Phrases           *config.PhraseBook
	Library           *speech.Library
	Metrics           *observability.Metrics
	Hub               *events.Hub
	MinRecordingBytes int
}

func New(deps Deps) *Dispatcher {
	minBytes := deps.MinRecordingBytes
	if minBytes <= 0 {
		minBytes = 1000
	}
	return &Dispatcher{
		registry:          deps.Registry,
		fetcher:           deps.Fetcher,
		stt:               deps.Transcriber,
		tts:               deps.Synthesizer,
		normalizer:        deps.Normalizer,
		responder:         deps.Responder,
		phrases:           deps.Phrases,
		library:           deps.Library,
		metrics:           deps.Metrics,
		hub:               deps.Hub,
		minRecordingBytes: minBytes,
		waiters:           make(map[string][]chan Outcome),
	}
}

// Submit claims the call's turn slot and spawns the background unit.
// It returns false without side effects when a unit is already in flight
// for this call, so a duplicated webhook can never double-process a turn.
func (d *Dispatcher) Submit(callID, recordingURL string) bool {
	if !d.registry.BeginTurn(callID) {
		return false
	}
	d.publish(events.Event{Type: events.TypeTurnSubmitted, CallID: callID})
	go d.run(callID, recordingURL)
	return true
}

// Await blocks until the next background unit for the call terminates.
// The channel also fires for units that are already in flight.
func (d *Dispatcher) Await(callID string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	d.mu.Lock()
	d.waiters[callID] = append(d.waiters[callID], ch)
	d.mu.Unlock()
	return ch
}

func (d *Dispatcher) settle(callID string, outcome Outcome) {
	d.mu.Lock()
	chans := d.waiters[callID]
	delete(d.waiters, callID)
	d.mu.Unlock()
	for _, ch := range chans {
		ch <- outcome
	}

	if d.metrics != nil {
		d.metrics.DispatchOutcomes.WithLabelValues(string(outcome)).Inc()
	}
	switch outcome {
	case OutcomeCompleted, OutcomeExit:
		d.publish(events.Event{Type: events.TypeTurnReady, CallID: callID, Detail: string(outcome)})
	default:
		d.publish(events.Event{Type: events.TypeTurnFailed, CallID: callID, Detail: string(outcome)})
	}
}

func (d *Dispatcher) publish(ev events.Event) {
	if d.hub != nil {
		d.hub.Publish(ev)
	}
}

func (d *Dispatcher) providerError(provider, stage string, err error) {
	log.Printf("%s %s failed: %v", provider, stage, err)
	if d.metrics != nil {
		d.metrics.ProviderErrors.WithLabelValues(provider, stage).Inc()
	}
}

// run is the background unit. Background work carries its own context: the
// webhook request that spawned it has already returned.
func (d *Dispatcher) run(callID, recordingURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	started := time.Now()
	outcome := OutcomePanic
	defer func() {
		if r := recover(); r != nil {
			log.Printf("background unit for call %s panicked: %v", callID, r)
			d.failTurn(callID)
			outcome = OutcomePanic
		}
		if d.metrics != nil {
			d.metrics.ObserveTurnLatency(time.Since(started))
		}
		d.settle(callID, outcome)
	}()

	outcome = d.process(ctx, callID, recordingURL)
}

func (d *Dispatcher) process(ctx context.Context, callID, recordingURL string) Outcome {
	audio, err := d.fetcher.Fetch(ctx, recordingURL)
	if err != nil {
		d.providerError("telephony", "fetch_recording", err)
		d.failTurn(callID)
		return OutcomeFetchError
	}
	if len(audio) < d.minRecordingBytes {
		log.Printf("call %s: recording of %d bytes treated as no input", callID, len(audio))
		d.failTurn(callID)
		return OutcomeEmptyAudio
	}

	transcript, err := d.stt.Transcribe(ctx, audio, fmt.Sprintf("%s.wav", callID))
	if err != nil {
		d.providerError("speech", "transcribe", err)
		d.failTurn(callID)
		return OutcomeProviderError
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		d.failTurn(callID)
		return OutcomeTranscriptionEmpty
	}

	// Exit phrases are matched on the raw transcript: the list itself is
	// multilingual, no translation needed.
	if d.phrases.IsExit(transcript) {
		if err := d.registry.ExitTurn(callID, d.library.URLFor(speech.AssetGoodbye)); err != nil {
			log.Printf("call %s: exit turn: %v", callID, err)
		}
		return OutcomeExit
	}

	pivotText, detected := d.normalizer.ToPivot(ctx, transcript)
	language := d.registry.SetLanguage(callID, detected)

	var history []calls.Turn
	if call, ok := d.registry.Get(callID); ok {
		history = call.History
	}

	reply := d.responder.Respond(ctx, pivotText, history)
	localized := d.normalizer.FromPivot(ctx, reply, language)

	audioOut, err := d.tts.Synthesize(ctx, localized, language)
	if err != nil {
		d.providerError("speech", "synthesize", err)
		d.failTurn(callID)
		return OutcomeProviderError
	}
	url, err := d.library.SaveResponse(callID, audioOut)
	if err != nil {
		d.providerError("storage", "save_response", err)
		d.failTurn(callID)
		return OutcomeProviderError
	}

	err = d.registry.CompleteTurn(callID, url,
		calls.Turn{Role: calls.RoleUser, Content: pivotText},
		calls.Turn{Role: calls.RoleAssistant, Content: reply},
	)
	if err != nil {
		// The call expired mid-turn; the result is orphaned on purpose.
		log.Printf("call %s: discarding orphaned result: %v", callID, err)
	}
	return OutcomeCompleted
}

// failTurn marks the turn ready with the generic error prompt. History is
// left untouched.
func (d *Dispatcher) failTurn(callID string) {
	if err := d.registry.FailTurn(callID, d.library.URLFor(speech.AssetError)); err != nil {
		log.Printf("call %s: fail turn: %v", callID, err)
	}
}
