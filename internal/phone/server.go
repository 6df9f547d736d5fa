// Package phone adapts the telephony provider's webhook protocol to the
// call registry and the background dispatcher. Handlers never block on
// downstream capabilities: they read and write call flags and answer with
// a call-control document immediately.
package phone

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nprieur/maitred/internal/calls"
	"github.com/nprieur/maitred/internal/config"
	"github.com/nprieur/maitred/internal/events"
	"github.com/nprieur/maitred/internal/observability"
	"github.com/nprieur/maitred/internal/speech"
	"github.com/nprieur/maitred/internal/twiml"
)

// Dispatcher is the background side of the protocol: one unit of work per
// accepted recording.
type Dispatcher interface {
	Submit(callID, recordingURL string) bool
}

type Server struct {
	cfg        config.Config
	registry   *calls.Registry
	dispatcher Dispatcher
	phrases    *config.PhraseBook
	library    *speech.Library
	metrics    *observability.Metrics
	hub        *events.Hub

	// twilioAPIBase is swappable so tests can point the outbound-call
	// helper at a local server.
	twilioAPIBase string
	httpClient    *http.Client
}

func New(cfg config.Config, registry *calls.Registry, dispatcher Dispatcher, phrases *config.PhraseBook, library *speech.Library, metrics *observability.Metrics, hub *events.Hub) *Server {
	return &Server{
		cfg:           cfg,
		registry:      registry,
		dispatcher:    dispatcher,
		phrases:       phrases,
		library:       library,
		metrics:       metrics,
		hub:           hub,
		twilioAPIBase: "https://api.twilio.com",
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/voice", s.handleVoice)
	r.Post("/recording", s.handleRecording)
	r.Post("/recording-status", s.handleRecordingStatus)
	r.Post("/wait-for-response", s.handleWaitForResponse)

	r.Handle("/static/audio/*", http.StripPrefix("/static/audio/",
		http.FileServer(http.Dir(s.library.Dir()))))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/debug/active-calls", s.handleActiveCalls)
	r.Get("/debug/call/{id}", s.handleGetCall)
	r.Post("/debug/clear-calls", s.handleClearCalls)
	r.Post("/debug/outbound-call", s.handleOutboundCall)
	if s.hub != nil {
		r.Get("/debug/events", s.hub.ServeHTTP)
	}

	return r
}

func (s *Server) countWebhook(route string) {
	if s.metrics != nil {
		s.metrics.WebhookRequests.WithLabelValues(route).Inc()
	}
}

func (s *Server) publish(ev events.Event) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
}

// recordVerb builds the standard caller-recording directive. Every prompt
// that expects an answer ends with one of these.
func (s *Server) recordVerb() twiml.Record {
	return twiml.Record{
		Action:                  s.cfg.BaseURL + "/recording",
		Method:                  http.MethodPost,
		MaxLength:               s.cfg.RecordMaxSeconds,
		Timeout:                 s.cfg.RecordSilenceSeconds,
		FinishOnKey:             "#",
		PlayBeep:                "false",
		RecordingStatusCallback: s.cfg.BaseURL + "/recording-status",
	}
}

func (s *Server) waitURL(callID string) string {
	return s.cfg.BaseURL + "/wait-for-response?call_id=" + url.QueryEscape(callID)
}

// prompt plays the generated asset, falling back to the transport's
// built-in voice when the asset was never synthesized.
func (s *Server) prompt(asset, text string) twiml.Verb {
	if s.library.Has(asset) {
		return twiml.Play{URL: s.library.URLFor(asset)}
	}
	return twiml.Say{Text: text}
}

// holdResponse is the idempotent WAITING directive: hold audio plus a
// self-redirect. Repeating it must not change anything.
func (s *Server) holdResponse(w http.ResponseWriter, callID string) {
	resp := &twiml.Response{}
	resp.Add(
		s.prompt(speech.AssetHold, s.phrases.Current().Hold),
		twiml.Pause{Length: 1},
		twiml.Redirect{Method: http.MethodPost, URL: s.waitURL(callID)},
	)
	twiml.Write(w, resp)
}

func (s *Server) errorHangup(w http.ResponseWriter) {
	resp := &twiml.Response{}
	resp.Add(
		s.prompt(speech.AssetError, s.phrases.Current().Error),
		twiml.Hangup{},
	)
	twiml.Write(w, resp)
}

// handleVoice answers a new inbound call with the welcome prompt and the
// first recording directive.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	s.countWebhook("voice")
	callID := strings.TrimSpace(r.FormValue("CallSid"))
	if callID == "" {
		s.errorHangup(w)
		return
	}

	s.registry.Ensure(callID)
	s.publish(events.Event{Type: events.TypeCallStarted, CallID: callID})
	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues("started").Inc()
		s.metrics.ActiveCalls.Set(float64(s.registry.ActiveCount()))
	}

	resp := &twiml.Response{}
	resp.Add(
		s.prompt(speech.AssetWelcome, s.phrases.Current().Welcome),
		s.recordVerb(),
	)
	twiml.Write(w, resp)
}

// handleRecording accepts a finished recording and hands it to the
// dispatcher. A duplicate delivery for a turn already in flight gets the
// same hold directive and no second background unit.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	s.countWebhook("recording")
	callID := strings.TrimSpace(r.FormValue("CallSid"))
	if callID == "" {
		s.errorHangup(w)
		return
	}
	recordingURL := strings.TrimSpace(r.FormValue("RecordingUrl"))
	if recordingURL == "" {
		// Silence or a transport glitch: replay the prompt and listen again.
		resp := &twiml.Response{}
		resp.Add(
			s.prompt(speech.AssetError, s.phrases.Current().Error),
			s.recordVerb(),
		)
		twiml.Write(w, resp)
		return
	}

	s.registry.Ensure(callID)
	if !s.dispatcher.Submit(callID, recordingURL) {
		log.Printf("call %s: turn already in flight, ignoring duplicate recording webhook", callID)
	}
	s.holdResponse(w, callID)
}

// handleRecordingStatus is fire and forget: the transport reports upload
// progress, nothing transitions.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	s.countWebhook("recording_status")
	log.Printf("recording status for call %s: %s",
		r.FormValue("CallSid"), r.FormValue("RecordingStatus"))
	w.WriteHeader(http.StatusNoContent)
}

// handleWaitForResponse is the poll loop. Bounded by both a poll count and
// a wall clock so a caller is never trapped holding forever.
func (s *Server) handleWaitForResponse(w http.ResponseWriter, r *http.Request) {
	s.countWebhook("wait_for_response")
	callID := strings.TrimSpace(r.URL.Query().Get("call_id"))
	if callID == "" {
		callID = strings.TrimSpace(r.FormValue("CallSid"))
	}
	if callID == "" {
		s.errorHangup(w)
		return
	}

	if call, ok := s.registry.ConsumeReady(callID); ok {
		s.respond(w, call)
		return
	}

	call, ok := s.registry.Get(callID)
	if !ok {
		s.errorHangup(w)
		return
	}
	if !call.Processing {
		// Nothing in flight and nothing ready: the caller was redirected
		// here without a submission. Listen again instead of holding.
		resp := &twiml.Response{}
		resp.Add(s.recordVerb())
		twiml.Write(w, resp)
		return
	}

	polls, startedAt, ok := s.registry.RecordPoll(callID)
	if !ok {
		s.errorHangup(w)
		return
	}
	if polls > s.cfg.MaxWaitPolls || time.Since(startedAt) > s.cfg.WaitTimeout {
		log.Printf("call %s: wait budget exhausted after %d polls", callID, polls)
		if s.metrics != nil {
			s.metrics.CallEvents.WithLabelValues("wait_timeout").Inc()
		}
		s.registry.Delete(callID)
		s.publish(events.Event{Type: events.TypeCallEnded, CallID: callID, Detail: "wait_timeout"})
		s.errorHangup(w)
		return
	}

	s.holdResponse(w, callID)
}

// respond plays the prepared answer and either hangs up or listens for the
// next turn.
func (s *Server) respond(w http.ResponseWriter, call *calls.Call) {
	resp := &twiml.Response{}
	if call.ResponseAudioURL != "" {
		resp.Add(twiml.Play{URL: call.ResponseAudioURL})
	}
	if call.ShouldHangup {
		resp.Add(twiml.Hangup{})
		s.registry.Delete(call.ID)
		s.publish(events.Event{Type: events.TypeCallEnded, CallID: call.ID, Detail: "goodbye"})
		if s.metrics != nil {
			s.metrics.CallEvents.WithLabelValues("ended").Inc()
			s.metrics.ActiveCalls.Set(float64(s.registry.ActiveCount()))
		}
	} else {
		resp.Add(s.recordVerb())
	}
	twiml.Write(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"twilio_configured": s.cfg.TwilioConfigured(),
		"active_calls":      s.registry.ActiveCount(),
	})
}

func (s *Server) handleActiveCalls(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"count": s.registry.ActiveCount(),
		"calls": s.registry.Snapshot(),
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	call, ok := s.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "call_not_found", fmt.Sprintf("no call %q", id))
		return
	}
	respondJSON(w, http.StatusOK, call)
}

func (s *Server) handleClearCalls(w http.ResponseWriter, _ *http.Request) {
	cleared := s.registry.Clear()
	if s.metrics != nil {
		s.metrics.ActiveCalls.Set(0)
	}
	respondJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

// handleOutboundCall places a confirmation call through the telephony REST
// API. Without credentials the gateway runs in demo mode and refuses.
func (s *Server) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.TwilioConfigured() {
		respondError(w, http.StatusNotImplemented, "demo_mode",
			"outbound calls need TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER")
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.To) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must carry a destination number in \"to\"")
		return
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", s.cfg.TwilioPhoneNumber)
	form.Set("Url", s.cfg.BaseURL+"/voice")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", s.twilioAPIBase, s.cfg.TwilioAccountSID)
	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "request_failed", err.Error())
		return
	}
	httpReq.SetBasicAuth(s.cfg.TwilioAccountSID, s.cfg.TwilioAuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		respondError(w, http.StatusBadGateway, "telephony_unreachable", err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		respondError(w, http.StatusBadGateway, "telephony_rejected",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"status": "queued", "to": req.To})
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
