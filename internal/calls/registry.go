package calls

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable history entry.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrNotFound = errors.New("call not found")

// Call is the per-call mutable record tracking language, history and the
// turn-processing flags consumed by the webhook poll loop.
type Call struct {
	ID               string    `json:"call_id"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	History          []Turn    `json:"history"`
	Processing       bool      `json:"processing"`
	Ready            bool      `json:"ready"`
	ResponseAudioURL string    `json:"response_audio_url,omitempty"`
	ShouldHangup     bool      `json:"should_hangup"`
	WaitPolls        int       `json:"wait_polls"`
	TurnStartedAt    time.Time `json:"turn_started_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// Registry is the only shared mutable state in the gateway. Every read and
// write of a call entry happens under the registry lock, so webhook handlers
// and background units always observe a consistent (processing, ready) pair.
type Registry struct {
	mu       sync.RWMutex
	calls    map[string]*Call
	idleTTL  time.Duration
	onExpire func(*Call)
}

func NewRegistry(idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	return &Registry{
		calls:   make(map[string]*Call),
		idleTTL: idleTTL,
	}
}

// SetExpireHook registers a callback invoked for entries evicted by the
// janitor. Called outside the registry lock.
func (r *Registry) SetExpireHook(hook func(*Call)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// Ensure creates the entry when absent and returns a copy.
func (r *Registry) Ensure(id string) *Call {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		c = &Call{ID: id, CreatedAt: now}
		r.calls[id] = c
	}
	c.LastActivityAt = now
	return clone(c)
}

// Get returns a copy of the entry.
func (r *Registry) Get(id string) (*Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[id]
	if !ok {
		return nil, false
	}
	return clone(c), true
}

// Upsert performs an atomic read-modify-write, creating the entry first when
// absent. The mutator must not block.
func (r *Registry) Upsert(id string, mutate func(*Call)) *Call {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		c = &Call{ID: id, CreatedAt: now}
		r.calls[id] = c
	}
	mutate(c)
	c.LastActivityAt = now
	return clone(c)
}

// BeginTurn marks the call as owned by a background unit. It fails when a
// unit already holds the turn, which makes duplicate recording webhooks and
// repeated redirects idempotent: only the first submission wins.
func (r *Registry) BeginTurn(id string) bool {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		c = &Call{ID: id, CreatedAt: now}
		r.calls[id] = c
	}
	if c.Processing {
		return false
	}
	c.Processing = true
	c.Ready = false
	c.ShouldHangup = false
	c.ResponseAudioURL = ""
	c.WaitPolls = 0
	c.TurnStartedAt = now
	c.LastActivityAt = now
	return true
}

// SetLanguage persists the detected language once; later calls are no-ops so
// the language never changes mid-call.
func (r *Registry) SetLanguage(id, lang string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return lang
	}
	if c.DetectedLanguage == "" && lang != "" {
		c.DetectedLanguage = lang
		c.LastActivityAt = time.Now().UTC()
	}
	return c.DetectedLanguage
}

// CompleteTurn publishes a finished turn: two history entries, the response
// audio, processing off, ready on.
func (r *Registry) CompleteTurn(id, audioURL string, user, assistant Turn) error {
	return r.finish(id, func(c *Call) {
		c.History = append(c.History, user, assistant)
		c.ResponseAudioURL = audioURL
	})
}

// FailTurn publishes an error outcome: ready with an error audio reference
// and the history untouched.
func (r *Registry) FailTurn(id, audioURL string) error {
	return r.finish(id, func(c *Call) {
		c.ResponseAudioURL = audioURL
	})
}

// ExitTurn publishes a goodbye outcome and flags the call for hangup.
func (r *Registry) ExitTurn(id, audioURL string) error {
	return r.finish(id, func(c *Call) {
		c.ResponseAudioURL = audioURL
		c.ShouldHangup = true
	})
}

func (r *Registry) finish(id string, mutate func(*Call)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return ErrNotFound
	}
	mutate(c)
	c.Processing = false
	c.Ready = true
	c.LastActivityAt = time.Now().UTC()
	return nil
}

// ConsumeReady atomically observes and resets the ready flag. Only the first
// poll that sees ready=true receives the call copy.
func (r *Registry) ConsumeReady(id string) (*Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok || !c.Ready {
		return nil, false
	}
	c.Ready = false
	c.LastActivityAt = time.Now().UTC()
	return clone(c), true
}

// RecordPoll counts one WAITING-state poll and reports the total along with
// when the turn started, so the adapter can bound both poll count and
// elapsed wall-clock time.
func (r *Registry) RecordPoll(id string) (polls int, startedAt time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, found := r.calls[id]
	if !found {
		return 0, time.Time{}, false
	}
	c.WaitPolls++
	c.LastActivityAt = time.Now().UTC()
	return c.WaitPolls, c.TurnStartedAt, true
}

// Delete removes the entry. Results written by a still-running background
// unit for a deleted call are recreated as orphan entries and swept by the
// janitor.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, id)
}

// Clear drops every entry and returns how many were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.calls)
	r.calls = make(map[string]*Call)
	return n
}

// ActiveCount returns the number of tracked calls.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

// Snapshot returns copies of all entries, for operator introspection.
func (r *Registry) Snapshot() []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, clone(c))
	}
	return out
}

// StartJanitor evicts entries whose last activity is older than the idle TTL.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireIdle()
			}
		}
	}()
}

func (r *Registry) expireIdle() {
	now := time.Now().UTC()
	var expired []*Call

	r.mu.Lock()
	for id, c := range r.calls {
		if now.Sub(c.LastActivityAt) < r.idleTTL {
			continue
		}
		expired = append(expired, clone(c))
		delete(r.calls, id)
	}
	hook := r.onExpire
	r.mu.Unlock()

	if hook != nil {
		for _, c := range expired {
			hook(c)
		}
	}
}

func clone(c *Call) *Call {
	out := *c
	out.History = append([]Turn(nil), c.History...)
	return &out
}
