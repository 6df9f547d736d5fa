// Package router classifies a caller's utterance into an intent and hands
// it to the matching task handler.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nprieur/maitred/internal/brain"
	"github.com/nprieur/maitred/internal/calls"
)

// Intent is the closed set of request categories.
type Intent string

const (
	IntentGeneral     Intent = "general"
	IntentOrder       Intent = "order"
	IntentReservation Intent = "reservation"
)

const fallbackReply = "I am sorry, I didn't understand your question. Could you rephrase it?"

const classifyPrompt = `You are a classifier for a restaurant. Analyze the customer's request and determine the category.

Available categories:
- general: general questions (opening hours, location, contact, menu, special offers)
- order: food orders (placing an order, modifying an order, canceling, order status)
- reservation: table reservations (book, modify, cancel, availability)

Customer request: %s

Respond ONLY with a single word from: general, order, reservation`

// Handler is one task domain's entry point.
type Handler interface {
	Process(ctx context.Context, text string) string
}

// Router owns classification and dispatch for one gateway instance.
type Router struct {
	client       brain.Client
	handlers     map[Intent]Handler
	contextTurns int
}

func New(client brain.Client, contextTurns int) *Router {
	if contextTurns <= 0 {
		contextTurns = 6
	}
	return &Router{
		client:       client,
		handlers:     make(map[Intent]Handler),
		contextTurns: contextTurns,
	}
}

func (r *Router) Register(intent Intent, h Handler) {
	r.handlers[intent] = h
}

// Classify maps an utterance to exactly one intent. Engine failures and
// unrecognized outputs both fall open to general.
func (r *Router) Classify(ctx context.Context, text string) Intent {
	out, err := r.client.Complete(ctx, brain.Request{Prompt: fmt.Sprintf(classifyPrompt, text)})
	if err != nil {
		log.Printf("intent classification failed, defaulting to general: %v", err)
		return IntentGeneral
	}
	answer := strings.ToLower(strings.TrimSpace(out))
	switch {
	case strings.Contains(answer, string(IntentOrder)):
		return IntentOrder
	case strings.Contains(answer, string(IntentReservation)):
		return IntentReservation
	default:
		return IntentGeneral
	}
}

// BuildContext prepends the last turns of the conversation so routing and
// the handler see what was already said. Empty history passes the input
// through unchanged.
func (r *Router) BuildContext(current string, history []calls.Turn) string {
	if len(history) == 0 {
		return current
	}
	recent := history
	if len(recent) > r.contextTurns {
		recent = recent[len(recent)-r.contextTurns:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation context:\n")
	for _, turn := range recent {
		role := "Customer"
		if turn.Role == calls.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, turn.Content)
	}
	b.WriteString("\nCurrent customer request: ")
	b.WriteString(current)
	return b.String()
}

// Route hands the contextualized text to the intent's handler. A missing
// handler degrades to the generic fallback reply.
func (r *Router) Route(ctx context.Context, intent Intent, text string) string {
	h, ok := r.handlers[intent]
	if !ok {
		log.Printf("no handler registered for intent %q", intent)
		return fallbackReply
	}
	return h.Process(ctx, text)
}

// Respond is the full path for one utterance: context, classify, dispatch.
func (r *Router) Respond(ctx context.Context, current string, history []calls.Turn) string {
	text := r.BuildContext(current, history)
	intent := r.Classify(ctx, text)
	return r.Route(ctx, intent, text)
}
