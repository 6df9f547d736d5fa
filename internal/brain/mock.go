package brain

import (
	"context"
	"strings"
)

// MockClient gives deterministic local replies when no reasoning engine is
// configured. It recognizes the two constrained prompt shapes the gateway
// uses (single-word classification and the Action/Final Answer loop) so the
// whole call flow works offline.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	prompt := strings.ToLower(req.Prompt)

	if strings.Contains(prompt, "respond only with a single word") {
		switch {
		case containsAny(prompt, "reserv", "book a table", "table for"):
			return "reservation", nil
		case containsAny(prompt, "order", "pizza", "delivery", "takeaway"):
			return "order", nil
		default:
			return "general", nil
		}
	}

	if strings.Contains(strings.ToLower(req.System), "final answer") {
		return "Final Answer: I noted your request and a colleague will confirm shortly.", nil
	}

	base := strings.TrimSpace(req.Prompt)
	if base == "" {
		return "I am listening.", nil
	}
	return "I heard you: " + base, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
