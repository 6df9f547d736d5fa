package agent

// Budget enforces the one-invocation-per-tool rule for a single Process
// call. A second request for the same tool replays the cached observation
// instead of running the tool again.
type Budget struct {
	observations map[string]string
}

func NewBudget() *Budget {
	return &Budget{observations: make(map[string]string)}
}

// Spent returns the cached observation when the tool already ran.
func (b *Budget) Spent(name string) (string, bool) {
	obs, ok := b.observations[name]
	return obs, ok
}

// Spend records a tool's observation, consuming its slot for the turn.
func (b *Budget) Spend(name, observation string) {
	b.observations[name] = observation
}
