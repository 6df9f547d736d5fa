package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nprieur/maitred/internal/brain"
)

const apology = "I am sorry, I could not complete that request right now. Could you repeat it, or call us back in a moment?"

// Handler drives one task domain (reservations, orders, inquiries)
// through a bounded THINK, ACT, OBSERVE loop.
type Handler struct {
	name          string
	client        brain.Client
	system        string
	tools         map[string]Tool
	maxIterations int
}

func NewHandler(name string, client brain.Client, persona string, maxIterations int, tools ...Tool) *Handler {
	byName := make(map[string]Tool, len(tools))
	catalog := make([]string, 0, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
		catalog = append(catalog, "- "+t.signature())
	}
	system := persona + "\n\nYou can use these tools:\n" + strings.Join(catalog, "\n") + `

To use a tool, reply with exactly two lines:
Action: <tool name>
Action Input: key: value, key: value

When you have everything you need, reply with one line:
Final Answer: <your reply to the customer>

Use each tool at most once. Never invent customer details: if the name or
phone number is missing, ask for it in your Final Answer instead of
calling a tool.`

	return &Handler{
		name:          name,
		client:        client,
		system:        system,
		tools:         byName,
		maxIterations: maxIterations,
	}
}

// Process runs the loop for one customer utterance and always returns a
// speakable reply. Faults degrade to an apology, never an error.
func (h *Handler) Process(ctx context.Context, input string) string {
	budget := NewBudget()
	transcript := input

	for i := 0; i < h.maxIterations; i++ {
		out, err := h.client.Complete(ctx, brain.Request{System: h.system, Prompt: transcript})
		if err != nil {
			log.Printf("handler %s: reasoning failed: %v", h.name, err)
			return apology
		}

		if answer, ok := parseFinalAnswer(out); ok {
			return answer
		}
		action, rawArgs, ok := parseAction(out)
		if !ok {
			// No action and no final marker: take the reply as-is.
			if reply := strings.TrimSpace(out); reply != "" {
				return reply
			}
			return apology
		}

		observation, final := h.step(ctx, budget, action, rawArgs)
		if final {
			return observation
		}
		transcript += fmt.Sprintf("\nAction: %s\nAction Input: %s\nObservation: %s", action, rawArgs, observation)
	}

	log.Printf("handler %s: iteration cap reached without final answer", h.name)
	return apology
}

// step resolves one proposed action into an observation. final=true means
// the observation is the user-facing reply (a clarification request).
func (h *Handler) step(ctx context.Context, budget *Budget, action, rawArgs string) (observation string, final bool) {
	tool, exists := h.tools[action]
	if !exists {
		return fmt.Sprintf("There is no tool named %q.", action), false
	}
	if cached, spent := budget.Spent(action); spent {
		return cached, false
	}

	args, err := ParseArgs(rawArgs)
	if err != nil {
		return "Could not read the tool input (" + err.Error() + "). Provide it as key: value pairs.", false
	}

	if missing := tool.missing(args); len(missing) > 0 {
		if tool.Mutating {
			return clarification(missing), true
		}
		keys := make([]string, len(missing))
		for i, p := range missing {
			keys[i] = p.Key
		}
		return "Missing required fields: " + strings.Join(keys, ", ") + ". Ask the customer in your Final Answer.", false
	}

	result, err := tool.Run(ctx, args)
	if err != nil {
		result = "The action failed: " + err.Error()
	}
	budget.Spend(tool.Name, result)
	return result, false
}

func clarification(missing []ParamSpec) string {
	prompts := make([]string, len(missing))
	for i, p := range missing {
		prompts[i] = p.Prompt
	}
	var list string
	switch len(prompts) {
	case 1:
		list = prompts[0]
	case 2:
		list = prompts[0] + " and " + prompts[1]
	default:
		list = strings.Join(prompts[:len(prompts)-1], ", ") + " and " + prompts[len(prompts)-1]
	}
	return "Of course. To finish that I still need " + list + ". Could you give me that, please?"
}

func parseFinalAnswer(out string) (string, bool) {
	idx := strings.Index(out, "Final Answer:")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(out[idx+len("Final Answer:"):]), true
}

func parseAction(out string) (name, rawArgs string, ok bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if rest, found := strings.CutPrefix(line, "Action:"); found {
			name = strings.TrimSpace(rest)
			continue
		}
		if rest, found := strings.CutPrefix(line, "Action Input:"); found {
			rawArgs = strings.TrimSpace(rest)
		}
	}
	return name, rawArgs, name != ""
}
