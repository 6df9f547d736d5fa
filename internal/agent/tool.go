// Package agent runs the bounded tool-calling loop behind each task
// handler. The reasoning engine proposes actions, the loop validates and
// executes them against the restaurant directory, and a per-turn budget
// keeps every tool to a single invocation.
package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Args is the parsed form of a tool input line.
type Args map[string]string

// ParamSpec declares one tool parameter. Identifying params name the
// caller (name, phone); a mutating tool never runs while one of those is
// missing or filled with a placeholder.
type ParamSpec struct {
	Key         string
	Prompt      string // how to ask the caller for it, e.g. "your name"
	Required    bool
	Identifying bool
}

// Tool is one action the loop may take. Mutating tools change the
// directory and are held to stricter input validation.
type Tool struct {
	Name        string
	Description string
	Params      []ParamSpec
	Mutating    bool
	Run         func(ctx context.Context, args Args) (string, error)
}

// ParseArgs splits "key: value, key: value" into a map. Keys are
// lowercased; a segment without a colon is a parse error.
func ParseArgs(input string) (Args, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Args{}, nil
	}
	args := make(Args)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("segment %q is not a key: value pair", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, fmt.Errorf("segment %q has an empty key", part)
		}
		args[key] = strings.TrimSpace(value)
	}
	return args, nil
}

// IsPlaceholder reports whether a value is an obvious unfilled slot the
// reasoning engine left behind instead of real caller data.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	switch v {
	case "unknown", "n/a", "na", "none", "tbd", "...", "?", "-":
		return true
	}
	if strings.ContainsAny(v, "<>[]{}") {
		return true
	}
	for _, marker := range []string{"your name", "your phone", "customer name", "phone number here", "placeholder", "insert", "xxx"} {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}

// missing returns the params that block this tool: required keys that are
// absent, plus identifying keys holding placeholders.
func (t Tool) missing(args Args) []ParamSpec {
	var out []ParamSpec
	for _, p := range t.Params {
		if !p.Required {
			continue
		}
		v, ok := args[p.Key]
		if !ok || strings.TrimSpace(v) == "" {
			out = append(out, p)
			continue
		}
		if p.Identifying && IsPlaceholder(v) {
			out = append(out, p)
		}
	}
	return out
}

// signature renders the tool for the system prompt's catalog.
func (t Tool) signature() string {
	keys := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		k := p.Key
		if !p.Required {
			k += "?"
		}
		keys = append(keys, k)
	}
	return fmt.Sprintf("%s(%s): %s", t.Name, strings.Join(keys, ", "), t.Description)
}

func intArg(args Args, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return n, nil
}
