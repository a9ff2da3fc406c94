// Package policy decides mediated operations automatically from declarative
// rules, so an operator only gets prompted for what no rule covers.
package policy

import (
	"strings"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
)

// Action is a rule's verdict for a matching operation.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

type rule struct {
	name    string
	labels  map[string]struct{}
	pattern string
	action  Action
}

// Engine evaluates decision rules in order; the first match wins and
// anything unmatched is ActionAsk.
type Engine struct {
	rules []rule
}

// NewEngine compiles the configured rules. Invalid actions are rejected up
// front rather than surprising the operator mid-trace.
func NewEngine(cfg *api.PolicyConfig) (*Engine, error) {
	if cfg == nil {
		return &Engine{}, nil
	}

	e := &Engine{rules: make([]rule, 0, len(cfg.Rules))}
	for _, rc := range cfg.Rules {
		action, err := parseAction(rc.Action)
		if err != nil {
			return nil, errx.With(api.ErrInvalidRule, " %q: %v", rc.Name, err)
		}

		r := rule{name: rc.Name, pattern: rc.Path, action: action}
		if len(rc.Labels) > 0 {
			r.labels = make(map[string]struct{}, len(rc.Labels))
			for _, l := range rc.Labels {
				r.labels[strings.ToLower(l)] = struct{}{}
			}
		}
		e.rules = append(e.rules, r)
	}
	return e, nil
}

// Decide returns the action of the first rule matching the operation.
func (e *Engine) Decide(op *api.Operation) Action {
	if op == nil {
		return ActionAllow
	}
	for _, r := range e.rules {
		if r.matches(op) {
			return r.action
		}
	}
	return ActionAsk
}

func (r rule) matches(op *api.Operation) bool {
	if r.labels != nil {
		if _, ok := r.labels[op.Label]; !ok {
			return false
		}
	}
	if r.pattern == "" {
		return true
	}
	return matchGlob(r.pattern, op.Path)
}

func parseAction(s string) (Action, error) {
	switch Action(strings.ToLower(s)) {
	case ActionAllow:
		return ActionAllow, nil
	case ActionDeny:
		return ActionDeny, nil
	case ActionAsk, "":
		return ActionAsk, nil
	default:
		return "", errx.With(api.ErrInvalidRule, ": unknown action %q", s)
	}
}

func matchGlob(pattern, str string) bool {
	if pattern == "*" {
		return true
	}

	// Simple prefix wildcard: /tmp/*
	if strings.HasSuffix(pattern, "/*") && !strings.Contains(pattern[:len(pattern)-2], "*") {
		prefix := pattern[:len(pattern)-2]
		return str == prefix || strings.HasPrefix(str, prefix+"/")
	}

	// General glob matching with * as wildcard
	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, str)
	}

	return pattern == str
}

// matchWildcard handles patterns with * wildcards anywhere
func matchWildcard(pattern, str string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == str
	}

	// Check prefix (before first *)
	if parts[0] != "" && !strings.HasPrefix(str, parts[0]) {
		return false
	}
	str = str[len(parts[0]):]

	// Check suffix (after last *)
	lastPart := parts[len(parts)-1]
	if lastPart != "" && !strings.HasSuffix(str, lastPart) {
		return false
	}
	if lastPart != "" {
		str = str[:len(str)-len(lastPart)]
	}

	// Check middle parts in order
	for i := 1; i < len(parts)-1; i++ {
		if parts[i] == "" {
			continue
		}
		idx := strings.Index(str, parts[i])
		if idx < 0 {
			return false
		}
		str = str[idx+len(parts[i]):]
	}

	return true
}
