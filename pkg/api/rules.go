package api

// PolicyConfig configures automatic decisions for mediated operations.
type PolicyConfig struct {
	Rules []DecisionRule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// DecisionRule describes a single auto-decision rule.
type DecisionRule struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Labels filters effect labels (for example: delete, write, rename).
	// Empty matches all effects.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Path is a glob pattern matched against the operation's absolute path
	// (for example: /tmp/*). Empty matches all paths.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Action is one of: allow, deny, ask. Empty defaults to ask.
	Action string `json:"action" yaml:"action"`
}
