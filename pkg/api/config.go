package api

import "fmt"

// RunConfig configures a single mediated run.
type RunConfig struct {
	// Command is the traced command and its arguments.
	Command []string `json:"command"`

	// Policy holds auto-decision rules consulted before prompting.
	Policy *PolicyConfig `json:"policy,omitempty"`

	// RecordPath, when set, writes a journal of every mediated operation
	// and its decision.
	RecordPath string `json:"record_path,omitempty"`

	// NoHistory disables recording the run in the history database.
	NoHistory bool `json:"no_history,omitempty"`

	// DenyAll skips prompting and denies every mediated operation.
	DenyAll bool `json:"deny_all,omitempty"`
}

// DefaultRunConfig returns the baseline configuration for a run.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Policy: &PolicyConfig{},
	}
}

// Validate checks the configuration before a run starts.
func (c *RunConfig) Validate() error {
	if len(c.Command) == 0 {
		return ErrCommandRequired
	}
	if c.Command[0] == "" {
		return fmt.Errorf("%w: empty command name", ErrInvalidConfig)
	}
	return nil
}

// Merge overlays non-zero fields of other onto c and returns c.
func (c *RunConfig) Merge(other *RunConfig) *RunConfig {
	if other == nil {
		return c
	}
	if len(other.Command) > 0 {
		c.Command = other.Command
	}
	if other.Policy != nil {
		if c.Policy == nil {
			c.Policy = &PolicyConfig{}
		}
		c.Policy.Rules = append(c.Policy.Rules, other.Policy.Rules...)
	}
	if other.RecordPath != "" {
		c.RecordPath = other.RecordPath
	}
	if other.NoHistory {
		c.NoHistory = true
	}
	if other.DenyAll {
		c.DenyAll = true
	}
	return c
}
