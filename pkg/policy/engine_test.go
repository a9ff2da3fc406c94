package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/whatif/pkg/api"
)

func TestEngine_NoRulesAsks(t *testing.T) {
	engine, err := NewEngine(&api.PolicyConfig{})
	require.NoError(t, err)

	op := &api.Operation{Label: api.LabelDelete, Path: "/tmp/x"}
	assert.Equal(t, ActionAsk, engine.Decide(op))
}

func TestEngine_NilOperationAllows(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	assert.Equal(t, ActionAllow, engine.Decide(nil))
}

func TestEngine_FirstMatchWins(t *testing.T) {
	engine, err := NewEngine(&api.PolicyConfig{Rules: []api.DecisionRule{
		{Name: "scratch is fair game", Path: "/tmp/scratch/*", Action: "allow"},
		{Name: "nothing else in /tmp", Path: "/tmp/*", Action: "deny"},
	}})
	require.NoError(t, err)

	tests := []struct {
		path string
		want Action
	}{
		{"/tmp/scratch/build.log", ActionAllow},
		{"/tmp/scratch", ActionAllow},
		{"/tmp/other", ActionDeny},
		{"/home/dev/x", ActionAsk},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			op := &api.Operation{Label: api.LabelWrite, Path: tt.path}
			assert.Equal(t, tt.want, engine.Decide(op))
		})
	}
}

func TestEngine_LabelFilter(t *testing.T) {
	engine, err := NewEngine(&api.PolicyConfig{Rules: []api.DecisionRule{
		{Labels: []string{api.LabelWrite, api.LabelCreateFile}, Path: "/var/log/*", Action: "allow"},
	}})
	require.NoError(t, err)

	write := &api.Operation{Label: api.LabelWrite, Path: "/var/log/app.log"}
	assert.Equal(t, ActionAllow, engine.Decide(write))

	del := &api.Operation{Label: api.LabelDelete, Path: "/var/log/app.log"}
	assert.Equal(t, ActionAsk, engine.Decide(del), "label filter keeps deletes interactive")
}

func TestEngine_GlobPatterns(t *testing.T) {
	engine, err := NewEngine(&api.PolicyConfig{Rules: []api.DecisionRule{
		{Path: "*.lock", Action: "allow"},
		{Path: "*", Action: "deny"},
	}})
	require.NoError(t, err)

	lock := &api.Operation{Label: api.LabelCreateFile, Path: "/repo/.git/index.lock"}
	assert.Equal(t, ActionAllow, engine.Decide(lock))

	other := &api.Operation{Label: api.LabelCreateFile, Path: "/repo/main.go"}
	assert.Equal(t, ActionDeny, engine.Decide(other))
}

func TestEngine_EmptyActionDefaultsToAsk(t *testing.T) {
	engine, err := NewEngine(&api.PolicyConfig{Rules: []api.DecisionRule{
		{Path: "/etc/*"},
	}})
	require.NoError(t, err)

	op := &api.Operation{Label: api.LabelChmod, Path: "/etc/hosts"}
	assert.Equal(t, ActionAsk, engine.Decide(op))
}

func TestEngine_RejectsUnknownAction(t *testing.T) {
	_, err := NewEngine(&api.PolicyConfig{Rules: []api.DecisionRule{
		{Name: "typo", Action: "alow"},
	}})
	assert.ErrorIs(t, err, api.ErrInvalidRule)
}
