package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/policy"
	"github.com/jingkaihe/whatif/pkg/syscalls"
)

func newTestMediator(t *testing.T, rules ...api.DecisionRule) *traceMediator {
	t.Helper()
	engine, err := policy.NewEngine(&api.PolicyConfig{Rules: rules})
	require.NoError(t, err)
	return newTraceMediator(engine, t.TempDir())
}

func TestUnregisteredSyscallPassesThrough(t *testing.T) {
	m := newTestMediator(t)

	verdict, err := m.Enter(1, "getpid", nil)
	require.NoError(t, err)
	assert.False(t, verdict.Suppress)
	assert.Empty(t, m.events)
}

func TestUndecidedOperationIsBlockedAndCollected(t *testing.T) {
	m := newTestMediator(t)

	verdict, err := m.Enter(1, "unlink", []syscalls.Raw{syscalls.Str("notes.txt")})
	require.NoError(t, err)
	assert.True(t, verdict.Suppress)
	assert.Equal(t, int64(0), verdict.Return)

	require.Len(t, m.prompted, 1)
	assert.Equal(t, api.LabelDelete, m.prompted[0].Label)
	require.Len(t, m.events, 1)
	assert.Equal(t, api.DecisionDeny, m.events[0].Decision)
	assert.Equal(t, 1, m.events[0].Seq)
}

func TestAllowedCreateBindsDescriptor(t *testing.T) {
	m := newTestMediator(t, api.DecisionRule{Labels: []string{api.LabelCreateFile}, Action: "allow"})

	verdict, err := m.Enter(1, "creat", []syscalls.Raw{
		syscalls.Str("out.log"),
		syscalls.Word(0644),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Suppress)
	assert.Equal(t, 1000, verdict.BindSynthetic)

	require.Len(t, m.events, 1)
	assert.Equal(t, api.DecisionAllow, m.events[0].Decision)
	assert.Empty(t, m.prompted)

	// The kernel hands back fd 5; later writes resolve through it.
	m.Bind(1, 1000, 5)
	verdict, err = m.Enter(1, "write", []syscalls.Raw{
		syscalls.Word(5),
		syscalls.Word(0),
		syscalls.Word(12),
	})
	require.NoError(t, err)
	assert.True(t, verdict.Suppress)
	assert.Equal(t, int64(12), verdict.Return)
	require.Len(t, m.events, 2)
	assert.Contains(t, m.events[1].Operation.Path, "out.log")
}

func TestAllowedWriteDoesNotBindByteCount(t *testing.T) {
	m := newTestMediator(t,
		api.DecisionRule{Labels: []string{api.LabelCreateFile}, Action: "allow"},
		api.DecisionRule{Labels: []string{api.LabelWrite}, Action: "allow"},
	)

	verdict, err := m.Enter(1, "creat", []syscalls.Raw{
		syscalls.Str("out.log"),
		syscalls.Word(0644),
	})
	require.NoError(t, err)
	require.Equal(t, 1000, verdict.BindSynthetic)
	m.Bind(1, 1000, 5)

	// An allowed write runs for real; its substitute value is a byte
	// count, not a descriptor, and must never be re-keyed.
	verdict, err = m.Enter(1, "write", []syscalls.Raw{
		syscalls.Word(5),
		syscalls.Word(0),
		syscalls.Word(2048),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Suppress)
	assert.Equal(t, 0, verdict.BindSynthetic)
}

func TestAllowedFifoDoesNotBindDescriptor(t *testing.T) {
	m := newTestMediator(t, api.DecisionRule{Labels: []string{api.LabelMkfifo}, Action: "allow"})

	// mkfifo returns 0 on success, not a descriptor; binding its tracked
	// substitute would alias stdin.
	verdict, err := m.Enter(1, "mkfifo", []syscalls.Raw{
		syscalls.Str("pipe"),
		syscalls.Word(0644),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Suppress)
	assert.Equal(t, 0, verdict.BindSynthetic)

	verdict, err = m.Enter(1, "write", []syscalls.Raw{
		syscalls.Word(0),
		syscalls.Word(0),
		syscalls.Word(4),
	})
	require.NoError(t, err)
	assert.False(t, verdict.Suppress)
}

func TestRuleDeniedOperationIsNotPrompted(t *testing.T) {
	m := newTestMediator(t, api.DecisionRule{Labels: []string{api.LabelDelete}, Action: "deny"})

	verdict, err := m.Enter(1, "rmdir", []syscalls.Raw{syscalls.Str("build")})
	require.NoError(t, err)
	assert.True(t, verdict.Suppress)

	assert.Empty(t, m.prompted)
	require.Len(t, m.ruleDenied, 1)
	require.Len(t, m.events, 1)
	assert.Equal(t, api.DecisionDeny, m.events[0].Decision)
}

func TestDeniedWriteCapableOpenIsForgedSilently(t *testing.T) {
	m := newTestMediator(t)

	// Opening an existing file for append mutates nothing yet, so there is
	// no operation to show, but the descriptor must still be forged.
	verdict, err := m.Enter(1, "open", []syscalls.Raw{
		syscalls.Str("/etc/hostname"),
		syscalls.Word(0x400 | 0x1), // O_APPEND|O_WRONLY
	})
	require.NoError(t, err)
	assert.True(t, verdict.Suppress)
	assert.Equal(t, int64(1000), verdict.Return)
	assert.Empty(t, m.events)
}

func TestSessionsAreParticularToEachPid(t *testing.T) {
	m := newTestMediator(t)

	first, err := m.Enter(1, "creat", []syscalls.Raw{syscalls.Str("a"), syscalls.Word(0644)})
	require.NoError(t, err)
	second, err := m.Enter(2, "creat", []syscalls.Raw{syscalls.Str("b"), syscalls.Word(0644)})
	require.NoError(t, err)

	// Each pid gets its own descriptor space.
	assert.Equal(t, int64(1000), first.Return)
	assert.Equal(t, int64(1000), second.Return)
}
