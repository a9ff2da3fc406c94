package fdtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AllocateIsMonotonic(t *testing.T) {
	tab := New()

	a := tab.Allocate("/tmp/a")
	b := tab.Allocate("/tmp/b")

	assert.GreaterOrEqual(t, a, 1000, "synthetic descriptors start above the kernel range")
	assert.Equal(t, a+1, b)

	path, ok := tab.Resolve(a)
	require.True(t, ok)
	assert.Equal(t, "/tmp/a", path)
}

func TestTable_DisplayPathFallback(t *testing.T) {
	tab := New()

	assert.Equal(t, "/dev/fd/99", tab.DisplayPath(99))

	fd := tab.Allocate("/var/log/app.log")
	assert.Equal(t, "/var/log/app.log", tab.DisplayPath(fd))
}

func TestTable_Dup(t *testing.T) {
	tab := New()
	src := tab.Allocate("/tmp/x")

	copied, ok := tab.Dup(src)
	require.True(t, ok)
	assert.NotEqual(t, src, copied)
	assert.Equal(t, "/tmp/x", tab.DisplayPath(copied))

	_, ok = tab.Dup(42)
	assert.False(t, ok, "untracked source copies nothing")
	assert.Equal(t, 2, tab.Len())
}

func TestTable_DupTo(t *testing.T) {
	tab := New()
	src := tab.Allocate("/tmp/x")

	got, ok := tab.DupTo(src, 7)
	require.True(t, ok)
	assert.Equal(t, 7, got)

	path, ok := tab.Resolve(7)
	require.True(t, ok)
	assert.Equal(t, "/tmp/x", path)

	srcPath, _ := tab.Resolve(src)
	assert.Equal(t, srcPath, path, "entry is copied, not moved")
}

func TestTable_Bind(t *testing.T) {
	tab := New()
	synthetic := tab.Allocate("/tmp/x")

	require.True(t, tab.Bind(synthetic, 5))

	assert.Equal(t, "/tmp/x", tab.DisplayPath(5))
	assert.Equal(t, "/tmp/x", tab.DisplayPath(synthetic), "synthetic alias survives binding")

	assert.False(t, tab.Bind(4242, 6))
}
