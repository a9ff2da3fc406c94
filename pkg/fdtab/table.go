// Package fdtab tracks which paths the engine believes are reachable through
// which descriptor values for a single traced process.
package fdtab

import "fmt"

// syntheticStart keeps engine-allocated descriptors above the range a real
// kernel plausibly assigns during a session.
const syntheticStart = 1000

// Table is the per-session descriptor correlation store. Entries are never
// removed; the table lives exactly as long as the traced process. Syscalls
// within one session are processed strictly sequentially, so the table needs
// no locking.
type Table struct {
	paths map[int]string
	next  int
}

// Synthetic reports whether fd is in the engine-allocated range.
func Synthetic(fd int) bool { return fd >= syntheticStart }

// New returns an empty table with the synthetic allocator primed.
func New() *Table {
	return &Table{
		paths: make(map[int]string),
		next:  syntheticStart,
	}
}

// Allocate records path under a fresh synthetic descriptor and returns it.
// The allocator only increases, so a value is never handed out twice within
// a session.
func (t *Table) Allocate(path string) int {
	fd := t.next
	t.next++
	t.paths[fd] = path
	return fd
}

// Resolve returns the tracked path for fd.
func (t *Table) Resolve(fd int) (string, bool) {
	path, ok := t.paths[fd]
	return path, ok
}

// DisplayPath resolves fd for display, falling back to /dev/fd/<n> for
// untracked descriptors.
func (t *Table) DisplayPath(fd int) string {
	if path, ok := t.paths[fd]; ok {
		return path
	}
	return fmt.Sprintf("/dev/fd/%d", fd)
}

// Dup copies a tracked entry to a fresh synthetic descriptor. It reports
// false when the source is untracked, in which case nothing changes.
func (t *Table) Dup(oldFD int) (int, bool) {
	path, ok := t.paths[oldFD]
	if !ok {
		return 0, false
	}
	return t.Allocate(path), true
}

// DupTo copies a tracked entry to the caller-chosen descriptor value
// (dup2/dup3 with an explicit target).
func (t *Table) DupTo(oldFD, newFD int) (int, bool) {
	path, ok := t.paths[oldFD]
	if !ok {
		return 0, false
	}
	t.paths[newFD] = path
	return newFD, true
}

// Bind aliases a synthetic descriptor to the real descriptor the kernel
// assigned when the call was approved. The synthetic entry stays valid so
// earlier references keep resolving.
func (t *Table) Bind(synthetic, real int) bool {
	path, ok := t.paths[synthetic]
	if !ok {
		return false
	}
	t.paths[real] = path
	return true
}

// Len reports how many descriptors are tracked.
func (t *Table) Len() int { return len(t.paths) }
