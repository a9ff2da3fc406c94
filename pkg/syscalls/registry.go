// Package syscalls holds the static table of interceptable syscalls: their
// argument signatures, effect formatters and return-value substituters.
//
// The table is pure configuration. Formatters and substituters reach session
// state (descriptor correlation, path resolution, identity lookup) only
// through the explicit Env handle, so independent sessions never share state.
package syscalls

import "github.com/jingkaihe/whatif/pkg/api"

// Env is the session-scoped state a formatter or substituter may consult.
// It is implemented by mediate.Session.
type Env interface {
	// Abs normalizes a raw path argument to absolute form.
	Abs(path string) string
	// Exists reports whether the absolute path currently exists.
	Exists(path string) bool
	// DeviceAllowed reports whether the path is in the fixed device
	// allow-list and therefore never mediated.
	DeviceAllowed(path string) bool

	// DescriptorPath resolves a descriptor to its tracked path, falling
	// back to /dev/fd/<n> when untracked.
	DescriptorPath(fd int) string
	// DescriptorTracked reports whether the descriptor is known.
	DescriptorTracked(fd int) bool
	// TrackDescriptor allocates a synthetic descriptor for path.
	TrackDescriptor(path string) int
	// DupDescriptor copies a tracked entry to a fresh synthetic descriptor.
	// Returns false when the source is untracked.
	DupDescriptor(oldFD int) (int, bool)
	// DupDescriptorTo copies a tracked entry to the caller-chosen target.
	DupDescriptorTo(oldFD, newFD int) (int, bool)

	// ClassifyMove labels a rename-family call: same parent directory is a
	// "rename" showing only the destination's final component, anything
	// else a "move" showing the full destination path.
	ClassifyMove(oldAbs, newAbs string) (label, target string)

	// LookupOwner and LookupGroup resolve numeric ids for display.
	LookupOwner(uid int) (string, error)
	LookupGroup(gid int) (string, error)
}

// FormatFunc renders the effect of a call, or nil for "allow silently".
type FormatFunc func(env Env, args Args) (*api.Operation, error)

// SubstituteFunc computes the return value reported to the traced process in
// place of executing the call, applying any descriptor-tracking side effect.
// ok is false when no substitution applies to this particular call.
type SubstituteFunc func(env Env, args Args) (value int64, ok bool)

// Spec is the registry entry for one interceptable syscall.
type Spec struct {
	Name string
	Args []ArgSpec

	Format FormatFunc

	// Substitute is nil for syscalls without an explicit override; the
	// fallback is the constant success value 0.
	Substitute SubstituteFunc

	// ReturnsDescriptor marks syscalls whose kernel return value is a
	// freshly usable file descriptor. Only those may have a substituted
	// descriptor re-keyed to the real one after an allowed call.
	ReturnsDescriptor bool
}

// SubstituteValue applies the spec's substituter, or the constant-0 fallback
// when none is declared.
func (s Spec) SubstituteValue(env Env, args Args) (int64, bool) {
	if s.Substitute == nil {
		return 0, true
	}
	return s.Substitute(env, args)
}

var registry = buildRegistry()

// Lookup returns the spec for a syscall name. A miss means the syscall is
// not mediated and must be allowed silently; it is not an error.
func Lookup(name string) (Spec, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns every registered syscall name, in no particular order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func buildRegistry() map[string]Spec {
	specs := []Spec{
		// Delete
		{
			Name:   "unlink",
			Args:   []ArgSpec{{ArgPath, "pathname"}},
			Format: func(env Env, args Args) (*api.Operation, error) { return formatDelete(env, "unlink", args.Str(0)) },
		},
		{
			Name:   "unlinkat",
			Args:   []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgFlags, "flags"}},
			Format: func(env Env, args Args) (*api.Operation, error) { return formatDelete(env, "unlinkat", args.Str(1)) },
		},
		{
			Name:   "rmdir",
			Args:   []ArgSpec{{ArgPath, "pathname"}},
			Format: func(env Env, args Args) (*api.Operation, error) { return formatDelete(env, "rmdir", args.Str(0)) },
		},

		// Move
		{
			Name: "rename",
			Args: []ArgSpec{{ArgPath, "oldpath"}, {ArgPath, "newpath"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMove(env, "rename", args.Str(0), args.Str(1))
			},
		},
		{
			Name: "renameat",
			Args: []ArgSpec{
				{ArgDirFD, "olddirfd"}, {ArgPath, "oldpath"},
				{ArgDirFD, "newdirfd"}, {ArgPath, "newpath"},
			},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMove(env, "renameat", args.Str(1), args.Str(3))
			},
		},
		{
			Name: "renameat2",
			Args: []ArgSpec{
				{ArgDirFD, "olddirfd"}, {ArgPath, "oldpath"},
				{ArgDirFD, "newdirfd"}, {ArgPath, "newpath"}, {ArgFlags, "flags"},
			},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMove(env, "renameat2", args.Str(1), args.Str(3))
			},
		},

		// Change permissions
		{
			Name: "chmod",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChmod(env, "chmod", env.Abs(args.Str(0)), args.Mode(1))
			},
		},
		{
			Name: "fchmod",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChmod(env, "fchmod", env.DescriptorPath(args.FD(0)), args.Mode(1))
			},
		},
		{
			Name: "fchmodat",
			Args: []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgMode, "mode"}, {ArgFlags, "flags"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChmod(env, "fchmodat", env.Abs(args.Str(1)), args.Mode(2))
			},
		},

		// Change owner
		{
			Name: "chown",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgUID, "owner"}, {ArgGID, "group"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChown(env, "chown", env.Abs(args.Str(0)), int(args.Int(1)), int(args.Int(2)))
			},
		},
		{
			Name: "fchown",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgUID, "owner"}, {ArgGID, "group"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChown(env, "fchown", env.DescriptorPath(args.FD(0)), int(args.Int(1)), int(args.Int(2)))
			},
		},
		{
			Name: "lchown",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgUID, "owner"}, {ArgGID, "group"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChown(env, "lchown", env.Abs(args.Str(0)), int(args.Int(1)), int(args.Int(2)))
			},
		},
		{
			Name: "fchownat",
			Args: []ArgSpec{
				{ArgDirFD, "dirfd"}, {ArgPath, "pathname"},
				{ArgUID, "owner"}, {ArgGID, "group"}, {ArgFlags, "flags"},
			},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatChown(env, "fchownat", env.Abs(args.Str(1)), int(args.Int(2)), int(args.Int(3)))
			},
		},

		// Create directory
		{
			Name:   "mkdir",
			Args:   []ArgSpec{{ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) { return formatMkdir(env, "mkdir", args.Str(0)) },
		},
		{
			Name:   "mkdirat",
			Args:   []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) { return formatMkdir(env, "mkdirat", args.Str(1)) },
		},

		// Create link. The kernel presents the existing target first; the
		// description is normalized to (new link path, existing target).
		{
			Name: "link",
			Args: []ArgSpec{{ArgPath, "oldpath"}, {ArgPath, "newpath"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatLink(env, "link", args.Str(1), args.Str(0), false)
			},
		},
		{
			Name: "linkat",
			Args: []ArgSpec{
				{ArgDirFD, "olddirfd"}, {ArgPath, "oldpath"},
				{ArgDirFD, "newdirfd"}, {ArgPath, "newpath"}, {ArgFlags, "flags"},
			},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatLink(env, "linkat", args.Str(3), args.Str(1), false)
			},
		},
		{
			Name: "symlink",
			Args: []ArgSpec{{ArgPath, "target"}, {ArgPath, "linkpath"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatLink(env, "symlink", args.Str(1), args.Str(0), true)
			},
		},
		{
			Name: "symlinkat",
			Args: []ArgSpec{{ArgPath, "target"}, {ArgDirFD, "newdirfd"}, {ArgPath, "linkpath"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatLink(env, "symlinkat", args.Str(2), args.Str(0), true)
			},
		},

		// Open/create file
		{
			Name: "open",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgFlags, "flags"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatOpen(env, "open", args.Str(0), args.Flags(1))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteOpen(env, args.Str(0), args.Flags(1))
			},
			ReturnsDescriptor: true,
		},
		{
			// creat(2) is open with O_CREAT|O_WRONLY|O_TRUNC.
			Name: "creat",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatOpen(env, "creat", args.Str(0), creatFlags)
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteOpen(env, args.Str(0), creatFlags)
			},
			ReturnsDescriptor: true,
		},
		{
			Name: "openat",
			Args: []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgFlags, "flags"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatOpen(env, "openat", args.Str(1), args.Flags(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteOpen(env, args.Str(1), args.Flags(2))
			},
			ReturnsDescriptor: true,
		},

		// Create special file
		{
			Name: "mknod",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgMode, "mode"}, {ArgInt, "dev"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMknod(env, "mknod", args.Str(0), args.Mode(1))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteMknod(env, args.Str(0), args.Mode(1))
			},
		},
		{
			Name: "mknodat",
			Args: []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgMode, "mode"}, {ArgInt, "dev"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMknod(env, "mknodat", args.Str(1), args.Mode(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteMknod(env, args.Str(1), args.Mode(2))
			},
		},
		{
			// mkfifo(3) is mknod with a fixed pipe type.
			Name: "mkfifo",
			Args: []ArgSpec{{ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMknod(env, "mkfifo", args.Str(0), fifoType)
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteMknod(env, args.Str(0), fifoType)
			},
		},
		{
			Name: "mkfifoat",
			Args: []ArgSpec{{ArgDirFD, "dirfd"}, {ArgPath, "pathname"}, {ArgMode, "mode"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatMknod(env, "mkfifoat", args.Str(1), fifoType)
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteMknod(env, args.Str(1), fifoType)
			},
		},

		// Write to file
		{
			Name: "write",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgPointer, "buf"}, {ArgSize, "count"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatWrite(env, "write", args.FD(0), args.Int(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteWrite(env, args.FD(0), args.Int(2))
			},
		},
		{
			Name: "pwrite",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgPointer, "buf"}, {ArgSize, "count"}, {ArgOffset, "offset"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatWrite(env, "pwrite", args.FD(0), args.Int(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteWrite(env, args.FD(0), args.Int(2))
			},
		},
		{
			// The vector count stands in for the true byte total; summing
			// iov_len would need another round of tracee memory reads.
			Name: "writev",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgPointer, "iov"}, {ArgInt, "iovcnt"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatWrite(env, "writev", args.FD(0), args.Int(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteWrite(env, args.FD(0), args.Int(2))
			},
		},
		{
			Name: "pwritev",
			Args: []ArgSpec{{ArgFD, "fd"}, {ArgPointer, "iov"}, {ArgInt, "iovcnt"}, {ArgOffset, "offset"}},
			Format: func(env Env, args Args) (*api.Operation, error) {
				return formatWrite(env, "pwritev", args.FD(0), args.Int(2))
			},
			Substitute: func(env Env, args Args) (int64, bool) {
				return substituteWrite(env, args.FD(0), args.Int(2))
			},
		},

		// Duplicate file descriptor. Never described; registered purely to
		// keep the correlation table consistent.
		{
			Name:   "dup",
			Args:   []ArgSpec{{ArgFD, "oldfd"}},
			Format: formatNothing,
			Substitute: func(env Env, args Args) (int64, bool) {
				fd, ok := env.DupDescriptor(args.FD(0))
				return int64(fd), ok
			},
			ReturnsDescriptor: true,
		},
		{
			Name:   "dup2",
			Args:   []ArgSpec{{ArgFD, "oldfd"}, {ArgFD, "newfd"}},
			Format: formatNothing,
			Substitute: func(env Env, args Args) (int64, bool) {
				fd, ok := env.DupDescriptorTo(args.FD(0), args.FD(1))
				return int64(fd), ok
			},
			ReturnsDescriptor: true,
		},
		{
			Name:   "dup3",
			Args:   []ArgSpec{{ArgFD, "oldfd"}, {ArgFD, "newfd"}, {ArgFlags, "flags"}},
			Format: formatNothing,
			Substitute: func(env Env, args Args) (int64, bool) {
				fd, ok := env.DupDescriptorTo(args.FD(0), args.FD(1))
				return int64(fd), ok
			},
			ReturnsDescriptor: true,
		},
	}

	table := make(map[string]Spec, len(specs))
	for _, s := range specs {
		table[s.Name] = s
	}
	return table
}

func formatNothing(Env, Args) (*api.Operation, error) { return nil, nil }
