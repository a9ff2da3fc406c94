// Package mediate ties the syscall registry, descriptor correlation, path
// resolution and identity lookup together into a per-process mediation
// session.
package mediate

import (
	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/fdtab"
	"github.com/jingkaihe/whatif/pkg/identity"
	"github.com/jingkaihe/whatif/pkg/paths"
	"github.com/jingkaihe/whatif/pkg/syscalls"
)

// Device paths that are never mediated and never tracked.
var defaultAllowedDevices = []string{"/dev/null", "/dev/zero", "/dev/tty"}

// Options configures a session. The zero value is usable: working directory
// and existence checks default to the tracer host's view, identity lookups
// to the OS databases.
type Options struct {
	WorkingDir string
	Stat       paths.StatFunc
	Identity   identity.Resolver

	// ExtraAllowedDevices extends the fixed device allow-list.
	ExtraAllowedDevices []string
}

// Session is the mediation state for exactly one traced process. It must
// not be shared across processes; syscalls within a session are interpreted
// strictly sequentially.
type Session struct {
	fds     *fdtab.Table
	paths   *paths.Resolver
	ids     identity.Resolver
	allowed map[string]struct{}
}

// NewSession creates an empty session.
func NewSession(opts Options) *Session {
	ids := opts.Identity
	if ids == nil {
		ids = identity.OSResolver{}
	}

	allowed := make(map[string]struct{}, len(defaultAllowedDevices)+len(opts.ExtraAllowedDevices))
	for _, p := range defaultAllowedDevices {
		allowed[p] = struct{}{}
	}
	for _, p := range opts.ExtraAllowedDevices {
		allowed[p] = struct{}{}
	}

	return &Session{
		fds:     fdtab.New(),
		paths:   paths.NewResolver(opts.WorkingDir, opts.Stat),
		ids:     ids,
		allowed: allowed,
	}
}

// Decode resolves a syscall name against the registry and decodes the raw
// argument values. ok is false on a registry miss, which means "allow
// silently"; a non-nil error means the arguments did not fit the declared
// signature and mediation of this call must be aborted.
func (s *Session) Decode(name string, raw []syscalls.Raw) (spec syscalls.Spec, args syscalls.Args, ok bool, err error) {
	spec, ok = syscalls.Lookup(name)
	if !ok {
		return syscalls.Spec{}, nil, false, nil
	}
	args, err = syscalls.Decode(spec, raw)
	if err != nil {
		return syscalls.Spec{}, nil, false, err
	}
	return spec, args, true, nil
}

// Describe renders the call's filesystem effect. A nil operation means no
// confirmation is needed and the call is allowed silently.
func (s *Session) Describe(spec syscalls.Spec, args syscalls.Args) (*api.Operation, error) {
	return spec.Format(s, args)
}

// Substitute computes the return value to report in place of executing the
// call, applying any descriptor-tracking side effect. Tracking happens here
// regardless of the eventual operator decision, so later descriptor
// references stay attributable; callers therefore invoke Substitute exactly
// once per intercepted call. ok is false when no substitution applies.
func (s *Session) Substitute(spec syscalls.Spec, args syscalls.Args) (value int64, ok bool) {
	return spec.SubstituteValue(s, args)
}

// BindDescriptor re-keys a synthetic descriptor to the real one the kernel
// assigned after an approved call, keeping the synthetic alias valid.
func (s *Session) BindDescriptor(synthetic, real int) bool {
	return s.fds.Bind(synthetic, real)
}

// TrackedDescriptors reports the size of the correlation table.
func (s *Session) TrackedDescriptors() int { return s.fds.Len() }
