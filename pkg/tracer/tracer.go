// Package tracer attaches to a command with ptrace, pauses it at every
// syscall entry, and lets a Mediator decide whether the call runs for real
// or is suppressed with a forged return value.
package tracer

import "github.com/jingkaihe/whatif/pkg/syscalls"

// Verdict is the mediator's instruction for one intercepted syscall.
type Verdict struct {
	// Suppress prevents the real syscall from executing; Return is written
	// into the traced process's return register in its place.
	Suppress bool
	Return   int64

	// BindSynthetic, when non-zero, names a synthetic descriptor that
	// should be re-bound to the kernel's real return value if the call is
	// allowed to execute and succeeds.
	BindSynthetic int
}

// Mediator is invoked once per intercepted syscall, strictly in the order
// the traced process issues them. Implementations hold one mediation
// session per traced pid.
type Mediator interface {
	// Enter receives the registry name and the raw argument values (string
	// arguments already read out of the tracee's memory). An error means
	// the arguments did not decode; the tracer fails safe by suppressing
	// the call.
	Enter(pid int, name string, raw []syscalls.Raw) (Verdict, error)

	// Bind reports the real descriptor the kernel assigned for an approved
	// call whose verdict carried BindSynthetic.
	Bind(pid int, synthetic, real int)
}

// Options configures a trace run.
type Options struct {
	// OnError observes non-fatal per-call failures (argument decoding,
	// memory reads). The affected call is suppressed; tracing continues.
	OnError func(pid int, name string, err error)
}
