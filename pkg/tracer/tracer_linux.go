//go:build linux

package tracer

import (
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/syscalls"
)

// Paths read out of the tracee are capped at the kernel's PATH_MAX.
const stringMax = 4096

const traceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_EXITKILL

// pending carries an enter-stop verdict across to the matching exit-stop.
type pending struct {
	suppress bool
	ret      int64
	bind     int
}

type pidState struct {
	inSyscall bool
	pending   *pending
}

// Tracer runs one command under ptrace and routes every registered
// filesystem syscall through the Mediator.
type Tracer struct {
	mediator Mediator
	opts     Options
}

func New(mediator Mediator, opts Options) *Tracer {
	return &Tracer{mediator: mediator, opts: opts}
}

// Run starts argv as a ptrace'd child wired to the current stdio and blocks
// until every traced process has exited. It returns the root process's exit
// code. Ptrace requests must all come from the thread that attached, so the
// goroutine is pinned for the duration.
func (t *Tracer) Run(argv []string) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return 0, errx.Wrap(ErrTraceeStart, err)
	}
	root := cmd.Process.Pid

	// The child stops with SIGTRAP at its initial execve.
	var ws unix.WaitStatus
	if _, err := unix.Wait4(root, &ws, 0, nil); err != nil {
		return 0, errx.Wrap(ErrTraceLoop, err)
	}
	if err := unix.PtraceSetOptions(root, traceOptions); err != nil {
		return 0, errx.Wrap(ErrTraceLoop, err)
	}

	states := map[int]*pidState{root: {}}
	exitCode := 0

	if err := unix.PtraceSyscall(root, 0); err != nil {
		return 0, errx.Wrap(ErrTraceLoop, err)
	}

	for len(states) > 0 {
		pid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, errx.Wrap(ErrTraceLoop, err)
		}

		if ws.Exited() || ws.Signaled() {
			if pid == root {
				if ws.Signaled() {
					exitCode = 128 + int(ws.Signal())
				} else {
					exitCode = ws.ExitStatus()
				}
			}
			delete(states, pid)
			continue
		}
		if !ws.Stopped() {
			continue
		}

		st, ok := states[pid]
		if !ok {
			// First stop of a child delivered by TRACEFORK and friends.
			st = &pidState{}
			states[pid] = st
		}

		deliver := 0
		switch {
		case ws.StopSignal() == unix.SIGTRAP|0x80:
			if err := t.syscallStop(pid, st); err != nil {
				return 0, err
			}
		case ws.TrapCause() > 0:
			// fork, vfork, clone, or exec event stop. Nothing to do; the
			// new tracee shows up in the wait loop on its own.
		case ws.StopSignal() == unix.SIGSTOP && !st.inSyscall && st.pending == nil:
			// Attach stop of a freshly spawned child.
		default:
			deliver = int(ws.StopSignal())
		}

		if err := unix.PtraceSyscall(pid, deliver); err != nil {
			// The tracee can disappear between the stop and the resume.
			if err == unix.ESRCH {
				delete(states, pid)
				continue
			}
			return 0, errx.Wrap(ErrTraceLoop, err)
		}
	}

	return exitCode, nil
}

// syscallStop handles one syscall-enter or syscall-exit trap.
func (t *Tracer) syscallStop(pid int, st *pidState) error {
	st.inSyscall = !st.inSyscall
	if st.inSyscall {
		return t.syscallEnter(pid, st)
	}
	return t.syscallExit(pid, st)
}

func (t *Tracer) syscallEnter(pid int, st *pidState) error {
	st.pending = nil

	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		return errx.Wrap(ErrTraceLoop, err)
	}

	name, known := syscalls.Name(syscallNumber(&regs))
	if !known {
		return nil
	}
	spec, registered := syscalls.Lookup(name)
	if !registered {
		return nil
	}

	raw, err := t.readArguments(pid, &regs, spec)
	if err != nil {
		// A call whose arguments cannot be read is never allowed through.
		t.reportError(pid, name, err)
		return t.suppress(pid, &regs, st, 0)
	}

	verdict, err := t.mediator.Enter(pid, name, raw)
	if err != nil {
		t.reportError(pid, name, err)
		return t.suppress(pid, &regs, st, 0)
	}
	if verdict.Suppress {
		return t.suppress(pid, &regs, st, verdict.Return)
	}
	if verdict.BindSynthetic != 0 {
		st.pending = &pending{bind: verdict.BindSynthetic}
	}
	return nil
}

func (t *Tracer) syscallExit(pid int, st *pidState) error {
	p := st.pending
	st.pending = nil
	if p == nil {
		return nil
	}

	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		return errx.Wrap(ErrTraceLoop, err)
	}

	if p.suppress {
		setReturnValue(&regs, p.ret)
		if err := unix.PtraceSetRegs(pid, &regs); err != nil && err != unix.ESRCH {
			return errx.Wrap(ErrTraceLoop, err)
		}
		return nil
	}
	if p.bind != 0 {
		if real := returnValue(&regs); real >= 0 {
			t.mediator.Bind(pid, p.bind, int(real))
		}
	}
	return nil
}

// suppress rewrites the syscall number to an invalid one so the kernel
// skips the call, and arranges for ret to be poked into the return
// register at the matching exit-stop.
func (t *Tracer) suppress(pid int, regs *unix.PtraceRegs, st *pidState, ret int64) error {
	if err := skipSyscall(pid, regs); err != nil {
		if err == unix.ESRCH {
			return nil
		}
		return errx.Wrap(ErrTraceLoop, err)
	}
	st.pending = &pending{suppress: true, ret: ret}
	return nil
}

// readArguments pulls the raw argument words for spec out of the tracee's
// registers, dereferencing string arguments from its memory.
func (t *Tracer) readArguments(pid int, regs *unix.PtraceRegs, spec syscalls.Spec) ([]syscalls.Raw, error) {
	raw := make([]syscalls.Raw, len(spec.Args))
	for i, arg := range spec.Args {
		word := argument(regs, i)
		if !arg.Kind.IsString() {
			raw[i] = syscalls.Word(word)
			continue
		}
		s, err := readString(pid, uintptr(word))
		if err != nil {
			return nil, err
		}
		raw[i] = syscalls.Str(s)
	}
	return raw, nil
}

// readString reads a NUL-terminated string from the tracee's address space.
func readString(pid int, addr uintptr) (string, error) {
	if addr == 0 {
		return "", errx.With(ErrReadMemory, ": nil string pointer")
	}
	var out []byte
	buf := make([]byte, 128)
	for len(out) < stringMax {
		n, err := unix.PtracePeekData(pid, addr+uintptr(len(out)), buf)
		if n == 0 {
			if err == nil {
				err = unix.EIO
			}
			return "", errx.Wrap(ErrReadMemory, err)
		}
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf[:n]...)
	}
	return "", errx.With(ErrReadMemory, ": unterminated string at %#x", addr)
}

func (t *Tracer) reportError(pid int, name string, err error) {
	if t.opts.OnError != nil {
		t.opts.OnError(pid, name, err)
	}
}
