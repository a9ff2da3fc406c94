//go:build linux && amd64

package tracer

import "golang.org/x/sys/unix"

// Syscall arguments arrive in rdi, rsi, rdx, r10, r8, r9.
var argumentRegisters = [6]func(*unix.PtraceRegs) uint64{
	func(r *unix.PtraceRegs) uint64 { return r.Rdi },
	func(r *unix.PtraceRegs) uint64 { return r.Rsi },
	func(r *unix.PtraceRegs) uint64 { return r.Rdx },
	func(r *unix.PtraceRegs) uint64 { return r.R10 },
	func(r *unix.PtraceRegs) uint64 { return r.R8 },
	func(r *unix.PtraceRegs) uint64 { return r.R9 },
}

func syscallNumber(regs *unix.PtraceRegs) uint64 { return regs.Orig_rax }

func argument(regs *unix.PtraceRegs, i int) uint64 { return argumentRegisters[i](regs) }

func returnValue(regs *unix.PtraceRegs) int64 { return int64(regs.Rax) }

func setReturnValue(regs *unix.PtraceRegs, v int64) { regs.Rax = uint64(v) }

// skipSyscall replaces the pending syscall number with -1 so the kernel
// executes nothing and returns ENOSYS, which the exit-stop then overwrites.
func skipSyscall(pid int, regs *unix.PtraceRegs) error {
	regs.Orig_rax = ^uint64(0)
	return unix.PtraceSetRegs(pid, regs)
}
