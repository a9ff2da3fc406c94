//go:build linux && arm64

package tracer

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// NT_ARM_SYSTEM_CALL, the regset that rewrites the pending syscall number.
const ntArmSystemCall = 0x404

func syscallNumber(regs *unix.PtraceRegs) uint64 { return regs.Regs[8] }

func argument(regs *unix.PtraceRegs, i int) uint64 { return regs.Regs[i] }

func returnValue(regs *unix.PtraceRegs) int64 { return int64(regs.Regs[0]) }

func setReturnValue(regs *unix.PtraceRegs, v int64) { regs.Regs[0] = uint64(v) }

// skipSyscall replaces the pending syscall number with -1 so the kernel
// executes nothing and returns ENOSYS, which the exit-stop then overwrites.
// Writing x8 through SETREGS is not enough on arm64; the number lives in a
// dedicated regset.
func skipSyscall(pid int, _ *unix.PtraceRegs) error {
	nr := int32(-1)
	iov := unix.Iovec{Base: (*byte)(unsafe.Pointer(&nr))}
	iov.SetLen(4)
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETREGSET,
		uintptr(pid), ntArmSystemCall, uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
