//go:build arm64

package syscalls

// https://github.com/torvalds/linux/blob/master/include/uapi/asm-generic/unistd.h
// arm64 carries only the *at forms of the path syscalls; the legacy
// variants never reach the trap loop on this architecture.
var syscallNumbers = map[uint64]string{
	23:  "dup",
	24:  "dup3",
	33:  "mknodat",
	34:  "mkdirat",
	35:  "unlinkat",
	36:  "symlinkat",
	37:  "linkat",
	38:  "renameat",
	52:  "fchmod",
	53:  "fchmodat",
	54:  "fchownat",
	55:  "fchown",
	64:  "write",
	66:  "writev",
	68:  "pwrite",
	70:  "pwritev",
	56:  "openat",
	276: "renameat2",
}
