//go:build amd64

package syscalls

// https://github.com/torvalds/linux/blob/master/arch/x86/entry/syscalls/syscall_64.tbl
// pwrite64 is registered under its POSIX name.
var syscallNumbers = map[uint64]string{
	1:   "write",
	2:   "open",
	18:  "pwrite",
	20:  "writev",
	32:  "dup",
	33:  "dup2",
	82:  "rename",
	83:  "mkdir",
	84:  "rmdir",
	85:  "creat",
	86:  "link",
	87:  "unlink",
	88:  "symlink",
	90:  "chmod",
	92:  "chown",
	93:  "fchown",
	94:  "lchown",
	91:  "fchmod",
	133: "mknod",
	257: "openat",
	258: "mkdirat",
	259: "mknodat",
	260: "fchownat",
	263: "unlinkat",
	264: "renameat",
	265: "linkat",
	266: "symlinkat",
	268: "fchmodat",
	292: "dup3",
	296: "pwritev",
	316: "renameat2",
}
