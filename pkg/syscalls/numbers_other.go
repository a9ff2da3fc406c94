//go:build !amd64 && !arm64

package syscalls

var syscallNumbers = map[uint64]string{}
