package syscalls

// Name translates a trap-time Linux syscall number into the registry name
// for the current architecture. A miss means the call is not mediated.
func Name(nr uint64) (string, bool) {
	name, ok := syscallNumbers[nr]
	return name, ok
}
