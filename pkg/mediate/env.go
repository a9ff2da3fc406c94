package mediate

// Session implements syscalls.Env. Formatters and substituters reach the
// per-session state exclusively through these methods.

func (s *Session) Abs(path string) string { return s.paths.Abs(path) }

func (s *Session) Exists(path string) bool { return s.paths.Exists(path) }

func (s *Session) DeviceAllowed(path string) bool {
	_, ok := s.allowed[path]
	return ok
}

func (s *Session) DescriptorPath(fd int) string { return s.fds.DisplayPath(fd) }

func (s *Session) DescriptorTracked(fd int) bool {
	_, ok := s.fds.Resolve(fd)
	return ok
}

func (s *Session) TrackDescriptor(path string) int { return s.fds.Allocate(path) }

func (s *Session) DupDescriptor(oldFD int) (int, bool) { return s.fds.Dup(oldFD) }

func (s *Session) DupDescriptorTo(oldFD, newFD int) (int, bool) {
	return s.fds.DupTo(oldFD, newFD)
}

func (s *Session) ClassifyMove(oldAbs, newAbs string) (string, string) {
	return s.paths.ClassifyMove(oldAbs, newAbs)
}

func (s *Session) LookupOwner(uid int) (string, error) { return s.ids.LookupUID(uid) }

func (s *Session) LookupGroup(gid int) (string, error) { return s.ids.LookupGID(gid) }
