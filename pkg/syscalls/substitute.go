package syscalls

// substituteOpen tracks a descriptor for any open that could later write to
// the file, and returns it as the forged return value. Tracking happens for
// write-capable access (write-only, read-write, append) and for any call the
// formatter judged mediation-worthy, so later descriptor-referencing calls
// stay attributable even when the operator approves this one.
func substituteOpen(env Env, path string, flags int) (int64, bool) {
	abs := env.Abs(path)
	if env.DeviceAllowed(abs) {
		return 0, false
	}

	writeCapable := flags&(flagWronly|flagRdwr|flagAppend) != 0
	if !writeCapable {
		op, err := formatOpen(env, "", path, flags)
		if err != nil || op == nil {
			return 0, false
		}
	}

	return int64(env.TrackDescriptor(abs)), true
}

// substituteMknod tracks the created node like the open family does, so a
// denied creation still yields a descriptor value and later references to
// the path stay attributable.
func substituteMknod(env Env, path string, mode uint32) (int64, bool) {
	abs := env.Abs(path)
	if env.DeviceAllowed(abs) {
		return 0, false
	}
	op, err := formatMknod(env, "", path, mode)
	if err != nil || op == nil {
		return 0, false
	}
	return int64(env.TrackDescriptor(abs)), true
}

// substituteWrite reports the full requested byte count, pretending the
// write completed without performing it.
func substituteWrite(env Env, fd int, count int64) (int64, bool) {
	if !env.DescriptorTracked(fd) {
		return 0, false
	}
	return count, true
}
