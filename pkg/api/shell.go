package api

import shellquote "github.com/kballard/go-shellquote"

// JoinCommand renders a command line shell-safely for display and re-running,
// using POSIX shell quoting rules.
func JoinCommand(args []string) string {
	return shellquote.Join(args...)
}
