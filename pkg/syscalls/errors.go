package syscalls

import "errors"

var (
	ErrBadArity    = errors.New("argument count mismatch")
	ErrBadArgument = errors.New("malformed argument")
	ErrResolveUID  = errors.New("resolve owner id")
	ErrResolveGID  = errors.New("resolve group id")
)
