package tracer

import "errors"

var (
	ErrUnsupportedPlatform = errors.New("tracing is only supported on linux")
	ErrReadMemory          = errors.New("failed to read traced process memory")
	ErrTraceeStart         = errors.New("failed to start traced command")
	ErrTraceLoop           = errors.New("trace loop failed")
)
