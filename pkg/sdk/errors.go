package sdk

import (
	"errors"
	"fmt"
)

var (
	ErrStartEngine   = errors.New("failed to start whatif rpc process")
	ErrEngineClosed  = errors.New("client is closed")
	ErrNoSession     = errors.New("no session created")
	ErrBadResponse   = errors.New("malformed response from engine")
	ErrEngineStopped = errors.New("engine process exited")
)

// RPCError is an error response from the engine.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("whatif RPC error [%d]: %s", e.Code, e.Message)
}
