// Package rpc exposes the mediation engine over line-delimited JSON-RPC on
// stdin/stdout, so a foreign tracer (or a test harness) can drive
// interpretation without linking the Go packages.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/jingkaihe/whatif/pkg/api"
	"github.com/jingkaihe/whatif/pkg/mediate"
	"github.com/jingkaihe/whatif/pkg/syscalls"
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      *uint64     `json:"id,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeNoSession      = -32000
	ErrCodeDecodeFailed   = -32001
)

// RawArg is the wire form of one raw syscall argument. Exactly one of the
// two fields is set: Str for string arguments the caller has already read
// out of the traced process, Word for everything else.
type RawArg struct {
	Str  *string `json:"str,omitempty"`
	Word uint64  `json:"word,omitempty"`
}

func (a RawArg) raw() syscalls.Raw {
	if a.Str != nil {
		return syscalls.Str(*a.Str)
	}
	return syscalls.Word(a.Word)
}

// Handler owns one mediation session per "create" call, keyed by an opaque
// session id returned to the client.
type Handler struct {
	sessions map[string]*mediate.Session
	stdin    io.Reader
	stdout   io.Writer
	mu       sync.Mutex // protects stdout writes
}

func NewHandler(stdin io.Reader, stdout io.Writer) *Handler {
	return &Handler{
		sessions: make(map[string]*mediate.Session),
		stdin:    stdin,
		stdout:   stdout,
	}
}

// Run reads requests until stdin closes. Requests are handled in order;
// descriptor tracking is stateful, so the arrival order is the call order.
func (h *Handler) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(h.stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			h.sendError(nil, ErrCodeParse, "Parse error")
			continue
		}

		if resp := h.handleRequest(&req); resp != nil {
			h.sendResponse(resp)
		}
	}
	return scanner.Err()
}

func (h *Handler) handleRequest(req *Request) *Response {
	switch req.Method {
	case "create":
		return h.handleCreate(req)
	case "describe":
		return h.handleDescribe(req)
	case "substitute":
		return h.handleSubstitute(req)
	case "bind":
		return h.handleBind(req)
	case "close":
		return h.handleClose(req)
	default:
		return &Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: ErrCodeMethodNotFound, Message: "Method not found"},
			ID:      req.ID,
		}
	}
}

func (h *Handler) handleCreate(req *Request) *Response {
	var params struct {
		WorkingDir     string   `json:"working_dir,omitempty"`
		AllowedDevices []string `json:"allowed_devices,omitempty"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return h.errResponse(req, ErrCodeInvalidParams, err.Error())
		}
	}

	id := uuid.New().String()
	h.sessions[id] = mediate.NewSession(mediate.Options{
		WorkingDir:          params.WorkingDir,
		ExtraAllowedDevices: params.AllowedDevices,
	})

	return &Response{
		JSONRPC: "2.0",
		Result:  map[string]interface{}{"session": id},
		ID:      req.ID,
	}
}

// callParams is shared by describe and substitute.
type callParams struct {
	Session string   `json:"session"`
	Syscall string   `json:"syscall"`
	Args    []RawArg `json:"args"`
}

func (h *Handler) decodeCall(req *Request) (*mediate.Session, syscalls.Spec, syscalls.Args, bool, *Response) {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, syscalls.Spec{}, nil, false, h.errResponse(req, ErrCodeInvalidParams, err.Error())
	}
	session, ok := h.sessions[params.Session]
	if !ok {
		return nil, syscalls.Spec{}, nil, false, h.errResponse(req, ErrCodeNoSession, "unknown session")
	}

	raw := make([]syscalls.Raw, len(params.Args))
	for i, a := range params.Args {
		raw[i] = a.raw()
	}

	spec, args, mediated, err := session.Decode(params.Syscall, raw)
	if err != nil {
		return nil, syscalls.Spec{}, nil, false, h.errResponse(req, ErrCodeDecodeFailed, err.Error())
	}
	return session, spec, args, mediated, nil
}

func (h *Handler) handleDescribe(req *Request) *Response {
	session, spec, args, mediated, errResp := h.decodeCall(req)
	if errResp != nil {
		return errResp
	}
	if !mediated {
		return &Response{
			JSONRPC: "2.0",
			Result:  map[string]interface{}{"mediated": false},
			ID:      req.ID,
		}
	}

	op, err := session.Describe(spec, args)
	if err != nil {
		return h.errResponse(req, ErrCodeDecodeFailed, err.Error())
	}

	result := map[string]interface{}{"mediated": op != nil}
	if op != nil {
		result["operation"] = operationResult(op)
	}
	return &Response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

func (h *Handler) handleSubstitute(req *Request) *Response {
	session, spec, args, mediated, errResp := h.decodeCall(req)
	if errResp != nil {
		return errResp
	}
	if !mediated {
		return &Response{
			JSONRPC: "2.0",
			Result:  map[string]interface{}{"mediated": false},
			ID:      req.ID,
		}
	}

	value, ok := session.Substitute(spec, args)
	return &Response{
		JSONRPC: "2.0",
		Result: map[string]interface{}{
			"mediated":   true,
			"substitute": ok,
			"value":      value,
		},
		ID: req.ID,
	}
}

func (h *Handler) handleBind(req *Request) *Response {
	var params struct {
		Session   string `json:"session"`
		Synthetic int    `json:"synthetic"`
		Real      int    `json:"real"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return h.errResponse(req, ErrCodeInvalidParams, err.Error())
	}
	session, ok := h.sessions[params.Session]
	if !ok {
		return h.errResponse(req, ErrCodeNoSession, "unknown session")
	}

	bound := session.BindDescriptor(params.Synthetic, params.Real)
	return &Response{
		JSONRPC: "2.0",
		Result:  map[string]interface{}{"bound": bound},
		ID:      req.ID,
	}
}

func (h *Handler) handleClose(req *Request) *Response {
	var params struct {
		Session string `json:"session"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return h.errResponse(req, ErrCodeInvalidParams, err.Error())
		}
	}
	delete(h.sessions, params.Session)
	return &Response{
		JSONRPC: "2.0",
		Result:  map[string]interface{}{},
		ID:      req.ID,
	}
}

func operationResult(op *api.Operation) map[string]interface{} {
	return map[string]interface{}{
		"syscall": op.Syscall,
		"label":   op.Label,
		"path":    op.Path,
		"detail":  op.Detail,
		"text":    op.String(),
	}
}

func (h *Handler) errResponse(req *Request, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      req.ID,
	}
}

func (h *Handler) sendResponse(resp *Response) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(resp)
	fmt.Fprintln(h.stdout, string(data))
}

func (h *Handler) sendError(id *uint64, code int, message string) {
	h.sendResponse(&Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// RunRPC serves the engine on the process's stdin/stdout.
func RunRPC(ctx context.Context) error {
	handler := NewHandler(os.Stdin, os.Stdout)
	return handler.Run(ctx)
}
