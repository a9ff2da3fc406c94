// Package sdk drives the whatif mediation engine from another program. The
// usual transport is the stdio of a spawned "whatif rpc" process:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.CreateSession("/work"); err != nil {
//	    log.Fatal(err)
//	}
//	interp, err := client.Describe("unlink", sdk.Path("notes.txt"))
//	if interp.Mediated {
//	    fmt.Println(interp.Text) // "delete /work/notes.txt"
//	}
package sdk

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/jingkaihe/whatif/internal/errx"
)

// Config holds client configuration.
type Config struct {
	// BinaryPath is the path to the whatif binary.
	BinaryPath string
}

// DefaultConfig resolves the binary from WHATIF_BIN, falling back to PATH.
func DefaultConfig() Config {
	path := os.Getenv("WHATIF_BIN")
	if path == "" {
		path = "whatif"
	}
	return Config{BinaryPath: path}
}

// Arg is one raw syscall argument on the wire.
type Arg struct {
	Str  *string `json:"str,omitempty"`
	Word uint64  `json:"word,omitempty"`
}

// Path wraps a string argument the caller has already read out of the
// traced process.
func Path(s string) Arg { return Arg{Str: &s} }

// Word wraps a plain register value.
func Word(v uint64) Arg { return Arg{Word: v} }

// Interpretation is the engine's description of one syscall.
type Interpretation struct {
	// Mediated is false when the syscall is outside the engine's registry
	// or carries no effect worth surfacing.
	Mediated bool
	Syscall  string
	Label    string
	Path     string
	Detail   string
	Text     string
}

// Forgery is the return value to feed a denied syscall.
type Forgery struct {
	Mediated   bool
	Substitute bool
	Value      int64
}

// Client talks to one engine process. Methods serialize internally; calls
// are answered strictly in order.
type Client struct {
	cmd       *exec.Cmd
	in        io.WriteCloser
	out       *bufio.Scanner
	requestID atomic.Uint64
	session   string

	mu     sync.Mutex
	closed bool
}

// NewClient spawns the engine process and attaches to its stdio.
func NewClient(cfg Config) (*Client, error) {
	cmd := exec.Command(cfg.BinaryPath, "rpc")
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errx.Wrap(ErrStartEngine, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errx.Wrap(ErrStartEngine, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errx.Wrap(ErrStartEngine, err)
	}

	c := NewPipeClient(stdin, stdout)
	c.cmd = cmd
	return c, nil
}

// NewPipeClient attaches to an engine over caller-provided pipes. Close
// closes w but does not wait on any process.
func NewPipeClient(w io.WriteCloser, r io.Reader) *Client {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
	return &Client{in: w, out: scanner}
}

// Session returns the current session id, or empty if none was created.
func (c *Client) Session() string { return c.session }

// CreateSession starts a mediation session. Relative paths in later calls
// resolve against workingDir; allowedDevices extends the device allowlist.
func (c *Client) CreateSession(workingDir string, allowedDevices ...string) error {
	var result struct {
		Session string `json:"session"`
	}
	params := map[string]interface{}{}
	if workingDir != "" {
		params["working_dir"] = workingDir
	}
	if len(allowedDevices) > 0 {
		params["allowed_devices"] = allowedDevices
	}
	if err := c.call("create", params, &result); err != nil {
		return err
	}
	if result.Session == "" {
		return errx.With(ErrBadResponse, ": create returned no session id")
	}
	c.session = result.Session
	return nil
}

// Describe asks the engine what the syscall would do.
func (c *Client) Describe(syscall string, args ...Arg) (Interpretation, error) {
	params, err := c.callParams(syscall, args)
	if err != nil {
		return Interpretation{}, err
	}
	var result struct {
		Mediated  bool `json:"mediated"`
		Operation *struct {
			Syscall string `json:"syscall"`
			Label   string `json:"label"`
			Path    string `json:"path"`
			Detail  string `json:"detail"`
			Text    string `json:"text"`
		} `json:"operation"`
	}
	if err := c.call("describe", params, &result); err != nil {
		return Interpretation{}, err
	}
	interp := Interpretation{Mediated: result.Mediated}
	if result.Operation != nil {
		interp.Syscall = result.Operation.Syscall
		interp.Label = result.Operation.Label
		interp.Path = result.Operation.Path
		interp.Detail = result.Operation.Detail
		interp.Text = result.Operation.Text
	}
	return interp, nil
}

// Substitute asks the engine for the forged return value of a denied call.
// This is the stateful step: it advances the session's descriptor tracking
// and must be issued exactly once per intercepted call.
func (c *Client) Substitute(syscall string, args ...Arg) (Forgery, error) {
	params, err := c.callParams(syscall, args)
	if err != nil {
		return Forgery{}, err
	}
	var result struct {
		Mediated   bool  `json:"mediated"`
		Substitute bool  `json:"substitute"`
		Value      int64 `json:"value"`
	}
	if err := c.call("substitute", params, &result); err != nil {
		return Forgery{}, err
	}
	return Forgery{Mediated: result.Mediated, Substitute: result.Substitute, Value: result.Value}, nil
}

// Bind re-keys a synthetic descriptor to the real one the kernel assigned
// after an approved call executed.
func (c *Client) Bind(synthetic, real int) (bool, error) {
	if c.session == "" {
		return false, ErrNoSession
	}
	var result struct {
		Bound bool `json:"bound"`
	}
	err := c.call("bind", map[string]interface{}{
		"session":   c.session,
		"synthetic": synthetic,
		"real":      real,
	}, &result)
	if err != nil {
		return false, err
	}
	return result.Bound, nil
}

// CloseSession discards the session's descriptor tracking.
func (c *Client) CloseSession() error {
	if c.session == "" {
		return nil
	}
	err := c.call("close", map[string]interface{}{"session": c.session}, &struct{}{})
	c.session = ""
	return err
}

// Close ends the session, closes the engine's stdin and, when the client
// spawned the process, waits for it to exit.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	_ = c.CloseSession()
	c.closed = true
	if err := c.in.Close(); err != nil {
		return err
	}
	if c.cmd != nil {
		return c.cmd.Wait()
	}
	return nil
}

func (c *Client) callParams(syscall string, args []Arg) (map[string]interface{}, error) {
	if c.session == "" {
		return nil, ErrNoSession
	}
	if args == nil {
		args = []Arg{}
	}
	return map[string]interface{}{
		"session": c.session,
		"syscall": syscall,
		"args":    args,
	}, nil
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(method string, params interface{}, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrEngineClosed
	}

	id := c.requestID.Add(1)
	data, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return errx.Wrap(ErrBadResponse, err)
	}
	if _, err := c.in.Write(append(data, '\n')); err != nil {
		return errx.Wrap(ErrEngineStopped, err)
	}

	if !c.out.Scan() {
		if err := c.out.Err(); err != nil {
			return errx.Wrap(ErrEngineStopped, err)
		}
		return ErrEngineStopped
	}

	var resp response
	if err := json.Unmarshal(c.out.Bytes(), &resp); err != nil {
		return errx.Wrap(ErrBadResponse, err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.ID == nil || *resp.ID != id {
		return errx.With(ErrBadResponse, ": response id mismatch")
	}
	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return errx.Wrap(ErrBadResponse, err)
		}
	}
	return nil
}
