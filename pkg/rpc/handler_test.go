package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcMsg struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

// runScript feeds newline-delimited requests through a handler and returns
// the decoded responses in order.
func runScript(t *testing.T, requests ...string) []rpcMsg {
	t.Helper()

	var out bytes.Buffer
	h := NewHandler(strings.NewReader(strings.Join(requests, "\n")+"\n"), &out)
	require.NoError(t, h.Run(context.Background()))

	var msgs []rpcMsg
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var msg rpcMsg
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func result(t *testing.T, msg rpcMsg) map[string]interface{} {
	t.Helper()
	require.Nil(t, msg.Error)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Result, &m))
	return m
}

func TestCreateSession(t *testing.T) {
	msgs := runScript(t,
		`{"jsonrpc":"2.0","method":"create","params":{"working_dir":"/work"},"id":1}`,
	)
	require.Len(t, msgs, 1)
	session, _ := result(t, msgs[0])["session"].(string)
	assert.NotEmpty(t, session)
}

func TestDescribeUnlink(t *testing.T) {
	var out bytes.Buffer
	in := &bytes.Buffer{}
	h := NewHandler(in, &out)

	create := h.handleRequest(&Request{JSONRPC: "2.0", Method: "create",
		Params: json.RawMessage(`{"working_dir":"/work"}`)})
	require.Nil(t, create.Error)
	session := create.Result.(map[string]interface{})["session"].(string)

	params := fmt.Sprintf(`{"session":%q,"syscall":"unlink","args":[{"str":"notes.txt"}]}`, session)
	resp := h.handleRequest(&Request{JSONRPC: "2.0", Method: "describe",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)

	res := resp.Result.(map[string]interface{})
	assert.Equal(t, true, res["mediated"])
	op := res["operation"].(map[string]interface{})
	assert.Equal(t, "delete /work/notes.txt", op["text"])
	assert.Equal(t, "delete", op["label"])
}

func TestUnknownSyscallNotMediated(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, &bytes.Buffer{})

	create := h.handleRequest(&Request{JSONRPC: "2.0", Method: "create"})
	session := create.Result.(map[string]interface{})["session"].(string)

	params := fmt.Sprintf(`{"session":%q,"syscall":"getpid","args":[]}`, session)
	resp := h.handleRequest(&Request{JSONRPC: "2.0", Method: "describe",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)
	assert.Equal(t, false, resp.Result.(map[string]interface{})["mediated"])
}

func TestSubstituteTracksDescriptors(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, &bytes.Buffer{})

	create := h.handleRequest(&Request{JSONRPC: "2.0", Method: "create",
		Params: json.RawMessage(`{"working_dir":"/work"}`)})
	session := create.Result.(map[string]interface{})["session"].(string)

	// creat allocates a synthetic descriptor starting at 1000.
	params := fmt.Sprintf(`{"session":%q,"syscall":"creat","args":[{"str":"out.log"},{"word":420}]}`, session)
	resp := h.handleRequest(&Request{JSONRPC: "2.0", Method: "substitute",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)

	res := resp.Result.(map[string]interface{})
	assert.Equal(t, true, res["substitute"])
	assert.Equal(t, int64(1000), res["value"])

	// A write against that descriptor now names the file.
	params = fmt.Sprintf(`{"session":%q,"syscall":"write","args":[{"word":1000},{"word":0},{"word":42}]}`, session)
	resp = h.handleRequest(&Request{JSONRPC: "2.0", Method: "describe",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)
	op := resp.Result.(map[string]interface{})["operation"].(map[string]interface{})
	assert.Equal(t, "write 42 bytes to /work/out.log", op["text"])
}

func TestBindRekeysDescriptor(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, &bytes.Buffer{})

	create := h.handleRequest(&Request{JSONRPC: "2.0", Method: "create",
		Params: json.RawMessage(`{"working_dir":"/work"}`)})
	session := create.Result.(map[string]interface{})["session"].(string)

	params := fmt.Sprintf(`{"session":%q,"syscall":"creat","args":[{"str":"out.log"},{"word":420}]}`, session)
	resp := h.handleRequest(&Request{JSONRPC: "2.0", Method: "substitute",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)

	params = fmt.Sprintf(`{"session":%q,"synthetic":1000,"real":3}`, session)
	resp = h.handleRequest(&Request{JSONRPC: "2.0", Method: "bind",
		Params: json.RawMessage(params)})
	require.Nil(t, resp.Error)
	assert.Equal(t, true, resp.Result.(map[string]interface{})["bound"])
}

func TestUnknownSession(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, &bytes.Buffer{})
	resp := h.handleRequest(&Request{JSONRPC: "2.0", Method: "describe",
		Params: json.RawMessage(`{"session":"nope","syscall":"unlink","args":[{"str":"x"}]}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoSession, resp.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	msgs := runScript(t, `{"jsonrpc":"2.0","method":"nope","id":9}`)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, ErrCodeMethodNotFound, msgs[0].Error.Code)
}

func TestParseError(t *testing.T) {
	msgs := runScript(t, `{not json`)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, ErrCodeParse, msgs[0].Error.Code)
}
