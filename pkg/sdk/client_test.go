package sdk

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/whatif/pkg/rpc"
)

// newEngineClient wires a client to an in-process engine over pipes.
func newEngineClient(t *testing.T) *Client {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	h := rpc.NewHandler(reqR, respW)
	go h.Run(context.Background())

	client := NewPipeClient(reqW, respR)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCreateSessionAndDescribe(t *testing.T) {
	client := newEngineClient(t)

	require.NoError(t, client.CreateSession("/work"))
	assert.NotEmpty(t, client.Session())

	interp, err := client.Describe("unlink", Path("notes.txt"))
	require.NoError(t, err)
	assert.True(t, interp.Mediated)
	assert.Equal(t, "delete /work/notes.txt", interp.Text)
	assert.Equal(t, "delete", interp.Label)
	assert.Equal(t, "/work/notes.txt", interp.Path)
}

func TestDescribeUnregisteredSyscall(t *testing.T) {
	client := newEngineClient(t)
	require.NoError(t, client.CreateSession("/work"))

	interp, err := client.Describe("getpid")
	require.NoError(t, err)
	assert.False(t, interp.Mediated)
}

func TestSubstituteAndBind(t *testing.T) {
	client := newEngineClient(t)
	require.NoError(t, client.CreateSession("/work"))

	forgery, err := client.Substitute("creat", Path("out.log"), Word(0644))
	require.NoError(t, err)
	assert.True(t, forgery.Mediated)
	assert.True(t, forgery.Substitute)
	assert.Equal(t, int64(1000), forgery.Value)

	bound, err := client.Bind(1000, 7)
	require.NoError(t, err)
	assert.True(t, bound)

	interp, err := client.Describe("write", Word(7), Word(0), Word(9))
	require.NoError(t, err)
	assert.Equal(t, "write 9 bytes to /work/out.log", interp.Text)
}

func TestCallWithoutSession(t *testing.T) {
	client := newEngineClient(t)

	_, err := client.Describe("unlink", Path("x"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRPCErrorSurfaces(t *testing.T) {
	client := newEngineClient(t)
	require.NoError(t, client.CreateSession(""))

	// Wrong arity is a decode failure on the engine side.
	_, err := client.Describe("unlink")
	require.Error(t, err)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, rpc.ErrCodeDecodeFailed, rpcErr.Code)
}
