package journal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/whatif/pkg/api"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.journal")

	w, err := Create(path, "run-1", []string{"rm", "-rf", "build"})
	require.NoError(t, err)

	events := []api.Event{
		{
			Seq: 1, PID: 42,
			Operation: api.Operation{Syscall: "unlinkat", Label: api.LabelDelete, Path: "/work/build/a.o"},
			Decision:  api.DecisionDeny,
		},
		{
			Seq: 2, PID: 42,
			Operation: api.Operation{Syscall: "rename", Label: api.LabelRename, Path: "/work/a", Detail: "b"},
			Decision:  api.DecisionAllow,
		},
	}
	for _, ev := range events {
		require.NoError(t, w.Append(ev))
	}
	require.NoError(t, w.Close())

	header, records, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", header.RunID)
	assert.Equal(t, []string{"rm", "-rf", "build"}, header.Command)
	require.Len(t, records, 2)
	assert.Equal(t, events[0], records[0].Event())
	assert.Equal(t, events[1], records[1].Event())
}

func TestReadEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.journal")

	w, err := Create(path, "run-2", []string{"true"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	header, records, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "run-2", header.RunID)
	assert.Empty(t, records)
}

func TestReadRejectsOversizedFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.journal")

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], maxFrameSize+1)
	require.NoError(t, os.WriteFile(path, lenBuf[:], 0600))

	_, _, err := Read(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadMissingFile(t *testing.T) {
	_, _, err := Read(filepath.Join(t.TempDir(), "nope.journal"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenJournal)
}
