// Package journal writes trace records to disk as length-prefixed CBOR
// frames, one frame per decided operation, so a run can be replayed later.
package journal

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/whatif/internal/errx"
	"github.com/jingkaihe/whatif/pkg/api"
)

var (
	ErrOpenJournal   = errors.New("failed to open journal")
	ErrWriteJournal  = errors.New("failed to write journal record")
	ErrReadJournal   = errors.New("failed to read journal record")
	ErrFrameTooLarge = errors.New("journal frame exceeds limit")
)

// Frames are tiny; anything this large means a corrupt or foreign file.
const maxFrameSize = 1 << 20

// Header opens every journal file and names the run the records belong to.
type Header struct {
	RunID     string   `cbor:"run_id"`
	Command   []string `cbor:"command"`
	StartedAt int64    `cbor:"started_at"`
}

// Record is one decided operation.
type Record struct {
	Seq      int    `cbor:"seq"`
	PID      int    `cbor:"pid,omitempty"`
	Syscall  string `cbor:"syscall"`
	Label    string `cbor:"label"`
	Path     string `cbor:"path"`
	Detail   string `cbor:"detail,omitempty"`
	Decision string `cbor:"decision"`
}

func recordFromEvent(ev api.Event) Record {
	return Record{
		Seq:      ev.Seq,
		PID:      ev.PID,
		Syscall:  ev.Operation.Syscall,
		Label:    ev.Operation.Label,
		Path:     ev.Operation.Path,
		Detail:   ev.Operation.Detail,
		Decision: string(ev.Decision),
	}
}

// Event converts a stored record back to the api form.
func (r Record) Event() api.Event {
	return api.Event{
		Seq: r.Seq,
		PID: r.PID,
		Operation: api.Operation{
			Syscall: r.Syscall,
			Label:   r.Label,
			Path:    r.Path,
			Detail:  r.Detail,
		},
		Decision: api.Decision(r.Decision),
	}
}

// Writer appends frames to a journal file.
type Writer struct {
	f *os.File
}

// Create opens path for writing and writes the header frame.
func Create(path, runID string, command []string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errx.Wrap(ErrOpenJournal, err)
	}
	w := &Writer{f: f}
	header := Header{RunID: runID, Command: command, StartedAt: time.Now().Unix()}
	if err := w.writeFrame(header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Append(ev api.Event) error {
	return w.writeFrame(recordFromEvent(ev))
}

func (w *Writer) Close() error {
	return w.f.Close()
}

func (w *Writer) writeFrame(v interface{}) error {
	buf, err := cbor.Marshal(v)
	if err != nil {
		return errx.Wrap(ErrWriteJournal, err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := w.f.Write(lenBuf[:]); err != nil {
		return errx.Wrap(ErrWriteJournal, err)
	}
	if _, err := w.f.Write(buf); err != nil {
		return errx.Wrap(ErrWriteJournal, err)
	}
	return nil
}

// Read loads a journal file back into its header and records.
func Read(path string) (Header, []Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, errx.Wrap(ErrOpenJournal, err)
	}
	defer f.Close()

	var header Header
	if err := readFrame(f, &header); err != nil {
		return Header{}, nil, err
	}

	var records []Record
	for {
		var rec Record
		if err := readFrame(f, &rec); err != nil {
			if errors.Is(err, io.EOF) {
				return header, records, nil
			}
			return Header{}, nil, err
		}
		records = append(records, rec)
	}
}

func readFrame(r io.Reader, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errx.Wrap(ErrReadJournal, err)
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen > maxFrameSize {
		return errx.With(ErrFrameTooLarge, ": %d bytes", frameLen)
	}
	buf := make([]byte, frameLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errx.Wrap(ErrReadJournal, err)
	}
	if err := cbor.Unmarshal(buf, v); err != nil {
		return errx.Wrap(ErrReadJournal, err)
	}
	return nil
}
