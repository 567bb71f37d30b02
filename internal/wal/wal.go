// Package wal implements the write-ahead log's on-disk frame format:
// a sequence of records, each length[4]|kind[1]|payload[length].
// A transaction is the subsequence Begin, Op*, (Commit|Abort). Records with
// an unknown kind byte are skipped during replay rather than treated as
// corruption, so the format can grow new frame kinds without breaking old
// readers.
package wal

import (
	"encoding/binary"
	"io"
	"os"

	"zapd/internal/core"
)

// Kind identifies one WAL frame's role in a transaction.
type Kind byte

const (
	KindBegin  Kind = 1
	KindOp     Kind = 2
	KindCommit Kind = 3
	KindAbort  Kind = 4
)

// Record is one parsed frame.
type Record struct {
	Kind    Kind
	Payload []byte
}

// Writer appends frames to a WAL file, flushing (and fsync-ing) each frame
// before returning so a caller can rely on "Append returned nil error" to
// mean the frame is durable.
type Writer struct {
	f *os.File
}

// OpenWriter opens (creating if necessary) path for appending WAL frames.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, &core.IOError{Err: err}
	}
	return &Writer{f: f}, nil
}

// Append writes one length-prefixed frame and fsyncs it before returning.
func (w *Writer) Append(kind Kind, payload []byte) error {
	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	header[4] = byte(kind)
	if _, err := w.f.Write(header[:]); err != nil {
		return &core.IOError{Err: err}
	}
	if _, err := w.f.Write(payload); err != nil {
		return &core.IOError{Err: err}
	}
	if err := w.f.Sync(); err != nil {
		return &core.IOError{Err: err}
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error { return w.f.Close() }

// Truncate empties the WAL, called once replay has folded its contents
// into a fresh snapshot.
func Truncate(path string) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return &core.IOError{Err: err}
	}
	return f.Close()
}

// ReadAll reads and parses every frame in path in order. A missing file is
// treated as an empty log (there is nothing yet to replay), not an error.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &core.IOError{Err: err}
	}
	defer f.Close()

	var records []Record
	for {
		var header [5]byte
		_, err := io.ReadFull(f, header[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			// A partial trailing header means the process died mid-append
			// of a frame that was never fsynced as a complete unit; stop
			// replay here rather than erroring the whole load.
			break
		}
		length := binary.BigEndian.Uint32(header[:4])
		kind := Kind(header[4])
		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		records = append(records, Record{Kind: kind, Payload: payload})
	}
	return records, nil
}

// Transactions groups records into per-transaction frame sequences,
// Begin, Op*, (Commit|Abort). Unknown-kind records are skipped;
// a Begin with no terminating Commit/Abort (the log ends mid-transaction)
// is dropped, since a transaction record not terminated by Commit must be
// skipped during replay.
func Transactions(records []Record) [][]Record {
	var out [][]Record
	var current []Record
	for _, r := range records {
		switch r.Kind {
		case KindBegin:
			current = []Record{r}
		case KindOp:
			if current != nil {
				current = append(current, r)
			}
		case KindCommit, KindAbort:
			if current != nil {
				current = append(current, r)
				out = append(out, current)
				current = nil
			}
		default:
			// unknown kind: skip
		}
	}
	return out
}
