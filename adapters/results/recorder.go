// Package results persists runs as append-only record streams. A stream is
// a sequence of length-delimited records, each carrying a CRC32 checksum, a
// kind byte, and a wire payload: one setup record first, then one outcome
// record per step, then an end marker. The marker is what distinguishes a
// finished run from one that died mid-write.
package results

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"gomdp/adapters/wire"
	"gomdp/domain/experiment"
	"gomdp/ports"
)

const (
	recordSetup   byte = 1
	recordOutcome byte = 2
	recordEnd     byte = 3
)

// maxRecordBytes bounds a single record so a corrupt length prefix cannot
// demand an absurd allocation.
const maxRecordBytes = 64 << 20

var _ ports.ResultWriter = (*Recorder)(nil)

// Recorder writes one run's stream to a file. Not safe for concurrent use;
// each run records to its own file.
type Recorder struct {
	f          *os.File
	w          *bufio.Writer
	wroteSetup bool
	closed     bool
}

// Create opens a stream for writing, truncating any previous file.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("results: create %s: %w", path, err)
	}
	return &Recorder{f: f, w: bufio.NewWriter(f)}, nil
}

// WriteSetup writes the leading setup record. Must be called exactly once,
// before any outcome.
func (r *Recorder) WriteSetup(setup *experiment.Setup) error {
	if r.closed {
		return fmt.Errorf("results: recorder is closed")
	}
	if r.wroteSetup {
		return fmt.Errorf("results: setup already written")
	}
	payload, err := wire.EncodeSetup(setup)
	if err != nil {
		return err
	}
	if err := r.writeRecord(recordSetup, payload); err != nil {
		return err
	}
	r.wroteSetup = true
	return nil
}

// WriteOutcome appends one step outcome.
func (r *Recorder) WriteOutcome(outcome experiment.Outcome) error {
	if r.closed {
		return fmt.Errorf("results: recorder is closed")
	}
	if !r.wroteSetup {
		return fmt.Errorf("results: setup must be written before outcomes")
	}
	return r.writeRecord(recordOutcome, wire.EncodeOutcome(outcome))
}

// Close writes the end marker, flushes, and releases the file. Closing twice
// is a no-op.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.writeRecord(recordEnd, nil); err != nil {
		r.f.Close()
		return err
	}
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// writeRecord frames one record: uvarint length of what follows, CRC32 of
// the body, then the body (kind byte plus payload).
func (r *Recorder) writeRecord(kind byte, payload []byte) error {
	body := make([]byte, 0, 1+len(payload))
	body = append(body, kind)
	body = append(body, payload...)

	var head [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(head[:], uint64(4+len(body)))
	if _, err := r.w.Write(head[:n]); err != nil {
		return fmt.Errorf("results: write record: %w", err)
	}

	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc32.ChecksumIEEE(body))
	if _, err := r.w.Write(sum[:]); err != nil {
		return fmt.Errorf("results: write record: %w", err)
	}
	if _, err := r.w.Write(body); err != nil {
		return fmt.Errorf("results: write record: %w", err)
	}
	return nil
}
