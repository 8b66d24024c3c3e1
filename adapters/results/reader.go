package results

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"gomdp/adapters/wire"
	"gomdp/domain/experiment"
	"gomdp/ports"
)

var _ ports.ResultSource = (*Reader)(nil)

// Reader iterates a recorded stream. Open validates the leading setup
// record; Next then yields outcomes until the end marker or the end of the
// file. A stream that stops without its marker still yields every intact
// outcome, with Complete reporting false.
type Reader struct {
	f        *os.File
	br       *bufio.Reader
	setup    *experiment.Setup
	offset   int
	complete bool
	done     bool
}

// Open opens a stream and reads its setup record.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	r := &Reader{f: f, br: bufio.NewReader(f)}

	kind, payload, err := r.readRecord()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, &wire.DecodeError{Offset: 0, What: "stream has no setup record"}
		}
		return nil, err
	}
	if kind != recordSetup {
		f.Close()
		return nil, &wire.DecodeError{Offset: 0, What: fmt.Sprintf("stream starts with record kind %d, want setup", kind)}
	}
	if r.setup, err = wire.DecodeSetup(payload); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Setup returns the stream's leading setup record.
func (r *Reader) Setup() *experiment.Setup {
	return r.setup
}

// Next returns the next outcome, or io.EOF once the stream ends.
func (r *Reader) Next() (*experiment.Outcome, error) {
	if r.done {
		return nil, io.EOF
	}
	kind, payload, err := r.readRecord()
	if errors.Is(err, io.EOF) {
		// The file stopped at a record boundary without an end marker: the
		// producer died mid-run. Everything read so far is still valid.
		r.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	switch kind {
	case recordOutcome:
		return wire.DecodeOutcome(payload)
	case recordEnd:
		r.done = true
		r.complete = true
		if _, err := r.br.Peek(1); err == nil {
			return nil, &wire.DecodeError{Offset: r.offset, What: "data after end marker"}
		}
		return nil, io.EOF
	case recordSetup:
		return nil, &wire.DecodeError{Offset: r.offset, What: "second setup record"}
	default:
		return nil, &wire.DecodeError{Offset: r.offset, What: fmt.Sprintf("unknown record kind %d", kind)}
	}
}

// Complete reports whether the stream carried its end marker.
func (r *Reader) Complete() bool {
	return r.complete
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// readRecord reads one frame and verifies its checksum, returning the kind
// byte and payload. io.EOF means a clean record boundary.
func (r *Reader) readRecord() (byte, []byte, error) {
	start := r.offset
	length, err := binary.ReadUvarint(r.br)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, &wire.DecodeError{Offset: start, What: "truncated record length"}
		}
		return 0, nil, err
	}
	if length < 5 {
		return 0, nil, &wire.DecodeError{Offset: start, What: fmt.Sprintf("record length %d below minimum", length)}
	}
	if length > maxRecordBytes {
		return 0, nil, &wire.DecodeError{Offset: start, What: fmt.Sprintf("record length %d exceeds limit", length)}
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return 0, nil, &wire.DecodeError{Offset: start, What: "truncated record"}
	}
	r.offset = start + uvarintLen(length) + int(length)

	sum := binary.LittleEndian.Uint32(buf[:4])
	body := buf[4:]
	if crc32.ChecksumIEEE(body) != sum {
		return 0, nil, &wire.DecodeError{Offset: start, What: "record checksum mismatch"}
	}
	return body[0], body[1:], nil
}

func uvarintLen(v uint64) int {
	var buf [binary.MaxVarintLen64]byte
	return binary.PutUvarint(buf[:], v)
}
