package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeError names the first structural problem found in a wire payload:
// what was being read and at which byte offset it went wrong. Semantically
// invalid but well-formed payloads surface the model's own errors instead.
type DecodeError struct {
	Offset int
	What   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: %s at offset %d", e.What, e.Offset)
}

// buffer accumulates a payload. Writes never fail; sizing problems are the
// encoder's responsibility and are caught before writing begins.
type buffer struct {
	b []byte
}

func (w *buffer) u16(v uint16) {
	w.b = binary.LittleEndian.AppendUint16(w.b, v)
}

func (w *buffer) u32(v uint32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
}

func (w *buffer) u64(v uint64) {
	w.b = binary.LittleEndian.AppendUint64(w.b, v)
}

// f64 writes the exact IEEE-754 bits so every float round-trips bit for bit.
func (w *buffer) f64(v float64) {
	w.u64(math.Float64bits(v))
}

func (w *buffer) str(s string) {
	w.u32(uint32(len(s)))
	w.b = append(w.b, s...)
}

func (w *buffer) floats(vs []float64) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.f64(v)
	}
}

func (w *buffer) bytes(p []byte) {
	w.u32(uint32(len(p)))
	w.b = append(w.b, p...)
}

// scanner consumes a payload front to back, reporting the first truncation
// or malformed field as a DecodeError carrying the byte offset.
type scanner struct {
	buf []byte
	off int
}

func (s *scanner) fail(what string) error {
	return &DecodeError{Offset: s.off, What: what}
}

func (s *scanner) take(n int, what string) ([]byte, error) {
	if n < 0 || s.off+n > len(s.buf) {
		return nil, s.fail(what + ": truncated")
	}
	p := s.buf[s.off : s.off+n]
	s.off += n
	return p, nil
}

func (s *scanner) u16(what string) (uint16, error) {
	p, err := s.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (s *scanner) u32(what string) (uint32, error) {
	p, err := s.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (s *scanner) u64(what string) (uint64, error) {
	p, err := s.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (s *scanner) f64(what string) (float64, error) {
	v, err := s.u64(what)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// count reads a u32 length prefix and bounds it against the bytes actually
// remaining, so a corrupt count fails here instead of as a huge allocation.
func (s *scanner) count(what string, elemSize int) (int, error) {
	n, err := s.u32(what + " count")
	if err != nil {
		return 0, err
	}
	if elemSize > 0 && int(n) > (len(s.buf)-s.off)/elemSize {
		return 0, s.fail(fmt.Sprintf("%s count %d exceeds remaining payload", what, n))
	}
	return int(n), nil
}

func (s *scanner) str(what string) (string, error) {
	n, err := s.count(what+" length", 1)
	if err != nil {
		return "", err
	}
	p, err := s.take(n, what)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func (s *scanner) floats(what string) ([]float64, error) {
	n, err := s.count(what, 8)
	if err != nil {
		return nil, err
	}
	vs := make([]float64, n)
	for i := range vs {
		if vs[i], err = s.f64(what); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func (s *scanner) bytes(what string) ([]byte, error) {
	n, err := s.count(what+" length", 1)
	if err != nil {
		return nil, err
	}
	p, err := s.take(n, what)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// done rejects trailing bytes: a valid payload is consumed exactly.
func (s *scanner) done() error {
	if s.off != len(s.buf) {
		return s.fail(fmt.Sprintf("%d trailing bytes", len(s.buf)-s.off))
	}
	return nil
}
