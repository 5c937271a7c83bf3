// Package testutil derives deterministic page edits from fuzz input.
package testutil

// ByteStream reads bytes sequentially from fuzz input.
//
// When the input is exhausted all reads return zero, so the same input
// always produces the same sequence of values.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over b.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// Byte returns the next byte, or 0 if exhausted.
func (s *ByteStream) Byte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// Intn returns a value in [0, n). Returns 0 for n <= 0.
func (s *ByteStream) Intn(n int) int {
	if n <= 0 {
		return 0
	}

	return int(s.Byte()) % n
}

// Bool returns a boolean derived from the next byte.
func (s *ByteStream) Bool() bool {
	return s.Byte()&1 == 1
}

// Pick returns one of choices.
func Pick[T any](s *ByteStream, choices []T) T {
	return choices[s.Intn(len(choices))]
}
