package conn

import "errors"

// MaxBufferSize bounds the output buffer. Exceeding it closes the connection.
const MaxBufferSize = 16 << 20

// ErrBufferFull is returned by buffer.append when growing would push the
// buffer past MaxBufferSize.
var ErrBufferFull = errors.New("wsconn: buffer exceeds MaxBufferSize")

// buffer is a contiguous growable byte sequence with a head offset, used for
// both in_buf and out_buf. Prefix removal shifts the head instead of copying
// until the head grows past half of len(data), at which point it
// compacts — same zero-copy-until-necessary idiom as engine.Session.Buf.
type buffer struct {
	data []byte
	head int
}

// Len returns the number of unconsumed bytes.
func (b *buffer) Len() int {
	return len(b.data) - b.head
}

// Bytes returns the unconsumed bytes. Valid only until the next mutation.
func (b *buffer) Bytes() []byte {
	return b.data[b.head:]
}

// append adds data to the tail, failing if the result would exceed max.
func (b *buffer) append(p []byte, max int) error {
	if b.Len()+len(p) > max {
		return ErrBufferFull
	}
	if b.head > 0 && b.head == len(b.data) {
		b.data = b.data[:0]
		b.head = 0
	}
	b.data = append(b.data, p...)
	return nil
}

// advance drops n consumed bytes from the front.
func (b *buffer) advance(n int) {
	b.head += n
	if b.head >= len(b.data) {
		b.data = b.data[:0]
		b.head = 0
		return
	}
	// compact once the consumed prefix dominates, so Bytes() doesn't retain
	// an ever-growing backing array across many small advances.
	if b.head*2 > len(b.data) {
		copy(b.data, b.data[b.head:])
		b.data = b.data[:len(b.data)-b.head]
		b.head = 0
	}
}

// reset empties the buffer without releasing its backing array.
func (b *buffer) reset() {
	b.data = b.data[:0]
	b.head = 0
}
