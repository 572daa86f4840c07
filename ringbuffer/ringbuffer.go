// Package ringbuffer is a fixed size byte FIFO. It is not safe for
// concurrent use.
package ringbuffer

import "errors"

type RingBuffer struct {
	buffer []byte
	begin  int
	end    int
	full   bool
}

var (
	ErrEmpty = errors.New("buffer is empty")
	ErrFull  = errors.New("buffer is full")
)

const (
	defaultBufferSz = 256
)

func New(sz int) *RingBuffer {
	if sz <= 0 {
		sz = defaultBufferSz
	}
	return &RingBuffer{buffer: make([]byte, sz)}
}

// Read drains up to len(p) bytes. It returns ErrEmpty only when nothing was
// buffered.
func (r *RingBuffer) Read(p []byte) (n int, err error) {
	if r.Len() == 0 {
		return 0, ErrEmpty
	}
	for n < len(p) && r.Len() > 0 {
		// Copy the contiguous run starting at begin
		stop := r.end
		if stop <= r.begin {
			stop = len(r.buffer)
		}
		c := copy(p[n:], r.buffer[r.begin:stop])
		n += c
		r.begin = (r.begin + c) % len(r.buffer)
		r.full = false
	}
	return n, nil
}

// Write buffers as much of p as fits. A short write returns ErrFull.
func (r *RingBuffer) Write(p []byte) (n int, err error) {
	for n < len(p) {
		if r.full {
			return n, ErrFull
		}
		stop := r.begin
		if stop <= r.end {
			stop = len(r.buffer)
		}
		c := copy(r.buffer[r.end:stop], p[n:])
		n += c
		r.end = (r.end + c) % len(r.buffer)
		if r.end == r.begin {
			r.full = true
		}
	}
	return n, nil
}

func (r *RingBuffer) WriteString(str string) (n int, err error) {
	for i := 0; i < len(str); i++ {
		if err = r.WriteByte(str[i]); err != nil {
			return n, err
		}
		n++
	}
	return
}

func (r *RingBuffer) ReadByte() (byte, error) {
	if r.Len() == 0 {
		return 0, ErrEmpty
	}

	b := r.buffer[r.begin]
	r.begin = (r.begin + 1) % len(r.buffer)

	// The buffer would no longer be full
	r.full = false
	return b, nil
}

func (r *RingBuffer) WriteByte(b byte) error {
	if r.full {
		return ErrFull
	}

	r.buffer[r.end] = b
	r.end = (r.end + 1) % len(r.buffer)

	// Check if the next byte is the begin iterator
	if r.end == r.begin {
		r.full = true
	}
	return nil
}

func (r *RingBuffer) Len() int {
	switch {
	case r.full:
		return len(r.buffer)
	case r.end >= r.begin:
		return r.end - r.begin
	default:
		return len(r.buffer) - r.begin + r.end
	}
}

func (r *RingBuffer) Cap() int {
	return len(r.buffer)
}

func (r *RingBuffer) Free() int {
	return len(r.buffer) - r.Len()
}

func (r *RingBuffer) Reset() {
	r.begin, r.end, r.full = 0, 0, false
}
