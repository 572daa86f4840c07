package sim

import (
	"errors"
	"io"

	"omibyte.io/rvk/ringbuffer"
)

// Console is a UART transmitter: writes land in the transmit FIFO, Flush
// drains it to the host side.
type Console struct {
	fifo *ringbuffer.RingBuffer
	out  io.Writer
}

func NewConsole(out io.Writer, fifo int) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{fifo: ringbuffer.New(fifo), out: out}
}

// Write queues p, draining the FIFO whenever it fills up.
func (c *Console) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := c.fifo.Write(p[written:])
		written += n
		if errors.Is(err, ringbuffer.ErrFull) {
			if err := c.Flush(); err != nil {
				return written, err
			}
		} else if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Flush drains the transmit FIFO.
func (c *Console) Flush() error {
	buf := make([]byte, c.fifo.Len())
	n, err := c.fifo.Read(buf)
	if errors.Is(err, ringbuffer.ErrEmpty) {
		return nil
	}
	_, err = c.out.Write(buf[:n])
	return err
}

// Pending is the number of bytes waiting in the FIFO.
func (c *Console) Pending() int {
	return c.fifo.Len()
}
