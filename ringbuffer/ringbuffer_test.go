package ringbuffer

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteRead(t *testing.T) {
	r := New(8)
	if n, err := r.Write([]byte("hello")); n != 5 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if r.Len() != 5 || r.Free() != 3 {
		t.Errorf("Len = %d, Free = %d", r.Len(), r.Free())
	}

	p := make([]byte, 3)
	if n, _ := r.Read(p); n != 3 || string(p) != "hel" {
		t.Fatalf("Read = %d %q", n, p)
	}

	// Wraps around the end of the backing array.
	if n, err := r.Write([]byte("world!")); n != 6 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if r.Len() != 8 {
		t.Errorf("Len = %d, want 8", r.Len())
	}

	out := make([]byte, 16)
	n, err := r.Read(out)
	if err != nil || string(out[:n]) != "loworld!" {
		t.Errorf("Read = %q, %v", out[:n], err)
	}
	if _, err := r.Read(out); !errors.Is(err, ErrEmpty) {
		t.Errorf("Read on empty: err = %v", err)
	}
}

func TestShortWrite(t *testing.T) {
	r := New(4)
	n, err := r.Write([]byte("abcdef"))
	if n != 4 || !errors.Is(err, ErrFull) {
		t.Errorf("Write = %d, %v", n, err)
	}
	if err := r.WriteByte('x'); !errors.Is(err, ErrFull) {
		t.Errorf("WriteByte on full: %v", err)
	}
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			break
		}
		buf.WriteByte(b)
	}
	if buf.String() != "abcd" {
		t.Errorf("drained %q", buf.String())
	}
}

func TestWriteString(t *testing.T) {
	r := New(0)
	if r.Cap() != defaultBufferSz {
		t.Errorf("Cap = %d", r.Cap())
	}
	if n, err := r.WriteString("uart"); n != 4 || err != nil {
		t.Errorf("WriteString = %d, %v", n, err)
	}
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after Reset = %d", r.Len())
	}
}
