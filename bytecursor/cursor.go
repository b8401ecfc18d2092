// Package bytecursor reads little-endian values from a byte slice.
package bytecursor

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrOutOfBounds is returned when a read would cross the end of the buffer.
var ErrOutOfBounds = errors.New("bytecursor: read out of bounds")

// Fixed lists the scalar types ReadFixed understands.
type Fixed interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64
}

// Cursor is a read position over a borrowed buffer. The buffer is never
// copied or modified; slices returned by Bytes alias it.
type Cursor struct {
	data []byte
	off  int
}

// New returns a cursor positioned at the start of data.
func New(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > len(c.data)-c.off {
		return nil, errors.Wrapf(ErrOutOfBounds, "%d bytes at offset %d of %d", n, c.off, len(c.data))
	}
	b := c.data[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

// Bytes returns the next n bytes without copying them.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	return c.take(n)
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.take(n)
	return err
}

// ReadFixed consumes sizeof(T) bytes as a little-endian T.
func ReadFixed[T Fixed](c *Cursor) (T, error) {
	var v T
	b, err := c.take(int(unsafe.Sizeof(v)))
	if err != nil {
		return v, err
	}
	switch len(b) {
	case 1:
		v = T(b[0])
	case 2:
		v = T(binary.LittleEndian.Uint16(b))
	case 4:
		v = T(binary.LittleEndian.Uint32(b))
	case 8:
		v = T(binary.LittleEndian.Uint64(b))
	}
	return v, nil
}

func (c *Cursor) U8() (uint8, error) {
	return ReadFixed[uint8](c)
}

func (c *Cursor) U16() (uint16, error) {
	return ReadFixed[uint16](c)
}

func (c *Cursor) I16() (int16, error) {
	return ReadFixed[int16](c)
}

func (c *Cursor) U32() (uint32, error) {
	return ReadFixed[uint32](c)
}

func (c *Cursor) I32() (int32, error) {
	return ReadFixed[int32](c)
}
