// Package asetest writes small Aseprite files for tests.
package asetest

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zlib"
)

const (
	ChunkLayer = 0x2004
	ChunkCel   = 0x2005
	ChunkTags  = 0x2018
)

// Cel describes one cel chunk. When Data is set it replaces the encoded body
// that follows the 16 byte cel header.
type Cel struct {
	Layer   uint16
	X, Y    int16
	Opacity uint8
	Type    uint16
	Z       int16

	Width, Height uint16
	Pixels        []byte
	Link          uint16
	Data          []byte
}

// Frame is a frame header followed by raw chunks.
type Frame struct {
	Duration uint16
	Chunks   [][]byte

	// LegacyOnly writes the chunk count in the old 16 bit field only.
	LegacyOnly bool
	Magic      uint16
}

// Sprite is a whole file.
type Sprite struct {
	Width, Height uint16
	Frames        []Frame
	Magic         uint16
	// SizeDelta is added to the declared file size.
	SizeDelta int
}

// Zlib compresses b.
func Zlib(b []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(b)
	w.Close()
	return buf.Bytes()
}

// Chunk frames payload with a chunk header.
func Chunk(typ uint16, payload []byte) []byte {
	out := binary.LittleEndian.AppendUint32(nil, uint32(6+len(payload)))
	out = binary.LittleEndian.AppendUint16(out, typ)
	return append(out, payload...)
}

// Encode returns the cel as a complete chunk.
func (c Cel) Encode() []byte {
	le := binary.LittleEndian
	b := le.AppendUint16(nil, c.Layer)
	b = le.AppendUint16(b, uint16(c.X))
	b = le.AppendUint16(b, uint16(c.Y))
	b = append(b, c.Opacity)
	b = le.AppendUint16(b, c.Type)
	b = le.AppendUint16(b, uint16(c.Z))
	b = append(b, 0, 0, 0, 0, 0)
	switch {
	case c.Data != nil:
		b = append(b, c.Data...)
	case c.Type == 1:
		b = le.AppendUint16(b, c.Link)
	default:
		b = le.AppendUint16(b, c.Width)
		b = le.AppendUint16(b, c.Height)
		if c.Type == 2 {
			b = append(b, Zlib(c.Pixels)...)
		} else {
			b = append(b, c.Pixels...)
		}
	}
	return Chunk(ChunkCel, b)
}

// Encode returns the file bytes.
func (s Sprite) Encode() []byte {
	le := binary.LittleEndian
	var body []byte
	for _, f := range s.Frames {
		var chunks []byte
		for _, c := range f.Chunks {
			chunks = append(chunks, c...)
		}
		magic := f.Magic
		if magic == 0 {
			magic = 0xF1FA
		}
		h := le.AppendUint32(nil, uint32(16+len(chunks)))
		h = le.AppendUint16(h, magic)
		if f.LegacyOnly {
			h = le.AppendUint16(h, uint16(len(f.Chunks)))
		} else {
			h = le.AppendUint16(h, 0xFFFF)
		}
		h = le.AppendUint16(h, f.Duration)
		h = append(h, 0, 0)
		if f.LegacyOnly {
			h = le.AppendUint32(h, 0)
		} else {
			h = le.AppendUint32(h, uint32(len(f.Chunks)))
		}
		body = append(body, h...)
		body = append(body, chunks...)
	}

	magic := s.Magic
	if magic == 0 {
		magic = 0xA5E0
	}
	size := 128 + len(body)
	out := le.AppendUint32(nil, uint32(size+s.SizeDelta))
	out = le.AppendUint16(out, magic)
	out = le.AppendUint16(out, uint16(len(s.Frames)))
	out = le.AppendUint16(out, s.Width)
	out = le.AppendUint16(out, s.Height)
	out = le.AppendUint16(out, 32) // color depth
	out = append(out, make([]byte, 128-len(out))...)
	return append(out, body...)
}

// Solid returns w*h RGBA pixels of one colour.
func Solid(w, h int, r, g, b, a byte) []byte {
	out := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		out = append(out, r, g, b, a)
	}
	return out
}

// Animation returns a sprite with one compressed full-canvas cel per frame,
// frame i filled with the colour {i+1, i+1, i+1, 255}.
func Animation(w, h uint16, frames int) Sprite {
	s := Sprite{Width: w, Height: h}
	for i := 0; i < frames; i++ {
		v := byte(i + 1)
		cel := Cel{Opacity: 255, Type: 2, Width: w, Height: h, Pixels: Solid(int(w), int(h), v, v, v, 255)}
		s.Frames = append(s.Frames, Frame{
			Duration: 100,
			Chunks:   [][]byte{Chunk(ChunkLayer, make([]byte, 18)), cel.Encode()},
		})
	}
	return s
}
