// Package aseatlas decodes Aseprite sprite files into frame-sized RGBA
// canvases. Pixel memory is taken from an arena.Arena supplied by the caller.
package aseatlas

import (
	"bytes"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/retroblast-engine/aseatlas/arena"
	"github.com/retroblast-engine/aseatlas/bytecursor"
)

// BytesPerPixel is the size of one RGBA pixel (non-premultiplied, R first).
const BytesPerPixel = 4

// File is a decoded Aseprite document.
type File struct {
	Size   DWORD // File size as declared in the header (4 bytes)
	Width  WORD  // Width in pixels (2 bytes)
	Height WORD  // Height in pixels (2 bytes)
	Frames []Frame
}

// FrameCount returns the number of frames declared in the header.
func (f *File) FrameCount() int {
	return len(f.Frames)
}

// Frame is one animation frame and its chunks, in file order.
type Frame struct {
	Size     DWORD // Bytes in frame, informational (4 bytes)
	Duration WORD  // Frame duration in milliseconds (2 bytes)
	Chunks   []Chunk
}

// Chunk is a length-prefixed record inside a frame.
type Chunk struct {
	Size DWORD // Size of the chunk, header included (4 bytes)
	Type ChunkType
	Body ChunkBody
}

// ChunkBody is one of *CelChunk or SkippedChunk.
type ChunkBody interface {
	chunkBody()
}

// SkippedChunk marks a chunk that was recognised by its length only.
type SkippedChunk struct{}

// CelChunk determines where to put a cel in the specified layer/frame.
type CelChunk struct {
	LayerIndex   WORD        // Layer index (2 bytes)
	XPosition    SHORT       // X position (2 bytes)
	YPosition    SHORT       // Y position (2 bytes)
	OpacityLevel BYTE        // Opacity level (1 byte)
	CelType      CelDataType // Cel Type (2 bytes)
	ZIndex       SHORT       // Z-Index (2 bytes)
	Content      CelContent

	// Canvas is the cel composited into a sprite-sized, initially transparent
	// RGBA buffer. It is nil for linked cels.
	Canvas []byte
}

// CelContent is one of LinkedCel or *CompressedImage.
type CelContent interface {
	celContent()
}

// LinkedCel reuses the cel found at FramePosition on the same layer.
type LinkedCel struct {
	FramePosition WORD
}

// CompressedImage is an inflated cel image, sized to the cel only.
type CompressedImage struct {
	Width  WORD
	Height WORD
	Pixels []byte
}

func (SkippedChunk) chunkBody() {}
func (*CelChunk) chunkBody()    {}

func (LinkedCel) celContent()        {}
func (*CompressedImage) celContent() {}

// AnimationFrame is the view of a frame handed to consumers.
type AnimationFrame struct {
	Width, Height int
	DurationMs    WORD
	LayerIndex    WORD
	X, Y          int
	Opacity       BYTE
	ZIndex        SHORT

	// LinkedFrame is the frame whose image this frame reuses, or -1.
	LinkedFrame int

	// Pixels is the composited canvas, or nil when the frame has no image.
	Pixels []byte
}

// Duration returns how long the frame should be displayed.
func (a AnimationFrame) Duration() time.Duration {
	return time.Duration(a.DurationMs) * time.Millisecond
}

// Decoder parses Aseprite files, allocating pixel buffers from an arena.
type Decoder struct {
	arena *arena.Arena
	log   zerolog.Logger
}

// NewDecoder returns a decoder that allocates from a and logs to log.
func NewDecoder(a *arena.Arena, log zerolog.Logger) *Decoder {
	return &Decoder{arena: a, log: log}
}

// Decode parses data with a silent decoder.
func Decode(a *arena.Arena, data []byte) (*File, error) {
	return NewDecoder(a, zerolog.Nop()).Decode(data)
}

// Decode parses a whole Aseprite file. The returned File does not reference
// data; its pixel buffers live in the decoder's arena.
func (d *Decoder) Decode(data []byte) (*File, error) {
	c := bytecursor.New(data)

	size, err := c.U32()
	if err != nil {
		return nil, err
	}
	magic, err := c.U16()
	if err != nil {
		return nil, err
	}
	if magic != MagicNumber {
		return nil, errors.Wrapf(ErrMalformedHeader, "magic number 0x%04X, want 0x%04X", magic, MagicNumber)
	}
	if int64(size) != int64(len(data)) {
		return nil, errors.Wrapf(ErrMalformedHeader, "declared size %d, have %d bytes", size, len(data))
	}
	frameCount, err := c.U16()
	if err != nil {
		return nil, err
	}
	width, err := c.U16()
	if err != nil {
		return nil, err
	}
	height, err := c.U16()
	if err != nil {
		return nil, err
	}
	if err := c.Skip(headerReservedSize); err != nil {
		return nil, err
	}

	d.log.Debug().
		Uint32("size", size).
		Uint16("frames", frameCount).
		Uint16("width", width).
		Uint16("height", height).
		Msg("aseprite header")

	f := &File{
		Size:   size,
		Width:  width,
		Height: height,
		Frames: make([]Frame, frameCount),
	}
	for i := range f.Frames {
		if err := d.decodeFrame(c, f, &f.Frames[i]); err != nil {
			return nil, errors.WithMessagef(err, "frame %d", i)
		}
	}
	if c.Remaining() != 0 {
		d.log.Debug().Int("bytes", c.Remaining()).Msg("trailing bytes after last frame")
	}
	return f, nil
}

func (d *Decoder) decodeFrame(c *bytecursor.Cursor, f *File, fr *Frame) error {
	size, err := c.U32()
	if err != nil {
		return err
	}
	magic, err := c.U16()
	if err != nil {
		return err
	}
	if magic != MagicNumberFrame {
		return errors.Wrapf(ErrMalformedHeader, "frame magic number 0x%04X, want 0x%04X", magic, MagicNumberFrame)
	}
	oldChunkCount, err := c.U16()
	if err != nil {
		return err
	}
	duration, err := c.U16()
	if err != nil {
		return err
	}
	if err := c.Skip(frameReservedSize); err != nil {
		return err
	}
	newChunkCount, err := c.U32()
	if err != nil {
		return err
	}

	// The new count is authoritative. Files written before it existed leave
	// it at zero and keep the real count in the old field; 0xFFFF there means
	// the new field is the one in use.
	chunkCount := newChunkCount
	if chunkCount == 0 && oldChunkCount != oldChunkCountInUse {
		chunkCount = uint32(oldChunkCount)
	}
	if int64(chunkCount)*chunkHeaderSize > int64(c.Remaining()) {
		return errors.Wrapf(bytecursor.ErrOutOfBounds, "%d chunks can not fit in %d bytes", chunkCount, c.Remaining())
	}

	d.log.Debug().Uint32("size", size).Uint16("duration", duration).Uint32("chunks", chunkCount).Msg("frame")

	fr.Size = size
	fr.Duration = duration
	fr.Chunks = make([]Chunk, chunkCount)
	for i := range fr.Chunks {
		if err := d.decodeChunk(c, f, &fr.Chunks[i]); err != nil {
			return errors.WithMessagef(err, "chunk %d", i)
		}
	}
	return nil
}

func (d *Decoder) decodeChunk(c *bytecursor.Cursor, f *File, ch *Chunk) error {
	start := c.Offset()
	size, err := c.U32()
	if err != nil {
		return err
	}
	typ, err := bytecursor.ReadFixed[ChunkType](c)
	if err != nil {
		return err
	}
	if size < chunkHeaderSize {
		return errors.Wrapf(ErrMalformedHeader, "%v chunk of %d bytes", typ, size)
	}
	ch.Size = size
	ch.Type = typ

	switch typ {
	case ChunkCel:
		cel, err := d.decodeCel(c, f, start, int(size))
		if err != nil {
			return errors.WithMessage(err, "cel")
		}
		ch.Body = cel
		// Anything the cel body left unread belongs to the chunk.
		return c.Skip(start + int(size) - c.Offset())
	default:
		d.log.Debug().Stringer("type", typ).Uint32("size", size).Msg("skipping chunk")
		ch.Body = SkippedChunk{}
		return c.Skip(int(size) - chunkHeaderSize)
	}
}

func (d *Decoder) decodeCel(c *bytecursor.Cursor, f *File, start, size int) (*CelChunk, error) {
	cel := &CelChunk{}
	var err error
	if cel.LayerIndex, err = c.U16(); err != nil {
		return nil, err
	}
	if cel.XPosition, err = c.I16(); err != nil {
		return nil, err
	}
	if cel.YPosition, err = c.I16(); err != nil {
		return nil, err
	}
	if cel.OpacityLevel, err = c.U8(); err != nil {
		return nil, err
	}
	if cel.CelType, err = bytecursor.ReadFixed[CelDataType](c); err != nil {
		return nil, err
	}
	if cel.ZIndex, err = c.I16(); err != nil {
		return nil, err
	}
	if err := c.Skip(celReservedSize); err != nil {
		return nil, err
	}

	d.log.Debug().
		Uint16("layer", cel.LayerIndex).
		Int16("x", cel.XPosition).
		Int16("y", cel.YPosition).
		Uint8("opacity", cel.OpacityLevel).
		Stringer("type", cel.CelType).
		Int16("z", cel.ZIndex).
		Msg("cel")

	switch cel.CelType {
	case LinkedCelData:
		pos, err := c.U16()
		if err != nil {
			return nil, err
		}
		cel.Content = LinkedCel{FramePosition: pos}
	case CompressedImageData:
		img, err := d.decodeCompressedImage(c, start, size)
		if err != nil {
			return nil, err
		}
		cel.Content = img
		canvas, err := d.arena.AllocZero(int(f.Width) * int(f.Height) * BytesPerPixel)
		if err != nil {
			return nil, errors.WithMessage(err, "cel canvas")
		}
		composite(canvas, int(f.Width), int(f.Height), img.Pixels, int(cel.XPosition), int(cel.YPosition), int(img.Width), int(img.Height))
		cel.Canvas = canvas
	case RawImageData, CompressedTilemapData:
		return nil, errors.Wrapf(ErrUnsupportedVariant, "%v", cel.CelType)
	default:
		return nil, errors.Wrapf(ErrUnsupportedVariant, "unknown cel type %d", WORD(cel.CelType))
	}

	if c.Offset() > start+size {
		return nil, errors.Wrapf(ErrMalformedHeader, "cel read %d bytes of a %d byte chunk", c.Offset()-start, size)
	}
	return cel, nil
}

func (d *Decoder) decodeCompressedImage(c *bytecursor.Cursor, start, size int) (*CompressedImage, error) {
	width, err := c.U16()
	if err != nil {
		return nil, err
	}
	height, err := c.U16()
	if err != nil {
		return nil, err
	}
	consumed := c.Offset() - start
	if consumed > size {
		return nil, errors.Wrapf(ErrMalformedHeader, "cel header of %d bytes in a %d byte chunk", consumed, size)
	}
	compressed, err := c.Bytes(size - consumed)
	if err != nil {
		return nil, err
	}
	pixels, err := d.arena.Alloc(int(width) * int(height) * BytesPerPixel)
	if err != nil {
		return nil, errors.WithMessage(err, "cel pixels")
	}
	if err := inflate(pixels, compressed); err != nil {
		return nil, errors.WithMessagef(err, "%dx%d cel", width, height)
	}

	d.log.Debug().Uint16("width", width).Uint16("height", height).Int("compressed", len(compressed)).Msg("inflated cel")

	return &CompressedImage{Width: width, Height: height, Pixels: pixels}, nil
}

// inflate decompresses the zlib stream src into exactly len(dst) bytes.
func inflate(dst, src []byte) error {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return errors.Wrap(ErrDecompressionFailed, err.Error())
	}
	defer r.Close()

	if _, err := io.ReadFull(r, dst); err != nil {
		return errors.Wrapf(ErrDecompressionFailed, "want %d bytes: %v", len(dst), err)
	}
	// The stream has to end here; reading to EOF also verifies the checksum.
	var extra [1]byte
	switch _, err := io.ReadFull(r, extra[:]); err {
	case io.EOF:
		return nil
	case nil:
		return errors.Wrapf(ErrDecompressionFailed, "stream inflates past %d bytes", len(dst))
	default:
		return errors.Wrap(ErrDecompressionFailed, err.Error())
	}
}

// composite copies a w*h image into the cw*ch canvas at (x, y). Rows and
// columns falling outside the canvas are dropped.
func composite(canvas []byte, cw, ch int, pix []byte, x, y, w, h int) {
	x0, x1 := max(x, 0), min(x+w, cw)
	if x0 >= x1 {
		return
	}
	n := (x1 - x0) * BytesPerPixel
	for row := max(0, -y); row < h && y+row < ch; row++ {
		src := (row*w + (x0 - x)) * BytesPerPixel
		dst := ((y+row)*cw + x0) * BytesPerPixel
		copy(canvas[dst:dst+n], pix[src:src+n])
	}
}

// AnimationFrame projects frame i onto its first cel.
func (f *File) AnimationFrame(i int) (AnimationFrame, error) {
	if i < 0 || i >= len(f.Frames) {
		return AnimationFrame{}, errors.Wrapf(ErrFrameIndex, "frame %d of %d", i, len(f.Frames))
	}
	return f.project(i), nil
}

// project builds the AnimationFrame of frame i, which must be in range.
func (f *File) project(i int) AnimationFrame {
	fr := &f.Frames[i]
	af := AnimationFrame{
		Width:       int(f.Width),
		Height:      int(f.Height),
		DurationMs:  fr.Duration,
		LinkedFrame: -1,
	}
	for _, ch := range fr.Chunks {
		cel, ok := ch.Body.(*CelChunk)
		if !ok {
			continue
		}
		af.LayerIndex = cel.LayerIndex
		af.X = int(cel.XPosition)
		af.Y = int(cel.YPosition)
		af.Opacity = cel.OpacityLevel
		af.ZIndex = cel.ZIndex
		af.Pixels = cel.Canvas
		if l, ok := cel.Content.(LinkedCel); ok {
			af.LinkedFrame = int(l.FramePosition)
		}
		break
	}
	return af
}

// AnimationFrames projects every frame, in order.
func (f *File) AnimationFrames() []AnimationFrame {
	out := make([]AnimationFrame, len(f.Frames))
	for i := range f.Frames {
		out[i] = f.project(i)
	}
	return out
}
