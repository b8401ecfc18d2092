// Package atlas packs the frames of many Aseprite sprites into one bitmap.
package atlas

import (
	"image"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoSources is returned when the pattern matches no file.
	ErrNoSources = errors.New("atlas: no sprite sources")

	// ErrDuplicateName is returned when two sources map to the same sprite name.
	ErrDuplicateName = errors.New("atlas: duplicate sprite name")

	// ErrUnknownSprite is returned by lookups of a name the atlas does not hold.
	ErrUnknownSprite = errors.New("atlas: unknown sprite")
)

// Range is a run of frames in Atlas.Frames.
type Range struct {
	Start int
	Count int
}

// End returns the index after the last frame.
func (r Range) End() int {
	return r.Start + r.Count
}

// Atlas is one RGBA bitmap holding every frame of every sprite.
type Atlas struct {
	Width, Height int

	// Pixels is Width*Height non-premultiplied RGBA pixels.
	Pixels []byte

	// Frames holds each frame's rectangle in load order.
	Frames []image.Rectangle

	// Durations is index-parallel to Frames.
	Durations []time.Duration

	names []string
	index map[string]Range
}

// Names returns the sprite names in load order.
func (a *Atlas) Names() []string {
	return append([]string(nil), a.names...)
}

// Lookup returns the frame range of the named sprite.
func (a *Atlas) Lookup(name string) (Range, bool) {
	r, ok := a.index[name]
	return r, ok
}

// LookupFramesByName returns the rectangles of the named sprite's frames.
func (a *Atlas) LookupFramesByName(name string) ([]image.Rectangle, error) {
	r, ok := a.index[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSprite, "%q", name)
	}
	return a.Frames[r.Start:r.End():r.End()], nil
}

// FrameDurations returns the display time of each of the named sprite's frames.
func (a *Atlas) FrameDurations(name string) ([]time.Duration, error) {
	r, ok := a.index[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSprite, "%q", name)
	}
	return a.Durations[r.Start:r.End():r.End()], nil
}

// Image wraps Pixels without copying.
func (a *Atlas) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    a.Pixels,
		Stride: a.Width * 4,
		Rect:   image.Rect(0, 0, a.Width, a.Height),
	}
}
