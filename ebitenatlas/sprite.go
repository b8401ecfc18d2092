// Package ebitenatlas draws atlas sprites with Ebitengine.
package ebitenatlas

import (
	"image"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/retroblast-engine/aseatlas/atlas"
)

// NewTexture uploads the atlas bitmap.
func NewTexture(at *atlas.Atlas) *ebiten.Image {
	return ebiten.NewImageFromImage(at.Image())
}

// Sprite is one animated sprite drawn from a shared atlas texture.
type Sprite struct {
	// X, Y is the top-left corner on screen.
	X, Y float64

	// ScaleX and ScaleY stretch the frame. NewSprite sets both to 1.
	ScaleX, ScaleY float64

	// Rotation is clockwise, in degrees, about the frame centre.
	Rotation float64

	FlipX, FlipY bool

	texture   *ebiten.Image
	frames    []image.Rectangle
	durations []time.Duration
	current   int
	elapsed   time.Duration
}

// NewSprite looks up name in at. texture must be the upload of at.
func NewSprite(texture *ebiten.Image, at *atlas.Atlas, name string) (*Sprite, error) {
	frames, err := at.LookupFramesByName(name)
	if err != nil {
		return nil, err
	}
	durations, err := at.FrameDurations(name)
	if err != nil {
		return nil, err
	}
	return newSprite(texture, frames, durations), nil
}

func newSprite(texture *ebiten.Image, frames []image.Rectangle, durations []time.Duration) *Sprite {
	return &Sprite{
		ScaleX:    1,
		ScaleY:    1,
		texture:   texture,
		frames:    frames,
		durations: durations,
	}
}

// Len returns the number of frames.
func (s *Sprite) Len() int { return len(s.frames) }

// Current returns the index of the frame being shown.
func (s *Sprite) Current() int { return s.current }

// SetFrame shows frame i, wrapped into range, and restarts its timer.
func (s *Sprite) SetFrame(i int) {
	if len(s.frames) == 0 {
		return
	}
	s.current = wrap(i, len(s.frames))
	s.elapsed = 0
}

// NextFrame advances one frame, wrapping to the first.
func (s *Sprite) NextFrame() { s.SetFrame(s.current + 1) }

// PreviousFrame steps back one frame, wrapping to the last.
func (s *Sprite) PreviousFrame() { s.SetFrame(s.current - 1) }

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Update advances the animation by dt, following each frame's duration.
// A frame with no duration lasts a single update.
func (s *Sprite) Update(dt time.Duration) {
	if len(s.frames) < 2 {
		return
	}
	s.elapsed += dt
	for {
		d := s.durations[s.current]
		if d <= 0 {
			s.current = wrap(s.current+1, len(s.frames))
			s.elapsed = 0
			return
		}
		if s.elapsed < d {
			return
		}
		s.elapsed -= d
		s.current = wrap(s.current+1, len(s.frames))
	}
}

// Bounds returns the current frame's rectangle in the atlas.
func (s *Sprite) Bounds() image.Rectangle {
	if len(s.frames) == 0 {
		return image.Rectangle{}
	}
	return s.frames[s.current]
}

// Frame returns the current frame as a sub-image of the texture.
func (s *Sprite) Frame() *ebiten.Image {
	return s.texture.SubImage(s.Bounds()).(*ebiten.Image)
}

// GeoM returns the transform Draw applies to the current frame.
func (s *Sprite) GeoM() ebiten.GeoM {
	r := s.Bounds()
	w, h := float64(r.Dx()), float64(r.Dy())

	var m ebiten.GeoM
	m.Translate(-w/2, -h/2)
	fx, fy := 1.0, 1.0
	if s.FlipX {
		fx = -1
	}
	if s.FlipY {
		fy = -1
	}
	m.Scale(fx*s.ScaleX, fy*s.ScaleY)
	m.Rotate(s.Rotation * math.Pi / 180)
	m.Translate(s.X+w*s.ScaleX/2, s.Y+h*s.ScaleY/2)
	return m
}

// Draw draws the current frame onto dst.
func (s *Sprite) Draw(dst *ebiten.Image) {
	if len(s.frames) == 0 {
		return
	}
	op := &ebiten.DrawImageOptions{GeoM: s.GeoM()}
	dst.DrawImage(s.Frame(), op)
}
