// Package rectpack places rectangles without overlap inside a bin using a
// shelf heuristic.
//
// Rectangles are sorted tallest first and laid out left to right on
// horizontal shelves. Each shelf is as tall as the tallest rectangle placed
// on it; when a rectangle fits on no existing shelf a new one is opened below
// the last. Packing fails as a whole if any rectangle can not be placed.
package rectpack

import (
	"cmp"
	"math"
	"slices"

	"github.com/pkg/errors"
)

// ErrPackingFailed is returned when the bin can not hold every rectangle.
var ErrPackingFailed = errors.New("rectpack: packing failed")

// WidthPerRect is the bin width granted per rectangle by AutoWidth.
const WidthPerRect = 8

// Unbounded is the bin height used when none is configured.
const Unbounded = math.MaxInt32

// Rect is a packing request (ID, W, H) and its result (X, Y).
type Rect struct {
	ID   int
	W, H int
	X, Y int
}

// Max returns the bottom-right corner of r.
func (r Rect) Max() (x, y int) {
	return r.X + r.W, r.Y + r.H
}

// Bin bounds the packing area. Padding is kept free to the right of and
// below every rectangle.
type Bin struct {
	Width   int
	Height  int
	Padding int
}

// AutoWidth returns a bin width of WidthPerRect pixels per rectangle, never
// narrower than the widest rectangle.
func AutoWidth(rects []Rect, padding int) int {
	w := len(rects) * WidthPerRect
	for _, r := range rects {
		w = max(w, r.W+padding)
	}
	return w
}

// shelf represents a horizontal strip in the bin.
type shelf struct {
	y      int // Y position of shelf top
	height int // Height of the shelf (tallest item so far)
	x      int // Current X position (next free slot)
}

type packer struct {
	bin     Bin
	shelves []shelf
}

// place finds space for a w*h rectangle.
func (p *packer) place(w, h int) (x, y int, ok bool) {
	paddedW := w + p.bin.Padding
	paddedH := h + p.bin.Padding

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.x+paddedW > p.bin.Width {
			continue
		}
		if h > s.height {
			// Only the last shelf can grow; there is nothing below it.
			if i != len(p.shelves)-1 || s.y+paddedH > p.bin.Height {
				continue
			}
			s.height = h
		}
		x, y = s.x, s.y
		s.x += paddedW
		return x, y, true
	}

	newY := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		newY = last.y + last.height + p.bin.Padding
	}
	if paddedW > p.bin.Width || newY+paddedH > p.bin.Height {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: h, x: paddedW})
	return 0, newY, true
}

// Pack assigns X and Y to every rectangle. The result is a new slice in the
// same order as rects with IDs, widths and heights unchanged.
func Pack(rects []Rect, bin Bin) ([]Rect, error) {
	if bin.Width <= 0 || bin.Height <= 0 || bin.Padding < 0 {
		return nil, errors.Wrapf(ErrPackingFailed, "invalid bin %dx%d padding %d", bin.Width, bin.Height, bin.Padding)
	}
	out := slices.Clone(rects)
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(out[b].H, out[a].H); c != 0 {
			return c
		}
		return cmp.Compare(out[b].W, out[a].W)
	})

	p := &packer{bin: bin, shelves: make([]shelf, 0, 16)}
	for _, i := range order {
		r := &out[i]
		if r.W < 0 || r.H < 0 {
			return nil, errors.Wrapf(ErrPackingFailed, "rect %d has size %dx%d", r.ID, r.W, r.H)
		}
		if r.W == 0 || r.H == 0 {
			r.X, r.Y = 0, 0
			continue
		}
		x, y, ok := p.place(r.W, r.H)
		if !ok {
			return nil, errors.Wrapf(ErrPackingFailed, "rect %d (%dx%d) does not fit a %dx%d bin", r.ID, r.W, r.H, bin.Width, bin.Height)
		}
		r.X, r.Y = x, y
	}
	return out, nil
}

// Bounds returns the smallest width and height holding every rectangle.
func Bounds(rects []Rect) (w, h int) {
	for _, r := range rects {
		if r.W == 0 || r.H == 0 {
			continue
		}
		mx, my := r.Max()
		w, h = max(w, mx), max(h, my)
	}
	return w, h
}

// Overlaps reports whether a and b share any pixel.
func Overlaps(a, b Rect) bool {
	if a.W <= 0 || a.H <= 0 || b.W <= 0 || b.H <= 0 {
		return false
	}
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}
