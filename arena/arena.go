// Package arena implements a fixed-capacity bump allocator.
//
// An Arena hands out byte regions from one contiguous buffer in increasing
// order. Regions are never freed one by one: a Mark taken with Arena.Mark can
// be passed to Arena.Restore to release everything allocated after it, and
// Arena.Clear releases everything. An Arena never grows; a request that does
// not fit fails with ErrOutOfMemory.
//
// An Arena is not safe for concurrent use.
package arena

import (
	"github.com/pkg/errors"
)

const (
	Kilobyte = 1024
	Megabyte = 1024 * Kilobyte
	Gigabyte = 1024 * Megabyte
)

var (
	// ErrOutOfMemory is returned when an allocation exceeds the remaining capacity.
	ErrOutOfMemory = errors.New("arena: out of memory")

	// ErrBadMark is returned when a mark does not belong to the arena or lies
	// past its current position.
	ErrBadMark = errors.New("arena: invalid mark")

	// ErrReleased is returned by every operation on a released arena.
	ErrReleased = errors.New("arena: released")
)

// Arena is a linear allocator over a single buffer.
type Arena struct {
	buf      []byte
	used     int
	released bool
}

// Mark is a saved arena position.
type Mark struct {
	a   *Arena
	pos int
}

// New creates an arena that can hand out up to capacity bytes.
func New(capacity int) *Arena {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena{buf: make([]byte, capacity)}
}

// Alloc returns n bytes from the arena. The contents are whatever a previous
// allocation left behind; use AllocZero for cleared memory.
//
// The returned slice has its capacity clipped to n so appending to it can not
// spill into a neighbouring region.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a.released {
		return nil, ErrReleased
	}
	if n < 0 {
		return nil, errors.Errorf("arena: negative allocation of %d bytes", n)
	}
	if n > len(a.buf)-a.used {
		return nil, errors.Wrapf(ErrOutOfMemory, "requested %d bytes, %d of %d in use", n, a.used, len(a.buf))
	}
	r := a.buf[a.used : a.used+n : a.used+n]
	a.used += n
	return r, nil
}

// AllocZero is Alloc with the returned region set to zero.
func (a *Arena) AllocZero(n int) ([]byte, error) {
	r, err := a.Alloc(n)
	if err != nil {
		return nil, err
	}
	clear(r)
	return r, nil
}

// Mark saves the current position.
func (a *Arena) Mark() Mark {
	return Mark{a: a, pos: a.used}
}

// Restore rewinds the arena to m. Every region allocated after m was taken
// becomes invalid and will be handed out again by later allocations.
func (a *Arena) Restore(m Mark) error {
	if m.a != a || m.pos > a.used {
		return errors.Wrapf(ErrBadMark, "mark at %d, arena at %d", m.pos, a.used)
	}
	a.used = m.pos
	return nil
}

// Scope runs fn and rewinds the arena to where it was before fn ran,
// whatever fn returns.
func (a *Arena) Scope(fn func() error) error {
	m := a.Mark()
	err := fn()
	if rerr := a.Restore(m); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Clear releases every allocation.
func (a *Arena) Clear() {
	a.used = 0
}

// Release drops the backing buffer. The arena can not be used afterwards.
func (a *Arena) Release() {
	a.buf = nil
	a.used = 0
	a.released = true
}

// Used returns the number of bytes handed out.
func (a *Arena) Used() int {
	return a.used
}

// Cap returns the arena capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}
