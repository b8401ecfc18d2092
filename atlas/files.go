package atlas

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/retroblast-engine/aseatlas/arena"
)

// Files is where sprite sources come from.
type Files interface {
	// Enumerate returns the paths matching pattern, in load order.
	Enumerate(pattern string) ([]string, error)

	// ReadWholeFile reads the file at path into memory taken from a.
	ReadWholeFile(a *arena.Arena, path string) ([]byte, error)
}

// OSFiles reads sprites from the operating system's file system. Patterns
// use filepath.Match syntax; a leading "~/" stands for the home directory.
type OSFiles struct{}

func (OSFiles) Enumerate(pattern string) ([]string, error) {
	if rest, ok := strings.CutPrefix(pattern, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "expand ~")
		}
		pattern = filepath.Join(home, rest)
	}
	m, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	slices.Sort(m)
	return m, nil
}

func (OSFiles) ReadWholeFile(a *arena.Arena, name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return readAll(a, f, fi.Size(), name)
}

// FSFiles reads sprites from an fs.FS. Patterns use path.Match syntax.
type FSFiles struct {
	FS fs.FS
}

func (f FSFiles) Enumerate(pattern string) ([]string, error) {
	m, err := fs.Glob(f.FS, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	slices.Sort(m)
	return m, nil
}

func (f FSFiles) ReadWholeFile(a *arena.Arena, name string) ([]byte, error) {
	r, err := f.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	fi, err := r.Stat()
	if err != nil {
		return nil, err
	}
	return readAll(a, r, fi.Size(), name)
}

func readAll(a *arena.Arena, r io.Reader, size int64, name string) ([]byte, error) {
	if size < 0 || size > int64(a.Cap()) {
		return nil, errors.Wrapf(arena.ErrOutOfMemory, "%s is %d bytes, arena holds %d", name, size, a.Cap())
	}
	buf, err := a.Alloc(int(size))
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return buf, nil
}

// SpriteName is path without its directory and extension.
func SpriteName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}
