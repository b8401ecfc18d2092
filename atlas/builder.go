package atlas

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/retroblast-engine/aseatlas"
	"github.com/retroblast-engine/aseatlas/arena"
	"github.com/retroblast-engine/aseatlas/rectpack"
)

// Builder loads sprites through Files and packs them into an Atlas.
type Builder struct {
	files Files
	cfg   Config
	log   zerolog.Logger
}

// NewBuilder validates cfg and returns a builder reading from files.
func NewBuilder(files Files, cfg Config, log zerolog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{files: files, cfg: cfg, log: log}, nil
}

type source struct {
	name string
	path string
}

type sprite struct {
	frames []aseatlas.AnimationFrame
}

// worker decodes files with arenas nobody else touches.
type worker struct {
	files   Files
	scratch *arena.Arena
	pixels  *arena.Arena
	dec     *aseatlas.Decoder
}

func (b *Builder) newWorker() *worker {
	w := &worker{
		files:   b.files,
		scratch: arena.New(b.cfg.ScratchSize),
		pixels:  arena.New(b.cfg.FrameArenaSize),
	}
	w.dec = aseatlas.NewDecoder(w.pixels, b.log)
	return w
}

func (w *worker) release() {
	w.scratch.Release()
	w.pixels.Release()
}

// load decodes one source. The file bytes only live in scratch for the
// duration of the call; the decoded pixels stay in the worker's pixel arena.
func (w *worker) load(src source) (sprite, error) {
	var sp sprite
	err := w.scratch.Scope(func() error {
		data, err := w.files.ReadWholeFile(w.scratch, src.path)
		if err != nil {
			return err
		}
		f, err := w.dec.Decode(data)
		if err != nil {
			return err
		}
		sp.frames = resolveLinks(f.AnimationFrames())
		return nil
	})
	if err != nil {
		return sprite{}, errors.WithMessagef(err, "load %s", src.path)
	}
	return sp, nil
}

// resolveLinks points linked frames at the pixels of the frame they reuse,
// following chains of links in either direction. Cycles stay without pixels.
func resolveLinks(frames []aseatlas.AnimationFrame) []aseatlas.AnimationFrame {
	for changed := true; changed; {
		changed = false
		for i := range frames {
			l := frames[i].LinkedFrame
			if l < 0 || l >= len(frames) || frames[i].Pixels != nil || frames[l].Pixels == nil {
				continue
			}
			frames[i].Pixels = frames[l].Pixels
			changed = true
		}
	}
	return frames
}

// Build loads every file matching pattern and packs their frames. The atlas
// pixels are allocated from a; everything else used while building is
// released before Build returns.
func (b *Builder) Build(a *arena.Arena, pattern string) (*Atlas, error) {
	sources, err := b.enumerate(pattern)
	if err != nil {
		return nil, err
	}

	sprites, workers, err := b.loadAll(sources)
	defer func() {
		for _, w := range workers {
			w.release()
		}
	}()
	if err != nil {
		return nil, err
	}

	at := &Atlas{
		names: make([]string, 0, len(sources)),
		index: make(map[string]Range, len(sources)),
	}
	frames := make([]aseatlas.AnimationFrame, 0, 128)
	for i, sp := range sprites {
		name := sources[i].name
		at.names = append(at.names, name)
		at.index[name] = Range{Start: len(frames), Count: len(sp.frames)}
		frames = append(frames, sp.frames...)
		b.log.Debug().Str("sprite", name).Int("frames", len(sp.frames)).Msg("loaded sprite")
	}

	rects := make([]rectpack.Rect, len(frames))
	for i, fr := range frames {
		rects[i] = rectpack.Rect{ID: i, W: fr.Width, H: fr.Height}
	}
	bin := rectpack.Bin{Width: b.cfg.BinWidth, Height: b.cfg.BinHeight, Padding: b.cfg.Padding}
	if bin.Width == 0 {
		bin.Width = rectpack.AutoWidth(rects, bin.Padding)
	}
	if bin.Height == 0 {
		bin.Height = rectpack.Unbounded
	}
	packed, err := rectpack.Pack(rects, bin)
	if err != nil {
		return nil, err
	}
	at.Width, at.Height = rectpack.Bounds(packed)

	at.Pixels, err = a.AllocZero(at.Width * at.Height * aseatlas.BytesPerPixel)
	if err != nil {
		return nil, errors.WithMessagef(err, "atlas pixels %dx%d", at.Width, at.Height)
	}
	at.Frames = make([]image.Rectangle, len(packed))
	at.Durations = make([]time.Duration, len(packed))
	for _, r := range packed {
		fr := frames[r.ID]
		at.Frames[r.ID] = image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
		at.Durations[r.ID] = fr.Duration()
		if fr.Pixels == nil {
			continue
		}
		row := fr.Width * aseatlas.BytesPerPixel
		for y := 0; y < fr.Height; y++ {
			dst := ((r.Y+y)*at.Width + r.X) * aseatlas.BytesPerPixel
			copy(at.Pixels[dst:dst+row], fr.Pixels[y*row:(y+1)*row])
		}
	}

	b.log.Info().
		Int("sprites", len(sprites)).
		Int("frames", len(frames)).
		Int("width", at.Width).
		Int("height", at.Height).
		Msg("built texture atlas")
	return at, nil
}

func (b *Builder) enumerate(pattern string) ([]source, error) {
	paths, err := b.files.Enumerate(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNoSources, "pattern %q", pattern)
	}
	b.log.Info().Int("count", len(paths)).Str("pattern", pattern).Msg("found sprite assets")

	seen := make(map[string]string, len(paths))
	sources := make([]source, len(paths))
	for i, p := range paths {
		name := SpriteName(p)
		if prev, ok := seen[name]; ok {
			return nil, errors.Wrapf(ErrDuplicateName, "%q from %s and %s", name, prev, p)
		}
		seen[name] = p
		sources[i] = source{name: name, path: p}
		b.log.Debug().Str("sprite", name).Str("path", p).Msg("sprite asset")
	}
	return sources, nil
}

// loadAll decodes sources in load order. With more than one worker the files
// are decoded concurrently, each worker owning its arenas; results land in
// per-source slots and are read back only after every worker is done.
func (b *Builder) loadAll(sources []source) ([]sprite, []*worker, error) {
	sprites := make([]sprite, len(sources))
	n := min(b.cfg.Workers, len(sources))

	if n <= 1 {
		w := b.newWorker()
		for i, src := range sources {
			sp, err := w.load(src)
			if err != nil {
				return nil, []*worker{w}, err
			}
			sprites[i] = sp
		}
		return sprites, []*worker{w}, nil
	}

	workers := make([]*worker, n)
	for i := range workers {
		workers[i] = b.newWorker()
	}
	jobs := make(chan int)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(jobs)
		for i := range sources {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			for i := range jobs {
				sp, err := w.load(sources[i])
				if err != nil {
					return err
				}
				sprites[i] = sp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, workers, err
	}
	return sprites, workers, nil
}
