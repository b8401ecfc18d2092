package atlas

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/retroblast-engine/aseatlas"
	"github.com/retroblast-engine/aseatlas/arena"
	"github.com/retroblast-engine/aseatlas/internal/asetest"
	"github.com/retroblast-engine/aseatlas/rectpack"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ScratchSize = 64 * arena.Kilobyte
	cfg.FrameArenaSize = arena.Megabyte
	return cfg
}

func sprites(files map[string]asetest.Sprite) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, s := range files {
		fsys[name] = &fstest.MapFile{Data: s.Encode()}
	}
	return fsys
}

func build(t *testing.T, fsys fstest.MapFS, cfg Config, pattern string) (*Atlas, error) {
	t.Helper()
	b, err := NewBuilder(FSFiles{FS: fsys}, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	a := arena.New(arena.Megabyte)
	t.Cleanup(a.Release)
	return b.Build(a, pattern)
}

func pixelAt(at *Atlas, x, y int) [4]byte {
	i := (y*at.Width + x) * aseatlas.BytesPerPixel
	return [4]byte(at.Pixels[i : i+4])
}

func TestBuildTwoSprites(t *testing.T) {
	fsys := sprites(map[string]asetest.Sprite{
		"sprites/coin.aseprite": asetest.Animation(16, 16, 4),
		"sprites/rock.aseprite": asetest.Animation(8, 8, 1),
	})
	at, err := build(t, fsys, testConfig(), "sprites/*.aseprite")
	if err != nil {
		t.Fatal(err)
	}

	if got := at.Names(); len(got) != 2 || got[0] != "coin" || got[1] != "rock" {
		t.Fatalf("names %v, want [coin rock]", got)
	}
	coin, ok := at.Lookup("coin")
	if !ok || coin != (Range{Start: 0, Count: 4}) {
		t.Errorf("coin range %+v, %v", coin, ok)
	}
	rock, ok := at.Lookup("rock")
	if !ok || rock != (Range{Start: 4, Count: 1}) {
		t.Errorf("rock range %+v, %v", rock, ok)
	}
	if len(at.Frames) != 5 || len(at.Durations) != 5 {
		t.Fatalf("got %d frames and %d durations, want 5", len(at.Frames), len(at.Durations))
	}

	for i, r := range at.Frames {
		if !r.In(image.Rect(0, 0, at.Width, at.Height)) {
			t.Errorf("frame %d %v outside %dx%d", i, r, at.Width, at.Height)
		}
		for j := i + 1; j < len(at.Frames); j++ {
			if r.Overlaps(at.Frames[j]) {
				t.Errorf("frame %d %v overlaps frame %d %v", i, r, j, at.Frames[j])
			}
		}
		if at.Durations[i] != 100*time.Millisecond {
			t.Errorf("frame %d duration %v", i, at.Durations[i])
		}
	}

	for i := 0; i < 4; i++ {
		r := at.Frames[i]
		if r.Dx() != 16 || r.Dy() != 16 {
			t.Errorf("coin frame %d is %v", i, r)
		}
		v := byte(i + 1)
		want := [4]byte{v, v, v, 255}
		for _, p := range []image.Point{r.Min, r.Max.Sub(image.Pt(1, 1))} {
			if got := pixelAt(at, p.X, p.Y); got != want {
				t.Errorf("coin frame %d pixel %v = %v, want %v", i, p, got, want)
			}
		}
	}
	if r := at.Frames[4]; r.Dx() != 8 || r.Dy() != 8 {
		t.Errorf("rock frame is %v", r)
	} else if got := pixelAt(at, r.Min.X, r.Min.Y); got != [4]byte{1, 1, 1, 255} {
		t.Errorf("rock pixel %v", got)
	}

	rects, err := at.LookupFramesByName("coin")
	if err != nil || len(rects) != 4 || rects[0] != at.Frames[0] {
		t.Errorf("LookupFramesByName(coin) = %v, %v", rects, err)
	}
	durs, err := at.FrameDurations("rock")
	if err != nil || len(durs) != 1 {
		t.Errorf("FrameDurations(rock) = %v, %v", durs, err)
	}

	img := at.Image()
	if img.Bounds().Dx() != at.Width || img.Bounds().Dy() != at.Height {
		t.Errorf("image bounds %v", img.Bounds())
	}
	if c := img.NRGBAAt(at.Frames[1].Min.X, at.Frames[1].Min.Y); c.R != 2 || c.A != 255 {
		t.Errorf("image pixel %v", c)
	}
}

func TestLookupUnknownSprite(t *testing.T) {
	at, err := build(t, sprites(map[string]asetest.Sprite{"a.aseprite": asetest.Animation(2, 2, 1)}), testConfig(), "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := at.Lookup("b"); ok {
		t.Error("Lookup(b) found a range")
	}
	if _, err := at.LookupFramesByName("b"); !errors.Is(err, ErrUnknownSprite) {
		t.Errorf("LookupFramesByName: got %v, want ErrUnknownSprite", err)
	}
	if _, err := at.FrameDurations("b"); !errors.Is(err, ErrUnknownSprite) {
		t.Errorf("FrameDurations: got %v, want ErrUnknownSprite", err)
	}
}

func TestBuildEmptyFramesStayTransparent(t *testing.T) {
	s := asetest.Animation(4, 4, 1)
	s.Frames = append(s.Frames, asetest.Frame{Duration: 50})
	at, err := build(t, sprites(map[string]asetest.Sprite{"e.aseprite": s}), testConfig(), "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}
	r := at.Frames[1]
	if got := pixelAt(at, r.Min.X, r.Min.Y); got != [4]byte{} {
		t.Errorf("empty frame pixel %v, want transparent", got)
	}
	if at.Durations[1] != 50*time.Millisecond {
		t.Errorf("duration %v", at.Durations[1])
	}
}

func TestBuildResolvesLinkedCels(t *testing.T) {
	s := asetest.Animation(4, 4, 1)
	s.Frames = append(s.Frames, asetest.Frame{
		Duration: 100,
		Chunks:   [][]byte{asetest.Cel{Opacity: 255, Type: 1, Link: 0}.Encode()},
	})
	at, err := build(t, sprites(map[string]asetest.Sprite{"l.aseprite": s}), testConfig(), "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}
	r := at.Frames[1]
	if got := pixelAt(at, r.Min.X, r.Min.Y); got != [4]byte{1, 1, 1, 255} {
		t.Errorf("linked frame pixel %v, want the pixels of frame 0", got)
	}
}

func TestResolveLinksFollowsChains(t *testing.T) {
	pix := []byte{9, 9, 9, 255}
	frames := []aseatlas.AnimationFrame{
		{LinkedFrame: 1},
		{LinkedFrame: 2},
		{LinkedFrame: -1, Pixels: pix},
		{LinkedFrame: 4},
		{LinkedFrame: 3},
	}
	got := resolveLinks(frames)
	for i := 0; i < 3; i++ {
		if !bytes.Equal(got[i].Pixels, pix) {
			t.Errorf("frame %d pixels %v, want %v", i, got[i].Pixels, pix)
		}
	}
	for i := 3; i < 5; i++ {
		if got[i].Pixels != nil {
			t.Errorf("frame %d in a link cycle got pixels %v", i, got[i].Pixels)
		}
	}
}

func TestBuildPadding(t *testing.T) {
	cfg := testConfig()
	cfg.Padding = 2
	at, err := build(t, sprites(map[string]asetest.Sprite{"p.aseprite": asetest.Animation(4, 4, 6)}), cfg, "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}
	for i := range at.Frames {
		for j, b := range at.Frames {
			if i == j {
				continue
			}
			a := at.Frames[i]
			a.Max = a.Max.Add(image.Pt(2, 2))
			if a.Overlaps(b) {
				t.Errorf("frames %d and %d closer than the padding: %v %v", i, j, at.Frames[i], b)
			}
		}
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	files := map[string]asetest.Sprite{}
	for i := 0; i < 7; i++ {
		files[fmt.Sprintf("s%d.aseprite", i)] = asetest.Animation(uint16(4+i), uint16(10-i), 1+i%3)
	}
	fsys := sprites(files)

	seq, err := build(t, fsys, testConfig(), "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Workers = 3
	par, err := build(t, fsys, cfg, "*.aseprite")
	if err != nil {
		t.Fatal(err)
	}

	if seq.Width != par.Width || seq.Height != par.Height {
		t.Fatalf("sizes differ: %dx%d vs %dx%d", seq.Width, seq.Height, par.Width, par.Height)
	}
	if !bytes.Equal(seq.Pixels, par.Pixels) {
		t.Error("pixels differ")
	}
	for i := range seq.Frames {
		if seq.Frames[i] != par.Frames[i] {
			t.Errorf("frame %d: %v vs %v", i, seq.Frames[i], par.Frames[i])
		}
	}
	for _, name := range seq.Names() {
		a, _ := seq.Lookup(name)
		b, _ := par.Lookup(name)
		if a != b {
			t.Errorf("%s: %+v vs %+v", name, a, b)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	good := asetest.Animation(16, 16, 3)
	bad := asetest.Animation(2, 2, 1)
	bad.Magic = 0x1234

	tests := []struct {
		name    string
		files   map[string]asetest.Sprite
		cfg     func(*Config)
		pattern string
		want    error
		path    string
	}{
		{
			name:    "no sources",
			files:   map[string]asetest.Sprite{"a.aseprite": good},
			pattern: "*.png",
			want:    ErrNoSources,
		},
		{
			name:    "duplicate name",
			files:   map[string]asetest.Sprite{"a/x.aseprite": good, "b/x.aseprite": good},
			pattern: "*/*.aseprite",
			want:    ErrDuplicateName,
		},
		{
			name:    "decode failure",
			files:   map[string]asetest.Sprite{"a.aseprite": good, "broken.aseprite": bad},
			pattern: "*.aseprite",
			want:    aseatlas.ErrMalformedHeader,
			path:    "broken.aseprite",
		},
		{
			name:    "decode failure in parallel",
			files:   map[string]asetest.Sprite{"a.aseprite": good, "broken.aseprite": bad, "c.aseprite": good},
			cfg:     func(c *Config) { c.Workers = 2 },
			pattern: "*.aseprite",
			want:    aseatlas.ErrMalformedHeader,
			path:    "broken.aseprite",
		},
		{
			name:    "bin too short",
			files:   map[string]asetest.Sprite{"a.aseprite": good},
			cfg:     func(c *Config) { c.BinWidth = 16; c.BinHeight = 32 },
			pattern: "*.aseprite",
			want:    rectpack.ErrPackingFailed,
		},
		{
			name:    "file larger than scratch",
			files:   map[string]asetest.Sprite{"a.aseprite": good},
			cfg:     func(c *Config) { c.ScratchSize = 64 },
			pattern: "*.aseprite",
			want:    arena.ErrOutOfMemory,
			path:    "a.aseprite",
		},
		{
			name:    "frames larger than frame arena",
			files:   map[string]asetest.Sprite{"a.aseprite": good},
			cfg:     func(c *Config) { c.FrameArenaSize = 1024 },
			pattern: "*.aseprite",
			want:    arena.ErrOutOfMemory,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			_, err := build(t, sprites(tc.files), cfg, tc.pattern)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if tc.path != "" && !strings.Contains(err.Error(), tc.path) {
				t.Errorf("error %q does not name %s", err, tc.path)
			}
		})
	}
}

func TestBuildAtlasArenaTooSmall(t *testing.T) {
	b, err := NewBuilder(FSFiles{FS: sprites(map[string]asetest.Sprite{"a.aseprite": asetest.Animation(16, 16, 2)})}, testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(arena.New(16), "*.aseprite"); !errors.Is(err, arena.ErrOutOfMemory) {
		t.Errorf("got %v, want ErrOutOfMemory", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		field string
		edit  func(*Config)
	}{
		{"BinWidth", func(c *Config) { c.BinWidth = -1 }},
		{"BinHeight", func(c *Config) { c.BinHeight = -1 }},
		{"Padding", func(c *Config) { c.Padding = -1 }},
		{"ScratchSize", func(c *Config) { c.ScratchSize = 0 }},
		{"FrameArenaSize", func(c *Config) { c.FrameArenaSize = 0 }},
		{"Workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tc := range tests {
		cfg := DefaultConfig()
		tc.edit(&cfg)
		_, err := NewBuilder(OSFiles{}, cfg, zerolog.Nop())
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != tc.field {
			t.Errorf("%s: got %v", tc.field, err)
		}
	}
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}
}

func TestSpriteName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"coin.aseprite", "coin"},
		{"assets/sprites/rock.ase", "rock"},
		{"noext", "noext"},
		{"dir.v2/player.idle.aseprite", "player.idle"},
	}
	for _, tc := range tests {
		if got := SpriteName(tc.in); got != tc.want {
			t.Errorf("SpriteName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOSFiles(t *testing.T) {
	dir := t.TempDir()
	data := asetest.Animation(2, 2, 1).Encode()
	for _, name := range []string{"b.aseprite", "a.aseprite", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var files OSFiles
	got, err := files.Enumerate(filepath.Join(dir, "*.aseprite"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "a.aseprite" || filepath.Base(got[1]) != "b.aseprite" {
		t.Fatalf("Enumerate = %v", got)
	}

	a := arena.New(arena.Kilobyte)
	defer a.Release()
	buf, err := files.ReadWholeFile(a, got[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, data) {
		t.Error("file contents differ")
	}
	if a.Used() != len(data) {
		t.Errorf("arena used %d, want %d", a.Used(), len(data))
	}

	if _, err := files.ReadWholeFile(arena.New(8), got[0]); !errors.Is(err, arena.ErrOutOfMemory) {
		t.Errorf("small arena: got %v, want ErrOutOfMemory", err)
	}
	if _, err := files.ReadWholeFile(a, filepath.Join(dir, "missing.aseprite")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}
