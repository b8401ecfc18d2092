package main

import (
	"encoding/json"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"

	"github.com/retroblast-engine/aseatlas/atlas"
)

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame    jsonRect `json:"frame"`
	Duration int64    `json:"duration"`
}

type jsonSprite struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

type jsonIndex struct {
	Image   string                `json:"image"`
	Width   int                   `json:"w"`
	Height  int                   `json:"h"`
	Frames  []jsonFrame           `json:"frames"`
	Sprites map[string]jsonSprite `json:"sprites"`
}

// newIndex describes at; durations are in milliseconds.
func newIndex(imagePath string, at *atlas.Atlas) jsonIndex {
	idx := jsonIndex{
		Image:   filepath.Base(imagePath),
		Width:   at.Width,
		Height:  at.Height,
		Frames:  make([]jsonFrame, len(at.Frames)),
		Sprites: make(map[string]jsonSprite),
	}
	for i, r := range at.Frames {
		idx.Frames[i] = jsonFrame{
			Frame:    jsonRect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()},
			Duration: at.Durations[i].Milliseconds(),
		}
	}
	for _, name := range at.Names() {
		rg, _ := at.Lookup(name)
		idx.Sprites[name] = jsonSprite{Start: rg.Start, Count: rg.Count}
	}
	return idx
}

func writeIndex(path, imagePath string, at *atlas.Atlas) error {
	data, err := json.MarshalIndent(newIndex(imagePath, at), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode index")
	}
	return errors.Wrapf(os.WriteFile(path, append(data, '\n'), 0o644), "write %s", path)
}

func encode(w io.Writer, format string, img image.Image) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return errors.Errorf("unknown image format %q", format)
	}
}

func formatOf(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		return "bmp"
	}
	return "png"
}

func writeImage(path, format string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := encode(f, formatOf(path, format), img); err != nil {
		f.Close()
		return errors.WithMessagef(err, "encode %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// upscale enlarges img by an integer factor without smoothing.
func upscale(img image.Image, factor int) *image.NRGBA {
	b := img.Bounds()
	g := gift.New(gift.Resize(b.Dx()*factor, b.Dy()*factor, gift.NearestNeighborResampling))
	dst := image.NewNRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

func writePreview(path string, img image.Image, factor int) error {
	if factor < 1 {
		return errors.Errorf("preview scale %d must be at least 1", factor)
	}
	return writeImage(path, "", upscale(img, factor))
}
