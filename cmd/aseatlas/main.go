// Command aseatlas packs Aseprite sprites into a texture atlas image and a
// JSON index of frame rectangles.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/retroblast-engine/aseatlas/arena"
	"github.com/retroblast-engine/aseatlas/atlas"
)

var (
	pattern   = flag.String("pattern", "*.aseprite", "glob of sprite files, ~/ expands to the home directory")
	out       = flag.String("out", "atlas.png", "atlas image path")
	index     = flag.String("index", "atlas.json", "frame index path, empty to skip")
	format    = flag.String("format", "", "image format: png or bmp (default: from -out)")
	preview   = flag.String("preview", "", "optional upscaled copy of the atlas")
	scale     = flag.Int("scale", 4, "preview scale factor")
	workers   = flag.Int("workers", 1, "files decoded concurrently")
	binWidth  = flag.Int("bin-width", 0, "packing width, 0 picks one")
	binHeight = flag.Int("bin-height", 0, "packing height limit, 0 for none")
	padding   = flag.Int("padding", 0, "pixels between frames")
	atlasSize = flag.Int("atlas-arena", 256*arena.Megabyte, "bytes reserved for the atlas bitmap")
	verbose   = flag.Bool("v", false, "log every sprite")
)

func run(log zerolog.Logger) error {
	cfg := atlas.DefaultConfig()
	cfg.Workers = *workers
	cfg.BinWidth = *binWidth
	cfg.BinHeight = *binHeight
	cfg.Padding = *padding

	b, err := atlas.NewBuilder(atlas.OSFiles{}, cfg, log)
	if err != nil {
		return err
	}
	a := arena.New(*atlasSize)
	defer a.Release()

	at, err := b.Build(a, *pattern)
	if err != nil {
		return err
	}
	if err := writeImage(*out, *format, at.Image()); err != nil {
		return err
	}
	log.Info().Str("path", *out).Msg("wrote atlas image")

	if *index != "" {
		if err := writeIndex(*index, *out, at); err != nil {
			return err
		}
		log.Info().Str("path", *index).Msg("wrote atlas index")
	}
	if *preview != "" {
		if err := writePreview(*preview, at.Image(), *scale); err != nil {
			return err
		}
		log.Info().Str("path", *preview).Int("scale", *scale).Msg("wrote preview")
	}
	return nil
}

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Error().Err(err).Msg("aseatlas failed")
		os.Exit(1)
	}
}
