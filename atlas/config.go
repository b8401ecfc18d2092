package atlas

import (
	"github.com/retroblast-engine/aseatlas/arena"
)

// Config holds atlas build configuration.
type Config struct {
	// BinWidth is the packing bin width in pixels.
	// Zero picks 8 pixels per frame, widened to fit the widest frame.
	BinWidth int

	// BinHeight caps the packing bin height. Zero means unbounded.
	BinHeight int

	// Padding is kept free between frames to prevent bleeding.
	// Default: 0
	Padding int

	// ScratchSize is the arena used to hold one source file while it is decoded.
	// Default: 16 MiB
	ScratchSize int

	// FrameArenaSize is the arena holding decoded frame pixels until they are
	// copied into the atlas. Each worker gets its own.
	// Default: 128 MiB
	FrameArenaSize int

	// Workers is the number of files decoded concurrently.
	// Default: 1
	Workers int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ScratchSize:    16 * arena.Megabyte,
		FrameArenaSize: 128 * arena.Megabyte,
		Workers:        1,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BinWidth < 0 {
		return &ConfigError{Field: "BinWidth", Reason: "must be non-negative"}
	}
	if c.BinHeight < 0 {
		return &ConfigError{Field: "BinHeight", Reason: "must be non-negative"}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.ScratchSize <= 0 {
		return &ConfigError{Field: "ScratchSize", Reason: "must be positive"}
	}
	if c.FrameArenaSize <= 0 {
		return &ConfigError{Field: "FrameArenaSize", Reason: "must be positive"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "atlas: invalid config." + e.Field + ": " + e.Reason
}
