package aseatlas

import "github.com/pkg/errors"

// Sentinel errors returned by the decoder. Decoding failures are final for the
// file being decoded; no partially decoded File is ever returned.
var (
	// ErrMalformedHeader is returned for a bad magic number, a declared size
	// that does not match the data, or a chunk whose size is inconsistent.
	ErrMalformedHeader = errors.New("aseprite: malformed header")

	// ErrUnsupportedVariant is returned for cel types that are recognised but
	// not decoded (raw and tilemap cels).
	ErrUnsupportedVariant = errors.New("aseprite: unsupported cel variant")

	// ErrDecompressionFailed is returned when a compressed cel is not a valid
	// zlib stream or inflates to the wrong number of bytes.
	ErrDecompressionFailed = errors.New("aseprite: decompression failed")

	// ErrFrameIndex is returned when asking for a frame the file does not have.
	ErrFrameIndex = errors.New("aseprite: frame index out of range")
)
