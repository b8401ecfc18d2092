package aseatlas

import "fmt"

// From https://github.com/aseprite/aseprite/blob/main/docs/ase-file-specs.md#references

type (
	BYTE  = uint8  // An 8-bit unsigned integer value
	WORD  = uint16 // A 16-bit unsigned integer value
	SHORT = int16  // A 16-bit signed integer value
	DWORD = uint32 // A 32-bit unsigned integer value
)

const (
	// MagicNumber identifies an Aseprite file (0xA5E0).
	MagicNumber WORD = 0xA5E0

	// MagicNumberFrame starts every frame header (0xF1FA).
	MagicNumberFrame WORD = 0xF1FA

	headerSize         = 128
	headerReservedSize = 116 // bytes after width/height up to the end of the header
	frameReservedSize  = 2
	oldChunkCountInUse = 0xFFFF
	chunkHeaderSize    = 6 // DWORD size + WORD type
	celReservedSize    = 5
)

// ChunkType is the tag of a chunk inside a frame.
type ChunkType WORD

const (
	ChunkOldPalette256 ChunkType = 0x0004
	ChunkOldPalette64  ChunkType = 0x0011
	ChunkLayer         ChunkType = 0x2004
	ChunkCel           ChunkType = 0x2005
	ChunkCelExtra      ChunkType = 0x2006
	ChunkColorProfile  ChunkType = 0x2007
	ChunkExternalFiles ChunkType = 0x2008
	ChunkMask          ChunkType = 0x2016
	ChunkPath          ChunkType = 0x2017
	ChunkFrameTags     ChunkType = 0x2018
	ChunkPalette       ChunkType = 0x2019
	ChunkUserData      ChunkType = 0x2020
	ChunkSlice         ChunkType = 0x2022
	ChunkTileset       ChunkType = 0x2023
)

var chunkNames = map[ChunkType]string{
	ChunkOldPalette256: "OldPalette256",
	ChunkOldPalette64:  "OldPalette64",
	ChunkLayer:         "Layer",
	ChunkCel:           "Cel",
	ChunkCelExtra:      "CelExtra",
	ChunkColorProfile:  "ColorProfile",
	ChunkExternalFiles: "ExternalFiles",
	ChunkMask:          "Mask",
	ChunkPath:          "Path",
	ChunkFrameTags:     "FrameTags",
	ChunkPalette:       "Palette",
	ChunkUserData:      "UserData",
	ChunkSlice:         "Slice",
	ChunkTileset:       "Tileset",
}

func (t ChunkType) String() string {
	if n, ok := chunkNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Chunk(0x%04X)", WORD(t))
}

// CelDataType represents the type of data in the cel.
type CelDataType WORD

const (
	RawImageData CelDataType = iota
	LinkedCelData
	CompressedImageData
	CompressedTilemapData
)

func (c CelDataType) String() string {
	switch c {
	case RawImageData:
		return "Raw Image"
	case LinkedCelData:
		return "Linked Cel"
	case CompressedImageData:
		return "Compressed Image"
	case CompressedTilemapData:
		return "Compressed Tilemap"
	}
	return fmt.Sprintf("CelDataType(%d)", WORD(c))
}
