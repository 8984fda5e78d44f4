package engine

import (
	"fmt"
	"io"
	"strings"
)

// CompressionLevel selects how entries are compressed when they are appended to an archive.
type CompressionLevel string

const (
	CompressionNone    CompressionLevel = "none"
	CompressionFastest CompressionLevel = "fastest"
	CompressionBest    CompressionLevel = "best"
	CompressionDefault CompressionLevel = "default"
	// CompressionZstd stores entries with the zstd method (ZIP method 93).
	// Not every unzip tool can read these.
	CompressionZstd CompressionLevel = "zstd"
)

// ParseCompressionLevel parses a level name. An empty string yields CompressionDefault.
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch level := CompressionLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case "":
		return CompressionDefault, nil
	case CompressionNone, CompressionFastest, CompressionBest, CompressionDefault, CompressionZstd:
		return level, nil
	default:
		return "", fmt.Errorf("unsupported compression level: %s", s)
	}
}

// Codec reads and writes archive files. Implementations own the on-disk format;
// callers own synchronization.
type Codec interface {
	// CreateEmpty writes a new archive with no entries at path, replacing any existing file.
	CreateEmpty(path string) error

	// Open loads the archive at path for modification.
	Open(path string) (ArchiveHandle, error)

	// CheckIntegrity reports whether the archive at path is structurally valid.
	// It never returns an error: missing, empty, and corrupt files are all invalid.
	CheckIntegrity(path string) bool

	// Entries returns the entry names of the archive at path in central directory order.
	Entries(path string) ([]string, error)
}

// ArchiveHandle is an archive opened for modification. Appended entries are pending until Save.
type ArchiveHandle interface {
	io.Closer

	SetCompressionLevel(level CompressionLevel)

	// AppendEntry reads data to EOF and stages it as a new entry named name.
	AppendEntry(name string, data io.Reader) error

	// Save persists existing and pending entries back to the path the handle was opened from.
	Save() error
}
