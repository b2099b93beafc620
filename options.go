package kvengine

// options.go implements store configuration options.

import (
	"github.com/CypherGuy/kv-engine/internal/checksum"
	"github.com/CypherGuy/kv-engine/internal/compression"
	"github.com/CypherGuy/kv-engine/internal/logging"
	"github.com/CypherGuy/kv-engine/internal/vfs"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// ChecksumType is an alias for the checksum type.
type ChecksumType = checksum.Type

// Checksum type constants.
const (
	ChecksumTypeCRC32C = checksum.TypeCRC32C
	ChecksumTypeXXH3   = checksum.TypeXXH3
)

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	CompressionNone   = compression.NoCompression
	CompressionSnappy = compression.SnappyCompression
	CompressionLZ4    = compression.LZ4Compression
	CompressionZstd   = compression.ZstdCompression
)

// Options contains store configuration.
//
// The checksum and compression types take effect for files the store
// creates; existing files keep the types recorded in their headers.
type Options struct {
	// FS is the filesystem implementation to use.
	// If nil, the OS filesystem is used.
	FS vfs.FS

	// Logger receives diagnostic output.
	// If nil, a WARN-level logger writing to stderr is used.
	Logger Logger

	// ChecksumType is the integrity-check algorithm for new WAL and
	// snapshot files.
	// Default: CRC32C
	ChecksumType ChecksumType

	// Compression is the compression applied to new snapshot payloads.
	// Default: none
	Compression CompressionType
}

// DefaultOptions returns options with default values.
func DefaultOptions() *Options {
	return &Options{
		FS:           nil, // Will use vfs.Default()
		Logger:       nil, // Will use a WARN-level default logger
		ChecksumType: ChecksumTypeCRC32C,
		Compression:  CompressionNone,
	}
}

// sanitize fills in defaults and validates enum fields.
// It returns a copy; the caller's Options are never mutated.
func (o *Options) sanitize() (Options, error) {
	var out Options
	if o != nil {
		out = *o
	} else {
		out = *DefaultOptions()
	}

	if out.FS == nil {
		out.FS = vfs.Default()
	}
	out.Logger = logging.OrDefault(out.Logger)

	if out.ChecksumType == checksum.TypeNoChecksum {
		out.ChecksumType = ChecksumTypeCRC32C
	}
	if !out.ChecksumType.IsSupported() {
		return Options{}, ErrInvalidOptions
	}
	if !out.Compression.IsSupported() {
		return Options{}, ErrInvalidOptions
	}
	return out, nil
}
