// Package checksum provides the integrity-check algorithms used by the
// record codec.
//
// Two algorithms are supported:
//   - CRC32C (Castagnoli) with masking, so that checksums stored inside
//     checksummed data do not degenerate
//   - XXH3, truncated to its lower 32 bits
package checksum

import (
	"hash/crc32"

	"github.com/zeebo/xxh3"
)

// crc32cTable is the Castagnoli polynomial table used for CRC32C.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maskDelta is the constant added during masking.
const maskDelta = 0xa282ead8

// Value computes the CRC32C checksum of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// Extend computes the CRC32C of concat(A, data) where initCRC is the CRC32C of A.
func Extend(initCRC uint32, data []byte) uint32 {
	return crc32.Update(initCRC, crc32cTable, data)
}

// Mask returns a masked representation of crc.
//
// Computing the CRC of a string that contains an embedded CRC is problematic,
// so checksums stored on disk are masked first.
func Mask(crc uint32) uint32 {
	// Rotate right by 15 bits and add a constant.
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask returns the crc whose masked representation is maskedCRC.
func Unmask(maskedCRC uint32) uint32 {
	rot := maskedCRC - maskDelta
	return (rot >> 17) | (rot << 15)
}

// XXH3 computes the XXH3 checksum of data, truncated to 32 bits.
func XXH3(data []byte) uint32 {
	return uint32(xxh3.Hash(data))
}

// Type represents the type of checksum algorithm.
// These values are embedded in the on-disk format and MUST NOT change.
type Type uint8

const (
	// TypeNoChecksum means no checksum is used. Not valid for this engine's
	// files; present only so the zero byte never decodes as a real algorithm.
	TypeNoChecksum Type = 0
	// TypeCRC32C is CRC32C (Castagnoli) checksum, masked for storage.
	TypeCRC32C Type = 1
	// TypeXXH3 is the XXH3 checksum, truncated to 32 bits.
	TypeXXH3 Type = 4
)

// String returns a human-readable name for the checksum type.
func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	case TypeXXH3:
		return "XXH3"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the checksum type can be used for new files.
func (t Type) IsSupported() bool {
	return t == TypeCRC32C || t == TypeXXH3
}

// Compute computes a checksum of the given type over data.
// For unsupported types it returns 0.
func Compute(t Type, data []byte) uint32 {
	switch t {
	case TypeCRC32C:
		return Mask(Value(data))
	case TypeXXH3:
		return XXH3(data)
	default:
		return 0
	}
}
