// Package record implements the on-disk codec for logged mutations and for
// snapshots.
//
// WAL record format:
//
//	+--------------+----------------+----------+---------+
//	| Checksum 4B  | PayloadLen 4B  | Kind 1B  | Payload |
//	+--------------+----------------+----------+---------+
//
//	Payload: varint64 sequence
//	         length-prefixed key
//	         length-prefixed value   (PUT only)
//
// The checksum is computed over Kind + Payload with the file's configured
// checksum algorithm.
//
// The format is self-describing at the tail of a file: a byte run either
// decodes as a complete record, reports ErrTruncated (the process died
// mid-write), or reports ErrCorrupted (bit corruption). Decoding never
// panics on arbitrary input.
//
// Both the WAL record format and the snapshot serialization format live here
// so that format evolution stays centralized.
package record

import (
	"errors"
	"fmt"
	"math"

	"github.com/CypherGuy/kv-engine/internal/checksum"
	"github.com/CypherGuy/kv-engine/internal/compression"
	"github.com/CypherGuy/kv-engine/internal/encoding"
)

// HeaderSize is the size of the record header.
// Header: checksum (4) + payload length (4) + kind (1) = 9 bytes.
const HeaderSize = 9

// Kind identifies the mutation a record carries.
// These values are embedded in the on-disk format and MUST NOT change.
type Kind uint8

const (
	// KindPut is a key/value insertion or overwrite.
	// Zero is deliberately not a valid kind so zero-filled regions never
	// decode as records.
	KindPut Kind = 1

	// KindDelete is a key removal. Delete records carry no value.
	KindDelete Kind = 2
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindPut:
		return "PUT"
	case KindDelete:
		return "DELETE"
	default:
		return "UnknownKind"
	}
}

// IsValid returns true for kinds this codec can decode.
func (k Kind) IsValid() bool {
	return k == KindPut || k == KindDelete
}

var (
	// ErrTruncated indicates the byte run ends before a complete record or
	// snapshot. This is the signature of an interrupted write.
	ErrTruncated = errors.New("record: truncated record")

	// ErrCorrupted indicates a complete byte run that fails its integrity
	// check or carries a malformed payload.
	ErrCorrupted = errors.New("record: corrupted record (bad checksum)")
)

// Record is one logged mutation.
type Record struct {
	// Seq is the mutation's position in the store's total order.
	Seq uint64

	// Kind is the operation kind.
	Kind Kind

	// Key is the entry key. Never empty in a valid record.
	Key []byte

	// Value is the entry value. Nil for DELETE records.
	Value []byte
}

// AppendRecord appends the encoded form of rec to dst and returns the
// extended slice. ct selects the integrity-check algorithm.
func AppendRecord(dst []byte, rec Record, ct checksum.Type) []byte {
	headerStart := len(dst)

	// Reserve the header, then write kind + payload so the checksum can be
	// computed over the contiguous region.
	dst = append(dst, make([]byte, HeaderSize)...)
	dst[headerStart+8] = byte(rec.Kind)

	dst = encoding.AppendVarint64(dst, rec.Seq)
	dst = encoding.AppendLengthPrefixedSlice(dst, rec.Key)
	if rec.Kind == KindPut {
		dst = encoding.AppendLengthPrefixedSlice(dst, rec.Value)
	}

	payloadLen := len(dst) - headerStart - HeaderSize
	sum := checksum.Compute(ct, dst[headerStart+8:])
	encoding.EncodeFixed32(dst[headerStart:], sum)
	encoding.EncodeFixed32(dst[headerStart+4:], uint32(payloadLen))
	return dst
}

// EncodedLen returns the encoded size of rec.
func EncodedLen(rec Record) int {
	n := HeaderSize + encoding.VarintLength(rec.Seq)
	n += encoding.VarintLength(uint64(len(rec.Key))) + len(rec.Key)
	if rec.Kind == KindPut {
		n += encoding.VarintLength(uint64(len(rec.Value))) + len(rec.Value)
	}
	return n
}

// DecodeRecord decodes one record from the front of buf.
//
// On success it returns the record and the number of bytes consumed. The
// record's Key and Value alias buf and are valid only while buf is unchanged.
//
// It returns ErrTruncated when buf ends before a complete record and
// ErrCorrupted when the framing is complete but the integrity check fails or
// the payload is malformed.
func DecodeRecord(buf []byte, ct checksum.Type) (Record, int, error) {
	if len(buf) < HeaderSize {
		return Record{}, 0, ErrTruncated
	}

	stored := encoding.DecodeFixed32(buf[0:4])
	payloadLen := encoding.DecodeFixed32(buf[4:8])

	total := uint64(HeaderSize) + uint64(payloadLen)
	if uint64(len(buf)) < total {
		// Either the write was cut short or the length field itself is
		// damaged. Both invalidate this record and everything after it.
		return Record{}, 0, ErrTruncated
	}

	body := buf[8:total] // kind + payload
	if checksum.Compute(ct, body) != stored {
		return Record{}, 0, ErrCorrupted
	}

	rec, err := parsePayload(Kind(body[0]), body[1:])
	if err != nil {
		return Record{}, 0, err
	}
	return rec, int(total), nil
}

// parsePayload decodes the checksummed payload. The checksum has already
// passed, so any malformation here is corruption rather than truncation.
func parsePayload(kind Kind, payload []byte) (Record, error) {
	if !kind.IsValid() {
		return Record{}, ErrCorrupted
	}

	seq, n, err := encoding.DecodeVarint64(payload)
	if err != nil {
		return Record{}, ErrCorrupted
	}
	payload = payload[n:]

	key, n, err := encoding.DecodeLengthPrefixedSlice(payload)
	if err != nil || len(key) == 0 {
		return Record{}, ErrCorrupted
	}
	payload = payload[n:]

	rec := Record{Seq: seq, Kind: kind, Key: key}
	if kind == KindPut {
		value, n, err := encoding.DecodeLengthPrefixedSlice(payload)
		if err != nil {
			return Record{}, ErrCorrupted
		}
		payload = payload[n:]
		rec.Value = value
	}

	if len(payload) != 0 {
		return Record{}, ErrCorrupted
	}
	return rec, nil
}

// -----------------------------------------------------------------------------
// Snapshot serialization
// -----------------------------------------------------------------------------

// SnapshotMagic identifies a snapshot file.
const SnapshotMagic = "kvsnap01"

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// snapshotHeaderSize is magic (8) + version (1) + checksum type (1) +
// sequence (8) + payload length (8).
const snapshotHeaderSize = 26

// snapshotTrailerSize is compression type (1) + checksum (4).
const snapshotTrailerSize = 5

// Snapshot is a full point-in-time image of the map.
//
// File format:
//
//	magic "kvsnap01" 8B | version 1B | checksumType 1B
//	| sequence 8B | payloadLen 8B
//	| compressed payload | compressionType 1B | checksum 4B
//
// The checksum covers the compressed payload plus the compression-type byte,
// so a half-written file is never mistaken for valid.
//
// Uncompressed payload: count fixed32, then count entries of
// length-prefixed key + length-prefixed value.
type Snapshot struct {
	// Seq is the sequence number of the last mutation the image reflects.
	Seq uint64

	// Entries is the full map state.
	Entries map[string][]byte
}

// EncodeSnapshot serializes snap. ct selects the integrity-check algorithm
// and comp the payload compression.
func EncodeSnapshot(snap Snapshot, ct checksum.Type, comp compression.Type) ([]byte, error) {
	payload := make([]byte, 0, 4+len(snap.Entries)*16)
	payload = encoding.AppendFixed32(payload, uint32(len(snap.Entries)))
	for k, v := range snap.Entries {
		payload = encoding.AppendLengthPrefixedSlice(payload, []byte(k))
		payload = encoding.AppendLengthPrefixedSlice(payload, v)
	}

	compressed, err := compression.Compress(comp, payload)
	if err != nil {
		return nil, fmt.Errorf("record: compress snapshot: %w", err)
	}

	out := make([]byte, 0, snapshotHeaderSize+len(compressed)+snapshotTrailerSize)
	out = append(out, SnapshotMagic...)
	out = append(out, SnapshotVersion, byte(ct))
	out = encoding.AppendFixed64(out, snap.Seq)
	out = encoding.AppendFixed64(out, uint64(len(compressed)))
	out = append(out, compressed...)
	out = append(out, byte(comp))
	out = encoding.AppendFixed32(out, checksum.Compute(ct, out[snapshotHeaderSize:]))
	return out, nil
}

// DecodeSnapshot decodes a full snapshot file image.
//
// It returns ErrTruncated for a short file (interrupted write) and
// ErrCorrupted for a complete file that fails its integrity check, carries
// an unknown magic/version, or has a malformed payload.
func DecodeSnapshot(buf []byte) (Snapshot, error) {
	if len(buf) < len(SnapshotMagic) {
		return Snapshot{}, ErrTruncated
	}
	if string(buf[:len(SnapshotMagic)]) != SnapshotMagic {
		return Snapshot{}, ErrCorrupted
	}
	if len(buf) < snapshotHeaderSize {
		return Snapshot{}, ErrTruncated
	}

	version := buf[8]
	ct := checksum.Type(buf[9])
	if version != SnapshotVersion || !ct.IsSupported() {
		return Snapshot{}, ErrCorrupted
	}

	seq := encoding.DecodeFixed64(buf[10:18])
	payloadLen := encoding.DecodeFixed64(buf[18:26])
	if payloadLen > math.MaxInt-snapshotHeaderSize-snapshotTrailerSize {
		return Snapshot{}, ErrCorrupted
	}

	total := snapshotHeaderSize + int(payloadLen) + snapshotTrailerSize
	if len(buf) < total {
		return Snapshot{}, ErrTruncated
	}
	if len(buf) > total {
		return Snapshot{}, ErrCorrupted
	}

	checksummed := buf[snapshotHeaderSize : total-4] // payload + compression byte
	stored := encoding.DecodeFixed32(buf[total-4:])
	if checksum.Compute(ct, checksummed) != stored {
		return Snapshot{}, ErrCorrupted
	}

	comp := compression.Type(checksummed[len(checksummed)-1])
	payload, err := compression.Decompress(comp, checksummed[:len(checksummed)-1])
	if err != nil {
		return Snapshot{}, ErrCorrupted
	}

	entries, err := parseSnapshotPayload(payload)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Seq: seq, Entries: entries}, nil
}

func parseSnapshotPayload(payload []byte) (map[string][]byte, error) {
	if len(payload) < 4 {
		return nil, ErrCorrupted
	}
	count := encoding.DecodeFixed32(payload)
	payload = payload[4:]

	entries := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, n, err := encoding.DecodeLengthPrefixedSlice(payload)
		if err != nil || len(key) == 0 {
			return nil, ErrCorrupted
		}
		payload = payload[n:]

		value, n, err := encoding.DecodeLengthPrefixedSlice(payload)
		if err != nil {
			return nil, ErrCorrupted
		}
		payload = payload[n:]

		v := make([]byte, len(value))
		copy(v, value)
		entries[string(key)] = v
	}
	if len(payload) != 0 {
		return nil, ErrCorrupted
	}
	return entries, nil
}
