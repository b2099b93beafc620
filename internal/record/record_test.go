package record

import (
	"bytes"
	"errors"
	"testing"

	"github.com/CypherGuy/kv-engine/internal/checksum"
	"github.com/CypherGuy/kv-engine/internal/compression"
)

func TestRecordRoundTrip(t *testing.T) {
	records := []Record{
		{Seq: 1, Kind: KindPut, Key: []byte("a"), Value: []byte("1")},
		{Seq: 2, Kind: KindPut, Key: []byte("key"), Value: nil},
		{Seq: 300, Kind: KindDelete, Key: []byte("key")},
		{Seq: 1 << 40, Kind: KindPut, Key: bytes.Repeat([]byte("k"), 1000), Value: bytes.Repeat([]byte("v"), 5000)},
	}

	for _, ct := range []checksum.Type{checksum.TypeCRC32C, checksum.TypeXXH3} {
		var buf []byte
		for _, rec := range records {
			start := len(buf)
			buf = AppendRecord(buf, rec, ct)
			if got := len(buf) - start; got != EncodedLen(rec) {
				t.Errorf("%s seq %d: encoded %d bytes, EncodedLen says %d", ct, rec.Seq, got, EncodedLen(rec))
			}
		}

		rest := buf
		for _, want := range records {
			got, n, err := DecodeRecord(rest, ct)
			if err != nil {
				t.Fatalf("%s seq %d: decode: %v", ct, want.Seq, err)
			}
			if got.Seq != want.Seq || got.Kind != want.Kind ||
				!bytes.Equal(got.Key, want.Key) || !bytes.Equal(got.Value, want.Value) {
				t.Errorf("%s: got %+v, want %+v", ct, got, want)
			}
			rest = rest[n:]
		}
		if len(rest) != 0 {
			t.Errorf("%s: %d trailing bytes", ct, len(rest))
		}
	}
}

func TestDeleteCarriesNoValue(t *testing.T) {
	// A DELETE encodes without the value even when one is set.
	withValue := AppendRecord(nil, Record{Seq: 5, Kind: KindDelete, Key: []byte("k"), Value: []byte("ignored")}, checksum.TypeCRC32C)
	without := AppendRecord(nil, Record{Seq: 5, Kind: KindDelete, Key: []byte("k")}, checksum.TypeCRC32C)
	if !bytes.Equal(withValue, without) {
		t.Error("DELETE encoding should not include the value")
	}
}

func TestDecodeTruncatedAtEveryPrefix(t *testing.T) {
	full := AppendRecord(nil, Record{Seq: 42, Kind: KindPut, Key: []byte("key"), Value: []byte("value")}, checksum.TypeCRC32C)

	for cut := 0; cut < len(full); cut++ {
		_, _, err := DecodeRecord(full[:cut], checksum.TypeCRC32C)
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("cut at %d/%d: err = %v, want ErrTruncated", cut, len(full), err)
		}
	}
}

func TestDecodeBitFlipCorruption(t *testing.T) {
	full := AppendRecord(nil, Record{Seq: 42, Kind: KindPut, Key: []byte("key"), Value: []byte("value")}, checksum.TypeCRC32C)

	// Flipping any bit in the checksummed region must be detected. The
	// length field is excluded: damage there reads as truncation.
	for i := 8; i < len(full); i++ {
		corrupted := bytes.Clone(full)
		corrupted[i] ^= 0x01
		_, _, err := DecodeRecord(corrupted, checksum.TypeCRC32C)
		if !errors.Is(err, ErrCorrupted) {
			t.Errorf("flip at byte %d: err = %v, want ErrCorrupted", i, err)
		}
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	// A record with an invalid kind but a valid checksum is corruption.
	buf := AppendRecord(nil, Record{Seq: 1, Kind: KindPut, Key: []byte("k"), Value: []byte("v")}, checksum.TypeCRC32C)
	buf[8] = 0x7f // kind byte
	sum := checksum.Compute(checksum.TypeCRC32C, buf[8:])
	buf[0] = byte(sum)
	buf[1] = byte(sum >> 8)
	buf[2] = byte(sum >> 16)
	buf[3] = byte(sum >> 24)

	if _, _, err := DecodeRecord(buf, checksum.TypeCRC32C); !errors.Is(err, ErrCorrupted) {
		t.Errorf("invalid kind: err = %v, want ErrCorrupted", err)
	}
}

func TestDecodeZeroFilledRegion(t *testing.T) {
	// Preallocated zero regions must never decode as records. A zero
	// header claims checksum 0 over a zero-length body with kind 0, which
	// fails either the checksum or the kind check.
	zeros := make([]byte, 64)
	if _, _, err := DecodeRecord(zeros, checksum.TypeCRC32C); err == nil {
		t.Error("zero-filled region decoded as a record")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	entries := map[string][]byte{
		"alpha": []byte("1"),
		"beta":  bytes.Repeat([]byte("b"), 300),
		"gamma": nil,
	}

	for _, comp := range []compression.Type{
		compression.NoCompression,
		compression.SnappyCompression,
		compression.LZ4Compression,
		compression.ZstdCompression,
	} {
		buf, err := EncodeSnapshot(Snapshot{Seq: 77, Entries: entries}, checksum.TypeCRC32C, comp)
		if err != nil {
			t.Fatalf("%s: encode: %v", comp, err)
		}
		snap, err := DecodeSnapshot(buf)
		if err != nil {
			t.Fatalf("%s: decode: %v", comp, err)
		}
		if snap.Seq != 77 {
			t.Errorf("%s: seq = %d", comp, snap.Seq)
		}
		if len(snap.Entries) != len(entries) {
			t.Fatalf("%s: %d entries, want %d", comp, len(snap.Entries), len(entries))
		}
		for k, v := range entries {
			if !bytes.Equal(snap.Entries[k], v) {
				t.Errorf("%s: entry %q = %q, want %q", comp, k, snap.Entries[k], v)
			}
		}
	}
}

func TestSnapshotEmpty(t *testing.T) {
	buf, err := EncodeSnapshot(Snapshot{Seq: 0, Entries: map[string][]byte{}}, checksum.TypeXXH3, compression.NoCompression)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := DecodeSnapshot(buf)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 0 || len(snap.Entries) != 0 {
		t.Errorf("got seq %d, %d entries", snap.Seq, len(snap.Entries))
	}
}

func TestSnapshotDecodeDamage(t *testing.T) {
	full, err := EncodeSnapshot(Snapshot{Seq: 9, Entries: map[string][]byte{"k": []byte("v")}},
		checksum.TypeCRC32C, compression.NoCompression)
	if err != nil {
		t.Fatal(err)
	}

	for cut := 0; cut < len(full); cut++ {
		if _, err := DecodeSnapshot(full[:cut]); err == nil {
			t.Errorf("cut at %d: expected an error", cut)
		}
	}

	flipped := bytes.Clone(full)
	flipped[len(flipped)-5] ^= 0x10 // inside the payload/trailer
	if _, err := DecodeSnapshot(flipped); !errors.Is(err, ErrCorrupted) {
		t.Errorf("bit flip: err = %v, want ErrCorrupted", err)
	}

	badMagic := bytes.Clone(full)
	badMagic[0] = 'X'
	if _, err := DecodeSnapshot(badMagic); !errors.Is(err, ErrCorrupted) {
		t.Errorf("bad magic: err = %v, want ErrCorrupted", err)
	}

	trailing := append(bytes.Clone(full), 0x00)
	if _, err := DecodeSnapshot(trailing); !errors.Is(err, ErrCorrupted) {
		t.Errorf("trailing byte: err = %v, want ErrCorrupted", err)
	}
}
