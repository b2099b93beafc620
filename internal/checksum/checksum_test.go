package checksum

import "testing"

func TestValueStandardVector(t *testing.T) {
	// CRC32C check value from the iSCSI specification.
	if got := Value([]byte("123456789")); got != 0xE3069283 {
		t.Errorf("Value = %#x, want 0xE3069283", got)
	}
}

func TestExtend(t *testing.T) {
	whole := Value([]byte("hello world"))
	split := Extend(Value([]byte("hello ")), []byte("world"))
	if whole != split {
		t.Errorf("Extend mismatch: %#x vs %#x", split, whole)
	}
}

func TestMaskUnmask(t *testing.T) {
	for _, crc := range []uint32{0, 1, 0xE3069283, 0xffffffff} {
		masked := Mask(crc)
		if masked == crc {
			t.Errorf("Mask(%#x) should differ from its input", crc)
		}
		if got := Unmask(masked); got != crc {
			t.Errorf("Unmask(Mask(%#x)) = %#x", crc, got)
		}
	}
}

func TestXXH3(t *testing.T) {
	a := XXH3([]byte("hello"))
	if a != XXH3([]byte("hello")) {
		t.Error("XXH3 not deterministic")
	}
	if a == XXH3([]byte("hellp")) {
		t.Error("XXH3 collision on near-identical input")
	}
}

func TestTypeIsSupported(t *testing.T) {
	if TypeNoChecksum.IsSupported() {
		t.Error("TypeNoChecksum should not be supported")
	}
	if !TypeCRC32C.IsSupported() || !TypeXXH3.IsSupported() {
		t.Error("CRC32C and XXH3 must be supported")
	}
	if Type(99).IsSupported() {
		t.Error("unknown type should not be supported")
	}
}

func TestComputeDiffersByType(t *testing.T) {
	data := []byte("some record body")
	if Compute(TypeCRC32C, data) == Compute(TypeXXH3, data) {
		t.Error("expected CRC32C and XXH3 to differ on this input")
	}
	if Compute(TypeNoChecksum, data) != 0 {
		t.Error("unsupported type should compute 0")
	}
}
