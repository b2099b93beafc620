package encoding

import (
	"bytes"
	"errors"
	"testing"
)

func TestFixedRoundTrip(t *testing.T) {
	buf := make([]byte, 8)

	for _, v := range []uint32{0, 1, 0xff, 0x12345678, 0xffffffff} {
		EncodeFixed32(buf, v)
		if got := DecodeFixed32(buf); got != v {
			t.Errorf("fixed32 %#x: got %#x", v, got)
		}
	}
	for _, v := range []uint64{0, 1, 0xdeadbeef, 1 << 40, ^uint64(0)} {
		EncodeFixed64(buf, v)
		if got := DecodeFixed64(buf); got != v {
			t.Errorf("fixed64 %#x: got %#x", v, got)
		}
	}
}

func TestFixedLittleEndian(t *testing.T) {
	buf := make([]byte, 4)
	EncodeFixed32(buf, 0x04030201)
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Errorf("got % x, want 01 02 03 04", buf)
	}
}

func TestAppendFixed(t *testing.T) {
	out := AppendFixed32(nil, 0x01020304)
	out = AppendFixed64(out, 0x0102030405060708)
	if len(out) != 12 {
		t.Fatalf("len = %d, want 12", len(out))
	}
	if got := DecodeFixed32(out); got != 0x01020304 {
		t.Errorf("fixed32 = %#x", got)
	}
	if got := DecodeFixed64(out[4:]); got != 0x0102030405060708 {
		t.Errorf("fixed64 = %#x", got)
	}
}

func TestVarint64RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1 << 21, 1 << 42, ^uint64(0)}
	for _, v := range values {
		buf := AppendVarint64(nil, v)
		if len(buf) != VarintLength(v) {
			t.Errorf("%d: encoded length %d, VarintLength %d", v, len(buf), VarintLength(v))
		}
		got, n, err := DecodeVarint64(buf)
		if err != nil {
			t.Fatalf("%d: decode: %v", v, err)
		}
		if got != v || n != len(buf) {
			t.Errorf("%d: got %d (%d bytes)", v, got, n)
		}
	}
}

func TestVarint64Truncated(t *testing.T) {
	full := AppendVarint64(nil, 1<<42)
	for cut := 0; cut < len(full); cut++ {
		if _, _, err := DecodeVarint64(full[:cut]); !errors.Is(err, ErrVarintTermination) {
			t.Errorf("cut %d: err = %v, want ErrVarintTermination", cut, err)
		}
	}
}

func TestVarint64Overflow(t *testing.T) {
	// 10 continuation bytes never terminate within 64 bits.
	buf := bytes.Repeat([]byte{0x80}, MaxVarint64Length)
	if _, _, err := DecodeVarint64(buf); !errors.Is(err, ErrVarintOverflow) {
		t.Errorf("err = %v, want ErrVarintOverflow", err)
	}
}

func TestLengthPrefixedSlice(t *testing.T) {
	var buf []byte
	buf = AppendLengthPrefixedSlice(buf, []byte("hello"))
	buf = AppendLengthPrefixedSlice(buf, nil)
	buf = AppendLengthPrefixedSlice(buf, bytes.Repeat([]byte{0xab}, 200))

	first, n, err := DecodeLengthPrefixedSlice(buf)
	if err != nil || string(first) != "hello" {
		t.Fatalf("first = %q, %v", first, err)
	}
	buf = buf[n:]

	second, n, err := DecodeLengthPrefixedSlice(buf)
	if err != nil || len(second) != 0 {
		t.Fatalf("second = %q, %v", second, err)
	}
	buf = buf[n:]

	third, n, err := DecodeLengthPrefixedSlice(buf)
	if err != nil || len(third) != 200 {
		t.Fatalf("third len = %d, %v", len(third), err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d of %d bytes", n, len(buf))
	}
}

func TestLengthPrefixedSliceShortBuffer(t *testing.T) {
	buf := AppendLengthPrefixedSlice(nil, []byte("payload"))
	if _, _, err := DecodeLengthPrefixedSlice(buf[:len(buf)-1]); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("err = %v, want ErrBufferTooSmall", err)
	}
}
