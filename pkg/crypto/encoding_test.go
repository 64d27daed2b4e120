package crypto

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	for _, b := range [][]byte{{}, {0x00}, {0xff, 0x01, 0xab}} {
		h := HexEncode(b)
		back, err := HexDecode(h)
		if err != nil {
			t.Fatalf("HexDecode(%q): %v", h, err)
		}
		if !bytes.Equal(back, b) {
			t.Errorf("round trip mismatch: got %v, want %v", back, b)
		}
	}
}

func TestHexDecode_InvalidOddLength(t *testing.T) {
	if _, err := HexDecode("abc"); err == nil {
		t.Error("expected error for odd-length hex")
	}
}

func TestBase64RoundTrip(t *testing.T) {
	for _, b := range [][]byte{{}, []byte("hello"), {0, 1, 2, 3, 4, 5, 6, 7}} {
		enc := Base64Encode(b)
		back, err := Base64Decode(enc)
		if err != nil {
			t.Fatalf("Base64Decode(%q): %v", enc, err)
		}
		if !bytes.Equal(back, b) {
			t.Errorf("round trip mismatch: got %v, want %v", back, b)
		}
	}
}

func TestBase64Decode_TolerantOfMissingPaddingAndWhitespace(t *testing.T) {
	enc := Base64Encode([]byte("hello world"))
	trimmed := enc
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	withSpace := " " + trimmed + "\n"

	back, err := Base64Decode(withSpace)
	if err != nil {
		t.Fatalf("Base64Decode: %v", err)
	}
	if string(back) != "hello world" {
		t.Errorf("got %q, want %q", back, "hello world")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual([]byte("abc"), []byte("abc")) {
		t.Error("expected equal byte slices to compare equal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("abd")) {
		t.Error("expected different byte slices to compare unequal")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("ab")) {
		t.Error("expected different-length slices to compare unequal")
	}
}

func TestRandomBytes_Length(t *testing.T) {
	b, err := RandomBytes(16)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if len(b) != 16 {
		t.Errorf("got length %d, want 16", len(b))
	}
}
