package classfile

import "testing"

func TestMUTF8RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"Hello, World!",
		"with a \x00 nul in it",
		"emoji: \U0001F600 end",
		"supplementary \U00010000 char",
	}
	for _, s := range cases {
		enc := EncodeMUTF8(s)
		dec, err := DecodeMUTF8(enc)
		if err != nil {
			t.Fatalf("DecodeMUTF8(EncodeMUTF8(%q)) failed: %v", s, err)
		}
		if dec != s {
			t.Fatalf("round trip mismatch: got %q, want %q", dec, s)
		}
	}
}

func TestMUTF8NulEncodedAsTwoBytes(t *testing.T) {
	enc := EncodeMUTF8("\x00")
	if len(enc) != 2 || enc[0] != 0xC0 || enc[1] != 0x80 {
		t.Fatalf("NUL must encode as 0xC0 0x80, got % X", enc)
	}
}

func TestMUTF8InvalidSequences(t *testing.T) {
	bad := [][]byte{
		{0x00},             // a literal zero byte is never valid MUTF-8
		{0xC0},             // truncated 2-byte sequence
		{0xE0, 0x80},       // truncated 3-byte sequence
		{0xE0, 0x00, 0x80}, // bad continuation byte
		{0xED, 0xB0, 0x80}, // lone low surrogate
	}
	for _, b := range bad {
		if _, err := DecodeMUTF8(b); err == nil {
			t.Fatalf("expected ErrInvalidMutf8 for % X", b)
		}
	}
}
