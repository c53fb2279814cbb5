package classfile

import (
	"bytes"
	"testing"
)

// minimalClassBytes hand-assembles the smallest legal class file: a public
// class Foo directly extending java/lang/Object, no fields, methods, or
// attributes.
func minimalClassBytes() []byte {
	var b bytes.Buffer
	u2 := func(v uint16) { b.WriteByte(byte(v >> 8)); b.WriteByte(byte(v)) }
	u4 := func(v uint32) {
		b.WriteByte(byte(v >> 24))
		b.WriteByte(byte(v >> 16))
		b.WriteByte(byte(v >> 8))
		b.WriteByte(byte(v))
	}
	utf8 := func(s string) { u2(uint16(len(s))); b.WriteString(s) }

	u4(magic)
	u2(0)  // minor
	u2(52) // major (Java 8)

	u2(5) // constant_pool_count (4 entries, 1-indexed)
	b.WriteByte(TagUtf8)
	utf8("Foo")
	b.WriteByte(TagClass)
	u2(1)
	b.WriteByte(TagUtf8)
	utf8("java/lang/Object")
	b.WriteByte(TagClass)
	u2(3)

	u2(0x0021) // access_flags: public, super
	u2(2)      // this_class
	u2(4)      // super_class

	u2(0) // interfaces_count
	u2(0) // fields_count
	u2(0) // methods_count
	u2(0) // attributes_count

	return b.Bytes()
}

func TestDecodeMinimalClass(t *testing.T) {
	raw := minimalClassBytes()
	cf, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	name, err := cf.Name()
	if err != nil || name != "Foo" {
		t.Fatalf("Name() = %q, %v; want Foo, nil", name, err)
	}
	super, err := cf.SuperName()
	if err != nil || super != "java/lang/Object" {
		t.Fatalf("SuperName() = %q, %v; want java/lang/Object, nil", super, err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw := minimalClassBytes()
	cf, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, err := Encode(cf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(raw, out) {
		t.Fatalf("round trip mismatch:\n got  % X\n want % X", out, raw)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	raw := minimalClassBytes()
	raw[0] = 0x00
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected ErrInvalidMagic")
	} else if _, ok := err.(*ErrInvalidMagic); !ok {
		t.Fatalf("expected *ErrInvalidMagic, got %T: %v", err, err)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	raw := minimalClassBytes()
	raw[6] = 0xFF
	raw[7] = 0xFF // major_version = 0xFFFF
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected ErrUnsupportedVersion")
	} else if _, ok := err.(*ErrUnsupportedVersion); !ok {
		t.Fatalf("expected *ErrUnsupportedVersion, got %T: %v", err, err)
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	raw := minimalClassBytes()
	if _, err := Decode(raw[:len(raw)-4]); err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestConstantPoolInvalidIndex(t *testing.T) {
	cf, err := Decode(minimalClassBytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := cf.ConstantPool.At(0); err == nil {
		t.Fatal("index 0 must be invalid")
	}
	if _, err := cf.ConstantPool.At(999); err == nil {
		t.Fatal("out-of-range index must be invalid")
	}
}
