package classgen

import (
	"bytes"
	"testing"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

func TestBuiltClassDecodes(t *testing.T) {
	b := NewClass("demo/Adder", "java/lang/Object").
		Field(types.AccPrivate, "total", "I").
		NativeMethod(types.AccPublic, "<init>", "()V").
		Method(types.AccPublic|types.AccStatic, "add", "(II)I", Code{
			MaxStack:  2,
			MaxLocals: 2,
			Bytes: []byte{
				opcodes.ILOAD_0,
				opcodes.ILOAD_1,
				opcodes.IADD,
				opcodes.IRETURN,
			},
		})

	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	cf, err := classfile.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	name, err := cf.Name()
	if err != nil || name != "demo/Adder" {
		t.Fatalf("name = %q, %v", name, err)
	}
	super, err := cf.SuperName()
	if err != nil || super != "java/lang/Object" {
		t.Fatalf("super = %q, %v", super, err)
	}
	if len(cf.Methods) != 2 {
		t.Fatalf("methods = %d", len(cf.Methods))
	}
	add := cf.Methods[1]
	if add.Code == nil {
		t.Fatal("add lost its Code attribute through encode/decode")
	}
	if add.Code.MaxStack != 2 || len(add.Code.Code) != 4 {
		t.Fatalf("code = %+v", add.Code)
	}
	init := cf.Methods[0]
	if !types.HasFlag(int(init.AccessFlags), types.AccNative) {
		t.Fatal("<init> lost its native flag")
	}
	if init.Code != nil {
		t.Fatal("native method must carry no Code attribute")
	}
}

func TestBuiltClassRoundTrips(t *testing.T) {
	data, err := NewClass("demo/Empty", "java/lang/Object").Bytes()
	if err != nil {
		t.Fatal(err)
	}
	cf, err := classfile.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	again, err := classfile.Encode(cf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("decode->encode of a built class is not byte-identical")
	}
}

func TestPoolInterning(t *testing.T) {
	p := NewPool()
	a := p.Utf8("x")
	if b := p.Utf8("x"); a != b {
		t.Fatal("Utf8 not interned")
	}
	c1 := p.Class("pkg/C")
	if c2 := p.Class("pkg/C"); c1 != c2 {
		t.Fatal("Class not interned")
	}
	m1 := p.Methodref("pkg/C", "m", "()V")
	if m2 := p.Methodref("pkg/C", "m", "()V"); m1 != m2 {
		t.Fatal("Methodref not interned")
	}
	l := p.Long(42)
	next := p.Integer(7)
	if next != l+2 {
		t.Fatalf("Long must consume two slots: long at %d, next at %d", l, next)
	}
}
