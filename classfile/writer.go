package classfile

import (
	"bytes"
	"encoding/binary"
	"math"
)

// writer accumulates encoded bytes; all multi-byte writes are big-endian
// per JVMS §4.
type writer struct{ buf bytes.Buffer }

func (w *writer) u1(v byte)    { w.buf.WriteByte(v) }
func (w *writer) u2(v uint16)  { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u4(v uint32)  { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) raw(b []byte) { w.buf.Write(b) }

// Encode serializes a ClassFile back to bytes. Encode(Decode(b)) == b for
// any well-formed b, because Decode preserves every
// attribute's raw bytes and the constant pool's original tag/slot layout.
func Encode(cf *ClassFile) ([]byte, error) {
	w := &writer{}
	w.u4(magic)
	w.u2(cf.MinorVersion)
	w.u2(cf.MajorVersion)

	if err := encodeConstantPool(w, cf.ConstantPool); err != nil {
		return nil, err
	}

	w.u2(cf.AccessFlags)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)

	w.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		w.u2(i)
	}

	w.u2(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		w.u2(f.AccessFlags)
		w.u2(f.NameIndex)
		w.u2(f.DescIndex)
		encodeAttributes(w, f.Attributes)
	}

	w.u2(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		w.u2(m.AccessFlags)
		w.u2(m.NameIndex)
		w.u2(m.DescIndex)
		encodeAttributes(w, m.Attributes)
	}

	encodeAttributes(w, cf.Attributes)

	return w.buf.Bytes(), nil
}

func encodeConstantPool(w *writer, cp *ConstantPool) error {
	w.u2(uint16(len(cp.Entries)))
	for i := 1; i < len(cp.Entries); i++ {
		e := cp.Entries[i]
		if e == nil {
			continue // unusable second slot of a preceding Long/Double
		}
		w.u1(e.Tag())
		switch c := e.(type) {
		case Utf8Info:
			enc := EncodeMUTF8(c.Value)
			w.u2(uint16(len(enc)))
			w.raw(enc)
		case IntegerInfo:
			w.u4(uint32(c.Value))
		case FloatInfo:
			w.u4(math.Float32bits(c.Value))
		case LongInfo:
			bits := uint64(c.Value)
			w.u4(uint32(bits >> 32))
			w.u4(uint32(bits))
		case DoubleInfo:
			bits := math.Float64bits(c.Value)
			w.u4(uint32(bits >> 32))
			w.u4(uint32(bits))
		case ClassInfo:
			w.u2(c.NameIndex)
		case StringInfo:
			w.u2(c.StringIndex)
		case FieldrefInfo:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case MethodrefInfo:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case InterfaceMethodrefInfo:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case NameAndTypeInfo:
			w.u2(c.NameIndex)
			w.u2(c.DescriptorIndex)
		case MethodHandleInfo:
			w.u1(c.ReferenceKind)
			w.u2(c.ReferenceIndex)
		case MethodTypeInfo:
			w.u2(c.DescriptorIndex)
		case DynamicInfo:
			w.u2(c.BootstrapMethodAttrIndex)
			w.u2(c.NameAndTypeIndex)
		case InvokeDynamicInfo:
			w.u2(c.BootstrapMethodAttrIndex)
			w.u2(c.NameAndTypeIndex)
		case ModuleInfo:
			w.u2(c.NameIndex)
		case PackageInfo:
			w.u2(c.NameIndex)
		default:
			return &ErrInvalidTag{Tag: e.Tag()}
		}
	}
	return nil
}

func encodeAttributes(w *writer, attrs []Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Info)))
		w.raw(a.Info)
	}
}
