// Package classgen assembles class files programmatically: a deduplicating
// constant-pool builder plus a small class builder layered on the classfile
// codec. The VM uses it to synthesize its built-in core classes when no
// platform image is configured, and tests use it to assemble fixture
// classes with real bytecode instead of hand-written hex arrays.
package classgen

import (
	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// Pool builds a constant pool, interning duplicate entries.
type Pool struct {
	entries []classfile.ConstantPoolEntry
	utf8    map[string]uint16
	classes map[string]uint16
	strings map[uint16]uint16
	nats    map[[2]uint16]uint16
	refs    map[[3]uint16]uint16 // tag, class, nat
}

// NewPool starts an empty pool (index 0 reserved).
func NewPool() *Pool {
	return &Pool{
		entries: []classfile.ConstantPoolEntry{nil},
		utf8:    make(map[string]uint16),
		classes: make(map[string]uint16),
		strings: make(map[uint16]uint16),
		nats:    make(map[[2]uint16]uint16),
		refs:    make(map[[3]uint16]uint16),
	}
}

func (p *Pool) add(e classfile.ConstantPoolEntry) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	if _, wide := e.(classfile.LongInfo); wide {
		p.entries = append(p.entries, nil)
	} else if _, wide := e.(classfile.DoubleInfo); wide {
		p.entries = append(p.entries, nil)
	}
	return idx
}

// Utf8 interns a Utf8 constant.
func (p *Pool) Utf8(s string) uint16 {
	if idx, ok := p.utf8[s]; ok {
		return idx
	}
	idx := p.add(classfile.Utf8Info{Value: s})
	p.utf8[s] = idx
	return idx
}

// Class interns a Class constant for an internal name.
func (p *Pool) Class(internalName string) uint16 {
	if idx, ok := p.classes[internalName]; ok {
		return idx
	}
	idx := p.add(classfile.ClassInfo{NameIndex: p.Utf8(internalName)})
	p.classes[internalName] = idx
	return idx
}

// String interns a String constant.
func (p *Pool) String(s string) uint16 {
	u := p.Utf8(s)
	if idx, ok := p.strings[u]; ok {
		return idx
	}
	idx := p.add(classfile.StringInfo{StringIndex: u})
	p.strings[u] = idx
	return idx
}

// Integer adds an Integer constant.
func (p *Pool) Integer(v int32) uint16 { return p.add(classfile.IntegerInfo{Value: v}) }

// Float adds a Float constant.
func (p *Pool) Float(v float32) uint16 { return p.add(classfile.FloatInfo{Value: v}) }

// Long adds a Long constant (occupying two slots).
func (p *Pool) Long(v int64) uint16 { return p.add(classfile.LongInfo{Value: v}) }

// Double adds a Double constant (occupying two slots).
func (p *Pool) Double(v float64) uint16 { return p.add(classfile.DoubleInfo{Value: v}) }

// NameAndType interns a NameAndType constant.
func (p *Pool) NameAndType(name, descriptor string) uint16 {
	k := [2]uint16{p.Utf8(name), p.Utf8(descriptor)}
	if idx, ok := p.nats[k]; ok {
		return idx
	}
	idx := p.add(classfile.NameAndTypeInfo{NameIndex: k[0], DescriptorIndex: k[1]})
	p.nats[k] = idx
	return idx
}

// Methodref interns a Methodref constant.
func (p *Pool) Methodref(class, name, descriptor string) uint16 {
	k := [3]uint16{classfile.TagMethodref, p.Class(class), p.NameAndType(name, descriptor)}
	if idx, ok := p.refs[k]; ok {
		return idx
	}
	idx := p.add(classfile.MethodrefInfo{ClassIndex: k[1], NameAndTypeIndex: k[2]})
	p.refs[k] = idx
	return idx
}

// Fieldref interns a Fieldref constant.
func (p *Pool) Fieldref(class, name, descriptor string) uint16 {
	k := [3]uint16{classfile.TagFieldref, p.Class(class), p.NameAndType(name, descriptor)}
	if idx, ok := p.refs[k]; ok {
		return idx
	}
	idx := p.add(classfile.FieldrefInfo{ClassIndex: k[1], NameAndTypeIndex: k[2]})
	p.refs[k] = idx
	return idx
}

// InterfaceMethodref interns an InterfaceMethodref constant.
func (p *Pool) InterfaceMethodref(class, name, descriptor string) uint16 {
	k := [3]uint16{classfile.TagInterfaceMethodref, p.Class(class), p.NameAndType(name, descriptor)}
	if idx, ok := p.refs[k]; ok {
		return idx
	}
	idx := p.add(classfile.InterfaceMethodrefInfo{ClassIndex: k[1], NameAndTypeIndex: k[2]})
	p.refs[k] = idx
	return idx
}

// InvokeDynamic adds an InvokeDynamic constant pointing at a bootstrap
// method slot; used to exercise the interpreter's reserved-opcode path.
func (p *Pool) InvokeDynamic(bootstrapIndex uint16, name, descriptor string) uint16 {
	return p.add(classfile.InvokeDynamicInfo{
		BootstrapMethodAttrIndex: bootstrapIndex,
		NameAndTypeIndex:         p.NameAndType(name, descriptor),
	})
}

// Pool returns the built constant pool.
func (p *Pool) Pool() *classfile.ConstantPool {
	return &classfile.ConstantPool{Entries: p.entries}
}

// Builder assembles one class.
type Builder struct {
	CP    *Pool
	name  string
	super string
	flags uint16
	ifcs  []string

	fields  []classfile.FieldInfo
	methods []classfile.MethodInfo
}

// NewClass starts a class named name (internal form) extending super
// ("" only for java/lang/Object).
func NewClass(name, super string) *Builder {
	return &Builder{
		CP:    NewPool(),
		name:  name,
		super: super,
		flags: types.AccPublic | types.AccSuper,
	}
}

// Flags overrides the class access flags.
func (b *Builder) Flags(flags uint16) *Builder {
	b.flags = flags
	return b
}

// Implements adds an interface by internal name.
func (b *Builder) Implements(name string) *Builder {
	b.ifcs = append(b.ifcs, name)
	return b
}

// Field declares a field.
func (b *Builder) Field(flags uint16, name, descriptor string) *Builder {
	b.fields = append(b.fields, classfile.FieldInfo{
		AccessFlags: flags,
		NameIndex:   b.CP.Utf8(name),
		DescIndex:   b.CP.Utf8(descriptor),
	})
	return b
}

// Code is the body of a bytecode method.
type Code struct {
	MaxStack   int
	MaxLocals  int
	Bytes      []byte
	Exceptions []classfile.ExceptionTableEntry
}

// Method declares a method with a bytecode body. The raw Code attribute
// bytes are synthesized alongside the decoded form, because the codec
// re-emits attributes from their preserved raw bytes (the round-trip
// property), and a built class must encode the same way a decoded one
// does.
func (b *Builder) Method(flags uint16, name, descriptor string, code Code) *Builder {
	attr := classfile.Attribute{
		NameIndex: b.CP.Utf8("Code"),
		Info:      encodeCodeInfo(code),
	}
	b.methods = append(b.methods, classfile.MethodInfo{
		AccessFlags: flags,
		NameIndex:   b.CP.Utf8(name),
		DescIndex:   b.CP.Utf8(descriptor),
		Attributes:  []classfile.Attribute{attr},
		Code: &classfile.CodeAttribute{
			MaxStack:       uint16(code.MaxStack),
			MaxLocals:      uint16(code.MaxLocals),
			Code:           code.Bytes,
			ExceptionTable: code.Exceptions,
			Attributes:     []classfile.Attribute{},
		},
	})
	return b
}

func encodeCodeInfo(code Code) []byte {
	out := make([]byte, 0, 12+len(code.Bytes)+8*len(code.Exceptions))
	put2 := func(v uint16) { out = append(out, byte(v>>8), byte(v)) }
	put4 := func(v uint32) { out = append(out, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }
	put2(uint16(code.MaxStack))
	put2(uint16(code.MaxLocals))
	put4(uint32(len(code.Bytes)))
	out = append(out, code.Bytes...)
	put2(uint16(len(code.Exceptions)))
	for _, e := range code.Exceptions {
		put2(e.StartPC)
		put2(e.EndPC)
		put2(e.HandlerPC)
		put2(e.CatchType)
	}
	put2(0) // no nested attributes
	return out
}

// NativeMethod declares a method with no body, dispatched through the
// intrinsic registry.
func (b *Builder) NativeMethod(flags uint16, name, descriptor string) *Builder {
	b.methods = append(b.methods, classfile.MethodInfo{
		AccessFlags: flags | types.AccNative,
		NameIndex:   b.CP.Utf8(name),
		DescIndex:   b.CP.Utf8(descriptor),
	})
	return b
}

// AbstractMethod declares a bodyless abstract method.
func (b *Builder) AbstractMethod(flags uint16, name, descriptor string) *Builder {
	b.methods = append(b.methods, classfile.MethodInfo{
		AccessFlags: flags | types.AccAbstract,
		NameIndex:   b.CP.Utf8(name),
		DescIndex:   b.CP.Utf8(descriptor),
	})
	return b
}

// Build produces the decoded class file form.
func (b *Builder) Build() *classfile.ClassFile {
	thisIdx := b.CP.Class(b.name)
	var superIdx uint16
	if b.super != "" {
		superIdx = b.CP.Class(b.super)
	}
	var ifcs []uint16
	for _, i := range b.ifcs {
		ifcs = append(ifcs, b.CP.Class(i))
	}
	return &classfile.ClassFile{
		MajorVersion: 61, // Java 17 class format; no newer features are emitted
		ConstantPool: b.CP.Pool(),
		AccessFlags:  b.flags,
		ThisClass:    thisIdx,
		SuperClass:   superIdx,
		Interfaces:   ifcs,
		Fields:       b.fields,
		Methods:      b.methods,
	}
}

// Bytes encodes the class to its binary form.
func (b *Builder) Bytes() ([]byte, error) {
	return classfile.Encode(b.Build())
}
