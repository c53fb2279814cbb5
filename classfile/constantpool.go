package classfile

// Constant pool tag bytes, JVMS §4.4 Table 4.4-A.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// ConstantPoolEntry is one tagged entry in a ConstantPool. Index 0 and the
// second slot of a Long/Double entry are represented by nil.
type ConstantPoolEntry interface {
	Tag() byte
}

type Utf8Info struct{ Value string }
type IntegerInfo struct{ Value int32 }
type FloatInfo struct{ Value float32 }
type LongInfo struct{ Value int64 }
type DoubleInfo struct{ Value float64 }
type ClassInfo struct{ NameIndex uint16 }
type StringInfo struct{ StringIndex uint16 }
type FieldrefInfo struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}
type MethodrefInfo struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}
type InterfaceMethodrefInfo struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}
type NameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}
type MethodHandleInfo struct {
	ReferenceKind  byte
	ReferenceIndex uint16
}
type MethodTypeInfo struct{ DescriptorIndex uint16 }
type DynamicInfo struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}
type InvokeDynamicInfo struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}
type ModuleInfo struct{ NameIndex uint16 }
type PackageInfo struct{ NameIndex uint16 }

func (Utf8Info) Tag() byte               { return TagUtf8 }
func (IntegerInfo) Tag() byte            { return TagInteger }
func (FloatInfo) Tag() byte              { return TagFloat }
func (LongInfo) Tag() byte               { return TagLong }
func (DoubleInfo) Tag() byte             { return TagDouble }
func (ClassInfo) Tag() byte              { return TagClass }
func (StringInfo) Tag() byte             { return TagString }
func (FieldrefInfo) Tag() byte           { return TagFieldref }
func (MethodrefInfo) Tag() byte          { return TagMethodref }
func (InterfaceMethodrefInfo) Tag() byte { return TagInterfaceMethodref }
func (NameAndTypeInfo) Tag() byte        { return TagNameAndType }
func (MethodHandleInfo) Tag() byte       { return TagMethodHandle }
func (MethodTypeInfo) Tag() byte         { return TagMethodType }
func (DynamicInfo) Tag() byte            { return TagDynamic }
func (InvokeDynamicInfo) Tag() byte      { return TagInvokeDynamic }
func (ModuleInfo) Tag() byte             { return TagModule }
func (PackageInfo) Tag() byte            { return TagPackage }

// ConstantPool is the 1-indexed, tagged constant table of a class file
// (JVMS §4.4). Entries[0] is always nil ("none"); Long and Double entries
// also leave the following index nil, per JVMS §4.4.5.
type ConstantPool struct {
	Entries []ConstantPoolEntry
}

// Count returns the constant_pool_count value a re-emitted class file would
// carry: one more than the highest valid index, including the unusable
// second half of Long/Double entries.
func (cp *ConstantPool) Count() int { return len(cp.Entries) }

// At returns the entry at index, or an error if index is 0, out of range,
// or the unusable slot after a Long/Double.
func (cp *ConstantPool) At(index int) (ConstantPoolEntry, error) {
	if index <= 0 || index >= len(cp.Entries) || cp.Entries[index] == nil {
		return nil, &ErrInvalidConstantPoolIndex{Index: index}
	}
	return cp.Entries[index], nil
}

// Utf8 resolves index to its string value, failing if it is not a Utf8Info.
func (cp *ConstantPool) Utf8(index int) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(Utf8Info)
	if !ok {
		return "", &ErrInvalidTag{Tag: e.Tag()}
	}
	return u.Value, nil
}

// ClassName resolves a Class constant at index to the class's internal
// name (e.g. "java/lang/Object"), following its name_index to a Utf8.
func (cp *ConstantPool) ClassName(index int) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	c, ok := e.(ClassInfo)
	if !ok {
		return "", &ErrInvalidTag{Tag: e.Tag()}
	}
	return cp.Utf8(int(c.NameIndex))
}

// NameAndType resolves a NameAndType constant at index to its (name,
// descriptor) pair.
func (cp *ConstantPool) NameAndType(index int) (name, descriptor string, err error) {
	e, err := cp.At(index)
	if err != nil {
		return "", "", err
	}
	nt, ok := e.(NameAndTypeInfo)
	if !ok {
		return "", "", &ErrInvalidTag{Tag: e.Tag()}
	}
	name, err = cp.Utf8(int(nt.NameIndex))
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.Utf8(int(nt.DescriptorIndex))
	return name, descriptor, err
}

// RefInfo is the (owner class, member name, descriptor) a Fieldref,
// Methodref, or InterfaceMethodref constant resolves to.
type RefInfo struct {
	ClassName  string
	MemberName string
	Descriptor string
}

// Ref resolves a Fieldref/Methodref/InterfaceMethodref constant at index.
func (cp *ConstantPool) Ref(index int) (RefInfo, error) {
	e, err := cp.At(index)
	if err != nil {
		return RefInfo{}, err
	}
	var classIndex, natIndex uint16
	switch r := e.(type) {
	case FieldrefInfo:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	case MethodrefInfo:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	case InterfaceMethodrefInfo:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	default:
		return RefInfo{}, &ErrInvalidTag{Tag: e.Tag()}
	}
	className, err := cp.ClassName(int(classIndex))
	if err != nil {
		return RefInfo{}, err
	}
	name, desc, err := cp.NameAndType(int(natIndex))
	if err != nil {
		return RefInfo{}, err
	}
	return RefInfo{ClassName: className, MemberName: name, Descriptor: desc}, nil
}
