// Package classfile implements the JVM class file codec: decoding a byte
// stream into a ClassFile, and re-encoding a ClassFile back to bytes
// byte-for-byte identical to the input.
//
// The constant pool is modeled as a tagged union (ConstantPoolEntry plus
// per-kind structs) rather than parallel per-kind slices: the pool is a
// 1-indexed sequence of tagged entries, and a sum-typed Go value models
// that directly.
package classfile

// ClassFile is the fully decoded form of a .class file (JVMS §4.1).
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16

	ConstantPool *ConstantPool

	AccessFlags uint16
	ThisClass   uint16
	SuperClass  uint16 // 0 only for java/lang/Object

	Interfaces []uint16 // constant pool indexes of Class entries

	Fields  []FieldInfo
	Methods []MethodInfo

	Attributes []Attribute

	// BootstrapMethods is decoded out of the BootstrapMethods class
	// attribute (used by invokedynamic / Dynamic constants), kept
	// structured because the verifier and interpreter both need it.
	BootstrapMethods []BootstrapMethod

	// Module, when non-nil, is the decoded Module attribute of a
	// module-info.class (JVMS §4.7.25).
	Module *ModuleAttribute

	SourceFile string // from the SourceFile attribute, "" if absent
}

// FieldInfo is one entry of the fields table.
type FieldInfo struct {
	AccessFlags uint16
	NameIndex   uint16
	DescIndex   uint16
	Attributes  []Attribute
}

// MethodInfo is one entry of the methods table. Code is nil for abstract
// and native methods.
type MethodInfo struct {
	AccessFlags uint16
	NameIndex   uint16
	DescIndex   uint16
	Attributes  []Attribute
	Code        *CodeAttribute // non-nil iff a Code attribute was present
}

// BootstrapMethod is one entry of the BootstrapMethods class attribute
// (JVMS §4.7.23).
type BootstrapMethod struct {
	MethodRefIndex uint16 // index of a MethodHandle constant
	Arguments      []uint16
}

// ModuleAttribute is the decoded Module class attribute (JVMS §4.7.25),
// the wire form of a module-info.class's descriptor.
type ModuleAttribute struct {
	NameIndex    uint16
	Flags        uint16
	VersionIndex uint16 // 0 if absent

	Requires []ModuleRequires
	Exports  []ModuleExports
	Opens    []ModuleOpens
	Uses     []uint16 // Class constant indexes
	Provides []ModuleProvides
}

type ModuleRequires struct {
	Index        uint16 // Module constant index
	Flags        uint16
	VersionIndex uint16
}

type ModuleExports struct {
	Index   uint16 // Package constant index
	Flags   uint16
	ToIndex []uint16 // Module constant indexes; empty means unqualified
}

type ModuleOpens struct {
	Index   uint16
	Flags   uint16
	ToIndex []uint16
}

type ModuleProvides struct {
	Index     uint16 // Class constant index
	WithIndex []uint16
}

// Name resolves the class's own internal name via ThisClass.
func (c *ClassFile) Name() (string, error) {
	return c.ConstantPool.ClassName(int(c.ThisClass))
}

// SuperName resolves the superclass's internal name, "" for java/lang/Object.
func (c *ClassFile) SuperName() (string, error) {
	if c.SuperClass == 0 {
		return "", nil
	}
	return c.ConstantPool.ClassName(int(c.SuperClass))
}

// InterfaceNames resolves every entry of Interfaces to its internal name.
func (c *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(c.Interfaces))
	for _, idx := range c.Interfaces {
		n, err := c.ConstantPool.ClassName(int(idx))
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, nil
}
