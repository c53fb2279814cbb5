package classfile

// Attribute is a class, field, method, or Code attribute. Unknown
// attributes are kept as opaque (name, bytes) so that re-encoding is
// byte-for-byte exact even for attribute kinds this
// codec does not interpret.
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// ExceptionTableEntry is one row of a Code attribute's exception table
// (JVMS §4.7.3).
type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // 0 means "any" (finally-style handler)
}

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// CodeAttribute is the decoded form of a method's "Code" attribute,
// carrying its own nested attributes (StackMapTable, LineNumberTable, and
// others, kept opaque unless decoded below).
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []Attribute

	StackMapTable   []StackMapFrame // decoded from the nested StackMapTable attribute, if present
	LineNumberTable []LineNumberEntry
}

// VerificationTypeInfo is one stack or local slot's declared type in a
// stack map frame (JVMS §4.7.4).
type VerificationTypeInfo struct {
	Tag        byte   // Top, Integer, Float, Double, Long, Null, UninitializedThis, Object, Uninitialized
	CPoolIndex uint16 // for Tag == ItemObject
	Offset     uint16 // for Tag == ItemUninitialized, the offset of the `new` instruction
}

const (
	ItemTop               = 0
	ItemInteger           = 1
	ItemFloat             = 2
	ItemDouble            = 3
	ItemLong              = 4
	ItemNull              = 5
	ItemUninitializedThis = 6
	ItemObject            = 7
	ItemUninitialized     = 8
)

// StackMapFrame is a single decoded entry of a method's StackMapTable
// attribute, expanded to an explicit bytecode offset and explicit stack
// and local type lists (the compact same/chop/append frame kinds of the
// wire format are resolved at decode time).
type StackMapFrame struct {
	Offset RescaledOffset
	Locals []VerificationTypeInfo
	Stack  []VerificationTypeInfo
}

// RescaledOffset is a bytecode offset; a named type so call sites read
// clearly (offsets in StackMapTable are delta-encoded on the wire but
// absolute once decoded).
type RescaledOffset = int

// Names of the class-attribute kinds this codec decodes structurally;
// everything else round-trips as opaque bytes.
const (
	AttrCode             = "Code"
	AttrStackMapTable    = "StackMapTable"
	AttrLineNumberTable  = "LineNumberTable"
	AttrConstantValue    = "ConstantValue"
	AttrExceptions       = "Exceptions"
	AttrSourceFile       = "SourceFile"
	AttrModule           = "Module"
	AttrBootstrapMethods = "BootstrapMethods"
	AttrDeprecated       = "Deprecated"
	AttrSynthetic        = "Synthetic"
	AttrNestHost         = "NestHost"
	AttrNestMembers      = "NestMembers"
)
