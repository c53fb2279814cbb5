// Package object implements the runtime value and object model: the
// Value sum type that flows across operand stacks and local
// variables, heap objects (instances, primitive arrays, reference arrays,
// byte vectors), and per-object monitors with recursive locking.
//
// Value is a tagged struct rather than an interface-typed field: the
// value set is a closed sum {I32, I64, F32, F64, ObjectRef}, and the
// interpreter's category discipline depends on knowing the kind without
// reflection.
package object

// Kind discriminates a Value.
type Kind uint8

const (
	KindI32 Kind = iota
	KindI64
	KindF32
	KindF64
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindI32:
		return "int"
	case KindI64:
		return "long"
	case KindF32:
		return "float"
	case KindF64:
		return "double"
	case KindRef:
		return "reference"
	default:
		return "?"
	}
}

// Value is one operand-stack or local-variable slot's content. Category-2
// kinds (I64, F64) logically occupy two slots; the interpreter stores them
// in one Value and accounts for the second slot where the JVM requires it.
//
// byte/short/char/boolean are stored widened as I32: byte and short
// sign-extended, char and boolean zero-extended (JVMS §2.11.1).
type Value struct {
	Kind Kind
	I    int64   // KindI32 (low 32 bits significant) and KindI64
	F    float64 // KindF32 (rounded through float32) and KindF64
	Ref  *Object // KindRef; nil is Java null
}

// Int builds an int value.
func Int(v int32) Value { return Value{Kind: KindI32, I: int64(v)} }

// Long builds a long value.
func Long(v int64) Value { return Value{Kind: KindI64, I: v} }

// Float builds a float value.
func Float(v float32) Value { return Value{Kind: KindF32, F: float64(v)} }

// Double builds a double value.
func Double(v float64) Value { return Value{Kind: KindF64, F: v} }

// Ref builds a reference value; Ref(nil) is Java null.
func Ref(o *Object) Value { return Value{Kind: KindRef, Ref: o} }

// Null is the null reference.
func Null() Value { return Value{Kind: KindRef} }

// Category returns 2 for long/double, 1 otherwise (JVMS §2.11.1).
func (v Value) Category() int {
	if v.Kind == KindI64 || v.Kind == KindF64 {
		return 2
	}
	return 1
}

// IsNull reports whether v is the null reference.
func (v Value) IsNull() bool { return v.Kind == KindRef && v.Ref == nil }

// AsInt returns the value's int content, truncated to 32 bits.
func (v Value) AsInt() int32 { return int32(v.I) }

// AsFloat returns the value's float content rounded through float32.
func (v Value) AsFloat() float32 { return float32(v.F) }

// DefaultValue returns the zero value for a field descriptor: 0, 0L, 0.0f,
// 0.0d, or null.
func DefaultValue(descriptor string) Value {
	if descriptor == "" {
		return Null()
	}
	switch descriptor[0] {
	case 'J':
		return Long(0)
	case 'F':
		return Float(0)
	case 'D':
		return Double(0)
	case 'L', '[':
		return Null()
	default: // Z B C S I
		return Int(0)
	}
}
