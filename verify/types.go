// Package verify implements the bytecode verifier: type-checking a
// method's Code attribute against its declared stack-map frames (JVMS
// §4.10.1). Reference-type questions the method body alone cannot answer
// are delegated to a pluggable TypeContext, which the class loader
// implements over its loaded-class graph.
package verify

import "fmt"

// Kind is a point in the verification type lattice (JVMS §4.10.1.2): Top is
// the universal supertype of the primitive kinds below it; References form
// their own hierarchy rooted at Object and are compared via TypeContext.
type Kind int

const (
	Top Kind = iota
	Int
	Float
	Long
	Double
	Reference
	Null              // bottom of the reference lattice: assignable to any reference
	UninitializedThis // `this` inside <init>, before the super constructor call
	Uninitialized     // result of `new`, before its <init> has run
)

func (k Kind) String() string {
	switch k {
	case Top:
		return "top"
	case Int:
		return "int"
	case Float:
		return "float"
	case Long:
		return "long"
	case Double:
		return "double"
	case Reference:
		return "reference"
	case Null:
		return "null"
	case UninitializedThis:
		return "uninitializedThis"
	case Uninitialized:
		return "uninitialized"
	default:
		return "unknown"
	}
}

// VType is one verification-time value: a Kind, plus for Reference and
// Uninitialized the concrete class name (empty for Null/Top/primitives),
// and for Uninitialized the bytecode offset of the `new` that produced it
// (so two `new`s of the same class at different offsets are distinct
// types until each is initialized, JVMS §4.10.1.4).
type VType struct {
	Kind      Kind
	ClassName string
	NewOffset int
}

// Category returns 2 for Long/Double, 1 for everything else, matching
// the operand-stack/local-variable slot accounting of JVMS §2.6.2.
func (v VType) Category() int {
	if v.Kind == Long || v.Kind == Double {
		return 2
	}
	return 1
}

func (v VType) String() string {
	switch v.Kind {
	case Reference:
		return "reference(" + v.ClassName + ")"
	case Uninitialized:
		return fmt.Sprintf("uninitialized(new@%d)", v.NewOffset)
	default:
		return v.Kind.String()
	}
}

var (
	VTop               = VType{Kind: Top}
	VInt               = VType{Kind: Int}
	VFloat             = VType{Kind: Float}
	VLong              = VType{Kind: Long}
	VDouble            = VType{Kind: Double}
	VNull              = VType{Kind: Null}
	VUninitializedThis = VType{Kind: UninitializedThis}
)

// VRef constructs a Reference VType for class/array type name.
func VRef(className string) VType { return VType{Kind: Reference, ClassName: className} }

// VUninit constructs an Uninitialized VType for a `new` at offset pc.
func VUninit(pc int) VType { return VType{Kind: Uninitialized, NewOffset: pc} }

// TypeContext supplies the reference-type facts the verifier cannot derive
// from a method body alone: subtyping, assignability, and common
// ancestors. The class loader implements this using its loaded-class
// graph.
type TypeContext interface {
	// IsSubtypeOf reports whether sub is the same as, or a (possibly
	// indirect) subclass/implementor of, super.
	IsSubtypeOf(sub, super string) (bool, error)
	// CommonSupertype returns the most specific common ancestor of a and
	// b, used when two control-flow paths merge with different
	// concrete reference types at the same stack slot.
	CommonSupertype(a, b string) (string, error)
}

// Assignable reports whether a value of type from may be used where a
// value of type to is expected — the verifier's core predicate, applied
// at every instruction operand and at every declared stack-map frame.
func Assignable(ctx TypeContext, from, to VType) (bool, error) {
	if to.Kind == Top {
		return true, nil
	}
	if from.Kind == to.Kind && from.Kind != Reference && from.Kind != Uninitialized {
		return true, nil
	}
	switch to.Kind {
	case Reference:
		switch from.Kind {
		case Null:
			return true, nil
		case Reference:
			if to.ClassName == "java/lang/Object" {
				return true, nil
			}
			return ctx.IsSubtypeOf(from.ClassName, to.ClassName)
		default:
			return false, nil
		}
	case Uninitialized:
		return from.Kind == Uninitialized && from.NewOffset == to.NewOffset, nil
	case UninitializedThis:
		return from.Kind == UninitializedThis, nil
	default:
		return false, nil
	}
}
