package object

// Codes used by the newarray instruction's atype operand (JVMS §6.5).
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// PrimArray is the storage of a primitive array. Integral components
// (boolean, byte, char, short, int, long) live widened in Ints; float and
// double live in Floats. Elem is the component's field-descriptor
// character.
type PrimArray struct {
	Elem   byte // 'Z','B','C','S','I','J','F','D'
	Ints   []int64
	Floats []float64
}

// Len returns the array length.
func (a *PrimArray) Len() int {
	if a.Elem == 'F' || a.Elem == 'D' {
		return len(a.Floats)
	}
	return len(a.Ints)
}

// RefArray is the storage of a reference array: its component class (for
// covariant store checks on aastore) and the element slots.
type RefArray struct {
	// ComponentName is the component's internal name or array descriptor.
	ComponentName string
	// Component is non-nil when the component class is a loaded class
	// (nil for nested array components, which check by name shape).
	Component ClassRef
	Data      []*Object
}

// ElemForAtype maps a newarray atype code to its descriptor character.
func ElemForAtype(atype int) (byte, bool) {
	switch atype {
	case TBoolean:
		return 'Z', true
	case TChar:
		return 'C', true
	case TFloat:
		return 'F', true
	case TDouble:
		return 'D', true
	case TByte:
		return 'B', true
	case TShort:
		return 'S', true
	case TInt:
		return 'I', true
	case TLong:
		return 'J', true
	}
	return 0, false
}

// NewPrimArray allocates a zeroed primitive array object of the given
// component descriptor character and length.
func NewPrimArray(elem byte, length int) *Object {
	a := &PrimArray{Elem: elem}
	if elem == 'F' || elem == 'D' {
		a.Floats = make([]float64, length)
	} else {
		a.Ints = make([]int64, length)
	}
	return &Object{Prim: a}
}

// NewRefArray allocates a null-filled reference array object.
func NewRefArray(componentName string, component ClassRef, length int) *Object {
	return &Object{Refs: &RefArray{
		ComponentName: componentName,
		Component:     component,
		Data:          make([]*Object, length),
	}}
}

// ArrayLen returns the length of an array object, -1 if o is not an array.
func (o *Object) ArrayLen() int {
	switch {
	case o.Prim != nil:
		return o.Prim.Len()
	case o.Refs != nil:
		return len(o.Refs.Data)
	case o.Bytes != nil:
		return len(o.Bytes)
	}
	return -1
}

// NormalizePrim clamps v to elem's range with the JVM's load semantics:
// byte and short sign-extend, char and boolean zero-extend (JVMS §2.11.1).
// Stores narrow through the same function so a subsequent load observes
// the narrowed value.
func NormalizePrim(elem byte, v int64) int64 {
	switch elem {
	case 'Z':
		return v & 1
	case 'B':
		return int64(int8(v))
	case 'C':
		return int64(uint16(v))
	case 'S':
		return int64(int16(v))
	case 'I':
		return int64(int32(v))
	default: // J
		return v
	}
}
