package classfile

import "fmt"

// ErrInvalidMagic is returned when a stream's first four bytes are not
// 0xCAFEBABE.
type ErrInvalidMagic struct{ Got uint32 }

func (e *ErrInvalidMagic) Error() string {
	return fmt.Sprintf("class format error: invalid magic 0x%08X", e.Got)
}

// ErrUnsupportedVersion is returned when major.minor falls outside the
// range this codec accepts (45.3 through 69.x, Java 1.1 through 25).
type ErrUnsupportedVersion struct{ Major, Minor uint16 }

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("class format error: unsupported version %d.%d", e.Major, e.Minor)
}

// ErrInvalidConstantPoolIndex is returned when an index into the constant
// pool is zero, out of range, or refers to the unusable second slot of a
// Long/Double entry.
type ErrInvalidConstantPoolIndex struct{ Index int }

func (e *ErrInvalidConstantPoolIndex) Error() string {
	return fmt.Sprintf("class format error: invalid constant pool index %d", e.Index)
}

// ErrInvalidTag is returned when a constant pool entry's tag byte is not
// one of the known constant kinds.
type ErrInvalidTag struct{ Tag byte }

func (e *ErrInvalidTag) Error() string {
	return fmt.Sprintf("class format error: invalid constant pool tag %d", e.Tag)
}

// ErrTruncatedStream is returned when the decoder runs out of input bytes
// mid-structure.
type ErrTruncatedStream struct{ Where string }

func (e *ErrTruncatedStream) Error() string {
	return fmt.Sprintf("class format error: truncated stream reading %s", e.Where)
}

// ErrInvalidMutf8 is returned by DecodeMUTF8 when a byte sequence is not
// well-formed modified UTF-8.
type ErrInvalidMutf8 struct{ Offset int }

func (e *ErrInvalidMutf8) Error() string {
	return fmt.Sprintf("class format error: invalid MUTF-8 at offset %d", e.Offset)
}
