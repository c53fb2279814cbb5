package jimage

import "fmt"

// ErrNotFound is returned by Lookup/GetResource when a resource path has no
// entry in the image.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("jimage: resource not found: %s", e.Name) }

// ErrBadMagic is returned when a byte stream does not start with the
// jimage magic number.
type ErrBadMagic struct{ Got uint32 }

func (e *ErrBadMagic) Error() string { return fmt.Sprintf("jimage: bad magic 0x%08X", e.Got) }

// ErrTruncated is returned when the byte stream ends before a structure
// it was expected to hold has been fully read.
type ErrTruncated struct{ Where string }

func (e *ErrTruncated) Error() string { return fmt.Sprintf("jimage: truncated stream at %s", e.Where) }

// ErrCorruptLocation is returned when a location's attribute stream cannot
// be decoded.
type ErrCorruptLocation struct{ Offset int }

func (e *ErrCorruptLocation) Error() string {
	return fmt.Sprintf("jimage: corrupt location attribute stream at offset %d", e.Offset)
}
