package classloader

import "fmt"

// ErrClassNotFound reports a class no source on the search path holds
// Surfaces in Java as ClassNotFoundException.
type ErrClassNotFound struct{ Name string }

func (e *ErrClassNotFound) Error() string {
	return fmt.Sprintf("class not found: %s", e.Name)
}

// ErrNoClassDefFound reports a linkage-time not-found or a class whose
// earlier link/init attempt failed.
type ErrNoClassDefFound struct {
	Name  string
	Cause error
}

func (e *ErrNoClassDefFound) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no class definition for %s: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("no class definition for %s", e.Name)
}

func (e *ErrNoClassDefFound) Unwrap() error { return e.Cause }

// ErrCircularity reports a class that transitively appears in its own
// superclass/interface chain, detected through the Linking state.
type ErrCircularity struct{ Name string }

func (e *ErrCircularity) Error() string {
	return fmt.Sprintf("class circularity: %s", e.Name)
}

// ErrIncompatibleClassChange reports a resolved member whose shape no
// longer matches its use site (e.g. invokestatic on an instance method).
type ErrIncompatibleClassChange struct {
	Class  string
	Member string
	Reason string
}

func (e *ErrIncompatibleClassChange) Error() string {
	return fmt.Sprintf("incompatible class change: %s.%s: %s", e.Class, e.Member, e.Reason)
}

// ErrArchive reports a damaged or unreadable jar/image on the class path.
type ErrArchive struct {
	Path  string
	Cause error
}

func (e *ErrArchive) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Cause)
}

func (e *ErrArchive) Unwrap() error { return e.Cause }

// ErrLinkage wraps a codec or verifier failure at link time.
type ErrLinkage struct {
	Name  string
	Cause error
}

func (e *ErrLinkage) Error() string {
	return fmt.Sprintf("linkage error in %s: %v", e.Name, e.Cause)
}

func (e *ErrLinkage) Unwrap() error { return e.Cause }

// ErrNoSuchMember reports a missing field or method during resolution.
type ErrNoSuchMember struct {
	Class  string
	Member string
	Desc   string
}

func (e *ErrNoSuchMember) Error() string {
	return fmt.Sprintf("no such member: %s.%s%s", e.Class, e.Member, e.Desc)
}
