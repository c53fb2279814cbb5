// Package intrinsic implements the host-native method registry:
// intrinsic implementations keyed by (class, method, descriptor) and
// qualified by a Java-version predicate, aggregated at VM startup and
// consulted by the interpreter whenever a resolved method is declared
// native.
//
// The implementations themselves live in the natives package; this one
// holds only the dispatch mechanism.
package intrinsic

import "fmt"

// VersionKind discriminates a VersionSpec.
type VersionKind int

const (
	Any VersionKind = iota
	Equal
	LessThanOrEqual
	GreaterThanOrEqual
	Between
)

// VersionSpec is the predicate selecting which Java versions an intrinsic
// serves. The same method name often changes signature or semantics
// across releases, so a registration names the versions it is valid
// for. Versions are Java
// feature releases (8, 11, 17, 21, 25).
type VersionSpec struct {
	Kind VersionKind
	Lo   int // Equal/GreaterThanOrEqual/Between lower bound
	Hi   int // LessThanOrEqual/Between upper bound
}

// VAny admits every version.
func VAny() VersionSpec { return VersionSpec{Kind: Any} }

// VEqual admits exactly v.
func VEqual(v int) VersionSpec { return VersionSpec{Kind: Equal, Lo: v} }

// VAtMost admits versions <= v.
func VAtMost(v int) VersionSpec { return VersionSpec{Kind: LessThanOrEqual, Hi: v} }

// VAtLeast admits versions >= v.
func VAtLeast(v int) VersionSpec { return VersionSpec{Kind: GreaterThanOrEqual, Lo: v} }

// VBetween admits lo <= version <= hi.
func VBetween(lo, hi int) VersionSpec { return VersionSpec{Kind: Between, Lo: lo, Hi: hi} }

// Admits reports whether the predicate accepts version.
func (s VersionSpec) Admits(version int) bool {
	switch s.Kind {
	case Any:
		return true
	case Equal:
		return version == s.Lo
	case LessThanOrEqual:
		return version <= s.Hi
	case GreaterThanOrEqual:
		return version >= s.Lo
	case Between:
		return s.Lo <= version && version <= s.Hi
	default:
		return false
	}
}

func (s VersionSpec) String() string {
	switch s.Kind {
	case Any:
		return "any"
	case Equal:
		return fmt.Sprintf("=%d", s.Lo)
	case LessThanOrEqual:
		return fmt.Sprintf("<=%d", s.Hi)
	case GreaterThanOrEqual:
		return fmt.Sprintf(">=%d", s.Lo)
	case Between:
		return fmt.Sprintf("%d..%d", s.Lo, s.Hi)
	default:
		return "?"
	}
}
