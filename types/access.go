// Package types holds constants and small pure-value helpers shared by
// the codec, verifier, class loader, and interpreter: access-flag bits,
// field/method descriptor parsing, and operand-stack "category" rules.
// Keeping these in one place avoids the import cycles that would
// otherwise exist between classfile, verify, and interp.
package types

// Access flags, JVMS §4.1 Table 4.1-A/B (classes), §4.5 (fields), §4.6
// (methods). Not every flag applies to every kind of member; callers mask
// with the ones relevant to what they're decoding.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020 // classes
	AccSynchronized = 0x0020 // methods
	AccOpen         = 0x0020 // modules
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransitive   = 0x0020 // requires
	AccStaticPhase  = 0x0040 // requires
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccModule       = 0x8000
	AccMandated     = 0x8000
)

// HasFlag reports whether flags has every bit in mask set.
func HasFlag(flags int, mask int) bool {
	return flags&mask == mask
}
