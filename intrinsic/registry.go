package intrinsic

import (
	"fmt"
	"io"
	"sync"

	"github.com/theseus-rs/ristretto-sub014/object"
)

// Key identifies an intrinsic: the owning class's internal name, the
// method name, and the full method descriptor.
type Key struct {
	Class      string
	Name       string
	Descriptor string
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s%s", k.Class, k.Name, k.Descriptor)
}

// Env is the slice of the VM an intrinsic may touch: string construction
// and interning, the process streams, the running Java version, and
// structured ways to raise Java exceptions or halt. The vm's Thread
// implements it; keeping an interface here lets intrinsics stay below the
// vm package.
type Env interface {
	// NewString builds a (non-interned) java/lang/String.
	NewString(s string) (*object.Object, error)
	// Intern returns the canonical String for s.
	Intern(s string) (*object.Object, error)
	// Throw builds a Java exception error of the given class; returning
	// it from an intrinsic raises it at the call site.
	Throw(className, message string) error
	// Exit requests VM termination with the given status
	// (Shutdown.halt0).
	Exit(code int)
	Stdout() io.Writer
	Stderr() io.Writer
	JavaVersion() int
	ThreadID() int64
}

// Func is one intrinsic implementation. args are the call's parameters in
// descriptor order — args[0] is the receiver for instance methods — and
// the return is nil for void, a Value for everything else.
type Func func(env Env, args []object.Value) (*object.Value, error)

// ErrUnsatisfiedLink reports a native method with no registered intrinsic;
// surfaces in Java as UnsatisfiedLinkError.
type ErrUnsatisfiedLink struct{ Key Key }

func (e *ErrUnsatisfiedLink) Error() string {
	return fmt.Sprintf("no intrinsic registered for %s", e.Key)
}

// ErrNotImplemented marks a declared stub whose behavior is intentionally
// absent.
type ErrNotImplemented struct{ Key Key }

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("intrinsic %s is a stub", e.Key)
}

type entry struct {
	spec        VersionSpec
	fn          Func
	suspendable bool
}

// Registry maps keys to version-qualified intrinsic implementations.
// Registration happens at VM construction; lookups after that are
// read-only, so concurrent readers never contend with each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key][]entry)}
}

// Register binds fn to key for the versions spec admits. Later
// registrations for the same key are consulted in order; the first
// admitting entry wins.
func (r *Registry) Register(key Key, spec VersionSpec, fn Func) {
	r.mu.Lock()
	r.entries[key] = append(r.entries[key], entry{spec: spec, fn: fn})
	r.mu.Unlock()
}

// RegisterSuspendable is Register for intrinsics that may block (I/O,
// monitor waits). The flag is reported by LookupSuspendable; the
// interpreter's native dispatch uses Lookup and does not consult it.
func (r *Registry) RegisterSuspendable(key Key, spec VersionSpec, fn Func) {
	r.mu.Lock()
	r.entries[key] = append(r.entries[key], entry{spec: spec, fn: fn, suspendable: true})
	r.mu.Unlock()
}

// Lookup selects the implementation of key for the given Java version.
func (r *Registry) Lookup(key Key, version int) (Func, bool) {
	fn, _, ok := r.lookup(key, version)
	return fn, ok
}

// LookupSuspendable additionally reports whether the implementation may
// block.
func (r *Registry) LookupSuspendable(key Key, version int) (fn Func, suspendable bool, ok bool) {
	return r.lookup(key, version)
}

func (r *Registry) lookup(key Key, version int) (Func, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[key] {
		if e.spec.Admits(version) {
			return e.fn, e.suspendable, true
		}
	}
	return nil, false, false
}

// Size returns the number of registered keys.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
