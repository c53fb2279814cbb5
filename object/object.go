package object

import (
	"github.com/theseus-rs/ristretto-sub014/gc"
)

// ClassRef is the view of a runtime class that the object model needs:
// enough to name it and to answer assignability for covariant array
// stores and checkcast. The classloader's Class implements it; keeping an
// interface here breaks the import cycle that a direct dependency would
// create (classloader stores object.Value statics).
type ClassRef interface {
	// InternalName is the class's internal (slash-separated) name.
	InternalName() string
	// AssignableFrom reports whether a value of class other may be bound
	// where this class is expected.
	AssignableFrom(other ClassRef) bool
}

// Object is a heap-allocated reference target: an instance, a primitive
// array, a reference array, or a bare byte vector (the storage behind
// String values and MUTF-8 payloads). Exactly one of
// Fields / Prim / Refs / Bytes is meaningful per object; the constructors
// below establish which.
//
// Every Object is owned by the GC from the moment it is allocated through
// Collector.Allocate; holding a *Object without a root registered
// somewhere up the chain does not keep it alive across a collect.
type Object struct {
	hdr gc.Header

	// Klass is the object's runtime class; nil only for bare byte
	// vectors, which are VM-internal storage, not Java-visible objects.
	Klass ClassRef

	Monitor Monitor

	Fields map[string]Value // instance fields, keyed by field name
	Prim   *PrimArray
	Refs   *RefArray
	Bytes  []byte // byte-vector payload

	// Finalizer, when non-nil, runs when the GC sweeps this object.
	Finalizer func(*Object)
}

// GCHeader hands the collector the object's mark word.
func (o *Object) GCHeader() *gc.Header { return &o.hdr }

// Trace implements the gc trace protocol: mark self, then every object
// reachable from instance fields or reference-array elements. Returning
// early on an already-set mark bit is what terminates cycles.
func (o *Object) Trace(c *gc.Collector) {
	if !c.MarkObject(o) {
		return
	}
	for _, v := range o.Fields {
		if v.Kind == KindRef && v.Ref != nil {
			v.Ref.Trace(c)
		}
	}
	if o.Refs != nil {
		for _, e := range o.Refs.Data {
			if e != nil {
				e.Trace(c)
			}
		}
	}
}

// Finalize implements gc.Finalizable.
func (o *Object) Finalize() {
	if o.Finalizer != nil {
		o.Finalizer(o)
	}
}

// ClassName returns the object's class's internal name, "" for byte
// vectors.
func (o *Object) ClassName() string {
	if o.Klass == nil {
		return ""
	}
	return o.Klass.InternalName()
}

// NewInstance builds an instance of klass with every declared field set to
// its descriptor's default value. fieldDescs maps field name to field
// descriptor, flattened across the class hierarchy by the caller.
func NewInstance(klass ClassRef, fieldDescs map[string]string) *Object {
	fields := make(map[string]Value, len(fieldDescs))
	for name, desc := range fieldDescs {
		fields[name] = DefaultValue(desc)
	}
	return &Object{Klass: klass, Fields: fields}
}

// NewByteVector builds a bare byte-vector object, VM-internal storage.
func NewByteVector(b []byte) *Object {
	return &Object{Bytes: b}
}
