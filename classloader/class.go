package classloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// InitState is a class's lifecycle state.
type InitState int

const (
	StateUnloaded InitState = iota
	StateLinking            // created, linking or linked, <clinit> not yet run
	StateInitializing
	StateInitialized
	StateFailed
)

func (s InitState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLinking:
		return "linking"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return "?"
	}
}

// Method is one resolved method of a loaded class.
type Method struct {
	Class       *Class
	Name        string
	Descriptor  string
	AccessFlags uint16
	Code        *classfile.CodeAttribute // nil for native and abstract methods
}

// IsNative reports the ACC_NATIVE flag.
func (m *Method) IsNative() bool { return types.HasFlag(int(m.AccessFlags), types.AccNative) }

// IsStatic reports the ACC_STATIC flag.
func (m *Method) IsStatic() bool { return types.HasFlag(int(m.AccessFlags), types.AccStatic) }

// IsAbstract reports the ACC_ABSTRACT flag.
func (m *Method) IsAbstract() bool { return types.HasFlag(int(m.AccessFlags), types.AccAbstract) }

// QualifiedName renders the method for diagnostics, e.g.
// "java/lang/String.intern()Ljava/lang/String;".
func (m *Method) QualifiedName() string {
	return fmt.Sprintf("%s.%s%s", m.Class.Name, m.Name, m.Descriptor)
}

// Field is one declared field of a loaded class.
type Field struct {
	Class       *Class
	Name        string
	Descriptor  string
	AccessFlags uint16
}

// IsStatic reports the ACC_STATIC flag.
func (f *Field) IsStatic() bool { return types.HasFlag(int(f.AccessFlags), types.AccStatic) }

type methodKey struct{ name, desc string }

// Class is a loaded runtime class: the decoded class file plus resolved
// linkage, static storage, and the one-shot initialization state machine
// (JVMS §5.3-§5.5).
type Class struct {
	Name string
	File *classfile.ClassFile // nil for array classes

	Super      *Class
	Interfaces []*Class
	Loader     *Loader
	Module     string // owning module name, "" for the unnamed module

	// ArrayComponent is the component descriptor for array classes
	// ("I" for [I, "Ljava/lang/String;" for [Ljava/lang/String;).
	ArrayComponent string

	methods map[methodKey]*Method
	fields  map[string]*Field // declared fields by name

	staticsMu sync.RWMutex
	statics   map[string]object.Value

	initMu    sync.Mutex
	initCond  *sync.Cond
	state     InitState
	initOwner int64
	initErr   error

	resolveMu    sync.RWMutex
	resolveCache map[uint32]*Method // (cp index << 2 | invoke kind) -> method

	mirrorMu sync.Mutex
	mirror   *object.Object // lazily built java/lang/Class instance
}

// InternalName implements object.ClassRef.
func (c *Class) InternalName() string { return c.Name }

// AssignableFrom implements object.ClassRef: may a value of class other be
// bound where c is expected? Used by covariant array stores and
// checkcast.
func (c *Class) AssignableFrom(other object.ClassRef) bool {
	o, ok := other.(*Class)
	if !ok {
		return c.Name == other.InternalName()
	}
	ok, err := c.Loader.IsSubtypeOf(o.Name, c.Name)
	return err == nil && ok
}

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool { return c.ArrayComponent != "" }

// IsInterface reports the ACC_INTERFACE flag.
func (c *Class) IsInterface() bool {
	return c.File != nil && types.HasFlag(int(c.File.AccessFlags), types.AccInterface)
}

// PackageName returns the class's package in internal form, "" for the
// default package.
func (c *Class) PackageName() string {
	if i := strings.LastIndexByte(c.Name, '/'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// State returns the current lifecycle state.
func (c *Class) State() InitState {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	return c.state
}

// DeclaredMethod returns the method declared directly on c, nil if absent.
func (c *Class) DeclaredMethod(name, descriptor string) *Method {
	return c.methods[methodKey{name, descriptor}]
}

// Clinit returns the class initializer, nil if the class declares none.
func (c *Class) Clinit() *Method { return c.DeclaredMethod("<clinit>", "()V") }

// LookupVirtual resolves (name, descriptor) starting at c and walking
// toward Object, then through superinterfaces for default methods — the
// invokevirtual/invokeinterface walk of JVMS §5.4.3.3.
func (c *Class) LookupVirtual(name, descriptor string) (*Method, error) {
	for k := c; k != nil; k = k.Super {
		if m := k.DeclaredMethod(name, descriptor); m != nil {
			return m, nil
		}
	}
	if m := c.lookupInterfaces(name, descriptor, map[string]bool{}); m != nil {
		return m, nil
	}
	return nil, &ErrNoSuchMember{Class: c.Name, Member: name, Desc: descriptor}
}

func (c *Class) lookupInterfaces(name, descriptor string, seen map[string]bool) *Method {
	for k := c; k != nil; k = k.Super {
		for _, ifc := range k.Interfaces {
			if seen[ifc.Name] {
				continue
			}
			seen[ifc.Name] = true
			if m := ifc.DeclaredMethod(name, descriptor); m != nil && !m.IsAbstract() {
				return m
			}
			if m := ifc.lookupInterfaces(name, descriptor, seen); m != nil {
				return m
			}
		}
	}
	return nil
}

// LookupField resolves a field by name, walking supers and interfaces.
func (c *Class) LookupField(name string) (*Field, error) {
	for k := c; k != nil; k = k.Super {
		if f, ok := k.fields[name]; ok {
			return f, nil
		}
		for _, ifc := range k.Interfaces {
			if f, ok := ifc.fields[name]; ok {
				return f, nil
			}
		}
	}
	return nil, &ErrNoSuchMember{Class: c.Name, Member: name}
}

// InstanceFieldDescs flattens the instance (non-static) field descriptors
// across the hierarchy, the shape object.NewInstance wants.
func (c *Class) InstanceFieldDescs() map[string]string {
	out := make(map[string]string)
	for k := c; k != nil; k = k.Super {
		for name, f := range k.fields {
			if !f.IsStatic() {
				if _, shadowed := out[name]; !shadowed {
					out[name] = f.Descriptor
				}
			}
		}
	}
	return out
}

// GetStatic reads a static field, walking supers for inherited statics.
func (c *Class) GetStatic(name string) (object.Value, bool) {
	for k := c; k != nil; k = k.Super {
		k.staticsMu.RLock()
		v, ok := k.statics[name]
		k.staticsMu.RUnlock()
		if ok {
			return v, true
		}
		for _, ifc := range k.Interfaces {
			if v, ok := ifc.GetStatic(name); ok {
				return v, true
			}
		}
	}
	return object.Value{}, false
}

// SetStatic writes a static field on the class that declares it.
func (c *Class) SetStatic(name string, v object.Value) bool {
	for k := c; k != nil; k = k.Super {
		k.staticsMu.Lock()
		if _, ok := k.statics[name]; ok {
			k.statics[name] = v
			k.staticsMu.Unlock()
			return true
		}
		k.staticsMu.Unlock()
	}
	return false
}

// TraceStatics traces every reference held in static fields; the loader
// registers each loaded class's statics as a GC root.
func (c *Class) TraceStatics(collector staticTracer) {
	c.staticsMu.RLock()
	defer c.staticsMu.RUnlock()
	for _, v := range c.statics {
		if v.Kind == object.KindRef && v.Ref != nil {
			collector.TraceRef(v.Ref)
		}
	}
}

// staticTracer decouples static tracing from the gc package; the vm
// adapts it to the collector.
type staticTracer interface {
	TraceRef(o *object.Object)
}

// EnsureInitialized drives the class to Initialized, running run (the
// interpreter executing <clinit>) at most once per class. A
// recursive call from the initializing thread returns immediately; other
// threads block until the first attempt settles. Superclasses initialize
// first. A failed attempt poisons the class: later uses see
// *ErrNoClassDefFound (JVMS §5.5).
func (c *Class) EnsureInitialized(tid int64, run func(*Class) error) error {
	c.initMu.Lock()
	if c.initCond == nil {
		c.initCond = sync.NewCond(&c.initMu)
	}
	for {
		switch c.state {
		case StateInitialized:
			c.initMu.Unlock()
			return nil
		case StateFailed:
			err := c.initErr
			c.initMu.Unlock()
			return &ErrNoClassDefFound{Name: c.Name, Cause: err}
		case StateInitializing:
			if c.initOwner == tid {
				c.initMu.Unlock()
				return nil // recursive initialization, JVMS §5.5 step 3
			}
			c.initCond.Wait()
		default:
			c.state = StateInitializing
			c.initOwner = tid
			c.initMu.Unlock()

			var err error
			if c.Super != nil {
				err = c.Super.EnsureInitialized(tid, run)
			}
			if err == nil && c.Clinit() != nil {
				err = run(c)
			}

			c.initMu.Lock()
			if err != nil {
				c.state = StateFailed
				c.initErr = err
			} else {
				c.state = StateInitialized
			}
			c.initOwner = 0
			c.initCond.Broadcast()
			c.initMu.Unlock()
			return err
		}
	}
}

// CacheResolved stores a resolved invoke target keyed by (cp-index,
// invoke-kind), so repeated executions of a call site skip the walk.
func (c *Class) CacheResolved(cpIndex int, kind int, m *Method) {
	c.resolveMu.Lock()
	if c.resolveCache == nil {
		c.resolveCache = make(map[uint32]*Method)
	}
	c.resolveCache[uint32(cpIndex)<<2|uint32(kind)] = m
	c.resolveMu.Unlock()
}

// CachedResolved looks up a prior resolution.
func (c *Class) CachedResolved(cpIndex int, kind int) (*Method, bool) {
	c.resolveMu.RLock()
	m, ok := c.resolveCache[uint32(cpIndex)<<2|uint32(kind)]
	c.resolveMu.RUnlock()
	return m, ok
}

// Mirror returns the class's java/lang/Class instance, building it on
// first use with build.
func (c *Class) Mirror(build func(*Class) *object.Object) *object.Object {
	c.mirrorMu.Lock()
	defer c.mirrorMu.Unlock()
	if c.mirror == nil {
		c.mirror = build(c)
	}
	return c.mirror
}
