// Package classloader locates and materializes classes: a
// delegating loader chain (bootstrap -> platform -> system) over an
// ordered class path of sources, with per-loader class tables, circularity
// detection through the Linking state, verification at link time, and the
// separate one-shot initialization barrier on the runtime Class.
package classloader

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/globals"
	"github.com/theseus-rs/ristretto-sub014/jpms"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/trace"
	"github.com/theseus-rs/ristretto-sub014/types"
	"github.com/theseus-rs/ristretto-sub014/verify"
)

// Kind identifies a built-in loader.
type Kind int

const (
	BootstrapLoader Kind = iota
	PlatformLoader
	SystemLoader
	UserLoader
)

func (k Kind) String() string {
	switch k {
	case BootstrapLoader:
		return "bootstrap"
	case PlatformLoader:
		return "platform"
	case SystemLoader:
		return "system"
	default:
		return "user"
	}
}

// Loader is one class loader: a name, a parent to delegate to, and an
// ordered class path.
type Loader struct {
	Name   string
	Kind   Kind
	Parent *Loader
	Path   []Source

	// VerifyBytecode gates link-time verification (on unless disabled).
	VerifyBytecode bool

	// Graph, when non-nil, supplies module access checks; shared across
	// the loader chain.
	Graph *jpms.Graph

	// StringFactory, set by the VM, builds interned String objects for
	// ConstantValue statics. Nil leaves String constants to first use.
	StringFactory func(string) *object.Object

	mu      sync.Mutex
	classes map[string]*Class
	loading map[string]*loadRequest
}

type loadRequest struct {
	done chan struct{}
	c    *Class
	err  error
}

// New constructs a loader.
func New(name string, kind Kind, parent *Loader, path []Source) *Loader {
	return &Loader{
		Name:           name,
		Kind:           kind,
		Parent:         parent,
		Path:           path,
		VerifyBytecode: globals.GetGlobalRef().VerifyBytecode,
		classes:        make(map[string]*Class),
		loading:        make(map[string]*loadRequest),
	}
}

// NewChain builds the bootstrap -> platform -> system delegation chain
// over the given source lists and returns the system loader.
func NewChain(bootstrap, platform, system []Source) *Loader {
	b := New("bootstrap", BootstrapLoader, nil, bootstrap)
	p := New("platform", PlatformLoader, b, platform)
	return New("system", SystemLoader, p, system)
}

// Bootstrap returns the chain's root loader.
func (l *Loader) Bootstrap() *Loader {
	root := l
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// Classes snapshots the classes this loader has defined; the VM walks it
// to trace static-field roots.
func (l *Loader) Classes() []*Class {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Class, 0, len(l.classes))
	for _, c := range l.classes {
		out = append(out, c)
	}
	return out
}

// Loaded returns the already-loaded class, if any, without loading.
func (l *Loader) Loaded(name string) (*Class, bool) {
	l.mu.Lock()
	c, ok := l.classes[name]
	l.mu.Unlock()
	if ok {
		return c, true
	}
	if l.Parent != nil {
		return l.Parent.Loaded(name)
	}
	return nil, false
}

// Load resolves name to a Class, loading and linking it on first use.
// Load(name) twice returns the same *Class.
func (l *Loader) Load(name string) (*Class, error) {
	return l.load(name, nil)
}

func (l *Loader) load(name string, chain []string) (*Class, error) {
	if strings.HasPrefix(name, "[") {
		return l.loadArray(name, chain)
	}

	l.mu.Lock()
	if c, ok := l.classes[name]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	// Delegate to the parent first; only a clean not-found falls through
	// to this loader's own path.
	if l.Parent != nil {
		c, err := l.Parent.load(name, chain)
		if err == nil {
			return c, nil
		}
		if _, notFound := err.(*ErrClassNotFound); !notFound {
			return nil, err
		}
	}

	for _, prior := range chain {
		if prior == name {
			return nil, &ErrCircularity{Name: name}
		}
	}

	l.mu.Lock()
	if c, ok := l.classes[name]; ok {
		l.mu.Unlock()
		return c, nil
	}
	if req, inflight := l.loading[name]; inflight {
		l.mu.Unlock()
		<-req.done
		return req.c, req.err
	}
	req := &loadRequest{done: make(chan struct{})}
	l.loading[name] = req
	l.mu.Unlock()

	c, err := l.define(name, append(chain, name))
	req.c, req.err = c, err

	l.mu.Lock()
	if err == nil {
		l.classes[name] = c
	}
	delete(l.loading, name)
	l.mu.Unlock()
	close(req.done)
	return c, err
}

// define runs steps 3-6 of the load algorithm: read bytes off the path,
// decode, link supers/interfaces, verify, build runtime structure.
func (l *Loader) define(name string, chain []string) (*Class, error) {
	data, src, err := l.findBytes(name)
	if err != nil {
		return nil, err
	}
	_ = trace.Log(fmt.Sprintf("%s loader: defining %s from %s", l.Name, name, src.Description()), trace.FINE)

	cf, err := classfile.Decode(data)
	if err != nil {
		return nil, &ErrLinkage{Name: name, Cause: err}
	}
	declared, err := cf.Name()
	if err != nil {
		return nil, &ErrLinkage{Name: name, Cause: err}
	}
	if declared != name {
		return nil, &ErrNoClassDefFound{
			Name:  name,
			Cause: fmt.Errorf("file declares %s", declared),
		}
	}

	c := &Class{
		Name:   name,
		File:   cf,
		Loader: l,
		state:  StateLinking,
		Module: l.moduleOf(name, src),
	}

	superName, err := cf.SuperName()
	if err != nil {
		return nil, &ErrLinkage{Name: name, Cause: err}
	}
	if superName != "" {
		if c.Super, err = l.load(superName, chain); err != nil {
			return nil, err
		}
	} else if name != "java/lang/Object" {
		return nil, &ErrLinkage{Name: name, Cause: fmt.Errorf("missing superclass")}
	}
	ifcNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, &ErrLinkage{Name: name, Cause: err}
	}
	for _, in := range ifcNames {
		ifc, err := l.load(in, chain)
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, ifc)
	}

	if err := l.buildMembers(c); err != nil {
		return nil, err
	}

	if l.VerifyBytecode {
		if err := l.verifyClass(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (l *Loader) findBytes(name string) ([]byte, Source, error) {
	for _, src := range l.Path {
		data, err := src.Find(name)
		if err == nil {
			return data, src, nil
		}
		if _, notFound := err.(*ErrClassNotFound); !notFound {
			return nil, nil, err
		}
	}
	return nil, nil, &ErrClassNotFound{Name: name}
}

func (l *Loader) moduleOf(name string, src Source) string {
	if img, ok := src.(*ImageSource); ok {
		return img.ModuleOf(name)
	}
	return jpms.UnnamedModule
}

func (l *Loader) buildMembers(c *Class) error {
	cp := c.File.ConstantPool
	c.methods = make(map[methodKey]*Method, len(c.File.Methods))
	for _, mi := range c.File.Methods {
		mname, err := cp.Utf8(int(mi.NameIndex))
		if err != nil {
			return &ErrLinkage{Name: c.Name, Cause: err}
		}
		mdesc, err := cp.Utf8(int(mi.DescIndex))
		if err != nil {
			return &ErrLinkage{Name: c.Name, Cause: err}
		}
		c.methods[methodKey{mname, mdesc}] = &Method{
			Class:       c,
			Name:        mname,
			Descriptor:  mdesc,
			AccessFlags: mi.AccessFlags,
			Code:        mi.Code,
		}
	}

	c.fields = make(map[string]*Field, len(c.File.Fields))
	c.statics = make(map[string]object.Value)
	for _, fi := range c.File.Fields {
		fname, err := cp.Utf8(int(fi.NameIndex))
		if err != nil {
			return &ErrLinkage{Name: c.Name, Cause: err}
		}
		fdesc, err := cp.Utf8(int(fi.DescIndex))
		if err != nil {
			return &ErrLinkage{Name: c.Name, Cause: err}
		}
		f := &Field{Class: c, Name: fname, Descriptor: fdesc, AccessFlags: fi.AccessFlags}
		c.fields[fname] = f
		if f.IsStatic() {
			c.statics[fname] = l.constantValueOr(cp, fi, fdesc)
		}
	}
	return nil
}

// constantValueOr resolves a static field's ConstantValue attribute to its
// initial value, falling back to the descriptor default.
func (l *Loader) constantValueOr(cp *classfile.ConstantPool, fi classfile.FieldInfo, desc string) object.Value {
	for _, a := range fi.Attributes {
		aname, err := cp.Utf8(int(a.NameIndex))
		if err != nil || aname != classfile.AttrConstantValue || len(a.Info) < 2 {
			continue
		}
		idx := int(binary.BigEndian.Uint16(a.Info))
		e, err := cp.At(idx)
		if err != nil {
			break
		}
		switch v := e.(type) {
		case classfile.IntegerInfo:
			return object.Int(v.Value)
		case classfile.LongInfo:
			return object.Long(v.Value)
		case classfile.FloatInfo:
			return object.Float(v.Value)
		case classfile.DoubleInfo:
			return object.Double(v.Value)
		case classfile.StringInfo:
			if l.StringFactory != nil {
				if s, err := cp.Utf8(int(v.StringIndex)); err == nil {
					return object.Ref(l.StringFactory(s))
				}
			}
		}
		break
	}
	return object.DefaultValue(desc)
}

func (l *Loader) verifyClass(c *Class) error {
	cp := c.File.ConstantPool
	for _, m := range c.methods {
		if m.Code == nil {
			continue
		}
		err := verify.VerifyMethod(c.Name, m.Name, m.Descriptor, m.AccessFlags, m.Code, cp, linkContext{l: l, self: c})
		if err != nil {
			_ = trace.Log(fmt.Sprintf("verification of %s failed: %v", m.QualifiedName(), err), trace.WARNING)
			return &ErrLinkage{Name: c.Name, Cause: err}
		}
	}
	return nil
}

// loadArray synthesizes an array class: no class file, Object as super,
// the component resolved (and linked) for reference components.
func (l *Loader) loadArray(name string, chain []string) (*Class, error) {
	root := l.Bootstrap()
	root.mu.Lock()
	if c, ok := root.classes[name]; ok {
		root.mu.Unlock()
		return c, nil
	}
	root.mu.Unlock()

	component := name[1:]
	if cn := types.ClassNameFromFieldDescriptor(component); cn != "" {
		if _, err := l.load(cn, chain); err != nil {
			return nil, err
		}
	} else if strings.HasPrefix(component, "[") {
		if _, err := l.load(component, chain); err != nil {
			return nil, err
		}
	}
	super, err := l.load("java/lang/Object", chain)
	if err != nil {
		return nil, err
	}

	root.mu.Lock()
	defer root.mu.Unlock()
	if c, ok := root.classes[name]; ok {
		return c, nil
	}
	c := &Class{
		Name:           name,
		Super:          super,
		Loader:         root,
		ArrayComponent: component,
		state:          StateInitialized, // arrays have no <clinit>
		methods:        map[methodKey]*Method{},
		fields:         map[string]*Field{},
		statics:        map[string]object.Value{},
	}
	root.classes[name] = c
	return c, nil
}

// CheckModuleAccess applies the module export/readability rules between two loaded
// classes; a nil graph (no module system configured) admits everything.
func (l *Loader) CheckModuleAccess(from, to *Class) error {
	if l.Graph == nil || from == nil || to == nil {
		return nil
	}
	return l.Graph.CheckAccess(from.Module, to.Module, to.PackageName())
}

// MemberAccessible applies JVMS member access rules: public everywhere;
// protected to subclasses and same package; package-private to the same
// package; private to the same class.
func MemberAccessible(from *Class, owner *Class, flags uint16) bool {
	switch {
	case types.HasFlag(int(flags), types.AccPublic):
		return true
	case types.HasFlag(int(flags), types.AccPrivate):
		return from == owner
	case types.HasFlag(int(flags), types.AccProtected):
		if from.PackageName() == owner.PackageName() {
			return true
		}
		for k := from; k != nil; k = k.Super {
			if k == owner {
				return true
			}
		}
		return false
	default:
		return from.PackageName() == owner.PackageName()
	}
}
