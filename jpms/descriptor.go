// Package jpms models the Java Platform Module System:
// module descriptors parsed from module-info.class, finders that enumerate
// available modules, a resolver that fixpoint-expands a root set along
// requires edges, a readability graph, and the access check the class
// loader and interpreter consult before touching a type in another module.
package jpms

import (
	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// JavaBase is the module every named module implicitly requires and every
// configuration contains.
const JavaBase = "java.base"

// UnnamedModule is the distinguished name of the unnamed module (the
// class path). It reads every named module.
const UnnamedModule = ""

// AllUnnamed is the --add-exports/--add-opens target meaning "the unnamed
// module".
const AllUnnamed = "ALL-UNNAMED"

// Requires is one `requires` clause of a descriptor.
type Requires struct {
	Name       string
	Transitive bool
	Static     bool
}

// Exports is one `exports` clause: a package, optionally qualified to
// specific target modules. An empty To is an unqualified export.
type Exports struct {
	Package string // internal (slash-separated) package name
	To      []string
}

// Opens is one `opens` clause, same shape as Exports.
type Opens struct {
	Package string
	To      []string
}

// Provides is one `provides ... with ...` clause.
type Provides struct {
	Service string // internal class name
	With    []string
}

// Descriptor is a parsed module descriptor.
type Descriptor struct {
	Name    string
	Version string
	Open    bool

	Requires []Requires
	Exports  []Exports
	Opens    []Opens
	Uses     []string
	Provides []Provides
}

// RequiresModule reports whether d names mod in a requires clause.
func (d *Descriptor) RequiresModule(mod string) bool {
	for _, r := range d.Requires {
		if r.Name == mod {
			return true
		}
	}
	return false
}

// DescriptorFromClassFile extracts the Descriptor from a decoded
// module-info.class. The class file must carry a Module attribute.
func DescriptorFromClassFile(cf *classfile.ClassFile) (*Descriptor, error) {
	if cf.Module == nil {
		return nil, &ErrNotAModule{}
	}
	cp := cf.ConstantPool
	m := cf.Module

	name, err := moduleName(cp, int(m.NameIndex))
	if err != nil {
		return nil, err
	}
	d := &Descriptor{
		Name: name,
		Open: types.HasFlag(int(m.Flags), types.AccOpen),
	}
	if m.VersionIndex != 0 {
		if d.Version, err = cp.Utf8(int(m.VersionIndex)); err != nil {
			return nil, err
		}
	}

	for _, r := range m.Requires {
		rn, err := moduleName(cp, int(r.Index))
		if err != nil {
			return nil, err
		}
		d.Requires = append(d.Requires, Requires{
			Name:       rn,
			Transitive: types.HasFlag(int(r.Flags), types.AccTransitive),
			Static:     types.HasFlag(int(r.Flags), types.AccStaticPhase),
		})
	}
	for _, e := range m.Exports {
		pkg, err := packageName(cp, int(e.Index))
		if err != nil {
			return nil, err
		}
		to, err := moduleNames(cp, e.ToIndex)
		if err != nil {
			return nil, err
		}
		d.Exports = append(d.Exports, Exports{Package: pkg, To: to})
	}
	for _, o := range m.Opens {
		pkg, err := packageName(cp, int(o.Index))
		if err != nil {
			return nil, err
		}
		to, err := moduleNames(cp, o.ToIndex)
		if err != nil {
			return nil, err
		}
		d.Opens = append(d.Opens, Opens{Package: pkg, To: to})
	}
	for _, u := range m.Uses {
		cn, err := cp.ClassName(int(u))
		if err != nil {
			return nil, err
		}
		d.Uses = append(d.Uses, cn)
	}
	for _, p := range m.Provides {
		svc, err := cp.ClassName(int(p.Index))
		if err != nil {
			return nil, err
		}
		var with []string
		for _, w := range p.WithIndex {
			cn, err := cp.ClassName(int(w))
			if err != nil {
				return nil, err
			}
			with = append(with, cn)
		}
		d.Provides = append(d.Provides, Provides{Service: svc, With: with})
	}
	return d, nil
}

func moduleName(cp *classfile.ConstantPool, index int) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	mi, ok := e.(classfile.ModuleInfo)
	if !ok {
		return "", &classfile.ErrInvalidTag{Tag: e.Tag()}
	}
	return cp.Utf8(int(mi.NameIndex))
}

func moduleNames(cp *classfile.ConstantPool, indexes []uint16) ([]string, error) {
	var out []string
	for _, i := range indexes {
		n, err := moduleName(cp, int(i))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func packageName(cp *classfile.ConstantPool, index int) (string, error) {
	e, err := cp.At(index)
	if err != nil {
		return "", err
	}
	pi, ok := e.(classfile.PackageInfo)
	if !ok {
		return "", &classfile.ErrInvalidTag{Tag: e.Tag()}
	}
	return cp.Utf8(int(pi.NameIndex))
}
