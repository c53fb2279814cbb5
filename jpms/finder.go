package jpms

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/jimage"
)

// Finder enumerates available modules by name.
type Finder interface {
	// Find returns the named module's descriptor, or *ErrModuleNotFound.
	Find(name string) (*Descriptor, error)
	// All returns every module the finder can see.
	All() ([]*Descriptor, error)
}

// SystemFinder serves the platform modules out of a jimage: each
// module's descriptor is its /<module>/module-info.class resource.
type SystemFinder struct {
	img *jimage.Image
}

// NewSystemFinder wraps an opened image.
func NewSystemFinder(img *jimage.Image) *SystemFinder {
	return &SystemFinder{img: img}
}

func (f *SystemFinder) Find(name string) (*Descriptor, error) {
	data, err := f.img.GetResource("/" + name + "/module-info.class")
	if err != nil {
		return nil, &ErrModuleNotFound{Name: name}
	}
	return descriptorFromBytes(data)
}

func (f *SystemFinder) All() ([]*Descriptor, error) {
	var out []*Descriptor
	for _, res := range f.img.Names() {
		if !strings.HasSuffix(res, "/module-info.class") {
			continue
		}
		data, err := f.img.GetResource(res)
		if err != nil {
			continue
		}
		d, err := descriptorFromBytes(data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// PathFinder serves modules off --module-path directories: exploded module
// directories and modular jars, each identified by its module-info.class.
type PathFinder struct {
	dirs []string
}

// NewPathFinder builds a finder over the given module-path entries.
func NewPathFinder(dirs []string) *PathFinder {
	return &PathFinder{dirs: dirs}
}

func (f *PathFinder) Find(name string) (*Descriptor, error) {
	all, err := f.All()
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, &ErrModuleNotFound{Name: name}
}

func (f *PathFinder) All() ([]*Descriptor, error) {
	var out []*Descriptor
	for _, dir := range f.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // a missing module-path entry is skipped, not fatal
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			var d *Descriptor
			switch {
			case e.IsDir():
				d, err = descriptorFromFile(filepath.Join(full, "module-info.class"))
			case strings.HasSuffix(e.Name(), ".jar"):
				d, err = descriptorFromJar(full)
			default:
				continue
			}
			if err != nil {
				continue // entries without a descriptor are not modules
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// ComposedFinder chains finders, first hit wins — the system chain
// composes the jimage finder with the module-path finder.
type ComposedFinder struct {
	finders []Finder
}

// Compose builds a finder that consults each of finders in order.
func Compose(finders ...Finder) *ComposedFinder {
	return &ComposedFinder{finders: finders}
}

func (f *ComposedFinder) Find(name string) (*Descriptor, error) {
	for _, inner := range f.finders {
		d, err := inner.Find(name)
		if err == nil {
			return d, nil
		}
		if _, notFound := err.(*ErrModuleNotFound); !notFound {
			return nil, err
		}
	}
	return nil, &ErrModuleNotFound{Name: name}
}

func (f *ComposedFinder) All() ([]*Descriptor, error) {
	seen := make(map[string]bool)
	var out []*Descriptor
	for _, inner := range f.finders {
		ds, err := inner.All()
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			if !seen[d.Name] {
				seen[d.Name] = true
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// TableFinder is an in-memory finder over pre-built descriptors; the VM
// uses it for the synthesized java.base when no platform image is
// available, and tests use it to build configurations directly.
type TableFinder struct {
	byName map[string]*Descriptor
	order  []string
}

// NewTableFinder builds a finder over the given descriptors.
func NewTableFinder(ds ...*Descriptor) *TableFinder {
	f := &TableFinder{byName: make(map[string]*Descriptor, len(ds))}
	for _, d := range ds {
		if _, dup := f.byName[d.Name]; !dup {
			f.byName[d.Name] = d
			f.order = append(f.order, d.Name)
		}
	}
	return f
}

func (f *TableFinder) Find(name string) (*Descriptor, error) {
	if d, ok := f.byName[name]; ok {
		return d, nil
	}
	return nil, &ErrModuleNotFound{Name: name}
}

func (f *TableFinder) All() ([]*Descriptor, error) {
	out := make([]*Descriptor, 0, len(f.order))
	for _, n := range f.order {
		out = append(out, f.byName[n])
	}
	return out, nil
}

func descriptorFromBytes(data []byte) (*Descriptor, error) {
	cf, err := classfile.Decode(data)
	if err != nil {
		return nil, err
	}
	return DescriptorFromClassFile(cf)
}

func descriptorFromFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return descriptorFromBytes(data)
}

func descriptorFromJar(path string) (*Descriptor, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != "module-info.class" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return descriptorFromBytes(buf)
	}
	return nil, &ErrModuleNotFound{Name: path}
}
