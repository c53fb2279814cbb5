package classloader

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/theseus-rs/ristretto-sub014/jimage"
)

// Source is one class-path entry: somewhere class bytes can be found by
// internal name — a directory, a jar, a jimage module, or an HTTP URL.
type Source interface {
	// Find returns the raw class bytes for name (internal form, without
	// the .class suffix), or *ErrClassNotFound.
	Find(name string) ([]byte, error)
	// Description names the source for diagnostics.
	Description() string
}

// DirSource serves name.class files out of a directory tree.
type DirSource struct{ Root string }

func (s *DirSource) Find(name string) ([]byte, error) {
	path := filepath.Join(s.Root, filepath.FromSlash(name)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrClassNotFound{Name: name}
		}
		return nil, err
	}
	return data, nil
}

func (s *DirSource) Description() string { return "dir:" + s.Root }

// JarSource serves classes out of a jar archive. The archive is opened on
// first use and its directory indexed once; directory entries are
// ignored.
type JarSource struct {
	Path string

	once  sync.Once
	rc    *zip.ReadCloser
	index map[string]*zip.File
	err   error
}

func (s *JarSource) open() {
	s.rc, s.err = zip.OpenReader(s.Path)
	if s.err != nil {
		s.err = &ErrArchive{Path: s.Path, Cause: s.err}
		return
	}
	s.index = make(map[string]*zip.File, len(s.rc.File))
	for _, f := range s.rc.File {
		if strings.HasSuffix(f.Name, ".class") && !strings.HasSuffix(f.Name, "/") {
			s.index[strings.TrimSuffix(f.Name, ".class")] = f
		}
	}
}

func (s *JarSource) Find(name string) ([]byte, error) {
	s.once.Do(s.open)
	if s.err != nil {
		return nil, s.err
	}
	f, ok := s.index[name]
	if !ok {
		return nil, &ErrClassNotFound{Name: name}
	}
	r, err := f.Open()
	if err != nil {
		return nil, &ErrArchive{Path: s.Path, Cause: err}
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ErrArchive{Path: s.Path, Cause: err}
	}
	return data, nil
}

func (s *JarSource) Description() string { return "jar:" + s.Path }

// Close releases the underlying archive.
func (s *JarSource) Close() error {
	if s.rc != nil {
		return s.rc.Close()
	}
	return nil
}

// ImageSource serves classes out of a platform module image, resolving a
// plain class name to its /module/name.class resource through an index
// built once from the image's resource list.
type ImageSource struct {
	Img *jimage.Image

	once  sync.Once
	index map[string]string // class name -> full resource path
	mods  map[string]string // class name -> module name
}

func (s *ImageSource) build() {
	s.index = make(map[string]string)
	s.mods = make(map[string]string)
	for _, res := range s.Img.Names() {
		if !strings.HasSuffix(res, ".class") {
			continue
		}
		trimmed := strings.TrimPrefix(res, "/")
		slash := strings.IndexByte(trimmed, '/')
		if slash < 0 {
			continue
		}
		module := trimmed[:slash]
		class := strings.TrimSuffix(trimmed[slash+1:], ".class")
		if _, dup := s.index[class]; !dup {
			s.index[class] = res
			s.mods[class] = module
		}
	}
}

func (s *ImageSource) Find(name string) ([]byte, error) {
	s.once.Do(s.build)
	res, ok := s.index[name]
	if !ok {
		return nil, &ErrClassNotFound{Name: name}
	}
	return s.Img.GetResource(res)
}

// ModuleOf returns the module holding name, "" if unknown.
func (s *ImageSource) ModuleOf(name string) string {
	s.once.Do(s.build)
	return s.mods[name]
}

func (s *ImageSource) Description() string { return "jimage" }

// HTTPSource fetches name.class relative to a base URL.
type HTTPSource struct {
	Base   string
	Client *http.Client
}

func (s *HTTPSource) Find(name string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(s.Base, "/") + "/" + name + ".class"
	resp, err := client.Get(url)
	if err != nil {
		return nil, &ErrArchive{Path: url, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &ErrClassNotFound{Name: name}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ErrArchive{Path: url, Cause: fmt.Errorf("status %s", resp.Status)}
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPSource) Description() string { return "http:" + s.Base }

// MapSource serves classes out of an in-memory table: the VM's synthesized
// core classes, and test fixtures.
type MapSource struct {
	Name    string
	Classes map[string][]byte
}

func (s *MapSource) Find(name string) ([]byte, error) {
	data, ok := s.Classes[name]
	if !ok {
		return nil, &ErrClassNotFound{Name: name}
	}
	return data, nil
}

func (s *MapSource) Description() string { return "map:" + s.Name }

// PathEntrySource builds the right Source for a -cp entry: a directory, a
// .jar file, or an http(s) URL.
func PathEntrySource(entry string) Source {
	switch {
	case strings.HasPrefix(entry, "http://"), strings.HasPrefix(entry, "https://"):
		return &HTTPSource{Base: entry}
	case strings.HasSuffix(entry, ".jar"):
		return &JarSource{Path: entry}
	default:
		return &DirSource{Root: entry}
	}
}
