package jimage

import (
	"bytes"
	"compress/flate"
	"io"
	"os"
)

// Image is an opened, immutable module image. Concurrent
// Lookup/GetResource calls are safe: Image never mutates after
// construction.
type Image struct {
	header    Header
	idx       index
	locations []byte
	strings   stringsTable
	content   []byte // everything after the strings table, to end of file
}

// Open reads an image file from disk (typically $JAVA_HOME/lib/modules).
func Open(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(b)
}

// FromBytes parses an already-loaded image byte slice.
func FromBytes(b []byte) (*Image, error) {
	h, err := decodeHeader(b)
	if err != nil {
		return nil, err
	}
	pos := headerSize
	idx, n, err := decodeIndex(b[pos:], h.TableLength)
	if err != nil {
		return nil, err
	}
	pos += n
	if pos+int(h.LocationsSize) > len(b) {
		return nil, &ErrTruncated{Where: "locations"}
	}
	locations := b[pos : pos+int(h.LocationsSize)]
	pos += int(h.LocationsSize)
	if pos+int(h.StringsSize) > len(b) {
		return nil, &ErrTruncated{Where: "strings"}
	}
	strs := stringsTable{raw: b[pos : pos+int(h.StringsSize)]}
	pos += int(h.StringsSize)

	return &Image{
		header:    h,
		idx:       idx,
		locations: locations,
		strings:   strs,
		content:   b[pos:],
	}, nil
}

// Lookup resolves a resource path (e.g. "/java.base/java/lang/Object.class")
// to its Resource, decompressing its content if necessary.
func (im *Image) Lookup(name string) (*Resource, error) {
	off, ok := im.idx.locate(name)
	if !ok || int(off) >= len(im.locations) {
		return nil, &ErrNotFound{Name: name}
	}
	loc, _, err := decodeLocation(im.locations[off:])
	if err != nil {
		return nil, err
	}
	full := buildFullName(im.strings, loc)
	if full != name {
		// the perfect hash pointed us somewhere, but the name doesn't
		// match: either a hash collision slipped through or the resource
		// genuinely doesn't exist.
		return nil, &ErrNotFound{Name: name}
	}

	start := int(loc.ContentOffset)
	end := start + int(loc.CompressedSize)
	if start < 0 || end > len(im.content) || start > end {
		return nil, &ErrTruncated{Where: "content"}
	}
	raw := im.content[start:end]

	data := raw
	if loc.CompressedSize != loc.UncompressedSize {
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	return &Resource{loc: loc, Data: data, name: full}, nil
}

// GetResource is a convenience wrapper returning just the resource bytes.
func (im *Image) GetResource(name string) ([]byte, error) {
	r, err := im.Lookup(name)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// ResourceCount returns the number of resources packed into the image.
func (im *Image) ResourceCount() int { return int(im.header.ResourceCount) }

// Names lists every resource path in the image by walking the locations
// table front to back (entries are packed with no gaps). The module system
// uses this to enumerate the platform modules' module-info.class entries.
func (im *Image) Names() []string {
	names := make([]string, 0, im.ResourceCount())
	for pos := 0; pos < len(im.locations); {
		loc, n, err := decodeLocation(im.locations[pos:])
		if err != nil {
			break
		}
		pos += n
		names = append(names, buildFullName(im.strings, loc))
	}
	return names
}
