package jimage

import "strings"

// stringsTable is the image's strings section: every module/parent/base/
// extension string, packed back to back, addressed by byte offset (offset
// 0 is reserved to mean "absent" per the attribute stream's zero-omission
// rule, so the table always starts with one throwaway byte).
type stringsTable struct {
	raw []byte
}

func (t stringsTable) at(offset int32) string {
	if offset <= 0 || int(offset) >= len(t.raw) {
		return ""
	}
	end := int(offset)
	for end < len(t.raw) && t.raw[end] != 0 {
		end++
	}
	return string(t.raw[offset:end])
}

// stringsBuilder interns strings during image construction, handing out
// stable byte offsets.
type stringsBuilder struct {
	raw     []byte
	offsets map[string]int32
}

func newStringsBuilder() *stringsBuilder {
	return &stringsBuilder{raw: []byte{0}, offsets: map[string]int32{"": 0}}
}

func (b *stringsBuilder) intern(s string) int32 {
	if off, ok := b.offsets[s]; ok {
		return off
	}
	off := int32(len(b.raw))
	b.raw = append(b.raw, []byte(s)...)
	b.raw = append(b.raw, 0)
	b.offsets[s] = off
	return off
}

// Resource is one image entry: its parsed Location and the raw content
// bytes, already decompressed.
type Resource struct {
	loc  Location
	Data []byte
	name string
}

// FullName is the resource's path as callers look it up, e.g.
// "/java.base/java/lang/Object.class".
func (r *Resource) FullName() string { return r.name }

// IsCompressed reports whether the resource was stored compressed in the
// image (its CompressedSize differs from its decoded length).
func (r *Resource) IsCompressed() bool { return r.loc.CompressedSize != r.loc.UncompressedSize }

func buildFullName(strs stringsTable, loc Location) string {
	module := strs.at(loc.ModuleOffset)
	parent := strs.at(loc.ParentOffset)
	base := strs.at(loc.BaseOffset)
	ext := strs.at(loc.ExtensionOffset)

	var sb strings.Builder
	sb.WriteByte('/')
	if module != "" {
		sb.WriteString(module)
		sb.WriteByte('/')
	}
	if parent != "" {
		sb.WriteString(parent)
		sb.WriteByte('/')
	}
	sb.WriteString(base)
	if ext != "" {
		sb.WriteByte('.')
		sb.WriteString(ext)
	}
	return sb.String()
}

// splitResourceName decomposes a lookup path like
// "/java.base/java/lang/Object.class" into its module, parent, base, and
// extension components, the inverse of buildFullName.
func splitResourceName(name string) (module, parent, base, ext string) {
	name = strings.TrimPrefix(name, "/")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) == 2 {
		module = parts[0]
		name = parts[1]
	} else {
		name = parts[0]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		parent, name = name[:i], name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
	} else {
		base = name
	}
	return module, parent, base, ext
}
