package jimage

import (
	"bytes"
	"compress/flate"
	"sort"
)

// Entry is one resource to pack into an image via Build.
type Entry struct {
	Name string // e.g. "/java.base/java/lang/Object.class"
	Data []byte
}

// Build assembles a module image byte stream from a set of resources,
// computing the same two-level perfect-hash redirect table a reader
// expects to find (index.go). compress, when true, deflates every
// resource's content.
//
// There is no publicly available, retrievable reference implementation of
// the real lib/modules writer in this pack (see DESIGN.md): Build targets
// self-consistency with Image's reader, not byte-compatibility with an
// actual OpenJDK-produced file.
func Build(entries []Entry, compress bool) ([]byte, error) {
	n := len(entries)
	tableLength := n*2 + 1
	if tableLength < 1 {
		tableLength = 1
	}

	strs := newStringsBuilder()
	var contentBuf bytes.Buffer
	locBytes := make([][]byte, n)
	for i, e := range entries {
		content := e.Data
		uncompressed := int64(len(e.Data))
		compressed := uncompressed
		if compress {
			var buf bytes.Buffer
			w, err := flate.NewWriter(&buf, flate.BestCompression)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(e.Data); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
			content = buf.Bytes()
			compressed = int64(len(content))
		}

		module, parent, base, ext := splitResourceName(e.Name)
		loc := Location{
			ModuleOffset:     strs.intern(module),
			ParentOffset:     strs.intern(parent),
			BaseOffset:       strs.intern(base),
			ExtensionOffset:  strs.intern(ext),
			ContentOffset:    int64(contentBuf.Len()),
			CompressedSize:   compressed,
			UncompressedSize: uncompressed,
		}
		contentBuf.Write(content)
		locBytes[i] = encodeLocation(loc)
	}

	var locationsBuf bytes.Buffer
	locOffsets := make([]int32, n)
	for i, lb := range locBytes {
		locOffsets[i] = int32(locationsBuf.Len())
		locationsBuf.Write(lb)
	}

	idx, err := buildIndex(entryNames(entries), locOffsets, tableLength)
	if err != nil {
		return nil, err
	}

	h := Header{
		MajorVersion:  1,
		MinorVersion:  0,
		ResourceCount: uint32(n),
		TableLength:   uint32(tableLength),
		LocationsSize: uint32(locationsBuf.Len()),
		StringsSize:   uint32(len(strs.raw)),
	}

	var out bytes.Buffer
	out.Write(h.encode())
	out.Write(idx.encode())
	out.Write(locationsBuf.Bytes())
	out.Write(strs.raw)
	out.Write(contentBuf.Bytes())
	return out.Bytes(), nil
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// buildIndex constructs the two-level perfect hash redirect/offsets tables
// (index.go's locate is the inverse of this).
func buildIndex(names []string, locOffsets []int32, tableLength int) (index, error) {
	n := int32(tableLength)
	groups := make(map[int32][]int) // primary bucket -> entry indexes
	for i, name := range names {
		b := hashSeeded(name, 0) % n
		groups[b] = append(groups[b], i)
	}

	idx := index{redirect: make([]int32, tableLength), offsets: make([]int32, tableLength)}
	occupied := make([]bool, tableLength)

	var singles, collisions []int32
	for b, members := range groups {
		if len(members) == 1 {
			singles = append(singles, b)
		} else {
			collisions = append(collisions, b)
		}
	}
	sort.Slice(singles, func(i, j int) bool { return singles[i] < singles[j] })
	sort.Slice(collisions, func(i, j int) bool { return len(groups[collisions[i]]) > len(groups[collisions[j]]) })

	for _, b := range singles {
		i := groups[b][0]
		idx.redirect[b] = -1
		idx.offsets[b] = locOffsets[i]
		occupied[b] = true
	}
	for _, b := range collisions {
		occupied[b] = true // reserved to hold a rehash seed, never a direct entry
	}

	for _, b := range collisions {
		members := groups[b]
		found := false
		for seed := int32(1); seed < 1_000_000 && !found; seed++ {
			targets := make([]int32, len(members))
			ok := true
			seen := map[int32]bool{}
			for mi, entryIdx := range members {
				t := hashSeeded(names[entryIdx], seed) % n
				if occupied[t] || seen[t] {
					ok = false
					break
				}
				seen[t] = true
				targets[mi] = t
			}
			if !ok {
				continue
			}
			idx.redirect[b] = seed
			for mi, entryIdx := range members {
				t := targets[mi]
				idx.redirect[t] = -1
				idx.offsets[t] = locOffsets[entryIdx]
				occupied[t] = true
			}
			found = true
		}
		if !found {
			return index{}, &ErrCorruptLocation{Offset: int(b)}
		}
	}

	return idx, nil
}
