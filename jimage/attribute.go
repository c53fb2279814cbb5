package jimage

// Attribute identifiers for a Location's compact attribute stream: each
// location is a tagged sequence of module/parent/base/extension string
// offsets plus content offset and sizes.
const (
	attrEnd = iota
	attrModule
	attrParent
	attrBase
	attrExtension
	attrOffset
	attrCompressed
	attrUncompressed
)

// Location is one resource's decoded attribute set: string-table offsets
// identifying its module/path/name/extension, and where its bytes live in
// the content section.
type Location struct {
	ModuleOffset     int32
	ParentOffset     int32 // 0 means no parent path component
	BaseOffset       int32
	ExtensionOffset  int32 // 0 means no extension
	ContentOffset    int64
	CompressedSize   int64 // equal to UncompressedSize when stored uncompressed
	UncompressedSize int64
}

// decodeLocation parses one location's attribute stream starting at b[0],
// returning the Location and the number of bytes consumed.
func decodeLocation(b []byte) (Location, int, error) {
	var loc Location
	i := 0
	for {
		if i >= len(b) {
			return Location{}, 0, &ErrCorruptLocation{Offset: i}
		}
		header := b[i]
		i++
		id := int(header >> 3)
		if id == attrEnd {
			return loc, i, nil
		}
		length := int(header&0x7) + 1
		if i+length > len(b) {
			return Location{}, 0, &ErrCorruptLocation{Offset: i}
		}
		var v int64
		for _, byt := range b[i : i+length] {
			v = v<<8 | int64(byt)
		}
		i += length
		switch id {
		case attrModule:
			loc.ModuleOffset = int32(v)
		case attrParent:
			loc.ParentOffset = int32(v)
		case attrBase:
			loc.BaseOffset = int32(v)
		case attrExtension:
			loc.ExtensionOffset = int32(v)
		case attrOffset:
			loc.ContentOffset = v
		case attrCompressed:
			loc.CompressedSize = v
		case attrUncompressed:
			loc.UncompressedSize = v
		}
	}
}

func encodeLocation(loc Location) []byte {
	var out []byte
	put := func(id int, v int64) {
		if v == 0 {
			return // omit zero-valued attributes, as the real format does
		}
		b := minimalBigEndian(v)
		out = append(out, byte(id<<3)|byte(len(b)-1))
		out = append(out, b...)
	}
	put(attrModule, int64(loc.ModuleOffset))
	put(attrParent, int64(loc.ParentOffset))
	put(attrBase, int64(loc.BaseOffset))
	put(attrExtension, int64(loc.ExtensionOffset))
	put(attrOffset, loc.ContentOffset)
	put(attrCompressed, loc.CompressedSize)
	put(attrUncompressed, loc.UncompressedSize)
	out = append(out, byte(attrEnd<<3))
	return out
}

// minimalBigEndian returns v's big-endian encoding in the fewest bytes that
// represent it (1 to 8), matching the attribute stream's variable-width
// value encoding.
func minimalBigEndian(v int64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v)}, b...)
		v >>= 8
	}
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	return b
}
