// Package jimage reads the platform module image format: the packed,
// indexed file (conventionally $JAVA_HOME/lib/modules) that
// holds every platform module's class files in one perfect-hash-indexed
// blob, so the bootstrap class loader never has to touch the filesystem
// per-class.
package jimage

import (
	"encoding/binary"
)

const magic uint32 = 0xCAFEDADA

const headerSize = 4 + 2 + 2 + 4 + 4 + 4 + 4 + 4

// Header is the fixed-size preamble of an image file.
type Header struct {
	MajorVersion  uint16
	MinorVersion  uint16
	Flags         uint32
	ResourceCount uint32
	TableLength   uint32 // number of redirect/offset buckets
	LocationsSize uint32 // byte length of the locations table
	StringsSize   uint32 // byte length of the strings table
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, &ErrTruncated{Where: "header"}
	}
	if got := binary.BigEndian.Uint32(b[0:4]); got != magic {
		return Header{}, &ErrBadMagic{Got: got}
	}
	return Header{
		MajorVersion:  binary.BigEndian.Uint16(b[4:6]),
		MinorVersion:  binary.BigEndian.Uint16(b[6:8]),
		Flags:         binary.BigEndian.Uint32(b[8:12]),
		ResourceCount: binary.BigEndian.Uint32(b[12:16]),
		TableLength:   binary.BigEndian.Uint32(b[16:20]),
		LocationsSize: binary.BigEndian.Uint32(b[20:24]),
		StringsSize:   binary.BigEndian.Uint32(b[24:28]),
	}, nil
}

func (h Header) encode() []byte {
	b := make([]byte, headerSize)
	binary.BigEndian.PutUint32(b[0:4], magic)
	binary.BigEndian.PutUint16(b[4:6], h.MajorVersion)
	binary.BigEndian.PutUint16(b[6:8], h.MinorVersion)
	binary.BigEndian.PutUint32(b[8:12], h.Flags)
	binary.BigEndian.PutUint32(b[12:16], h.ResourceCount)
	binary.BigEndian.PutUint32(b[16:20], h.TableLength)
	binary.BigEndian.PutUint32(b[20:24], h.LocationsSize)
	binary.BigEndian.PutUint32(b[24:28], h.StringsSize)
	return b
}
