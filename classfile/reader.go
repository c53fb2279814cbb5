package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const magic = 0xCAFEBABE

// reader wraps a byte slice with a cursor; every read method reports
// ErrTruncatedStream instead of panicking on a short slice, because a
// malformed class file is ordinary (if fatal) input, not a programmer bug.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) u1(where string) (byte, error) {
	if r.pos+1 > len(r.b) {
		return 0, &ErrTruncatedStream{Where: where}
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2(where string) (uint16, error) {
	if r.pos+2 > len(r.b) {
		return 0, &ErrTruncatedStream{Where: where}
	}
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4(where string) (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, &ErrTruncatedStream{Where: where}
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytesN(n int, where string) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, &ErrTruncatedStream{Where: where}
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// Decode parses a class file byte stream into a ClassFile. Decoding is
// big-endian throughout (JVMS §4). Unknown attributes are preserved
// verbatim so Encode(Decode(b)) == b for any well-formed b.
func Decode(data []byte) (*ClassFile, error) {
	r := &reader{b: data}

	m, err := r.u4("magic")
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, &ErrInvalidMagic{Got: m}
	}

	minor, err := r.u2("minor_version")
	if err != nil {
		return nil, err
	}
	major, err := r.u2("major_version")
	if err != nil {
		return nil, err
	}
	if major < 45 || major > 69 || (major == 45 && minor < 3) {
		return nil, &ErrUnsupportedVersion{Major: major, Minor: minor}
	}

	cp, err := decodeConstantPool(r)
	if err != nil {
		return nil, err
	}

	accessFlags, err := r.u2("access_flags")
	if err != nil {
		return nil, err
	}
	thisClass, err := r.u2("this_class")
	if err != nil {
		return nil, err
	}
	superClass, err := r.u2("super_class")
	if err != nil {
		return nil, err
	}

	ifaceCount, err := r.u2("interfaces_count")
	if err != nil {
		return nil, err
	}
	interfaces := make([]uint16, ifaceCount)
	for i := range interfaces {
		interfaces[i], err = r.u2("interfaces")
		if err != nil {
			return nil, err
		}
	}

	fields, err := decodeFields(r, cp)
	if err != nil {
		return nil, err
	}
	methods, err := decodeMethods(r, cp)
	if err != nil {
		return nil, err
	}
	attrs, err := decodeAttributes(r, cp)
	if err != nil {
		return nil, err
	}

	cf := &ClassFile{
		MinorVersion: minor,
		MajorVersion: major,
		ConstantPool: cp,
		AccessFlags:  accessFlags,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		Attributes:   attrs,
	}

	if err := decodeWellKnownClassAttributes(cf, cp); err != nil {
		return nil, err
	}

	if r.pos != len(r.b) {
		return nil, &ErrTruncatedStream{Where: "trailing bytes after class file"}
	}

	return cf, nil
}

func decodeConstantPool(r *reader) (*ConstantPool, error) {
	count, err := r.u2("constant_pool_count")
	if err != nil {
		return nil, err
	}
	cp := &ConstantPool{Entries: make([]ConstantPoolEntry, count)}
	for i := 1; i < int(count); i++ {
		tag, err := r.u1("constant_pool tag")
		if err != nil {
			return nil, err
		}
		entry, wide, err := decodeConstant(r, tag)
		if err != nil {
			return nil, err
		}
		cp.Entries[i] = entry
		if wide {
			i++ // Long/Double consume two logical slots; the second is left nil.
		}
	}
	return cp, nil
}

func decodeConstant(r *reader, tag byte) (ConstantPoolEntry, bool, error) {
	switch tag {
	case TagUtf8:
		n, err := r.u2("utf8 length")
		if err != nil {
			return nil, false, err
		}
		raw, err := r.bytesN(int(n), "utf8 bytes")
		if err != nil {
			return nil, false, err
		}
		s, err := DecodeMUTF8(raw)
		if err != nil {
			return nil, false, err
		}
		return Utf8Info{Value: s}, false, nil
	case TagInteger:
		v, err := r.u4("integer")
		if err != nil {
			return nil, false, err
		}
		return IntegerInfo{Value: int32(v)}, false, nil
	case TagFloat:
		v, err := r.u4("float")
		if err != nil {
			return nil, false, err
		}
		return FloatInfo{Value: math.Float32frombits(v)}, false, nil
	case TagLong:
		hi, err := r.u4("long hi")
		if err != nil {
			return nil, false, err
		}
		lo, err := r.u4("long lo")
		if err != nil {
			return nil, false, err
		}
		return LongInfo{Value: int64(uint64(hi)<<32 | uint64(lo))}, true, nil
	case TagDouble:
		hi, err := r.u4("double hi")
		if err != nil {
			return nil, false, err
		}
		lo, err := r.u4("double lo")
		if err != nil {
			return nil, false, err
		}
		return DoubleInfo{Value: math.Float64frombits(uint64(hi)<<32 | uint64(lo))}, true, nil
	case TagClass:
		v, err := r.u2("class name_index")
		if err != nil {
			return nil, false, err
		}
		return ClassInfo{NameIndex: v}, false, nil
	case TagString:
		v, err := r.u2("string string_index")
		if err != nil {
			return nil, false, err
		}
		return StringInfo{StringIndex: v}, false, nil
	case TagFieldref:
		c, n, err := ref2(r)
		return FieldrefInfo{ClassIndex: c, NameAndTypeIndex: n}, false, err
	case TagMethodref:
		c, n, err := ref2(r)
		return MethodrefInfo{ClassIndex: c, NameAndTypeIndex: n}, false, err
	case TagInterfaceMethodref:
		c, n, err := ref2(r)
		return InterfaceMethodrefInfo{ClassIndex: c, NameAndTypeIndex: n}, false, err
	case TagNameAndType:
		n, d, err := ref2(r)
		return NameAndTypeInfo{NameIndex: n, DescriptorIndex: d}, false, err
	case TagMethodHandle:
		kind, err := r.u1("method handle kind")
		if err != nil {
			return nil, false, err
		}
		idx, err := r.u2("method handle reference_index")
		if err != nil {
			return nil, false, err
		}
		return MethodHandleInfo{ReferenceKind: kind, ReferenceIndex: idx}, false, nil
	case TagMethodType:
		v, err := r.u2("method type descriptor_index")
		if err != nil {
			return nil, false, err
		}
		return MethodTypeInfo{DescriptorIndex: v}, false, nil
	case TagDynamic:
		b, n, err := ref2(r)
		return DynamicInfo{BootstrapMethodAttrIndex: b, NameAndTypeIndex: n}, false, err
	case TagInvokeDynamic:
		b, n, err := ref2(r)
		return InvokeDynamicInfo{BootstrapMethodAttrIndex: b, NameAndTypeIndex: n}, false, err
	case TagModule:
		v, err := r.u2("module name_index")
		if err != nil {
			return nil, false, err
		}
		return ModuleInfo{NameIndex: v}, false, nil
	case TagPackage:
		v, err := r.u2("package name_index")
		if err != nil {
			return nil, false, err
		}
		return PackageInfo{NameIndex: v}, false, nil
	default:
		return nil, false, &ErrInvalidTag{Tag: tag}
	}
}

func ref2(r *reader) (uint16, uint16, error) {
	a, err := r.u2("ref first index")
	if err != nil {
		return 0, 0, err
	}
	b, err := r.u2("ref second index")
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func decodeFields(r *reader, cp *ConstantPool) ([]FieldInfo, error) {
	count, err := r.u2("fields_count")
	if err != nil {
		return nil, err
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		af, err := r.u2("field access_flags")
		if err != nil {
			return nil, err
		}
		ni, err := r.u2("field name_index")
		if err != nil {
			return nil, err
		}
		di, err := r.u2("field descriptor_index")
		if err != nil {
			return nil, err
		}
		attrs, err := decodeAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldInfo{AccessFlags: af, NameIndex: ni, DescIndex: di, Attributes: attrs}
	}
	return fields, nil
}

func decodeMethods(r *reader, cp *ConstantPool) ([]MethodInfo, error) {
	count, err := r.u2("methods_count")
	if err != nil {
		return nil, err
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		af, err := r.u2("method access_flags")
		if err != nil {
			return nil, err
		}
		ni, err := r.u2("method name_index")
		if err != nil {
			return nil, err
		}
		di, err := r.u2("method descriptor_index")
		if err != nil {
			return nil, err
		}
		attrs, err := decodeAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		m := MethodInfo{AccessFlags: af, NameIndex: ni, DescIndex: di, Attributes: attrs}
		for _, a := range attrs {
			name, err := cp.Utf8(int(a.NameIndex))
			if err != nil {
				continue
			}
			if name == AttrCode {
				code, err := decodeCodeAttribute(a.Info, cp)
				if err != nil {
					return nil, err
				}
				m.Code = code
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func decodeAttributes(r *reader, cp *ConstantPool) ([]Attribute, error) {
	count, err := r.u2("attributes_count")
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, count)
	for i := range attrs {
		ni, err := r.u2("attribute name_index")
		if err != nil {
			return nil, err
		}
		length, err := r.u4("attribute_length")
		if err != nil {
			return nil, err
		}
		info, err := r.bytesN(int(length), "attribute info")
		if err != nil {
			return nil, err
		}
		// copy: info aliases r.b otherwise, and that slice outlives Decode
		cpy := make([]byte, len(info))
		copy(cpy, info)
		attrs[i] = Attribute{NameIndex: ni, Info: cpy}
	}
	return attrs, nil
}

func decodeCodeAttribute(info []byte, cp *ConstantPool) (*CodeAttribute, error) {
	r := &reader{b: info}
	maxStack, err := r.u2("code max_stack")
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2("code max_locals")
	if err != nil {
		return nil, err
	}
	codeLen, err := r.u4("code_length")
	if err != nil {
		return nil, err
	}
	code, err := r.bytesN(int(codeLen), "code")
	if err != nil {
		return nil, err
	}
	codeCopy := make([]byte, len(code))
	copy(codeCopy, code)

	excCount, err := r.u2("exception_table_length")
	if err != nil {
		return nil, err
	}
	excTable := make([]ExceptionTableEntry, excCount)
	for i := range excTable {
		start, _ := r.u2("start_pc")
		end, _ := r.u2("end_pc")
		handler, _ := r.u2("handler_pc")
		catch, err := r.u2("catch_type")
		if err != nil {
			return nil, err
		}
		excTable[i] = ExceptionTableEntry{StartPC: start, EndPC: end, HandlerPC: handler, CatchType: catch}
	}

	attrs, err := decodeAttributes(r, cp)
	if err != nil {
		return nil, err
	}

	ca := &CodeAttribute{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Code:           codeCopy,
		ExceptionTable: excTable,
		Attributes:     attrs,
	}

	for _, a := range attrs {
		name, err := cp.Utf8(int(a.NameIndex))
		if err != nil {
			continue
		}
		switch name {
		case AttrStackMapTable:
			frames, err := decodeStackMapTable(a.Info)
			if err != nil {
				return nil, err
			}
			ca.StackMapTable = frames
		case AttrLineNumberTable:
			lines, err := decodeLineNumberTable(a.Info)
			if err != nil {
				return nil, err
			}
			ca.LineNumberTable = lines
		}
	}

	return ca, nil
}

func decodeLineNumberTable(info []byte) ([]LineNumberEntry, error) {
	r := &reader{b: info}
	count, err := r.u2("line_number_table_length")
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, count)
	for i := range out {
		startPC, err := r.u2("start_pc")
		if err != nil {
			return nil, err
		}
		line, err := r.u2("line_number")
		if err != nil {
			return nil, err
		}
		out[i] = LineNumberEntry{StartPC: startPC, LineNumber: line}
	}
	return out, nil
}

// decodeStackMapTable expands the compact frame kinds of JVMS §4.7.4 into
// fully explicit StackMapFrame values with absolute offsets, tracking the
// running locals list the "append"/"chop" kinds modify incrementally.
func decodeStackMapTable(info []byte) ([]StackMapFrame, error) {
	r := &reader{b: info}
	count, err := r.u2("number_of_entries")
	if err != nil {
		return nil, err
	}
	frames := make([]StackMapFrame, 0, count)
	var locals []VerificationTypeInfo
	offset := -1 // first frame's offset_delta is absolute; see JVMS §4.7.4
	for i := 0; i < int(count); i++ {
		frameType, err := r.u1("frame_type")
		if err != nil {
			return nil, err
		}
		switch {
		case frameType <= 63: // same_frame
			offset += int(frameType) + 1
			frames = append(frames, StackMapFrame{Offset: offset, Locals: append([]VerificationTypeInfo(nil), locals...)})
		case frameType <= 127: // same_locals_1_stack_item_frame
			offset += int(frameType-64) + 1
			stackItem, err := decodeVerificationTypeInfo(r)
			if err != nil {
				return nil, err
			}
			frames = append(frames, StackMapFrame{
				Offset: offset,
				Locals: append([]VerificationTypeInfo(nil), locals...),
				Stack:  []VerificationTypeInfo{stackItem},
			})
		case frameType == 247: // same_locals_1_stack_item_frame_extended
			delta, err := r.u2("offset_delta")
			if err != nil {
				return nil, err
			}
			offset += int(delta) + 1
			stackItem, err := decodeVerificationTypeInfo(r)
			if err != nil {
				return nil, err
			}
			frames = append(frames, StackMapFrame{
				Offset: offset,
				Locals: append([]VerificationTypeInfo(nil), locals...),
				Stack:  []VerificationTypeInfo{stackItem},
			})
		case frameType >= 248 && frameType <= 250: // chop_frame
			delta, err := r.u2("offset_delta")
			if err != nil {
				return nil, err
			}
			offset += int(delta) + 1
			chop := int(251 - frameType)
			if chop > len(locals) {
				chop = len(locals)
			}
			locals = locals[:len(locals)-chop]
			frames = append(frames, StackMapFrame{Offset: offset, Locals: append([]VerificationTypeInfo(nil), locals...)})
		case frameType == 251: // same_frame_extended
			delta, err := r.u2("offset_delta")
			if err != nil {
				return nil, err
			}
			offset += int(delta) + 1
			frames = append(frames, StackMapFrame{Offset: offset, Locals: append([]VerificationTypeInfo(nil), locals...)})
		case frameType >= 252 && frameType <= 254: // append_frame
			delta, err := r.u2("offset_delta")
			if err != nil {
				return nil, err
			}
			offset += int(delta) + 1
			n := int(frameType - 251)
			for j := 0; j < n; j++ {
				v, err := decodeVerificationTypeInfo(r)
				if err != nil {
					return nil, err
				}
				locals = append(locals, v)
			}
			frames = append(frames, StackMapFrame{Offset: offset, Locals: append([]VerificationTypeInfo(nil), locals...)})
		case frameType == 255: // full_frame
			delta, err := r.u2("offset_delta")
			if err != nil {
				return nil, err
			}
			offset += int(delta) + 1
			numLocals, err := r.u2("number_of_locals")
			if err != nil {
				return nil, err
			}
			newLocals := make([]VerificationTypeInfo, numLocals)
			for j := range newLocals {
				v, err := decodeVerificationTypeInfo(r)
				if err != nil {
					return nil, err
				}
				newLocals[j] = v
			}
			locals = newLocals
			numStack, err := r.u2("number_of_stack_items")
			if err != nil {
				return nil, err
			}
			stack := make([]VerificationTypeInfo, numStack)
			for j := range stack {
				v, err := decodeVerificationTypeInfo(r)
				if err != nil {
					return nil, err
				}
				stack[j] = v
			}
			frames = append(frames, StackMapFrame{Offset: offset, Locals: append([]VerificationTypeInfo(nil), locals...), Stack: stack})
		default:
			return nil, fmt.Errorf("class format error: reserved stack map frame_type %d", frameType)
		}
	}
	return frames, nil
}

func decodeVerificationTypeInfo(r *reader) (VerificationTypeInfo, error) {
	tag, err := r.u1("verification_type_info tag")
	if err != nil {
		return VerificationTypeInfo{}, err
	}
	switch tag {
	case ItemObject:
		idx, err := r.u2("cpool_index")
		if err != nil {
			return VerificationTypeInfo{}, err
		}
		return VerificationTypeInfo{Tag: tag, CPoolIndex: idx}, nil
	case ItemUninitialized:
		off, err := r.u2("offset")
		if err != nil {
			return VerificationTypeInfo{}, err
		}
		return VerificationTypeInfo{Tag: tag, Offset: off}, nil
	default:
		return VerificationTypeInfo{Tag: tag}, nil
	}
}

func decodeWellKnownClassAttributes(cf *ClassFile, cp *ConstantPool) error {
	for _, a := range cf.Attributes {
		name, err := cp.Utf8(int(a.NameIndex))
		if err != nil {
			continue
		}
		switch name {
		case AttrSourceFile:
			r := &reader{b: a.Info}
			idx, err := r.u2("sourcefile_index")
			if err != nil {
				return err
			}
			cf.SourceFile, err = cp.Utf8(int(idx))
			if err != nil {
				return err
			}
		case AttrBootstrapMethods:
			bms, err := decodeBootstrapMethods(a.Info)
			if err != nil {
				return err
			}
			cf.BootstrapMethods = bms
		case AttrModule:
			mod, err := decodeModuleAttribute(a.Info)
			if err != nil {
				return err
			}
			cf.Module = mod
		}
	}
	return nil
}

func decodeBootstrapMethods(info []byte) ([]BootstrapMethod, error) {
	r := &reader{b: info}
	count, err := r.u2("num_bootstrap_methods")
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, count)
	for i := range out {
		mref, err := r.u2("bootstrap_method_ref")
		if err != nil {
			return nil, err
		}
		argc, err := r.u2("num_bootstrap_arguments")
		if err != nil {
			return nil, err
		}
		args := make([]uint16, argc)
		for j := range args {
			args[j], err = r.u2("bootstrap_argument")
			if err != nil {
				return nil, err
			}
		}
		out[i] = BootstrapMethod{MethodRefIndex: mref, Arguments: args}
	}
	return out, nil
}

func decodeModuleAttribute(info []byte) (*ModuleAttribute, error) {
	r := &reader{b: info}
	nameIdx, err := r.u2("module name_index")
	if err != nil {
		return nil, err
	}
	flags, err := r.u2("module flags")
	if err != nil {
		return nil, err
	}
	versionIdx, err := r.u2("module version_index")
	if err != nil {
		return nil, err
	}
	m := &ModuleAttribute{NameIndex: nameIdx, Flags: flags, VersionIndex: versionIdx}

	reqCount, err := r.u2("requires_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(reqCount); i++ {
		idx, _ := r.u2("requires_index")
		fl, _ := r.u2("requires_flags")
		ver, err := r.u2("requires_version_index")
		if err != nil {
			return nil, err
		}
		m.Requires = append(m.Requires, ModuleRequires{Index: idx, Flags: fl, VersionIndex: ver})
	}

	expCount, err := r.u2("exports_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(expCount); i++ {
		idx, _ := r.u2("exports_index")
		fl, err := r.u2("exports_flags")
		if err != nil {
			return nil, err
		}
		toCount, err := r.u2("exports_to_count")
		if err != nil {
			return nil, err
		}
		to := make([]uint16, toCount)
		for j := range to {
			to[j], err = r.u2("exports_to_index")
			if err != nil {
				return nil, err
			}
		}
		m.Exports = append(m.Exports, ModuleExports{Index: idx, Flags: fl, ToIndex: to})
	}

	openCount, err := r.u2("opens_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(openCount); i++ {
		idx, _ := r.u2("opens_index")
		fl, err := r.u2("opens_flags")
		if err != nil {
			return nil, err
		}
		toCount, err := r.u2("opens_to_count")
		if err != nil {
			return nil, err
		}
		to := make([]uint16, toCount)
		for j := range to {
			to[j], err = r.u2("opens_to_index")
			if err != nil {
				return nil, err
			}
		}
		m.Opens = append(m.Opens, ModuleOpens{Index: idx, Flags: fl, ToIndex: to})
	}

	usesCount, err := r.u2("uses_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(usesCount); i++ {
		idx, err := r.u2("uses_index")
		if err != nil {
			return nil, err
		}
		m.Uses = append(m.Uses, idx)
	}

	providesCount, err := r.u2("provides_count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(providesCount); i++ {
		idx, err := r.u2("provides_index")
		if err != nil {
			return nil, err
		}
		withCount, err := r.u2("provides_with_count")
		if err != nil {
			return nil, err
		}
		with := make([]uint16, withCount)
		for j := range with {
			with[j], err = r.u2("provides_with_index")
			if err != nil {
				return nil, err
			}
		}
		m.Provides = append(m.Provides, ModuleProvides{Index: idx, WithIndex: with})
	}

	return m, nil
}

// NewReader is a convenience wrapper around Decode accepting an io.Reader,
// for callers (jar/jimage entries) that have a stream rather than a slice.
func NewReader(r io.Reader) (*ClassFile, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return Decode(buf.Bytes())
}
