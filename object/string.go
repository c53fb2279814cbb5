package object

// String objects carry their content in a byte-vector object referenced
// from the "value" field. The vector holds UTF-8; interning and
// comparison work on these bytes.

// StringValueField is the field name String content lives under.
const StringValueField = "value"

// NewString builds a String instance of klass (the loaded java/lang/String
// class) over its own fresh byte vector.
func NewString(klass ClassRef, s string) *Object {
	return &Object{
		Klass: klass,
		Fields: map[string]Value{
			StringValueField: Ref(NewByteVector([]byte(s))),
		},
	}
}

// GoString extracts the Go string content of a String instance, "" if o is
// not shaped like one.
func GoString(o *Object) string {
	if o == nil || o.Fields == nil {
		return ""
	}
	v, ok := o.Fields[StringValueField]
	if !ok || v.Kind != KindRef || v.Ref == nil {
		return ""
	}
	return string(v.Ref.Bytes)
}

// IsString reports whether o is an instance of java/lang/String.
func IsString(o *Object) bool {
	return o != nil && o.Klass != nil && o.Klass.InternalName() == "java/lang/String"
}
