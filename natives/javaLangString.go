package natives

import (
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

func Load_Lang_String(r *intrinsic.Registry) {
	const cls = "java/lang/String"
	r.Register(key(cls, "<init>", "()V"), intrinsic.VAny(), justReturn)
	r.Register(key(cls, "intern", "()Ljava/lang/String;"), intrinsic.VAny(), stringIntern)
	r.Register(key(cls, "length", "()I"), intrinsic.VAny(), stringLength)
	r.Register(key(cls, "charAt", "(I)C"), intrinsic.VAny(), stringCharAt)
	r.Register(key(cls, "hashCode", "()I"), intrinsic.VAny(), stringHashCode)
	r.Register(key(cls, "equals", "(Ljava/lang/Object;)Z"), intrinsic.VAny(), stringEquals)
	r.Register(key(cls, "toString", "()Ljava/lang/String;"), intrinsic.VAny(), stringToString)
	r.Register(key(cls, "concat", "(Ljava/lang/String;)Ljava/lang/String;"), intrinsic.VAny(), stringConcat)

	// The compact-strings coder only exists from Java 9 on; on 8 and
	// older every string reports UTF-16.
	r.Register(key(cls, "coder", "()B"), intrinsic.VAtLeast(9), stringCoder)
	r.Register(key(cls, "coder", "()B"), intrinsic.VAtMost(8), stringCoderLegacy)
}

func stringIntern(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	interned, err := env.Intern(object.GoString(o))
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(interned))
}

func stringLength(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	return ret(object.Int(int32(len([]rune(object.GoString(o))))))
}

func stringCharAt(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	runes := []rune(object.GoString(o))
	i := int(args[1].AsInt())
	if i < 0 || i >= len(runes) {
		return nil, env.Throw("java/lang/StringIndexOutOfBoundsException", "index out of range")
	}
	return ret(object.Int(int32(uint16(runes[i]))))
}

// stringHashCode is Java's s[0]*31^(n-1) + ... + s[n-1].
func stringHashCode(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	var h int32
	for _, r := range object.GoString(o) {
		h = 31*h + int32(uint16(r))
	}
	return ret(object.Int(h))
}

func stringEquals(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	other := args[1]
	if other.IsNull() || !object.IsString(other.Ref) {
		return ret(object.Int(0))
	}
	if object.GoString(o) == object.GoString(other.Ref) {
		return ret(object.Int(1))
	}
	return ret(object.Int(0))
}

func stringToString(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(o))
}

func stringConcat(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if args[1].IsNull() {
		return nil, env.Throw("java/lang/NullPointerException", "")
	}
	s, err := env.NewString(object.GoString(o) + object.GoString(args[1].Ref))
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(s))
}

func stringCoder(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	for _, r := range object.GoString(o) {
		if r > 0xFF {
			return ret(object.Int(1)) // UTF16
		}
	}
	return ret(object.Int(0)) // LATIN1
}

func stringCoderLegacy(intrinsic.Env, []object.Value) (*object.Value, error) {
	return ret(object.Int(1))
}
