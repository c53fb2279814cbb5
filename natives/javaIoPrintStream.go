package natives

import (
	"fmt"
	"io"
	"strconv"

	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

// StreamField tells a PrintStream instance which process stream it wraps:
// 1 is stdout, 2 is stderr. The VM sets it when it builds System.out and
// System.err.
const StreamField = "fd"

func Load_Io_PrintStream(r *intrinsic.Registry) {
	const cls = "java/io/PrintStream"
	r.Register(key(cls, "println", "(Ljava/lang/String;)V"), intrinsic.VAny(), printlnString)
	r.Register(key(cls, "println", "()V"), intrinsic.VAny(), printlnEmpty)
	r.Register(key(cls, "println", "(I)V"), intrinsic.VAny(), printlnValue)
	r.Register(key(cls, "println", "(J)V"), intrinsic.VAny(), printlnValue)
	r.Register(key(cls, "println", "(Z)V"), intrinsic.VAny(), printlnBoolean)
	r.Register(key(cls, "println", "(C)V"), intrinsic.VAny(), printlnChar)
	r.Register(key(cls, "println", "(D)V"), intrinsic.VAny(), printlnValue)
	r.Register(key(cls, "println", "(F)V"), intrinsic.VAny(), printlnValue)
	r.Register(key(cls, "println", "(Ljava/lang/Object;)V"), intrinsic.VAny(), printlnObject)
	r.Register(key(cls, "print", "(Ljava/lang/String;)V"), intrinsic.VAny(), printString)
	r.Register(key(cls, "print", "(I)V"), intrinsic.VAny(), printValue)
	r.Register(key(cls, "print", "(J)V"), intrinsic.VAny(), printValue)
	r.Register(key(cls, "print", "(C)V"), intrinsic.VAny(), printChar)
}

// streamOf picks the backing writer off the receiver's stream field.
func streamOf(env intrinsic.Env, o *object.Object) io.Writer {
	if v, ok := o.Fields[StreamField]; ok && v.AsInt() == 2 {
		return env.Stderr()
	}
	return env.Stdout()
}

func formatValue(v object.Value) string {
	switch v.Kind {
	case object.KindI32:
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case object.KindI64:
		return strconv.FormatInt(v.I, 10)
	case object.KindF32:
		return strconv.FormatFloat(float64(v.AsFloat()), 'g', -1, 32)
	case object.KindF64:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	default:
		if v.IsNull() {
			return "null"
		}
		return object.GoString(v.Ref)
	}
}

func printlnString(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	text := "null"
	if !args[1].IsNull() {
		text = object.GoString(args[1].Ref)
	}
	fmt.Fprintln(streamOf(env, o), text)
	return nil, nil
}

func printlnEmpty(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(streamOf(env, o))
	return nil, nil
}

func printlnValue(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(streamOf(env, o), formatValue(args[1]))
	return nil, nil
}

func printlnBoolean(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	text := "false"
	if args[1].AsInt() != 0 {
		text = "true"
	}
	fmt.Fprintln(streamOf(env, o), text)
	return nil, nil
}

func printlnChar(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(streamOf(env, o), string(rune(uint16(args[1].AsInt()))))
	return nil, nil
}

func printlnObject(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	text := "null"
	if !args[1].IsNull() {
		if object.IsString(args[1].Ref) {
			text = object.GoString(args[1].Ref)
		} else {
			text = fmt.Sprintf("%s@%x", args[1].Ref.ClassName(), uint32(identityHash(args[1].Ref)))
		}
	}
	fmt.Fprintln(streamOf(env, o), text)
	return nil, nil
}

func printString(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	text := "null"
	if !args[1].IsNull() {
		text = object.GoString(args[1].Ref)
	}
	fmt.Fprint(streamOf(env, o), text)
	return nil, nil
}

func printValue(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(streamOf(env, o), formatValue(args[1]))
	return nil, nil
}

func printChar(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(streamOf(env, o), string(rune(uint16(args[1].AsInt()))))
	return nil, nil
}
