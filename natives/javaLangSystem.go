package natives

import (
	"time"

	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

func Load_Lang_System(r *intrinsic.Registry) {
	r.Register(key("java/lang/System", "registerNatives", "()V"), intrinsic.VAny(), justReturn)
	r.Register(key("java/lang/System", "currentTimeMillis", "()J"), intrinsic.VAny(), systemCurrentTimeMillis)
	r.Register(key("java/lang/System", "nanoTime", "()J"), intrinsic.VAny(), systemNanoTime)
	r.Register(key("java/lang/System", "exit", "(I)V"), intrinsic.VAny(), systemExit)
	r.Register(key("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I"), intrinsic.VAny(), systemIdentityHashCode)
	r.Register(key("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V"), intrinsic.VAny(), systemArraycopy)

	// Shutdown.halt0 is the one true exit path.
	r.Register(key("java/lang/Shutdown", "halt0", "(I)V"), intrinsic.VAny(), systemExit)
}

func systemCurrentTimeMillis(intrinsic.Env, []object.Value) (*object.Value, error) {
	return ret(object.Long(time.Now().UnixMilli()))
}

func systemNanoTime(intrinsic.Env, []object.Value) (*object.Value, error) {
	return ret(object.Long(time.Now().UnixNano()))
}

func systemExit(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	code := 0
	if len(args) > 0 {
		code = int(args[0].AsInt())
	}
	env.Exit(code)
	return nil, nil
}

func systemIdentityHashCode(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return ret(object.Int(0))
	}
	return ret(object.Int(identityHash(args[0].Ref)))
}

func systemArraycopy(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	if len(args) != 5 {
		return nil, env.Throw("java/lang/IllegalArgumentException", "arraycopy")
	}
	if args[0].IsNull() || args[2].IsNull() {
		return nil, env.Throw("java/lang/NullPointerException", "")
	}
	src, dst := args[0].Ref, args[2].Ref
	srcPos, dstPos, length := int(args[1].AsInt()), int(args[3].AsInt()), int(args[4].AsInt())

	if srcPos < 0 || dstPos < 0 || length < 0 ||
		srcPos+length > src.ArrayLen() || dstPos+length > dst.ArrayLen() {
		return nil, env.Throw("java/lang/ArrayIndexOutOfBoundsException", "arraycopy: last source index out of range")
	}

	switch {
	case src.Prim != nil && dst.Prim != nil && src.Prim.Elem == dst.Prim.Elem:
		if src.Prim.Floats != nil {
			copy(dst.Prim.Floats[dstPos:dstPos+length], src.Prim.Floats[srcPos:srcPos+length])
		} else {
			copy(dst.Prim.Ints[dstPos:dstPos+length], src.Prim.Ints[srcPos:srcPos+length])
		}
	case src.Refs != nil && dst.Refs != nil:
		for i := 0; i < length; i++ {
			e := src.Refs.Data[srcPos+i]
			if e != nil && dst.Refs.Component != nil && e.Klass != nil &&
				!dst.Refs.Component.AssignableFrom(e.Klass) {
				return nil, env.Throw("java/lang/ArrayStoreException", e.ClassName())
			}
			dst.Refs.Data[dstPos+i] = e
		}
	default:
		return nil, env.Throw("java/lang/ArrayStoreException", "incompatible array types")
	}
	return nil, nil
}
