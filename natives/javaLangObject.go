package natives

import (
	"fmt"
	"unsafe"

	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

func Load_Lang_Object(r *intrinsic.Registry) {
	r.Register(key("java/lang/Object", "registerNatives", "()V"), intrinsic.VAny(), justReturn)
	r.Register(key("java/lang/Object", "<init>", "()V"), intrinsic.VAny(), justReturn)
	r.Register(key("java/lang/Object", "hashCode", "()I"), intrinsic.VAny(), objectHashCode)
	r.Register(key("java/lang/Object", "toString", "()Ljava/lang/String;"), intrinsic.VAny(), objectToString)
	r.Register(key("java/lang/Object", "notify", "()V"), intrinsic.VAny(), objectNotify)
	r.Register(key("java/lang/Object", "notifyAll", "()V"), intrinsic.VAny(), objectNotifyAll)
	r.RegisterSuspendable(key("java/lang/Object", "wait", "(J)V"), intrinsic.VAny(), objectWait)
}

// identityHash derives the identity hash from the low bits of the
// object's address.
func identityHash(o *object.Object) int32 {
	return int32(uint32(uintptr(unsafe.Pointer(o))))
}

func objectHashCode(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	return ret(object.Int(identityHash(o)))
}

func objectToString(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	s, err := env.NewString(fmt.Sprintf("%s@%x", o.ClassName(), uint32(identityHash(o))))
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(s))
}

func objectNotify(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if err := o.Monitor.Notify(env.ThreadID()); err != nil {
		return nil, env.Throw("java/lang/IllegalMonitorStateException", "")
	}
	return nil, nil
}

func objectNotifyAll(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if err := o.Monitor.NotifyAll(env.ThreadID()); err != nil {
		return nil, env.Throw("java/lang/IllegalMonitorStateException", "")
	}
	return nil, nil
}

func objectWait(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 || args[1].Kind != object.KindI64 {
		return nil, env.Throw("java/lang/IllegalArgumentException", "timeout")
	}
	millis := args[1].I
	if millis < 0 {
		return nil, env.Throw("java/lang/IllegalArgumentException", "timeout value is negative")
	}
	if err := o.Monitor.Wait(env.ThreadID(), millisToDuration(millis)); err != nil {
		return nil, env.Throw("java/lang/IllegalMonitorStateException", "")
	}
	return nil, nil
}
