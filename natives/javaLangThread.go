package natives

import (
	"time"

	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

func Load_Lang_Thread(r *intrinsic.Registry) {
	r.Register(key("java/lang/Thread", "registerNatives", "()V"), intrinsic.VAny(), justReturn)
	r.RegisterSuspendable(key("java/lang/Thread", "sleep", "(J)V"), intrinsic.VAny(), threadSleep)
	r.Register(key("java/lang/Thread", "yield", "()V"), intrinsic.VAny(), threadYield)
}

func threadSleep(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	if len(args) == 0 || args[0].Kind != object.KindI64 {
		return nil, env.Throw("java/lang/IllegalArgumentException", "timeout")
	}
	millis := args[0].I
	if millis < 0 {
		return nil, env.Throw("java/lang/IllegalArgumentException", "timeout value is negative")
	}
	time.Sleep(millisToDuration(millis))
	return nil, nil
}

func threadYield(intrinsic.Env, []object.Value) (*object.Value, error) {
	return nil, nil
}

func millisToDuration(millis int64) time.Duration {
	return time.Duration(millis) * time.Millisecond
}
