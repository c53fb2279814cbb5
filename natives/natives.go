// Package natives is the catalog of built-in intrinsic implementations,
// loaded into the intrinsic registry at VM construction. One file per
// covered runtime class, each with a Load_* function that registers its
// methods.
package natives

import (
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

// Load registers every built-in intrinsic into r.
func Load(r *intrinsic.Registry) {
	Load_Lang_Object(r)
	Load_Lang_System(r)
	Load_Lang_String(r)
	Load_Lang_Throwable(r)
	Load_Lang_Thread(r)
	Load_Io_PrintStream(r)
}

// justReturn is the no-op body shared by registerNatives-style methods.
func justReturn(intrinsic.Env, []object.Value) (*object.Value, error) {
	return nil, nil
}

func key(class, name, desc string) intrinsic.Key {
	return intrinsic.Key{Class: class, Name: name, Descriptor: desc}
}

func ret(v object.Value) (*object.Value, error) { return &v, nil }

// receiver returns args[0]'s object, or a NullPointerException error when
// the receiver is null.
func receiver(env intrinsic.Env, args []object.Value) (*object.Object, error) {
	if len(args) == 0 || args[0].Kind != object.KindRef || args[0].Ref == nil {
		return nil, env.Throw("java/lang/NullPointerException", "")
	}
	return args[0].Ref, nil
}
