package natives

import (
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

// DetailMessageField is the Throwable field carrying the message.
const DetailMessageField = "detailMessage"

// ThrowableClasses is every built-in Throwable subtype the VM synthesizes
// when no platform image supplies them, keyed as (name, superclass). The
// list drives both core-class synthesis and intrinsic registration, so the
// two cannot drift apart.
var ThrowableClasses = [][2]string{
	{"java/lang/Throwable", "java/lang/Object"},
	{"java/lang/Exception", "java/lang/Throwable"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/ArrayStoreException", "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/IllegalMonitorStateException", "java/lang/RuntimeException"},
	{"java/lang/InterruptedException", "java/lang/Exception"},
	{"java/lang/ClassNotFoundException", "java/lang/Exception"},
	{"java/lang/Error", "java/lang/Throwable"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
	{"java/lang/ClassCircularityError", "java/lang/LinkageError"},
	{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
	{"java/lang/VerifyError", "java/lang/LinkageError"},
	{"java/lang/UnsatisfiedLinkError", "java/lang/LinkageError"},
	{"java/lang/IllegalAccessError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/AbstractMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/OutOfMemoryError", "java/lang/VirtualMachineError"},
	{"java/lang/StackOverflowError", "java/lang/VirtualMachineError"},
	{"java/lang/ThreadDeath", "java/lang/Error"},
}

// Load_Lang_Throwable registers the shared Throwable natives for every
// class in ThrowableClasses: the intrinsic key carries the declaring
// class, and each synthesized exception class declares its own
// constructors.
func Load_Lang_Throwable(r *intrinsic.Registry) {
	for _, tc := range ThrowableClasses {
		cls := tc[0]
		r.Register(key(cls, "<init>", "()V"), intrinsic.VAny(), justReturn)
		r.Register(key(cls, "<init>", "(Ljava/lang/String;)V"), intrinsic.VAny(), throwableInitMessage)
		r.Register(key(cls, "getMessage", "()Ljava/lang/String;"), intrinsic.VAny(), throwableGetMessage)
		r.Register(key(cls, "fillInStackTrace", "()Ljava/lang/Throwable;"), intrinsic.VAny(), throwableFillInStackTrace)
		r.Register(key(cls, "toString", "()Ljava/lang/String;"), intrinsic.VAny(), throwableToString)
	}
}

func throwableInitMessage(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if o.Fields == nil {
		o.Fields = make(map[string]object.Value)
	}
	if len(args) > 1 {
		o.Fields[DetailMessageField] = args[1]
	}
	return nil, nil
}

func throwableGetMessage(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	if v, ok := o.Fields[DetailMessageField]; ok {
		return ret(v)
	}
	return ret(object.Null())
}

func throwableFillInStackTrace(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(o))
}

func throwableToString(env intrinsic.Env, args []object.Value) (*object.Value, error) {
	o, err := receiver(env, args)
	if err != nil {
		return nil, err
	}
	text := dottedName(o.ClassName())
	if v, ok := o.Fields[DetailMessageField]; ok && !v.IsNull() {
		text += ": " + object.GoString(v.Ref)
	}
	s, err := env.NewString(text)
	if err != nil {
		return nil, err
	}
	return ret(object.Ref(s))
}

func dottedName(internal string) string {
	out := []byte(internal)
	for i, b := range out {
		if b == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}
