package vm

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/classgen"
	"github.com/theseus-rs/ristretto-sub014/natives"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// coreClasses synthesizes the minimal platform classes the VM needs when
// no jimage supplies them: native-method shells whose behavior lives in
// the natives catalog. They sit on the bootstrap loader behind any real
// platform image, so a configured JAVA_HOME always wins.
//
// The set covers what a minimal program touches: Object, String, Class,
// System/PrintStream for console output, Thread, Shutdown for exit, and
// the throwable hierarchy (shared with the natives package so the two
// cannot drift).
func coreClasses() (map[string][]byte, error) {
	out := make(map[string][]byte)
	put := func(b *classgen.Builder, name string) error {
		data, err := b.Bytes()
		if err != nil {
			return fmt.Errorf("synthesizing %s: %w", name, err)
		}
		out[name] = data
		return nil
	}

	object := classgen.NewClass("java/lang/Object", "").
		Flags(types.AccPublic).
		NativeMethod(types.AccPrivate|types.AccStatic, "registerNatives", "()V").
		NativeMethod(types.AccPublic, "<init>", "()V").
		NativeMethod(types.AccPublic, "hashCode", "()I").
		NativeMethod(types.AccPublic, "toString", "()Ljava/lang/String;").
		NativeMethod(types.AccPublic|types.AccFinal, "notify", "()V").
		NativeMethod(types.AccPublic|types.AccFinal, "notifyAll", "()V").
		NativeMethod(types.AccPublic|types.AccFinal, "wait", "(J)V")
	if err := put(object, "java/lang/Object"); err != nil {
		return nil, err
	}

	for _, ifc := range []string{"java/lang/Cloneable", "java/io/Serializable"} {
		b := classgen.NewClass(ifc, "java/lang/Object").
			Flags(types.AccPublic | types.AccInterface | types.AccAbstract)
		if err := put(b, ifc); err != nil {
			return nil, err
		}
	}

	str := classgen.NewClass("java/lang/String", "java/lang/Object").
		Flags(types.AccPublic|types.AccFinal).
		Implements("java/io/Serializable").
		Field(types.AccPrivate|types.AccFinal, "value", "[B").
		NativeMethod(types.AccPublic, "intern", "()Ljava/lang/String;").
		NativeMethod(types.AccPublic, "length", "()I").
		NativeMethod(types.AccPublic, "charAt", "(I)C").
		NativeMethod(types.AccPublic, "hashCode", "()I").
		NativeMethod(types.AccPublic, "equals", "(Ljava/lang/Object;)Z").
		NativeMethod(types.AccPublic, "toString", "()Ljava/lang/String;").
		NativeMethod(types.AccPublic, "concat", "(Ljava/lang/String;)Ljava/lang/String;").
		NativeMethod(0, "coder", "()B")
	if err := put(str, "java/lang/String"); err != nil {
		return nil, err
	}

	class := classgen.NewClass("java/lang/Class", "java/lang/Object").
		Flags(types.AccPublic|types.AccFinal).
		Field(types.AccPrivate, "name", "Ljava/lang/String;")
	if err := put(class, "java/lang/Class"); err != nil {
		return nil, err
	}

	for _, tc := range natives.ThrowableClasses {
		b := classgen.NewClass(tc[0], tc[1]).
			NativeMethod(types.AccPublic, "<init>", "()V").
			NativeMethod(types.AccPublic, "<init>", "(Ljava/lang/String;)V")
		if tc[0] == "java/lang/Throwable" {
			b.Field(types.AccPrivate, "detailMessage", "Ljava/lang/String;").
				NativeMethod(types.AccPublic, "getMessage", "()Ljava/lang/String;").
				NativeMethod(types.AccPublic, "fillInStackTrace", "()Ljava/lang/Throwable;").
				NativeMethod(types.AccPublic, "toString", "()Ljava/lang/String;")
		}
		if err := put(b, tc[0]); err != nil {
			return nil, err
		}
	}

	system := classgen.NewClass("java/lang/System", "java/lang/Object").
		Flags(types.AccPublic|types.AccFinal).
		Field(types.AccPublic|types.AccStatic|types.AccFinal, "out", "Ljava/io/PrintStream;").
		Field(types.AccPublic|types.AccStatic|types.AccFinal, "err", "Ljava/io/PrintStream;").
		NativeMethod(types.AccPrivate|types.AccStatic, "registerNatives", "()V").
		NativeMethod(types.AccPublic|types.AccStatic, "currentTimeMillis", "()J").
		NativeMethod(types.AccPublic|types.AccStatic, "nanoTime", "()J").
		NativeMethod(types.AccPublic|types.AccStatic, "exit", "(I)V").
		NativeMethod(types.AccPublic|types.AccStatic, "identityHashCode", "(Ljava/lang/Object;)I").
		NativeMethod(types.AccPublic|types.AccStatic, "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V")
	if err := put(system, "java/lang/System"); err != nil {
		return nil, err
	}

	ps := classgen.NewClass("java/io/PrintStream", "java/lang/Object").
		Field(types.AccPrivate, natives.StreamField, "I")
	for _, desc := range []string{
		"(Ljava/lang/String;)V", "()V", "(I)V", "(J)V", "(Z)V", "(C)V", "(D)V", "(F)V",
		"(Ljava/lang/Object;)V",
	} {
		ps.NativeMethod(types.AccPublic, "println", desc)
	}
	for _, desc := range []string{"(Ljava/lang/String;)V", "(I)V", "(J)V", "(C)V"} {
		ps.NativeMethod(types.AccPublic, "print", desc)
	}
	if err := put(ps, "java/io/PrintStream"); err != nil {
		return nil, err
	}

	thread := classgen.NewClass("java/lang/Thread", "java/lang/Object").
		NativeMethod(types.AccPrivate|types.AccStatic, "registerNatives", "()V").
		NativeMethod(types.AccPublic|types.AccStatic, "sleep", "(J)V").
		NativeMethod(types.AccPublic|types.AccStatic, "yield", "()V")
	if err := put(thread, "java/lang/Thread"); err != nil {
		return nil, err
	}

	shutdown := classgen.NewClass("java/lang/Shutdown", "java/lang/Object").
		NativeMethod(types.AccStatic, "halt0", "(I)V")
	if err := put(shutdown, "java/lang/Shutdown"); err != nil {
		return nil, err
	}

	return out, nil
}
