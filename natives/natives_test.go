package natives

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

type fakeClass struct{ name string }

func (f *fakeClass) InternalName() string                  { return f.name }
func (f *fakeClass) AssignableFrom(o object.ClassRef) bool { return f.name == o.InternalName() }

var stringClass = &fakeClass{name: "java/lang/String"}

// fakeEnv satisfies intrinsic.Env for catalog tests.
type fakeEnv struct {
	out, errOut bytes.Buffer
	interned    map[string]*object.Object
	exitCode    *int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{interned: make(map[string]*object.Object)}
}

func (e *fakeEnv) NewString(s string) (*object.Object, error) {
	return object.NewString(stringClass, s), nil
}

func (e *fakeEnv) Intern(s string) (*object.Object, error) {
	if o, ok := e.interned[s]; ok {
		return o, nil
	}
	o := object.NewString(stringClass, s)
	e.interned[s] = o
	return o, nil
}

type thrown struct{ class, message string }

func (t *thrown) Error() string { return t.class + ": " + t.message }

func (e *fakeEnv) Throw(className, message string) error {
	return &thrown{class: className, message: message}
}

func (e *fakeEnv) Exit(code int)     { e.exitCode = &code }
func (e *fakeEnv) Stdout() io.Writer { return &e.out }
func (e *fakeEnv) Stderr() io.Writer { return &e.errOut }
func (e *fakeEnv) JavaVersion() int  { return 21 }
func (e *fakeEnv) ThreadID() int64   { return 1 }

func loaded(t *testing.T) *intrinsic.Registry {
	t.Helper()
	r := intrinsic.NewRegistry()
	Load(r)
	return r
}

func call(t *testing.T, r *intrinsic.Registry, env intrinsic.Env, class, name, desc string, args ...object.Value) *object.Value {
	t.Helper()
	fn, ok := r.Lookup(intrinsic.Key{Class: class, Name: name, Descriptor: desc}, env.JavaVersion())
	if !ok {
		t.Fatalf("no intrinsic for %s.%s%s", class, name, desc)
	}
	v, err := fn(env, args)
	if err != nil {
		t.Fatalf("%s.%s: %v", class, name, err)
	}
	return v
}

func TestPrintlnWritesStdout(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	out := &object.Object{Fields: map[string]object.Value{StreamField: object.Int(1)}}
	msg := object.NewString(stringClass, "Hello, World!")

	call(t, r, env, "java/io/PrintStream", "println", "(Ljava/lang/String;)V",
		object.Ref(out), object.Ref(msg))
	if got := env.out.String(); got != "Hello, World!\n" {
		t.Fatalf("stdout = %q", got)
	}
	if env.errOut.Len() != 0 {
		t.Fatal("println wrote to stderr")
	}
}

func TestPrintlnIntToStderr(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	errStream := &object.Object{Fields: map[string]object.Value{StreamField: object.Int(2)}}
	call(t, r, env, "java/io/PrintStream", "println", "(I)V",
		object.Ref(errStream), object.Int(-42))
	if got := env.errOut.String(); got != "-42\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestStringIntern(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	a := object.NewString(stringClass, "foo")
	b := object.NewString(stringClass, "foo")

	v1 := call(t, r, env, "java/lang/String", "intern", "()Ljava/lang/String;", object.Ref(a))
	v2 := call(t, r, env, "java/lang/String", "intern", "()Ljava/lang/String;", object.Ref(b))
	if v1.Ref != v2.Ref {
		t.Fatal("intern returned distinct canonical instances for equal content")
	}
}

func TestStringHashCodeMatchesJava(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	s := object.NewString(stringClass, "Hello")
	v := call(t, r, env, "java/lang/String", "hashCode", "()I", object.Ref(s))
	if v.AsInt() != 69609650 { // value of "Hello".hashCode() on any JDK
		t.Fatalf("hashCode = %d", v.AsInt())
	}
}

func TestThrowableMessageRoundTrip(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	exc := &object.Object{
		Klass:  &fakeClass{name: "java/lang/RuntimeException"},
		Fields: map[string]object.Value{},
	}
	msg := object.NewString(stringClass, "x")
	call(t, r, env, "java/lang/RuntimeException", "<init>", "(Ljava/lang/String;)V",
		object.Ref(exc), object.Ref(msg))
	v := call(t, r, env, "java/lang/RuntimeException", "getMessage", "()Ljava/lang/String;", object.Ref(exc))
	if object.GoString(v.Ref) != "x" {
		t.Fatalf("getMessage = %q", object.GoString(v.Ref))
	}

	ts := call(t, r, env, "java/lang/RuntimeException", "toString", "()Ljava/lang/String;", object.Ref(exc))
	if got := object.GoString(ts.Ref); got != "java.lang.RuntimeException: x" {
		t.Fatalf("toString = %q", got)
	}
}

func TestEveryThrowableClassHasCtors(t *testing.T) {
	r := loaded(t)
	for _, tc := range ThrowableClasses {
		for _, desc := range []string{"()V", "(Ljava/lang/String;)V"} {
			k := intrinsic.Key{Class: tc[0], Name: "<init>", Descriptor: desc}
			if _, ok := r.Lookup(k, 21); !ok {
				t.Errorf("missing %s", k)
			}
		}
	}
}

func TestSystemExitReachesEnv(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	call(t, r, env, "java/lang/Shutdown", "halt0", "(I)V", object.Int(3))
	if env.exitCode == nil || *env.exitCode != 3 {
		t.Fatalf("exit code = %v", env.exitCode)
	}
}

func TestArraycopyPrimitive(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	src := object.NewPrimArray('I', 5)
	for i := range src.Prim.Ints {
		src.Prim.Ints[i] = int64(i + 1)
	}
	dst := object.NewPrimArray('I', 5)
	call(t, r, env, "java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V",
		object.Ref(src), object.Int(1), object.Ref(dst), object.Int(0), object.Int(3))
	want := []int64{2, 3, 4, 0, 0}
	for i, w := range want {
		if dst.Prim.Ints[i] != w {
			t.Fatalf("dst = %v, want %v", dst.Prim.Ints, want)
		}
	}
}

func TestArraycopyBoundsThrow(t *testing.T) {
	r, env := loaded(t), newFakeEnv()
	src := object.NewPrimArray('I', 2)
	dst := object.NewPrimArray('I', 2)
	fn, _ := r.Lookup(intrinsic.Key{Class: "java/lang/System", Name: "arraycopy",
		Descriptor: "(Ljava/lang/Object;ILjava/lang/Object;II)V"}, 21)
	_, err := fn(env, []object.Value{
		object.Ref(src), object.Int(1), object.Ref(dst), object.Int(0), object.Int(5),
	})
	te, ok := err.(*thrown)
	if !ok || !strings.Contains(te.class, "ArrayIndexOutOfBounds") {
		t.Fatalf("err = %v", err)
	}
}

func TestVersionGatedCoder(t *testing.T) {
	r := loaded(t)
	k := intrinsic.Key{Class: "java/lang/String", Name: "coder", Descriptor: "()B"}
	env := newFakeEnv()
	s := object.NewString(stringClass, "ascii")

	fn, ok := r.Lookup(k, 21)
	if !ok {
		t.Fatal("no coder for 21")
	}
	if v, _ := fn(env, []object.Value{object.Ref(s)}); v.AsInt() != 0 {
		t.Fatal("compact coder should report LATIN1 for ascii")
	}

	fn, ok = r.Lookup(k, 8)
	if !ok {
		t.Fatal("no coder for 8")
	}
	if v, _ := fn(env, []object.Value{object.Ref(s)}); v.AsInt() != 1 {
		t.Fatal("legacy coder should always report UTF16")
	}
}
