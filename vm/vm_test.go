package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theseus-rs/ristretto-sub014/classgen"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// writeClasses materializes built classes under dir the way an
// application class path holds them.
func writeClasses(t *testing.T, dir string, classes map[string]*classgen.Builder) {
	t.Helper()
	for name, b := range classes {
		data, err := b.Bytes()
		if err != nil {
			t.Fatalf("building %s: %v", name, err)
		}
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestVM(t *testing.T, classes map[string]*classgen.Builder) (*VM, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	writeClasses(t, dir, classes)
	var out, errOut bytes.Buffer
	vm, err := New(Config{
		ClassPath: []string{dir},
		Stdout:    &out,
		Stderr:    &errOut,
	})
	if err != nil {
		t.Fatal(err)
	}
	return vm, &out, &errOut
}

//	helloMain builds: public static void main(String[]) {
//	    System.out.println("Hello, World!"); }
func helloMain() *classgen.Builder {
	b := classgen.NewClass("demo/Hello", "java/lang/Object")
	outField := b.CP.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	msg := b.CP.String("Hello, World!")
	println := b.CP.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	b.Method(types.AccPublic|types.AccStatic, "main", "([Ljava/lang/String;)V", classgen.Code{
		MaxStack: 2, MaxLocals: 1,
		Bytes: []byte{
			opcodes.GETSTATIC, byte(outField >> 8), byte(outField),
			opcodes.LDC, byte(msg),
			opcodes.INVOKEVIRTUAL, byte(println >> 8), byte(println),
			opcodes.RETURN,
		},
	})
	return b
}

func TestHelloWorld(t *testing.T) {
	vm, out, errOut := newTestVM(t, map[string]*classgen.Builder{"demo/Hello": helloMain()})
	code, err := vm.Run("demo/Hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := out.String(); got != "Hello, World!\n" {
		t.Fatalf("stdout = %q, want %q", got, "Hello, World!\n")
	}
	if errOut.Len() != 0 {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestUncaughtExceptionExitsOne(t *testing.T) {
	b := classgen.NewClass("demo/Boom", "java/lang/Object")
	rte := b.CP.Class("java/lang/RuntimeException")
	msg := b.CP.String("boom")
	ctor := b.CP.Methodref("java/lang/RuntimeException", "<init>", "(Ljava/lang/String;)V")
	b.Method(types.AccPublic|types.AccStatic, "main", "([Ljava/lang/String;)V", classgen.Code{
		MaxStack: 3, MaxLocals: 1,
		Bytes: []byte{
			opcodes.NEW, byte(rte >> 8), byte(rte),
			opcodes.DUP,
			opcodes.LDC, byte(msg),
			opcodes.INVOKESPECIAL, byte(ctor >> 8), byte(ctor),
			opcodes.ATHROW,
		},
	})
	vm, _, errOut := newTestVM(t, map[string]*classgen.Builder{"demo/Boom": b})
	code, err := vm.Run("demo/Boom", nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), `Exception in thread "main" java.lang.RuntimeException: boom`) {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestSystemExitCodePropagates(t *testing.T) {
	b := classgen.NewClass("demo/Exit", "java/lang/Object")
	exit := b.CP.Methodref("java/lang/System", "exit", "(I)V")
	b.Method(types.AccPublic|types.AccStatic, "main", "([Ljava/lang/String;)V", classgen.Code{
		MaxStack: 1, MaxLocals: 1,
		Bytes: []byte{
			opcodes.ICONST_3,
			opcodes.INVOKESTATIC, byte(exit >> 8), byte(exit),
			opcodes.RETURN,
		},
	})
	vm, _, _ := newTestVM(t, map[string]*classgen.Builder{"demo/Exit": b})
	code, err := vm.Run("demo/Exit", nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestClassInitializationOrder(t *testing.T) {
	// B.<clinit> sets B.value = 7; A.<clinit> reads it and stores
	// value+1. Observing A.value == 8 proves B's initializer completed
	// before A's finished.
	bClass := classgen.NewClass("demo/B", "java/lang/Object").
		Field(types.AccPublic|types.AccStatic, "value", "I")
	bValue := bClass.CP.Fieldref("demo/B", "value", "I")
	bClass.Method(types.AccStatic, "<clinit>", "()V", classgen.Code{
		MaxStack: 1, MaxLocals: 0,
		Bytes: []byte{
			opcodes.BIPUSH, 7,
			opcodes.PUTSTATIC, byte(bValue >> 8), byte(bValue),
			opcodes.RETURN,
		},
	})

	aClass := classgen.NewClass("demo/A", "java/lang/Object").
		Field(types.AccPublic|types.AccStatic, "value", "I")
	aValue := aClass.CP.Fieldref("demo/A", "value", "I")
	abValue := aClass.CP.Fieldref("demo/B", "value", "I")
	aClass.Method(types.AccStatic, "<clinit>", "()V", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.GETSTATIC, byte(abValue >> 8), byte(abValue),
			opcodes.ICONST_1,
			opcodes.IADD,
			opcodes.PUTSTATIC, byte(aValue >> 8), byte(aValue),
			opcodes.RETURN,
		},
	})
	aClass.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 1, MaxLocals: 0,
		Bytes: []byte{
			opcodes.GETSTATIC, byte(aValue >> 8), byte(aValue),
			opcodes.IRETURN,
		},
	})

	vm, _, _ := newTestVM(t, map[string]*classgen.Builder{"demo/A": aClass, "demo/B": bClass})
	th := vm.NewThread()
	defer th.Close()
	v, err := th.RunStatic("demo/A", "run", "()I", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.AsInt() != 8 {
		t.Fatalf("A.value = %d, want 8 (B initialized first)", v.AsInt())
	}
}

func TestStringInternIdentity(t *testing.T) {
	// return "foo".intern() == "foo".intern();
	b := classgen.NewClass("demo/Intern", "java/lang/Object")
	foo := b.CP.String("foo")
	intern := b.CP.Methodref("java/lang/String", "intern", "()Ljava/lang/String;")
	b.Method(types.AccPublic|types.AccStatic, "run", "()Z", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.LDC, byte(foo),
			opcodes.INVOKEVIRTUAL, byte(intern >> 8), byte(intern),
			opcodes.LDC, byte(foo),
			opcodes.INVOKEVIRTUAL, byte(intern >> 8), byte(intern),
			opcodes.IF_ACMPEQ, 0, 5, // -> pc 15
			opcodes.ICONST_0, // 13
			opcodes.IRETURN,  // 14
			opcodes.ICONST_1, // 15
			opcodes.IRETURN,  // 16
		},
	})
	vm, _, _ := newTestVM(t, map[string]*classgen.Builder{"demo/Intern": b})
	th := vm.NewThread()
	defer th.Close()
	v, err := th.RunStatic("demo/Intern", "run", "()Z", nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.AsInt() != 1 {
		t.Fatal(`"foo".intern() == "foo".intern() evaluated false`)
	}
}

func TestInternedStringsSurviveCollection(t *testing.T) {
	vm, _, _ := newTestVM(t, map[string]*classgen.Builder{"demo/Hello": helloMain()})
	if _, err := vm.Run("demo/Hello", nil); err != nil {
		t.Fatal(err)
	}
	before, err := vm.Intern("Hello, World!")
	if err != nil {
		t.Fatal(err)
	}
	vm.Collector().Collect()
	after, err := vm.Intern("Hello, World!")
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Fatal("interned string lost its identity across a collection")
	}
	if object.GoString(after) != "Hello, World!" {
		t.Fatal("interned string content corrupted by collection")
	}
}

func TestMainClassNotFound(t *testing.T) {
	vm, _, errOut := newTestVM(t, map[string]*classgen.Builder{})
	code, err := vm.Run("no/Such", nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "NoClassDefFoundError") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestProgramArgsReachMain(t *testing.T) {
	// main prints args[0].
	b := classgen.NewClass("demo/Echo", "java/lang/Object")
	outField := b.CP.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	println := b.CP.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	b.Method(types.AccPublic|types.AccStatic, "main", "([Ljava/lang/String;)V", classgen.Code{
		MaxStack: 3, MaxLocals: 1,
		Bytes: []byte{
			opcodes.GETSTATIC, byte(outField >> 8), byte(outField),
			opcodes.ALOAD_0,
			opcodes.ICONST_0,
			opcodes.AALOAD,
			opcodes.INVOKEVIRTUAL, byte(println >> 8), byte(println),
			opcodes.RETURN,
		},
	})
	vm, out, _ := newTestVM(t, map[string]*classgen.Builder{"demo/Echo": b})
	code, err := vm.Run("demo/Echo", []string{"first-arg"})
	if err != nil || code != 0 {
		t.Fatalf("code=%d err=%v", code, err)
	}
	if got := out.String(); got != "first-arg\n" {
		t.Fatalf("stdout = %q", got)
	}
}
