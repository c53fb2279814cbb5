package classloader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/theseus-rs/ristretto-sub014/classgen"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// minimalObject is a stand-in java/lang/Object for loader tests: a native
// <init> keeps it free of bytecode to verify.
func minimalObject(t *testing.T) []byte {
	t.Helper()
	data, err := classgen.NewClass("java/lang/Object", "").
		Flags(types.AccPublic).
		NativeMethod(types.AccPublic, "<init>", "()V").
		Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func classBytes(t *testing.T, b *classgen.Builder) []byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testLoader(t *testing.T, classes map[string][]byte) *Loader {
	t.Helper()
	classes["java/lang/Object"] = minimalObject(t)
	return New("test", SystemLoader, nil, []Source{&MapSource{Name: "fixtures", Classes: classes}})
}

func TestLoadIdempotent(t *testing.T) {
	l := testLoader(t, map[string][]byte{
		"demo/Simple": classBytes(t, classgen.NewClass("demo/Simple", "java/lang/Object")),
	})
	a, err := l.Load("demo/Simple")
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Load("demo/Simple")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("Load twice returned distinct *Class values")
	}
	if a.Super == nil || a.Super.Name != "java/lang/Object" {
		t.Fatalf("super = %v", a.Super)
	}
}

func TestLoadNotFound(t *testing.T) {
	l := testLoader(t, map[string][]byte{})
	_, err := l.Load("no/Such")
	if _, ok := err.(*ErrClassNotFound); !ok {
		t.Fatalf("got %v, want ErrClassNotFound", err)
	}
}

func TestLoadDelegatesToParent(t *testing.T) {
	parent := testLoader(t, map[string][]byte{
		"demo/Shared": classBytes(t, classgen.NewClass("demo/Shared", "java/lang/Object")),
	})
	child := New("child", UserLoader, parent, nil)
	c, err := child.Load("demo/Shared")
	if err != nil {
		t.Fatal(err)
	}
	if c.Loader != parent {
		t.Fatal("class should be defined by the parent loader")
	}
}

func TestLoadNameMismatch(t *testing.T) {
	l := testLoader(t, map[string][]byte{
		"demo/Alias": classBytes(t, classgen.NewClass("demo/Real", "java/lang/Object")),
	})
	_, err := l.Load("demo/Alias")
	if _, ok := err.(*ErrNoClassDefFound); !ok {
		t.Fatalf("got %v, want ErrNoClassDefFound", err)
	}
}

func TestLoadCircularSupers(t *testing.T) {
	l := testLoader(t, map[string][]byte{
		"demo/A": classBytes(t, classgen.NewClass("demo/A", "demo/B")),
		"demo/B": classBytes(t, classgen.NewClass("demo/B", "demo/A")),
	})
	_, err := l.Load("demo/A")
	if _, ok := err.(*ErrCircularity); !ok {
		t.Fatalf("got %v, want ErrCircularity", err)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "java/lang"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "java/lang/Object.class"), minimalObject(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	data := classBytes(t, classgen.NewClass("demo/OnDisk", "java/lang/Object"))
	if err := os.WriteFile(filepath.Join(dir, "demo/OnDisk.class"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	l := New("disk", SystemLoader, nil, []Source{&DirSource{Root: dir}})
	c, err := l.Load("demo/OnDisk")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "demo/OnDisk" {
		t.Fatalf("name = %q", c.Name)
	}
}

func TestVerifiedMethodLoads(t *testing.T) {
	b := classgen.NewClass("demo/Math", "java/lang/Object").
		Method(types.AccPublic|types.AccStatic, "answer", "()I", classgen.Code{
			MaxStack:  1,
			MaxLocals: 0,
			Bytes:     []byte{opcodes.BIPUSH, 42, opcodes.IRETURN},
		})
	l := testLoader(t, map[string][]byte{"demo/Math": classBytes(t, b)})
	l.VerifyBytecode = true
	c, err := l.Load("demo/Math")
	if err != nil {
		t.Fatal(err)
	}
	m := c.DeclaredMethod("answer", "()I")
	if m == nil || m.Code == nil {
		t.Fatal("answer method missing or bodyless")
	}
}

func TestVerifierRejectsBadCode(t *testing.T) {
	// ireturn with an empty operand stack must fail verification.
	b := classgen.NewClass("demo/Broken", "java/lang/Object").
		Method(types.AccPublic|types.AccStatic, "bad", "()I", classgen.Code{
			MaxStack:  1,
			MaxLocals: 0,
			Bytes:     []byte{opcodes.IRETURN},
		})
	l := testLoader(t, map[string][]byte{"demo/Broken": classBytes(t, b)})
	l.VerifyBytecode = true
	if _, err := l.Load("demo/Broken"); err == nil {
		t.Fatal("stack-underflowing method passed verification")
	}
}

func TestSubtypeContext(t *testing.T) {
	l := testLoader(t, map[string][]byte{
		"demo/Animal": classBytes(t, classgen.NewClass("demo/Animal", "java/lang/Object")),
		"demo/Dog":    classBytes(t, classgen.NewClass("demo/Dog", "demo/Animal")),
		"demo/Walks": classBytes(t, classgen.NewClass("demo/Walks", "java/lang/Object").
			Flags(types.AccPublic|types.AccInterface|types.AccAbstract)),
		"demo/Cat": classBytes(t, classgen.NewClass("demo/Cat", "demo/Animal").Implements("demo/Walks")),
	})

	cases := []struct {
		sub, super string
		want       bool
	}{
		{"demo/Dog", "demo/Animal", true},
		{"demo/Dog", "java/lang/Object", true},
		{"demo/Animal", "demo/Dog", false},
		{"demo/Cat", "demo/Walks", true},
		{"demo/Dog", "demo/Walks", false},
		{"[Ldemo/Dog;", "[Ldemo/Animal;", true},
		{"[Ldemo/Animal;", "[Ldemo/Dog;", false},
		{"[I", "java/lang/Object", true},
		{"[I", "[J", false},
	}
	for _, tt := range cases {
		got, err := l.IsSubtypeOf(tt.sub, tt.super)
		if err != nil {
			t.Errorf("IsSubtypeOf(%s, %s): %v", tt.sub, tt.super, err)
			continue
		}
		if got != tt.want {
			t.Errorf("IsSubtypeOf(%s, %s) = %v, want %v", tt.sub, tt.super, got, tt.want)
		}
	}

	common, err := l.CommonSupertype("demo/Dog", "demo/Cat")
	if err != nil || common != "demo/Animal" {
		t.Errorf("CommonSupertype(Dog, Cat) = %q, %v", common, err)
	}
	common, err = l.CommonSupertype("demo/Dog", "java/lang/Object")
	if err != nil || common != "java/lang/Object" {
		t.Errorf("CommonSupertype(Dog, Object) = %q, %v", common, err)
	}
}

func TestInitRunsOncePerClass(t *testing.T) {
	// <clinit> body: return.
	b := classgen.NewClass("demo/Once", "java/lang/Object").
		Field(types.AccStatic, "flag", "I").
		Method(types.AccStatic, "<clinit>", "()V", classgen.Code{
			MaxStack:  0,
			MaxLocals: 0,
			Bytes:     []byte{opcodes.RETURN},
		})
	l := testLoader(t, map[string][]byte{"demo/Once": classBytes(t, b)})
	c, err := l.Load("demo/Once")
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	runs := 0
	runner := func(*Class) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	for tid := int64(1); tid <= 8; tid++ {
		wg.Add(1)
		go func(tid int64) {
			defer wg.Done()
			if err := c.EnsureInitialized(tid, runner); err != nil {
				t.Error(err)
			}
		}(tid)
	}
	wg.Wait()
	if runs != 1 {
		t.Fatalf("<clinit> ran %d times, want 1", runs)
	}
	if c.State() != StateInitialized {
		t.Fatalf("state = %v", c.State())
	}
}

func TestRecursiveInitReturnsImmediately(t *testing.T) {
	b := classgen.NewClass("demo/Rec", "java/lang/Object").
		Method(types.AccStatic, "<clinit>", "()V", classgen.Code{
			MaxStack: 0, MaxLocals: 0, Bytes: []byte{opcodes.RETURN},
		})
	l := testLoader(t, map[string][]byte{"demo/Rec": classBytes(t, b)})
	c, err := l.Load("demo/Rec")
	if err != nil {
		t.Fatal(err)
	}
	err = c.EnsureInitialized(1, func(*Class) error {
		// Re-entering from the initializing thread must not deadlock.
		return c.EnsureInitialized(1, func(*Class) error {
			t.Error("recursive init re-ran <clinit>")
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFailedInitPoisonsClass(t *testing.T) {
	b := classgen.NewClass("demo/Poison", "java/lang/Object").
		Method(types.AccStatic, "<clinit>", "()V", classgen.Code{
			MaxStack: 0, MaxLocals: 0, Bytes: []byte{opcodes.RETURN},
		})
	l := testLoader(t, map[string][]byte{"demo/Poison": classBytes(t, b)})
	c, err := l.Load("demo/Poison")
	if err != nil {
		t.Fatal(err)
	}
	boom := &ErrLinkage{Name: "demo/Poison"}
	if err := c.EnsureInitialized(1, func(*Class) error { return boom }); err != boom {
		t.Fatalf("first init returned %v", err)
	}
	err = c.EnsureInitialized(2, func(*Class) error {
		t.Error("<clinit> re-ran after failure")
		return nil
	})
	if _, ok := err.(*ErrNoClassDefFound); !ok {
		t.Fatalf("got %v, want ErrNoClassDefFound", err)
	}
}

func TestStaticDefaultsAndMembers(t *testing.T) {
	b := classgen.NewClass("demo/Holder", "java/lang/Object").
		Field(types.AccStatic, "count", "J").
		Field(types.AccPublic, "name", "Ljava/lang/String;").
		NativeMethod(types.AccPublic, "touch", "()V")
	l := testLoader(t, map[string][]byte{"demo/Holder": classBytes(t, b)})
	c, err := l.Load("demo/Holder")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := c.GetStatic("count"); !ok || v.I != 0 {
		t.Errorf("static count = %+v, %v", v, ok)
	}
	if !c.SetStatic("count", object.Long(5)) {
		t.Error("SetStatic failed")
	}
	if v, _ := c.GetStatic("count"); v.I != 5 {
		t.Errorf("static count after set = %+v", v)
	}
	descs := c.InstanceFieldDescs()
	if descs["name"] != "Ljava/lang/String;" {
		t.Errorf("instance fields = %v", descs)
	}
	if _, has := descs["count"]; has {
		t.Error("static leaked into instance fields")
	}
	m := c.DeclaredMethod("touch", "()V")
	if m == nil || !m.IsNative() {
		t.Errorf("touch = %+v", m)
	}
}
