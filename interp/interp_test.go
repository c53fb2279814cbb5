package interp

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/classgen"
	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/gc"
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/natives"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// testCore assembles the minimal runtime classes interpreter tests need:
// Object, String, Class, and the built-in throwable hierarchy.
func testCore(t *testing.T) map[string][]byte {
	t.Helper()
	core := map[string][]byte{}
	put := func(name string, b *classgen.Builder) {
		data, err := b.Bytes()
		if err != nil {
			t.Fatalf("building %s: %v", name, err)
		}
		core[name] = data
	}

	put("java/lang/Object", classgen.NewClass("java/lang/Object", "").
		Flags(types.AccPublic).
		NativeMethod(types.AccPublic, "<init>", "()V").
		NativeMethod(types.AccPublic, "hashCode", "()I").
		NativeMethod(types.AccPublic, "toString", "()Ljava/lang/String;"))

	put("java/lang/String", classgen.NewClass("java/lang/String", "java/lang/Object").
		Field(types.AccPrivate|types.AccFinal, "value", "Ljava/lang/Object;").
		NativeMethod(types.AccPublic, "intern", "()Ljava/lang/String;").
		NativeMethod(types.AccPublic, "length", "()I"))

	put("java/lang/Class", classgen.NewClass("java/lang/Class", "java/lang/Object").
		Field(types.AccPrivate, "name", "Ljava/lang/String;"))

	for _, tc := range natives.ThrowableClasses {
		b := classgen.NewClass(tc[0], tc[1]).
			NativeMethod(types.AccPublic, "<init>", "()V").
			NativeMethod(types.AccPublic, "<init>", "(Ljava/lang/String;)V").
			NativeMethod(types.AccPublic, "getMessage", "()Ljava/lang/String;")
		if tc[0] == "java/lang/Throwable" {
			b.Field(types.AccPrivate, "detailMessage", "Ljava/lang/String;")
		}
		put(tc[0], b)
	}
	return core
}

type testEnv struct {
	loader   *classloader.Loader
	out, err bytes.Buffer
	interned map[string]*object.Object
}

func (e *testEnv) NewString(s string) (*object.Object, error) {
	c, err := e.loader.Load("java/lang/String")
	if err != nil {
		return nil, err
	}
	return object.NewString(c, s), nil
}

func (e *testEnv) Intern(s string) (*object.Object, error) {
	if o, ok := e.interned[s]; ok {
		return o, nil
	}
	o, err := e.NewString(s)
	if err != nil {
		return nil, err
	}
	e.interned[s] = o
	return o, nil
}

func (e *testEnv) Throw(className, message string) error {
	return &testThrown{class: className, message: message}
}

type testThrown struct{ class, message string }

func (t *testThrown) Error() string { return t.class + ": " + t.message }

func (e *testEnv) Exit(int)          {}
func (e *testEnv) Stdout() io.Writer { return &e.out }
func (e *testEnv) Stderr() io.Writer { return &e.err }
func (e *testEnv) JavaVersion() int  { return 21 }
func (e *testEnv) ThreadID() int64   { return 1 }

// newTestContext wires a context over the core classes plus extras.
// Verification stays off here: these tests exercise runtime semantics,
// and the fixture methods carry no stack-map tables.
func newTestContext(t *testing.T, extra map[string]*classgen.Builder) (*Context, *CallStack) {
	t.Helper()
	classes := testCore(t)
	for name, b := range extra {
		data, err := b.Bytes()
		if err != nil {
			t.Fatalf("building %s: %v", name, err)
		}
		classes[name] = data
	}
	loader := classloader.New("test", classloader.SystemLoader, nil,
		[]classloader.Source{&classloader.MapSource{Name: "fixtures", Classes: classes}})
	loader.VerifyBytecode = false

	env := &testEnv{loader: loader, interned: make(map[string]*object.Object)}
	reg := intrinsic.NewRegistry()
	natives.Load(reg)

	ctx := &Context{
		Loader:      loader,
		Intrinsics:  reg,
		GC:          gc.New(gc.Config{}),
		Env:         env,
		JavaVersion: 21,
	}
	return ctx, NewCallStack(1)
}

func runStatic(t *testing.T, ctx *Context, cs *CallStack, class, name, desc string, args ...object.Value) *object.Value {
	t.Helper()
	v, err := ctx.RunStatic(cs, class, name, desc, args)
	if err != nil {
		t.Fatalf("%s.%s: %v", class, name, err)
	}
	return v
}

func expectThrown(t *testing.T, err error, className string) *Throwable {
	t.Helper()
	thrown, ok := err.(*Throwable)
	if !ok {
		t.Fatalf("got %v (%T), want a thrown %s", err, err, className)
	}
	if thrown.ClassName() != className {
		t.Fatalf("threw %s, want %s", thrown.ClassName(), className)
	}
	return thrown
}

func TestIntegerOverflowWraps(t *testing.T) {
	b := classgen.NewClass("demo/Overflow", "java/lang/Object")
	maxIdx := b.CP.Integer(math.MaxInt32)
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.LDC, byte(maxIdx),
			opcodes.ICONST_1,
			opcodes.IADD,
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Overflow": b})
	v := runStatic(t, ctx, cs, "demo/Overflow", "run", "()I")
	if v.AsInt() != math.MinInt32 {
		t.Fatalf("MAX_VALUE + 1 = %d, want %d", v.AsInt(), math.MinInt32)
	}
}

func TestDivisionByZero(t *testing.T) {
	b := classgen.NewClass("demo/Div", "java/lang/Object").
		Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
			MaxStack: 2, MaxLocals: 0,
			Bytes: []byte{
				opcodes.ICONST_1,
				opcodes.ICONST_0,
				opcodes.IDIV,
				opcodes.IRETURN,
			},
		})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Div": b})
	_, err := ctx.RunStatic(cs, "demo/Div", "run", "()I", nil)
	thrown := expectThrown(t, err, "java/lang/ArithmeticException")
	if thrown.Message != "/ by zero" {
		t.Fatalf("message = %q", thrown.Message)
	}
}

func TestDivisionOverflowWraps(t *testing.T) {
	b := classgen.NewClass("demo/DivMin", "java/lang/Object")
	minIdx := b.CP.Integer(math.MinInt32)
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.LDC, byte(minIdx),
			opcodes.ICONST_M1,
			opcodes.IDIV,
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/DivMin": b})
	v := runStatic(t, ctx, cs, "demo/DivMin", "run", "()I")
	if v.AsInt() != math.MinInt32 {
		t.Fatalf("MIN_VALUE / -1 = %d, want %d", v.AsInt(), math.MinInt32)
	}
}

func TestNullReceiverThrowsNPE(t *testing.T) {
	b := classgen.NewClass("demo/Npe", "java/lang/Object")
	hash := b.CP.Methodref("java/lang/Object", "hashCode", "()I")
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 1, MaxLocals: 0,
		Bytes: []byte{
			opcodes.ACONST_NULL,
			opcodes.INVOKEVIRTUAL, byte(hash >> 8), byte(hash),
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Npe": b})
	_, err := ctx.RunStatic(cs, "demo/Npe", "run", "()I", nil)
	expectThrown(t, err, "java/lang/NullPointerException")
}

func TestExceptionHandlerCatches(t *testing.T) {
	// try { throw new RuntimeException("x"); }
	// catch (RuntimeException e) { return e.getMessage(); }
	b := classgen.NewClass("demo/Catch", "java/lang/Object")
	rte := b.CP.Class("java/lang/RuntimeException")
	xIdx := b.CP.String("x")
	ctor := b.CP.Methodref("java/lang/RuntimeException", "<init>", "(Ljava/lang/String;)V")
	getMsg := b.CP.Methodref("java/lang/RuntimeException", "getMessage", "()Ljava/lang/String;")
	code := []byte{
		opcodes.NEW, byte(rte >> 8), byte(rte), // 0
		opcodes.DUP,             // 3
		opcodes.LDC, byte(xIdx), // 4
		opcodes.INVOKESPECIAL, byte(ctor >> 8), byte(ctor), // 6
		opcodes.ATHROW, // 9
		// handler: 10
		opcodes.ASTORE_0,                                       // 10
		opcodes.ALOAD_0,                                        // 11
		opcodes.INVOKEVIRTUAL, byte(getMsg >> 8), byte(getMsg), // 12
		opcodes.ARETURN, // 15
	}
	b.Method(types.AccPublic|types.AccStatic, "run", "()Ljava/lang/String;", classgen.Code{
		MaxStack: 3, MaxLocals: 1,
		Bytes: code,
		Exceptions: []classfile.ExceptionTableEntry{
			{StartPC: 0, EndPC: 10, HandlerPC: 10, CatchType: rte},
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Catch": b})
	v := runStatic(t, ctx, cs, "demo/Catch", "run", "()Ljava/lang/String;")
	if got := object.GoString(v.Ref); got != "x" {
		t.Fatalf("caught message = %q, want \"x\"", got)
	}
}

func TestUncaughtExceptionPropagates(t *testing.T) {
	b := classgen.NewClass("demo/Uncaught", "java/lang/Object")
	rte := b.CP.Class("java/lang/RuntimeException")
	ctor := b.CP.Methodref("java/lang/RuntimeException", "<init>", "()V")
	b.Method(types.AccPublic|types.AccStatic, "run", "()V", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.NEW, byte(rte >> 8), byte(rte),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(ctor >> 8), byte(ctor),
			opcodes.ATHROW,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Uncaught": b})
	_, err := ctx.RunStatic(cs, "demo/Uncaught", "run", "()V", nil)
	expectThrown(t, err, "java/lang/RuntimeException")
	if cs.Depth() != 0 {
		t.Fatalf("frames left on stack: %d", cs.Depth())
	}
}

func TestVirtualDispatchMostSpecific(t *testing.T) {
	animal := classgen.NewClass("demo/Animal", "java/lang/Object").
		Method(types.AccPublic, "speak", "()I", classgen.Code{
			MaxStack: 1, MaxLocals: 1,
			Bytes: []byte{opcodes.ICONST_1, opcodes.IRETURN},
		})
	dog := classgen.NewClass("demo/Dog", "demo/Animal").
		Method(types.AccPublic, "speak", "()I", classgen.Code{
			MaxStack: 1, MaxLocals: 1,
			Bytes: []byte{opcodes.ICONST_2, opcodes.IRETURN},
		})

	// static int run() { Animal a = new Dog(); return a.speak(); }
	b := classgen.NewClass("demo/Kennel", "java/lang/Object")
	dogCls := b.CP.Class("demo/Dog")
	dogInit := b.CP.Methodref("demo/Dog", "<init>", "()V")
	speak := b.CP.Methodref("demo/Animal", "speak", "()I")
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 2, MaxLocals: 1,
		Bytes: []byte{
			opcodes.NEW, byte(dogCls >> 8), byte(dogCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(dogInit >> 8), byte(dogInit),
			opcodes.ASTORE_0,
			opcodes.ALOAD_0,
			opcodes.INVOKEVIRTUAL, byte(speak >> 8), byte(speak),
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{
		"demo/Animal": animal, "demo/Dog": dog, "demo/Kennel": b,
	})
	v := runStatic(t, ctx, cs, "demo/Kennel", "run", "()I")
	if v.AsInt() != 2 {
		t.Fatalf("dispatched to %d, want the Dog override (2)", v.AsInt())
	}
}

func TestInvokeSpecialUsesDeclaredOwner(t *testing.T) {
	base := classgen.NewClass("demo/Base", "java/lang/Object").
		Method(types.AccPublic, "value", "()I", classgen.Code{
			MaxStack: 1, MaxLocals: 1,
			Bytes: []byte{opcodes.BIPUSH, 10, opcodes.IRETURN},
		})
	// Sub overrides value() but superValue() uses invokespecial Base.value.
	sub := classgen.NewClass("demo/Sub", "demo/Base")
	baseValue := sub.CP.Methodref("demo/Base", "value", "()I")
	sub.Method(types.AccPublic, "value", "()I", classgen.Code{
		MaxStack: 1, MaxLocals: 1,
		Bytes: []byte{opcodes.BIPUSH, 20, opcodes.IRETURN},
	})
	sub.Method(types.AccPublic, "superValue", "()I", classgen.Code{
		MaxStack: 1, MaxLocals: 1,
		Bytes: []byte{
			opcodes.ALOAD_0,
			opcodes.INVOKESPECIAL, byte(baseValue >> 8), byte(baseValue),
			opcodes.IRETURN,
		},
	})

	b := classgen.NewClass("demo/Caller", "java/lang/Object")
	subCls := b.CP.Class("demo/Sub")
	subInit := b.CP.Methodref("demo/Sub", "<init>", "()V")
	superValue := b.CP.Methodref("demo/Sub", "superValue", "()I")
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.NEW, byte(subCls >> 8), byte(subCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(subInit >> 8), byte(subInit),
			opcodes.INVOKEVIRTUAL, byte(superValue >> 8), byte(superValue),
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{
		"demo/Base": base, "demo/Sub": sub, "demo/Caller": b,
	})
	v := runStatic(t, ctx, cs, "demo/Caller", "run", "()I")
	if v.AsInt() != 10 {
		t.Fatalf("invokespecial dispatched to %d, want the declared Base.value (10)", v.AsInt())
	}
}

func TestArrayRoundTripAndBounds(t *testing.T) {
	// static int run() { int[] a = new int[3]; a[1] = 7; return a[1]; }
	b := classgen.NewClass("demo/Arr", "java/lang/Object").
		Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
			MaxStack: 3, MaxLocals: 1,
			Bytes: []byte{
				opcodes.ICONST_3,
				opcodes.NEWARRAY, object.TInt,
				opcodes.ASTORE_0,
				opcodes.ALOAD_0,
				opcodes.ICONST_1,
				opcodes.BIPUSH, 7,
				opcodes.IASTORE,
				opcodes.ALOAD_0,
				opcodes.ICONST_1,
				opcodes.IALOAD,
				opcodes.IRETURN,
			},
		}).
		Method(types.AccPublic|types.AccStatic, "oob", "()I", classgen.Code{
			MaxStack: 2, MaxLocals: 1,
			Bytes: []byte{
				opcodes.ICONST_1,
				opcodes.NEWARRAY, object.TInt,
				opcodes.ICONST_5,
				opcodes.IALOAD,
				opcodes.IRETURN,
			},
		}).
		Method(types.AccPublic|types.AccStatic, "negative", "()V", classgen.Code{
			MaxStack: 1, MaxLocals: 0,
			Bytes: []byte{
				opcodes.ICONST_M1,
				opcodes.NEWARRAY, object.TInt,
				opcodes.POP,
				opcodes.RETURN,
			},
		})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Arr": b})
	v := runStatic(t, ctx, cs, "demo/Arr", "run", "()I")
	if v.AsInt() != 7 {
		t.Fatalf("a[1] = %d", v.AsInt())
	}
	_, err := ctx.RunStatic(cs, "demo/Arr", "oob", "()I", nil)
	thrown := expectThrown(t, err, "java/lang/ArrayIndexOutOfBoundsException")
	if !strings.Contains(thrown.Message, "Index 5 out of bounds for length 1") {
		t.Fatalf("message = %q", thrown.Message)
	}
	_, err = ctx.RunStatic(cs, "demo/Arr", "negative", "()V", nil)
	expectThrown(t, err, "java/lang/NegativeArraySizeException")
}

func TestArrayStoreCheck(t *testing.T) {
	animal := classgen.NewClass("demo/Animal2", "java/lang/Object")
	dog := classgen.NewClass("demo/Dog2", "demo/Animal2")

	// static void run() { Animal2[] a = new Dog2[1]; a[0] = new Animal2(); }
	b := classgen.NewClass("demo/Store", "java/lang/Object")
	dogCls := b.CP.Class("demo/Dog2")
	animalCls := b.CP.Class("demo/Animal2")
	animalInit := b.CP.Methodref("demo/Animal2", "<init>", "()V")
	b.Method(types.AccPublic|types.AccStatic, "run", "()V", classgen.Code{
		MaxStack: 4, MaxLocals: 1,
		Bytes: []byte{
			opcodes.ICONST_1,
			opcodes.ANEWARRAY, byte(dogCls >> 8), byte(dogCls),
			opcodes.ASTORE_0,
			opcodes.ALOAD_0,
			opcodes.ICONST_0,
			opcodes.NEW, byte(animalCls >> 8), byte(animalCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(animalInit >> 8), byte(animalInit),
			opcodes.AASTORE,
			opcodes.RETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{
		"demo/Animal2": animal, "demo/Dog2": dog, "demo/Store": b,
	})
	_, err := ctx.RunStatic(cs, "demo/Store", "run", "()V", nil)
	expectThrown(t, err, "java/lang/ArrayStoreException")
}

func TestCheckcastAndInstanceof(t *testing.T) {
	animal := classgen.NewClass("demo/Animal3", "java/lang/Object")
	dog := classgen.NewClass("demo/Dog3", "demo/Animal3")

	b := classgen.NewClass("demo/Cast", "java/lang/Object")
	dogCls := b.CP.Class("demo/Dog3")
	animalCls := b.CP.Class("demo/Animal3")
	dogInit := b.CP.Methodref("demo/Dog3", "<init>", "()V")
	// static int run() { Object o = new Dog3(); return (o instanceof Animal3) ? 1 : 0 after checkcast; }
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 2, MaxLocals: 1,
		Bytes: []byte{
			opcodes.NEW, byte(dogCls >> 8), byte(dogCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(dogInit >> 8), byte(dogInit),
			opcodes.ASTORE_0,
			opcodes.ALOAD_0,
			opcodes.CHECKCAST, byte(animalCls >> 8), byte(animalCls),
			opcodes.INSTANCEOF, byte(animalCls >> 8), byte(animalCls),
			opcodes.IRETURN,
		},
	})
	// static void bad() { Object o = new Animal3(); Dog3 d = (Dog3) o; }
	animalInit := b.CP.Methodref("demo/Animal3", "<init>", "()V")
	b.Method(types.AccPublic|types.AccStatic, "bad", "()V", classgen.Code{
		MaxStack: 2, MaxLocals: 0,
		Bytes: []byte{
			opcodes.NEW, byte(animalCls >> 8), byte(animalCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(animalInit >> 8), byte(animalInit),
			opcodes.CHECKCAST, byte(dogCls >> 8), byte(dogCls),
			opcodes.POP,
			opcodes.RETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{
		"demo/Animal3": animal, "demo/Dog3": dog, "demo/Cast": b,
	})
	v := runStatic(t, ctx, cs, "demo/Cast", "run", "()I")
	if v.AsInt() != 1 {
		t.Fatal("instanceof after checkcast should report 1")
	}
	_, err := ctx.RunStatic(cs, "demo/Cast", "bad", "()V", nil)
	expectThrown(t, err, "java/lang/ClassCastException")
}

func TestTableSwitch(t *testing.T) {
	b := classgen.NewClass("demo/Switch", "java/lang/Object")
	// tableswitch over 1..3 at pc 1 (operand base pads to 4).
	table := []byte{
		opcodes.ILOAD_0,     // 0
		opcodes.TABLESWITCH, // 1; operands pad to pc 4
		0, 0,
		0, 0, 0, 33, // default -> pc 1+33 = 34
		0, 0, 0, 1, // low
		0, 0, 0, 3, // high
		0, 0, 0, 27, // case 1 -> 28
		0, 0, 0, 29, // case 2 -> 30
		0, 0, 0, 31, // case 3 -> 32
		opcodes.ICONST_1, opcodes.IRETURN, // 28
		opcodes.ICONST_2, opcodes.IRETURN, // 30
		opcodes.ICONST_3, opcodes.IRETURN, // 32
		opcodes.ICONST_M1, opcodes.IRETURN, // 34
	}
	b.Method(types.AccPublic|types.AccStatic, "table", "(I)I", classgen.Code{
		MaxStack: 1, MaxLocals: 1, Bytes: table,
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Switch": b})
	for in, want := range map[int32]int32{1: 1, 2: 2, 3: 3, 9: -1, -5: -1} {
		v := runStatic(t, ctx, cs, "demo/Switch", "table", "(I)I", object.Int(in))
		if v.AsInt() != want {
			t.Errorf("table(%d) = %d, want %d", in, v.AsInt(), want)
		}
	}
}

func TestLongArithmeticAndComparison(t *testing.T) {
	b := classgen.NewClass("demo/Long", "java/lang/Object")
	bigIdx := b.CP.Long(1 << 40)
	// static int run() { long v = (1L<<40) + 1; return lcmp(v, 1L<<40); }
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 4, MaxLocals: 2,
		Bytes: []byte{
			opcodes.LDC2_W, byte(bigIdx >> 8), byte(bigIdx),
			opcodes.LCONST_1,
			opcodes.LADD,
			opcodes.LDC2_W, byte(bigIdx >> 8), byte(bigIdx),
			opcodes.LCMP,
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Long": b})
	v := runStatic(t, ctx, cs, "demo/Long", "run", "()I")
	if v.AsInt() != 1 {
		t.Fatalf("lcmp((1<<40)+1, 1<<40) = %d, want 1", v.AsInt())
	}
}

func TestStackOverflowErrorOnDeepRecursion(t *testing.T) {
	b := classgen.NewClass("demo/Deep", "java/lang/Object")
	self := b.CP.Methodref("demo/Deep", "run", "()V")
	b.Method(types.AccPublic|types.AccStatic, "run", "()V", classgen.Code{
		MaxStack: 1, MaxLocals: 0,
		Bytes: []byte{
			opcodes.INVOKESTATIC, byte(self >> 8), byte(self),
			opcodes.RETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Deep": b})
	ctx.MaxFrames = 64
	_, err := ctx.RunStatic(cs, "demo/Deep", "run", "()V", nil)
	expectThrown(t, err, "java/lang/StackOverflowError")
}

func TestInvokeDynamicRejected(t *testing.T) {
	b := classgen.NewClass("demo/Indy", "java/lang/Object")
	indy := b.CP.InvokeDynamic(0, "lambda$run$0", "()V")
	b.Method(types.AccPublic|types.AccStatic, "run", "()V", classgen.Code{
		MaxStack: 1, MaxLocals: 0,
		Bytes: []byte{
			opcodes.INVOKEDYNAMIC, byte(indy >> 8), byte(indy), 0, 0,
			opcodes.RETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Indy": b})
	_, err := ctx.RunStatic(cs, "demo/Indy", "run", "()V", nil)
	thrown := expectThrown(t, err, "java/lang/UnsatisfiedLinkError")
	if !strings.Contains(thrown.Message, "invokedynamic") || !strings.Contains(thrown.Message, "lambda$run$0") {
		t.Fatalf("message = %q", thrown.Message)
	}
}

func TestMonitorBytecodes(t *testing.T) {
	// static void run(Object o) { synchronized (o) { } } — twice nested.
	b := classgen.NewClass("demo/Sync", "java/lang/Object").
		Method(types.AccPublic|types.AccStatic, "run", "(Ljava/lang/Object;)V", classgen.Code{
			MaxStack: 1, MaxLocals: 1,
			Bytes: []byte{
				opcodes.ALOAD_0,
				opcodes.MONITORENTER,
				opcodes.ALOAD_0,
				opcodes.MONITORENTER,
				opcodes.ALOAD_0,
				opcodes.MONITOREXIT,
				opcodes.ALOAD_0,
				opcodes.MONITOREXIT,
				opcodes.RETURN,
			},
		})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{"demo/Sync": b})
	obj := &object.Object{Fields: map[string]object.Value{}}
	runStatic(t, ctx, cs, "demo/Sync", "run", "(Ljava/lang/Object;)V", object.Ref(obj))
	if obj.Monitor.Owner() != 0 {
		t.Fatal("monitor still owned after balanced enter/exit")
	}
}

func TestGetPutFieldAndStatics(t *testing.T) {
	counter := classgen.NewClass("demo/Counter", "java/lang/Object").
		Field(types.AccPublic, "n", "I").
		Field(types.AccPublic|types.AccStatic, "total", "I")

	b := classgen.NewClass("demo/FieldOps", "java/lang/Object")
	counterCls := b.CP.Class("demo/Counter")
	counterInit := b.CP.Methodref("demo/Counter", "<init>", "()V")
	nField := b.CP.Fieldref("demo/Counter", "n", "I")
	totalField := b.CP.Fieldref("demo/Counter", "total", "I")
	// static int run() { Counter c = new Counter(); c.n = 5; Counter.total = c.n + 2; return Counter.total; }
	b.Method(types.AccPublic|types.AccStatic, "run", "()I", classgen.Code{
		MaxStack: 3, MaxLocals: 1,
		Bytes: []byte{
			opcodes.NEW, byte(counterCls >> 8), byte(counterCls),
			opcodes.DUP,
			opcodes.INVOKESPECIAL, byte(counterInit >> 8), byte(counterInit),
			opcodes.ASTORE_0,
			opcodes.ALOAD_0,
			opcodes.ICONST_5,
			opcodes.PUTFIELD, byte(nField >> 8), byte(nField),
			opcodes.ALOAD_0,
			opcodes.GETFIELD, byte(nField >> 8), byte(nField),
			opcodes.ICONST_2,
			opcodes.IADD,
			opcodes.PUTSTATIC, byte(totalField >> 8), byte(totalField),
			opcodes.GETSTATIC, byte(totalField >> 8), byte(totalField),
			opcodes.IRETURN,
		},
	})
	ctx, cs := newTestContext(t, map[string]*classgen.Builder{
		"demo/Counter": counter, "demo/FieldOps": b,
	})
	v := runStatic(t, ctx, cs, "demo/FieldOps", "run", "()I")
	if v.AsInt() != 7 {
		t.Fatalf("run() = %d, want 7", v.AsInt())
	}
}
