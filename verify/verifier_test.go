package verify

import (
	"testing"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// noopContext is a TypeContext for tests that never need real subtyping:
// every reference is considered a subtype of java/lang/Object only.
type noopContext struct{}

func (noopContext) IsSubtypeOf(sub, super string) (bool, error) {
	return super == "java/lang/Object" || sub == super, nil
}

func (noopContext) CommonSupertype(a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	return "java/lang/Object", nil
}

func emptyCP() *classfile.ConstantPool {
	return &classfile.ConstantPool{Entries: []classfile.ConstantPoolEntry{nil}}
}

func TestVerifyMethodTrivialVoidReturn(t *testing.T) {
	code := &classfile.CodeAttribute{
		MaxStack:  0,
		MaxLocals: 1,
		Code:      []byte{byte(opcodes.RETURN)},
	}
	err := VerifyMethod("Foo", "bar", "()V", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyMethodIntArithmetic(t *testing.T) {
	// static int add(int a, int b) { return a + b; }
	code := &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 2,
		Code: []byte{
			byte(opcodes.ILOAD_0),
			byte(opcodes.ILOAD_1),
			byte(opcodes.IADD),
			byte(opcodes.IRETURN),
		},
	}
	err := VerifyMethod("Foo", "add", "(II)I", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyMethodStackUnderflow(t *testing.T) {
	code := &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 0,
		Code: []byte{
			byte(opcodes.IADD),
			byte(opcodes.IRETURN),
		},
	}
	err := VerifyMethod("Foo", "bad", "()I", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err == nil {
		t.Fatal("expected a stack underflow error, got nil")
	}
}

func TestVerifyMethodCategoryMismatch(t *testing.T) {
	// pushes a long, then tries to treat it as an int (pop/iadd without
	// the matching pop2), which must be rejected.
	code := &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 0,
		Code: []byte{
			byte(opcodes.LCONST_0),
			byte(opcodes.POP), // category-2 value requires POP2
			byte(opcodes.RETURN),
		},
	}
	err := VerifyMethod("Foo", "bad", "()V", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err == nil {
		t.Fatal("expected a category mismatch error, got nil")
	}
}

func TestVerifyMethodBranchMerge(t *testing.T) {
	// static int pick(int a) {
	//   if (a == 0) return 1; else return 2;
	// }
	// Both branches return an int; no stack map frame is declared because
	// there is no merge point left on the operand stack (each arm returns).
	code := &classfile.CodeAttribute{
		MaxStack:  1,
		MaxLocals: 1,
		Code: []byte{
			0: byte(opcodes.ILOAD_0),
			1: byte(opcodes.IFNE), 2: 0x00, 3: 0x07, // -> pc 8 (else arm)
			4: byte(opcodes.ICONST_1),
			5: byte(opcodes.IRETURN),
			6: byte(opcodes.NOP), // padding to make the offsets line up
			7: byte(opcodes.NOP),
			8: byte(opcodes.ICONST_2),
			9: byte(opcodes.IRETURN),
		},
	}
	err := VerifyMethod("Foo", "pick", "(I)I", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyMethodMissingRequiredFrame(t *testing.T) {
	// an exception handler target requires a declared frame; with no
	// stack map table at all, the method must fail verification.
	code := &classfile.CodeAttribute{
		MaxStack:  1,
		MaxLocals: 1,
		Code: []byte{
			0: byte(opcodes.ACONST_NULL),
			1: byte(opcodes.ATHROW),
			2: byte(opcodes.RETURN),
		},
		ExceptionTable: []classfile.ExceptionTableEntry{
			{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: 0},
		},
	}
	err := VerifyMethod("Foo", "thrower", "()V", uint16(types.AccStatic), code, emptyCP(), noopContext{})
	if err == nil {
		t.Fatal("expected a missing stack map frame error, got nil")
	}
}

func TestVerifyMethodConstructorUninitializedThis(t *testing.T) {
	// a constructor must call super() before returning; returning with
	// `this` still uninitialized is rejected.
	code := &classfile.CodeAttribute{
		MaxStack:  0,
		MaxLocals: 1,
		Code:      []byte{byte(opcodes.RETURN)},
	}
	err := VerifyMethod("Foo", "<init>", "()V", 0, code, emptyCP(), noopContext{})
	if err == nil {
		t.Fatal("expected an error for returning from <init> before super(), got nil")
	}
}

func TestVerifyMethodAbstractHasNoCode(t *testing.T) {
	if err := VerifyMethod("Foo", "bar", "()V", uint16(types.AccAbstract), nil, emptyCP(), noopContext{}); err != nil {
		t.Fatalf("abstract method with nil Code should not error: %v", err)
	}
}
