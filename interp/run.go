package interp

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
)

func u16at(code []byte, pc int) int {
	return int(code[pc])<<8 | int(code[pc+1])
}

func s16at(code []byte, pc int) int {
	return int(int16(uint16(code[pc])<<8 | uint16(code[pc+1])))
}

func s32at(code []byte, pc int) int {
	return int(int32(uint32(code[pc])<<24 | uint32(code[pc+1])<<16 |
		uint32(code[pc+2])<<8 | uint32(code[pc+3])))
}

// run drives one frame to completion: fetch, decode, dispatch, advance.
// Java exceptions raised by handlers or nested invokes are
// offered to this frame's exception table before propagating.
func (ctx *Context) run(cs *CallStack, f *Frame) (*object.Value, error) {
	code := f.Method.Code.Code
	for {
		if f.PC < 0 || f.PC >= len(code) {
			return nil, fmt.Errorf("%s: pc %d out of code bounds", f.Method.QualifiedName(), f.PC)
		}
		ret, done, err := ctx.step(cs, f, code)
		if err != nil {
			err = ctx.asThrowable(cs, err)
			t, isJava := err.(*Throwable)
			if !isJava {
				return nil, err
			}
			handled, herr := ctx.dispatchException(f, t)
			if herr != nil {
				return nil, herr
			}
			if !handled {
				return nil, t
			}
			continue
		}
		if done {
			return ret, nil
		}
	}
}

// step executes the instruction at f.PC. On success it advances f.PC (or
// sets it for branches); on a Java exception it leaves f.PC at the erring
// instruction so handler ranges and stack traces see the right offset.
func (ctx *Context) step(cs *CallStack, f *Frame, code []byte) (ret *object.Value, done bool, err error) {
	pc := f.PC
	op := code[pc]
	switch op {

	case opcodes.NOP, opcodes.BREAKPOINT, opcodes.IMPDEP1, opcodes.IMPDEP2:
		f.PC = pc + 1

	// ----- constants -----

	case opcodes.ACONST_NULL:
		f.push(object.Null())
		f.PC = pc + 1
	case opcodes.ICONST_M1, opcodes.ICONST_0, opcodes.ICONST_1, opcodes.ICONST_2,
		opcodes.ICONST_3, opcodes.ICONST_4, opcodes.ICONST_5:
		f.push(object.Int(int32(op) - int32(opcodes.ICONST_0)))
		f.PC = pc + 1
	case opcodes.LCONST_0, opcodes.LCONST_1:
		f.push(object.Long(int64(op - opcodes.LCONST_0)))
		f.PC = pc + 1
	case opcodes.FCONST_0, opcodes.FCONST_1, opcodes.FCONST_2:
		f.push(object.Float(float32(op - opcodes.FCONST_0)))
		f.PC = pc + 1
	case opcodes.DCONST_0, opcodes.DCONST_1:
		f.push(object.Double(float64(op - opcodes.DCONST_0)))
		f.PC = pc + 1
	case opcodes.BIPUSH:
		f.push(object.Int(int32(int8(code[pc+1]))))
		f.PC = pc + 2
	case opcodes.SIPUSH:
		f.push(object.Int(int32(int16(uint16(code[pc+1])<<8 | uint16(code[pc+2])))))
		f.PC = pc + 3
	case opcodes.LDC:
		if err := ctx.ldc(cs, f, int(code[pc+1])); err != nil {
			return nil, false, err
		}
		f.PC = pc + 2
	case opcodes.LDC_W, opcodes.LDC2_W:
		if err := ctx.ldc(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3

	// ----- loads -----

	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD:
		f.push(f.Locals[int(code[pc+1])])
		f.PC = pc + 2
	case opcodes.ILOAD_0, opcodes.ILOAD_1, opcodes.ILOAD_2, opcodes.ILOAD_3:
		f.push(f.Locals[op-opcodes.ILOAD_0])
		f.PC = pc + 1
	case opcodes.LLOAD_0, opcodes.LLOAD_1, opcodes.LLOAD_2, opcodes.LLOAD_3:
		f.push(f.Locals[op-opcodes.LLOAD_0])
		f.PC = pc + 1
	case opcodes.FLOAD_0, opcodes.FLOAD_1, opcodes.FLOAD_2, opcodes.FLOAD_3:
		f.push(f.Locals[op-opcodes.FLOAD_0])
		f.PC = pc + 1
	case opcodes.DLOAD_0, opcodes.DLOAD_1, opcodes.DLOAD_2, opcodes.DLOAD_3:
		f.push(f.Locals[op-opcodes.DLOAD_0])
		f.PC = pc + 1
	case opcodes.ALOAD_0, opcodes.ALOAD_1, opcodes.ALOAD_2, opcodes.ALOAD_3:
		f.push(f.Locals[op-opcodes.ALOAD_0])
		f.PC = pc + 1

	// ----- stores -----

	case opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE:
		f.Locals[int(code[pc+1])] = f.pop()
		f.PC = pc + 2
	case opcodes.ISTORE_0, opcodes.ISTORE_1, opcodes.ISTORE_2, opcodes.ISTORE_3:
		f.Locals[op-opcodes.ISTORE_0] = f.pop()
		f.PC = pc + 1
	case opcodes.LSTORE_0, opcodes.LSTORE_1, opcodes.LSTORE_2, opcodes.LSTORE_3:
		f.Locals[op-opcodes.LSTORE_0] = f.pop()
		f.PC = pc + 1
	case opcodes.FSTORE_0, opcodes.FSTORE_1, opcodes.FSTORE_2, opcodes.FSTORE_3:
		f.Locals[op-opcodes.FSTORE_0] = f.pop()
		f.PC = pc + 1
	case opcodes.DSTORE_0, opcodes.DSTORE_1, opcodes.DSTORE_2, opcodes.DSTORE_3:
		f.Locals[op-opcodes.DSTORE_0] = f.pop()
		f.PC = pc + 1
	case opcodes.ASTORE_0, opcodes.ASTORE_1, opcodes.ASTORE_2, opcodes.ASTORE_3:
		f.Locals[op-opcodes.ASTORE_0] = f.pop()
		f.PC = pc + 1

	// ----- array loads/stores -----

	case opcodes.IALOAD, opcodes.LALOAD, opcodes.FALOAD, opcodes.DALOAD,
		opcodes.BALOAD, opcodes.CALOAD, opcodes.SALOAD, opcodes.AALOAD:
		if err := ctx.arrayLoad(cs, f, op); err != nil {
			return nil, false, err
		}
		f.PC = pc + 1
	case opcodes.IASTORE, opcodes.LASTORE, opcodes.FASTORE, opcodes.DASTORE,
		opcodes.BASTORE, opcodes.CASTORE, opcodes.SASTORE, opcodes.AASTORE:
		if err := ctx.arrayStore(cs, f, op); err != nil {
			return nil, false, err
		}
		f.PC = pc + 1

	// ----- stack manipulation (category-aware) -----

	case opcodes.POP:
		f.pop()
		f.PC = pc + 1
	case opcodes.POP2:
		f.popGroup()
		f.PC = pc + 1
	case opcodes.DUP:
		f.push(f.peek())
		f.PC = pc + 1
	case opcodes.DUP_X1:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.push(v1)
		f.PC = pc + 1
	case opcodes.DUP_X2:
		v1 := f.pop()
		g := f.popGroup()
		f.push(v1)
		f.pushGroup(g)
		f.push(v1)
		f.PC = pc + 1
	case opcodes.DUP2:
		g := f.popGroup()
		f.pushGroup(g)
		f.pushGroup(g)
		f.PC = pc + 1
	case opcodes.DUP2_X1:
		g := f.popGroup()
		v := f.pop()
		f.pushGroup(g)
		f.push(v)
		f.pushGroup(g)
		f.PC = pc + 1
	case opcodes.DUP2_X2:
		g := f.popGroup()
		h := f.popGroup()
		f.pushGroup(g)
		f.pushGroup(h)
		f.pushGroup(g)
		f.PC = pc + 1
	case opcodes.SWAP:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.PC = pc + 1

	// ----- arithmetic, shifts, conversions, comparisons -----

	case opcodes.IADD, opcodes.ISUB, opcodes.IMUL, opcodes.IDIV, opcodes.IREM,
		opcodes.IAND, opcodes.IOR, opcodes.IXOR, opcodes.ISHL, opcodes.ISHR, opcodes.IUSHR,
		opcodes.LADD, opcodes.LSUB, opcodes.LMUL, opcodes.LDIV, opcodes.LREM,
		opcodes.LAND, opcodes.LOR, opcodes.LXOR, opcodes.LSHL, opcodes.LSHR, opcodes.LUSHR,
		opcodes.FADD, opcodes.FSUB, opcodes.FMUL, opcodes.FDIV, opcodes.FREM,
		opcodes.DADD, opcodes.DSUB, opcodes.DMUL, opcodes.DDIV, opcodes.DREM,
		opcodes.INEG, opcodes.LNEG, opcodes.FNEG, opcodes.DNEG,
		opcodes.I2L, opcodes.I2F, opcodes.I2D, opcodes.L2I, opcodes.L2F, opcodes.L2D,
		opcodes.F2I, opcodes.F2L, opcodes.F2D, opcodes.D2I, opcodes.D2L, opcodes.D2F,
		opcodes.I2B, opcodes.I2C, opcodes.I2S,
		opcodes.LCMP, opcodes.FCMPL, opcodes.FCMPG, opcodes.DCMPL, opcodes.DCMPG:
		if err := ctx.arith(cs, f, op); err != nil {
			return nil, false, err
		}
		f.PC = pc + 1

	case opcodes.IINC:
		idx := int(code[pc+1])
		delta := int32(int8(code[pc+2]))
		f.Locals[idx] = object.Int(f.Locals[idx].AsInt() + delta)
		f.PC = pc + 3

	// ----- control flow -----

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE:
		v := f.pop().AsInt()
		if intCondition(op, v, 0) {
			f.PC = pc + s16at(code, pc+1)
		} else {
			f.PC = pc + 3
		}
	case opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT,
		opcodes.IF_ICMPGE, opcodes.IF_ICMPGT, opcodes.IF_ICMPLE:
		v2 := f.pop().AsInt()
		v1 := f.pop().AsInt()
		if intCondition(op, v1, v2) {
			f.PC = pc + s16at(code, pc+1)
		} else {
			f.PC = pc + 3
		}
	case opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE:
		v2 := f.pop()
		v1 := f.pop()
		same := v1.Ref == v2.Ref
		if (op == opcodes.IF_ACMPEQ) == same {
			f.PC = pc + s16at(code, pc+1)
		} else {
			f.PC = pc + 3
		}
	case opcodes.IFNULL, opcodes.IFNONNULL:
		v := f.pop()
		if (op == opcodes.IFNULL) == v.IsNull() {
			f.PC = pc + s16at(code, pc+1)
		} else {
			f.PC = pc + 3
		}
	case opcodes.GOTO:
		f.PC = pc + s16at(code, pc+1)
	case opcodes.GOTO_W:
		f.PC = pc + s32at(code, pc+1)
	case opcodes.JSR:
		f.push(object.Int(int32(pc + 3)))
		f.PC = pc + s16at(code, pc+1)
	case opcodes.JSR_W:
		f.push(object.Int(int32(pc + 5)))
		f.PC = pc + s32at(code, pc+1)
	case opcodes.RET:
		f.PC = int(f.Locals[int(code[pc+1])].AsInt())

	case opcodes.TABLESWITCH:
		base := (pc + 4) &^ 3 // operands begin 4-byte aligned from code start
		def := s32at(code, base)
		low := s32at(code, base+4)
		high := s32at(code, base+8)
		v := int(f.pop().AsInt())
		if v < low || v > high {
			f.PC = pc + def
		} else {
			f.PC = pc + s32at(code, base+12+(v-low)*4)
		}
	case opcodes.LOOKUPSWITCH:
		base := (pc + 4) &^ 3
		def := s32at(code, base)
		npairs := s32at(code, base+4)
		v := int(f.pop().AsInt())
		f.PC = pc + def
		for i := 0; i < npairs; i++ {
			match := s32at(code, base+8+i*8)
			if v == match {
				f.PC = pc + s32at(code, base+12+i*8)
				break
			}
		}

	// ----- returns -----

	case opcodes.IRETURN, opcodes.LRETURN, opcodes.FRETURN, opcodes.DRETURN, opcodes.ARETURN:
		v := f.pop()
		return &v, true, nil
	case opcodes.RETURN:
		return nil, true, nil

	// ----- fields -----

	case opcodes.GETSTATIC:
		if err := ctx.getStatic(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.PUTSTATIC:
		if err := ctx.putStatic(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.GETFIELD:
		if err := ctx.getField(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.PUTFIELD:
		if err := ctx.putField(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3

	// ----- invokes -----

	case opcodes.INVOKEVIRTUAL:
		if err := ctx.invokeOp(cs, f, kindVirtual, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.INVOKESPECIAL:
		if err := ctx.invokeOp(cs, f, kindSpecial, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.INVOKESTATIC:
		if err := ctx.invokeOp(cs, f, kindStatic, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.INVOKEINTERFACE:
		if err := ctx.invokeOp(cs, f, kindInterface, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 5 // index u2, count u1, zero u1
	case opcodes.INVOKEDYNAMIC:
		return nil, false, ctx.invokeDynamicUnsupported(cs, f, u16at(code, pc+1))

	// ----- objects and arrays -----

	case opcodes.NEW:
		if err := ctx.newInstance(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.NEWARRAY:
		if err := ctx.newPrimArray(cs, f, int(code[pc+1])); err != nil {
			return nil, false, err
		}
		f.PC = pc + 2
	case opcodes.ANEWARRAY:
		if err := ctx.newRefArray(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.MULTIANEWARRAY:
		if err := ctx.newMultiArray(cs, f, u16at(code, pc+1), int(code[pc+3])); err != nil {
			return nil, false, err
		}
		f.PC = pc + 4
	case opcodes.ARRAYLENGTH:
		v := f.pop()
		if v.IsNull() {
			return nil, false, ctx.throwJava(cs, "java/lang/NullPointerException", "")
		}
		f.push(object.Int(int32(v.Ref.ArrayLen())))
		f.PC = pc + 1

	case opcodes.ATHROW:
		v := f.pop()
		if v.IsNull() {
			return nil, false, ctx.throwJava(cs, "java/lang/NullPointerException", "")
		}
		return nil, false, ctx.throwableFor(cs, v.Ref)

	case opcodes.CHECKCAST:
		if err := ctx.checkcast(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3
	case opcodes.INSTANCEOF:
		if err := ctx.instanceOf(cs, f, u16at(code, pc+1)); err != nil {
			return nil, false, err
		}
		f.PC = pc + 3

	case opcodes.MONITORENTER:
		v := f.pop()
		if v.IsNull() {
			return nil, false, ctx.throwJava(cs, "java/lang/NullPointerException", "")
		}
		// A contended monitor blocks here; monitorenter is a defined
		// yield point.
		v.Ref.Monitor.Enter(cs.ThreadID)
		f.PC = pc + 1
	case opcodes.MONITOREXIT:
		v := f.pop()
		if v.IsNull() {
			return nil, false, ctx.throwJava(cs, "java/lang/NullPointerException", "")
		}
		if err := v.Ref.Monitor.Exit(cs.ThreadID); err != nil {
			return nil, false, ctx.throwJava(cs, "java/lang/IllegalMonitorStateException", "")
		}
		f.PC = pc + 1

	case opcodes.WIDE:
		if err := ctx.wide(f, code, pc); err != nil {
			return nil, false, err
		}

	default:
		return nil, false, fmt.Errorf("%s: unimplemented opcode 0x%02X at pc %d",
			f.Method.QualifiedName(), op, pc)
	}
	return nil, false, nil
}

// wide widens the next instruction's local index to 16 bits.
func (ctx *Context) wide(f *Frame, code []byte, pc int) error {
	inner := code[pc+1]
	idx := u16at(code, pc+2)
	switch inner {
	case opcodes.ILOAD, opcodes.LLOAD, opcodes.FLOAD, opcodes.DLOAD, opcodes.ALOAD:
		f.push(f.Locals[idx])
		f.PC = pc + 4
	case opcodes.ISTORE, opcodes.LSTORE, opcodes.FSTORE, opcodes.DSTORE, opcodes.ASTORE:
		f.Locals[idx] = f.pop()
		f.PC = pc + 4
	case opcodes.IINC:
		delta := int32(int16(uint16(code[pc+4])<<8 | uint16(code[pc+5])))
		f.Locals[idx] = object.Int(f.Locals[idx].AsInt() + delta)
		f.PC = pc + 6
	case opcodes.RET:
		f.PC = int(f.Locals[idx].AsInt())
	default:
		return fmt.Errorf("wide prefix on unsupported opcode 0x%02X", inner)
	}
	return nil
}

// popGroup pops one category-2 value or two category-1 values, returned in
// original push order.
func (f *Frame) popGroup() []object.Value {
	if f.peek().Category() == 2 {
		return []object.Value{f.pop()}
	}
	v1 := f.pop()
	v2 := f.pop()
	return []object.Value{v2, v1}
}

func (f *Frame) pushGroup(g []object.Value) {
	for _, v := range g {
		f.push(v)
	}
}

func intCondition(op byte, v1, v2 int32) bool {
	switch op {
	case opcodes.IFEQ, opcodes.IF_ICMPEQ:
		return v1 == v2
	case opcodes.IFNE, opcodes.IF_ICMPNE:
		return v1 != v2
	case opcodes.IFLT, opcodes.IF_ICMPLT:
		return v1 < v2
	case opcodes.IFGE, opcodes.IF_ICMPGE:
		return v1 >= v2
	case opcodes.IFGT, opcodes.IF_ICMPGT:
		return v1 > v2
	case opcodes.IFLE, opcodes.IF_ICMPLE:
		return v1 <= v2
	default:
		return false
	}
}
