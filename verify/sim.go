package verify

import (
	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// simResult is what simulating one instruction produces: whether control
// falls through to the next instruction, and the explicit branch targets
// (if any) it may also transfer control to.
type simResult struct {
	Falls   bool
	Targets []int
}

// simulate mutates s in place to the state after executing ins, and
// reports how control may continue. className/methodName are only used to
// build Error values.
func simulate(className, methodName string, cp *classfile.ConstantPool, ctx TypeContext, ins instruction, s *state) (simResult, error) {
	pc := ins.PC
	fail := func(format string, args ...interface{}) (simResult, error) {
		return simResult{}, verifyErr(className, methodName, pc, format, args...)
	}
	pop := func() (VType, error) {
		v, ok := s.pop()
		if !ok {
			return VType{}, verifyErr(className, methodName, pc, "operand stack underflow")
		}
		return v, nil
	}
	popKind := func(k Kind) error {
		v, err := pop()
		if err != nil {
			return err
		}
		if v.Kind != k {
			return verifyErr(className, methodName, pc, "expected %s on stack, found %s", k, v.Kind)
		}
		return nil
	}
	popRef := func() (VType, error) {
		v, err := pop()
		if err != nil {
			return VType{}, err
		}
		if v.Kind != Reference && v.Kind != Null {
			return VType{}, verifyErr(className, methodName, pc, "expected reference on stack, found %s", v.Kind)
		}
		return v, nil
	}

	fall := simResult{Falls: true}

	switch ins.Op {
	case opcodes.NOP, opcodes.BREAKPOINT, opcodes.IMPDEP1, opcodes.IMPDEP2:
		return fall, nil

	case opcodes.ACONST_NULL:
		s.push(VNull)
		return fall, nil

	case opcodes.ICONST_M1, opcodes.ICONST_0, opcodes.ICONST_1, opcodes.ICONST_2,
		opcodes.ICONST_3, opcodes.ICONST_4, opcodes.ICONST_5, opcodes.BIPUSH, opcodes.SIPUSH:
		s.push(VInt)
		return fall, nil

	case opcodes.LCONST_0, opcodes.LCONST_1:
		s.push(VLong)
		return fall, nil
	case opcodes.FCONST_0, opcodes.FCONST_1, opcodes.FCONST_2:
		s.push(VFloat)
		return fall, nil
	case opcodes.DCONST_0, opcodes.DCONST_1:
		s.push(VDouble)
		return fall, nil

	case opcodes.LDC, opcodes.LDC_W, opcodes.LDC2_W:
		var idx int
		if ins.Op == opcodes.LDC {
			idx = int(ins.Operand[0])
		} else {
			idx = u2(ins.Operand, 0)
		}
		entry, err := cp.At(idx)
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "ldc: %v", err)
		}
		switch entry.(type) {
		case classfile.IntegerInfo:
			s.push(VInt)
		case classfile.FloatInfo:
			s.push(VFloat)
		case classfile.LongInfo:
			s.push(VLong)
		case classfile.DoubleInfo:
			s.push(VDouble)
		case classfile.StringInfo:
			s.push(VRef("java/lang/String"))
		case classfile.ClassInfo:
			s.push(VRef("java/lang/Class"))
		case classfile.MethodHandleInfo:
			s.push(VRef("java/lang/invoke/MethodHandle"))
		case classfile.MethodTypeInfo:
			s.push(VRef("java/lang/invoke/MethodType"))
		case classfile.DynamicInfo:
			s.push(VTop) // Dynamic constants are resolved lazily; type is unknown here
		default:
			return simResult{}, verifyErr(className, methodName, pc, "ldc: unloadable constant kind")
		}
		return fall, nil

	case opcodes.ILOAD, opcodes.ILOAD_0, opcodes.ILOAD_1, opcodes.ILOAD_2, opcodes.ILOAD_3:
		return loadLocal(s, className, methodName, pc, localIndex(ins, opcodes.ILOAD_0, opcodes.ILOAD), Int)
	case opcodes.LLOAD, opcodes.LLOAD_0, opcodes.LLOAD_1, opcodes.LLOAD_2, opcodes.LLOAD_3:
		return loadLocal(s, className, methodName, pc, localIndex(ins, opcodes.LLOAD_0, opcodes.LLOAD), Long)
	case opcodes.FLOAD, opcodes.FLOAD_0, opcodes.FLOAD_1, opcodes.FLOAD_2, opcodes.FLOAD_3:
		return loadLocal(s, className, methodName, pc, localIndex(ins, opcodes.FLOAD_0, opcodes.FLOAD), Float)
	case opcodes.DLOAD, opcodes.DLOAD_0, opcodes.DLOAD_1, opcodes.DLOAD_2, opcodes.DLOAD_3:
		return loadLocal(s, className, methodName, pc, localIndex(ins, opcodes.DLOAD_0, opcodes.DLOAD), Double)
	case opcodes.ALOAD, opcodes.ALOAD_0, opcodes.ALOAD_1, opcodes.ALOAD_2, opcodes.ALOAD_3:
		idx := localIndex(ins, opcodes.ALOAD_0, opcodes.ALOAD)
		v, ok := s.getLocal(idx)
		if !ok {
			return simResult{}, verifyErr(className, methodName, pc, "local variable index %d out of range", idx)
		}
		if v.Kind != Reference && v.Kind != Null && v.Kind != UninitializedThis && v.Kind != Uninitialized {
			return simResult{}, verifyErr(className, methodName, pc, "aload: local %d is not a reference (%s)", idx, v.Kind)
		}
		s.push(v)
		return fall, nil

	case opcodes.ISTORE, opcodes.ISTORE_0, opcodes.ISTORE_1, opcodes.ISTORE_2, opcodes.ISTORE_3:
		return storeLocal(s, className, methodName, pc, pop, localIndex(ins, opcodes.ISTORE_0, opcodes.ISTORE), Int)
	case opcodes.LSTORE, opcodes.LSTORE_0, opcodes.LSTORE_1, opcodes.LSTORE_2, opcodes.LSTORE_3:
		return storeLocal(s, className, methodName, pc, pop, localIndex(ins, opcodes.LSTORE_0, opcodes.LSTORE), Long)
	case opcodes.FSTORE, opcodes.FSTORE_0, opcodes.FSTORE_1, opcodes.FSTORE_2, opcodes.FSTORE_3:
		return storeLocal(s, className, methodName, pc, pop, localIndex(ins, opcodes.FSTORE_0, opcodes.FSTORE), Float)
	case opcodes.DSTORE, opcodes.DSTORE_0, opcodes.DSTORE_1, opcodes.DSTORE_2, opcodes.DSTORE_3:
		return storeLocal(s, className, methodName, pc, pop, localIndex(ins, opcodes.DSTORE_0, opcodes.DSTORE), Double)
	case opcodes.ASTORE, opcodes.ASTORE_0, opcodes.ASTORE_1, opcodes.ASTORE_2, opcodes.ASTORE_3:
		idx := localIndex(ins, opcodes.ASTORE_0, opcodes.ASTORE)
		v, err := popRef()
		if err != nil {
			// also permitted: storing a returnAddress (jsr/ret), treated as Top here
			if v2, ok := s.pop(); ok && v2.Kind == Top {
				v = v2
			} else {
				return simResult{}, err
			}
		}
		if !s.setLocal(idx, v) {
			return simResult{}, verifyErr(className, methodName, pc, "local variable index %d out of range", idx)
		}
		return fall, nil

	case opcodes.IALOAD, opcodes.BALOAD, opcodes.CALOAD, opcodes.SALOAD:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil
	case opcodes.LALOAD:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VLong)
		return fall, nil
	case opcodes.FALOAD:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VFloat)
		return fall, nil
	case opcodes.DALOAD:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VDouble)
		return fall, nil
	case opcodes.AALOAD:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		arr, err := popRef()
		if err != nil {
			return simResult{}, err
		}
		if arr.Kind == Null {
			s.push(VRef("java/lang/Object"))
		} else {
			s.push(VRef(arrayComponent(arr.ClassName)))
		}
		return fall, nil

	case opcodes.IASTORE, opcodes.BASTORE, opcodes.CASTORE, opcodes.SASTORE:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil
	case opcodes.LASTORE:
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil
	case opcodes.FASTORE:
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil
	case opcodes.DASTORE:
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil
	case opcodes.AASTORE:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil

	case opcodes.POP:
		v, err := pop()
		if err != nil {
			return simResult{}, err
		}
		if v.Category() != 1 {
			return simResult{}, verifyErr(className, methodName, pc, "pop: category-2 value requires pop2")
		}
		return fall, nil
	case opcodes.POP2:
		v, err := pop()
		if err != nil {
			return simResult{}, err
		}
		if v.Category() == 1 {
			if _, err := pop(); err != nil {
				return simResult{}, err
			}
		}
		return fall, nil
	case opcodes.DUP:
		v, err := pop()
		if err != nil {
			return simResult{}, err
		}
		if v.Category() != 1 {
			return simResult{}, verifyErr(className, methodName, pc, "dup: category-2 value requires dup2")
		}
		s.push(v)
		s.push(v)
		return fall, nil
	case opcodes.DUP_X1:
		v1, e1 := pop()
		v2, e2 := pop()
		if e1 != nil || e2 != nil {
			return simResult{}, firstErr(e1, e2)
		}
		s.push(v1)
		s.push(v2)
		s.push(v1)
		return fall, nil
	case opcodes.DUP_X2:
		v1, e1 := pop()
		v2, e2 := pop()
		v3, e3 := pop()
		if e1 != nil || e2 != nil || e3 != nil {
			return simResult{}, firstErr(e1, e2, e3)
		}
		s.push(v1)
		s.push(v3)
		s.push(v2)
		s.push(v1)
		return fall, nil
	case opcodes.DUP2:
		v1, e1 := pop()
		v2, e2 := pop()
		if e1 != nil || e2 != nil {
			return simResult{}, firstErr(e1, e2)
		}
		s.push(v2)
		s.push(v1)
		s.push(v2)
		s.push(v1)
		return fall, nil
	case opcodes.DUP2_X1:
		v1, e1 := pop()
		v2, e2 := pop()
		v3, e3 := pop()
		if e1 != nil || e2 != nil || e3 != nil {
			return simResult{}, firstErr(e1, e2, e3)
		}
		s.push(v2)
		s.push(v1)
		s.push(v3)
		s.push(v2)
		s.push(v1)
		return fall, nil
	case opcodes.DUP2_X2:
		v1, e1 := pop()
		v2, e2 := pop()
		v3, e3 := pop()
		v4, e4 := pop()
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return simResult{}, firstErr(e1, e2, e3, e4)
		}
		s.push(v2)
		s.push(v1)
		s.push(v4)
		s.push(v3)
		s.push(v2)
		s.push(v1)
		return fall, nil
	case opcodes.SWAP:
		v1, e1 := pop()
		v2, e2 := pop()
		if e1 != nil || e2 != nil {
			return simResult{}, firstErr(e1, e2)
		}
		if v1.Category() != 1 || v2.Category() != 1 {
			return simResult{}, verifyErr(className, methodName, pc, "swap requires two category-1 values")
		}
		s.push(v1)
		s.push(v2)
		return fall, nil

	case opcodes.IADD, opcodes.ISUB, opcodes.IMUL, opcodes.IDIV, opcodes.IREM,
		opcodes.ISHL, opcodes.ISHR, opcodes.IUSHR, opcodes.IAND, opcodes.IOR, opcodes.IXOR:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil
	case opcodes.LADD, opcodes.LSUB, opcodes.LMUL, opcodes.LDIV, opcodes.LREM, opcodes.LAND, opcodes.LOR, opcodes.LXOR:
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		s.push(VLong)
		return fall, nil
	case opcodes.LSHL, opcodes.LSHR, opcodes.LUSHR:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		s.push(VLong)
		return fall, nil
	case opcodes.FADD, opcodes.FSUB, opcodes.FMUL, opcodes.FDIV, opcodes.FREM:
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		s.push(VFloat)
		return fall, nil
	case opcodes.DADD, opcodes.DSUB, opcodes.DMUL, opcodes.DDIV, opcodes.DREM:
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		s.push(VDouble)
		return fall, nil
	case opcodes.INEG:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil
	case opcodes.LNEG:
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		s.push(VLong)
		return fall, nil
	case opcodes.FNEG:
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		s.push(VFloat)
		return fall, nil
	case opcodes.DNEG:
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		s.push(VDouble)
		return fall, nil

	case opcodes.IINC:
		idx := int(ins.Operand[0])
		v, ok := s.getLocal(idx)
		if !ok || v.Kind != Int {
			return simResult{}, verifyErr(className, methodName, pc, "iinc: local %d is not int", idx)
		}
		return fall, nil

	case opcodes.I2L:
		return convert(s, className, methodName, pc, Int, VLong)
	case opcodes.I2F:
		return convert(s, className, methodName, pc, Int, VFloat)
	case opcodes.I2D:
		return convert(s, className, methodName, pc, Int, VDouble)
	case opcodes.L2I:
		return convert(s, className, methodName, pc, Long, VInt)
	case opcodes.L2F:
		return convert(s, className, methodName, pc, Long, VFloat)
	case opcodes.L2D:
		return convert(s, className, methodName, pc, Long, VDouble)
	case opcodes.F2I:
		return convert(s, className, methodName, pc, Float, VInt)
	case opcodes.F2L:
		return convert(s, className, methodName, pc, Float, VLong)
	case opcodes.F2D:
		return convert(s, className, methodName, pc, Float, VDouble)
	case opcodes.D2I:
		return convert(s, className, methodName, pc, Double, VInt)
	case opcodes.D2L:
		return convert(s, className, methodName, pc, Double, VLong)
	case opcodes.D2F:
		return convert(s, className, methodName, pc, Double, VFloat)
	case opcodes.I2B, opcodes.I2C, opcodes.I2S:
		return convert(s, className, methodName, pc, Int, VInt)

	case opcodes.LCMP:
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		if err := popKind(Long); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil
	case opcodes.FCMPL, opcodes.FCMPG:
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		if err := popKind(Float); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil
	case opcodes.DCMPL, opcodes.DCMPG:
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		if err := popKind(Double); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil

	case opcodes.IFEQ, opcodes.IFNE, opcodes.IFLT, opcodes.IFGE, opcodes.IFGT, opcodes.IFLE:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: true, Targets: []int{pc + s2(ins.Operand, 0)}}, nil
	case opcodes.IF_ICMPEQ, opcodes.IF_ICMPNE, opcodes.IF_ICMPLT, opcodes.IF_ICMPGE, opcodes.IF_ICMPGT, opcodes.IF_ICMPLE:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: true, Targets: []int{pc + s2(ins.Operand, 0)}}, nil
	case opcodes.IF_ACMPEQ, opcodes.IF_ACMPNE:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: true, Targets: []int{pc + s2(ins.Operand, 0)}}, nil
	case opcodes.IFNULL, opcodes.IFNONNULL:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: true, Targets: []int{pc + s2(ins.Operand, 0)}}, nil

	case opcodes.GOTO:
		return simResult{Falls: false, Targets: []int{pc + s2(ins.Operand, 0)}}, nil
	case opcodes.GOTO_W:
		return simResult{Falls: false, Targets: []int{pc + s4(ins.Operand, 0)}}, nil
	case opcodes.JSR, opcodes.JSR_W, opcodes.RET:
		// legacy subroutine instructions, absent from modern class files;
		// accepted as an opaque control transfer.
		return simResult{Falls: false}, nil

	case opcodes.TABLESWITCH:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		targets, err := tableswitchTargets(ins)
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "%v", err)
		}
		return simResult{Falls: false, Targets: targets}, nil
	case opcodes.LOOKUPSWITCH:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		targets, err := lookupswitchTargets(ins)
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "%v", err)
		}
		return simResult{Falls: false, Targets: targets}, nil

	case opcodes.IRETURN:
		return ret(s, className, methodName, pc, Int)
	case opcodes.LRETURN:
		return ret(s, className, methodName, pc, Long)
	case opcodes.FRETURN:
		return ret(s, className, methodName, pc, Float)
	case opcodes.DRETURN:
		return ret(s, className, methodName, pc, Double)
	case opcodes.ARETURN:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: false}, nil
	case opcodes.RETURN:
		if methodName == "<init>" && className != "java/lang/Object" {
			for _, v := range s.locals {
				if v.Kind == UninitializedThis {
					return fail("return from <init> before the super constructor call")
				}
			}
		}
		return simResult{Falls: false}, nil

	case opcodes.GETSTATIC:
		ref, err := cp.Ref(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "getstatic: %v", err)
		}
		s.push(descriptorVType(ref.Descriptor))
		return fall, nil
	case opcodes.PUTSTATIC:
		ref, err := cp.Ref(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "putstatic: %v", err)
		}
		v, err := pop()
		if err != nil {
			return simResult{}, err
		}
		if ok, err := Assignable(ctx, v, descriptorVType(ref.Descriptor)); err != nil {
			return simResult{}, err
		} else if !ok {
			return simResult{}, verifyErr(className, methodName, pc, "putstatic: %s is not assignable to field type %s", v, ref.Descriptor)
		}
		return fall, nil
	case opcodes.GETFIELD:
		ref, err := cp.Ref(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "getfield: %v", err)
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(descriptorVType(ref.Descriptor))
		return fall, nil
	case opcodes.PUTFIELD:
		ref, err := cp.Ref(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "putfield: %v", err)
		}
		v, err := pop()
		if err != nil {
			return simResult{}, err
		}
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		if ok, err := Assignable(ctx, v, descriptorVType(ref.Descriptor)); err != nil {
			return simResult{}, err
		} else if !ok {
			return simResult{}, verifyErr(className, methodName, pc, "putfield: %s is not assignable to field type %s", v, ref.Descriptor)
		}
		return fall, nil

	case opcodes.INVOKEVIRTUAL, opcodes.INVOKESPECIAL, opcodes.INVOKESTATIC, opcodes.INVOKEINTERFACE:
		ref, err := cp.Ref(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "invoke: %v", err)
		}
		for _, p := range reverse(types.ParamDescriptors(ref.Descriptor)) {
			v, err := pop()
			if err != nil {
				return simResult{}, err
			}
			if ok, err := Assignable(ctx, v, descriptorVType(p)); err != nil {
				return simResult{}, err
			} else if !ok {
				return simResult{}, verifyErr(className, methodName, pc, "argument %s is not assignable to parameter type %s", v, p)
			}
		}
		if ins.Op != opcodes.INVOKESTATIC {
			recv, err := pop()
			if err != nil {
				return simResult{}, err
			}
			if ins.Op == opcodes.INVOKESPECIAL && ref.MemberName == "<init>" {
				if recv.Kind != Uninitialized && recv.Kind != UninitializedThis {
					return simResult{}, verifyErr(className, methodName, pc, "invokespecial <init> on an already-initialized reference")
				}
				// the receiver becomes initialized everywhere it appears; a
				// precise verifier rewrites every occurrence in stack/locals.
				initializeEverywhere(s, recv)
			} else if recv.Kind != Reference && recv.Kind != Null {
				return simResult{}, verifyErr(className, methodName, pc, "expected reference on stack, found %s", recv.Kind)
			}
		}
		ret := types.ReturnDescriptor(ref.Descriptor)
		if ret != "V" {
			s.push(descriptorVType(ret))
		}
		return fall, nil

	case opcodes.INVOKEDYNAMIC:
		// invokedynamic is recognized but not resolved to a callable
		// target: a deliberate, diagnosable rejection rather than a panic.
		return simResult{}, verifyErr(className, methodName, pc, "invokedynamic is not supported")

	case opcodes.NEW:
		if _, err := cp.ClassName(u2(ins.Operand, 0)); err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "new: %v", err)
		}
		s.push(VUninit(pc))
		return fall, nil
	case opcodes.NEWARRAY:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		s.push(VRef(primitiveArrayClassName(ins.Operand[0])))
		return fall, nil
	case opcodes.ANEWARRAY:
		if err := popKind(Int); err != nil {
			return simResult{}, err
		}
		name, err := cp.ClassName(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "anewarray: %v", err)
		}
		s.push(VRef("[L" + name + ";"))
		return fall, nil
	case opcodes.MULTIANEWARRAY:
		dims := int(ins.Operand[2])
		for i := 0; i < dims; i++ {
			if err := popKind(Int); err != nil {
				return simResult{}, err
			}
		}
		name, err := cp.ClassName(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "multianewarray: %v", err)
		}
		s.push(VRef(name))
		return fall, nil
	case opcodes.ARRAYLENGTH:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil

	case opcodes.ATHROW:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return simResult{Falls: false}, nil

	case opcodes.CHECKCAST:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		name, err := cp.ClassName(u2(ins.Operand, 0))
		if err != nil {
			return simResult{}, verifyErr(className, methodName, pc, "checkcast: %v", err)
		}
		s.push(VRef(name))
		return fall, nil
	case opcodes.INSTANCEOF:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		s.push(VInt)
		return fall, nil

	case opcodes.MONITORENTER, opcodes.MONITOREXIT:
		if _, err := popRef(); err != nil {
			return simResult{}, err
		}
		return fall, nil

	case opcodes.WIDE:
		return simulateWide(className, methodName, cp, ins, s)

	default:
		return fail("unsupported opcode 0x%02X (%s)", ins.Op, opcodes.Name(ins.Op))
	}
}

func localIndex(ins instruction, baseOp, explicitOp opcodes.Opcode) int {
	if ins.Op == explicitOp {
		return int(ins.Operand[0])
	}
	return int(ins.Op - baseOp)
}

func loadLocal(s *state, class, method string, pc, idx int, want Kind) (simResult, error) {
	v, ok := s.getLocal(idx)
	if !ok {
		return simResult{}, verifyErr(class, method, pc, "local variable index %d out of range", idx)
	}
	if v.Kind != want {
		return simResult{}, verifyErr(class, method, pc, "local %d: expected %s, found %s", idx, want, v.Kind)
	}
	s.push(v)
	return simResult{Falls: true}, nil
}

func storeLocal(s *state, class, method string, pc int, pop func() (VType, error), idx int, want Kind) (simResult, error) {
	v, err := pop()
	if err != nil {
		return simResult{}, err
	}
	if v.Kind != want {
		return simResult{}, verifyErr(class, method, pc, "store: expected %s, found %s", want, v.Kind)
	}
	if !s.setLocal(idx, v) {
		return simResult{}, verifyErr(class, method, pc, "local variable index %d out of range", idx)
	}
	return simResult{Falls: true}, nil
}

func convert(s *state, class, method string, pc int, from Kind, to VType) (simResult, error) {
	v, ok := s.pop()
	if !ok {
		return simResult{}, verifyErr(class, method, pc, "operand stack underflow")
	}
	if v.Kind != from {
		return simResult{}, verifyErr(class, method, pc, "conversion: expected %s, found %s", from, v.Kind)
	}
	s.push(to)
	return simResult{Falls: true}, nil
}

func ret(s *state, class, method string, pc int, want Kind) (simResult, error) {
	v, ok := s.pop()
	if !ok {
		return simResult{}, verifyErr(class, method, pc, "operand stack underflow")
	}
	if v.Kind != want {
		return simResult{}, verifyErr(class, method, pc, "return: expected %s, found %s", want, v.Kind)
	}
	return simResult{Falls: false}, nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func descriptorVType(d string) VType {
	switch d {
	case "B", "C", "I", "S", "Z":
		return VInt
	case "J":
		return VLong
	case "F":
		return VFloat
	case "D":
		return VDouble
	default:
		if cn := types.ClassNameFromFieldDescriptor(d); cn != "" {
			return VRef(cn)
		}
		return VRef(d) // "[..." array descriptors are kept verbatim as the class name
	}
}

func primitiveArrayClassName(atype byte) string {
	switch atype {
	case opcodes.AtypeBoolean:
		return "[Z"
	case opcodes.AtypeChar:
		return "[C"
	case opcodes.AtypeFloat:
		return "[F"
	case opcodes.AtypeDouble:
		return "[D"
	case opcodes.AtypeByte:
		return "[B"
	case opcodes.AtypeShort:
		return "[S"
	case opcodes.AtypeInt:
		return "[I"
	case opcodes.AtypeLong:
		return "[J"
	default:
		return "[Ljava/lang/Object;"
	}
}

func arrayComponent(arrayClass string) string {
	if len(arrayClass) > 1 && arrayClass[0] == '[' {
		if cn := types.ClassNameFromFieldDescriptor(arrayClass[1:]); cn != "" {
			return cn
		}
		return arrayClass[1:]
	}
	return "java/lang/Object"
}

func initializeEverywhere(s *state, uninit VType) {
	init := func(v VType) VType {
		if v.Kind == Uninitialized && uninit.Kind == Uninitialized && v.NewOffset == uninit.NewOffset {
			return VRef("<new-object>")
		}
		if v.Kind == UninitializedThis && uninit.Kind == UninitializedThis {
			return VRef("<this>")
		}
		return v
	}
	for i := range s.stack {
		s.stack[i] = init(s.stack[i])
	}
	for i := range s.locals {
		s.locals[i] = init(s.locals[i])
	}
}

func tableswitchTargets(ins instruction) ([]int, error) {
	b := ins.Operand
	p := 0
	for (ins.PC+1+p)%4 != 0 {
		p++
	}
	def := pcOf(ins, s4(b, p))
	low := s4(b, p+4)
	high := s4(b, p+8)
	n := high - low + 1
	targets := []int{def}
	for i := 0; i < n; i++ {
		targets = append(targets, pcOf(ins, s4(b, p+12+i*4)))
	}
	return targets, nil
}

func lookupswitchTargets(ins instruction) ([]int, error) {
	b := ins.Operand
	p := 0
	for (ins.PC+1+p)%4 != 0 {
		p++
	}
	def := pcOf(ins, s4(b, p))
	npairs := s4(b, p+4)
	targets := []int{def}
	for i := 0; i < npairs; i++ {
		targets = append(targets, pcOf(ins, s4(b, p+8+i*8+4)))
	}
	return targets, nil
}

func pcOf(ins instruction, offset int) int { return ins.PC + offset }

func simulateWide(class, method string, cp *classfile.ConstantPool, ins instruction, s *state) (simResult, error) {
	modified := ins.Operand[0]
	idx := u2(ins.Operand, 1)
	switch modified {
	case opcodes.ILOAD:
		return loadLocal(s, class, method, ins.PC, idx, Int)
	case opcodes.LLOAD:
		return loadLocal(s, class, method, ins.PC, idx, Long)
	case opcodes.FLOAD:
		return loadLocal(s, class, method, ins.PC, idx, Float)
	case opcodes.DLOAD:
		return loadLocal(s, class, method, ins.PC, idx, Double)
	case opcodes.ALOAD:
		v, ok := s.getLocal(idx)
		if !ok {
			return simResult{}, verifyErr(class, method, ins.PC, "local variable index %d out of range", idx)
		}
		s.push(v)
		return simResult{Falls: true}, nil
	case opcodes.ISTORE:
		return storeLocal(s, class, method, ins.PC, func() (VType, error) {
			v, ok := s.pop()
			if !ok {
				return VType{}, verifyErr(class, method, ins.PC, "operand stack underflow")
			}
			return v, nil
		}, idx, Int)
	case opcodes.ASTORE:
		v, ok := s.pop()
		if !ok {
			return simResult{}, verifyErr(class, method, ins.PC, "operand stack underflow")
		}
		if !s.setLocal(idx, v) {
			return simResult{}, verifyErr(class, method, ins.PC, "local variable index %d out of range", idx)
		}
		return simResult{Falls: true}, nil
	case opcodes.IINC:
		v, ok := s.getLocal(idx)
		if !ok || v.Kind != Int {
			return simResult{}, verifyErr(class, method, ins.PC, "wide iinc: local %d is not int", idx)
		}
		return simResult{Falls: true}, nil
	case opcodes.RET:
		return simResult{Falls: false}, nil
	default:
		return simResult{}, verifyErr(class, method, ins.PC, "wide: unsupported modified opcode 0x%02X", modified)
	}
}
