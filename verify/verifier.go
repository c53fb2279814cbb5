package verify

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// VerifyMethod type-checks one method's Code attribute against its declared
// stack-map frames (JVMS §4.10.1). className/methodName label diagnostics
// and, with descriptor, shape the initial locals: accessFlags determines
// whether local 0 is `this`, and a methodName of "<init>" makes `this`
// start uninitialized (uninitializedThis must not escape <init>).
func VerifyMethod(className, methodName, descriptor string, accessFlags uint16, code *classfile.CodeAttribute, cp *classfile.ConstantPool, ctx TypeContext) error {
	if code == nil {
		return nil // abstract/native methods carry no Code attribute to verify
	}

	instrs, err := decodeInstructions(code.Code)
	if err != nil {
		if ve, ok := err.(*Error); ok {
			ve.Class, ve.Method = className, methodName
			return ve
		}
		return err
	}
	byPC := make(map[int]int, len(instrs)) // pc -> index into instrs
	for i, ins := range instrs {
		byPC[ins.PC] = i
	}

	declared := make(map[int]state, len(code.StackMapTable))
	for _, f := range code.StackMapTable {
		st, err := frameToState(f, cp, int(code.MaxLocals))
		if err != nil {
			return verifyErr(className, methodName, f.Offset, "invalid stack map frame: %v", err)
		}
		declared[f.Offset] = st
	}

	requiresFrame := make(map[int]bool)
	for pc := range declared {
		if pc != 0 {
			requiresFrame[pc] = true
		}
	}
	for _, h := range code.ExceptionTable {
		requiresFrame[int(h.HandlerPC)] = true
	}

	initial, err := initialState(className, methodName, descriptor, accessFlags, int(code.MaxLocals))
	if err != nil {
		return err
	}
	if st, ok := declared[0]; ok {
		initial = st
	}

	type pending struct {
		pc    int
		state state
		viaEx bool
	}

	visited := make(map[int]state)
	queue := []pending{{pc: 0, state: initial}}
	for _, h := range code.ExceptionTable {
		st, ok := declared[int(h.HandlerPC)]
		if !ok {
			return verifyErr(className, methodName, int(h.HandlerPC), "exception handler has no stack map frame")
		}
		handlerSt := st.clone()
		excType := "java/lang/Throwable"
		if h.CatchType != 0 {
			name, err := cp.ClassName(int(h.CatchType))
			if err != nil {
				return verifyErr(className, methodName, int(h.HandlerPC), "exception handler: %v", err)
			}
			excType = name
		}
		handlerSt.stack = []VType{VRef(excType)}
		queue = append(queue, pending{pc: int(h.HandlerPC), state: handlerSt, viaEx: true})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		idx, ok := byPC[cur.pc]
		if !ok {
			return verifyErr(className, methodName, cur.pc, "control transfer to a non-instruction offset")
		}

		if declFrame, ok := declared[cur.pc]; ok {
			if err := checkMerge(ctx, cur.state, declFrame); err != nil {
				return verifyErr(className, methodName, cur.pc, "incompatible with declared stack map frame: %v", err)
			}
			cur.state = declFrame.clone()
		} else if requiresFrame[cur.pc] {
			return verifyErr(className, methodName, cur.pc, "missing required stack map frame")
		}

		if prev, seen := visited[cur.pc]; seen {
			if _, ok := declared[cur.pc]; !ok {
				if err := checkMerge(ctx, cur.state, prev); err != nil {
					return verifyErr(className, methodName, cur.pc, "incompatible with previously computed state: %v", err)
				}
			}
			continue
		}
		visited[cur.pc] = cur.state.clone()

		if int(code.MaxStack) < cur.state.stackDepth() {
			return verifyErr(className, methodName, cur.pc, "operand stack exceeds max_stack")
		}

		work := cur.state.clone()
		ins := instrs[idx]
		res, err := simulate(className, methodName, cp, ctx, ins, &work)
		if err != nil {
			return err
		}
		if int(code.MaxStack) < work.stackDepth() {
			return verifyErr(className, methodName, ins.PC, "operand stack exceeds max_stack")
		}

		if res.Falls {
			queue = append(queue, pending{pc: ins.NextPC, state: work})
		}
		for _, t := range res.Targets {
			queue = append(queue, pending{pc: t, state: work.clone()})
		}
	}

	return nil
}

// checkMerge verifies that every slot of got is assignable into the
// corresponding slot of want (the merge rule applied at declared frames and
// at re-converging fall-through edges).
func checkMerge(ctx TypeContext, got, want state) error {
	if len(got.locals) != len(want.locals) {
		return fmt.Errorf("local variable count mismatch (%d vs %d)", len(got.locals), len(want.locals))
	}
	for i := range want.locals {
		ok, err := Assignable(ctx, got.locals[i], want.locals[i])
		if err != nil {
			return err
		}
		if !ok && want.locals[i].Kind != Top {
			return fmt.Errorf("local %d: %s is not assignable to %s", i, got.locals[i], want.locals[i])
		}
	}
	if len(got.stack) != len(want.stack) {
		return fmt.Errorf("operand stack depth mismatch (%d vs %d)", len(got.stack), len(want.stack))
	}
	for i := range want.stack {
		ok, err := Assignable(ctx, got.stack[i], want.stack[i])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("stack[%d]: %s is not assignable to %s", i, got.stack[i], want.stack[i])
		}
	}
	return nil
}

func initialState(className, methodName, descriptor string, accessFlags uint16, maxLocals int) (state, error) {
	locals := make([]VType, maxLocals)
	for i := range locals {
		locals[i] = VTop
	}
	next := 0
	isStatic := types.HasFlag(int(accessFlags), types.AccStatic)
	if !isStatic {
		if next >= maxLocals {
			return state{}, verifyErr(className, methodName, 0, "not enough locals for `this`")
		}
		if methodName == "<init>" {
			locals[next] = VUninitializedThis
		} else {
			locals[next] = VRef(className)
		}
		next++
	}
	for _, p := range types.ParamDescriptors(descriptor) {
		v := descriptorVType(p)
		if next >= maxLocals {
			return state{}, verifyErr(className, methodName, 0, "not enough locals for parameters")
		}
		locals[next] = v
		next++
		if v.Category() == 2 {
			if next >= maxLocals {
				return state{}, verifyErr(className, methodName, 0, "not enough locals for parameters")
			}
			next++
		}
	}
	return state{locals: locals}, nil
}

func frameToState(f classfile.StackMapFrame, cp *classfile.ConstantPool, maxLocals int) (state, error) {
	locals := make([]VType, maxLocals)
	for i := range locals {
		locals[i] = VTop
	}
	i := 0
	for _, vti := range f.Locals {
		v, err := toVType(vti, cp)
		if err != nil {
			return state{}, err
		}
		if i >= maxLocals {
			return state{}, fmt.Errorf("locals overflow max_locals")
		}
		locals[i] = v
		i++
		if v.Category() == 2 {
			i++ // second slot stays Top
		}
	}
	stack := make([]VType, 0, len(f.Stack))
	for _, vti := range f.Stack {
		v, err := toVType(vti, cp)
		if err != nil {
			return state{}, err
		}
		stack = append(stack, v)
	}
	return state{locals: locals, stack: stack}, nil
}

func toVType(vti classfile.VerificationTypeInfo, cp *classfile.ConstantPool) (VType, error) {
	switch vti.Tag {
	case classfile.ItemTop:
		return VTop, nil
	case classfile.ItemInteger:
		return VInt, nil
	case classfile.ItemFloat:
		return VFloat, nil
	case classfile.ItemLong:
		return VLong, nil
	case classfile.ItemDouble:
		return VDouble, nil
	case classfile.ItemNull:
		return VNull, nil
	case classfile.ItemUninitializedThis:
		return VUninitializedThis, nil
	case classfile.ItemObject:
		name, err := cp.ClassName(int(vti.CPoolIndex))
		if err != nil {
			return VType{}, err
		}
		return VRef(name), nil
	case classfile.ItemUninitialized:
		return VUninit(int(vti.Offset)), nil
	default:
		return VType{}, fmt.Errorf("unknown verification type tag %d", vti.Tag)
	}
}
