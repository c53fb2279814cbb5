package interp

import (
	"math"

	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
)

// arith executes the arithmetic/bitwise/conversion/comparison families.
// Integer overflow wraps; integer division and remainder by zero raise
// ArithmeticException; floating point follows IEEE-754 (NaN, ±Inf) with
// no exceptions (JVMS §6.5).
func (ctx *Context) arith(cs *CallStack, f *Frame, op byte) error {
	divByZero := func() error {
		return ctx.throwJava(cs, "java/lang/ArithmeticException", "/ by zero")
	}

	switch op {

	// int
	case opcodes.IADD:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 + v2))
	case opcodes.ISUB:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 - v2))
	case opcodes.IMUL:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 * v2))
	case opcodes.IDIV:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		if v2 == 0 {
			return divByZero()
		}
		if v1 == math.MinInt32 && v2 == -1 {
			f.push(object.Int(math.MinInt32)) // overflow wraps, JVMS idiv
		} else {
			f.push(object.Int(v1 / v2))
		}
	case opcodes.IREM:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		if v2 == 0 {
			return divByZero()
		}
		if v1 == math.MinInt32 && v2 == -1 {
			f.push(object.Int(0))
		} else {
			f.push(object.Int(v1 % v2))
		}
	case opcodes.INEG:
		f.push(object.Int(-f.pop().AsInt()))
	case opcodes.IAND:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 & v2))
	case opcodes.IOR:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 | v2))
	case opcodes.IXOR:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 ^ v2))
	case opcodes.ISHL:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 << (uint32(v2) & 0x1F)))
	case opcodes.ISHR:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(v1 >> (uint32(v2) & 0x1F)))
	case opcodes.IUSHR:
		v2, v1 := f.pop().AsInt(), f.pop().AsInt()
		f.push(object.Int(int32(uint32(v1) >> (uint32(v2) & 0x1F))))

	// long
	case opcodes.LADD:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 + v2))
	case opcodes.LSUB:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 - v2))
	case opcodes.LMUL:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 * v2))
	case opcodes.LDIV:
		v2, v1 := f.pop().I, f.pop().I
		if v2 == 0 {
			return divByZero()
		}
		if v1 == math.MinInt64 && v2 == -1 {
			f.push(object.Long(math.MinInt64))
		} else {
			f.push(object.Long(v1 / v2))
		}
	case opcodes.LREM:
		v2, v1 := f.pop().I, f.pop().I
		if v2 == 0 {
			return divByZero()
		}
		if v1 == math.MinInt64 && v2 == -1 {
			f.push(object.Long(0))
		} else {
			f.push(object.Long(v1 % v2))
		}
	case opcodes.LNEG:
		f.push(object.Long(-f.pop().I))
	case opcodes.LAND:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 & v2))
	case opcodes.LOR:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 | v2))
	case opcodes.LXOR:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Long(v1 ^ v2))
	case opcodes.LSHL:
		v2 := f.pop().AsInt() // shift amount is an int
		v1 := f.pop().I
		f.push(object.Long(v1 << (uint32(v2) & 0x3F)))
	case opcodes.LSHR:
		v2 := f.pop().AsInt()
		v1 := f.pop().I
		f.push(object.Long(v1 >> (uint32(v2) & 0x3F)))
	case opcodes.LUSHR:
		v2 := f.pop().AsInt()
		v1 := f.pop().I
		f.push(object.Long(int64(uint64(v1) >> (uint32(v2) & 0x3F))))

	// float
	case opcodes.FADD:
		v2, v1 := f.pop().AsFloat(), f.pop().AsFloat()
		f.push(object.Float(v1 + v2))
	case opcodes.FSUB:
		v2, v1 := f.pop().AsFloat(), f.pop().AsFloat()
		f.push(object.Float(v1 - v2))
	case opcodes.FMUL:
		v2, v1 := f.pop().AsFloat(), f.pop().AsFloat()
		f.push(object.Float(v1 * v2))
	case opcodes.FDIV:
		v2, v1 := f.pop().AsFloat(), f.pop().AsFloat()
		f.push(object.Float(v1 / v2)) // ±Inf / NaN per IEEE-754
	case opcodes.FREM:
		v2, v1 := f.pop().AsFloat(), f.pop().AsFloat()
		f.push(object.Float(float32(math.Mod(float64(v1), float64(v2)))))
	case opcodes.FNEG:
		f.push(object.Float(-f.pop().AsFloat()))

	// double
	case opcodes.DADD:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Double(v1 + v2))
	case opcodes.DSUB:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Double(v1 - v2))
	case opcodes.DMUL:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Double(v1 * v2))
	case opcodes.DDIV:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Double(v1 / v2))
	case opcodes.DREM:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Double(math.Mod(v1, v2)))
	case opcodes.DNEG:
		f.push(object.Double(-f.pop().F))

	// conversions
	case opcodes.I2L:
		f.push(object.Long(int64(f.pop().AsInt())))
	case opcodes.I2F:
		f.push(object.Float(float32(f.pop().AsInt())))
	case opcodes.I2D:
		f.push(object.Double(float64(f.pop().AsInt())))
	case opcodes.L2I:
		f.push(object.Int(int32(f.pop().I)))
	case opcodes.L2F:
		f.push(object.Float(float32(f.pop().I)))
	case opcodes.L2D:
		f.push(object.Double(float64(f.pop().I)))
	case opcodes.F2I:
		f.push(object.Int(f2i(float64(f.pop().AsFloat()))))
	case opcodes.F2L:
		f.push(object.Long(f2l(float64(f.pop().AsFloat()))))
	case opcodes.F2D:
		f.push(object.Double(float64(f.pop().AsFloat())))
	case opcodes.D2I:
		f.push(object.Int(f2i(f.pop().F)))
	case opcodes.D2L:
		f.push(object.Long(f2l(f.pop().F)))
	case opcodes.D2F:
		f.push(object.Float(float32(f.pop().F)))
	case opcodes.I2B:
		f.push(object.Int(int32(int8(f.pop().AsInt()))))
	case opcodes.I2C:
		f.push(object.Int(int32(uint16(f.pop().AsInt()))))
	case opcodes.I2S:
		f.push(object.Int(int32(int16(f.pop().AsInt()))))

	// comparisons
	case opcodes.LCMP:
		v2, v1 := f.pop().I, f.pop().I
		f.push(object.Int(cmp64(v1, v2)))
	case opcodes.FCMPL, opcodes.FCMPG:
		v2, v1 := float64(f.pop().AsFloat()), float64(f.pop().AsFloat())
		f.push(object.Int(fcmp(v1, v2, op == opcodes.FCMPG)))
	case opcodes.DCMPL, opcodes.DCMPG:
		v2, v1 := f.pop().F, f.pop().F
		f.push(object.Int(fcmp(v1, v2, op == opcodes.DCMPG)))
	}
	return nil
}

// f2i narrows with JVMS saturation: NaN to 0, out-of-range clamps.
func f2i(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

func f2l(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}

func cmp64(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// fcmp compares with the NaN bias the g/l variants differ on.
func fcmp(a, b float64, nanIsGreater bool) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		if nanIsGreater {
			return 1
		}
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
