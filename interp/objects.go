package interp

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/opcodes"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// ldc pushes a constant-pool literal: int, float, long, double, an
// interned String, or a Class mirror.
func (ctx *Context) ldc(cs *CallStack, f *Frame, idx int) error {
	e, err := f.Class.File.ConstantPool.At(idx)
	if err != nil {
		return err
	}
	switch c := e.(type) {
	case classfile.IntegerInfo:
		f.push(object.Int(c.Value))
	case classfile.FloatInfo:
		f.push(object.Float(c.Value))
	case classfile.LongInfo:
		f.push(object.Long(c.Value))
	case classfile.DoubleInfo:
		f.push(object.Double(c.Value))
	case classfile.StringInfo:
		s, err := f.Class.File.ConstantPool.Utf8(int(c.StringIndex))
		if err != nil {
			return err
		}
		interned, err := ctx.Env.Intern(s)
		if err != nil {
			return err
		}
		f.push(object.Ref(interned))
	case classfile.ClassInfo:
		name, err := f.Class.File.ConstantPool.Utf8(int(c.NameIndex))
		if err != nil {
			return err
		}
		mirror, err := ctx.classMirror(cs, name)
		if err != nil {
			return err
		}
		f.push(object.Ref(mirror))
	default:
		return fmt.Errorf("ldc of unsupported constant tag %d", e.Tag())
	}
	return nil
}

// classMirror returns the java/lang/Class instance for a type name,
// building it once per class.
func (ctx *Context) classMirror(cs *CallStack, name string) (*object.Object, error) {
	c, err := ctx.Loader.Load(name)
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	classClass, err := ctx.Loader.Load("java/lang/Class")
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	return c.Mirror(func(c *classloader.Class) *object.Object {
		m := object.NewInstance(classClass, classClass.InstanceFieldDescs())
		if s, serr := ctx.Env.Intern(dotted(c.Name)); serr == nil {
			m.Fields["name"] = object.Ref(s)
		}
		if ctx.GC != nil {
			ctx.GC.Allocate(m, instanceSize(m))
		}
		return m
	}), nil
}

// ----- fields -----

// resolveField resolves a field reference: owner class, declaring class,
// member and module access.
func (ctx *Context) resolveField(cs *CallStack, f *Frame, idx int) (*classloader.Field, error) {
	ref, err := f.Class.File.ConstantPool.Ref(idx)
	if err != nil {
		return nil, err
	}
	owner, err := ctx.Loader.Load(ref.ClassName)
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	if err := f.Class.Loader.CheckModuleAccess(f.Class, owner); err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	field, err := owner.LookupField(ref.MemberName)
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	if !classloader.MemberAccessible(f.Class, field.Class, field.AccessFlags) {
		return nil, ctx.throwJava(cs, "java/lang/IllegalAccessError",
			fmt.Sprintf("%s.%s not accessible from %s", field.Class.Name, field.Name, f.Class.Name))
	}
	return field, nil
}

func (ctx *Context) getStatic(cs *CallStack, f *Frame, idx int) error {
	field, err := ctx.resolveField(cs, f, idx)
	if err != nil {
		return err
	}
	if !field.IsStatic() {
		return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError", field.Name)
	}
	// First active use initializes the owner (JVMS §5.5).
	if err := field.Class.EnsureInitialized(cs.ThreadID, ctx.clinitRunner(cs)); err != nil {
		return ctx.asThrowable(cs, err)
	}
	v, ok := field.Class.GetStatic(field.Name)
	if !ok {
		return ctx.throwJava(cs, "java/lang/NoSuchFieldError", field.Name)
	}
	f.push(v)
	return nil
}

func (ctx *Context) putStatic(cs *CallStack, f *Frame, idx int) error {
	field, err := ctx.resolveField(cs, f, idx)
	if err != nil {
		return err
	}
	if !field.IsStatic() {
		return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError", field.Name)
	}
	if err := field.Class.EnsureInitialized(cs.ThreadID, ctx.clinitRunner(cs)); err != nil {
		return ctx.asThrowable(cs, err)
	}
	field.Class.SetStatic(field.Name, narrowForField(field.Descriptor, f.pop()))
	return nil
}

func (ctx *Context) getField(cs *CallStack, f *Frame, idx int) error {
	field, err := ctx.resolveField(cs, f, idx)
	if err != nil {
		return err
	}
	recv := f.pop()
	if recv.IsNull() {
		return ctx.throwJava(cs, "java/lang/NullPointerException",
			fmt.Sprintf("cannot read field %q", field.Name))
	}
	v, ok := recv.Ref.Fields[field.Name]
	if !ok {
		v = object.DefaultValue(field.Descriptor)
	}
	f.push(v)
	return nil
}

func (ctx *Context) putField(cs *CallStack, f *Frame, idx int) error {
	field, err := ctx.resolveField(cs, f, idx)
	if err != nil {
		return err
	}
	v := f.pop()
	recv := f.pop()
	if recv.IsNull() {
		return ctx.throwJava(cs, "java/lang/NullPointerException",
			fmt.Sprintf("cannot assign field %q", field.Name))
	}
	if recv.Ref.Fields == nil {
		recv.Ref.Fields = make(map[string]object.Value)
	}
	recv.Ref.Fields[field.Name] = narrowForField(field.Descriptor, v)
	return nil
}

// narrowForField stores sub-int fields narrowed so a later load observes
// byte/short sign extension and char/boolean zero extension.
func narrowForField(desc string, v object.Value) object.Value {
	switch desc {
	case "Z", "B", "C", "S":
		return object.Int(int32(object.NormalizePrim(desc[0], v.I)))
	default:
		return v
	}
}

// ----- allocation -----

func (ctx *Context) newInstance(cs *CallStack, f *Frame, idx int) error {
	name, err := f.Class.File.ConstantPool.ClassName(idx)
	if err != nil {
		return err
	}
	c, err := ctx.Loader.Load(name)
	if err != nil {
		return ctx.asThrowable(cs, err)
	}
	if c.IsInterface() || types.HasFlag(int(c.File.AccessFlags), types.AccAbstract) {
		return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError",
			"cannot instantiate "+dotted(name))
	}
	if err := c.EnsureInitialized(cs.ThreadID, ctx.clinitRunner(cs)); err != nil {
		return ctx.asThrowable(cs, err)
	}
	obj := object.NewInstance(c, c.InstanceFieldDescs())
	ctx.allocate(obj, instanceSize(obj))
	f.push(object.Ref(obj))
	return nil
}

func (ctx *Context) allocate(o *object.Object, size int64) {
	if ctx.GC != nil {
		ctx.GC.Allocate(o, size)
	}
}

func (ctx *Context) newPrimArray(cs *CallStack, f *Frame, atype int) error {
	count := int(f.pop().AsInt())
	if count < 0 {
		return ctx.throwJava(cs, "java/lang/NegativeArraySizeException", fmt.Sprintf("%d", count))
	}
	elem, ok := object.ElemForAtype(atype)
	if !ok {
		return fmt.Errorf("newarray: bad atype %d", atype)
	}
	arr := object.NewPrimArray(elem, count)
	if c, err := ctx.Loader.Load("[" + string(elem)); err == nil {
		arr.Klass = c
	}
	ctx.allocate(arr, int64(count*8+24))
	f.push(object.Ref(arr))
	return nil
}

func (ctx *Context) newRefArray(cs *CallStack, f *Frame, idx int) error {
	componentName, err := f.Class.File.ConstantPool.ClassName(idx)
	if err != nil {
		return err
	}
	count := int(f.pop().AsInt())
	if count < 0 {
		return ctx.throwJava(cs, "java/lang/NegativeArraySizeException", fmt.Sprintf("%d", count))
	}
	component, err := ctx.Loader.Load(componentName)
	if err != nil {
		return ctx.asThrowable(cs, err)
	}
	arrayName := "[" + componentDescriptor(componentName)
	arr := object.NewRefArray(componentName, component, count)
	if c, err := ctx.Loader.Load(arrayName); err == nil {
		arr.Klass = c
	}
	ctx.allocate(arr, int64(count*8+24))
	f.push(object.Ref(arr))
	return nil
}

// componentDescriptor renders a CP class name as an array component
// descriptor: plain names gain L...;, array names pass through.
func componentDescriptor(name string) string {
	if name == "" || name[0] == '[' {
		return name
	}
	return "L" + name + ";"
}

func (ctx *Context) newMultiArray(cs *CallStack, f *Frame, idx, dims int) error {
	arrayName, err := f.Class.File.ConstantPool.ClassName(idx)
	if err != nil {
		return err
	}
	counts := make([]int, dims)
	for i := dims - 1; i >= 0; i-- {
		counts[i] = int(f.pop().AsInt())
		if counts[i] < 0 {
			return ctx.throwJava(cs, "java/lang/NegativeArraySizeException", fmt.Sprintf("%d", counts[i]))
		}
	}
	arr, err := ctx.buildMultiArray(cs, arrayName, counts)
	if err != nil {
		return err
	}
	f.push(object.Ref(arr))
	return nil
}

func (ctx *Context) buildMultiArray(cs *CallStack, arrayName string, counts []int) (*object.Object, error) {
	count := counts[0]
	component := arrayName[1:]

	var arr *object.Object
	if len(counts) == 1 && len(component) == 1 {
		arr = object.NewPrimArray(component[0], count)
	} else {
		componentName := component
		if cn := types.ClassNameFromFieldDescriptor(component); cn != "" {
			componentName = cn
		}
		arr = object.NewRefArray(componentName, nil, count)
		if len(counts) > 1 {
			for i := 0; i < count; i++ {
				sub, err := ctx.buildMultiArray(cs, component, counts[1:])
				if err != nil {
					return nil, err
				}
				arr.Refs.Data[i] = sub
			}
		}
	}
	if c, err := ctx.Loader.Load(arrayName); err == nil {
		arr.Klass = c
	}
	ctx.allocate(arr, int64(count*8+24))
	return arr, nil
}

// ----- array element access -----

func (ctx *Context) arrayBounds(cs *CallStack, arr *object.Object, index int) error {
	if n := arr.ArrayLen(); index < 0 || index >= n {
		return ctx.throwJava(cs, "java/lang/ArrayIndexOutOfBoundsException",
			fmt.Sprintf("Index %d out of bounds for length %d", index, n))
	}
	return nil
}

func (ctx *Context) arrayLoad(cs *CallStack, f *Frame, op byte) error {
	index := int(f.pop().AsInt())
	av := f.pop()
	if av.IsNull() {
		return ctx.throwJava(cs, "java/lang/NullPointerException", "")
	}
	arr := av.Ref
	if err := ctx.arrayBounds(cs, arr, index); err != nil {
		return err
	}
	if op == opcodes.AALOAD {
		f.push(object.Ref(arr.Refs.Data[index]))
		return nil
	}
	p := arr.Prim
	switch op {
	case opcodes.LALOAD:
		f.push(object.Long(p.Ints[index]))
	case opcodes.FALOAD:
		f.push(object.Float(float32(p.Floats[index])))
	case opcodes.DALOAD:
		f.push(object.Double(p.Floats[index]))
	default: // IALOAD, BALOAD, CALOAD, SALOAD: storage is pre-normalized
		f.push(object.Int(int32(p.Ints[index])))
	}
	return nil
}

func (ctx *Context) arrayStore(cs *CallStack, f *Frame, op byte) error {
	v := f.pop()
	index := int(f.pop().AsInt())
	av := f.pop()
	if av.IsNull() {
		return ctx.throwJava(cs, "java/lang/NullPointerException", "")
	}
	arr := av.Ref
	if err := ctx.arrayBounds(cs, arr, index); err != nil {
		return err
	}
	if op == opcodes.AASTORE {
		// Covariant store check: the stored reference must be assignable
		// to the array's component.
		if !v.IsNull() && arr.Refs != nil {
			ok, err := ctx.Loader.IsSubtypeOf(v.Ref.ClassName(), arr.Refs.ComponentName)
			if err != nil {
				return ctx.asThrowable(cs, err)
			}
			if !ok {
				return ctx.throwJava(cs, "java/lang/ArrayStoreException", dotted(v.Ref.ClassName()))
			}
		}
		arr.Refs.Data[index] = v.Ref
		return nil
	}
	p := arr.Prim
	switch op {
	case opcodes.LASTORE:
		p.Ints[index] = v.I
	case opcodes.FASTORE:
		p.Floats[index] = float64(v.AsFloat())
	case opcodes.DASTORE:
		p.Floats[index] = v.F
	default: // IASTORE, BASTORE, CASTORE, SASTORE
		p.Ints[index] = object.NormalizePrim(p.Elem, v.I)
	}
	return nil
}

// ----- type tests -----

func (ctx *Context) checkcast(cs *CallStack, f *Frame, idx int) error {
	target, err := f.Class.File.ConstantPool.ClassName(idx)
	if err != nil {
		return err
	}
	v := f.peek()
	if v.IsNull() {
		return nil // null passes any cast
	}
	ok, err := ctx.Loader.IsSubtypeOf(v.Ref.ClassName(), target)
	if err != nil {
		return ctx.asThrowable(cs, err)
	}
	if !ok {
		return ctx.throwJava(cs, "java/lang/ClassCastException",
			fmt.Sprintf("class %s cannot be cast to class %s", dotted(v.Ref.ClassName()), dotted(target)))
	}
	return nil
}

func (ctx *Context) instanceOf(cs *CallStack, f *Frame, idx int) error {
	target, err := f.Class.File.ConstantPool.ClassName(idx)
	if err != nil {
		return err
	}
	v := f.pop()
	if v.IsNull() {
		f.push(object.Int(0))
		return nil
	}
	ok, err := ctx.Loader.IsSubtypeOf(v.Ref.ClassName(), target)
	if err != nil {
		return ctx.asThrowable(cs, err)
	}
	if ok {
		f.push(object.Int(1))
	} else {
		f.push(object.Int(0))
	}
	return nil
}
