package interp

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/classfile"
	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/types"
)

// Invoke kinds, also the low bits of the per-class resolution cache key.
const (
	kindVirtual = iota
	kindSpecial
	kindStatic
	kindInterface
)

// invokeOp implements the four invoke* paths: parse the CP entry, load
// the owner, check access, resolve,
// then dispatch — walking the receiver's hierarchy for virtual/interface,
// using the declared owner for special, the owner itself for static.
func (ctx *Context) invokeOp(cs *CallStack, f *Frame, kind int, idx int) error {
	resolved, err := ctx.resolveInvoke(cs, f, kind, idx)
	if err != nil {
		return err
	}

	nargs := len(types.ParamDescriptors(resolved.Descriptor))
	if kind != kindStatic {
		nargs++ // receiver
	}
	args := f.popN(nargs)

	var target *classloader.Method
	switch kind {
	case kindStatic:
		if !resolved.IsStatic() {
			return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError",
				resolved.QualifiedName()+" is not static")
		}
		if err := resolved.Class.EnsureInitialized(cs.ThreadID, ctx.clinitRunner(cs)); err != nil {
			return ctx.asThrowable(cs, err)
		}
		target = resolved

	case kindSpecial:
		// invokespecial uses the declared class: <init>, private methods,
		// and explicit super calls.
		if args[0].IsNull() {
			return ctx.throwJava(cs, "java/lang/NullPointerException",
				fmt.Sprintf("cannot invoke %q", resolved.QualifiedName()))
		}
		target = resolved

	default: // kindVirtual, kindInterface
		if args[0].IsNull() {
			return ctx.throwJava(cs, "java/lang/NullPointerException",
				fmt.Sprintf("cannot invoke %q", resolved.QualifiedName()))
		}
		recvClass, ok := args[0].Ref.Klass.(*classloader.Class)
		if !ok || recvClass == nil {
			return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError", "receiver has no class")
		}
		// Dispatch from the receiver's concrete class toward Object: the
		// most specific override wins.
		target, err = recvClass.LookupVirtual(resolved.Name, resolved.Descriptor)
		if err != nil {
			return ctx.asThrowable(cs, err)
		}
		if target.IsAbstract() {
			return ctx.throwJava(cs, "java/lang/AbstractMethodError", target.QualifiedName())
		}
	}

	result, err := ctx.InvokeMethod(cs, target, args)
	if err != nil {
		return err
	}
	if types.ReturnDescriptor(resolved.Descriptor) != "V" {
		if result == nil {
			return fmt.Errorf("%s returned no value", target.QualifiedName())
		}
		f.push(*result)
	}
	return nil
}

// resolveInvoke performs (and caches) steps 1-3 of method resolution.
func (ctx *Context) resolveInvoke(cs *CallStack, f *Frame, kind int, idx int) (*classloader.Method, error) {
	if m, ok := f.Class.CachedResolved(idx, kind); ok {
		return m, nil
	}
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

	var resolved *classloader.Method
	if kind == kindSpecial {
		// Constructors and private methods resolve on the exact declared
		// class; super.m() resolves through the declared class's chain.
		resolved = owner.DeclaredMethod(ref.MemberName, ref.Descriptor)
		if resolved == nil {
			resolved, err = owner.LookupVirtual(ref.MemberName, ref.Descriptor)
			if err != nil {
				return nil, ctx.asThrowable(cs, err)
			}
		}
	} else {
		resolved, err = owner.LookupVirtual(ref.MemberName, ref.Descriptor)
		if err != nil {
			return nil, ctx.asThrowable(cs, err)
		}
	}
	if !classloader.MemberAccessible(f.Class, resolved.Class, resolved.AccessFlags) {
		return nil, ctx.throwJava(cs, "java/lang/IllegalAccessError",
			fmt.Sprintf("%s not accessible from %s", resolved.QualifiedName(), f.Class.Name))
	}
	f.Class.CacheResolved(idx, kind, resolved)
	return resolved, nil
}

// invokeDynamicUnsupported resolves the InvokeDynamic constant far
// enough for a diagnostic, then rejects the call site: invokedynamic is
// reserved, and rejection beats a crash for classes that reach one.
func (ctx *Context) invokeDynamicUnsupported(cs *CallStack, f *Frame, idx int) error {
	detail := "invokedynamic"
	if e, err := f.Class.File.ConstantPool.At(idx); err == nil {
		if indy, ok := e.(classfile.InvokeDynamicInfo); ok {
			if name, desc, err := f.Class.File.ConstantPool.NameAndType(int(indy.NameAndTypeIndex)); err == nil {
				detail = fmt.Sprintf("invokedynamic %s%s (bootstrap #%d)", name, desc, indy.BootstrapMethodAttrIndex)
			}
		}
	}
	return ctx.throwJava(cs, "java/lang/UnsatisfiedLinkError", detail)
}
