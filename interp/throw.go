package interp

import (
	"fmt"
	"strings"

	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/jpms"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/verify"
)

// Throwable is a Java exception in flight: the thrown instance, its class,
// and the call stack captured where it was raised. It unwinds through
// frames via each frame's exception table.
type Throwable struct {
	Obj     *object.Object
	Class   *classloader.Class
	Message string
	Frames  []string
}

func (t *Throwable) Error() string {
	if t.Message != "" {
		return fmt.Sprintf("%s: %s", dotted(t.Class.Name), t.Message)
	}
	return dotted(t.Class.Name)
}

// ClassName is the thrown type's internal name.
func (t *Throwable) ClassName() string { return t.Class.Name }

// NewThrowable builds a Java exception error the way the interpreter's
// own runtime errors are built; the VM's Env.Throw delegates here.
func (ctx *Context) NewThrowable(cs *CallStack, className, message string) error {
	return ctx.throwJava(cs, className, message)
}

// throwJava raises a Java exception of className with message: the
// exception instance is built (without running its constructor — the
// built-in throwables carry only detailMessage) and the current stack
// captured.
func (ctx *Context) throwJava(cs *CallStack, className, message string) error {
	c, err := ctx.Loader.Load(className)
	if err != nil {
		// The exception class itself is unavailable; surface the raw
		// error rather than recurse.
		return fmt.Errorf("%s: %s (exception class unavailable: %v)", className, message, err)
	}
	obj := object.NewInstance(c, c.InstanceFieldDescs())
	if ctx.GC != nil {
		ctx.GC.Allocate(obj, instanceSize(obj))
	}
	if message != "" {
		if s, serr := ctx.Env.NewString(message); serr == nil {
			obj.Fields[detailMessageField] = object.Ref(s)
		}
	}
	return &Throwable{Obj: obj, Class: c, Message: message, Frames: cs.Snapshot()}
}

const detailMessageField = "detailMessage"

// throwableFor wraps an athrow'd instance.
func (ctx *Context) throwableFor(cs *CallStack, o *object.Object) *Throwable {
	c, _ := o.Klass.(*classloader.Class)
	msg := ""
	if v, ok := o.Fields[detailMessageField]; ok && !v.IsNull() {
		msg = object.GoString(v.Ref)
	}
	return &Throwable{Obj: o, Class: c, Message: msg, Frames: cs.Snapshot()}
}

// asThrowable maps an infrastructure error (loader, module, verifier,
// intrinsic) to its Java exception class, thrown at the linkage site.
// Errors that are already Throwables pass through.
func (ctx *Context) asThrowable(cs *CallStack, err error) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *Throwable:
		return e
	case *classloader.ErrClassNotFound:
		return ctx.throwJava(cs, "java/lang/NoClassDefFoundError", dotted(e.Name))
	case *classloader.ErrNoClassDefFound:
		return ctx.throwJava(cs, "java/lang/NoClassDefFoundError", dotted(e.Name))
	case *classloader.ErrCircularity:
		return ctx.throwJava(cs, "java/lang/ClassCircularityError", dotted(e.Name))
	case *classloader.ErrIncompatibleClassChange:
		return ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError", e.Error())
	case *classloader.ErrNoSuchMember:
		if strings.Contains(e.Desc, "(") {
			return ctx.throwJava(cs, "java/lang/NoSuchMethodError", e.Error())
		}
		return ctx.throwJava(cs, "java/lang/NoSuchFieldError", e.Error())
	case *classloader.ErrLinkage:
		if _, verr := e.Cause.(*verify.Error); verr {
			return ctx.throwJava(cs, "java/lang/VerifyError", e.Cause.Error())
		}
		return ctx.throwJava(cs, "java/lang/LinkageError", e.Error())
	case *jpms.ErrAccessDenied:
		return ctx.throwJava(cs, "java/lang/IllegalAccessError", e.Error())
	default:
		return err
	}
}

// dispatchException implements athrow-style unwinding inside one frame:
// find the innermost handler covering pc whose catch type admits t. On a
// match the operand stack is cleared, the exception pushed, and execution
// resumes at the handler.
func (ctx *Context) dispatchException(f *Frame, t *Throwable) (handled bool, err error) {
	if f.Method.Code == nil {
		return false, nil
	}
	for _, h := range f.Method.Code.ExceptionTable {
		if f.PC < int(h.StartPC) || f.PC >= int(h.EndPC) {
			continue
		}
		if h.CatchType != 0 {
			catchName, cerr := f.Class.File.ConstantPool.ClassName(int(h.CatchType))
			if cerr != nil {
				return false, cerr
			}
			ok, serr := ctx.Loader.IsSubtypeOf(t.Class.Name, catchName)
			if serr != nil {
				return false, serr
			}
			if !ok {
				continue
			}
		}
		f.stack = f.stack[:0]
		f.push(object.Ref(t.Obj))
		f.PC = int(h.HandlerPC)
		return true, nil
	}
	return false, nil
}

func instanceSize(o *object.Object) int64 {
	return int64(32 + 16*len(o.Fields))
}
