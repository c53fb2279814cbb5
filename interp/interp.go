// Package interp executes bytecode: a frame-based interpreter with
// operand stack, local variables, exception-table unwinding, the four
// invoke* resolution paths with a per-call-site cache, and intrinsic
// dispatch for native methods. The instruction set is factored into
// per-family files (arith, objects, invoke).
package interp

import (
	"fmt"

	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/gc"
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/object"
)

// DefaultMaxFrames bounds call depth before StackOverflowError.
const DefaultMaxFrames = 2048

// Context is everything one VM thread's interpreter needs: the loader
// chain, the intrinsic registry, the collector, and the Env handed to
// intrinsics. Frames and operand stacks live in the CallStack and are
// owned exclusively by their thread, so they need no locking.
type Context struct {
	Loader      *classloader.Loader
	Intrinsics  *intrinsic.Registry
	GC          *gc.Collector
	Env         intrinsic.Env
	JavaVersion int
	MaxFrames   int
}

// Frame is one method activation (JVMS §2.6).
type Frame struct {
	Class  *classloader.Class
	Method *classloader.Method
	Locals []object.Value
	stack  []object.Value
	PC     int
}

func (f *Frame) push(v object.Value) { f.stack = append(f.stack, v) }
func (f *Frame) pop() object.Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}
func (f *Frame) peek() object.Value { return f.stack[len(f.stack)-1] }

// popN pops n values, returned in push order (args[0] pushed first).
func (f *Frame) popN(n int) []object.Value {
	vals := make([]object.Value, n)
	for i := n - 1; i >= 0; i-- {
		vals[i] = f.pop()
	}
	return vals
}

// CallStack is a thread's frame stack; it doubles as the thread's GC
// root, so the collector never scans goroutine stacks directly.
type CallStack struct {
	ThreadID int64
	frames   []*Frame
}

// NewCallStack creates an empty call stack for a thread.
func NewCallStack(threadID int64) *CallStack {
	return &CallStack{ThreadID: threadID}
}

// Depth returns the live frame count.
func (cs *CallStack) Depth() int { return len(cs.frames) }

// Top returns the active frame, nil when idle.
func (cs *CallStack) Top() *Frame {
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

// Trace implements gc.Root: every value on every frame's operand stack and
// local slots is reachable.
func (cs *CallStack) Trace(c *gc.Collector) {
	for _, f := range cs.frames {
		for _, v := range f.stack {
			if v.Kind == object.KindRef && v.Ref != nil {
				v.Ref.Trace(c)
			}
		}
		for _, v := range f.Locals {
			if v.Kind == object.KindRef && v.Ref != nil {
				v.Ref.Trace(c)
			}
		}
	}
}

// Snapshot renders the call stack for diagnostics, innermost frame first.
func (cs *CallStack) Snapshot() []string {
	out := make([]string, 0, len(cs.frames))
	for i := len(cs.frames) - 1; i >= 0; i-- {
		f := cs.frames[i]
		entry := fmt.Sprintf("%s.%s", dotted(f.Class.Name), f.Method.Name)
		if line := lineFor(f.Method, f.PC); line > 0 {
			entry = fmt.Sprintf("%s(line %d)", entry, line)
		}
		out = append(out, entry)
	}
	return out
}

func lineFor(m *classloader.Method, pc int) int {
	if m.Code == nil {
		return 0
	}
	line := 0
	for _, e := range m.Code.LineNumberTable {
		if int(e.StartPC) <= pc {
			line = int(e.LineNumber)
		}
	}
	return line
}

func dotted(internal string) string {
	out := []byte(internal)
	for i, b := range out {
		if b == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}

// Halt is panicked by the VM's Exit implementation to unwind the
// interpreter on System.exit/Shutdown.halt0; the VM recovers it at the
// top of the thread.
type Halt struct{ Code int }

func (h Halt) String() string { return fmt.Sprintf("halt(%d)", h.Code) }

// InvokeMethod runs m with args (receiver first for instance methods) and
// returns its result: nil for void, the returned Value otherwise. A
// returned *Throwable is a Java exception that escaped m.
func (ctx *Context) InvokeMethod(cs *CallStack, m *classloader.Method, args []object.Value) (*object.Value, error) {
	if m.IsNative() {
		return ctx.invokeNative(cs, m, args)
	}
	if m.IsAbstract() {
		return nil, ctx.throwJava(cs, "java/lang/AbstractMethodError", m.QualifiedName())
	}
	if m.Code == nil {
		return nil, ctx.throwJava(cs, "java/lang/IncompatibleClassChangeError",
			m.QualifiedName()+" has no body")
	}
	maxFrames := ctx.MaxFrames
	if maxFrames == 0 {
		maxFrames = DefaultMaxFrames
	}
	if len(cs.frames) >= maxFrames {
		return nil, ctx.throwJava(cs, "java/lang/StackOverflowError", "")
	}

	f := &Frame{
		Class:  m.Class,
		Method: m,
		Locals: make([]object.Value, int(m.Code.MaxLocals)),
		stack:  make([]object.Value, 0, int(m.Code.MaxStack)),
	}
	slot := 0
	for _, a := range args {
		f.Locals[slot] = a
		slot += a.Category()
	}

	cs.frames = append(cs.frames, f)
	v, err := ctx.run(cs, f)
	cs.frames = cs.frames[:len(cs.frames)-1]
	return v, err
}

func (ctx *Context) invokeNative(cs *CallStack, m *classloader.Method, args []object.Value) (*object.Value, error) {
	k := intrinsic.Key{Class: m.Class.Name, Name: m.Name, Descriptor: m.Descriptor}
	fn, ok := ctx.Intrinsics.Lookup(k, ctx.JavaVersion)
	if !ok {
		return nil, ctx.throwJava(cs, "java/lang/UnsatisfiedLinkError", k.String())
	}
	v, err := fn(ctx.Env, args)
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	return v, nil
}

// RunStatic resolves and invokes a static method by name — the VM's entry
// point for main and for direct test calls. The owner class is
// initialized first (first active use, JVMS §5.5).
func (ctx *Context) RunStatic(cs *CallStack, className, methodName, descriptor string, args []object.Value) (*object.Value, error) {
	c, err := ctx.Loader.Load(className)
	if err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	m := c.DeclaredMethod(methodName, descriptor)
	if m == nil {
		return nil, ctx.throwJava(cs, "java/lang/NoSuchMethodError",
			fmt.Sprintf("%s.%s%s", className, methodName, descriptor))
	}
	if err := c.EnsureInitialized(cs.ThreadID, ctx.clinitRunner(cs)); err != nil {
		return nil, ctx.asThrowable(cs, err)
	}
	return ctx.InvokeMethod(cs, m, args)
}

// clinitRunner adapts the interpreter into the class initializer the
// loader's state machine executes: <clinit> on first active use, under
// the class monitor.
func (ctx *Context) clinitRunner(cs *CallStack) func(*classloader.Class) error {
	return func(c *classloader.Class) error {
		m := c.Clinit()
		if m == nil {
			return nil
		}
		_, err := ctx.InvokeMethod(cs, m, nil)
		return err
	}
}
