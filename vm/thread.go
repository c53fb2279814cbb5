package vm

import (
	"io"

	"github.com/theseus-rs/ristretto-sub014/gc"
	"github.com/theseus-rs/ristretto-sub014/interp"
	"github.com/theseus-rs/ristretto-sub014/object"
)

// Thread is one VM thread: an identity, a call stack (also its GC root),
// and the interpreter context that executes on it.
// It implements intrinsic.Env, so intrinsics running on this thread reach
// the VM through it.
type Thread struct {
	ID    int64
	vm    *VM
	stack *interp.CallStack
	ctx   *interp.Context
	guard *gc.RootGuard
}

// NewThread creates and registers a thread; its call stack is rooted for
// GC scanning until Close.
func (vm *VM) NewThread() *Thread {
	id := vm.nextTID.Add(1)
	t := &Thread{
		ID:    id,
		vm:    vm,
		stack: interp.NewCallStack(id),
	}
	t.ctx = &interp.Context{
		Loader:      vm.loader,
		Intrinsics:  vm.registry,
		GC:          vm.collector,
		Env:         t,
		JavaVersion: vm.cfg.JavaVersion,
		MaxFrames:   vm.cfg.MaxFrames,
	}
	t.guard = vm.collector.AddRoot(t.stack)

	vm.threadsMu.Lock()
	vm.threads[id] = t
	vm.threadsMu.Unlock()
	return t
}

// Close unregisters the thread and releases its GC root.
func (t *Thread) Close() {
	t.guard.Release()
	t.vm.threadsMu.Lock()
	delete(t.vm.threads, t.ID)
	t.vm.threadsMu.Unlock()
}

// CallStack exposes the thread's frame stack.
func (t *Thread) CallStack() *interp.CallStack { return t.stack }

// Context exposes the thread's interpreter context.
func (t *Thread) Context() *interp.Context { return t.ctx }

// RunStatic resolves and invokes a static method on this thread.
func (t *Thread) RunStatic(className, methodName, descriptor string, args []object.Value) (*object.Value, error) {
	return t.ctx.RunStatic(t.stack, className, methodName, descriptor, args)
}

// --- intrinsic.Env ---

func (t *Thread) NewString(s string) (*object.Object, error) { return t.vm.NewString(s) }

func (t *Thread) Intern(s string) (*object.Object, error) { return t.vm.Intern(s) }

func (t *Thread) Throw(className, message string) error {
	return t.ctx.NewThrowable(t.stack, className, message)
}

// Exit unwinds the interpreter with a Halt; VM.Run recovers it into the
// process exit code.
func (t *Thread) Exit(code int) {
	panic(interp.Halt{Code: code})
}

func (t *Thread) Stdout() io.Writer { return t.vm.cfg.Stdout }
func (t *Thread) Stderr() io.Writer { return t.vm.cfg.Stderr }
func (t *Thread) JavaVersion() int  { return t.vm.cfg.JavaVersion }
func (t *Thread) ThreadID() int64   { return t.ID }
