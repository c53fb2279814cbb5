// Package gc implements the VM's concurrent mark-and-sweep collector: a
// registry of every live heap object, an explicit roots
// set populated by scoped guards, a trace protocol every heap-participating
// type implements, and a collect cycle that snapshots the roots, marks
// reachability (optionally on several marker goroutines), and sweeps the
// registry, finalizing and dropping whatever was not reached.
//
// The collector does not scan goroutine stacks; everything it can reach is
// reached through registered roots, which is why thread frames, interned
// strings, and static-field holders all register themselves.
package gc

import (
	"sync"
	"sync/atomic"
)

// Header is the per-object GC word: one atomic mark bit. Heap objects embed
// one and hand it back through Object.GCHeader.
type Header struct {
	marked atomic.Bool
}

// Marked reports the current mark bit, valid only between the mark and
// sweep phases of a cycle.
func (h *Header) Marked() bool { return h.marked.Load() }

// Object is anything that lives on the collected heap. Trace must call
// c.MarkObject(self) first and stop if it returns false (already marked —
// this is what terminates tracing of cyclic graphs), then trace every
// object reachable from its fields.
type Object interface {
	GCHeader() *Header
	Trace(c *Collector)
}

// Root is a source of reachable objects. A root's Trace seeds the mark
// frontier; unlike Object there is no mark bit on the root itself, because
// roots are not heap objects (a thread's call stack, the interned-string
// pool).
type Root interface {
	Trace(c *Collector)
}

// Finalizable objects get Finalize called during the sweep in which they
// are dropped, before the registry releases them.
type Finalizable interface {
	Finalize()
}

// Trigger selects when collection happens.
type Trigger int

const (
	// TriggerManual collects only on explicit Collect calls.
	TriggerManual Trigger = iota
	// TriggerAllocated collects when the bytes allocated since the last
	// cycle pass Config.TriggerBytes.
	TriggerAllocated
)

// Config is the collector's tuning surface.
type Config struct {
	Threads      int // parallel marker count; values < 2 mark inline
	Trigger      Trigger
	TriggerBytes int64 // threshold for TriggerAllocated
	Finalization bool
}

type entry struct {
	obj  Object
	size int64
}

// Collector owns the object registry and the roots set. One Collector per
// VM; it must not be shared across VMs.
type Collector struct {
	cfg Config

	mu      sync.Mutex
	objects []entry // insertion order; finalizers run in this order
	roots   map[*RootGuard]struct{}

	allocated atomic.Int64 // bytes since last sweep
	cycling   atomic.Bool  // true while a collect cycle is in flight

	collectMu sync.Mutex // serializes whole cycles
}

// New constructs a collector. A zero Config means manual-only collection,
// inline marking, finalization off.
func New(cfg Config) *Collector {
	return &Collector{
		cfg:   cfg,
		roots: make(map[*RootGuard]struct{}),
	}
}

// Allocate registers a freshly constructed object with the collector,
// which from then on owns its lifetime. size is the caller's estimate of
// the object's footprint, used only for the allocation trigger.
//
// Objects allocated while a cycle is tracing start marked ("allocated
// black"), so a concurrent mutator can never hand the sweep a fresh object
// with a clear bit.
func (c *Collector) Allocate(o Object, size int64) {
	// The allocation trigger fires before o is registered, so the cycle
	// it starts can never sweep the object being handed out.
	if c.cfg.Trigger == TriggerAllocated && c.cfg.TriggerBytes > 0 &&
		c.allocated.Load()+size >= c.cfg.TriggerBytes && !c.cycling.Load() {
		c.Collect()
	}
	if c.cycling.Load() {
		o.GCHeader().marked.Store(true)
	}
	c.mu.Lock()
	c.objects = append(c.objects, entry{obj: o, size: size})
	c.mu.Unlock()
	c.allocated.Add(size)
}

// MarkObject sets o's mark bit, returning true if this call was the one
// that set it. Trace implementations use the return value to cut off
// re-traversal of already-visited (possibly cyclic) structure.
func (c *Collector) MarkObject(o Object) bool {
	return o.GCHeader().marked.CompareAndSwap(false, true)
}

// RootGuard pins a root for as long as it is held. Construction (via
// AddRoot) inserts the root; Release removes it. Callers typically pair
// AddRoot with a deferred Release, scope-style.
type RootGuard struct {
	c    *Collector
	root Root
	once sync.Once
}

// AddRoot registers r as a GC root and returns the guard that keeps it
// registered.
func (c *Collector) AddRoot(r Root) *RootGuard {
	g := &RootGuard{c: c, root: r}
	c.mu.Lock()
	c.roots[g] = struct{}{}
	c.mu.Unlock()
	return g
}

// Release unregisters the root. Safe to call more than once.
func (g *RootGuard) Release() {
	g.once.Do(func() {
		g.c.mu.Lock()
		delete(g.c.roots, g)
		g.c.mu.Unlock()
	})
}

// Collect runs one full mark-and-sweep cycle and returns the number of
// objects freed. Mutators may allocate concurrently (they will be marked
// black); a second concurrent Collect blocks until the first finishes.
func (c *Collector) Collect() int {
	c.collectMu.Lock()
	defer c.collectMu.Unlock()

	// Snapshot roots and the pre-cycle object set, clearing marks on the
	// latter. Objects allocated after this point are marked at birth.
	c.mu.Lock()
	snapshot := make([]Root, 0, len(c.roots))
	for g := range c.roots {
		snapshot = append(snapshot, g.root)
	}
	for _, e := range c.objects {
		e.obj.GCHeader().marked.Store(false)
	}
	c.cycling.Store(true)
	c.mu.Unlock()

	c.markAll(snapshot)

	c.mu.Lock()
	live := c.objects[:0]
	var dead []entry
	for _, e := range c.objects {
		if e.obj.GCHeader().Marked() {
			live = append(live, e)
		} else {
			dead = append(dead, e)
		}
	}
	c.objects = live
	c.cycling.Store(false)
	c.allocated.Store(0)
	c.mu.Unlock()

	// Finalize outside the registry lock, in insertion order, before the
	// entries go unreferenced.
	if c.cfg.Finalization {
		for _, e := range dead {
			if f, ok := e.obj.(Finalizable); ok {
				f.Finalize()
			}
		}
	}
	return len(dead)
}

// markAll traces every root, fanning the roots out over Config.Threads
// marker goroutines when configured. The atomic mark bit is the only state
// the markers share, so the goroutines need no further coordination.
func (c *Collector) markAll(roots []Root) {
	workers := c.cfg.Threads
	if workers < 2 || len(roots) < 2 {
		for _, r := range roots {
			r.Trace(c)
		}
		return
	}
	if workers > len(roots) {
		workers = len(roots)
	}
	ch := make(chan Root, len(roots))
	for _, r := range roots {
		ch <- r
	}
	close(ch)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				r.Trace(c)
			}
		}()
	}
	wg.Wait()
}

// Live returns the current registry size. Test and diagnostic use.
func (c *Collector) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// AllocatedBytes returns the bytes allocated since the last completed
// sweep.
func (c *Collector) AllocatedBytes() int64 { return c.allocated.Load() }
