// Package vm is the thread and VM core: a VM owns its configuration,
// the loader chain, the intrinsic registry, the collector, the
// interned-string pool, and the set of live threads. Construction wires
// everything; Run loads the main class and drives main to completion,
// mapping its outcome to the process exit code.
package vm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/theseus-rs/ristretto-sub014/classloader"
	"github.com/theseus-rs/ristretto-sub014/gc"
	"github.com/theseus-rs/ristretto-sub014/globals"
	"github.com/theseus-rs/ristretto-sub014/interp"
	"github.com/theseus-rs/ristretto-sub014/intrinsic"
	"github.com/theseus-rs/ristretto-sub014/jimage"
	"github.com/theseus-rs/ristretto-sub014/jpms"
	"github.com/theseus-rs/ristretto-sub014/natives"
	"github.com/theseus-rs/ristretto-sub014/object"
	"github.com/theseus-rs/ristretto-sub014/trace"
)

// DefaultJavaVersion is the feature release the VM reports when the
// configuration does not pin one.
const DefaultJavaVersion = 21

// Config selects the VM's search paths, version, and tuning.
type Config struct {
	JavaHome   string
	ClassPath  []string
	ModulePath []string
	// UpgradeModulePath is consulted before the platform image, so its
	// modules override upgradeable platform modules.
	UpgradeModulePath []string
	AddModules        []string
	JavaVersion       int
	MaxFrames         int
	GC                gc.Config

	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
}

// VM is one virtual machine instance. Its registry, string pool, and
// collector are process-wide within this instance and must not be shared
// with another VM.
type VM struct {
	cfg       Config
	loader    *classloader.Loader
	registry  *intrinsic.Registry
	collector *gc.Collector
	graph     *jpms.Graph

	stringsMu    sync.Mutex
	strings      map[string]*object.Object
	stringsGuard *gc.RootGuard
	stringClass  *classloader.Class

	staticsGuard *gc.RootGuard

	threadsMu sync.Mutex
	threads   map[int64]*Thread
	nextTID   atomic.Int64
}

// New constructs and wires a VM: core classes, loader chain (platform
// image first when JAVA_HOME supplies one), intrinsic registry, module
// graph, collector, and string pool.
func New(cfg Config) (*VM, error) {
	if cfg.JavaVersion == 0 {
		cfg.JavaVersion = DefaultJavaVersion
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	core, err := coreClasses()
	if err != nil {
		return nil, err
	}

	var bootstrap []classloader.Source
	var img *jimage.Image
	if cfg.JavaHome != "" {
		modules := filepath.Join(cfg.JavaHome, "lib", "modules")
		if _, statErr := os.Stat(modules); statErr == nil {
			img, err = jimage.Open(modules)
			if err != nil {
				return nil, err
			}
			bootstrap = append(bootstrap, &classloader.ImageSource{Img: img})
			_ = trace.Log("vm: platform image at "+modules, trace.CONFIG)
		}
	}
	bootstrap = append(bootstrap, &classloader.MapSource{Name: "corelib", Classes: core})

	var system []classloader.Source
	for _, entry := range cfg.ClassPath {
		system = append(system, classloader.PathEntrySource(entry))
	}

	vm := &VM{
		cfg:       cfg,
		registry:  intrinsic.NewRegistry(),
		collector: gc.New(cfg.GC),
		strings:   make(map[string]*object.Object),
		threads:   make(map[int64]*Thread),
	}
	natives.Load(vm.registry)

	vm.loader = classloader.NewChain(bootstrap, nil, system)
	for l := vm.loader; l != nil; l = l.Parent {
		l.StringFactory = vm.internEarly
	}

	if err := vm.buildModuleGraph(img); err != nil {
		return nil, err
	}

	vm.stringsGuard = vm.collector.AddRoot(stringPoolRoot{vm: vm})
	vm.staticsGuard = vm.collector.AddRoot(staticsRoot{vm: vm})

	if err := vm.wireSystemStreams(); err != nil {
		return nil, err
	}
	return vm, nil
}

// buildModuleGraph resolves the module configuration: the platform image's
// modules when present, otherwise a synthesized java.base covering the
// core classes. CLI overrides fold in from globals.
func (vm *VM) buildModuleGraph(img *jimage.Image) error {
	var finders []jpms.Finder
	if len(vm.cfg.UpgradeModulePath) > 0 {
		finders = append(finders, jpms.NewPathFinder(vm.cfg.UpgradeModulePath))
	}
	if img != nil {
		finders = append(finders, jpms.NewSystemFinder(img))
	}
	if len(vm.cfg.ModulePath) > 0 {
		finders = append(finders, jpms.NewPathFinder(vm.cfg.ModulePath))
	}
	finders = append(finders, jpms.NewTableFinder(&jpms.Descriptor{
		Name: jpms.JavaBase,
		Exports: []jpms.Exports{
			{Package: "java/lang"},
			{Package: "java/io"},
			{Package: "java/util"},
		},
	}))

	cfg, err := jpms.Resolve(jpms.Compose(finders...), vm.cfg.AddModules)
	if err != nil {
		return err
	}
	vm.graph = jpms.NewGraph(cfg, jpms.OverridesFromGlobals(globals.GetGlobalRef()))
	for l := vm.loader; l != nil; l = l.Parent {
		l.Graph = vm.graph
	}
	return nil
}

// wireSystemStreams loads java/lang/System and points its out/err statics
// at PrintStream instances bound to the process streams.
func (vm *VM) wireSystemStreams() error {
	system, err := vm.loader.Load("java/lang/System")
	if err != nil {
		return err
	}
	ps, err := vm.loader.Load("java/io/PrintStream")
	if err != nil {
		return err
	}
	mk := func(fd int32) *object.Object {
		o := object.NewInstance(ps, ps.InstanceFieldDescs())
		o.Fields[natives.StreamField] = object.Int(fd)
		vm.collector.Allocate(o, 48)
		return o
	}
	system.SetStatic("out", object.Ref(mk(1)))
	system.SetStatic("err", object.Ref(mk(2)))
	return nil
}

// Loader returns the system (application) class loader.
func (vm *VM) Loader() *classloader.Loader { return vm.loader }

// Collector returns the VM's garbage collector.
func (vm *VM) Collector() *gc.Collector { return vm.collector }

// Registry returns the intrinsic registry.
func (vm *VM) Registry() *intrinsic.Registry { return vm.registry }

// Intern returns the canonical String object for s, creating and rooting
// it on first use, so equal contents always share one instance.
func (vm *VM) Intern(s string) (*object.Object, error) {
	vm.stringsMu.Lock()
	defer vm.stringsMu.Unlock()
	if o, ok := vm.strings[s]; ok {
		return o, nil
	}
	o, err := vm.newStringLocked(s)
	if err != nil {
		return nil, err
	}
	vm.strings[s] = o
	return o, nil
}

// internEarly backs the loader's ConstantValue string statics; interning
// failures there degrade to nil rather than failing the load.
func (vm *VM) internEarly(s string) *object.Object {
	o, err := vm.Intern(s)
	if err != nil {
		return nil
	}
	return o
}

// NewString builds a fresh, non-interned String instance.
func (vm *VM) NewString(s string) (*object.Object, error) {
	vm.stringsMu.Lock()
	defer vm.stringsMu.Unlock()
	return vm.newStringLocked(s)
}

func (vm *VM) newStringLocked(s string) (*object.Object, error) {
	if vm.stringClass == nil {
		c, err := vm.loader.Load("java/lang/String")
		if err != nil {
			return nil, err
		}
		vm.stringClass = c
	}
	o := object.NewString(vm.stringClass, s)
	vm.collector.Allocate(o.Fields[object.StringValueField].Ref, int64(len(s)+24))
	vm.collector.Allocate(o, 48)
	return o, nil
}

// stringPoolRoot makes every interned string a GC root.
type stringPoolRoot struct{ vm *VM }

func (r stringPoolRoot) Trace(c *gc.Collector) {
	r.vm.stringsMu.Lock()
	defer r.vm.stringsMu.Unlock()
	for _, o := range r.vm.strings {
		o.Trace(c)
	}
}

// staticsRoot traces every loaded class's static reference fields.
type staticsRoot struct{ vm *VM }

func (r staticsRoot) Trace(c *gc.Collector) {
	for l := r.vm.loader; l != nil; l = l.Parent {
		for _, cls := range l.Classes() {
			cls.TraceStatics(refTracer{c})
		}
	}
}

type refTracer struct{ c *gc.Collector }

func (t refTracer) TraceRef(o *object.Object) { o.Trace(t.c) }

// Run executes mainClass's main(String[]) with args and returns the
// process exit code: 0 for a normal return, 1 for an uncaught exception
// (with the stack trace printed to stderr), or the code passed to
// System.exit/Shutdown.halt0.
func (vm *VM) Run(mainClass string, args []string) (code int, err error) {
	t := vm.NewThread()
	defer t.Close()
	defer func() {
		if r := recover(); r != nil {
			if h, ok := r.(interp.Halt); ok {
				code, err = h.Code, nil
				return
			}
			panic(r)
		}
	}()

	argArr, err := vm.stringArray(args)
	if err != nil {
		return 1, err
	}

	_, runErr := t.ctx.RunStatic(t.stack, mainClass, "main", "([Ljava/lang/String;)V",
		[]object.Value{object.Ref(argArr)})
	if runErr == nil {
		return 0, nil
	}
	if thrown, ok := runErr.(*interp.Throwable); ok {
		vm.printStackTrace(thrown)
		return 1, nil
	}
	return 1, runErr
}

func (vm *VM) stringArray(args []string) (*object.Object, error) {
	strClass, err := vm.loader.Load("java/lang/String")
	if err != nil {
		return nil, err
	}
	arr := object.NewRefArray("java/lang/String", strClass, len(args))
	if c, err := vm.loader.Load("[Ljava/lang/String;"); err == nil {
		arr.Klass = c
	}
	for i, a := range args {
		s, err := vm.NewString(a)
		if err != nil {
			return nil, err
		}
		arr.Refs.Data[i] = s
	}
	vm.collector.Allocate(arr, int64(len(args)*8+24))
	return arr, nil
}

// printStackTrace renders an uncaught exception before the process
// exits 1.
func (vm *VM) printStackTrace(t *interp.Throwable) {
	head := "Exception in thread \"main\" " + javaName(t.ClassName())
	if t.Message != "" {
		head += ": " + t.Message
	}
	fmt.Fprintln(vm.cfg.Stderr, head)
	for _, fr := range t.Frames {
		fmt.Fprintf(vm.cfg.Stderr, "\tat %s\n", fr)
	}
}

func javaName(internal string) string {
	out := []byte(internal)
	for i, b := range out {
		if b == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}
