package jpms

import (
	"github.com/theseus-rs/ristretto-sub014/globals"
)

// Overrides carries the JPMS command-line augmentations applied when the
// graph is built: --add-exports, --add-opens, --add-reads.
type Overrides struct {
	AddExports []globals.AddExport
	AddOpens   []globals.AddOpens
	AddReads   []globals.AddReads
}

// OverridesFromGlobals lifts the parsed command-line overrides out of the
// VM configuration singleton.
func OverridesFromGlobals(g *globals.Globals) Overrides {
	return Overrides{AddExports: g.AddExports, AddOpens: g.AddOpens, AddReads: g.AddReads}
}

type exportKey struct {
	module string
	pkg    string
}

// Graph is the readability and export graph over a resolved
// configuration. It is immutable after construction; readers
// need no lock.
type Graph struct {
	modules map[string]*Descriptor
	reads   map[string]map[string]bool

	// exports/opens: per (module, package), the set of admitted target
	// modules; the AllUnnamed key admits the unnamed module, the "*" key
	// admits everyone.
	exports map[exportKey]map[string]bool
	opens   map[exportKey]map[string]bool
}

const everyone = "*"

// NewGraph computes the readability closure of cfg and folds in the
// command-line overrides.
func NewGraph(cfg *Configuration, ov Overrides) *Graph {
	g := &Graph{
		modules: cfg.Modules,
		reads:   make(map[string]map[string]bool, len(cfg.Modules)),
		exports: make(map[exportKey]map[string]bool),
		opens:   make(map[exportKey]map[string]bool),
	}

	for name, d := range cfg.Modules {
		g.reads[name] = map[string]bool{name: true, JavaBase: true}
		for _, r := range d.Requires {
			g.reads[name][r.Name] = true
		}
	}
	// requires transitive: A requires B, B requires transitive C => A
	// reads C. Iterate to a fixpoint; transitive chains compose.
	for changed := true; changed; {
		changed = false
		for name := range g.reads {
			for read := range g.reads[name] {
				b, ok := cfg.Modules[read]
				if !ok {
					continue
				}
				for _, r := range b.Requires {
					if r.Transitive && !g.reads[name][r.Name] {
						g.reads[name][r.Name] = true
						changed = true
					}
				}
			}
		}
	}

	for name, d := range cfg.Modules {
		for _, e := range d.Exports {
			g.addTargets(g.exports, name, e.Package, e.To)
		}
		for _, o := range d.Opens {
			g.addTargets(g.opens, name, o.Package, o.To)
		}
		if d.Open {
			// An open module opens every exported package; without a
			// package list here, record the export packages as opened.
			for _, e := range d.Exports {
				g.addTargets(g.opens, name, e.Package, nil)
			}
		}
	}

	for _, e := range ov.AddExports {
		g.addTargets(g.exports, e.Module, e.Package, targetList(e.Target))
	}
	for _, o := range ov.AddOpens {
		g.addTargets(g.opens, o.Module, o.Package, targetList(o.Target))
	}
	for _, r := range ov.AddReads {
		if g.reads[r.Module] == nil {
			g.reads[r.Module] = make(map[string]bool)
		}
		if r.Target == AllUnnamed {
			g.reads[r.Module][UnnamedModule] = true
		} else {
			g.reads[r.Module][r.Target] = true
		}
	}
	return g
}

func targetList(target string) []string {
	if target == "" {
		return nil
	}
	return []string{target}
}

func (g *Graph) addTargets(table map[exportKey]map[string]bool, module, pkg string, to []string) {
	k := exportKey{module: module, pkg: pkg}
	if table[k] == nil {
		table[k] = make(map[string]bool)
	}
	if len(to) == 0 {
		table[k][everyone] = true
		return
	}
	for _, t := range to {
		if t == AllUnnamed {
			table[k][UnnamedModule] = true
		} else {
			table[k][t] = true
		}
	}
}

// Module returns the descriptor of a resolved module, nil if absent.
func (g *Graph) Module(name string) *Descriptor { return g.modules[name] }

// Reads reports whether module a reads module b. The unnamed module reads
// every module; every module reads itself and the unnamed module.
func (g *Graph) Reads(a, b string) bool {
	if a == b || a == UnnamedModule || b == UnnamedModule {
		return true
	}
	return g.reads[a][b]
}

// Exported reports whether module exports pkg to module target.
func (g *Graph) Exported(module, pkg, target string) bool {
	return g.admitted(g.exports, module, pkg, target)
}

// Opened reports whether module opens pkg to module target (deep
// reflective access).
func (g *Graph) Opened(module, pkg, target string) bool {
	if g.admitted(g.opens, module, pkg, target) {
		return true
	}
	if d := g.modules[module]; d != nil && d.Open {
		return true
	}
	return false
}

func (g *Graph) admitted(table map[exportKey]map[string]bool, module, pkg, target string) bool {
	set := table[exportKey{module: module, pkg: pkg}]
	if set == nil {
		return false
	}
	return set[everyone] || set[target]
}

// CheckAccess answers: is a type in package pkg of
// module to reachable from module from? Rules in order: same module;
// unnamed target module (allowed when from reads it, which it always
// does); exported (qualified or not) and readable; otherwise denied.
func (g *Graph) CheckAccess(from, to, pkg string) error {
	if from == to {
		return nil
	}
	if to == UnnamedModule {
		return nil // everything reads the unnamed module
	}
	if g.Reads(from, to) && g.Exported(to, pkg, from) {
		return nil
	}
	return &ErrAccessDenied{From: from, To: to, Package: pkg}
}
