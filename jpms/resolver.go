package jpms

// Configuration is the result of module resolution: the closed set of
// modules reachable from the root set along requires edges.
type Configuration struct {
	Modules map[string]*Descriptor
	// Order is the resolution order: java.base first, then each module
	// after the modules it requires; deterministic for a given finder and
	// root set.
	Order []string
}

// Contains reports whether the configuration resolved name.
func (c *Configuration) Contains(name string) bool {
	_, ok := c.Modules[name]
	return ok
}

// Resolve fixpoint-expands roots along requires edges using finder,
// detecting missing modules and requires cycles. java.base is always
// added to the root set.
func Resolve(finder Finder, roots []string) (*Configuration, error) {
	cfg := &Configuration{Modules: make(map[string]*Descriptor)}
	r := &resolver{finder: finder, cfg: cfg, visiting: make(map[string]bool)}
	if err := r.resolve(JavaBase, nil); err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := r.resolve(root, nil); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

type resolver struct {
	finder   Finder
	cfg      *Configuration
	visiting map[string]bool
}

func (r *resolver) resolve(name string, chain []string) error {
	if r.cfg.Contains(name) {
		return nil
	}
	if r.visiting[name] {
		return &ErrCyclicDependency{Chain: append(append([]string{}, chain...), name)}
	}
	d, err := r.finder.Find(name)
	if err != nil {
		return err
	}
	r.visiting[name] = true
	chain = append(chain, name)
	for _, req := range d.Requires {
		if req.Static {
			// requires static is a compile-time-only edge; at run time a
			// missing static dependency is not an error.
			if _, err := r.finder.Find(req.Name); err != nil {
				continue
			}
		}
		if err := r.resolve(req.Name, chain); err != nil {
			return err
		}
	}
	delete(r.visiting, name)
	r.cfg.Modules[name] = d
	r.cfg.Order = append(r.cfg.Order, name)
	return nil
}
