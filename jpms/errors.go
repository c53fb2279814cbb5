package jpms

import (
	"fmt"
	"strings"
)

// ErrModuleNotFound reports a module named by a root set or a requires
// clause that no finder could locate.
type ErrModuleNotFound struct{ Name string }

func (e *ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module not found: %s", e.Name)
}

// ErrCyclicDependency reports a requires cycle discovered during
// resolution. Chain lists the modules along the cycle, first repeated
// last.
type ErrCyclicDependency struct{ Chain []string }

func (e *ErrCyclicDependency) Error() string {
	return fmt.Sprintf("cyclic module dependency: %s", strings.Join(e.Chain, " -> "))
}

// ErrAccessDenied reports a failed module access check.
type ErrAccessDenied struct {
	From    string // requesting module
	To      string // owning module
	Package string
}

func (e *ErrAccessDenied) Error() string {
	from := e.From
	if from == UnnamedModule {
		from = "unnamed module"
	}
	return fmt.Sprintf("module %s does not export package %s to %s", e.To, e.Package, from)
}

// ErrNotAModule reports a class file without a Module attribute handed to
// DescriptorFromClassFile.
type ErrNotAModule struct{}

func (e *ErrNotAModule) Error() string {
	return "class file carries no Module attribute"
}
