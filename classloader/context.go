package classloader

import (
	"strings"

	"github.com/theseus-rs/ristretto-sub014/types"
	"github.com/theseus-rs/ristretto-sub014/verify"
)

// The loader is the verifier's type context: it
// answers reference-type questions out of its loaded-class graph, loading
// classes on demand. Array types are handled structurally before any
// class is consulted.
//
// During link-time verification the class being defined is not yet
// published, so the context used there (linkContext) resolves that class's
// own name to the in-flight *Class instead of re-entering Load.

// IsSubtypeOf implements verify.TypeContext.
func (l *Loader) IsSubtypeOf(sub, super string) (bool, error) {
	return subtypeOf(l.resolver(nil), sub, super)
}

// CommonSupertype implements verify.TypeContext.
func (l *Loader) CommonSupertype(a, b string) (string, error) {
	return commonSupertype(l.resolver(nil), a, b)
}

type linkContext struct {
	l    *Loader
	self *Class
}

var _ verify.TypeContext = linkContext{}

func (c linkContext) IsSubtypeOf(sub, super string) (bool, error) {
	return subtypeOf(c.l.resolver(c.self), sub, super)
}

func (c linkContext) CommonSupertype(a, b string) (string, error) {
	return commonSupertype(c.l.resolver(c.self), a, b)
}

// resolveFn maps an internal name to its Class.
type resolveFn func(name string) (*Class, error)

func (l *Loader) resolver(self *Class) resolveFn {
	return func(name string) (*Class, error) {
		if self != nil && name == self.Name {
			return self, nil
		}
		return l.Load(name)
	}
}

func subtypeOf(resolve resolveFn, sub, super string) (bool, error) {
	if sub == super || super == "java/lang/Object" {
		return true, nil
	}
	if strings.HasPrefix(sub, "[") {
		return arraySubtype(resolve, sub, super)
	}
	if strings.HasPrefix(super, "[") {
		return false, nil
	}

	subC, err := resolve(sub)
	if err != nil {
		return false, err
	}
	superC, err := resolve(super)
	if err != nil {
		return false, err
	}
	if superC.IsInterface() {
		return implementsInterface(subC, superC), nil
	}
	for k := subC; k != nil; k = k.Super {
		if k == superC {
			return true, nil
		}
	}
	return false, nil
}

func implementsInterface(c *Class, ifc *Class) bool {
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if i == ifc || implementsInterface(i, ifc) {
				return true
			}
		}
	}
	return false
}

// arraySubtype applies JVMS §4.10.1.2 array assignability: arrays are
// subtypes of Object, Cloneable, and java/io/Serializable; reference
// arrays are covariant in their component.
func arraySubtype(resolve resolveFn, sub, super string) (bool, error) {
	switch super {
	case "java/lang/Object", "java/lang/Cloneable", "java/io/Serializable":
		return true, nil
	}
	if !strings.HasPrefix(super, "[") {
		return false, nil
	}
	subComp, superComp := sub[1:], super[1:]
	if subComp == superComp {
		return true, nil
	}
	subName := types.ClassNameFromFieldDescriptor(subComp)
	superName := types.ClassNameFromFieldDescriptor(superComp)
	if subName != "" && superName != "" {
		return subtypeOf(resolve, subName, superName)
	}
	if strings.HasPrefix(subComp, "[") && strings.HasPrefix(superComp, "[") {
		return subtypeOf(resolve, subComp, superComp)
	}
	return false, nil
}

// commonSupertype finds the most specific common ancestor of two
// reference types, used when control-flow paths merge.
func commonSupertype(resolve resolveFn, a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	if strings.HasPrefix(a, "[") || strings.HasPrefix(b, "[") {
		// Array merge beyond identical types flattens to Object; the
		// verifier's lattice does not track array covariance at merges.
		return "java/lang/Object", nil
	}
	ac, err := resolve(a)
	if err != nil {
		return "", err
	}
	bc, err := resolve(b)
	if err != nil {
		return "", err
	}
	ancestors := make(map[*Class]bool)
	for k := ac; k != nil; k = k.Super {
		ancestors[k] = true
	}
	for k := bc; k != nil; k = k.Super {
		if ancestors[k] {
			return k.Name, nil
		}
	}
	return "java/lang/Object", nil
}
