package verify

// state is the verifier's abstract machine state at one bytecode offset:
// the operand stack (top at the end of the slice) and the local variable
// array (JVMS §4.10.1.1).
type state struct {
	stack  []VType
	locals []VType
}

func (s state) clone() state {
	return state{
		stack:  append([]VType(nil), s.stack...),
		locals: append([]VType(nil), s.locals...),
	}
}

func (s *state) push(v VType) { s.stack = append(s.stack, v) }

func (s *state) pop() (VType, bool) {
	if len(s.stack) == 0 {
		return VType{}, false
	}
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v, true
}

// stackDepth returns the number of operand-stack slots currently occupied,
// category-aware, for max_stack bound checking.
func (s state) stackDepth() int {
	d := 0
	for _, v := range s.stack {
		d += v.Category()
	}
	return d
}

func (s *state) setLocal(index int, v VType) bool {
	if index < 0 || index >= len(s.locals) {
		return false
	}
	s.locals[index] = v
	if v.Category() == 2 {
		if index+1 >= len(s.locals) {
			return false
		}
		s.locals[index+1] = VTop // the second slot of a category-2 local is unusable directly
	}
	return true
}

func (s state) getLocal(index int) (VType, bool) {
	if index < 0 || index >= len(s.locals) {
		return VType{}, false
	}
	return s.locals[index], true
}
