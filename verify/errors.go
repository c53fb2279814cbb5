package verify

import "fmt"

// Error is a VerifyError carrying class, method, pc, and reason: fatal
// to the method being verified, and to the enclosing class's linking.
type Error struct {
	Class  string
	Method string
	PC     int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("VerifyError: %s.%s at pc=%d: %s", e.Class, e.Method, e.PC, e.Reason)
}

func verifyErr(class, method string, pc int, format string, args ...interface{}) error {
	return &Error{Class: class, Method: method, PC: pc, Reason: fmt.Sprintf(format, args...)}
}
