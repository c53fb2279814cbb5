// Package shutdown centralizes the mapping from internal VM error
// categories to process exit codes.
package shutdown

import (
	"os"

	"github.com/theseus-rs/ristretto-sub014/trace"
)

// Reason identifies why the VM is terminating.
type Reason int

const (
	OK Reason = iota
	JVM_EXCEPTION
	APP_EXCEPTION
	CLI_ERROR
)

// ExitCode maps a Reason to the process exit code: normal return exits
// 0, an uncaught exception exits 1.
func ExitCode(r Reason) int {
	switch r {
	case OK:
		return 0
	case JVM_EXCEPTION, APP_EXCEPTION, CLI_ERROR:
		return 1
	default:
		return 1
	}
}

// osExit is overridden in tests so Exit doesn't tear down the test binary.
var osExit = os.Exit

// Exit logs the reason and terminates the process with the mapped exit
// code. It is the single choke point every abnormal-termination path in
// the VM funnels through.
func Exit(r Reason) {
	if r != OK {
		trace.Error("shutdown: terminating process")
	}
	osExit(ExitCode(r))
}
