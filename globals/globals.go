// Package globals holds the VM-wide configuration singleton: the
// JAVA_HOME-derived paths, the starting class/jar, program arguments, the
// maximum supported class file version, and the JPMS command-line
// overrides. A GetGlobalRef singleton accessor beats threading a config
// struct through every call: the codec, class loader, and interpreter
// all read config (JavaHome, trace flags) from deep call stacks where
// plumbing an explicit parameter would touch hundreds of call sites.
package globals

import "sync"

// MaxSupportedMajorVersion is the highest class file major version this
// VM accepts (class format 69.x, Java 25).
const MaxSupportedMajorVersion = 69

// MinSupportedMajorVersion is the lowest, Java 1.1.
const MinSupportedMajorVersion = 45

// AddExport is a parsed --add-exports module/package=target entry.
type AddExport struct {
	Module  string
	Package string
	Target  string // "ALL-UNNAMED" or a module name
}

// AddOpens is a parsed --add-opens entry, same shape as AddExport.
type AddOpens = AddExport

// AddReads is a parsed --add-reads module=target entry.
type AddReads struct {
	Module string
	Target string
}

// Globals is the VM-wide configuration singleton.
type Globals struct {
	JavaHome      string
	StartingClass string
	StartingJar   string
	ClassPath     []string
	ModulePath    []string
	// UpgradeModulePath entries are searched before the platform
	// modules, letting them override upgradeable modules.
	UpgradeModulePath []string
	AddModules        []string
	AddExports        []AddExport
	AddOpens          []AddOpens
	AddReads          []AddReads
	AppArgs           []string

	VerifyBytecode bool
	StrictJPMS     bool

	TraceClass  bool
	TraceCloadi bool
	TraceInit   bool
	TraceVerify bool
}

var (
	once sync.Once
	inst *Globals
)

// GetGlobalRef returns the process-wide Globals singleton, creating it
// with conservative defaults on first use.
func GetGlobalRef() *Globals {
	once.Do(func() {
		inst = &Globals{
			VerifyBytecode: true,
			ClassPath:      []string{"."},
		}
	})
	return inst
}

// InitForTest resets the singleton; only test code should call this, to
// get a clean Globals per test without cross-test leakage.
func InitForTest() *Globals {
	inst = &Globals{
		VerifyBytecode: true,
		ClassPath:      []string{"."},
	}
	return inst
}
