// Command ristretto is the CLI bootstrap around the VM core: flag
// parsing, environment pickup (JAVA_HOME, JAVA_LOG), and process exit
// mapping. It contains no interpreter or class-loading logic of its own.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theseus-rs/ristretto-sub014/globals"
	"github.com/theseus-rs/ristretto-sub014/shutdown"
	"github.com/theseus-rs/ristretto-sub014/trace"
	"github.com/theseus-rs/ristretto-sub014/vm"
)

const version = "0.1.0"

var (
	flagClassPath   string
	flagModulePath  string
	flagUpgradePath string
	flagAddModules  []string
	flagAddExports  []string
	flagAddOpens    []string
	flagAddReads    []string
	flagVerbose     string
	flagNoVerify    bool
	flagShowVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "ristretto [flags] <main-class> [-- args...]",
	Short: "A Java virtual machine",
	Long: `ristretto loads Java class files and a platform runtime, verifies their
bytecode, and executes Java methods under a garbage-collected heap.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagClassPath, "classpath", "c", "", "application class path (directories, jars, URLs, ':'-separated)")
	f.StringVar(&flagModulePath, "module-path", "", "module path directories (':'-separated)")
	f.StringVar(&flagUpgradePath, "upgrade-module-path", "", "directories of modules that override upgradeable platform modules (':'-separated)")
	f.StringSliceVar(&flagAddModules, "add-modules", nil, "root modules to resolve in addition to java.base")
	f.StringSliceVar(&flagAddExports, "add-exports", nil, "module/package=target exports to add")
	f.StringSliceVar(&flagAddOpens, "add-opens", nil, "module/package=target opens to add")
	f.StringSliceVar(&flagAddReads, "add-reads", nil, "module=target readability edges to add")
	f.StringVar(&flagVerbose, "verbose", "", "log level (FINEST..SEVERE); JAVA_LOG is the fallback")
	f.BoolVar(&flagNoVerify, "noverify", false, "disable bytecode verification")
	f.BoolVar(&flagShowVersion, "version", false, "print version and exit")
}

func runMain(cmd *cobra.Command, args []string) error {
	if flagShowVersion {
		fmt.Fprintf(cmd.OutOrStdout(), "ristretto %s\n", version)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("no main class given")
	}

	level := flagVerbose
	if level == "" {
		level = os.Getenv("JAVA_LOG")
	}
	trace.SetLevel(trace.ParseLevel(level))

	g := globals.GetGlobalRef()
	g.JavaHome = os.Getenv("JAVA_HOME")
	g.VerifyBytecode = !flagNoVerify
	if flagClassPath != "" {
		g.ClassPath = strings.Split(flagClassPath, ":")
	}
	if flagModulePath != "" {
		g.ModulePath = strings.Split(flagModulePath, ":")
	}
	if flagUpgradePath != "" {
		g.UpgradeModulePath = strings.Split(flagUpgradePath, ":")
	}
	g.AddModules = flagAddModules
	for _, s := range flagAddExports {
		if e, ok := parseQualified(s); ok {
			g.AddExports = append(g.AddExports, e)
		} else {
			return fmt.Errorf("bad --add-exports %q (want module/package=target)", s)
		}
	}
	for _, s := range flagAddOpens {
		if e, ok := parseQualified(s); ok {
			g.AddOpens = append(g.AddOpens, e)
		} else {
			return fmt.Errorf("bad --add-opens %q (want module/package=target)", s)
		}
	}
	for _, s := range flagAddReads {
		mod, target, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("bad --add-reads %q (want module=target)", s)
		}
		g.AddReads = append(g.AddReads, globals.AddReads{Module: mod, Target: target})
	}

	// The main class may be given in dotted or internal form.
	mainClass := strings.ReplaceAll(args[0], ".", "/")
	g.StartingClass = mainClass
	g.AppArgs = args[1:]

	machine, err := vm.New(vm.Config{
		JavaHome:          g.JavaHome,
		ClassPath:         g.ClassPath,
		ModulePath:        g.ModulePath,
		UpgradeModulePath: g.UpgradeModulePath,
		AddModules:        g.AddModules,
	})
	if err != nil {
		return err
	}
	code, err := machine.Run(mainClass, g.AppArgs)
	if err != nil {
		return err
	}
	if code != 0 {
		osExit(code)
	}
	return nil
}

// parseQualified splits "module/package=target".
func parseQualified(s string) (globals.AddExport, bool) {
	modPkg, target, ok := strings.Cut(s, "=")
	if !ok {
		return globals.AddExport{}, false
	}
	mod, pkg, ok := strings.Cut(modPkg, "/")
	if !ok {
		return globals.AddExport{}, false
	}
	return globals.AddExport{Module: mod, Package: pkg, Target: target}, true
}

var osExit = os.Exit

func main() {
	if err := rootCmd.Execute(); err != nil {
		trace.Error(err.Error())
		shutdown.Exit(shutdown.CLI_ERROR)
	}
}
