// Plume CLI - compile, run and distribute Plume programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/plume/manifest"
)

var log = commonlog.GetLogger("plume.cli")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dir := flag.String("C", ".", "Project directory (searched upward for plume.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: plume [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  samples                      List the built-in sample programs\n")
		fmt.Fprintf(os.Stderr, "  build [-o file] [program]    Compile a program to a module file\n")
		fmt.Fprintf(os.Stderr, "  run [-trace] [program]       Compile or load a program and execute it\n")
		fmt.Fprintf(os.Stderr, "  dis [program]                Disassemble a program\n")
		fmt.Fprintf(os.Stderr, "  pack [-o file] [program]     Seal a program into a distribution envelope\n")
		fmt.Fprintf(os.Stderr, "  unpack [-o file] <envelope>  Verify an envelope and extract its module\n")
		fmt.Fprintf(os.Stderr, "  store put|get|ls|rm|run      Manage the module store\n")
		fmt.Fprintf(os.Stderr, "\nA program is a sample name, a module file (.plmc) or an envelope (.plme).\n")
		fmt.Fprintf(os.Stderr, "Without one, [project] entry from plume.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*dir)
	}

	verbosity := m.Log.Verbosity
	if *verbose {
		verbosity += 2
	}
	commonlog.Configure(verbosity, m.LogFile())

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "samples":
		handleSamplesCommand()
	case "build":
		handleBuildCommand(m, rest)
	case "run":
		handleRunCommand(m, rest)
	case "dis":
		handleDisCommand(m, rest)
	case "pack":
		handlePackCommand(m, rest)
	case "unpack":
		handleUnpackCommand(rest)
	case "store":
		handleStoreCommand(m, rest)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// fatal reports err and exits.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
