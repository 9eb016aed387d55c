package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/chazu/plume/compiler"
	"github.com/chazu/plume/compiler/samples"
	"github.com/chazu/plume/manifest"
	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/dist"
)

const (
	moduleExt   = ".plmc"
	envelopeExt = ".plme"
)

// program resolves a command-line program argument to a module and a name.
// An empty argument selects the manifest entry.
func program(m *manifest.Manifest, arg string) (*bytecode.Module, string, error) {
	if arg == "" {
		arg = m.Project.Entry
	}
	if arg == "" {
		return nil, "", errors.New("no program given and no [project] entry in plume.toml")
	}

	switch filepath.Ext(arg) {
	case moduleExt:
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, "", err
		}
		mod, err := bytecode.Deserialize(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", arg, err)
		}
		return mod, strings.TrimSuffix(filepath.Base(arg), moduleExt), nil

	case envelopeExt:
		env, err := readEnvelope(arg)
		if err != nil {
			return nil, "", err
		}
		mod, err := env.Open()
		return mod, env.Name, err
	}

	s, ok := samples.Get(arg)
	if !ok {
		return nil, "", fmt.Errorf("unknown program %q (see 'plume samples')", arg)
	}
	c := compiler.NewCompiler(nil)
	mod, err := c.Compile(s.Build())
	for _, w := range c.Diagnostics().Warnings() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", s.Name, w)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s:\n%w", s.Name, err)
	}
	return mod, s.Name, nil
}

func readEnvelope(path string) (*dist.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dist.UnmarshalEnvelope(data)
}

// writeOutput writes binary data to path, or to stdout for "-". Binary data
// is never written to a terminal.
func writeOutput(path string, data []byte) error {
	if path == "-" {
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return errors.New("refusing to write binary output to a terminal")
		}
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func firstArg(fs *flag.FlagSet) string {
	if fs.NArg() > 0 {
		return fs.Arg(0)
	}
	return ""
}

func handleSamplesCommand() {
	for _, s := range samples.All() {
		fmt.Printf("%-12s %s\n", s.Name, s.Description)
	}
}

// handleBuildCommand processes the `plume build` subcommand.
// Usage:
//
//	plume build                  # [project] entry -> [build] output
//	plume build -o out.plmc fib  # sample to a custom output
func handleBuildCommand(m *manifest.Manifest, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "Output file (- for stdout)")
	fs.Parse(args)

	mod, name, err := program(m, firstArg(fs))
	if err != nil {
		fatal("%v", err)
	}
	data, err := mod.Serialize()
	if err != nil {
		fatal("serializing %s: %v", name, err)
	}

	out := *output
	if out == "" {
		if firstArg(fs) == "" {
			out = m.OutputPath()
		} else {
			out = name + moduleExt
		}
	}
	if err := writeOutput(out, data); err != nil {
		fatal("%v", err)
	}
	log.Infof("built %s (%d bytes) -> %s", name, len(data), out)
}

// handleRunCommand processes `plume run`. A returned integer becomes the
// exit code.
func handleRunCommand(m *manifest.Manifest, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	trace := fs.Bool("trace", m.VM.Trace, "Log every instruction at debug level")
	fs.Parse(args)

	mod, _, err := program(m, firstArg(fs))
	if err != nil {
		fatal("%v", err)
	}
	execute(m, mod, *trace, os.Stdout)
}

func execute(m *manifest.Manifest, mod *bytecode.Module, trace bool, out io.Writer) {
	opts := append(m.VMOptions(out), bytecode.WithTrace(trace))
	r := bytecode.NewVM(opts...).Execute(mod)
	if !r.OK() {
		fatal("%v", r.Err())
	}
	if n, ok := r.Value.AsInt(); r.HasValue && ok {
		os.Exit(int(n & 0xff))
	}
}

// handleDisCommand processes `plume dis`.
func handleDisCommand(m *manifest.Manifest, args []string) {
	fs := flag.NewFlagSet("dis", flag.ExitOnError)
	fs.Parse(args)

	mod, _, err := program(m, firstArg(fs))
	if err != nil {
		fatal("%v", err)
	}
	fmt.Print(mod.Disassemble())
}
