package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/plume/manifest"
	"github.com/chazu/plume/pkg/dist"
)

// handlePackCommand processes `plume pack`: compile or load a program and
// seal it into a CBOR envelope.
func handlePackCommand(m *manifest.Manifest, args []string) {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	output := fs.String("o", "", "Output file (- for stdout)")
	name := fs.String("name", "", "Name recorded in the envelope")
	fs.Parse(args)

	mod, progName, err := program(m, firstArg(fs))
	if err != nil {
		fatal("%v", err)
	}
	if *name == "" {
		*name = progName
	}
	env, err := dist.Seal(*name, mod)
	if err != nil {
		fatal("%v", err)
	}
	data, err := dist.MarshalEnvelope(env)
	if err != nil {
		fatal("encoding envelope: %v", err)
	}

	out := *output
	if out == "" {
		out = *name + envelopeExt
	}
	if err := writeOutput(out, data); err != nil {
		fatal("%v", err)
	}
	fmt.Fprintf(os.Stderr, "%s %s %x\n", out, env.ID, env.Hash)
}

// handleUnpackCommand processes `plume unpack`: verify an envelope and write
// the module it carries.
func handleUnpackCommand(args []string) {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	output := fs.String("o", "", "Output file (- for stdout)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatal("unpack requires an envelope file")
	}
	env, err := readEnvelope(fs.Arg(0))
	if err != nil {
		fatal("%v", err)
	}
	if err := env.Verify(); err != nil {
		fatal("%v", err)
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(fs.Arg(0), envelopeExt) + moduleExt
	}
	if err := writeOutput(out, env.Module); err != nil {
		fatal("%v", err)
	}
	log.Infof("unpacked %s (created %s) -> %s", env.Name, env.CreatedAt.Format("2006-01-02 15:04:05"), out)
}
