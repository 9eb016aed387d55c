package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/plume/manifest"
	"github.com/chazu/plume/pkg/dist"
	"github.com/chazu/plume/pkg/store"
)

// handleStoreCommand processes `plume store <put|get|ls|rm|run>`.
func handleStoreCommand(m *manifest.Manifest, args []string) {
	if len(args) == 0 {
		fatal("store requires a subcommand: put, get, ls, rm, run")
	}

	s, err := store.Open(m.StorePath())
	if err != nil {
		fatal("%v", err)
	}
	defer s.Close()

	sub, rest := args[0], args[1:]
	switch sub {
	case "put":
		storePut(m, s, rest)
	case "get":
		storeGet(s, rest)
	case "ls":
		storeList(s)
	case "rm":
		if len(rest) != 1 {
			fatal("store rm requires a module name")
		}
		if err := s.Delete(rest[0]); err != nil {
			fatal("%s: %v", rest[0], err)
		}
	case "run":
		if len(rest) != 1 {
			fatal("store run requires a module name")
		}
		mod, err := s.Load(rest[0])
		if err != nil {
			fatal("%s: %v", rest[0], err)
		}
		s.Close()
		execute(m, mod, m.VM.Trace, os.Stdout)
	default:
		fatal("unknown store subcommand %q", sub)
	}
}

func storePut(m *manifest.Manifest, s *store.Store, args []string) {
	fs := flag.NewFlagSet("store put", flag.ExitOnError)
	name := fs.String("name", "", "Name to store the module under")
	fs.Parse(args)

	mod, progName, err := program(m, firstArg(fs))
	if err != nil {
		fatal("%v", err)
	}
	if *name == "" {
		*name = progName
	}
	hash, err := s.PutModule(*name, mod)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s %x\n", *name, hash)
}

func storeGet(s *store.Store, args []string) {
	fs := flag.NewFlagSet("store get", flag.ExitOnError)
	output := fs.String("o", "", "Output envelope file (- for stdout)")
	byHash := fs.Bool("hash", false, "Look the module up by hex content hash")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatal("store get requires a module name")
	}
	key := fs.Arg(0)

	var env *dist.Envelope
	var err error
	if *byHash {
		var h [32]byte
		raw, decErr := hex.DecodeString(key)
		if decErr != nil || len(raw) != len(h) {
			fatal("invalid hash %q", key)
		}
		copy(h[:], raw)
		env, err = s.GetByHash(h)
	} else {
		env, err = s.Get(key)
	}
	if err != nil {
		fatal("%s: %v", key, err)
	}

	data, err := dist.MarshalEnvelope(env)
	if err != nil {
		fatal("encoding envelope: %v", err)
	}
	out := *output
	if out == "" {
		out = env.Name + envelopeExt
	}
	if err := writeOutput(out, data); err != nil {
		fatal("%v", err)
	}
}

func storeList(s *store.Store) {
	entries, err := s.List()
	if err != nil {
		fatal("%v", err)
	}
	for _, e := range entries {
		fmt.Printf("%-20s %x %6d %s %s\n", e.Name, e.Hash[:8], e.Size,
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.ID)
	}
}
