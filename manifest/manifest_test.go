package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/plume/pkg/bytecode"
	"github.com/chazu/plume/pkg/symbols"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"
entry = "factorial"

[vm]
trace = true
max-call-depth = 64

[log]
verbosity = 2
file = "logs/plume.log"

[store]
path = "/var/lib/plume/modules.db"

[build]
output = "out/demo.plmc"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Project.Entry != "factorial" {
		t.Errorf("project entry = %q, want factorial", m.Project.Entry)
	}
	if !m.VM.Trace || m.VM.MaxCallDepth != 64 {
		t.Errorf("vm = %+v", m.VM)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got := m.LogFile(); got == nil || *got != filepath.Join(m.Dir, "logs", "plume.log") {
		t.Errorf("log file = %v", got)
	}
	if m.StorePath() != "/var/lib/plume/modules.db" {
		t.Errorf("store path = %q", m.StorePath())
	}
	if m.OutputPath() != filepath.Join(m.Dir, "out", "demo.plmc") {
		t.Errorf("output path = %q", m.OutputPath())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.VM.MaxCallDepth != bytecode.DefaultMaxCallDepth {
		t.Errorf("max call depth = %d", m.VM.MaxCallDepth)
	}
	if m.StorePath() != filepath.Join(m.Dir, ".plume", "modules.db") {
		t.Errorf("store path = %q", m.StorePath())
	}
	if m.Build.Output != "minimal.plmc" {
		t.Errorf("build output = %q", m.Build.Output)
	}
	if m.LogFile() != nil {
		t.Errorf("log file = %v, want nil", *m.LogFile())
	}
}

func TestLoadManifestParseError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname = ")
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "parent"
`)
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "parent" {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		// A plume.toml above the temp dir would be found; only check the
		// negative case when none exists.
		if _, statErr := os.Stat(filepath.Join(m.Dir, FileName)); statErr != nil {
			t.Errorf("unexpected manifest %+v", m)
		}
	}
}

func TestVMOptions(t *testing.T) {
	m := Default(t.TempDir())
	m.VM.MaxCallDepth = 2

	mod := bytecode.NewModule(nil)
	main := symbols.NewFunctionSymbol("main", symbols.NewFunctionType(symbols.Void))
	// main calls itself forever.
	main.Code = []byte{byte(bytecode.OpInvokestatic), 0, 3, byte(bytecode.OpReturn)}
	mod.AddFunction(main)
	mod.Entry = main

	var out bytes.Buffer
	r := bytecode.NewVM(m.VMOptions(&out)...).Execute(mod)
	if r.Failure != bytecode.FailCallDepth {
		t.Errorf("failure = %s, want %s", r.Failure, bytecode.FailCallDepth)
	}
}
