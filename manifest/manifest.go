// Package manifest handles plume.toml project configuration.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/plume/pkg/bytecode"
)

// FileName is the name of the project configuration file.
const FileName = "plume.toml"

// Manifest represents a plume.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	VM      VMConfig    `toml:"vm"`
	Log     LogConfig   `toml:"log"`
	Store   StoreConfig `toml:"store"`
	Build   BuildConfig `toml:"build"`

	// Dir is the directory containing the plume.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	// Entry names the program to build, one of the registered samples.
	Entry string `toml:"entry"`
}

// VMConfig configures execution.
type VMConfig struct {
	Trace        bool `toml:"trace"`
	MaxCallDepth int  `toml:"max-call-depth"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig locates the module store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// BuildConfig configures build output.
type BuildConfig struct {
	Output string `toml:"output"`
}

// Default returns the configuration used when no plume.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.VM.MaxCallDepth <= 0 {
		m.VM.MaxCallDepth = bytecode.DefaultMaxCallDepth
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".plume", "modules.db")
	}
	if m.Build.Output == "" {
		m.Build.Output = m.Project.Name + ".plmc"
	}
}

// Load parses a plume.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a plume.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the module store.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

// OutputPath returns the absolute path of the build output.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// LogFile returns the absolute log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// VMOptions returns the VM options selected by the configuration, writing
// println output to out.
func (m *Manifest) VMOptions(out io.Writer) []bytecode.Option {
	return []bytecode.Option{
		bytecode.WithOutput(out),
		bytecode.WithTrace(m.VM.Trace),
		bytecode.WithMaxCallDepth(m.VM.MaxCallDepth),
	}
}
