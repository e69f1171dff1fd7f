// Package manifest handles wollok.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a wollok.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	Source  Source   `toml:"source"`
	VM      VMConfig `toml:"vm"`

	// Dir is the directory containing the wollok.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where images and entry points live.
type Source struct {
	Image string `toml:"image"`
	Entry string `toml:"entry"`
}

// VMConfig overrides evaluation tunables. Zero values keep the defaults.
type VMConfig struct {
	DecimalPrecision    int `toml:"decimal-precision"`
	MaxFrameStackSize   int `toml:"max-frame-stack"`
	MaxOperandStackSize int `toml:"max-operand-stack"`
}

// Load parses a wollok.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "wollok.toml")
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

	// Defaults
	if m.Source.Image == "" {
		m.Source.Image = "main.image"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a wollok.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "wollok.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
