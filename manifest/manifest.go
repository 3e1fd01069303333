// Package manifest handles loom.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a loom.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	Source  Source   `toml:"source"`
	VM      VMConfig `toml:"vm"`

	// Dir is the directory containing the loom.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// VMConfig configures interpreter behavior.
type VMConfig struct {
	// YieldOnSend makes every message send a scheduler yield point.
	// Off by default: explicit yields and blocking sync operations are
	// the only suspension points, which keeps interleaving
	// deterministic.
	YieldOnSend bool `toml:"yield-on-send"`

	// Record is the path of the method-source store database. Empty
	// disables recording.
	Record string `toml:"record"`
}

// Load parses a loom.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "loom.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir
	return &m, nil
}

// Exists reports whether dir contains a loom.toml.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "loom.toml"))
	return err == nil
}

// SourceFiles returns the .loom files under the manifest's source
// dirs, in walk order. Without configured dirs it returns nothing.
func (m *Manifest) SourceFiles() ([]string, error) {
	var out []string
	for _, dir := range m.Source.Dirs {
		root := filepath.Join(m.Dir, dir)
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".loom" {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
