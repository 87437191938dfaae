// Package project locates the project being checked and resolves the
// version its gates are evaluated against.
package project

import (
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// Project marker files, checked in this order.
const (
	ConfigFileName    = "allowuntil.yaml"
	AltConfigFileName = "allowuntil.yml"
	VersionFileName   = "VERSION"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for
// project markers.
const maxUpwardSearchLevels = 10

// Project describes the tree being checked.
type Project struct {
	Root       string // absolute project root
	Module     string // module path from go.mod, empty outside a module
	ConfigFile string // allowuntil config file, empty when absent
	GoMod      string // go.mod path, empty outside a module
}

// Find searches upward from startDir for a directory containing an
// allowuntil config file or a go.mod. When neither is found within
// maxUpwardSearchLevels the start directory itself is the project root,
// so the tool still works in bare trees.
func Find(startDir string) (*Project, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	dir := abs
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p, ok := markerIn(dir); ok {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return &Project{Root: abs}, nil
}

// markerIn inspects one directory for project markers.
func markerIn(dir string) (*Project, bool) {
	p := &Project{Root: dir}

	for _, name := range []string{ConfigFileName, AltConfigFileName} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			p.ConfigFile = candidate
			break
		}
	}

	gomod := filepath.Join(dir, "go.mod")
	if _, err := os.Stat(gomod); err == nil {
		p.GoMod = gomod
		if data, err := os.ReadFile(gomod); err == nil { //nolint:gosec // G304: path is dir/go.mod
			p.Module = modfile.ModulePath(data)
		}
	}

	if p.ConfigFile == "" && p.GoMod == "" {
		return nil, false
	}
	return p, true
}
