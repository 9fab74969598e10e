// Package manifest handles caedan.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a caedan.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	Source  Source    `toml:"source"`
	Run     RunConfig `toml:"run"`
	Image   Image     `toml:"image"`

	// Dir is the directory containing the caedan.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Source configures where the program lives.
type Source struct {
	Entry string `toml:"entry"`
}

// RunConfig carries defaults for running the program.
type RunConfig struct {
	StepLimit    int64    `toml:"step-limit"`
	Trace        bool     `toml:"trace"`
	TraceFilters []string `toml:"trace-filters"`
}

// Image configures compiled image output.
type Image struct {
	Output string `toml:"output"`
}

// Load parses a caedan.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "caedan.toml")
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
	if m.Source.Entry == "" {
		m.Source.Entry = "main.cae"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a caedan.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "caedan.toml")
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

// EntryPath returns the absolute path of the program's entry source file.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}

// ImagePath returns the absolute path for compiled image output, or ""
// when no output is configured.
func (m *Manifest) ImagePath() string {
	if m.Image.Output == "" {
		return ""
	}
	if filepath.IsAbs(m.Image.Output) {
		return m.Image.Output
	}
	return filepath.Join(m.Dir, m.Image.Output)
}
