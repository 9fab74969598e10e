// Package conformance runs the YAML-driven end-to-end suite. Each fixture
// under testdata/ declares a program, its input, and what must come out the
// other side: output bytes, a diagnostic kind for must-fail programs, a
// run-time failure, or region state after the run.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Suite represents a complete YAML fixture file.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Tests       []Case `yaml:"tests"`
}

// Case is a single program plus its expectations. Exactly one of Output,
// Error, or RunError carries the primary expectation; Regions may
// accompany Output.
type Case struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Input  string `yaml:"input,omitempty"`

	// Output is the exact byte sequence the program must write.
	Output string `yaml:"output,omitempty"`

	// Error names the diagnostic kind a must-fail program produces
	// before execution (e.g. "bracket scope error").
	Error string `yaml:"error,omitempty"`

	// RunError names an expected run-time failure ("step limit").
	RunError string `yaml:"run-error,omitempty"`

	// StepLimit bounds the run; 0 leaves the machine unbounded.
	StepLimit int64 `yaml:"step-limit,omitempty"`

	// Regions describes expected region state after a successful run.
	Regions []RegionState `yaml:"regions,omitempty"`
}

// RegionState is the expected post-run state of one region. Cells is a
// prefix: cells past its length are not checked.
type RegionState struct {
	Name  string `yaml:"name"`
	Head  *int   `yaml:"head,omitempty"`
	Cells []int  `yaml:"cells,omitempty"`
}

// LoadedCase pairs a case with the fixture file it came from.
type LoadedCase struct {
	File  string
	Suite string
	Case  Case
}

// LoadAll reads every fixture under dir, sorted by file name so runs are
// deterministic.
func LoadAll(dir string) ([]LoadedCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fixture directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".yaml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var loaded []LoadedCase
	for _, name := range files {
		suite, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, c := range suite.Tests {
			loaded = append(loaded, LoadedCase{
				File:  name,
				Suite: suite.Name,
				Case:  c,
			})
		}
	}

	return loaded, nil
}

func loadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	if suite.Name == "" {
		return nil, fmt.Errorf("fixture has no name")
	}
	for i, c := range suite.Tests {
		if c.Name == "" {
			return nil, fmt.Errorf("test %d has no name", i)
		}
		if c.Source == "" {
			return nil, fmt.Errorf("test %q has no source", c.Name)
		}
		if c.Error != "" && (c.Output != "" || c.RunError != "" || len(c.Regions) > 0) {
			return nil, fmt.Errorf("test %q expects a diagnostic and run results at once", c.Name)
		}
	}

	return &suite, nil
}
