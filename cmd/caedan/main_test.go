package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonasKaplan/Caedan/cache"
	"github.com/JonasKaplan/Caedan/vm"
)

// corruptCacheEntry replaces the cached image for a source with garbage.
func corruptCacheEntry(t *testing.T, source string) {
	t.Helper()
	c, err := cache.OpenDefault()
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	defer c.Close()
	if err := c.Put(vm.SourceHash(source), []byte("not an image")); err != nil {
		t.Fatalf("corrupting cache: %v", err)
	}
}

const adderSource = `region main[2];

proc read_digit: ,------------------------------------------------;
proc add: >[-<+>]<;
proc print_byte: ++++++++++++++++++++++++++++++++++++++++++++++++.;

proc main: read_digit > read_digit < add print_byte;
`

func writeSource(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheckFileClean(t *testing.T) {
	path := writeSource(t, "adder.cae", adderSource)

	var errOut bytes.Buffer
	if code := checkFile(path, &errOut); code != 0 {
		t.Fatalf("checkFile = %d, stderr %q", code, errOut.String())
	}
}

func TestCheckFileReportsDiagnostics(t *testing.T) {
	path := writeSource(t, "bad.cae", "proc bad: ([)];")

	var errOut bytes.Buffer
	if code := checkFile(path, &errOut); code != 1 {
		t.Fatalf("checkFile = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "bracket scope error") {
		t.Errorf("stderr %q does not mention the bracket scope error", errOut.String())
	}
}

func TestLoadProgramWithoutCache(t *testing.T) {
	path := writeSource(t, "adder.cae", adderSource)

	prog, err := loadProgram(path, false, false)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}

	var out bytes.Buffer
	err = runProgram(prog, runOptions{in: strings.NewReader("34"), out: &out})
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out.String() != "7" {
		t.Errorf("output = %q, want %q", out.String(), "7")
	}
}

func TestLoadProgramUsesCache(t *testing.T) {
	t.Setenv("CAEDAN_CACHE_DB", filepath.Join(t.TempDir(), "cache.db"))

	path := writeSource(t, "adder.cae", adderSource)

	// First load populates the cache; the second load hits it. Both must
	// behave identically.
	for i := 0; i < 2; i++ {
		prog, err := loadProgram(path, true, false)
		if err != nil {
			t.Fatalf("loadProgram pass %d: %v", i, err)
		}
		var out bytes.Buffer
		if err := runProgram(prog, runOptions{in: strings.NewReader("25"), out: &out}); err != nil {
			t.Fatalf("runProgram pass %d: %v", i, err)
		}
		if out.String() != "7" {
			t.Errorf("pass %d output = %q, want %q", i, out.String(), "7")
		}
	}
}

func TestLoadProgramSurvivesCorruptCacheEntry(t *testing.T) {
	t.Setenv("CAEDAN_CACHE_DB", filepath.Join(t.TempDir(), "cache.db"))

	path := writeSource(t, "adder.cae", adderSource)
	if _, err := loadProgram(path, true, false); err != nil {
		t.Fatalf("loadProgram: %v", err)
	}

	// Corrupt the cached image, then load again: the CLI must fall back
	// to a fresh compile.
	corruptCacheEntry(t, adderSource)

	prog, err := loadProgram(path, true, false)
	if err != nil {
		t.Fatalf("loadProgram after corruption: %v", err)
	}
	var out bytes.Buffer
	if err := runProgram(prog, runOptions{in: strings.NewReader("34"), out: &out}); err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if out.String() != "7" {
		t.Errorf("output = %q, want %q", out.String(), "7")
	}
}

func TestLoadProgramCompileError(t *testing.T) {
	path := writeSource(t, "bad.cae", "region main[1]; proc main: phantom;")

	if _, err := loadProgram(path, false, false); err == nil {
		t.Fatal("loadProgram on an invalid program must fail")
	}
}
