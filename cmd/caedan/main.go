// Caedan CLI - the main entry point for running Caedan programs
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/JonasKaplan/Caedan/cache"
	"github.com/JonasKaplan/Caedan/compiler"
	"github.com/JonasKaplan/Caedan/manifest"
	"github.com/JonasKaplan/Caedan/server"
	"github.com/JonasKaplan/Caedan/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	checkOnly := flag.Bool("check", false, "Parse and validate only, do not run")
	trace := flag.Bool("trace", false, "Trace calls and returns to stderr")
	stepLimit := flag.Int64("step-limit", 0, "Abort after N execution steps (0 = unlimited)")
	imageOut := flag.String("o", "", "Compile to an image file instead of running")
	imageIn := flag.String("image", "", "Run a prebuilt image file")
	noCache := flag.Bool("no-cache", false, "Bypass the compile cache")
	lspMode := flag.Bool("lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: caedan [options] [file.cae]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Caedan program. With no file and no -i, looks for a caedan.toml\n")
		fmt.Fprintf(os.Stderr, "manifest in the current directory or any parent and runs its entry file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  caedan examples/adder.cae          # Run a source file\n")
		fmt.Fprintf(os.Stderr, "  caedan -check examples/backref.cae # Validate without running\n")
		fmt.Fprintf(os.Stderr, "  caedan -o adder.cimg examples/adder.cae  # Compile to an image\n")
		fmt.Fprintf(os.Stderr, "  caedan -image adder.cimg           # Run a prebuilt image\n")
		fmt.Fprintf(os.Stderr, "  caedan -i                          # Start the REPL\n")
		fmt.Fprintf(os.Stderr, "  caedan -lsp                        # Start the language server\n")
	}
	flag.Parse()

	if *lspMode {
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Language server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive {
		runREPL(os.Stdin, os.Stdout, *stepLimit)
		return
	}

	opts := runOptions{
		verbose:   *verbose,
		trace:     *trace,
		stepLimit: *stepLimit,
		useCache:  !*noCache,
		in:        os.Stdin,
		out:       os.Stdout,
	}

	if *imageIn != "" {
		prog, err := vm.LoadImage(*imageIn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading image: %v\n", err)
			os.Exit(1)
		}
		if err := runProgram(prog, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	path := flag.Arg(0)
	if path == "" {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if m == nil {
			flag.Usage()
			os.Exit(2)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Using manifest in %s\n", m.Dir)
		}
		path = m.EntryPath()
		if opts.stepLimit == 0 {
			opts.stepLimit = m.Run.StepLimit
		}
		if m.Run.Trace {
			opts.trace = true
			opts.traceFilters = m.Run.TraceFilters
		}
	}

	if *checkOnly {
		os.Exit(checkFile(path, os.Stderr))
	}

	prog, err := loadProgram(path, opts.useCache, opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *imageOut != "" {
		if err := prog.SaveImage(*imageOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing image: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", *imageOut)
		}
		return
	}

	if err := runProgram(prog, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runOptions carries everything runProgram needs beyond the program.
type runOptions struct {
	verbose      bool
	trace        bool
	traceFilters []string
	stepLimit    int64
	useCache     bool
	in           io.Reader
	out          io.Writer
}

// checkFile parses and validates a source file, printing any diagnostics.
// Returns the process exit code.
func checkFile(path string, errOut io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	if _, diags := compiler.Check(string(source)); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(errOut, "%s: %s\n", path, d.Error())
		}
		return 1
	}
	return 0
}

// loadProgram compiles a source file, going through the compile cache
// unless it is bypassed. Cache failures degrade to a plain compile; a
// stale or unreachable cache must never block a run.
func loadProgram(path string, useCache bool, verbose bool) (*vm.Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error: %w", err)
	}

	if !useCache {
		prog, err := vm.Compile(string(source))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil
	}

	c, cacheErr := cache.OpenDefault()
	if cacheErr != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Warning: compile cache unavailable: %v\n", cacheErr)
		}
		prog, err := vm.Compile(string(source))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil
	}
	defer c.Close()

	hash := vm.SourceHash(string(source))
	if data, err := c.Get(hash); err == nil {
		if prog, err := vm.LoadImageFromBytes(data); err == nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "Cache hit for %s\n", path)
			}
			return prog, nil
		}
		// A corrupt cached image falls through to a fresh compile.
		c.Delete(hash)
	} else if !errors.Is(err, cache.ErrNotFound) && verbose {
		fmt.Fprintf(os.Stderr, "Warning: cache lookup failed: %v\n", err)
	}

	prog, err := vm.Compile(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var buf bytes.Buffer
	imgErr := prog.SaveImageTo(&buf)
	if imgErr == nil {
		imgErr = c.Put(hash, buf.Bytes())
	}
	if imgErr != nil && verbose {
		fmt.Fprintf(os.Stderr, "Warning: cache store failed: %v\n", imgErr)
	}

	return prog, nil
}

// runProgram executes a compiled program with the configured collaborators.
func runProgram(prog *vm.Program, opts runOptions) error {
	machineOpts := []vm.Option{
		vm.WithInput(opts.in),
		vm.WithOutput(opts.out),
	}
	if opts.stepLimit > 0 {
		machineOpts = append(machineOpts, vm.WithStepLimit(opts.stepLimit))
	}
	if opts.trace {
		machineOpts = append(machineOpts, vm.WithTracer(vm.NewTracer(os.Stderr, opts.traceFilters...)))
	}

	m := vm.NewMachine(prog, machineOpts...)
	err := m.Run()

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "Executed %d steps\n", m.Steps())
	}

	return err
}
