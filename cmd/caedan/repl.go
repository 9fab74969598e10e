package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonasKaplan/Caedan/compiler"
	"github.com/JonasKaplan/Caedan/vm"
)

// repl accumulates region and procedure declarations line by line and runs
// the accumulated program on demand.
type repl struct {
	lines     []string
	out       io.Writer
	stepLimit int64
}

// runREPL starts an interactive read-eval-print loop.
func runREPL(in io.Reader, out io.Writer, stepLimit int64) {
	fmt.Fprintln(out, "Caedan REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Fprintln(out, "Enter declarations, then :run to execute.")
	fmt.Fprintln(out)

	r := &repl{out: out, stepLimit: stepLimit}
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, ">> ")

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())

		if line == "exit" || line == "quit" {
			break
		}

		if strings.HasPrefix(line, ":") {
			r.command(line)
			continue
		}

		if line != "" {
			r.add(line)
		}
	}

	fmt.Fprintln(out)
}

// add appends a declaration line after checking that it still parses
// against the accumulated program.
func (r *repl) add(line string) {
	candidate := append(append([]string{}, r.lines...), line)
	if _, diags := compiler.Parse(r.source(candidate)); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(r.out, "Error: %s\n", d.Error())
		}
		return
	}
	r.lines = candidate
}

// command handles REPL meta-commands.
func (r *repl) command(cmd string) {
	name, arg, _ := strings.Cut(cmd, " ")

	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :run              Validate and run the accumulated program")
		fmt.Fprintln(r.out, "  :show             Show the accumulated program")
		fmt.Fprintln(r.out, "  :clear            Discard the accumulated program")
		fmt.Fprintln(r.out, "  :load <file>      Append declarations from a file")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")

	case ":run":
		r.run()

	case ":show":
		if len(r.lines) == 0 {
			fmt.Fprintln(r.out, "(empty)")
			return
		}
		for _, line := range r.lines {
			fmt.Fprintln(r.out, line)
		}

	case ":clear":
		r.lines = nil
		fmt.Fprintln(r.out, "Cleared")

	case ":load":
		if arg == "" {
			fmt.Fprintln(r.out, "Usage: :load <file>")
			return
		}
		r.load(arg)

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", name)
	}
}

// run compiles and executes the accumulated program.
func (r *repl) run() {
	prog, err := vm.Compile(r.source(r.lines))
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	opts := []vm.Option{
		vm.WithInput(os.Stdin),
		vm.WithOutput(r.out),
	}
	if r.stepLimit > 0 {
		opts = append(opts, vm.WithStepLimit(r.stepLimit))
	}

	m := vm.NewMachine(prog, opts...)
	if err := m.Run(); err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out)
}

// load appends declarations from a file.
func (r *repl) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}

	candidate := append(append([]string{}, r.lines...), string(data))
	if _, diags := compiler.Parse(r.source(candidate)); len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(r.out, "Error: %s: %s\n", path, d.Error())
		}
		return
	}
	r.lines = candidate
	fmt.Fprintf(r.out, "Loaded %s\n", path)
}

func (r *repl) source(lines []string) string {
	return strings.Join(lines, "\n")
}
