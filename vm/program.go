package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/JonasKaplan/Caedan/compiler"
)

// ---------------------------------------------------------------------------
// Resolved instruction form
// ---------------------------------------------------------------------------

// Op identifies a resolved instruction.
type Op byte

const (
	OpAdd    Op = iota // add Arg to the byte under here's head (mod 256)
	OpMove             // move here's head by Arg (mod capacity)
	OpReset            // return here's head to 0
	OpWrite            // store Arg at here's head without moving it
	OpOutput           // emit the byte under here's head
	OpInput            // read one byte into here's head position
	OpLoop             // run Body while the byte under here's head is nonzero
	OpSend             // copy here's head byte into Ref's head byte
	OpRecv             // copy Ref's head byte into here's head byte
	OpCall             // push a frame running Proc under the clause in Ref
	OpAnon             // push a frame running Body under the clause in Ref
)

var opNames = [...]string{
	OpAdd:    "add",
	OpMove:   "move",
	OpReset:  "reset",
	OpWrite:  "write",
	OpOutput: "output",
	OpInput:  "input",
	OpLoop:   "loop",
	OpSend:   "send",
	OpRecv:   "recv",
	OpCall:   "call",
	OpAnon:   "anon",
}

// String implements the Stringer interface.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// RefKind says how a Ref resolves.
type RefKind byte

const (
	RefNone   RefKind = iota // no region operand (calls without a clause)
	RefBack                  // the frame's origin binding ($)
	RefRegion                // a fixed region, by store index
)

// Ref is a resolved region reference. Send and receive always carry
// RefBack or RefRegion; on calls RefNone means the clause was absent.
type Ref struct {
	Kind   RefKind
	Region int // store index, valid only for RefRegion
}

// Instr is one resolved instruction. Which fields are meaningful depends
// on Op: Arg for add/move/write, Ref for send/recv and call clauses, Proc
// for named calls, Body for loops and anonymous calls.
type Instr struct {
	Op   Op
	Arg  int
	Ref  Ref
	Proc *Proc
	Body []Instr
}

// Proc is a linked procedure.
type Proc struct {
	Name string
	Body []Instr
}

// RegionDef describes one region declaration.
type RegionDef struct {
	Name string
	Size int
}

// Program is a fully linked, validated program: every name a call, send,
// or receive mentions has been resolved, so execution cannot fail a
// lookup.
type Program struct {
	Regions []RegionDef
	Procs   []*Proc

	// Entry is the procedure named main; EntryRegion is the store index
	// of the region named main.
	Entry       *Proc
	EntryRegion int

	// SourceHash is the hex SHA-256 of the source text this program was
	// compiled from. Empty for programs rebuilt from an image without one.
	SourceHash string
}

// Proc looks a linked procedure up by name, or nil.
func (p *Program) Proc(name string) *Proc {
	for _, proc := range p.Procs {
		if proc.Name == name {
			return proc
		}
	}
	return nil
}

// RegionIndex returns the store index for a region name, or -1.
func (p *Program) RegionIndex(name string) int {
	for i, def := range p.Regions {
		if def.Name == name {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Linking
// ---------------------------------------------------------------------------

// linker resolves a checked AST into the executable form.
type linker struct {
	regions map[string]int
	procs   map[string]*Proc
}

// Load validates a parsed program and links it. The diagnostics from
// semantic analysis come back as the error, so callers that already ran
// compiler.Check can pass its result straight in.
func Load(prog *compiler.Program) (*Program, error) {
	if diags := compiler.Analyze(prog); len(diags) > 0 {
		return nil, diags
	}
	return link(prog)
}

// Compile parses, validates, and links source text in one step.
func Compile(source string) (*Program, error) {
	ast, diags := compiler.Check(source)
	if len(diags) > 0 {
		return nil, diags
	}
	p, err := link(ast)
	if err != nil {
		return nil, err
	}
	p.SourceHash = SourceHash(source)
	return p, nil
}

// SourceHash returns the hex SHA-256 of source text. Image files and the
// compile cache use it to pair compiled programs with their sources.
func SourceHash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// link lowers a validated AST. It allocates every procedure before
// resolving any body so calls can refer to procedures in any order,
// including to themselves.
func link(prog *compiler.Program) (*Program, error) {
	ln := &linker{
		regions: make(map[string]int, len(prog.Regions)),
		procs:   make(map[string]*Proc, len(prog.Procs)),
	}

	out := &Program{
		Regions: make([]RegionDef, len(prog.Regions)),
		Procs:   make([]*Proc, len(prog.Procs)),
	}

	for i, r := range prog.Regions {
		out.Regions[i] = RegionDef{Name: r.Name, Size: r.Size}
		ln.regions[r.Name] = i
	}

	for i, pd := range prog.Procs {
		proc := &Proc{Name: pd.Name}
		out.Procs[i] = proc
		ln.procs[pd.Name] = proc
	}

	for i, pd := range prog.Procs {
		body, err := ln.linkBody(pd.Body)
		if err != nil {
			return nil, err
		}
		out.Procs[i].Body = body
	}

	out.Entry = ln.procs[compiler.EntryPointName]
	entry, ok := ln.regions[compiler.EntryPointName]
	if !ok || out.Entry == nil {
		return nil, fmt.Errorf("link: program has no %s entry point", compiler.EntryPointName)
	}
	out.EntryRegion = entry

	return out, nil
}

func (ln *linker) linkBody(body []compiler.Instr) ([]Instr, error) {
	out := make([]Instr, 0, len(body))
	for _, in := range body {
		linked, err := ln.linkInstr(in)
		if err != nil {
			return nil, err
		}
		out = append(out, linked)
	}
	return out, nil
}

func (ln *linker) linkInstr(in compiler.Instr) (Instr, error) {
	switch n := in.(type) {
	case *compiler.Increment:
		return Instr{Op: OpAdd, Arg: 1}, nil
	case *compiler.Decrement:
		return Instr{Op: OpAdd, Arg: -1}, nil
	case *compiler.MoveRight:
		return Instr{Op: OpMove, Arg: 1}, nil
	case *compiler.MoveLeft:
		return Instr{Op: OpMove, Arg: -1}, nil
	case *compiler.ResetHead:
		return Instr{Op: OpReset}, nil
	case *compiler.WriteLiteral:
		return Instr{Op: OpWrite, Arg: int(n.Value)}, nil
	case *compiler.Output:
		return Instr{Op: OpOutput}, nil
	case *compiler.Input:
		return Instr{Op: OpInput}, nil
	case *compiler.Loop:
		body, err := ln.linkBody(n.Body)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpLoop, Body: body}, nil
	case *compiler.Send:
		ref, err := ln.linkRef(n.Target)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpSend, Ref: ref}, nil
	case *compiler.Receive:
		ref, err := ln.linkRef(n.Target)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpRecv, Ref: ref}, nil
	case *compiler.Call:
		proc, ok := ln.procs[n.Proc]
		if !ok {
			return Instr{}, fmt.Errorf("link: undefined procedure %q", n.Proc)
		}
		ref, err := ln.linkRef(n.Clause)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpCall, Proc: proc, Ref: ref}, nil
	case *compiler.AnonCall:
		body, err := ln.linkBody(n.Body)
		if err != nil {
			return Instr{}, err
		}
		ref, err := ln.linkRef(n.Clause)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: OpAnon, Body: body, Ref: ref}, nil
	default:
		return Instr{}, fmt.Errorf("link: unknown instruction %T", in)
	}
}

func (ln *linker) linkRef(ref *compiler.RegionRef) (Ref, error) {
	if ref == nil {
		return Ref{Kind: RefNone}, nil
	}
	if ref.Back {
		return Ref{Kind: RefBack}, nil
	}
	idx, ok := ln.regions[ref.Name]
	if !ok {
		return Ref{}, fmt.Errorf("link: undefined region %q", ref.Name)
	}
	return Ref{Kind: RefRegion, Region: idx}, nil
}
