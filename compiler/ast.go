package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: regions, procedures and instruction trees
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan builds a span from two positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Instr is the interface for instruction nodes.
type Instr interface {
	Node
	instr() // marker method
	String() string
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Program is the root node: every region and procedure declared in a source
// file, in declaration order.
type Program struct {
	SpanVal Span
	Regions []*RegionDecl
	Procs   []*ProcDecl
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

func (n *Program) String() string {
	var sb strings.Builder
	for _, r := range n.Regions {
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	for _, p := range n.Procs {
		sb.WriteString(p.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// RegionDecl declares a named region with a fixed capacity.
type RegionDecl struct {
	SpanVal Span
	Name    string
	Size    int
}

func (n *RegionDecl) Span() Span { return n.SpanVal }
func (n *RegionDecl) node()      {}

func (n *RegionDecl) String() string {
	return fmt.Sprintf("region %s[%d];", n.Name, n.Size)
}

// ProcDecl declares a named procedure and its instruction body.
type ProcDecl struct {
	SpanVal Span
	Name    string
	Body    []Instr
}

func (n *ProcDecl) Span() Span { return n.SpanVal }
func (n *ProcDecl) node()      {}

func (n *ProcDecl) String() string {
	return fmt.Sprintf("proc %s: %s;", n.Name, BodyString(n.Body))
}

// RegionRef names a region, either directly or through the back-reference.
type RegionRef struct {
	SpanVal Span
	Name    string // region name; empty when Back is set
	Back    bool   // true for $
}

func (n *RegionRef) Span() Span { return n.SpanVal }
func (n *RegionRef) node()      {}

func (n *RegionRef) String() string {
	if n.Back {
		return "$"
	}
	return n.Name
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Increment adds one to the byte under the current region's head.
type Increment struct {
	SpanVal Span
}

func (n *Increment) Span() Span     { return n.SpanVal }
func (n *Increment) node()          {}
func (n *Increment) instr()         {}
func (n *Increment) String() string { return "+" }

// Decrement subtracts one from the byte under the current region's head.
type Decrement struct {
	SpanVal Span
}

func (n *Decrement) Span() Span     { return n.SpanVal }
func (n *Decrement) node()          {}
func (n *Decrement) instr()         {}
func (n *Decrement) String() string { return "-" }

// MoveRight advances the current region's head by one cell.
type MoveRight struct {
	SpanVal Span
}

func (n *MoveRight) Span() Span     { return n.SpanVal }
func (n *MoveRight) node()          {}
func (n *MoveRight) instr()         {}
func (n *MoveRight) String() string { return ">" }

// MoveLeft retreats the current region's head by one cell.
type MoveLeft struct {
	SpanVal Span
}

func (n *MoveLeft) Span() Span     { return n.SpanVal }
func (n *MoveLeft) node()          {}
func (n *MoveLeft) instr()         {}
func (n *MoveLeft) String() string { return "<" }

// ResetHead moves the current region's head back to cell zero.
type ResetHead struct {
	SpanVal Span
}

func (n *ResetHead) Span() Span     { return n.SpanVal }
func (n *ResetHead) node()          {}
func (n *ResetHead) instr()         {}
func (n *ResetHead) String() string { return "~" }

// WriteLiteral stores a byte at the current head without moving it.
type WriteLiteral struct {
	SpanVal Span
	Value   byte
}

func (n *WriteLiteral) Span() Span     { return n.SpanVal }
func (n *WriteLiteral) node()          {}
func (n *WriteLiteral) instr()         {}
func (n *WriteLiteral) String() string { return fmt.Sprintf("\"%02x", n.Value) }

// Output emits the byte under the current head.
type Output struct {
	SpanVal Span
}

func (n *Output) Span() Span     { return n.SpanVal }
func (n *Output) node()          {}
func (n *Output) instr()         {}
func (n *Output) String() string { return "." }

// Input reads one byte into the cell under the current head.
type Input struct {
	SpanVal Span
}

func (n *Input) Span() Span     { return n.SpanVal }
func (n *Input) node()          {}
func (n *Input) instr()         {}
func (n *Input) String() string { return "," }

// Loop runs its body while the byte under the current head is nonzero,
// testing before every iteration.
type Loop struct {
	SpanVal Span
	Body    []Instr
}

func (n *Loop) Span() Span     { return n.SpanVal }
func (n *Loop) node()          {}
func (n *Loop) instr()         {}
func (n *Loop) String() string { return "[" + BodyString(n.Body) + "]" }

// Send copies the current head byte into the target region's head cell.
type Send struct {
	SpanVal Span
	Target  *RegionRef
}

func (n *Send) Span() Span     { return n.SpanVal }
func (n *Send) node()          {}
func (n *Send) instr()         {}
func (n *Send) String() string { return "^" + n.Target.String() }

// Receive copies the target region's head byte into the current head cell.
type Receive struct {
	SpanVal Span
	Target  *RegionRef
}

func (n *Receive) Span() Span     { return n.SpanVal }
func (n *Receive) node()          {}
func (n *Receive) instr()         {}
func (n *Receive) String() string { return "&" + n.Target.String() }

// Call invokes a named procedure, optionally redirecting it onto another
// region. A nil Clause delegates to the calling frame's current region.
type Call struct {
	SpanVal Span
	Proc    string
	Clause  *RegionRef
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) instr()     {}

func (n *Call) String() string {
	if n.Clause == nil {
		return n.Proc
	}
	return n.Proc + "@" + n.Clause.String()
}

// AnonCall invokes an inline anonymous procedure at its definition site.
// The clause works exactly as it does for named calls.
type AnonCall struct {
	SpanVal Span
	Body    []Instr
	Clause  *RegionRef
}

func (n *AnonCall) Span() Span { return n.SpanVal }
func (n *AnonCall) node()      {}
func (n *AnonCall) instr()     {}

func (n *AnonCall) String() string {
	s := "(" + BodyString(n.Body) + ")"
	if n.Clause != nil {
		s += "@" + n.Clause.String()
	}
	return s
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// BodyString renders an instruction sequence as canonical source text,
// inserting spaces only where two names would otherwise run together.
func BodyString(body []Instr) string {
	var sb strings.Builder
	for _, in := range body {
		s := in.String()
		if sb.Len() > 0 && needsSeparator(lastByte(sb.String()), s[0]) {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	return sb.String()
}

func lastByte(s string) byte {
	return s[len(s)-1]
}

func needsSeparator(prev, next byte) bool {
	return isWordByte(prev) && isWordByte(next)
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// WalkInstrs visits every instruction in the tree in source order,
// descending into loop bodies and anonymous procedures.
func WalkInstrs(body []Instr, fn func(Instr)) {
	for _, in := range body {
		fn(in)
		switch n := in.(type) {
		case *Loop:
			WalkInstrs(n.Body, fn)
		case *AnonCall:
			WalkInstrs(n.Body, fn)
		}
	}
}
