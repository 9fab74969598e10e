package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: name resolution and entry-point checks
// ---------------------------------------------------------------------------

// EntryPointName is the procedure and region every program must declare.
// Execution starts by running the procedure on the region of the same name.
const EntryPointName = "main"

// SemanticAnalyzer validates a parsed program: declaration uniqueness,
// reference resolution, and the presence of the entry point. A program that
// passes analysis cannot fail a name lookup at run time.
type SemanticAnalyzer struct {
	diagnostics DiagnosticList

	regions map[string]*RegionDecl
	procs   map[string]*ProcDecl
}

// NewSemanticAnalyzer creates a new semantic analyzer.
func NewSemanticAnalyzer() *SemanticAnalyzer {
	return &SemanticAnalyzer{
		regions: make(map[string]*RegionDecl),
		procs:   make(map[string]*ProcDecl),
	}
}

// Diagnostics returns accumulated analysis diagnostics.
func (s *SemanticAnalyzer) Diagnostics() DiagnosticList {
	return s.diagnostics
}

// Region returns the declaration for a region name, or nil.
func (s *SemanticAnalyzer) Region(name string) *RegionDecl {
	return s.regions[name]
}

// Proc returns the declaration for a procedure name, or nil.
func (s *SemanticAnalyzer) Proc(name string) *ProcDecl {
	return s.procs[name]
}

// errorAt records a diagnostic at a node's start position.
func (s *SemanticAnalyzer) errorAt(kind DiagnosticKind, node Node, format string, args ...interface{}) {
	s.diagnostics = append(s.diagnostics, &Diagnostic{
		Kind:    kind,
		Pos:     node.Span().Start,
		Message: fmt.Sprintf(format, args...),
	})
}

// AnalyzeProgram runs every check over the program.
func (s *SemanticAnalyzer) AnalyzeProgram(prog *Program) {
	s.collectDecls(prog)

	for _, proc := range prog.Procs {
		s.checkBody(proc.Body)
	}

	s.checkEntryPoint(prog)
}

// collectDecls fills the declaration tables, rejecting duplicates. Regions
// and procedures are separate namespaces, so a region may share a name with
// a procedure (main must, in fact).
func (s *SemanticAnalyzer) collectDecls(prog *Program) {
	for _, r := range prog.Regions {
		if _, ok := s.regions[r.Name]; ok {
			s.errorAt(DuplicateNameError, r, "region '%s' is already declared", r.Name)
			continue
		}
		s.regions[r.Name] = r
	}

	for _, pd := range prog.Procs {
		if _, ok := s.procs[pd.Name]; ok {
			s.errorAt(DuplicateNameError, pd, "procedure '%s' is already declared", pd.Name)
			continue
		}
		s.procs[pd.Name] = pd
	}
}

// checkBody resolves every name referenced by an instruction tree.
func (s *SemanticAnalyzer) checkBody(body []Instr) {
	WalkInstrs(body, func(in Instr) {
		switch n := in.(type) {
		case *Send:
			s.checkRegionRef(n.Target)
		case *Receive:
			s.checkRegionRef(n.Target)
		case *Call:
			if _, ok := s.procs[n.Proc]; !ok {
				s.errorAt(UndefinedReferenceError, n, "call to undefined procedure '%s'", n.Proc)
			}
			s.checkRegionRef(n.Clause)
		case *AnonCall:
			s.checkRegionRef(n.Clause)
		}
	})
}

// checkRegionRef resolves a region reference. The back-reference never names
// a region, so there is nothing to resolve for it.
func (s *SemanticAnalyzer) checkRegionRef(ref *RegionRef) {
	if ref == nil || ref.Back {
		return
	}
	if _, ok := s.regions[ref.Name]; !ok {
		s.errorAt(UndefinedReferenceError, ref, "reference to undefined region '%s'", ref.Name)
	}
}

// checkEntryPoint confirms both halves of the entry point exist.
func (s *SemanticAnalyzer) checkEntryPoint(prog *Program) {
	if _, ok := s.procs[EntryPointName]; !ok {
		s.errorAt(MissingEntryPointError, prog, "program has no procedure named '%s'", EntryPointName)
	}
	if _, ok := s.regions[EntryPointName]; !ok {
		s.errorAt(MissingEntryPointError, prog, "program has no region named '%s'", EntryPointName)
	}
}

// ---------------------------------------------------------------------------
// Convenience entry point
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis on a program and returns any diagnostics.
func Analyze(prog *Program) DiagnosticList {
	analyzer := NewSemanticAnalyzer()
	analyzer.AnalyzeProgram(prog)
	return analyzer.Diagnostics()
}
