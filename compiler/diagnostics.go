package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Diagnostics: structured errors from lexing, parsing and analysis
// ---------------------------------------------------------------------------

// DiagnosticKind classifies a diagnostic. Every kind is detected before
// execution; a program that loads cleanly cannot fail on any of these at
// run time.
type DiagnosticKind int

const (
	LexError DiagnosticKind = iota
	ParseError
	BracketScopeError
	DuplicateNameError
	UndefinedReferenceError
	MissingEntryPointError
)

var kindNames = map[DiagnosticKind]string{
	LexError:                "lex error",
	ParseError:              "parse error",
	BracketScopeError:       "bracket scope error",
	DuplicateNameError:      "duplicate name",
	UndefinedReferenceError: "undefined reference",
	MissingEntryPointError:  "missing entry point",
}

func (k DiagnosticKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic is a single structured error with a source position.
type Diagnostic struct {
	Kind    DiagnosticKind
	Pos     Position
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("line %d, column %d: %s: %s", d.Pos.Line, d.Pos.Column, d.Kind, d.Message)
}

// DiagnosticList accumulates diagnostics from a compilation stage.
type DiagnosticList []*Diagnostic

func (l DiagnosticList) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns the list as an error, or nil if it is empty.
func (l DiagnosticList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// HasKind reports whether the list contains a diagnostic of the given kind.
func (l DiagnosticList) HasKind(k DiagnosticKind) bool {
	for _, d := range l {
		if d.Kind == k {
			return true
		}
	}
	return false
}
