package specparse

import (
	"fmt"
	"strings"
)

// Kind classifies a Diagnostic by its error taxonomy.
type Kind int

// Diagnostic kinds.
const (
	// SyntaxError is a tokenizer/grammar failure.
	SyntaxError Kind = iota
	// SemanticError is an invariant violation (ambiguous pattern, duplicate
	// account, unreferenced field, illegal LABELS on non-fqdn, calc
	// referencing a nonexistent nth, multiple accounts with explicit
	// aliases, ...).
	SemanticError
)

func (k Kind) String() string {
	if k == SemanticError {
		return "semantic error"
	}
	return "syntax error"
}

// Diagnostic is a single compile-time error, keyed to a line/column in the
// source text.
type Diagnostic struct {
	Kind    Kind
	Line    int
	Col     int
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Col, d.Kind, d.Message)
}

// DiagnosticList is a (possibly empty) collection of Diagnostics. A
// non-empty DiagnosticList means the whole source failed to compile;
// reload is all-or-nothing.
type DiagnosticList []Diagnostic

func (dl DiagnosticList) Error() string {
	parts := make([]string, len(dl))
	for i, d := range dl {
		parts[i] = d.Error()
	}
	return strings.Join(parts, "\n")
}

func syntaxf(pos position, format string, a ...interface{}) Diagnostic {
	return Diagnostic{Kind: SyntaxError, Line: pos.Line, Col: pos.Col, Message: fmt.Sprintf(format, a...)}
}

func semanticf(pos position, format string, a ...interface{}) Diagnostic {
	return Diagnostic{Kind: SemanticError, Line: pos.Line, Col: pos.Col, Message: fmt.Sprintf(format, a...)}
}
