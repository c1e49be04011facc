// Package calc implements the calculation evaluator: it executes a
// Specification's compiled calc-expression against a set of captured
// identifier fields, producing the expected embedded code.
package calc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3047/trualias-go/internal/charclass"
	"github.com/m3047/trualias-go/internal/specparse"
)

// Captures holds the text captured for one candidate decomposition of an
// input string against a Specification's pattern.
type Captures struct {
	// Fields[i] is the text captured for the (i+1)-th identifier field, in
	// left-to-right pattern declaration order (see specparse.IdentFields).
	Fields []string

	// Account and Alias are the resolved %account%/%alias% literal values
	// for this candidate.
	Account string
	Alias   string
}

func (c Captures) field(ref specparse.FieldRef) (string, bool) {
	if ref.Named != "" {
		switch ref.Named {
		case "account":
			return c.Account, true
		case "alias":
			return c.Alias, true
		}
		return "", false
	}
	if ref.Nth < 1 || ref.Nth > len(c.Fields) {
		return "", false
	}
	return c.Fields[ref.Nth-1], true
}

// Evaluate computes the expected code for spec given caps: each CalcOp runs
// in declared order and its output is concatenated. Counting and character
// extraction operate on the post-case-folded text when caseSensitive is
// false.
func Evaluate(spec *specparse.Specification, caps Captures, caseSensitive bool) (string, error) {
	fields := specparse.IdentFields(spec)

	var sb strings.Builder
	for _, op := range spec.Calc {
		s, err := evalOp(op, caps, fields, caseSensitive)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func evalOp(op specparse.CalcOp, caps Captures, fields []specparse.PatternElement, caseSensitive bool) (string, error) {
	switch op.Op {
	case specparse.OpLiteral:
		return charclass.Fold(op.Literal, caseSensitive), nil
	case specparse.OpCount:
		return evalCount(op, caps, caseSensitive)
	case specparse.OpAnyOrNone:
		return evalAnyOrNone(op, caps, fields, caseSensitive)
	case specparse.OpCharAt:
		return evalCharAt(op, caps, caseSensitive)
	default:
		return "", fmt.Errorf("calc: unknown op kind %v", op.Op)
	}
}

func target(op specparse.CalcOp, caps Captures, caseSensitive bool) (string, error) {
	s, ok := caps.field(op.Field)
	if !ok {
		return "", fmt.Errorf("calc: unresolved field reference")
	}
	return charclass.Fold(s, caseSensitive), nil
}

func evalCount(op specparse.CalcOp, caps Captures, caseSensitive bool) (string, error) {
	s, err := target(op, caps, caseSensitive)
	if err != nil {
		return "", err
	}

	var n int
	switch op.CountFn {
	case specparse.CountDigits:
		for i := 0; i < len(s); i++ {
			if s[i] >= '0' && s[i] <= '9' {
				n++
			}
		}
	case specparse.CountAlphas:
		for i := 0; i < len(s); i++ {
			b := s[i]
			if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
				n++
			}
		}
	case specparse.CountChars:
		// Entire captured text, including dots for fqdn fields.
		n = len(s)
	case specparse.CountVowels:
		for i := 0; i < len(s); i++ {
			if charclass.IsVowel(s[i]) {
				n++
			}
		}
	case specparse.CountLabels:
		labels, ok := charclass.Labels(s)
		if !ok {
			return "", fmt.Errorf("calc: LABELS on malformed fqdn capture %q", s)
		}
		n = len(labels)
	}
	return strconv.Itoa(n), nil
}

// evalAnyOrNone returns the lexicographically first character in the
// captured field that belongs to its declared class (polarity any), or to
// the complementary class (polarity none). Determinism matters here: the
// result must depend only on the captured text, never on iteration order.
func evalAnyOrNone(op specparse.CalcOp, caps Captures, fields []specparse.PatternElement, caseSensitive bool) (string, error) {
	s, err := target(op, caps, caseSensitive)
	if err != nil {
		return "", err
	}

	class := charclass.Ident
	if op.Field.Named == "" && op.Field.Nth >= 1 && op.Field.Nth <= len(fields) {
		class = fields[op.Field.Nth-1].Class
	}

	best := byte(0)
	found := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		member := class.IsMember(b)
		if op.Polarity == specparse.PolarityNone {
			member = !member
		}
		if !member {
			continue
		}
		if !found || b < best {
			best = b
			found = true
		}
	}
	if !found {
		return "", nil
	}
	return string(best), nil
}

// evalCharAt returns the character at op.Index within the resolved field
// (within op.Label, for an fqdn field with a label selector), or
// op.Default if the index falls outside the resolved string.
func evalCharAt(op specparse.CalcOp, caps Captures, caseSensitive bool) (string, error) {
	s, err := target(op, caps, caseSensitive)
	if err != nil {
		return "", err
	}

	if op.LabelSet {
		labels, ok := charclass.Labels(s)
		if !ok || len(labels) == 0 {
			return string(op.Default), nil
		}
		idx := labelIndex(op.Label, len(labels))
		if idx < 0 {
			return string(op.Default), nil
		}
		s = labels[idx]
	}

	n := len(s)
	idx := op.Index
	var pos int
	if idx > 0 {
		pos = idx - 1
	} else {
		pos = n + idx
	}
	if pos < 0 || pos >= n {
		return string(op.Default), nil
	}
	return string(s[pos]), nil
}

// labelIndex converts a 1-based (possibly negative) label selector into a
// 0-based slice index, or -1 if out of range.
func labelIndex(label, n int) int {
	var idx int
	if label > 0 {
		idx = label - 1
	} else {
		idx = n + label
	}
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}
