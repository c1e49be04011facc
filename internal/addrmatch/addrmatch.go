// Package addrmatch implements the address matcher: it enumerates every
// decomposition of an input string against one Specification's pattern,
// verifies each candidate's embedded code against package calc, and
// returns the verifying (account, alias, code) tuples.
package addrmatch

import (
	"github.com/m3047/trualias-go/internal/calc"
	"github.com/m3047/trualias-go/internal/charclass"
	"github.com/m3047/trualias-go/internal/specparse"
)

// Candidate is one verified decomposition of an input string against a
// Specification. When spec.ContextAmbiguous is true and the pattern has no
// %alias% field either, Match yields one Candidate per declared account for
// each verifying decomposition, and leaves the choice among them to the
// caller's disambiguation policy.
type Candidate struct {
	Account string
	Alias   string
	Code    string
}

// part is one element of a concrete (account/alias already substituted)
// pattern, in matching order.
type part struct {
	kind     partKind
	lit      string          // kind == partLiteral: exact bytes to consume
	class    charclass.Class // kind == partField
	fieldIdx int             // kind == partField: 1-based index into Captures.Fields
}

type partKind int

const (
	partLiteral partKind = iota
	partField
	partCode
)

// Match enumerates every decomposition of input against spec that verifies.
func Match(spec *specparse.Specification, input string, caseSensitive bool) []Candidate {
	text := charclass.Fold(input, caseSensitive)
	codeOK := codeCharset(spec)

	var out []Candidate
	for _, pair := range concretePairs(spec) {
		account, alias := pair[0], pair[1]
		parts, numFields := buildParts(spec, account, alias, caseSensitive)

		var walk func(pi, ti int, fields []string)
		walk = func(pi, ti int, fields []string) {
			if pi == len(parts) {
				if ti != len(text) {
					return
				}
				code := fields[numFields] // stashed by the "code" slot, see below
				caps := calc.Captures{
					Fields:  fields[:numFields],
					Account: charclass.Fold(account, caseSensitive),
					Alias:   charclass.Fold(alias, caseSensitive),
				}
				expect, err := calc.Evaluate(spec, caps, caseSensitive)
				if err != nil || expect != code {
					return
				}
				out = append(out, Candidate{Account: account, Alias: alias, Code: code})
				return
			}

			p := parts[pi]
			switch p.kind {
			case partLiteral:
				l := len(p.lit)
				if ti+l <= len(text) && text[ti:ti+l] == p.lit {
					walk(pi+1, ti+l, fields)
				}

			case partField:
				for end := ti + 1; end <= len(text); end++ {
					seg := text[ti:end]
					if p.class == charclass.FQDN {
						if !charclass.ValidFQDN(seg) {
							continue
						}
					} else if !allMembers(p.class, seg) {
						break
					}
					next := append([]string(nil), fields...)
					next[p.fieldIdx-1] = seg
					walk(pi+1, end, next)
				}

			case partCode:
				for end := ti + 1; end <= len(text); end++ {
					seg := text[ti:end]
					if !allBytes(seg, codeOK) {
						break
					}
					next := append([]string(nil), fields...)
					next[numFields] = seg
					walk(pi+1, end, next)
				}
			}
		}

		walk(0, 0, make([]string, numFields+1))
	}
	return out
}

func allMembers(class charclass.Class, s string) bool {
	for i := 0; i < len(s); i++ {
		if !class.IsMember(s[i]) {
			return false
		}
	}
	return true
}

func allBytes(s string, ok func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !ok(s[i]) {
			return false
		}
	}
	return true
}

// codeCharset returns the conservative membership predicate for the %code%
// field: printable alnum, plus any literal default byte used by a CHAR
// calc-op in spec.
func codeCharset(spec *specparse.Specification) func(byte) bool {
	defaults := map[byte]bool{}
	for _, op := range spec.Calc {
		if op.Op == specparse.OpCharAt {
			defaults[op.Default] = true
		}
	}
	return func(b byte) bool {
		if charclass.Alnum.IsMember(b) {
			return true
		}
		return defaults[b]
	}
}

// buildParts compiles spec's pattern into a concrete part sequence for one
// (account, alias) substitution pair, merging adjacent literals. numFields
// is the count of ElemField elements; the fields slice that Match passes to
// walk has one extra trailing slot for the captured code segment.
func buildParts(spec *specparse.Specification, account, alias string, caseSensitive bool) ([]part, int) {
	var parts []part
	numFields := 0

	appendLit := func(s string) {
		if s == "" {
			return
		}
		if len(parts) > 0 && parts[len(parts)-1].kind == partLiteral {
			parts[len(parts)-1].lit += s
			return
		}
		parts = append(parts, part{kind: partLiteral, lit: s})
	}

	for _, e := range spec.Pattern {
		switch e.Kind {
		case specparse.ElemLiteral:
			appendLit(charclass.Fold(string(e.Literal), caseSensitive))
		case specparse.ElemAccount:
			appendLit(charclass.Fold(account, caseSensitive))
		case specparse.ElemAlias:
			appendLit(charclass.Fold(alias, caseSensitive))
		case specparse.ElemField:
			numFields++
			parts = append(parts, part{kind: partField, class: e.Class, fieldIdx: numFields})
		case specparse.ElemCode:
			parts = append(parts, part{kind: partCode})
		}
	}
	return parts, numFields
}

// concretePairs expands %account%/%alias% into the set of literal
// (account, alias) substitution pairs to try.
//
// Both fields present: if aliases are explicit, every (sole account,
// declared alias) pair; if aliases track the account, every (account,
// account) pair. Only one of the two fields present: pair it with every
// declared value of that field, holding the other field's value at the
// specification's single account (or, if %alias% is the one present and
// aliases track the account, at the same value). Neither field present,
// and the specification is context-ambiguous: one pair per declared
// account, each tried against the same (unsubstituted) pattern text, so
// that a single verifying decomposition is reported once per candidate
// account and left to the resolver's union policy.
func concretePairs(spec *specparse.Specification) [][2]string {
	hasAccount, hasAlias := false, false
	for _, e := range spec.Pattern {
		switch e.Kind {
		case specparse.ElemAccount:
			hasAccount = true
		case specparse.ElemAlias:
			hasAlias = true
		}
	}

	var pairs [][2]string
	switch {
	case hasAccount && hasAlias:
		if spec.AliasMode == specparse.AliasExplicit {
			for _, al := range spec.Aliases {
				pairs = append(pairs, [2]string{spec.Accounts[0], al})
			}
		} else {
			for _, a := range spec.Accounts {
				pairs = append(pairs, [2]string{a, a})
			}
		}

	case hasAccount:
		for _, a := range spec.Accounts {
			pairs = append(pairs, [2]string{a, ""})
		}

	case hasAlias:
		if spec.AliasMode == specparse.AliasSame {
			for _, a := range spec.Accounts {
				pairs = append(pairs, [2]string{a, a})
			}
			break
		}
		for _, al := range spec.Aliases {
			pairs = append(pairs, [2]string{spec.Accounts[0], al})
		}

	default:
		if spec.ContextAmbiguous {
			for _, a := range spec.Accounts {
				pairs = append(pairs, [2]string{a, ""})
			}
		} else {
			pairs = append(pairs, [2]string{spec.Accounts[0], ""})
		}
	}
	return pairs
}
