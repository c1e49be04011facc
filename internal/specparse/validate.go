package specparse

import (
	"strings"

	"github.com/m3047/trualias-go/internal/charclass"
)

// validate runs the static checks over every parsed Specification, plus
// the cross-specification uniqueness checks. A single failure anywhere
// aborts the whole Result (compilation is all-or-nothing).
func validate(res *Result) DiagnosticList {
	var diags DiagnosticList

	seenAccounts := map[string]position{}
	seenAliases := map[string]position{}

	for _, spec := range res.Specs {
		diags = append(diags, checkExactlyOneCode(spec)...)
		diags = append(diags, checkAdjacency(spec)...)
		diags = append(diags, checkAliasAccountCardinality(spec)...)
		diags = append(diags, resolveCalc(spec)...)

		hasAccountField := false
		for _, e := range spec.Pattern {
			if e.Kind == ElemAccount {
				hasAccountField = true
			}
		}
		spec.ContextAmbiguous = len(spec.Accounts) > 1 &&
			spec.AliasMode == AliasSame && !hasAccountField

		spec.Fingerprint = fingerprint(spec)

		for _, a := range spec.Accounts {
			key := strings.ToLower(a)
			if prev, ok := seenAccounts[key]; ok {
				diags = append(diags, semanticf(spec.Pos,
					"account %q already declared at %d:%d", a, prev.Line, prev.Col))
			}
			seenAccounts[key] = spec.Pos
		}
		for _, a := range spec.Aliases {
			key := strings.ToLower(a)
			if prev, ok := seenAliases[key]; ok {
				diags = append(diags, semanticf(spec.Pos,
					"alias %q already declared at %d:%d", a, prev.Line, prev.Col))
			}
			seenAliases[key] = spec.Pos
		}
	}

	return diags
}

// checkExactlyOneCode enforces invariant 1: exactly one CodeField.
func checkExactlyOneCode(spec *Specification) DiagnosticList {
	n := 0
	for _, e := range spec.Pattern {
		if e.Kind == ElemCode {
			n++
		}
	}
	if n == 1 {
		return nil
	}
	return DiagnosticList{semanticf(spec.Pos,
		"pattern must contain exactly one %%code%% field, got %d", n)}
}

// checkAdjacency enforces invariant 2: two adjacent variable-width fields
// are forbidden except %alpha% immediately adjacent to %number%.
func checkAdjacency(spec *Specification) DiagnosticList {
	var diags DiagnosticList
	isVarWidth := func(e PatternElement) bool {
		return e.Kind == ElemField || e.Kind == ElemAccount || e.Kind == ElemAlias || e.Kind == ElemCode
	}
	for i := 1; i < len(spec.Pattern); i++ {
		a, b := spec.Pattern[i-1], spec.Pattern[i]
		if !isVarWidth(a) || !isVarWidth(b) {
			continue
		}
		if a.Kind == ElemField && b.Kind == ElemField {
			if (a.Class == charclass.Alpha && b.Class == charclass.Number) ||
				(a.Class == charclass.Number && b.Class == charclass.Alpha) {
				continue
			}
		}
		diags = append(diags, semanticf(spec.Pos,
			"pattern has two adjacent variable-width fields with no separating literal"))
	}
	return diags
}

// checkAliasAccountCardinality enforces invariants 3 and 4.
func checkAliasAccountCardinality(spec *Specification) DiagnosticList {
	var diags DiagnosticList
	if spec.AliasMode == AliasExplicit && len(spec.Accounts) != 1 {
		diags = append(diags, semanticf(spec.Pos,
			"ALIASED with an explicit list requires exactly one ACCOUNT, got %d", len(spec.Accounts)))
	}
	return diags
}

// IdentFields returns the ElemField elements of spec's pattern, in
// left-to-right declaration order. CalcOp.Field.Nth (when not a named
// reference) is a 1-based index into this slice.
func IdentFields(spec *Specification) []PatternElement {
	var fields []PatternElement
	for _, e := range spec.Pattern {
		if e.Kind == ElemField {
			fields = append(fields, e)
		}
	}
	return fields
}

func identFields(spec *Specification) []PatternElement {
	return IdentFields(spec)
}

// resolveCalc binds each CalcOp's raw selectors to a concrete FieldRef (and,
// for CHAR, a label), per invariant 6. See parseCharAt for the argument
// grammar this resolves.
func resolveCalc(spec *Specification) DiagnosticList {
	var diags DiagnosticList
	fields := identFields(spec)

	resolveNth := func(pos position, n int) (int, DiagnosticList) {
		if n < 1 || n > len(fields) {
			return 0, DiagnosticList{semanticf(pos,
				"calc operation references field %d, but the pattern has %d identifier field(s)", n, len(fields))}
		}
		return n, nil
	}

	for i := range spec.Calc {
		op := &spec.Calc[i]
		sels := op.rawSelectors

		switch op.Op {
		case OpLiteral:
			continue

		case OpCount, OpAnyOrNone:
			if len(sels) == 0 {
				if len(fields) != 1 {
					diags = append(diags, semanticf(op.pos,
						"calc operation has no field selector, but the pattern has %d identifier field(s)", len(fields)))
					continue
				}
				op.Field = FieldRef{Nth: 1}
			} else {
				sel := sels[0]
				if sel.named != "" {
					op.Field = FieldRef{Named: sel.named}
				} else {
					nth, ds := resolveNth(sel.pos, sel.n)
					if ds != nil {
						diags = append(diags, ds...)
						continue
					}
					op.Field = FieldRef{Nth: nth}
				}
			}
			if op.Op == OpCount && op.CountFn == CountLabels {
				if op.Field.Named != "" || fields[op.Field.Nth-1].Class != charclass.FQDN {
					diags = append(diags, semanticf(op.pos, "LABELS is only valid on an fqdn field"))
				}
			}

		case OpCharAt:
			switch len(sels) {
			case 0:
				if len(fields) != 1 {
					diags = append(diags, semanticf(op.pos,
						"CHAR has no field selector, but the pattern has %d identifier field(s)", len(fields)))
					continue
				}
				op.Field = FieldRef{Nth: 1}
			case 1:
				sel := sels[0]
				if sel.named != "" {
					op.Field = FieldRef{Named: sel.named}
					continue
				}
				if len(fields) == 1 && fields[0].Class == charclass.FQDN {
					// The unique field is implicit; the lone selector is
					// the label.
					op.Field = FieldRef{Nth: 1}
					op.LabelSet = true
					op.Label = sel.n
				} else {
					nth, ds := resolveNth(sel.pos, sel.n)
					if ds != nil {
						diags = append(diags, ds...)
						continue
					}
					op.Field = FieldRef{Nth: nth}
				}
			case 2:
				nthSel, labelSel := sels[0], sels[1]
				if nthSel.named != "" {
					diags = append(diags, semanticf(op.pos, "CHAR's field selector cannot be a named reference when a label is also given"))
					continue
				}
				nth, ds := resolveNth(nthSel.pos, nthSel.n)
				if ds != nil {
					diags = append(diags, ds...)
					continue
				}
				op.Field = FieldRef{Nth: nth}
				op.LabelSet = true
				op.Label = labelSel.n
			}

			if op.LabelSet && op.Field.Named == "" {
				if fields[op.Field.Nth-1].Class != charclass.FQDN {
					diags = append(diags, semanticf(op.pos, "a label selector is only valid on an fqdn field"))
				}
			}
		}
	}

	return diags
}

// fingerprint builds a canonical, order-stable rendering of spec's pattern,
// stored as Specification.Fingerprint.
func fingerprint(spec *Specification) string {
	var sb strings.Builder
	for _, e := range spec.Pattern {
		switch e.Kind {
		case ElemLiteral:
			sb.WriteByte(e.Literal)
		case ElemField:
			sb.WriteByte('%')
			sb.WriteString(e.Class.String())
			sb.WriteByte('%')
		case ElemAccount:
			sb.WriteString("%account%")
		case ElemAlias:
			sb.WriteString("%alias%")
		case ElemCode:
			sb.WriteString("%code%")
		}
	}
	return sb.String()
}
