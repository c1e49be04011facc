package specparse

import (
	"strconv"
	"strings"

	"github.com/m3047/trualias-go/internal/charclass"
)

// recognizedConfigItems is the set of config-stmt names the grammar defines.
// The milter-only items are accepted but ignored by the core; everything
// else is a syntax error.
var recognizedConfigItems = map[string]bool{
	"CASE SENSITIVE": true,
	"HOST":           true,
	"PORT":           true,
	"LOGGING":        true,
	"DEBUG ACCOUNT":  true,
	"ALIAS DOMAINS":  true,
	"STATISTICS":     true,
	"PROCESSOR":      true,
	"VRFY HOST":      true,
	"PROXY PROTOCOL": true,
	"SMTP HOST":      true,
	"SMTP PORT":      true,
	"LOCAL HOST":     true,
	"LOCAL DOMAINS":  true,
}

// MilterOnlyConfigItems are recognized but not acted on by the core; the
// embedding milter front-end consumes them instead.
var MilterOnlyConfigItems = map[string]bool{
	"SMTP HOST":     true,
	"SMTP PORT":     true,
	"LOCAL HOST":    true,
	"LOCAL DOMAINS": true,
}

// Parse compiles configuration source text into a Result, or a non-empty
// DiagnosticList on any failure. Compilation is all-or-nothing: a single
// Diagnostic anywhere aborts the whole Result.
func Parse(source string) (*Result, DiagnosticList) {
	stmts, diags := splitStatements(source)
	if len(diags) > 0 {
		return nil, diags
	}

	res := &Result{}
	for _, st := range stmts {
		if isAliasSpecStart(st.Text) {
			spec, ds := parseAliasSpec(st)
			diags = append(diags, ds...)
			if spec != nil {
				res.Specs = append(res.Specs, spec)
			}
			continue
		}
		item, ds := parseConfigStmt(st)
		diags = append(diags, ds...)
		if ds == nil {
			res.ConfigItems = append(res.ConfigItems, item)
		}
	}

	if len(diags) > 0 {
		return nil, diags
	}

	diags = validate(res)
	if len(diags) > 0 {
		return nil, diags
	}

	return res, nil
}

func parseConfigStmt(st rawStatement) (ConfigItem, DiagnosticList) {
	idx := strings.Index(st.Text, ":")
	if idx < 0 {
		return ConfigItem{}, DiagnosticList{syntaxf(st.Pos,
			"config statement %q is missing ':'", st.Text)}
	}
	name := normalizeItemName(st.Text[:idx])
	value := strings.TrimSpace(st.Text[idx+1:])

	if !recognizedConfigItems[name] {
		return ConfigItem{}, DiagnosticList{syntaxf(st.Pos,
			"unrecognized configuration item %q", name)}
	}

	return ConfigItem{Name: name, Value: value, Pos: st.Pos}, nil
}

// normalizeItemName collapses internal whitespace runs to a single space
// and upper-cases, so "case  sensitive" and "CASE SENSITIVE" compare equal.
func normalizeItemName(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f)
	}
	return strings.Join(fields, " ")
}

func parseAliasSpec(st rawStatement) (*Specification, DiagnosticList) {
	text := strings.TrimRight(strings.TrimSpace(st.Text), ";")

	idxUsing := findKeyword(text, "USING", 0)
	idxAliased := findKeyword(text, "ALIASED", 0)
	idxMatches := findKeyword(text, "MATCHES", 0)
	if idxMatches < 0 {
		return nil, DiagnosticList{syntaxf(st.Pos, "alias specification is missing MATCHES clause")}
	}

	accountsEnd := idxMatches
	for _, idx := range []int{idxUsing, idxAliased} {
		if idx >= 0 && idx < accountsEnd {
			accountsEnd = idx
		}
	}
	accountsText := text[len("ACCOUNT"):accountsEnd]

	spec := &Specification{DefaultClass: charclass.Ident, Pos: st.Pos}

	var diags DiagnosticList

	for _, a := range splitTopLevel(accountsText, ',') {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		spec.Accounts = append(spec.Accounts, a)
	}
	if len(spec.Accounts) == 0 {
		diags = append(diags, syntaxf(st.Pos, "ACCOUNT requires at least one account name"))
	}

	if idxUsing >= 0 {
		usingEnd := idxMatches
		if idxAliased >= 0 && idxAliased > idxUsing && idxAliased < usingEnd {
			usingEnd = idxAliased
		}
		className := strings.TrimSpace(text[idxUsing+len("USING") : usingEnd])
		cls, ok := charclass.Parse(strings.ToLower(className))
		if !ok {
			diags = append(diags, semanticf(st.Pos, "USING: unknown class %q", className))
		} else {
			spec.DefaultClass = cls
		}
	}

	if idxAliased >= 0 {
		aliasedText := strings.TrimSpace(text[idxAliased+len("ALIASED") : idxMatches])
		if aliasedText == "*" {
			spec.AliasMode = AliasSame
		} else {
			spec.AliasMode = AliasExplicit
			for _, a := range splitTopLevel(aliasedText, ',') {
				a = strings.TrimSpace(a)
				if a == "" {
					continue
				}
				spec.Aliases = append(spec.Aliases, a)
			}
			if len(spec.Aliases) == 0 {
				diags = append(diags, syntaxf(st.Pos, "ALIASED requires '*' or a non-empty list"))
			}
		}
	} else {
		spec.AliasMode = AliasSame
	}

	idxWith := findKeyword(text, "WITH", idxMatches+len("MATCHES"))
	if idxWith < 0 {
		diags = append(diags, syntaxf(st.Pos, "alias specification is missing WITH clause"))
		return nil, diags
	}

	matchText := strings.TrimSpace(text[idxMatches+len("MATCHES") : idxWith])
	pattern, pdiags := parseMatchExpr(matchText, st.Pos, spec.DefaultClass)
	diags = append(diags, pdiags...)
	spec.Pattern = pattern

	calcText := strings.TrimSpace(text[idxWith+len("WITH"):])
	calc, cdiags := parseCalcExpr(calcText, st.Pos)
	diags = append(diags, cdiags...)
	spec.Calc = calc

	if len(diags) > 0 {
		return nil, diags
	}
	return spec, nil
}

// parseMatchExpr parses a (optionally quoted) match-expr into a sequence of
// PatternElements, assigning each identifier field its 1-based per-class
// ordinal left to right.
func parseMatchExpr(s string, pos position, defaultClass charclass.Class) ([]PatternElement, DiagnosticList) {
	s = unquote(s)
	if s == "" {
		return nil, DiagnosticList{syntaxf(pos, "MATCHES expression is empty")}
	}

	var elems []PatternElement
	var diags DiagnosticList
	ordinals := map[charclass.Class]int{}
	sawCode := false

	i := 0
	for i < len(s) {
		if s[i] != '%' {
			elems = append(elems, PatternElement{Kind: ElemLiteral, Literal: s[i]})
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '%')
		if end < 0 {
			diags = append(diags, syntaxf(pos, "unterminated %%field%% in match expression %q", s))
			break
		}
		name := strings.ToLower(s[i+1 : i+1+end])
		i = i + 1 + end + 1

		switch name {
		case "account":
			elems = append(elems, PatternElement{Kind: ElemAccount})
		case "alias":
			elems = append(elems, PatternElement{Kind: ElemAlias})
		case "code":
			if sawCode {
				diags = append(diags, semanticf(pos, "pattern has more than one %%code%% field"))
			}
			sawCode = true
			elems = append(elems, PatternElement{Kind: ElemCode})
		case "field":
			// Generic placeholder: resolves to the Specification's
			// default_class.
			ordinals[defaultClass]++
			elems = append(elems, PatternElement{
				Kind: ElemField, Class: defaultClass, Ordinal: ordinals[defaultClass],
			})
		default:
			cls, ok := charclass.Parse(name)
			if !ok {
				diags = append(diags, syntaxf(pos, "unknown pattern field %%%s%%", name))
				continue
			}
			ordinals[cls]++
			elems = append(elems, PatternElement{Kind: ElemField, Class: cls, Ordinal: ordinals[cls]})
		}
	}

	if !sawCode {
		diags = append(diags, semanticf(pos, "pattern has no %%code%% field"))
	}

	return elems, diags
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseCalcExpr(s string, pos position) ([]CalcOp, DiagnosticList) {
	var ops []CalcOp
	var diags DiagnosticList

	for _, part := range splitTopLevel(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, ds := parseCalcOp(part, pos)
		diags = append(diags, ds...)
		if ds == nil {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 && len(diags) == 0 {
		diags = append(diags, syntaxf(pos, "WITH requires at least one calc operation"))
	}
	return ops, diags
}

func parseCalcOp(s string, pos position) (CalcOp, DiagnosticList) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return CalcOp{Op: OpLiteral, Literal: unquote(s), pos: pos}, nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || s[len(s)-1] != ')' {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "malformed calc operation %q", s)}
	}
	name := strings.ToUpper(strings.TrimSpace(s[:open]))
	argsText := s[open+1 : len(s)-1]

	var args []string
	for _, a := range splitTopLevel(argsText, ',') {
		a = strings.TrimSpace(a)
		if a != "" || len(args) > 0 {
			args = append(args, a)
		}
	}
	switch name {
	case "DIGITS", "ALPHAS", "CHARS", "VOWELS", "LABELS":
		return parseCountFn(name, args, pos)
	case "ANY", "NONE":
		return parseAnyOrNone(name, args, pos)
	case "CHAR":
		return parseCharAt(args, pos)
	default:
		return CalcOp{}, DiagnosticList{syntaxf(pos, "unknown calc function %q", name)}
	}
}

var countFnByName = map[string]CountFn{
	"DIGITS": CountDigits,
	"ALPHAS": CountAlphas,
	"CHARS":  CountChars,
	"VOWELS": CountVowels,
	"LABELS": CountLabels,
}

func parseCountFn(name string, args []string, pos position) (CalcOp, DiagnosticList) {
	if len(args) > 1 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "%s takes at most one argument", name)}
	}
	op := CalcOp{Op: OpCount, CountFn: countFnByName[name], pos: pos}
	if len(args) == 1 {
		sel, diags := parseSelector(args[0], pos)
		if diags != nil {
			return CalcOp{}, diags
		}
		op.rawSelectors = []rawSelector{sel}
	}
	return op, nil
}

func parseAnyOrNone(name string, args []string, pos position) (CalcOp, DiagnosticList) {
	if len(args) > 1 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "%s takes at most one argument", name)}
	}
	polarity := PolarityAny
	if name == "NONE" {
		polarity = PolarityNone
	}
	op := CalcOp{Op: OpAnyOrNone, Polarity: polarity, pos: pos}
	if len(args) == 1 {
		sel, diags := parseSelector(args[0], pos)
		if diags != nil {
			return CalcOp{}, diags
		}
		op.rawSelectors = []rawSelector{sel}
	}
	return op, nil
}

// parseCharAt parses CHAR(...): the last argument is always the default
// character, the second-to-last is always the index, and any remaining
// leading arguments (0, 1 or 2 of them) are nth/label selectors, resolved
// against the pattern in resolveCalc. The undocumented "*" label-selector
// syntax is rejected here.
func parseCharAt(args []string, pos position) (CalcOp, DiagnosticList) {
	if len(args) < 2 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "CHAR requires at least (index, default)")}
	}
	for _, a := range args {
		if a == "*" {
			return CalcOp{}, DiagnosticList{semanticf(pos,
				"CHAR label selector '*' is not a documented syntax")}
		}
	}

	defaultArg := args[len(args)-1]
	if len(defaultArg) != 1 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "CHAR default %q must be a single character", defaultArg)}
	}
	indexArg := args[len(args)-2]
	index, err := strconv.Atoi(indexArg)
	if err != nil || index == 0 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "CHAR index %q must be a non-zero integer", indexArg)}
	}

	op := CalcOp{Op: OpCharAt, Index: index, Default: defaultArg[0], pos: pos}

	selectors := args[:len(args)-2]
	if len(selectors) > 2 {
		return CalcOp{}, DiagnosticList{syntaxf(pos, "CHAR takes at most (nth, label, index, default)")}
	}
	for _, raw := range selectors {
		sel, diags := parseSelector(raw, pos)
		if diags != nil {
			return CalcOp{}, diags
		}
		op.rawSelectors = append(op.rawSelectors, sel)
	}

	return op, nil
}

func parseSelector(s string, pos position) (rawSelector, DiagnosticList) {
	if s == "account" || s == "alias" {
		return rawSelector{named: s, pos: pos}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n == 0 {
		return rawSelector{}, DiagnosticList{syntaxf(pos,
			"expected a field ordinal, \"account\" or \"alias\", got %q", s)}
	}
	return rawSelector{n: n, pos: pos}, nil
}
