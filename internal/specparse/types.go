package specparse

import "github.com/m3047/trualias-go/internal/charclass"

// position is a line/column in the original configuration source, 1-based.
type position struct {
	Line int
	Col  int
}

// ElemKind identifies the sum-type tag of a PatternElement.
type ElemKind int

// PatternElement kinds.
const (
	ElemLiteral ElemKind = iota
	ElemField
	ElemAccount
	ElemAlias
	ElemCode
)

// PatternElement is one element of a Specification's match pattern: either
// a literal byte, an identifier field of a given class and per-class
// ordinal, or one of the special %account%/%alias%/%code% fields.
type PatternElement struct {
	Kind ElemKind

	// Valid when Kind == ElemLiteral.
	Literal byte

	// Valid when Kind == ElemField.
	Class   charclass.Class
	Ordinal int // 1-based, among fields sharing Class in this pattern
}

// AliasMode identifies how a Specification's aliases are declared.
type AliasMode int

// Alias declaration modes.
const (
	// AliasSame means %alias% == %account%: there is no separate alias.
	AliasSame AliasMode = iota
	// AliasExplicit means the Specification names an explicit alias list.
	AliasExplicit
)

// CountFn identifies which counting function a CalcOp.OpCount evaluates.
type CountFn int

// Counting functions.
const (
	CountDigits CountFn = iota
	CountAlphas
	CountChars
	CountVowels
	CountLabels
)

func (f CountFn) String() string {
	switch f {
	case CountDigits:
		return "digits"
	case CountAlphas:
		return "alphas"
	case CountChars:
		return "chars"
	case CountVowels:
		return "vowels"
	case CountLabels:
		return "labels"
	default:
		return "?"
	}
}

// Polarity identifies the AnyOrNone calc-op's direction.
type Polarity int

// AnyOrNone polarities.
const (
	PolarityAny Polarity = iota
	PolarityNone
)

// FieldRef resolves a calc-op's target: either a numbered identifier field
// (1-based, left to right across all identifier fields in the pattern), or
// a named reference to the resolved %account%/%alias% value.
type FieldRef struct {
	Named string // "account" or "alias"; empty when this is a numbered field
	Nth   int    // 1-based; a calc op naming no field gets 1 when the pattern has a single identifier field
}

// CalcOpKind identifies the sum-type tag of a CalcOp.
type CalcOpKind int

// CalcOp kinds.
const (
	OpLiteral CalcOpKind = iota
	OpCount
	OpAnyOrNone
	OpCharAt
)

// CalcOp is one step of a Specification's calculation, evaluated in order
// and concatenated to produce the expected code.
type CalcOp struct {
	Op CalcOpKind

	Literal string // OpLiteral

	CountFn CountFn  // OpCount
	Field   FieldRef // OpCount, OpAnyOrNone, OpCharAt

	Polarity Polarity // OpAnyOrNone

	LabelSet bool // OpCharAt: whether a label selector was given
	Label    int  // OpCharAt: 1-based, negative counts from the end

	Index   int  // OpCharAt: 1-based, negative counts from the end
	Default byte // OpCharAt: emitted when Index is out of range

	// raw, pre-resolution selector list captured by the parser; read by
	// resolveCalc to fill in Field and Label.
	rawSelectors []rawSelector
	pos          position
}

type rawSelector struct {
	named string // "account" / "alias", if this selector is a named reference
	n     int    // numeric value, if named == ""
	pos   position
}

// Specification is a compiled alias rule.
type Specification struct {
	Accounts  []string
	AliasMode AliasMode
	Aliases   []string // explicit alias list; empty when AliasMode == AliasSame

	DefaultClass charclass.Class

	Pattern []PatternElement
	Calc    []CalcOp

	// ContextAmbiguous is set when this Specification has multiple
	// accounts, AliasMode == AliasSame, and the pattern contains no
	// %account% anchor (invariant 7): the account cannot be derived from
	// the input alone.
	ContextAmbiguous bool

	// Fingerprint is the canonical rendering of the pattern (literal bytes
	// and %name% fields). It is computed for every Specification; neither
	// ContextAmbiguous nor the duplicate account/alias checks read it.
	Fingerprint string

	Pos position
}

// ConfigItem is one parsed "NAME: value" configuration statement, prior to
// interpretation by package truconfig.
type ConfigItem struct {
	Name  string // canonical, e.g. "CASE SENSITIVE", "DEBUG ACCOUNT"
	Value string
	Pos   position
}

// Result is the output of a successful Parse: every config item and
// alias Specification found in the source, in declaration order.
type Result struct {
	ConfigItems []ConfigItem
	Specs       []*Specification
}
