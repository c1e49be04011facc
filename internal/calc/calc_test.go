package calc

import (
	"testing"

	"github.com/m3047/trualias-go/internal/charclass"
	"github.com/m3047/trualias-go/internal/specparse"
)

func mustParse(t *testing.T, src string) *specparse.Specification {
	t.Helper()
	res, diags := specparse.Parse(src)
	if diags != nil {
		t.Fatalf("parse %q: %v", src, diags)
	}
	if len(res.Specs) != 1 {
		t.Fatalf("parse %q: got %d specs, want 1", src, len(res.Specs))
	}
	return res.Specs[0]
}

func TestEvaluateIdentCharAndCount(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();`)

	caps := Captures{Fields: []string{"macys"}, Account: "foo"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "m5" {
		t.Errorf("Evaluate(macys) = %q, want %q", got, "m5")
	}

	caps = Captures{Fields: []string{"google"}, Account: "foo"}
	got, err = Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "g6" {
		t.Errorf("Evaluate(google) = %q, want %q", got, "g6")
	}
}

func TestEvaluateFQDNLabelSelector(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo MATCHES "%account%-%fqdn%-%code%" WITH CHAR(1,1,-), CHAR(2,-1,-), CHARS();`)

	caps := Captures{Fields: []string{"register.co.uk"}, Account: "foo"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "ro14" {
		t.Errorf("Evaluate(register.co.uk) = %q, want %q", got, "ro14")
	}
}

func TestEvaluateTwoAlphaFields(t *testing.T) {
	spec := mustParse(t, `ACCOUNT baz MATCHES "%alpha%is%alpha%.%code%" WITH CHARS(1), CHARS(2);`)

	caps := Captures{Fields: []string{"sam", "sexy"}, Account: "baz"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "34" {
		t.Errorf("Evaluate(sam,sexy) = %q, want %q", got, "34")
	}
}

func TestEvaluateExplicitAliasIdentCharCount(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo ALIASED 18,2018,19,2019 MATCHES "%account%-%ident%-%alias%-%code%" WITH CHAR(1,-), CHARS();`)

	caps := Captures{Fields: []string{"experian"}, Account: "foo", Alias: "19"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "e8" {
		t.Errorf("Evaluate(experian,19) = %q, want %q", got, "e8")
	}
}

func TestEvalAnyOrNoneDeterministic(t *testing.T) {
	spec := mustParse(t, `ACCOUNT zed MATCHES "%ident%-%code%" WITH ANY();`)
	caps := Captures{Fields: []string{"b4a2"}, Account: "zed"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Ident class includes both letters and digits; the lexicographically
	// first member of "b4a2" is '2'.
	if got != "2" {
		t.Errorf("Evaluate(ANY) = %q, want %q", got, "2")
	}
}

func TestEvalCharAtOutOfRangeUsesDefault(t *testing.T) {
	spec := mustParse(t, `ACCOUNT zed MATCHES "%ident%-%code%" WITH CHAR(9,x);`)
	caps := Captures{Fields: []string{"ab"}, Account: "zed"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "x" {
		t.Errorf("Evaluate(out-of-range CHAR) = %q, want %q", got, "x")
	}
}

func TestEvalCountLabels(t *testing.T) {
	spec := mustParse(t, `ACCOUNT zed MATCHES "%fqdn%-%code%" WITH LABELS();`)
	caps := Captures{Fields: []string{"a.b.c"}, Account: "zed"}
	got, err := Evaluate(spec, caps, false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "3" {
		t.Errorf("Evaluate(LABELS) = %q, want %q", got, "3")
	}
}

func TestFoldRespectsCaseSensitivity(t *testing.T) {
	if charclass.Fold("ABC", true) != "ABC" {
		t.Errorf("case-sensitive Fold must not change input")
	}
	if charclass.Fold("ABC", false) != "abc" {
		t.Errorf("case-insensitive Fold must lowercase input")
	}
}
