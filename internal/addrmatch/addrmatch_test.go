package addrmatch

import (
	"testing"

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

func TestMatchIdentCode(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();`)

	for _, tc := range []struct {
		input string
		want  bool
	}{
		{"foo-macys-m5", true},
		{"foo-google-g6", true},
		{"foo-macys-m6", false},
		{"bar-macys-m5", false},
	} {
		got := Match(spec, tc.input, false)
		if (len(got) > 0) != tc.want {
			t.Errorf("Match(%q) = %v, want present=%v", tc.input, got, tc.want)
			continue
		}
		if tc.want && got[0].Account != "foo" {
			t.Errorf("Match(%q) account = %q, want foo", tc.input, got[0].Account)
		}
	}
}

func TestMatchFQDNLabelSelector(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo MATCHES "%account%-%fqdn%-%code%" WITH CHAR(1,1,-), CHAR(2,-1,-), CHARS();`)

	got := Match(spec, "foo-register.co.uk-ro14", false)
	if len(got) != 1 {
		t.Fatalf("Match(register.co.uk) = %v, want exactly one candidate", got)
	}
	if got[0].Code != "ro14" {
		t.Errorf("Match code = %q, want ro14", got[0].Code)
	}
}

func TestMatchTwoAlphaFieldsUniqueSplit(t *testing.T) {
	spec := mustParse(t, `ACCOUNT baz MATCHES "%alpha%is%alpha%.%code%" WITH CHARS(1), CHARS(2);`)

	got := Match(spec, "samissexy.34", false)
	if len(got) != 1 {
		t.Fatalf("Match(samissexy.34) = %v, want exactly one candidate", got)
	}
	if got[0].Account != "baz" || got[0].Code != "34" {
		t.Errorf("Match = %+v, want account=baz code=34", got[0])
	}
}

func TestMatchExplicitAliasList(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo ALIASED 18,2018,19,2019 MATCHES "%account%-%ident%-%alias%-%code%" WITH CHAR(1,-), CHARS();`)

	got := Match(spec, "foo-experian-19-e8", false)
	if len(got) != 1 {
		t.Fatalf("Match(foo-experian-19-e8) = %v, want exactly one candidate", got)
	}
	if got[0].Alias != "19" {
		t.Errorf("Match alias = %q, want 19", got[0].Alias)
	}

	if got := Match(spec, "foo-experian-2020-e8", false); len(got) != 0 {
		t.Errorf("Match(undeclared alias 2020) = %v, want none", got)
	}
}

func TestMatchAliasedSameMultiAccountContextAmbiguous(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo, bar MATCHES "%ident%-%code%" WITH CHAR(1,-), CHARS();`)
	if !spec.ContextAmbiguous {
		t.Fatalf("expected ContextAmbiguous spec")
	}

	got := Match(spec, "macys-m5", false)
	if len(got) != 2 {
		t.Fatalf("Match(macys-m5) = %v, want one candidate per declared account", got)
	}
	accounts := map[string]bool{}
	for _, c := range got {
		accounts[c.Account] = true
	}
	if !accounts["foo"] || !accounts["bar"] {
		t.Errorf("Match accounts = %v, want both foo and bar", accounts)
	}
}

func TestMatchCaseInsensitive(t *testing.T) {
	spec := mustParse(t, `ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();`)

	got := Match(spec, "FOO-MACYS-M5", false)
	if len(got) != 1 {
		t.Fatalf("Match(FOO-MACYS-M5) = %v, want exactly one candidate", got)
	}
}
