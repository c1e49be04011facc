package resolver

import (
	"context"
	"os"
	"testing"

	"github.com/m3047/trualias-go/internal/truconfig"
)

func mustSet(t *testing.T, src string) *truconfig.Set {
	t.Helper()
	// truconfig.Load reads from a path; tests exercise specparse+truconfig
	// compilation directly via a temp file so Load's own file-reading path
	// is covered too.
	dir := t.TempDir()
	path := dir + "/trualias.conf"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	set, diags, err := truconfig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diags != nil {
		t.Fatalf("Load diagnostics: %v", diags)
	}
	return set
}

func TestResolveSingleAccountMatch(t *testing.T) {
	set := mustSet(t, `
ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, AccountForm, "foo-macys-m5")
	if got.Outcome != Matched || got.Account != "foo" || got.Reply != "foo" {
		t.Fatalf("Resolve = %+v, want Matched foo", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	set := mustSet(t, `
ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, AccountForm, "foo-macys-m6")
	if got.Outcome != NotFound {
		t.Fatalf("Resolve = %+v, want NotFound", got)
	}
}

func TestResolveAmbiguousFallsBackToDebugAccount(t *testing.T) {
	set := mustSet(t, `
DEBUG ACCOUNT: postmaster
ACCOUNT foo MATCHES "%ident%-%code%" WITH CHAR(1,-), CHARS();
ACCOUNT bar MATCHES "%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, AccountForm, "macys-m5")
	if got.Outcome != Debug || got.Reply != "postmaster" {
		t.Fatalf("Resolve = %+v, want Debug(postmaster)", got)
	}
}

func TestResolveAmbiguousNoDebugAccount(t *testing.T) {
	set := mustSet(t, `
ACCOUNT foo MATCHES "%ident%-%code%" WITH CHAR(1,-), CHARS();
ACCOUNT bar MATCHES "%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, AccountForm, "macys-m5")
	if got.Outcome != NotFound {
		t.Fatalf("Resolve = %+v, want NotFound", got)
	}
}

func TestResolveVirtualFormDomainCheck(t *testing.T) {
	set := mustSet(t, `
ALIAS DOMAINS: example.com, example.org
ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, VirtualForm, "foo-macys-m5@example.com")
	if got.Outcome != Matched || got.Reply != "foo@example.com" {
		t.Fatalf("Resolve = %+v, want Matched foo@example.com", got)
	}

	got = Resolve(context.Background(), set, VirtualForm, "foo-macys-m5@not-allowed.test")
	if got.Outcome != NotFound {
		t.Fatalf("Resolve(disallowed domain) = %+v, want NotFound", got)
	}
}

func TestResolveMultiAccountSpecWithAnchorPicksLiteralMatch(t *testing.T) {
	// %account% is present, so this is not context-ambiguous even though
	// the specification declares two accounts: only the one whose literal
	// matches the input wins.
	set := mustSet(t, `
ACCOUNT foo, bar MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();
`)
	got := Resolve(context.Background(), set, AccountForm, "foo-macys-m5")
	if got.Outcome != Matched || got.Account != "foo" {
		t.Fatalf("Resolve = %+v, want Matched foo", got)
	}
}
