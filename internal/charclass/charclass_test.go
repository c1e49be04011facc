package charclass

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		want Class
		ok   bool
	}{
		{"alpha", Alpha, true},
		{"number", Number, true},
		{"alnum", Alnum, true},
		{"ident", Ident, true},
		{"fqdn", FQDN, true},
		{"bogus", 0, false},
	}
	for _, c := range cases {
		got, ok := Parse(c.name)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("Parse(%q) = (%v, %v), want (%v, %v)", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestIsMember(t *testing.T) {
	cases := []struct {
		class Class
		b     byte
		want  bool
	}{
		{Alpha, 'a', true},
		{Alpha, '5', false},
		{Number, '5', true},
		{Number, 'a', false},
		{Alnum, 'a', true},
		{Alnum, '5', true},
		{Alnum, '-', false},
		{Ident, '-', true},
		{Ident, '_', true},
		{Ident, '.', false},
		{FQDN, '.', true},
		{FQDN, '-', true},
		{FQDN, '_', false},
	}
	for _, c := range cases {
		if got := c.class.IsMember(c.b); got != c.want {
			t.Errorf("%v.IsMember(%q) = %v, want %v", c.class, c.b, got, c.want)
		}
	}
}

func TestIsVowel(t *testing.T) {
	for _, b := range []byte("aeiouAEIOU") {
		if !IsVowel(b) {
			t.Errorf("IsVowel(%q) = false, want true", b)
		}
	}
	for _, b := range []byte("bcdxyz") {
		if IsVowel(b) {
			t.Errorf("IsVowel(%q) = true, want false", b)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("FooBar", false); got != "foobar" {
		t.Errorf("Fold(case-insensitive) = %q, want %q", got, "foobar")
	}
	if got := Fold("FooBar", true); got != "FooBar" {
		t.Errorf("Fold(case-sensitive) = %q, want %q", got, "FooBar")
	}
}

func TestLabels(t *testing.T) {
	cases := []struct {
		in   string
		want []string
		ok   bool
	}{
		{"register.co.uk", []string{"register", "co", "uk"}, true},
		{"example", []string{"example"}, true},
		{"", nil, false},
		{"a..b", nil, false},
		{".a", nil, false},
		{"a.", nil, false},
		{"a_b.com", nil, false},
	}
	for _, c := range cases {
		got, ok := Labels(c.in)
		if ok != c.ok {
			t.Errorf("Labels(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if len(got) != len(c.want) {
			t.Errorf("Labels(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("Labels(%q) = %v, want %v", c.in, got, c.want)
				break
			}
		}
	}
}
