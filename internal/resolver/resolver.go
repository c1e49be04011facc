// Package resolver implements the top-level resolution entry point: given
// a snapshotted configuration and a lookup string, it runs every
// Specification's matcher and applies the union/disambiguation policy to
// produce a Resolved outcome. Resolve is a pure function of its inputs and
// a snapshotted configuration, instrumented with a trace span per query.
package resolver

import (
	"context"
	"strings"

	"github.com/m3047/trualias-go/internal/addrmatch"
	"github.com/m3047/trualias-go/internal/envelope"
	"github.com/m3047/trualias-go/internal/set"
	"github.com/m3047/trualias-go/internal/trace"
	"github.com/m3047/trualias-go/internal/truconfig"
)

// Outcome is the closed sum type of a resolution result.
type Outcome int

// Resolution outcomes.
const (
	NotFound Outcome = iota
	Matched
	Debug
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "match"
	case Debug:
		return "debug"
	default:
		return "not_found"
	}
}

// Resolved is the result of Resolve: Outcome tags which other fields are
// meaningful. Account is set only for Matched; Reply is set for Matched and
// Debug (the string to hand back to the MTA client).
type Resolved struct {
	Outcome Outcome
	Account string
	Reply   string
}

// Mode distinguishes account-form lookups ("bare local part") from
// virtual-form lookups ("local@domain").
type Mode int

// Lookup modes.
const (
	AccountForm Mode = iota
	VirtualForm
)

// Resolve runs the resolution procedure against cfg for input in mode.
func Resolve(ctx context.Context, cfg *truconfig.Set, mode Mode, input string) Resolved {
	tr := trace.New("resolver", "Resolve")
	defer tr.Finish()
	tr.Printf("mode=%v input=%q", mode, input)

	local, domain := input, ""
	if mode == VirtualForm {
		local, domain = envelope.Split(input)
		if domain == "" {
			tr.Printf("virtual-form input has no '@'")
			return Resolved{Outcome: NotFound}
		}
		if len(cfg.Options.AliasDomains) > 0 && !envelope.DomainIn(input, aliasDomainSet(cfg.Options.AliasDomains)) {
			tr.Printf("domain %q not in alias_domains", domain)
			return Resolved{Outcome: NotFound}
		}
	}

	winning := map[string]bool{}
	var order []string
	for _, spec := range cfg.Specifications {
		for _, cand := range addrmatch.Match(spec, local, cfg.Options.CaseSensitive) {
			if !winning[cand.Account] {
				winning[cand.Account] = true
				order = append(order, cand.Account)
			}
		}
	}

	switch len(order) {
	case 0:
		tr.Printf("no specification verified")
		return Resolved{Outcome: NotFound}
	case 1:
		account := order[0]
		return Resolved{Outcome: Matched, Account: account, Reply: reply(account, domain, mode)}
	default:
		tr.Printf("ambiguous: %d winning accounts", len(order))
		if cfg.Options.DebugAccount == "" {
			return Resolved{Outcome: NotFound}
		}
		return Resolved{Outcome: Debug, Reply: reply(cfg.Options.DebugAccount, domain, mode)}
	}
}

// aliasDomainSet builds a case-folded set.String from a configured
// alias_domains list. Rebuilt per call since truconfig.Set is immutable and
// small; callers hold it only for the duration of one Resolve.
func aliasDomainSet(domains []string) *set.String {
	folded := make([]string, len(domains))
	for i, d := range domains {
		folded[i] = strings.ToLower(d)
	}
	return set.NewString(folded...)
}

// reply renders the value a Matched/Debug outcome hands back to the MTA
// client: the bare account in account-form, account@domain in virtual-form.
// It is always the configured primary account, never the alias.
func reply(account, domain string, mode Mode) string {
	if mode == VirtualForm {
		return account + "@" + domain
	}
	return account
}
