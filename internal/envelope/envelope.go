// Package envelope implements address-splitting helpers shared by the
// virtual-form lookup path.
package envelope

import (
	"strings"

	"github.com/m3047/trualias-go/internal/set"
)

// Split a local@domain address into local and domain. If addr has no '@',
// Split returns (addr, "").
func Split(addr string) (string, string) {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}

// UserOf local@domain returns local.
func UserOf(addr string) string {
	user, _ := Split(addr)
	return user
}

// DomainOf local@domain returns domain.
func DomainOf(addr string) string {
	_, domain := Split(addr)
	return domain
}

// DomainIn checks that addr's domain is in allowed. An addr with no domain
// (no '@') is always allowed, matching account-form lookups that never carry
// one. allowed is matched case-insensitively, since DNS domains are.
func DomainIn(addr string, allowed *set.String) bool {
	domain := DomainOf(addr)
	if domain == "" {
		return true
	}
	return allowed.Has(strings.ToLower(domain))
}
