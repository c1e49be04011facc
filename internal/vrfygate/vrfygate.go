// Package vrfygate implements the optional secondary SMTP-VRFY delivery
// gate: before a verified alias is trusted, issue "VRFY <account>" against
// a configured upstream SMTP host and require a positive reply. Dialing and
// timeout handling follow the conventions used elsewhere in this tree; the
// VRFY command itself is exactly net/smtp.Client.Verify, so no custom SMTP
// client wrapper is needed for it.
package vrfygate

import (
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/m3047/trualias-go/internal/trace"
)

const (
	dialTimeout = 10 * time.Second
	cmdTimeout  = 20 * time.Second
)

// Gate optionally double-checks a resolved account against an upstream
// SMTP server's VRFY response before the resolver hands it back. A zero
// Gate (empty Host) is inert: Verify always passes.
type Gate struct {
	Host string // "host:port" of the upstream SMTP server; empty disables the gate
}

// New returns a Gate for the given upstream host:port. An empty host
// yields an inert gate.
func New(host string) Gate {
	return Gate{Host: host}
}

// Verify reports whether account is accepted by the upstream server's
// VRFY command. A disabled gate reports (true, nil). A failure to reach or
// talk to the upstream (dial, greeting, or an I/O error during the
// exchange) reports (true, err): the gate fails open, so a misconfigured or
// unreachable secondary gate never blocks delivery. An SMTP error reply
// from the upstream is a clean rejection and reports (false, nil).
func (g Gate) Verify(account string) (bool, error) {
	if g.Host == "" {
		return true, nil
	}

	tr := trace.New("VrfyGate", account)
	defer tr.Finish()

	helloHost, _, err := net.SplitHostPort(g.Host)
	if err != nil {
		helloHost = g.Host
	}

	conn, err := net.DialTimeout("tcp", g.Host, dialTimeout)
	if err != nil {
		return true, tr.Errorf("dial %s: %v", g.Host, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(cmdTimeout))

	c, err := smtp.NewClient(conn, helloHost)
	if err != nil {
		return true, tr.Errorf("smtp client: %v", err)
	}
	defer c.Close()

	if err := c.Verify(account); err != nil {
		var smtpReply *textproto.Error
		if !errors.As(err, &smtpReply) {
			return true, tr.Errorf("VRFY %s: %v", account, err)
		}
		tr.Printf("VRFY %s: rejected: %v", account, err)
		return false, nil
	}
	tr.Printf("VRFY %s: accepted", account)
	return true, nil
}
