package vrfygate

import (
	"bufio"
	"fmt"
	"net"
	"testing"
)

// fakeVrfyServer accepts one connection, sends a greeting, accepts the
// EHLO/HELO that net/smtp sends first, and replies to the VRFY command it
// receives with the given status line.
func fakeVrfyServer(t *testing.T, reply string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprint(conn, "220 fake.example.com ESMTP\r\n")

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if len(line) >= 4 && (line[:4] == "EHLO" || line[:4] == "HELO") {
				fmt.Fprint(conn, "250 fake.example.com\r\n")
				continue
			}
			if len(line) >= 4 && (line[:4] == "VRFY" || line[:4] == "vrfy") {
				fmt.Fprint(conn, reply)
				return
			}
		}
	}()

	t.Cleanup(func() { l.Close() })
	return l.Addr().String()
}

func TestGateDisabledAlwaysPasses(t *testing.T) {
	g := New("")
	ok, err := g.Verify("anyone")
	if err != nil || !ok {
		t.Fatalf("Verify on a disabled gate = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestGateAcceptsPositiveReply(t *testing.T) {
	addr := fakeVrfyServer(t, "250 2.1.5 jo <jo@example.com>\r\n")
	g := New(addr)

	ok, err := g.Verify("jo")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Errorf("Verify = false, want true for a 250 reply")
	}
}

func TestGateRejectsNegativeReply(t *testing.T) {
	addr := fakeVrfyServer(t, "550 5.1.1 no such user\r\n")
	g := New(addr)

	ok, err := g.Verify("nobody")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Errorf("Verify = true, want false for a 550 reply")
	}
}

func TestGateFailsOpenOnUnreachableHost(t *testing.T) {
	g := New("127.0.0.1:1") // nothing listens on port 1
	ok, err := g.Verify("jo")
	if err == nil {
		t.Fatalf("Verify: want an error for an unreachable host")
	}
	if !ok {
		t.Errorf("Verify = (false, err), want (true, err): connection failures must fail open")
	}
}
