// Package localrpc is a simple RPC mechanism that uses a line-oriented
// protocol for encoding and decoding, and Unix sockets for transport. It is
// meant for lightweight, occasional communication between trualias-server
// and trualias-util on the same machine (reload, resolve, stats).
//
// Every request line carries a protocolTag so a trualias-util binary talking
// to a socket left behind by an incompatible server version fails fast with
// a clear error instead of a method-not-found from a handler that happens
// to share a name. The "resolve" method additionally has its address
// argument bounded to maxAddressLen, since it is the only RPC whose
// argument is untrusted lookup input rather than an operator-supplied path
// or flag.
package localrpc

import (
	"errors"
	"net"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/m3047/trualias-go/internal/trace"
)

// protocolTag prefixes every request line. Bumped if the wire format
// changes in an incompatible way.
const protocolTag = "trualias-rpc/1"

// maxAddressLen bounds the "address" argument of a resolve request: no
// valid account-form or virtual-form lookup input is longer than an RFC
// 5321 reverse-path (local-part + '@' + domain, 64 + 1 + 255).
const maxAddressLen = 320

var errBadProtocolTag = errors.New("localrpc: missing or unrecognized protocol tag")
var errAddressTooLong = errors.New("localrpc: address argument exceeds maximum length")

// Handler is the type of RPC request handlers.
type Handler func(tr *trace.Trace, input url.Values) (url.Values, error)

// Server represents the RPC server.
type Server struct {
	handlers map[string]Handler
	lis      net.Listener
}

// NewServer creates a new local RPC server.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]Handler),
	}
}

var errUnknownMethod = errors.New("unknown method")

// Register a handler for the given name.
func (s *Server) Register(name string, handler Handler) {
	s.handlers[name] = handler
}

// ListenAndServe starts the server on the given Unix socket path.
func (s *Server) ListenAndServe(path string) error {
	tr := trace.New("LocalRPC.Server", path)
	defer tr.Finish()

	// Previous instances may have shut down uncleanly, leaving the socket
	// file behind; remove it just in case.
	os.Remove(path)

	var err error
	s.lis, err = net.Listen("unix", path)
	if err != nil {
		return err
	}

	tr.Printf("listening")
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			tr.Errorf("accept error: %v", err)
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops the server.
func (s *Server) Close() error {
	return s.lis.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	tr := trace.New("LocalRPC.Handle", conn.RemoteAddr().String())
	defer tr.Finish()

	// A generous deadline prevents a misbehaving client from tying up a
	// server goroutine indefinitely.
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	tconn := textproto.NewConn(conn)
	defer tconn.Close()

	name, inS, err := readRequest(&tconn.Reader)
	if err != nil {
		tr.Debugf("error reading request: %v", err)
		return
	}
	tr.Debugf("<- %s %s", name, inS)

	handler, ok := s.handlers[name]
	if !ok {
		writeError(tr, tconn, errUnknownMethod)
		return
	}

	inV, err := url.ParseQuery(inS)
	if err != nil {
		writeError(tr, tconn, err)
		return
	}

	if name == "resolve" && len(inV.Get("address")) > maxAddressLen {
		writeError(tr, tconn, errAddressTooLong)
		return
	}

	outV, err := handler(tr, inV)
	if err != nil {
		writeError(tr, tconn, err)
		return
	}

	outS := outV.Encode()
	tr.Debugf("-> 200 %s", outS)
	tconn.PrintfLine("200 %s", outS)
}

func readRequest(r *textproto.Reader) (string, string, error) {
	line, err := r.ReadLine()
	if err != nil {
		return "", "", err
	}

	tag, rest, ok := strings.Cut(line, " ")
	if !ok || tag != protocolTag {
		return "", "", errBadProtocolTag
	}

	sp := strings.SplitN(rest, " ", 2)
	if len(sp) == 1 {
		return sp[0], "", nil
	}
	return sp[0], sp[1], nil
}

func writeError(tr *trace.Trace, tconn *textproto.Conn, err error) {
	tr.Errorf("-> 500 %s", err.Error())
	tconn.PrintfLine("500 %s", err.Error())
}

// DefaultServer is a singleton server used for convenience.
var DefaultServer = NewServer()

// Client for the localrpc server.
type Client struct {
	path string
}

// NewClient creates a new client for the given socket path.
func NewClient(path string) *Client {
	return &Client{path: path}
}

// CallWithValues calls the given method with structured arguments.
func (c *Client) CallWithValues(name string, input url.Values) (url.Values, error) {
	if name == "resolve" && len(input.Get("address")) > maxAddressLen {
		return nil, errAddressTooLong
	}

	conn, err := textproto.Dial("unix", c.path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	err = conn.PrintfLine("%s %s %s", protocolTag, name, input.Encode())
	if err != nil {
		return nil, err
	}

	code, msg, err := conn.ReadCodeLine(0)
	if err != nil {
		return nil, err
	}
	if code != 200 {
		return nil, errors.New(msg)
	}

	return url.ParseQuery(msg)
}

// Call the given method. Arguments are key-value strings, given in pairs.
func (c *Client) Call(name string, args ...string) (url.Values, error) {
	v := url.Values{}
	for i := 0; i < len(args); i += 2 {
		v.Set(args[i], args[i+1])
	}
	return c.CallWithValues(name, v)
}
