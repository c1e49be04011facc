// Package tcptable implements the Postfix tcp_table(5) line protocol: one
// "get <key>\n" request per line, answered with "200 <value>\n",
// "400 <reason>\n" or "500 <reason>\n". The connection-handling shape is
// one goroutine per net.Conn, buffered line reads, a per-command deadline
// and a trace.Trace per request.
package tcptable

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"blitiri.com.ar/go/log"

	"github.com/m3047/trualias-go/internal/haproxy"
	"github.com/m3047/trualias-go/internal/hooks"
	"github.com/m3047/trualias-go/internal/querylog"
	"github.com/m3047/trualias-go/internal/reload"
	"github.com/m3047/trualias-go/internal/resolver"
	"github.com/m3047/trualias-go/internal/stats"
	"github.com/m3047/trualias-go/internal/trace"
	"github.com/m3047/trualias-go/internal/vrfygate"
)

// tcp_table(5) reply codes.
const (
	statusOK       = 200
	statusTemp     = 400
	statusNotFound = 500
)

// DefaultCommandTimeout bounds how long the server waits for a request line
// once a connection is accepted, mirroring smtpsrv.Server.commandTimeout.
const DefaultCommandTimeout = 30 * time.Second

// Server answers tcp_table(5) lookups against a live configuration watcher.
type Server struct {
	Addr    string
	Watcher *reload.Watcher
	Mode    resolver.Mode

	// Processor runs the optional pre/post-processing hook (PROCESSOR
	// config item). Zero value is a no-op hook.
	Processor hooks.Hook

	HAProxyEnabled bool
	CommandTimeout time.Duration
}

// ListenAndServe opens s.Addr and serves connections until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, or Accept fails.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	defer l.Close()
	querylog.Listening(l.Addr().String())

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		stats.Inc(stats.Connections)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	timeout := s.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	r := bufio.NewReader(conn)
	peer := conn.RemoteAddr()

	if s.HAProxyEnabled {
		src, _, err := haproxy.Handshake(r)
		if err != nil {
			log.Errorf("tcptable: haproxy handshake from %v: %v", conn.RemoteAddr(), err)
			return
		}
		peer = src
	}

	for {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		stats.Inc(stats.Reads)

		out := s.handleLine(peer, strings.TrimRight(line, "\r\n"))

		stats.Inc(stats.Writes)
		if _, err := conn.Write([]byte(out)); err != nil {
			return
		}
	}
}

func (s *Server) handleLine(peer net.Addr, line string) string {
	tr := trace.New("tcptable", "handleLine")
	defer tr.Finish()
	tr.Printf("line=%q", line)

	fields := strings.SplitN(line, " ", 2)
	switch strings.ToLower(strings.TrimSpace(fields[0])) {
	case "get":
		if len(fields) != 2 || fields[1] == "" {
			stats.Inc(stats.Bad)
			return reply(statusTemp, "missing key")
		}
		return s.handleGet(peer, fields[1])
	case "stats":
		stats.Inc(stats.StatsCmd)
		return reply(statusOK, encodeValue(strings.TrimRight(stats.Report(), "\n")))
	case "jstats":
		stats.Inc(stats.StatsCmd)
		return reply(statusOK, encodeValue(jsonReport()))
	default:
		stats.Inc(stats.Bad)
		return reply(statusNotFound, fmt.Sprintf("unknown command %q", fields[0]))
	}
}

func (s *Server) handleGet(peer net.Addr, encodedKey string) string {
	key, err := decodeKey(encodedKey)
	if err != nil {
		stats.Inc(stats.Bad)
		return reply(statusTemp, "malformed key")
	}
	key = s.Processor.Run("pre", key)

	cfg := s.Watcher.Current()
	start := time.Now()
	res := resolver.Resolve(context.Background(), cfg, s.Mode, key)
	took := time.Since(start)

	if res.Outcome == resolver.Matched {
		ok, err := vrfygate.New(cfg.Options.VrfyHost).Verify(res.Account)
		if err != nil {
			log.Errorf("tcptable: vrfy gate: %v", err)
		}
		if !ok {
			stats.Inc(stats.NotFound)
			querylog.Query(peer, key, "vrfy_rejected", "", took)
			return reply(statusNotFound, "")
		}
	}

	switch res.Outcome {
	case resolver.Matched, resolver.Debug:
		out := s.Processor.Run("post", res.Reply)
		stats.Inc(stats.Success)
		querylog.Query(peer, key, res.Outcome.String(), out, took)
		return reply(statusOK, encodeValue(out))
	default:
		stats.Inc(stats.NotFound)
		querylog.Query(peer, key, res.Outcome.String(), "", took)
		return reply(statusNotFound, "")
	}
}

func reply(code int, text string) string {
	if text == "" {
		return fmt.Sprintf("%d\n", code)
	}
	return fmt.Sprintf("%d %s\n", code, text)
}

// decodeKey reverses the tcp_table(5) %HH escaping: any byte may be written
// as a literal, or as '%' followed by two hex digits.
func decodeKey(s string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			sb.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("tcptable: truncated %%HH escape in %q", s)
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil || len(b) != 1 {
			return "", fmt.Errorf("tcptable: invalid %%HH escape in %q", s)
		}
		sb.WriteByte(b[0])
		i += 2
	}
	return sb.String(), nil
}

// encodeValue escapes bytes that would be unsafe to place verbatim in a
// tcp_table(5) reply line: control characters, space, '%' and anything
// outside printable 7-bit ASCII.
func encodeValue(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b <= 0x20 || b >= 0x7f || b == '%' {
			fmt.Fprintf(&sb, "%%%02X", b)
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

type jsonBucket struct {
	Bucket  string        `json:"bucket"`
	Total   int64         `json:"total"`
	Windows []jsonWindow  `json:"windows"`
}

type jsonWindow struct {
	Seconds int     `json:"seconds"`
	Count   int     `json:"count"`
	Min     int64   `json:"min"`
	Max     int64   `json:"max"`
	Avg     float64 `json:"avg"`
}

// jsonReport renders the same counters as stats.Report, as a single-line
// JSON document, for the "jstats" administrative command.
func jsonReport() string {
	var out []jsonBucket
	for _, b := range stats.Buckets() {
		total, windows := stats.Snapshot(b)
		jb := jsonBucket{Bucket: string(b), Total: total}
		for _, w := range windows {
			jb.Windows = append(jb.Windows, jsonWindow{
				Seconds: w.WindowSecond, Count: w.Count, Min: w.Min, Max: w.Max, Avg: w.Avg,
			})
		}
		out = append(out, jb)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}
