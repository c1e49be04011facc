// Package querylog implements a log specifically for trualias lookups: a
// timed writer, a once-protected error report so a broken log destination
// is only complained about once, and a package-level default logger,
// logging one line per resolved query.
package querylog

import (
	"fmt"
	"io"
	"io/ioutil"
	"log/syslog"
	"net"
	"sync"
	"time"

	"blitiri.com.ar/go/log"
)

// A writer that prepends timing information.
type timedWriter struct {
	w io.Writer
}

func (t timedWriter) Write(b []byte) (int, error) {
	fmt.Fprintf(t.w, "%s  ", time.Now().Format("2006-01-02 15:04:05.000000"))
	return t.w.Write(b)
}

// Logger writes one line per trualias query to a backend writer (a file
// or syslog).
type Logger struct {
	w    io.Writer
	once sync.Once
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{w: timedWriter{w}}
}

// NewSyslog creates a Logger writing to syslog.
func NewSyslog() (*Logger, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_MAIL, "trualias")
	if err != nil {
		return nil, err
	}
	return &Logger{w: w}, nil
}

func (l *Logger) printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(l.w, format, args...); err != nil {
		l.once.Do(func() {
			log.Errorf("failed to write to querylog: %v", err)
			log.Errorf("(will not report this again)")
		})
	}
}

// Listening logs that the daemon is listening on the given address.
func (l *Logger) Listening(a string) {
	l.printf("daemon listening on %s\n", a)
}

// Query logs one resolved lookup: the peer address, the raw input, the
// resolution outcome ("match"/"not_found"/"debug", or "vrfy_rejected" when
// the secondary VRFY gate turned a match down), the returned reply
// (empty for not_found), and how long resolution took.
func (l *Logger) Query(peer net.Addr, input, outcome, reply string, d time.Duration) {
	l.printf("%s query=%q outcome=%s reply=%q took=%s\n", peer, input, outcome, reply, d)
}

// Reload logs the outcome of a configuration reload attempt.
func (l *Logger) Reload(path string, err error) {
	if err == nil {
		l.printf("reloaded configuration from %s\n", path)
	} else {
		l.printf("failed to reload configuration from %s: %v\n", path, err)
	}
}

// Default logger, used by the package-level functions below.
var Default = New(ioutil.Discard)

// Listening logs that the daemon is listening on the given address.
func Listening(a string) { Default.Listening(a) }

// Query logs one resolved lookup.
func Query(peer net.Addr, input, outcome, reply string, d time.Duration) {
	Default.Query(peer, input, outcome, reply, d)
}

// Reload logs the outcome of a configuration reload attempt.
func Reload(path string, err error) { Default.Reload(path, err) }
