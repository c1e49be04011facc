// Package reload implements the configuration file watcher: a file-mtime
// poller (a ticker checking the configuration file on an interval,
// reloading on mtime change) rather than a filesystem-notification watcher.
// truconfig.Set is swapped in as a unit via atomic.Pointer, so query
// workers always observe an entire old or an entire new configuration:
// reload is all-or-nothing.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"blitiri.com.ar/go/log"

	"github.com/m3047/trualias-go/internal/querylog"
	"github.com/m3047/trualias-go/internal/trace"
	"github.com/m3047/trualias-go/internal/truconfig"
)

// DefaultInterval is how often the configuration file's mtime is checked
// when the caller does not specify one.
const DefaultInterval = 30 * time.Second

// Watcher holds the live ConfigurationSet and periodically reloads it from
// Path on change.
type Watcher struct {
	Path     string
	Interval time.Duration

	set atomic.Pointer[truconfig.Set]

	mu      sync.Mutex
	lastMod time.Time

	events *trace.EventLog
}

// New loads Path once (failing if the initial load fails) and returns a
// Watcher ready to be polled via Run. The Watcher outlives any single
// lookup, so its reload history is recorded on an EventLog rather than a
// per-request Trace.
func New(path string, interval time.Duration) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{
		Path:     path,
		Interval: interval,
		events:   trace.NewEventLog("reload.Watcher", path),
	}
	if err := w.reload(); err != nil {
		return nil, err
	}
	w.events.Printf("initial load ok")
	return w, nil
}

// Current returns the currently published ConfigurationSet. Safe to call
// concurrently with Run.
func (w *Watcher) Current() *truconfig.Set {
	return w.set.Load()
}

// Reload forces an immediate reload from Path, regardless of mtime,
// for callers that already know the file changed (the "reload" local RPC
// command). On failure the previous ConfigurationSet remains published and
// the diagnostics are returned.
func (w *Watcher) Reload() error {
	if err := w.reload(); err != nil {
		w.events.Errorf("forced reload: %v", err)
		querylog.Reload(w.Path, err)
		return err
	}
	w.events.Printf("forced reload ok")
	querylog.Reload(w.Path, nil)
	return nil
}

// Run polls Path on Interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.maybeReload()
		}
	}
}

func (w *Watcher) maybeReload() {
	fi, err := os.Stat(w.Path)
	if err != nil {
		log.Errorf("reload: stat %s: %v", w.Path, err)
		return
	}

	w.mu.Lock()
	changed := fi.ModTime().After(w.lastMod)
	w.mu.Unlock()
	if !changed {
		return
	}

	if err := w.reload(); err != nil {
		log.Errorf("reload: keeping previous configuration: %v", err)
		w.events.Errorf("mtime-triggered reload: %v", err)
		querylog.Reload(w.Path, err)
		return
	}
	w.events.Printf("mtime-triggered reload ok")
	querylog.Reload(w.Path, nil)
}

func (w *Watcher) reload() error {
	set, diags, err := truconfig.Load(w.Path)
	if err != nil {
		return err
	}
	if diags != nil {
		return diags
	}

	if fi, err := os.Stat(w.Path); err == nil {
		w.mu.Lock()
		w.lastMod = fi.ModTime()
		w.mu.Unlock()
	}

	w.set.Store(set)
	return nil
}
