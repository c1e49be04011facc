package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validConf = `ACCOUNT foo MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();`

const otherValidConf = `ACCOUNT bar MATCHES "%account%-%ident%-%code%" WITH CHAR(1,-), CHARS();`

func writeConf(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestNewLoadsInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(w.Current().Specifications) != 1 {
		t.Fatalf("initial Specifications = %d, want 1", len(w.Current().Specifications))
	}
	if w.Current().Specifications[0].Accounts[0] != "foo" {
		t.Errorf("initial account = %q, want foo", w.Current().Specifications[0].Accounts[0])
	}
}

func TestNewFailsOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, `ACCOUNT foo MATCHES "%ident%%ident%-%code%" WITH CHARS(1), CHARS(2);`)

	if _, err := New(path, time.Hour); err == nil {
		t.Fatalf("New: want error for an invalid initial configuration")
	}
}

func TestReloadOnMtimeChangeKeepsOldOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Write a broken config with a newer mtime; maybeReload must leave the
	// previous Set in place.
	future := time.Now().Add(time.Minute)
	writeConf(t, path, `not a valid config :`)
	os.Chtimes(path, future, future)

	w.maybeReload()
	if w.Current().Specifications[0].Accounts[0] != "foo" {
		t.Fatalf("Current() changed after a failed reload")
	}
}

func TestReloadOnMtimeChangeSwapsSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	future := time.Now().Add(time.Minute)
	writeConf(t, path, otherValidConf)
	os.Chtimes(path, future, future)

	w.maybeReload()
	if w.Current().Specifications[0].Accounts[0] != "bar" {
		t.Fatalf("Current().Specifications[0].Accounts[0] = %q, want bar",
			w.Current().Specifications[0].Accounts[0])
	}
}

func TestExplicitReloadSwapsSetWithoutMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Overwrite in place without touching mtime forward in a detectable way;
	// Reload must still pick it up since it bypasses the mtime gate.
	writeConf(t, path, otherValidConf)

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if w.Current().Specifications[0].Accounts[0] != "bar" {
		t.Fatalf("Current().Specifications[0].Accounts[0] = %q, want bar",
			w.Current().Specifications[0].Accounts[0])
	}
}

func TestExplicitReloadKeepsOldOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	writeConf(t, path, `not a valid config :`)

	if err := w.Reload(); err == nil {
		t.Fatalf("Reload: want error for an invalid configuration")
	}
	if w.Current().Specifications[0].Accounts[0] != "foo" {
		t.Fatalf("Current() changed after a failed Reload")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trualias.conf")
	writeConf(t, path, validConf)

	w, err := New(path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
