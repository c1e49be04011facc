// Package hooks implements the optional PROCESSOR pre/post-processing
// indirection: an external command that may rewrite (local, domain) before
// resolution and, symmetrically, the resolved account after. It runs via
// exec.CommandContext with a bounded timeout, trace-logged output, and
// result counters.
package hooks

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/m3047/trualias-go/internal/stats"
	"github.com/m3047/trualias-go/internal/trace"
)

// timeout bounds how long the PROCESSOR command may run.
const timeout = 5 * time.Second

// Hook runs an external PROCESSOR command to rewrite an address before or
// after resolution. A zero Hook (empty Path) is inert: Run returns its
// input unchanged.
type Hook struct {
	Path string
}

// New returns a Hook for the given PROCESSOR config value. An empty path
// yields an inert hook.
func New(path string) Hook {
	return Hook{Path: path}
}

// Run invokes the hook with stage and input as arguments ("pre"/"post",
// and the local part or resolved account being processed) and returns its
// trimmed stdout, or input unchanged if no hook is configured, the hook
// binary is missing, or it fails.
func (h Hook) Run(stage, input string) string {
	if h.Path == "" {
		stats.Inc(stats.Bucket("hook_" + stage + "_notset"))
		return input
	}
	if _, err := os.Stat(h.Path); os.IsNotExist(err) {
		stats.Inc(stats.Bucket("hook_" + stage + "_skip"))
		return input
	}

	tr := trace.New("Hooks.Processor", stage)
	defer tr.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Path, stage, input)
	out, err := cmd.Output()
	if err != nil {
		stats.Inc(stats.Bucket("hook_" + stage + "_fail"))
		tr.Error(err)
		return input
	}

	stats.Inc(stats.Bucket("hook_" + stage + "_ok"))
	result := strings.TrimSpace(string(out))
	tr.Printf("%s(%q) -> %q", stage, input, result)
	if result == "" {
		return input
	}
	return result
}
