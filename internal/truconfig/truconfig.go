// Package truconfig builds the ConfigurationSet: one-shot compilation from
// source text into an immutable Set. Publication is done by package reload,
// which swaps whole Sets atomically so query workers always see either an
// entire old configuration or an entire new one, never a partial reload.
package truconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/m3047/trualias-go/internal/specparse"
)

// Options holds the global configuration: case_sensitive, debug_account
// and alias_domains are consumed directly by the core; the remaining fields
// are transport/operational configuration the core treats as opaque.
type Options struct {
	CaseSensitive bool
	DebugAccount  string   // empty when not configured
	AliasDomains  []string // empty in account-form mode

	Host          string
	Port          string
	Statistics    string // cadence spec, e.g. "60s"; opaque to the core
	LogLevel      string
	Processor     string // preprocess-hook identifier; opaque to the core
	VrfyHost      string // upstream "host:port" for the secondary VRFY gate; empty disables it
	ProxyProtocol bool   // true if incoming connections are wrapped in a PROXY protocol v1 header
}

// Set is a fully compiled, immutable configuration: Options plus every
// Specification parsed from the source. It is swapped in as a unit by
// package reload via atomic.Pointer[Set], so reload never exposes a
// partially-updated configuration to a concurrent query.
type Set struct {
	Options        Options
	Specifications []*specparse.Specification
}

// Load reads path, compiles it, and returns a ready-to-publish Set. On any
// syntax or semantic failure it returns a non-empty DiagnosticList and a nil
// Set; the caller is expected to keep using its previous Set. Reload is
// all-or-nothing: a failed compilation never partially replaces the live
// configuration.
func Load(path string) (*Set, specparse.DiagnosticList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("truconfig: reading %s: %w", path, err)
	}

	res, diags := specparse.Parse(string(data))
	if diags != nil {
		return nil, diags, nil
	}

	opts, optDiags := buildOptions(res.ConfigItems)
	if optDiags != nil {
		return nil, optDiags, nil
	}

	return &Set{Options: opts, Specifications: res.Specs}, nil, nil
}

func buildOptions(items []specparse.ConfigItem) (Options, specparse.DiagnosticList) {
	var opts Options
	var diags specparse.DiagnosticList

	for _, item := range items {
		if specparse.MilterOnlyConfigItems[item.Name] {
			continue
		}
		switch item.Name {
		case "CASE SENSITIVE":
			v, ok := parseBool(item.Value)
			if !ok {
				diags = append(diags, badValue(item, "a boolean"))
				continue
			}
			opts.CaseSensitive = v
		case "DEBUG ACCOUNT":
			opts.DebugAccount = item.Value
		case "ALIAS DOMAINS":
			opts.AliasDomains = splitCSV(item.Value)
		case "HOST":
			opts.Host = item.Value
		case "PORT":
			if _, err := strconv.Atoi(item.Value); err != nil {
				diags = append(diags, badValue(item, "a port number"))
				continue
			}
			opts.Port = item.Value
		case "STATISTICS":
			opts.Statistics = item.Value
		case "LOGGING":
			opts.LogLevel = item.Value
		case "PROCESSOR":
			opts.Processor = item.Value
		case "VRFY HOST":
			opts.VrfyHost = item.Value
		case "PROXY PROTOCOL":
			v, ok := parseBool(item.Value)
			if !ok {
				diags = append(diags, badValue(item, "a boolean"))
				continue
			}
			opts.ProxyProtocol = v
		}
	}

	return opts, diags
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func badValue(item specparse.ConfigItem, want string) specparse.Diagnostic {
	return specparse.Diagnostic{
		Kind:    specparse.SemanticError,
		Line:    item.Pos.Line,
		Col:     item.Pos.Col,
		Message: fmt.Sprintf("configuration item %q expects %s, got %q", item.Name, want, item.Value),
	}
}
