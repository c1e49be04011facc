// trualias-util is a command-line utility for operating a running
// trualias-server: checking a configuration file offline, resolving an
// address against the live configuration, forcing a reload, and printing
// counters. Commands are dispatched from a docopt usage string rather than
// hand-rolled flag parsing.
package main

import (
	"fmt"
	"os"

	docopt "github.com/docopt/docopt-go"

	"github.com/m3047/trualias-go/internal/localrpc"
	"github.com/m3047/trualias-go/internal/truconfig"
)

const usage = `trualias-util.

Usage:
  trualias-util check-config <path>
  trualias-util resolve <address> [--virtual] [--socket=<path>]
  trualias-util reload [--socket=<path>]
  trualias-util stats [--socket=<path>]
  trualias-util -h | --help

Options:
  -h --help         Show this help.
  --virtual         Resolve in virtual-form mode (local@domain).
  --socket=<path>   Path to the local RPC socket. [default: /var/run/trualias/localrpc-v1]
`

func main() {
	args, err := docopt.Parse(usage, nil, true, "trualias-util", false)
	if err != nil {
		Fatalf("%v", err)
	}

	switch {
	case truthy(args["check-config"]):
		checkConfig(args["<path>"].(string))
	case truthy(args["resolve"]):
		resolve(args["<address>"].(string), truthy(args["--virtual"]), args["--socket"].(string))
	case truthy(args["reload"]):
		reload(args["--socket"].(string))
	case truthy(args["stats"]):
		showStats(args["--socket"].(string))
	default:
		fmt.Print(usage)
	}
}

// Fatalf prints the given message to stderr, then exits the program with an
// error code.
func Fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func truthy(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// trualias-util check-config <path>
//
// Compiles the configuration file offline (no running server required) and
// reports every diagnostic, exercising specparse/truconfig directly instead
// of talking to a live daemon.
func checkConfig(path string) {
	set, diags, err := truconfig.Load(path)
	if err != nil {
		Fatalf("Error reading %s: %v", path, err)
	}
	if diags != nil {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}

	fmt.Printf("OK: %d specification(s)\n", len(set.Specifications))
	if set.Options.DebugAccount != "" {
		fmt.Printf("debug account: %s\n", set.Options.DebugAccount)
	}
	if len(set.Options.AliasDomains) > 0 {
		fmt.Printf("alias domains: %v\n", set.Options.AliasDomains)
	}
}

// trualias-util resolve <address> [--virtual] [--socket=<path>]
//
// Talks to the running trualias-server over the local RPC socket.
func resolve(address string, virtual bool, socket string) {
	mode := "account"
	if virtual {
		mode = "virtual"
	}

	c := localrpc.NewClient(socket)
	vs, err := c.Call("resolve", "address", address, "Mode", mode)
	if err != nil {
		Fatalf("Error resolving: %v", err)
	}

	fmt.Printf("outcome: %s\n", vs.Get("Outcome"))
	if vs.Get("Reply") != "" {
		fmt.Printf("reply:   %s\n", vs.Get("Reply"))
	}
}

// trualias-util reload [--socket=<path>]
func reload(socket string) {
	c := localrpc.NewClient(socket)
	_, err := c.Call("reload")
	if err != nil {
		Fatalf("Error reloading: %v", err)
	}
	fmt.Println("reloaded")
}

// trualias-util stats [--socket=<path>]
func showStats(socket string) {
	c := localrpc.NewClient(socket)
	vs, err := c.Call("stats")
	if err != nil {
		Fatalf("Error fetching stats: %v", err)
	}
	fmt.Print(vs.Get("Report"))
}
