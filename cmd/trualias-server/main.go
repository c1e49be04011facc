// trualias-server answers tcp_table(5) lookups from a trualias
// configuration file: alias specifications are verified against their
// embedded code and resolved to a deliverable account.
//
// See https://github.com/m3047/trualias for the original design.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"blitiri.com.ar/go/log"
	"blitiri.com.ar/go/systemd"

	"github.com/m3047/trualias-go/internal/hooks"
	"github.com/m3047/trualias-go/internal/localrpc"
	"github.com/m3047/trualias-go/internal/querylog"
	"github.com/m3047/trualias-go/internal/reload"
	"github.com/m3047/trualias-go/internal/resolver"
	"github.com/m3047/trualias-go/internal/stats"
	"github.com/m3047/trualias-go/internal/tcptable"
	"github.com/m3047/trualias-go/internal/trace"
	"github.com/m3047/trualias-go/internal/truconfig"
)

// Command-line flags.
var (
	configPath = flag.String("config", "/etc/trualias/trualias.conf",
		"path to the trualias configuration file")
	reloadInterval = flag.Duration("reload_interval", reload.DefaultInterval,
		"how often to check the configuration file for changes")
	rpcSocket = flag.String("rpc_socket", "/var/run/trualias/localrpc-v1",
		"path to the local control-plane RPC socket")
	queryLogPath = flag.String("querylog", "<stdout>",
		"where to write the query log (a path, <stdout>, <stderr> or <syslog>)")
	virtual = flag.Bool("virtual", false,
		"run in virtual-form mode (lookups are local@domain, not bare accounts); "+
			"overridden by ALIAS DOMAINS being set in the configuration")
	showVer = flag.Bool("version", false, "show version and exit")
)

// Build information, overridden at build time using -ldflags="-X main.version=blah".
var version = "undefined"

// Exit codes.
const (
	exitConfig      = 2
	exitBindFailure = 3
)

func main() {
	flag.Parse()
	log.Init()

	if *showVer {
		fmt.Printf("trualias-server %s\n", version)
		return
	}

	log.Infof("trualias-server starting (version %s)", version)

	initQueryLog(*queryLogPath)

	watcher, err := reload.New(*configPath, *reloadInterval)
	if err != nil {
		log.Errorf("Error loading configuration: %v", err)
		os.Exit(exitConfig)
	}

	go signalHandler()
	go watcher.Run(context.Background())
	go launchLocalRPC(watcher)

	mode := resolver.AccountForm
	if *virtual || len(watcher.Current().Options.AliasDomains) > 0 {
		mode = resolver.VirtualForm
	}

	srv := &tcptable.Server{
		Watcher:        watcher,
		Mode:           mode,
		Processor:      hooks.New(watcher.Current().Options.Processor),
		HAProxyEnabled: watcher.Current().Options.ProxyProtocol,
	}

	l, err := listener(watcher.Current().Options)
	if err != nil {
		log.Errorf("Error binding: %v", err)
		os.Exit(exitBindFailure)
	}

	log.Infof("listening on %s (mode=%v)", l.Addr(), mode)
	if err := srv.Serve(context.Background(), l); err != nil {
		log.Errorf("Error serving: %v", err)
		os.Exit(exitBindFailure)
	}
}

// listener binds the configured HOST/PORT, or obtains a socket via systemd
// socket activation when HOST is "systemd".
func listener(opts truconfig.Options) (net.Listener, error) {
	port := opts.Port
	if port == "" {
		port = "4141"
	}

	if opts.Host == "systemd" {
		ls, err := systemd.Listeners()
		if err != nil {
			return nil, err
		}
		for _, l := range ls["trualias"] {
			return l, nil
		}
		return nil, fmt.Errorf("no systemd-activated socket named %q", "trualias")
	}

	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.Listen("tcp", host+":"+port)
}

func initQueryLog(path string) {
	var err error
	var l *querylog.Logger

	switch path {
	case "<syslog>":
		l, err = querylog.NewSyslog()
	case "<stdout>":
		l = querylog.New(os.Stdout)
	case "<stderr>":
		l = querylog.New(os.Stderr)
	default:
		f, oerr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if oerr != nil {
			err = oerr
		} else {
			l = querylog.New(f)
		}
	}
	if err != nil {
		log.Fatalf("Error opening query log: %v", err)
	}
	querylog.Default = l
}

// launchLocalRPC registers the operational RPC handlers trualias-util talks
// to and serves them on rpcSocket.
func launchLocalRPC(watcher *reload.Watcher) {
	s := localrpc.NewServer()
	s.Register("resolve", resolveRPC(watcher))
	s.Register("reload", reloadRPC(watcher))
	s.Register("stats", statsRPC())

	if err := s.ListenAndServe(*rpcSocket); err != nil {
		log.Errorf("localrpc: %v", err)
	}
}

func resolveRPC(watcher *reload.Watcher) localrpc.Handler {
	return func(tr *trace.Trace, req url.Values) (url.Values, error) {
		mode := resolver.AccountForm
		if req.Get("Mode") == "virtual" {
			mode = resolver.VirtualForm
		}
		res := resolver.Resolve(context.Background(), watcher.Current(), mode, req.Get("address"))

		out := url.Values{}
		out.Set("Outcome", res.Outcome.String())
		out.Set("Account", res.Account)
		out.Set("Reply", res.Reply)
		return out, nil
	}
}

func reloadRPC(watcher *reload.Watcher) localrpc.Handler {
	return func(tr *trace.Trace, req url.Values) (url.Values, error) {
		if err := watcher.Reload(); err != nil {
			return nil, err
		}
		return url.Values{"Status": []string{"ok"}}, nil
	}
}

func statsRPC() localrpc.Handler {
	return func(tr *trace.Trace, req url.Values) (url.Values, error) {
		return url.Values{"Report": []string{stats.Report()}}, nil
	}
}

func signalHandler() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP)

	for sig := range signals {
		switch sig {
		case syscall.SIGHUP:
			if err := log.Default.Reopen(); err != nil {
				log.Errorf("Error reopening log: %v", err)
			}
		default:
			log.Errorf("Unexpected signal %v", sig)
		}
	}
}
