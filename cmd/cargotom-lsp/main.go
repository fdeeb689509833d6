// Package main is the entry point for the cargotom-lsp language server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/server"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()
	if opts.showVersion {
		fmt.Printf("cargotom-lsp %s (%s)\n", version, commit)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.daemonAddr != "" {
		return runDaemon(ctx, opts)
	}
	return runStdio(ctx)
}

func runStdio(ctx context.Context) int {
	transport := server.NewTransport(os.Stdin, os.Stdout)
	srv := server.NewServer(transport)
	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cargotom-lsp: %v\n", err)
		return 1
	}
	return 0
}

// runDaemon starts the shared TCP daemon described in spec.md §5, holding a
// single Provider/Cache for every editor session on the machine to attach
// to, plus a read-only /status and /healthz HTTP surface on statusAddr.
func runDaemon(ctx context.Context, opts cliOptions) int {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "cargotom-lsp-daemon"})

	var provider registry.Provider
	if opts.offline {
		provider = registry.NewOfflineProvider()
	} else {
		provider = registry.NewOnlineProvider(registry.WithLogger(logger))
	}
	cache := registry.NewCache(provider)

	d := server.NewDaemon(cache, opts.redisAddr, logger)

	if opts.statusAddr != "" {
		go func() {
			logger.Info("status endpoint listening", "addr", opts.statusAddr)
			if err := http.ListenAndServe(opts.statusAddr, d.StatusRouter()); err != nil {
				logger.Error("status endpoint failed", "error", err)
			}
		}()
	}

	logger.Info("daemon listening", "addr", opts.daemonAddr)
	if err := d.ListenAndServe(ctx, opts.daemonAddr); err != nil {
		fmt.Fprintf(os.Stderr, "cargotom-lsp-daemon: %v\n", err)
		return 1
	}
	return 0
}

type cliOptions struct {
	daemonAddr  string
	statusAddr  string
	redisAddr   string
	offline     bool
	showVersion bool
}

func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.daemonAddr, "daemon", "", "run as a shared daemon listening on this loopback address instead of stdio")
	flag.StringVar(&opts.statusAddr, "status-addr", "", "loopback address for the read-only /status and /healthz endpoints (daemon mode only)")
	flag.StringVar(&opts.redisAddr, "cache-addr", "", "optional Redis address for a shared, cross-restart cache (daemon mode only)")
	flag.BoolVar(&opts.offline, "offline", false, "use only the on-disk offline crate index, never reach the network")
	flag.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flag.Parse()
	return opts
}
