// Command inspectord runs the AOI inspection service core: it wires
// internal/config, internal/logging, and internal/engine into an HTTP
// server and serves the REST surface from internal/httpapi. Grounded on
// the teacher's cmd/agentcli/main.go: a thin main() that hands off to a
// testable run() taking argv + stdio, returning the process exit code.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aoipipeline/inspectord/internal/config"
	"github.com/aoipipeline/inspectord/internal/engine"
	"github.com/aoipipeline/inspectord/internal/httpapi"
	"github.com/aoipipeline/inspectord/internal/logging"
)

// Exit codes per base spec §6.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitPortBindError = 2

	shutdownGracePeriod = 5 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run is the testable entrypoint: parse config, build the engine, serve
// HTTP until interrupted, and return the process exit code.
func run(args []string, stderr io.Writer) int {
	cfg, err := config.Parse(args, os.Getenv)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitConfigError
	}

	log, syncLog, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(stderr, "logging error: %v\n", err)
		return exitConfigError
	}
	defer syncLog()

	eng, err := engine.New(engine.Config{
		Root:              cfg.Root,
		LinkerURL:         cfg.LinkerURL,
		WorkerCount:       cfg.WorkerCount,
		SessionTTL:        time.Duration(cfg.SessionTTLSeconds) * time.Second,
		AutoPromoteGolden: cfg.AutoPromoteGolden,
		Log:               log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "engine error: %v\n", err)
		return exitConfigError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go eng.RunBackground(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(stderr, "bind error on %s: %v\n", addr, err)
		return exitPortBindError
	}

	srv := &http.Server{Handler: httpapi.NewRouter(eng, log)}
	log.Info("inspectord listening", "addr", addr, "root", cfg.Root)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(listener) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "graceful shutdown failed")
		}
		return exitOK
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "server error: %v\n", err)
			return exitConfigError
		}
		return exitOK
	}
}
