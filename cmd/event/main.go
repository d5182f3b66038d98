// Command event runs the standalone Event service: it owns durable hand
// history and snapshot materialization, exposed to any Game/Gateway
// instance over the GetHandSnapshot RPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"

	"pokercore/internal/config"
	"pokercore/internal/eventpipeline"
	"pokercore/internal/health"
	"pokercore/internal/logging"
	"pokercore/internal/rpc"
	"pokercore/internal/store/sqlite"
)

// runRetentionSweeper archives and trims ended hands past their hot window
// once per window, until ctx is canceled.
func runRetentionSweeper(ctx context.Context, store *sqlite.Store, log *eventpipeline.Log, archiver eventpipeline.Archiver, retention eventpipeline.Retention, logger slog.Logger) {
	ticker := time.NewTicker(retention.HotWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := eventpipeline.Sweep(store, log, archiver, retention, now)
			if err != nil {
				logger.Warnf("retention sweep: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("retention sweep archived %d hands", n)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "event:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "configfile", "", "path to a YAML config file")
	listenAddr := flag.String("listenaddr", "", "override the configured listen address")
	debugLevel := flag.String("debuglevel", "", "override the configured debug level, subsystem=level,...")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *debugLevel != "" {
		cfg.DebugLevel = *debugLevel
	}

	backend := logging.NewStdout()
	if err := backend.SetLevels(cfg.DebugLevel); err != nil {
		return fmt.Errorf("set log levels: %w", err)
	}
	log := backend.Logger("EVENTS")

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	eventLog := eventpipeline.NewLog(store)
	materializer := eventpipeline.NewMaterializer(eventLog, store)
	retention := eventpipeline.DefaultRetention()
	archiver := eventpipeline.NoopArchiver{}

	events := &rpc.EventServer{Materializer: materializer, Log: eventLog}
	server := rpc.NewServer(nil, events)

	reporter, err := health.NewReporter("event")
	if err != nil {
		return fmt.Errorf("health reporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc/", server)
	mux.HandleFunc("/healthz", reporter.Handler())

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("event service listening on %s (hot retention %s)", cfg.ListenAddr, retention.HotWindow)

	go runRetentionSweeper(ctx, store, eventLog, archiver, retention, log)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
