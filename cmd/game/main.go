// Command game runs the table-owning hand engine service: it accepts
// SubmitAction/CreateTable/... RPCs from one or more gateways and is the
// single writer for every table it holds.
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

	"github.com/redis/go-redis/v9"

	"pokercore/internal/bus"
	"pokercore/internal/config"
	"pokercore/internal/eventpipeline"
	"pokercore/internal/health"
	"pokercore/internal/ids"
	"pokercore/internal/logging"
	"pokercore/internal/rpc"
	"pokercore/internal/store/sqlite"
	"pokercore/internal/table"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "game:", err)
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
	log := backend.Logger("GAME")

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	tables := table.NewRegistry(store)
	if err := tables.LoadAll(); err != nil {
		return fmt.Errorf("restore tables: %w", err)
	}

	eventLog := eventpipeline.NewLog(store)
	stream := eventpipeline.NewStream(30 * time.Second)
	materializer := eventpipeline.NewMaterializer(eventLog, store)

	opts, err := redis.ParseURL(cfg.FabricURL)
	if err != nil {
		return fmt.Errorf("parse fabric url: %w", err)
	}
	rdb := redis.NewClient(opts)
	eventBus := bus.New(rdb, ids.New())

	game := &rpc.GameServer{Tables: tables, Log: eventLog, Materializer: materializer, Stream: stream, Bus: eventBus}
	server := rpc.NewServer(game, nil)

	reporter, err := health.NewReporter("game")
	if err != nil {
		return fmt.Errorf("health reporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc/", server)
	mux.HandleFunc("/healthz", reporter.Handler())

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go tickLoop(ctx, tables, game)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Infof("game service listening on %s", cfg.ListenAddr)
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

// tickLoop drives every live table's turn timer and auto-starts the next
// hand once enough seated players are ready, polling rather than sleeping
// per-hand so a crash-recovered deadline compares correctly against now.
func tickLoop(ctx context.Context, tables *table.Registry, game *rpc.GameServer) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, t := range tables.All() {
				if events := t.Tick(now); len(events) > 0 {
					if h := t.CurrentHand(); h != nil {
						_, _ = game.AppendAndPublish(t.ID, h.ID, events)
						game.PublishTablePatch(t.ID, rpc.EventsToViews(events))
					}
				}
				if hand, events, err := t.MaybeStartHand(now); err == nil && hand != nil {
					_, _ = game.AppendAndPublish(t.ID, hand.ID, events)
					game.PublishTablePatch(t.ID, rpc.EventsToViews(events))
				}
				_ = tables.Persist(t)
			}
			tables.SweepIdle(now, 30*time.Minute)
		}
	}
}
