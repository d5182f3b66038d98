// Command gateway runs one realtime gateway instance: WebSocket front
// door, subscription fan-out, chat, presence, rate limiting and
// backpressure, forwarding client actions to a Game/Event RPC backend.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pokercore/internal/auth"
	"pokercore/internal/config"
	"pokercore/internal/gateway"
	"pokercore/internal/health"
	"pokercore/internal/ids"
	"pokercore/internal/logging"
	"pokercore/internal/rpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, gameURL, eventURL string
	flag.StringVar(&configPath, "configfile", "", "path to a YAML config file")
	flag.StringVar(&gameURL, "gameurl", "http://127.0.0.1:8081", "base URL of the Game RPC service")
	flag.StringVar(&eventURL, "eventurl", "http://127.0.0.1:8082", "base URL of the Event RPC service")
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
	log := backend.Logger("GATEWAY")

	opts, err := redis.ParseURL(cfg.FabricURL)
	if err != nil {
		return fmt.Errorf("parse fabric url: %w", err)
	}
	rdb := redis.NewClient(opts)

	verifier, err := buildVerifier(cfg)
	if err != nil {
		return fmt.Errorf("build auth verifier: %w", err)
	}

	gameClient := rpc.NewClient(gameURL)
	eventClient := rpc.NewClient(eventURL)

	instanceID := ids.New()
	gw := gateway.New(instanceID, verifier, rdb, gameClient, eventClient, log)
	gw.PingInterval = time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second
	gw.PongTimeout = time.Duration(cfg.HeartbeatTimeoutSeconds) * time.Second
	if cfg.OutboundQueueMessages > 0 {
		gw.QueueMessages = cfg.OutboundQueueMessages
	}

	reporter, err := health.NewReporter("gateway")
	if err != nil {
		return fmt.Errorf("health reporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	mux.HandleFunc("/healthz", reporter.Handler())
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("bus consumer stopped: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Infof("gateway instance %s listening on %s", instanceID, cfg.ListenAddr)
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

// buildVerifier selects one of the three KeySource variants per config,
// preferring explicit key-id lookup (JWKS) when configured.
func buildVerifier(cfg config.Config) (*auth.Verifier, error) {
	switch cfg.AuthKeySource {
	case "jwks":
		return auth.NewVerifier(&auth.JWKSByKID{URL: cfg.AuthJWKSURL, TTL: 10 * time.Minute}), nil
	case "pem":
		data, err := os.ReadFile(cfg.AuthKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read pem key: %w", err)
		}
		key, err := parseRSAPublicKey(data)
		if err != nil {
			return nil, err
		}
		return auth.NewVerifier(auth.PEMPublicKey{Key: key}), nil
	default:
		return auth.NewVerifier(auth.StaticSecret{Secret: []byte(cfg.AuthSecret)}), nil
	}
}

func parseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("auth: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: key is not RSA")
	}
	return rsaKey, nil
}
