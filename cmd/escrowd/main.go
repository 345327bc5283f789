package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nftescrow/config"
	"nftescrow/core"
	"nftescrow/core/events"
	"nftescrow/core/genesis"
	"nftescrow/eventlog"
	"nftescrow/observability"
	"nftescrow/observability/logging"
	telemetry "nftescrow/observability/otel"
	"nftescrow/rpc"
	"nftescrow/storage"
)

const (
	serviceName    = "escrowd"
	genesisPathEnv = "ESCROW_GENESIS"
)

type envLookupFunc func(string) (string, bool)

func main() {
	configFile := flag.String("config", "./escrowd.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML/JSON file (overrides ESCROW_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		slog.Error("escrowd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, genesisFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := []logging.Option{}
	if file := cfg.LogFile(); file != nil {
		opts = append(opts, logging.WithFile(*file))
	}
	logger := logging.Setup(serviceName, cfg.Logging.Env, opts...)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: serviceName,
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     true,
			Traces:      true,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	escrowCfg, err := cfg.EscrowSettings()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	stream := events.NewBroadcaster(256)
	emitters := events.Multi{observability.Events(), stream}
	var journal *eventlog.Store
	if path := cfg.EventLogPath(); path != "" {
		journal, err = eventlog.Open(path)
		if err != nil {
			db.Close()
			return fmt.Errorf("open event log: %w", err)
		}
		journal.SetLogger(logger)
		defer func() { _ = journal.Close() }()
		emitters = append(events.Multi{journal}, emitters...)
	}

	node, err := core.NewNode(db, core.NodeConfig{Escrow: escrowCfg, Pauses: cfg.Pauses()}, emitters)
	if err != nil {
		db.Close()
		return fmt.Errorf("build node: %w", err)
	}
	defer node.Close()

	genesisPath := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath != "" {
		spec, err := genesis.LoadSpecFromFile(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		if err := node.ApplyGenesis(spec); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis applied", slog.String("path", genesisPath), slog.Int("collections", len(spec.Collections)))
	}

	serverOpts := []rpc.Option{rpc.WithBroadcaster(stream), rpc.WithLogger(logger)}
	if journal != nil {
		serverOpts = append(serverOpts, rpc.WithJournal(journal))
	}
	server, err := rpc.NewServer(node, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			HMACSecret:     cfg.RPC.JWTSecret,
			Issuer:         cfg.RPC.Issuer,
			Audience:       cfg.RPC.Audience,
			AllowAnonymous: cfg.RPC.AllowAnonymousReads,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RPC.RequestsPerMinute),
			Burst:             cfg.RPC.Burst,
		},
	}, serverOpts...)
	if err != nil {
		return fmt.Errorf("build rpc server: %w", err)
	}
	if strings.TrimSpace(cfg.RPC.JWTSecret) == "" {
		logger.Warn("rpc JWT secret not configured; only anonymous reads will succeed", slog.String("env", config.EnvJWTSecret))
	}
	logger.Info("rpc configured",
		slog.String("issuer", cfg.RPC.Issuer),
		slog.String("audience", cfg.RPC.Audience),
		logging.MaskField("jwt_secret", cfg.RPC.JWTSecret),
		logging.MaskField("telemetry_headers", cfg.Telemetry.Headers),
		slog.Bool("anonymous_reads", cfg.RPC.AllowAnonymousReads))

	httpServer := &http.Server{
		Addr:              cfg.RPC.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout, 5),
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("escrowd listening",
			slog.String("address", cfg.RPC.ListenAddress),
			slog.String("deposit_policy", string(escrowCfg.DepositPolicy)),
			slog.String("cancel_policy", string(escrowCfg.CancelPolicy)))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.RPC.ShutdownTimeout, 10))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// resolveGenesisPath picks the genesis file from the flag, the environment or
// the config, in that order. An empty result means no seeding.
func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
