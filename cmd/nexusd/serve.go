package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/nexusdb/nexus/internal/xconfig"
	"github.com/nexusdb/nexus/internal/xlog"
	"github.com/nexusdb/nexus/pkg/catalog"
	"github.com/nexusdb/nexus/pkg/exec"
	"github.com/nexusdb/nexus/pkg/fn"
	"github.com/nexusdb/nexus/pkg/kv"
	"github.com/nexusdb/nexus/pkg/kv/boltkv"
	"github.com/nexusdb/nexus/pkg/kv/memkv"
	"github.com/nexusdb/nexus/pkg/live"
	"github.com/nexusdb/nexus/pkg/session/wire"

	"github.com/prometheus/client_golang/prometheus"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "load configuration and serve the execution core over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := xconfig.Load(configPath)
	if err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("nexusd: invalid log level %q: %w", cfg.Log.Level, err)
	}
	log := xlog.New(level, cfg.Log.Console)
	defer log.Sync()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := catalog.NewCache(4096)
	if err != nil {
		return err
	}

	metrics, err := exec.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	executor := exec.NewExecutor(
		&exec.Resources{KV: store, Catalog: catalog.NewStore(cache)},
		fn.Default(),
		&fn.Deps{},
		live.NewHub(cfg.Server.MaxNotifyBacklog),
		metrics,
	)
	_ = executor // registered on the wire server once a generated service exists; see NewGRPCServer's own doc comment.

	lis, err := net.Listen("tcp", cfg.Server.BindAddr)
	if err != nil {
		return fmt.Errorf("nexusd: listen %s: %w", cfg.Server.BindAddr, err)
	}
	srv := wire.NewGRPCServer()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	log.Info("nexusd listening", "addr", cfg.Server.BindAddr, "storage", cfg.Storage.Backend)

	select {
	case <-sigCtx.Done():
		log.Info("nexusd shutting down")
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func openStorage(cfg xconfig.StorageConfig) (kv.KV, error) {
	switch cfg.Backend {
	case "", "memory":
		return memkv.New(), nil
	case "bolt":
		return boltkv.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("nexusd: unknown storage backend %q", cfg.Backend)
	}
}
