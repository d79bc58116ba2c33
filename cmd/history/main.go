package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evm-token-lab/internal/devnet"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/history"
	"evm-token-lab/internal/observability"
	"evm-token-lab/internal/storage"
	"evm-token-lab/internal/storage/clickhouse"
	"evm-token-lab/internal/storage/memory"
	"evm-token-lab/internal/storage/migrations"
	"evm-token-lab/internal/storage/postgres"
)

type options struct {
	rpcURL       string
	wsURL        string
	token        string
	source       string
	pollInterval time.Duration

	postgresDSN   string
	clickhouseDSN string

	metricsAddr string
	verbose     bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Record confirmed chain activity into storage",
		Long: "Follows the chain head, decodes token and native transfers out of\n" +
			"each confirmed block and writes receipts, transfers and per-block\n" +
			"volume aggregates. Resumes from its own cursor on restart.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", envOr("HISTORY_RPC_URL", "http://localhost:8545"), "JSON-RPC endpoint")
	cmd.Flags().StringVar(&opts.wsURL, "ws-url", os.Getenv("HISTORY_WS_URL"), "WebSocket endpoint for newHeads nudges (optional)")
	cmd.Flags().StringVar(&opts.token, "token", envOr("HISTORY_TOKEN", devnet.TokenAddress.String()), "token contract address")
	cmd.Flags().StringVar(&opts.source, "source", history.DefaultSource, "cursor name, letting several recorders share one store")
	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", history.DefaultPollInterval, "head polling cadence")
	cmd.Flags().StringVar(&opts.postgresDSN, "postgres-dsn", os.Getenv("HISTORY_POSTGRES_DSN"), "Postgres DSN for receipts, transfers and the cursor")
	cmd.Flags().StringVar(&opts.clickhouseDSN, "clickhouse-dsn", os.Getenv("HISTORY_CLICKHOUSE_DSN"), "ClickHouse DSN for volume aggregates")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", envOr("HISTORY_METRICS_ADDR", ":9090"), "Prometheus metrics listen address (empty disables)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token, err := domain.ParseAddress(opts.token)
	if err != nil {
		return fmt.Errorf("token address: %w", err)
	}

	stores, cleanup, err := openStores(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	node := eth.NewHTTPClient(opts.rpcURL)

	var heads <-chan eth.Head
	if opts.wsURL != "" {
		ws, err := eth.NewWSClient(ctx, opts.wsURL, &eth.WSClientConfig{Logger: logger})
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		defer ws.Close()
		heads, err = ws.SubscribeNewHeads(ctx)
		if err != nil {
			return fmt.Errorf("subscribe heads: %w", err)
		}
	}

	recorder, err := history.New(history.Options{
		Node:         node,
		Token:        token,
		Receipts:     stores.receipts,
		Transfers:    stores.transfers,
		Progress:     stores.progress,
		Volumes:      stores.volumes,
		Heads:        heads,
		PollInterval: opts.pollInterval,
		Source:       opts.source,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}

	logger.Info("recorder starting",
		zap.String("rpc_url", opts.rpcURL),
		zap.String("token", token.String()),
		zap.String("source", opts.source))
	return recorder.Run(ctx)
}

type storeSet struct {
	receipts  storage.ReceiptStore
	transfers storage.TransferStore
	progress  storage.SyncProgressStore
	volumes   storage.VolumeStore
}

// openStores wires Postgres for row stores and ClickHouse for volume
// aggregates when DSNs are given, falling back to in-memory stores so
// the recorder stays usable against a throwaway devnet.
func openStores(ctx context.Context, opts *options, logger *zap.Logger) (*storeSet, func(), error) {
	stores := &storeSet{
		receipts:  memory.NewReceiptStore(),
		transfers: memory.NewTransferStore(),
		progress:  memory.NewSyncProgressStore(),
		volumes:   memory.NewVolumeStore(),
	}
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if opts.postgresDSN != "" {
		pool, err := postgres.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.receipts = postgres.NewReceiptStore(pool)
		stores.transfers = postgres.NewTransferStore(pool)
		stores.progress = postgres.NewSyncProgressStore(pool)
		logger.Info("using postgres row stores")
	}

	if opts.clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := conn.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
				logger.Warn("clickhouse close", zap.Error(err))
			}
		})
		stores.volumes = clickhouse.NewVolumeStore(conn)
		logger.Info("using clickhouse volume store")
	}

	return stores, cleanup, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server", zap.Error(err))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
