package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evm-token-lab/internal/devnet"
)

type options struct {
	listen        string
	chainID       uint64
	blockInterval time.Duration
	verbose       bool
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
		Use:   "devnet",
		Short: "Run a local single-node Ethereum devnet",
		Long: "Serves JSON-RPC over HTTP and newHeads subscriptions over WebSocket\n" +
			"against an in-memory chain with prefunded dev accounts and a\n" +
			"reference ERC20 token deployed at genesis.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", envOr("DEVNET_LISTEN", ":8545"), "HTTP listen address")
	cmd.Flags().Uint64Var(&opts.chainID, "chain-id", devnet.DefaultChainID, "chain id signed transactions must bind")
	cmd.Flags().DurationVar(&opts.blockInterval, "block-interval", 0, "mine on a fixed interval instead of instantly (0 = instant)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chain := devnet.New(devnet.Config{
		ChainID:       opts.chainID,
		BlockInterval: opts.blockInterval,
		Logger:        logger,
	})
	chain.Start()
	defer chain.Stop()

	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           devnet.NewServer(chain, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("devnet listening",
			zap.String("addr", opts.listen),
			zap.Uint64("chain_id", opts.chainID),
			zap.Duration("block_interval", opts.blockInterval))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
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
