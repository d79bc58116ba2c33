package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evm-token-lab/internal/devnet"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/erc20"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/harness"
	"evm-token-lab/internal/txclient"
)

type options struct {
	rpcURL      string
	token       string
	out         string
	stepTimeout time.Duration
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
		Use:   "scenario <file.yaml>",
		Short: "Run a YAML token scenario against a node and report the result",
		Long: "Loads a scenario of funded roles, transfer steps and final-state\n" +
			"assertions, drives it against a running node and renders a\n" +
			"markdown report. Exits non-zero when the scenario fails.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", envOr("SCENARIO_RPC_URL", "http://localhost:8545"), "JSON-RPC endpoint")
	cmd.Flags().StringVar(&opts.token, "token", envOr("SCENARIO_TOKEN", devnet.TokenAddress.String()), "token contract address")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().DurationVar(&opts.stepTimeout, "step-timeout", harness.DefaultStepTimeout, "per-step confirmation timeout")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func run(ctx context.Context, opts *options, path string) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return err
	}

	tokenAddr, err := domain.ParseAddress(opts.token)
	if err != nil {
		return fmt.Errorf("token address: %w", err)
	}

	node := eth.NewHTTPClient(opts.rpcURL)
	chainID, err := node.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	client, err := txclient.New(txclient.Options{
		Node:    node,
		ChainID: chainID,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	runner, err := harness.NewRunner(harness.Options{
		Token:       erc20.New(tokenAddr, node, client),
		Client:      client,
		StepTimeout: opts.stepTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, scenario)
	if err != nil {
		return err
	}

	report := harness.RenderMarkdown(result)
	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(report), 0o644); err != nil {
			return err
		}
	} else {
		fmt.Print(report)
	}

	if !result.Passed {
		return fmt.Errorf("scenario %q failed: %s", scenario.Name, result.Violation)
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
