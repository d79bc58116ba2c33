package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"evm-token-lab/internal/devnet"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/erc20"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/txclient"
	"evm-token-lab/internal/wallet"
)

type options struct {
	rpcURL  string
	token   string
	timeout time.Duration

	key      string
	devKey   int
	gasPrice uint64
	gasLimit uint64
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
		Use:          "erc20",
		Short:        "Read and write an ERC20 token over JSON-RPC",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.rpcURL, "rpc-url", envOr("ERC20_RPC_URL", "http://localhost:8545"), "JSON-RPC endpoint")
	cmd.PersistentFlags().StringVar(&opts.token, "token", envOr("ERC20_TOKEN", devnet.TokenAddress.String()), "token contract address")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-operation timeout")

	cmd.AddCommand(newMetadataCommand(opts))
	cmd.AddCommand(newBalanceCommand(opts))
	cmd.AddCommand(newAllowanceCommand(opts))
	cmd.AddCommand(newTransferCommand(opts))
	cmd.AddCommand(newApproveCommand(opts))
	cmd.AddCommand(newTransferFromCommand(opts))

	return cmd
}

func newMetadataCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Print name, symbol, decimals and total supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			token, err := readOnlyToken(opts)
			if err != nil {
				return err
			}
			meta, err := token.Metadata(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("token:    %s\n", meta.Token)
			fmt.Printf("name:     %s\n", meta.Name)
			fmt.Printf("symbol:   %s\n", meta.Symbol)
			fmt.Printf("decimals: %d\n", meta.Decimals)
			fmt.Printf("supply:   %s\n", meta.TotalSupply)
			return nil
		},
	}
}

func newBalanceCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print an account's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			addr, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			token, err := readOnlyToken(opts)
			if err != nil {
				return err
			}
			balance, err := token.BalanceOf(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Println(balance)
			return nil
		},
	}
}

func newAllowanceCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Print the remaining allowance a spender holds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			owner, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			spender, err := domain.ParseAddress(args[1])
			if err != nil {
				return err
			}
			token, err := readOnlyToken(opts)
			if err != nil {
				return err
			}
			allowance, err := token.Allowance(ctx, owner, spender)
			if err != nil {
				return err
			}
			fmt.Println(allowance)
			return nil
		},
	}
}

func newTransferCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer tokens from the signing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return submit(cmd.Context(), opts, func(token *erc20.Token) txclient.Call {
				return token.TransferCall(to, amount)
			})
		},
	}
	addWriteFlags(cmd, opts)
	return cmd
}

func newApproveCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Set a spender's allowance, overwriting any prior value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spender, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return submit(cmd.Context(), opts, func(token *erc20.Token) txclient.Call {
				return token.ApproveCall(spender, amount)
			})
		},
	}
	addWriteFlags(cmd, opts)
	return cmd
}

func newTransferFromCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer-from <owner> <to> <amount>",
		Short: "Spend an allowance to move tokens between accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			to, err := domain.ParseAddress(args[1])
			if err != nil {
				return err
			}
			amount, err := domain.ParseAmount(args[2])
			if err != nil {
				return err
			}
			return submit(cmd.Context(), opts, func(token *erc20.Token) txclient.Call {
				return token.TransferFromCall(owner, to, amount)
			})
		},
	}
	addWriteFlags(cmd, opts)
	return cmd
}

func addWriteFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVar(&opts.key, "key", os.Getenv("ERC20_KEY"), "signing key as 0x-hex")
	cmd.Flags().IntVar(&opts.devKey, "dev-key", -1, "sign with a prefunded dev account by index")
	cmd.Flags().Uint64Var(&opts.gasPrice, "gas-price", 0, "gas price in wei (0 asks the node)")
	cmd.Flags().Uint64Var(&opts.gasLimit, "gas-limit", 0, "gas limit (0 uses the client default)")
}

func readOnlyToken(opts *options) (*erc20.Token, error) {
	addr, err := domain.ParseAddress(opts.token)
	if err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}
	node := eth.NewHTTPClient(opts.rpcURL)
	return erc20.New(addr, node, nil), nil
}

// submit builds the call, signs it with the selected key and waits for
// the outcome.
func submit(ctx context.Context, opts *options, build func(*erc20.Token) txclient.Call) error {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	key, err := signingKey(opts)
	if err != nil {
		return err
	}
	addr, err := domain.ParseAddress(opts.token)
	if err != nil {
		return fmt.Errorf("token address: %w", err)
	}

	node := eth.NewHTTPClient(opts.rpcURL)
	chainID, err := node.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	client, err := txclient.New(txclient.Options{Node: node, ChainID: chainID})
	if err != nil {
		return err
	}
	defer client.Close()

	token := erc20.New(addr, node, client)
	call := build(token)
	call.GasPrice = domain.NewAmount(opts.gasPrice)
	call.GasLimit = opts.gasLimit

	pending, err := client.Submit(ctx, key, call)
	if err != nil {
		return err
	}
	fmt.Printf("tx:     %s\n", pending.Hash)

	outcome := pending.Wait(ctx)
	fmt.Printf("status: %s\n", outcome.Status)
	if outcome.Receipt != nil {
		fmt.Printf("block:  %d\n", outcome.Receipt.BlockNumber)
		fmt.Printf("gas:    %d\n", outcome.Receipt.GasUsed)
	}
	if outcome.Reason != "" {
		return erc20.RevertCause(outcome.Reason)
	}
	if !outcome.Confirmed() {
		return fmt.Errorf("transaction %s", outcome.Status)
	}
	return nil
}

func signingKey(opts *options) (*wallet.Key, error) {
	if opts.key != "" {
		return wallet.ParseKey(opts.key)
	}
	if opts.devKey >= 0 {
		keys := wallet.DevKeys()
		if opts.devKey >= len(keys) {
			return nil, fmt.Errorf("dev key index %d out of range (have %d)", opts.devKey, len(keys))
		}
		return keys[opts.devKey], nil
	}
	return nil, fmt.Errorf("no signing key: set --key or --dev-key")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
