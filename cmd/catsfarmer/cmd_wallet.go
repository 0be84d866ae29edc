package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qtosh1/cats-farmer/internal/ton"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the payout wallet address formats and balance",
	Args:  cobra.NoArgs,
	RunE:  runWallet,
}

func runWallet(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.WalletAddress == "" {
		return errors.New("WALLET_ADDRESS is not set")
	}
	formats, err := ton.Formats(cfg.WalletAddress)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bounceable:     %s\n", formats.Bounceable)
	fmt.Fprintf(out, "Non-bounceable: %s\n", formats.NonBounceable)
	fmt.Fprintf(out, "Raw:            %s\n", formats.Raw)

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	bal, err := newTonClient(cfg).GetAccountBalance(ctx, formats.Bounceable)
	if err != nil {
		fmt.Fprintf(out, "Balance:        unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Balance:        %s TON\n", bal.Ton)
	return nil
}
