// Package cli implements the homescore operator commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	rootListings     string
	rootInteractions string
)

var rootCmd = &cobra.Command{
	Use:   "homescore",
	Short: "Comparable-sales valuation and buyer preference matching",
	Long: `homescore values a subject property from nearby comparable sales, flags
listings priced well below their estimate, and ranks listings against a
client's learned taste.

Configuration comes from the environment and an optional .env file. Without
DATABASE_URL, listings and interactions are read from the JSONL files given
by --listings and --interactions.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&rootListings, "listings", "", "JSONL listings file")
	rootCmd.PersistentFlags().StringVar(&rootInteractions, "interactions", "", "JSONL interaction events file")
}
