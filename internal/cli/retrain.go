package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var retrainClients []string

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Recompute preference vectors from the full interaction history",
	Long: `Rebuild the cached preference vector of each --client, or of every client
with recorded interactions when none is given. Clients are recomputed in
parallel on WORKERS workers.`,
	RunE: runRetrain,
}

func init() {
	rootCmd.AddCommand(retrainCmd)
	retrainCmd.Flags().StringSliceVarP(&retrainClients, "client", "c", nil, "client ids (default: all clients)")
}

func runRetrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	clients := retrainClients
	if len(clients) == 0 {
		if clients, err = a.repo.ClientIDs(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	if err := a.svc.RecomputeAll(ctx, clients); err != nil {
		return err
	}
	a.log.WithField("clients", len(clients)).WithField("elapsed", time.Since(start).String()).Info("retrain complete")
	fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d clients\n", len(clients))
	return nil
}
