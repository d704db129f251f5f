package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load JSONL listings and interactions into Postgres",
	Long: `Upsert the listings in --listings and append the interaction events in
--interactions to the database named by DATABASE_URL. Provider status
spellings such as "Closed" or "Active Under Contract" are normalised.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if rootListings == "" && rootInteractions == "" {
		return errors.New("nothing to import: pass --listings and/or --interactions")
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.DatabaseURL == "" {
		return errors.New("import needs DATABASE_URL; without it the files are read by each command directly")
	}

	if err := seed(ctx, a.repo, rootListings, rootInteractions); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "import complete")
	return nil
}
