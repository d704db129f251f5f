package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"homescore/internal/snapshot"
)

var restoreID string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the stored reports, alerts and preference vectors to SNAPSHOT_DIR",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fs := snapshot.NewFilesystemSnapshotter(a.cfg.SnapshotDir)
		m, err := fs.WriteSnapshot(snapshot.NewID(fs.Now()), a.store)
		if err != nil {
			return err
		}
		a.log.WithFields(logrus.Fields{"snapshot": m.SnapshotID, "dir": a.cfg.SnapshotDir}).Info("snapshot written")
		return printJSON(cmd, m)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load a snapshot into the report store without overwriting newer data",
	Long: `Restore the snapshot named by --id, or the one manifest.latest.json points
at. Reports and alerts already in the store are kept as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fs := snapshot.NewFilesystemSnapshotter(a.cfg.SnapshotDir)
		id := restoreID
		if id == "" {
			m, err := fs.ReadLatest()
			if err != nil {
				return err
			}
			id = m.SnapshotID
		}
		snap, err := fs.Read(id)
		if err != nil {
			return err
		}
		res, err := snapshot.Restore(a.store, snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s: %d applied, %d skipped\n", id, res.Applied, res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd, restoreCmd)
	restoreCmd.Flags().StringVar(&restoreID, "id", "", "snapshot id (default: latest)")
}
