package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"homescore/internal/model"
)

var (
	alertsAll      bool
	ackReviewer    string
	ackNotes       string
	replayIncluded bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect, acknowledge and republish deal alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored deal alerts in id order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := []model.DealAlert{}
		err = a.store.RangeAlerts(func(al model.DealAlert) error {
			if alertsAll || !al.Acknowledged {
				out = append(out, al)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Record a reviewer's acknowledgement of an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		al, err := a.svc.AcknowledgeAlert(ctx, args[0], ackReviewer, ackNotes)
		if err != nil {
			return explain(err)
		}
		return printJSON(cmd, al)
	},
}

var alertsReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Republish stored alerts to the configured sinks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.svc.ReplayAlerts(ctx, replayIncluded)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "republished %d alerts\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsAckCmd, alertsReplayCmd)

	alertsListCmd.Flags().BoolVar(&alertsAll, "all", false, "include acknowledged alerts")
	alertsAckCmd.Flags().StringVar(&ackReviewer, "reviewer", "", "who reviewed the alert")
	alertsAckCmd.Flags().StringVar(&ackNotes, "notes", "", "reviewer notes")
	_ = alertsAckCmd.MarkFlagRequired("reviewer")
	alertsReplayCmd.Flags().BoolVar(&replayIncluded, "all", false, "include acknowledged alerts")
}
