package cli

import (
	"github.com/spf13/cobra"
)

var (
	cmaSubject string
	cmaRadius  float64
	cmaDays    int
)

var cmaCmd = &cobra.Command{
	Use:   "cma",
	Short: "Generate or reuse the comparative market analysis for a listing",
	Long: `Select comparable sales around the subject listing, adjust them toward the
subject and print the resulting report. A stored report is reused while the
underlying data is unchanged and the report has not expired.`,
	RunE: runCMA,
}

func init() {
	rootCmd.AddCommand(cmaCmd)

	cmaCmd.Flags().StringVarP(&cmaSubject, "subject", "s", "", "subject listing id")
	cmaCmd.Flags().Float64Var(&cmaRadius, "radius", 0, "search radius in miles (default CMA_RADIUS_MILES)")
	cmaCmd.Flags().IntVar(&cmaDays, "days", 0, "sale-date window in days (default CMA_DAYS_BACK)")
	_ = cmaCmd.MarkFlagRequired("subject")
}

func runCMA(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.EnsureCMAReport(ctx, cmaSubject, a.window(cmaRadius, cmaDays))
	if err != nil {
		return explain(err)
	}
	return printJSON(cmd, report)
}
