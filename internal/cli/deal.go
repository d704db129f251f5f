package cli

import (
	"github.com/spf13/cobra"

	"homescore/internal/deal"
	"homescore/internal/model"
)

var (
	dealSubject string
	dealRadius  float64
	dealDays    int
)

var dealCmd = &cobra.Command{
	Use:   "deal",
	Short: "Check whether a listing is priced well below its CMA estimate",
	Long: `Ensure the subject's CMA report, compare the current asking price with the
estimate and raise a deal alert when the discount, defect and confidence
checks all pass. An alert is stored and published once per report.`,
	RunE: runDeal,
}

func init() {
	rootCmd.AddCommand(dealCmd)

	dealCmd.Flags().StringVarP(&dealSubject, "subject", "s", "", "subject listing id")
	dealCmd.Flags().Float64Var(&dealRadius, "radius", 0, "search radius in miles (default CMA_RADIUS_MILES)")
	dealCmd.Flags().IntVar(&dealDays, "days", 0, "sale-date window in days (default CMA_DAYS_BACK)")
	_ = dealCmd.MarkFlagRequired("subject")
}

type dealResult struct {
	ReportID      string           `json:"reportId"`
	EstimateCents int64            `json:"estimateCents"`
	Confidence    float64          `json:"confidence"`
	Decision      deal.Decision    `json:"decision"`
	Alert         *model.DealAlert `json:"alert,omitempty"`
}

func runDeal(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	alert, d, report, err := a.svc.ScanForDeal(ctx, dealSubject, a.window(dealRadius, dealDays))
	if err != nil && report.ID == "" {
		return explain(err)
	}
	if perr := printJSON(cmd, dealResult{
		ReportID:      report.ID,
		EstimateCents: report.EstimateCents,
		Confidence:    report.Confidence,
		Decision:      d,
		Alert:         alert,
	}); perr != nil {
		return perr
	}
	return err
}
