package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"homescore/internal/model"
	"homescore/internal/scoring"
)

var (
	rankClient   string
	rankLat      float64
	rankLon      float64
	rankRadius   float64
	rankStatuses []string
	rankLimit    int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank listings near a point against a client's taste vector",
	Long: `Score every listing within --radius of (--lat, --lon) whose status is in
--status against the client's preference vector and print them best first,
each with its strongest positive and negative features.`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVarP(&rankClient, "client", "c", "", "client id")
	rankCmd.Flags().Float64Var(&rankLat, "lat", 0, "search centre latitude")
	rankCmd.Flags().Float64Var(&rankLon, "lon", 0, "search centre longitude")
	rankCmd.Flags().Float64Var(&rankRadius, "radius", 5, "search radius in miles")
	rankCmd.Flags().StringSliceVar(&rankStatuses, "status", []string{"active", "coming_soon"}, "listing statuses to consider")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 20, "maximum listings to print (0 = all)")
	_ = rankCmd.MarkFlagRequired("client")
	_ = rankCmd.MarkFlagRequired("lat")
	_ = rankCmd.MarkFlagRequired("lon")
}

type rankRow struct {
	ListingID  string              `json:"listingId"`
	Address    string              `json:"address,omitempty"`
	PriceCents int64               `json:"priceCents"`
	Score      float64             `json:"score"`
	Chips      scoring.Explanation `json:"chips"`
}

func runRank(cmd *cobra.Command, args []string) error {
	statuses := make([]model.Status, 0, len(rankStatuses))
	for _, raw := range rankStatuses {
		s := model.ParseStatus(raw)
		if s == model.StatusUnknown {
			return errors.Newf("unknown status %q", raw)
		}
		statuses = append(statuses, s)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cands, err := a.repo.ListListingsNear(ctx, model.Point{Lat: rankLat, Lon: rankLon}, rankRadius, statuses)
	if err != nil {
		return err
	}
	ranked, err := a.svc.ScoreAndRank(ctx, rankClient, cands)
	if err != nil {
		return explain(err)
	}
	if rankLimit > 0 && len(ranked) > rankLimit {
		ranked = ranked[:rankLimit]
	}
	rows := make([]rankRow, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, rankRow{
			ListingID:  r.Listing.ID,
			Address:    r.Listing.Address,
			PriceCents: r.Listing.PriceCents(),
			Score:      r.Score,
			Chips:      r.Explanation,
		})
	}
	return printJSON(cmd, rows)
}
