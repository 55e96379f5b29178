package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/ishmael-client/internal/export"
	"github.com/Sternrassler/ishmael-client/pkg/pagination"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		league      string
		date        string
		timezone    string
		outDir      string
		concurrency int
		pageSize    int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write CSV snapshots of teams, the day's games and predictions",
		Long: `Export fetches every team of a league, the games on the target day
and the latest predictions, then writes four CSV files into the output
directory:

  <league>_teams.csv
  <league>_games_today.csv
  <league>_predictions_latest.csv
  <league>_predictions_for_today_games.csv

The target day defaults to TARGET_DATE (or DATE), else today in TIMEZONE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if league == "" {
				league = cfg.League
			}
			if timezone == "" {
				timezone = cfg.Timezone
			}
			if date == "" {
				date = cfg.TargetDate
			}
			if outDir == "" {
				outDir = cfg.OutDir
			}

			loc := export.ResolveTimezone(timezone, a.logger)
			now := time.Now()

			opts := export.Options{
				League:       league,
				Location:     loc,
				Day:          export.ResolveTargetDate(date, loc, now, a.logger),
				OutDir:       outDir,
				DecisionTime: now,
				PageSize:     pageSize,
				Concurrency:  concurrency,
			}

			_, files, err := export.Run(cmd.Context(), a.client, opts, a.logger)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, path := range []string{files.Teams, files.Games, files.Predictions, files.TodayPredictions} {
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league (defaults to LEAGUE)")
	cmd.Flags().StringVar(&date, "date", "", "target day YYYY-MM-DD (defaults to TARGET_DATE or today)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone of the target day (defaults to TIMEZONE)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (defaults to OUT_DIR)")
	cmd.Flags().IntVar(&concurrency, "concurrency", export.DefaultConcurrency, "parallel per-game prediction lookups")
	cmd.Flags().IntVar(&pageSize, "page-size", pagination.DefaultPageSize, "page size for paginated fetches")
	return cmd
}
