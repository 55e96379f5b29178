package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/ishmael-client/pkg/client"
	"github.com/Sternrassler/ishmael-client/pkg/pagination"
)

// listFlags are shared by the paginated commands.
type listFlags struct {
	limit    int
	all      bool
	pageSize int
	filter   string
}

func (l *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&l.limit, "limit", 0, "page size for a single request (0 uses the API default)")
	cmd.Flags().BoolVar(&l.all, "all", false, "fetch every page")
	cmd.Flags().IntVar(&l.pageSize, "page-size", pagination.DefaultPageSize, "page size used with --all")
	cmd.Flags().StringVarP(&l.filter, "filter", "f", "", "expression rows must match, e.g. 'prob > 0.6'")
}

// pageFunc fetches a single page.
type pageFunc func(ctx context.Context) (client.Payload, error)

// iterFunc creates an iterator over every page.
type iterFunc func(pageSize int) (*pagination.Iterator, error)

// runList prints one page, or every row with --all. Filtered or streamed
// output is one JSON object per line.
func (a *app) runList(cmd *cobra.Command, lf *listFlags, page pageFunc, iterate iterFunc) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rf, err := CompileFilter(lf.filter)
	if err != nil {
		return fmt.Errorf("invalid filter expression: %w", err)
	}

	enc := json.NewEncoder(out)
	emit := func(row pagination.Row) (bool, error) {
		ok, err := rf.Match(row)
		if err != nil || !ok {
			return false, err
		}
		return true, enc.Encode(row)
	}

	if !lf.all {
		payload, err := page(ctx)
		if err != nil {
			return err
		}
		if rf == nil {
			return printJSON(out, payload)
		}
		for _, row := range client.PageFromPayload(payload).Rows {
			if _, err := emit(row); err != nil {
				return err
			}
		}
		return nil
	}

	it, err := iterate(lf.pageSize)
	if err != nil {
		return err
	}

	seen, matched := 0, 0
	for row, err := range it.All(ctx) {
		if err != nil {
			return err
		}
		seen++
		ok, err := emit(row)
		if err != nil {
			return err
		}
		if ok {
			matched++
		}
	}

	a.logger.Info().
		Int("rows", seen).
		Int("matched", matched).
		Int("pages", it.Fetches()).
		Msg("Fetched all pages")
	return nil
}

func newAuthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := a.client.AuthCheck(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}
}

func newPredictionsCommand(a *app) *cobra.Command {
	var (
		lf       listFlags
		at       string
		tags     []string
		tagsMode string
		cid      string
		slug     string
		teamID   string
	)

	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "List predictions active at a point in time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseTime(at, time.Local, time.Now())
			if err != nil {
				return fmt.Errorf("invalid --time: %w", err)
			}
			q := client.PredictionsQuery{
				Time:        t,
				Slug:        slug,
				ConditionID: cid,
				TeamID:      teamID,
				Tags:        tags,
				TagsMode:    tagsMode,
				Limit:       lf.limit,
			}
			return a.runList(cmd, &lf,
				func(ctx context.Context) (client.Payload, error) { return a.client.Predictions(ctx, q) },
				func(size int) (*pagination.Iterator, error) { return a.client.IterPredictions(q, size) },
			)
		},
	}

	cmd.Flags().StringVar(&at, "time", "now", "decision time: now, unix seconds, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag filter (repeatable)")
	cmd.Flags().StringVar(&tagsMode, "tags-mode", "", "how tags combine, passed through to the API")
	cmd.Flags().StringVar(&cid, "condition-id", "", "market condition id")
	cmd.Flags().StringVar(&slug, "slug", "", "market slug")
	cmd.Flags().StringVar(&teamID, "team-id", "", "team id")
	lf.register(cmd)
	return cmd
}

func newGamesCommand(a *app) *cobra.Command {
	var (
		lf        listFlags
		league    string
		date      string
		timezone  string
		start     string
		end       string
		teamIDs   []string
		minVolume float64
	)

	cmd := &cobra.Command{
		Use:   "games",
		Short: "List games on a date or within a time range",
		Long: `List games for a league, either on one day (--date, optionally --timezone)
or between --start and --end. The two modes are mutually exclusive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.location(timezone)
			if err != nil {
				return err
			}
			now := time.Now()

			q := client.GamesQuery{
				League:    leagueOr(league, a.cfg.League),
				Timezone:  timezone,
				TeamIDs:   teamIDs,
				MinVolume: minVolume,
				Limit:     lf.limit,
			}
			if q.GameDate, err = parseTime(date, loc, now); err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			if q.StartDate, err = parseTime(start, loc, now); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			if q.EndDate, err = parseTime(end, loc, now); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			return a.runList(cmd, &lf,
				func(ctx context.Context) (client.Payload, error) { return a.client.Games(ctx, q) },
				func(size int) (*pagination.Iterator, error) { return a.client.IterGames(q, size) },
			)
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league (defaults to LEAGUE)")
	cmd.Flags().StringVar(&date, "date", "", "game day: YYYY-MM-DD, today or a timestamp")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone the game day is interpreted in")
	cmd.Flags().StringVar(&start, "start", "", "range start: unix seconds, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&end, "end", "", "range end: unix seconds, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringSliceVar(&teamIDs, "team-id", nil, "restrict to these team ids (repeatable)")
	cmd.Flags().Float64Var(&minVolume, "min-volume", 0, "minimum market volume")
	lf.register(cmd)
	return cmd
}

func newGameCommand(a *app) *cobra.Command {
	var (
		cid    string
		league string
		date   string
		teamA  string
		teamB  string
	)

	cmd := &cobra.Command{
		Use:   "game",
		Short: "Show one game by condition id or by league, date and teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.location("")
			if err != nil {
				return err
			}
			day, err := parseTime(date, loc, time.Now())
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			q := client.GameQuery{
				ConditionID: cid,
				League:      league,
				GameDate:    day,
				TeamAID:     teamA,
				TeamBID:     teamB,
			}
			if cid == "" {
				q.League = leagueOr(league, a.cfg.League)
			}

			payload, err := a.client.Game(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&cid, "condition-id", "", "market condition id")
	cmd.Flags().StringVar(&league, "league", "", "league (defaults to LEAGUE)")
	cmd.Flags().StringVar(&date, "date", "", "game day: YYYY-MM-DD or today, in TIMEZONE")
	cmd.Flags().StringVar(&teamA, "team-a", "", "first team id")
	cmd.Flags().StringVar(&teamB, "team-b", "", "second team id")
	return cmd
}

func newTeamsCommand(a *app) *cobra.Command {
	var (
		lf     listFlags
		league string
	)

	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List the teams of a league",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := client.TeamsQuery{League: leagueOr(league, a.cfg.League), Limit: lf.limit}
			return a.runList(cmd, &lf,
				func(ctx context.Context) (client.Payload, error) { return a.client.Teams(ctx, q) },
				func(size int) (*pagination.Iterator, error) { return a.client.IterTeams(q, size) },
			)
		},
	}

	cmd.Flags().StringVar(&league, "league", "", "league (defaults to LEAGUE)")
	lf.register(cmd)
	return cmd
}

func newTeamCommand(a *app) *cobra.Command {
	var q client.TeamQuery

	cmd := &cobra.Command{
		Use:   "team",
		Short: "Look up one team by id, name or abbreviation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := a.client.Team(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&q.TeamID, "id", "", "team id")
	cmd.Flags().StringVar(&q.Name, "name", "", "team name")
	cmd.Flags().StringVar(&q.Abbreviation, "abbreviation", "", "team abbreviation")
	cmd.Flags().StringVar(&q.League, "league", "", "league")
	return cmd
}

// location resolves an explicit zone name, falling back to the configured
// timezone.
func (a *app) location(name string) (*time.Location, error) {
	if name == "" {
		name = a.cfg.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func leagueOr(flag, fallback string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	return fallback
}

// parseTime accepts "", "now", "today", unix seconds, YYYY-MM-DD (midnight in
// loc) and RFC 3339. An empty string yields the zero time.
func parseTime(s string, loc *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return time.Time{}, nil
	case "now":
		return now, nil
	case "today":
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}

	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).In(loc), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	return t, nil
}
