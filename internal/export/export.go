// Package export builds a one-day CSV snapshot of a league: its teams, the
// games on a target day, the latest tagged predictions, and the predictions
// for each of that day's games.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Sternrassler/ishmael-client/pkg/client"
	"github.com/Sternrassler/ishmael-client/pkg/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimezone is used when no timezone is configured or it is invalid.
	DefaultTimezone = "America/Los_Angeles"

	// DefaultConcurrency bounds the per-game prediction lookups.
	DefaultConcurrency = 4

	// perGameLimit is the page size of each per-game prediction lookup.
	perGameLimit = 100
)

// Source is the subset of the API client the export needs.
type Source interface {
	IterTeams(q client.TeamsQuery, pageSize int) (*pagination.Iterator, error)
	IterGames(q client.GamesQuery, pageSize int) (*pagination.Iterator, error)
	IterPredictions(q client.PredictionsQuery, pageSize int) (*pagination.Iterator, error)
	Predictions(ctx context.Context, q client.PredictionsQuery) (client.Payload, error)
}

// Options controls one export run.
type Options struct {
	League   string
	Location *time.Location

	// Day is the target calendar day; only its date in Location matters.
	Day time.Time

	OutDir string

	// DecisionTime is the "as of" time for predictions. Zero means now.
	DecisionTime time.Time

	PageSize    int
	Concurrency int
}

// Snapshot holds everything fetched for one run.
type Snapshot struct {
	League       string
	Day          string
	WindowStart  time.Time
	WindowEnd    time.Time
	DecisionTime time.Time

	Teams            []pagination.Row
	Games            []pagination.Row
	Predictions      []pagination.Row
	TodayPredictions []pagination.Row
}

// Files are the paths written by Write.
type Files struct {
	Teams            string
	Games            string
	Predictions      string
	TodayPredictions string
}

// Run fetches a snapshot and writes it to opts.OutDir.
func Run(ctx context.Context, src Source, opts Options, logger zerolog.Logger) (*Snapshot, Files, error) {
	snap, err := Fetch(ctx, src, opts, logger)
	if err != nil {
		return nil, Files{}, err
	}

	files, err := Write(opts.OutDir, snap)
	if err != nil {
		return snap, Files{}, err
	}

	logger.Info().
		Int("teams", len(snap.Teams)).
		Str("file", files.Teams).
		Msg("Wrote teams")
	logger.Info().
		Int("games", len(snap.Games)).
		Str("day", snap.Day).
		Str("file", files.Games).
		Msg("Wrote games")
	logger.Info().
		Int("predictions", len(snap.Predictions)).
		Str("file", files.Predictions).
		Msg("Wrote latest predictions")
	logger.Info().
		Int("predictions", len(snap.TodayPredictions)).
		Str("file", files.TodayPredictions).
		Msg("Wrote predictions for the day's games")

	return snap, files, nil
}

// Fetch collects the snapshot data. Requests are sequential except for the
// per-game prediction lookups.
func Fetch(ctx context.Context, src Source, opts Options, logger zerolog.Logger) (*Snapshot, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	league := strings.ToLower(strings.TrimSpace(opts.League))
	if league == "" {
		return nil, fmt.Errorf("league is required")
	}
	decision := opts.DecisionTime
	if decision.IsZero() {
		decision = time.Now()
	}

	start, end := Window(opts.Day, loc)
	snap := &Snapshot{
		League:       league,
		Day:          opts.Day.In(loc).Format(time.DateOnly),
		WindowStart:  start,
		WindowEnd:    end,
		DecisionTime: decision,
	}

	logger.Info().
		Str("timezone", loc.String()).
		Str("day", snap.Day).
		Int64("window_start", start.Unix()).
		Int64("window_end", end.Unix()).
		Msg("Export window")

	logger.Info().Str("league", league).Msg("Fetching all teams")
	it, err := src.IterTeams(client.TeamsQuery{League: league}, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}
	if snap.Teams, err = pagination.Collect(ctx, it); err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}

	logger.Info().Str("league", league).Msg("Fetching games near target day")
	it, err = src.IterGames(client.GamesQuery{League: league, StartDate: start, EndDate: end}, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("games: %w", err)
	}
	rawGames, err := pagination.Collect(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("games: %w", err)
	}
	snap.Games = DedupeGames(FilterGames(rawGames, snap.Day, loc))

	logger.Info().Str("league", league).Msg("Fetching latest predictions")
	it, err = src.IterPredictions(client.PredictionsQuery{Time: decision, Tags: []string{league}}, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("predictions: %w", err)
	}
	if snap.Predictions, err = pagination.Collect(ctx, it); err != nil {
		return nil, fmt.Errorf("predictions: %w", err)
	}

	logger.Info().Int("games", len(snap.Games)).Msg("Fetching predictions for the day's games")
	snap.TodayPredictions, err = PredictionsForGames(ctx, src, decision, ConditionIDs(snap.Games), opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("predictions for games: %w", err)
	}

	return snap, nil
}

// Window returns the game query window: the target local day widened by one
// calendar day on each side.
func Window(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return start.AddDate(0, 0, -1), end.AddDate(0, 0, 1)
}

// ConditionIDs returns the distinct non-empty condition ids of games, sorted.
func ConditionIDs(games []pagination.Row) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, g := range games {
		cid := strings.TrimSpace(stringValue(g["condition_id"]))
		if cid == "" || seen[cid] {
			continue
		}
		seen[cid] = true
		ids = append(ids, cid)
	}
	sort.Strings(ids)
	return ids
}

// PredictionsForGames fetches predictions for each condition id and merges
// them in condition-id order, keeping the first row per (condition_id,
// outcome).
func PredictionsForGames(ctx context.Context, src Source, decision time.Time, conditionIDs []string, concurrency int) ([]pagination.Row, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([][]pagination.Row, len(conditionIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, cid := range conditionIDs {
		g.Go(func() error {
			payload, err := src.Predictions(ctx, client.PredictionsQuery{
				Time:        decision,
				ConditionID: cid,
				Limit:       perGameLimit,
			})
			if err != nil {
				return fmt.Errorf("condition %s: %w", cid, err)
			}
			results[i] = objectItems(payload)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	type key struct{ cid, outcome string }
	seen := make(map[key]bool)
	var out []pagination.Row
	for _, rows := range results {
		for _, row := range rows {
			k := key{stringValue(row["condition_id"]), stringValue(row["outcome"])}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, row)
		}
	}
	return out, nil
}

// objectItems returns the object rows of payload["items"]; other rows are
// dropped.
func objectItems(p client.Payload) []pagination.Row {
	raw, _ := p["items"].([]any)
	rows := make([]pagination.Row, 0, len(raw))
	for _, item := range raw {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// Write writes the four snapshot files into dir.
func Write(dir string, snap *Snapshot) (Files, error) {
	files := Files{
		Teams:            filepath.Join(dir, snap.League+"_teams.csv"),
		Games:            filepath.Join(dir, snap.League+"_games_today.csv"),
		Predictions:      filepath.Join(dir, snap.League+"_predictions_latest.csv"),
		TodayPredictions: filepath.Join(dir, snap.League+"_predictions_for_today_games.csv"),
	}

	for _, w := range []struct {
		path string
		rows []pagination.Row
	}{
		{files.Teams, snap.Teams},
		{files.Games, snap.Games},
		{files.Predictions, snap.Predictions},
		{files.TodayPredictions, snap.TodayPredictions},
	} {
		if err := WriteCSV(w.path, w.rows); err != nil {
			return Files{}, err
		}
	}

	return files, nil
}
