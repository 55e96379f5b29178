package client

import (
	"time"

	"github.com/Sternrassler/ishmael-client/pkg/request"
)

// Default page sizes for single-page calls.
const (
	DefaultPredictionsLimit = 50
	DefaultGamesLimit       = 50
	DefaultTeamsLimit       = 100
)

// PredictionsQuery selects predictions active at Time.
type PredictionsQuery struct {
	Time        time.Time
	Slug        string
	ConditionID string
	TeamID      string
	Tags        []string

	// TagsMode is passed through unchanged (e.g. "any", "all").
	TagsMode string

	Limit  int
	Offset int
	Cursor string
}

// Params converts q into builder parameters. Zero fields are omitted.
func (q PredictionsQuery) Params() request.Params {
	p := request.Params{}
	setTime(p, "time", q.Time)
	setString(p, "slug", q.Slug)
	setString(p, "condition_id", q.ConditionID)
	setString(p, "team_id", q.TeamID)
	if len(q.Tags) > 0 {
		p["tag"] = q.Tags
	}
	setString(p, "tags_mode", q.TagsMode)
	setPaging(p, q.Limit, q.Offset, q.Cursor)
	return p
}

// GamesQuery selects games for a league, either on one GameDate (date mode)
// or between StartDate and EndDate (range mode).
type GamesQuery struct {
	League string

	GameDate time.Time
	Timezone string

	StartDate time.Time
	EndDate   time.Time

	TeamIDs   []string
	MinVolume float64

	Limit  int
	Offset int
	Cursor string
}

// Params converts q into builder parameters. Zero fields are omitted.
func (q GamesQuery) Params() request.Params {
	p := request.Params{}
	setString(p, "league", q.League)
	setTime(p, "game_date", q.GameDate)
	setString(p, "timezone", q.Timezone)
	setTime(p, "start_date", q.StartDate)
	setTime(p, "end_date", q.EndDate)
	if len(q.TeamIDs) > 0 {
		p["team_ids"] = q.TeamIDs
	}
	if q.MinVolume > 0 {
		p["min_volume"] = q.MinVolume
	}
	setPaging(p, q.Limit, q.Offset, q.Cursor)
	return p
}

// GameQuery selects one game by ConditionID or by the composite of League,
// GameDate and both team ids.
type GameQuery struct {
	ConditionID string

	League   string
	GameDate time.Time
	TeamAID  string
	TeamBID  string
}

// Params converts q into builder parameters. Zero fields are omitted.
func (q GameQuery) Params() request.Params {
	p := request.Params{}
	setString(p, "condition_id", q.ConditionID)
	setString(p, "league", q.League)
	setTime(p, "game_date", q.GameDate)
	setString(p, "team_a_id", q.TeamAID)
	setString(p, "team_b_id", q.TeamBID)
	return p
}

// TeamsQuery lists the teams of a league.
type TeamsQuery struct {
	League string
	Limit  int
	Offset int
	Cursor string
}

// Params converts q into builder parameters. Zero fields are omitted.
func (q TeamsQuery) Params() request.Params {
	p := request.Params{}
	setString(p, "league", q.League)
	setPaging(p, q.Limit, q.Offset, q.Cursor)
	return p
}

// TeamQuery looks up one team by id, name or abbreviation.
type TeamQuery struct {
	TeamID       string
	Name         string
	Abbreviation string
	League       string
}

// Params converts q into builder parameters. Zero fields are omitted.
func (q TeamQuery) Params() request.Params {
	p := request.Params{}
	setString(p, "team_id", q.TeamID)
	setString(p, "name", q.Name)
	setString(p, "abbreviation", q.Abbreviation)
	setString(p, "league", q.League)
	return p
}

func setString(p request.Params, key, v string) {
	if v != "" {
		p[key] = v
	}
}

func setTime(p request.Params, key string, t time.Time) {
	if !t.IsZero() {
		p[key] = t
	}
}

func setPaging(p request.Params, limit, offset int, cursor string) {
	if limit > 0 {
		p["limit"] = limit
	}
	if offset > 0 {
		p["offset"] = offset
	}
	setString(p, "cursor", cursor)
}
