package export

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ishmael-client/pkg/pagination"
	"github.com/rs/zerolog"
)

var slugDateRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})$`)

// ResolveTimezone loads name, falling back to DefaultTimezone with a warning.
func ResolveTimezone(name string, logger zerolog.Logger) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn().
			Str("timezone", name).
			Str("fallback", DefaultTimezone).
			Msg("Invalid timezone, falling back")
		loc, _ = time.LoadLocation(DefaultTimezone)
	}
	return loc
}

// ResolveTargetDate parses raw as YYYY-MM-DD in loc. An empty or invalid
// value falls back to the current date in loc.
func ResolveTargetDate(raw string, loc *time.Location, now time.Time, logger zerolog.Logger) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err == nil {
			return day
		}
		logger.Warn().
			Str("date", raw).
			Str("timezone", loc.String()).
			Msg("Invalid target date, falling back to today")
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// SlugDate returns the trailing YYYY-MM-DD of a game slug, or "".
func SlugDate(slug string) string {
	m := slugDateRe.FindStringSubmatch(strings.TrimSpace(slug))
	if m == nil {
		return ""
	}
	return m[1]
}

// OnDay reports whether game is on day (YYYY-MM-DD) in loc. game_time (unix
// seconds) decides first; the slug date is the fallback for rows whose
// game_time has drifted.
func OnDay(game pagination.Row, day string, loc *time.Location) bool {
	if ts, ok := unixValue(game["game_time"]); ok {
		if time.Unix(ts, 0).In(loc).Format(time.DateOnly) == day {
			return true
		}
	}
	return SlugDate(stringValue(game["slug"])) == day
}

// FilterGames keeps the games on day.
func FilterGames(games []pagination.Row, day string, loc *time.Location) []pagination.Row {
	out := make([]pagination.Row, 0, len(games))
	for _, g := range games {
		if OnDay(g, day, loc) {
			out = append(out, g)
		}
	}
	return out
}

// DedupeGames collapses games sharing a condition_id. The last row wins but
// keeps the position of the first. Games without a condition_id are dropped
// unless no game has one.
func DedupeGames(games []pagination.Row) []pagination.Row {
	index := make(map[string]int)
	var out []pagination.Row
	for _, g := range games {
		cid := strings.TrimSpace(stringValue(g["condition_id"]))
		if cid == "" {
			continue
		}
		if i, ok := index[cid]; ok {
			out[i] = g
			continue
		}
		index[cid] = len(out)
		out = append(out, g)
	}
	if len(out) == 0 {
		return games
	}
	return out
}

func unixValue(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(x), true
	case int:
		return int64(x), true
	case int64:
		return x, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// stringValue renders scalar JSON values the way they appear on the wire.
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
