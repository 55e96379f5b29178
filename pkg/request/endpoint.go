package request

import "net/http"

// Operation names one logical API call.
type Operation string

const (
	OpAuthCheck   Operation = "auth_check"
	OpPredictions Operation = "predictions"
	OpGames       Operation = "games"
	OpGame        Operation = "game"
	OpTeams       Operation = "teams"
	OpTeam        Operation = "team"
)

// TimeFormat selects how a time.Time value is rendered on the wire.
type TimeFormat int

const (
	// TimeRFC3339 renders timestamps as RFC 3339 strings.
	TimeRFC3339 TimeFormat = iota

	// TimeUnix renders timestamps as unix seconds.
	TimeUnix

	// TimeDate renders the calendar date in the value's own location.
	TimeDate
)

// Param declares one accepted query parameter.
type Param struct {
	Name string
	List bool
	Time TimeFormat
}

// Group is a named set of parameters used together. Once any key of the
// group is set, every key in Required must be set as well.
type Group struct {
	Name     string
	Keys     []string
	Required []string
}

// Endpoint is the static description of one operation's HTTP shape.
type Endpoint struct {
	Operation Operation
	Method    string
	Path      string
	Params    []Param

	// Required keys must always be present.
	Required []string

	// Modes are mutually exclusive groups. When non-empty, exactly one
	// mode must be in use.
	Modes []Group

	// AnyOf requires at least one of the listed keys.
	AnyOf []string

	// Paginated endpoints accept limit/offset/cursor.
	Paginated bool
}

// Param returns the declaration of the named parameter.
func (e Endpoint) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Keys returns the declared parameter names in declaration order.
func (e Endpoint) Keys() []string {
	keys := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		keys = append(keys, p.Name)
	}
	return keys
}

var pageParams = []Param{{Name: "limit"}, {Name: "offset"}, {Name: "cursor"}}

func withPaging(params ...Param) []Param {
	return append(params, pageParams...)
}

var endpoints = map[Operation]Endpoint{
	OpAuthCheck: {
		Operation: OpAuthCheck,
		Method:    http.MethodPost,
		Path:      "/auth/check",
	},
	OpPredictions: {
		Operation: OpPredictions,
		Method:    http.MethodGet,
		Path:      "/predictions",
		Params: withPaging(
			Param{Name: "time", Time: TimeUnix},
			Param{Name: "slug"},
			Param{Name: "condition_id"},
			Param{Name: "team_id"},
			Param{Name: "tag", List: true},
			Param{Name: "tags_mode"},
		),
		Required:  []string{"time"},
		Paginated: true,
	},
	OpGames: {
		Operation: OpGames,
		Method:    http.MethodGet,
		Path:      "/games",
		Params: withPaging(
			Param{Name: "league"},
			Param{Name: "game_date", Time: TimeDate},
			Param{Name: "timezone"},
			Param{Name: "start_date", Time: TimeUnix},
			Param{Name: "end_date", Time: TimeUnix},
			Param{Name: "team_ids", List: true},
			Param{Name: "min_volume"},
		),
		Required: []string{"league"},
		Modes: []Group{
			{Name: "date", Keys: []string{"game_date", "timezone"}, Required: []string{"game_date"}},
			{Name: "range", Keys: []string{"start_date", "end_date"}, Required: []string{"start_date", "end_date"}},
		},
		Paginated: true,
	},
	OpGame: {
		Operation: OpGame,
		Method:    http.MethodGet,
		Path:      "/game",
		Params: []Param{
			{Name: "condition_id"},
			{Name: "league"},
			{Name: "game_date", Time: TimeDate},
			{Name: "team_a_id"},
			{Name: "team_b_id"},
		},
		Modes: []Group{
			{Name: "condition", Keys: []string{"condition_id"}, Required: []string{"condition_id"}},
			{
				Name:     "composite",
				Keys:     []string{"league", "game_date", "team_a_id", "team_b_id"},
				Required: []string{"league", "game_date", "team_a_id", "team_b_id"},
			},
		},
	},
	OpTeams: {
		Operation: OpTeams,
		Method:    http.MethodGet,
		Path:      "/teams",
		Params:    withPaging(Param{Name: "league"}),
		Required:  []string{"league"},
		Paginated: true,
	},
	OpTeam: {
		Operation: OpTeam,
		Method:    http.MethodGet,
		Path:      "/team",
		Params: []Param{
			{Name: "team_id"},
			{Name: "name"},
			{Name: "abbreviation"},
			{Name: "league"},
		},
		AnyOf: []string{"team_id", "name", "abbreviation"},
	},
}

// Lookup returns the descriptor for op.
func Lookup(op Operation) (Endpoint, bool) {
	e, ok := endpoints[op]
	return e, ok
}

// Endpoints returns all descriptors ordered by operation name.
func Endpoints() []Endpoint {
	ops := []Operation{OpAuthCheck, OpGame, OpGames, OpPredictions, OpTeam, OpTeams}
	out := make([]Endpoint, 0, len(ops))
	for _, op := range ops {
		out = append(out, endpoints[op])
	}
	return out
}
