package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Games(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		params    Params
		wantQuery map[string][]string
		wantErr   error
		wantKeys  []string
	}{
		{
			name:   "date mode",
			params: Params{"league": "cbb", "game_date": "2026-03-14", "timezone": "America/Los_Angeles"},
			wantQuery: map[string][]string{
				"league":    {"cbb"},
				"game_date": {"2026-03-14"},
				"timezone":  {"America/Los_Angeles"},
			},
		},
		{
			name:   "date mode with time value",
			params: Params{"league": "cbb", "game_date": day},
			wantQuery: map[string][]string{
				"league":    {"cbb"},
				"game_date": {"2026-03-14"},
			},
		},
		{
			name:   "range mode with unix times",
			params: Params{"league": "nba", "start_date": day, "end_date": day.Add(24 * time.Hour), "limit": 50},
			wantQuery: map[string][]string{
				"league":     {"nba"},
				"start_date": {"1773446400"},
				"end_date":   {"1773532800"},
				"limit":      {"50"},
			},
		},
		{
			name:     "date and range together",
			params:   Params{"league": "cbb", "game_date": "2026-03-14", "start_date": 1, "end_date": 2},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"game_date", "start_date", "end_date"},
		},
		{
			name:     "timezone and end_date together",
			params:   Params{"league": "cbb", "timezone": "UTC", "end_date": 2},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"timezone", "end_date"},
		},
		{
			name:     "neither mode",
			params:   Params{"league": "cbb"},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"game_date", "timezone", "start_date", "end_date"},
		},
		{
			name:     "incomplete range",
			params:   Params{"league": "cbb", "start_date": 1},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"end_date"},
		},
		{
			name:     "timezone without date",
			params:   Params{"league": "cbb", "timezone": "UTC"},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"game_date"},
		},
		{
			name:     "missing league",
			params:   Params{"game_date": "2026-03-14"},
			wantErr:  ErrConfiguration,
			wantKeys: []string{"league"},
		},
		{
			name:   "empty values count as absent",
			params: Params{"league": "cbb", "game_date": "2026-03-14", "start_date": "", "end_date": nil},
			wantQuery: map[string][]string{
				"league":    {"cbb"},
				"game_date": {"2026-03-14"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Build(OpGames, tt.params)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var cfgErr *ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.ElementsMatch(t, tt.wantKeys, cfgErr.Keys)
				assert.Nil(t, req)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, "/games", req.Path)
			assert.Equal(t, tt.wantQuery, map[string][]string(req.Query))
		})
	}
}

func TestBuild_UnknownKey(t *testing.T) {
	for _, ep := range Endpoints() {
		t.Run(string(ep.Operation), func(t *testing.T) {
			_, err := Build(ep.Operation, Params{"foo": 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "foo", vErr.Key)
		})
	}
}

func TestBuild_UnknownOperation(t *testing.T) {
	_, err := Build("odds", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuild_TagsRepeatInOrder(t *testing.T) {
	req, err := Build(OpPredictions, Params{
		"time":      1700000000,
		"tag":       []string{"a", "b"},
		"tags_mode": "any",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, req.Query["tag"])
	assert.Equal(t, "tag=a&tag=b&tags_mode=any&time=1700000000", req.Query.Encode())
}

func TestBuild_ScalarForListParam(t *testing.T) {
	req, err := Build(OpPredictions, Params{"time": 1, "tag": "cbb"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cbb"}, req.Query["tag"])
}

func TestBuild_ValueTypes(t *testing.T) {
	volume := 1250.5
	type league string

	tests := []struct {
		name    string
		op      Operation
		params  Params
		key     string
		want    []string
		wantErr bool
	}{
		{name: "float pointer", op: OpGames, params: Params{"league": "cbb", "game_date": "2026-01-01", "min_volume": &volume}, key: "min_volume", want: []string{"1250.5"}},
		{name: "named string", op: OpTeams, params: Params{"league": league("nfl")}, key: "league", want: []string{"nfl"}},
		{name: "json number", op: OpTeams, params: Params{"league": "nfl", "limit": json.Number("25")}, key: "limit", want: []string{"25"}},
		{name: "unix time", op: OpPredictions, params: Params{"time": time.Unix(1700000000, 0)}, key: "time", want: []string{"1700000000"}},
		{name: "int list", op: OpGames, params: Params{"league": "cbb", "game_date": "2026-01-01", "team_ids": []int{7, 9}}, key: "team_ids", want: []string{"7", "9"}},
		{name: "mixed any list skips empties", op: OpPredictions, params: Params{"time": 1, "tag": []any{"cbb", "", 3}}, key: "tag", want: []string{"cbb", "3"}},
		{name: "map value", op: OpTeams, params: Params{"league": map[string]string{"a": "b"}}, wantErr: true},
		{name: "struct value", op: OpTeams, params: Params{"league": struct{ X int }{1}}, wantErr: true},
		{name: "list for scalar param", op: OpTeams, params: Params{"league": []string{"nfl", "nba"}}, wantErr: true},
		{name: "nested list", op: OpPredictions, params: Params{"time": 1, "tag": []any{[]string{"x"}}}, wantErr: true},
		{name: "bytes", op: OpTeams, params: Params{"league": []byte("nfl")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Build(tt.op, tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Query[tt.key])
		})
	}
}

func TestBuild_Game(t *testing.T) {
	_, err := Build(OpGame, Params{"condition_id": "0xabc"})
	require.NoError(t, err)

	_, err = Build(OpGame, Params{"league": "cbb", "game_date": "2026-01-01", "team_a_id": 1, "team_b_id": 2})
	require.NoError(t, err)

	_, err = Build(OpGame, Params{"league": "cbb", "team_a_id": 1})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ElementsMatch(t, []string{"game_date", "team_b_id"}, cfgErr.Keys)

	_, err = Build(OpGame, Params{"condition_id": "0xabc", "league": "cbb"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Build(OpGame, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBuild_Team(t *testing.T) {
	_, err := Build(OpTeam, Params{"league": "cbb"})
	assert.ErrorIs(t, err, ErrConfiguration)

	req, err := Build(OpTeam, Params{"name": "Gonzaga", "league": "cbb"})
	require.NoError(t, err)
	assert.Equal(t, "/team", req.Path)
}

func TestBuild_AuthCheck(t *testing.T) {
	req, err := Build(OpAuthCheck, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/auth/check", req.Path)
	assert.Empty(t, req.Query)
	assert.Equal(t, "https://example.test/api/v1/auth/check", req.URL("https://example.test/api/v1/"))
}

func TestBuild_OutputKeysAreDeclared(t *testing.T) {
	valid := map[Operation]Params{
		OpAuthCheck:   {},
		OpPredictions: {"time": 1, "slug": "x", "condition_id": "c", "team_id": 4, "tag": []string{"cbb"}, "tags_mode": "all", "limit": 10, "offset": 20, "cursor": "abc"},
		OpGames:       {"league": "cbb", "start_date": 1, "end_date": 2, "team_ids": []string{"1"}, "min_volume": 3.5, "limit": 5},
		OpGame:        {"condition_id": "c"},
		OpTeams:       {"league": "cbb", "limit": 100, "offset": 0},
		OpTeam:        {"team_id": 12},
	}

	for op, params := range valid {
		t.Run(string(op), func(t *testing.T) {
			req, err := Build(op, params)
			require.NoError(t, err)

			ep, _ := Lookup(op)
			declared := ep.Keys()
			for key := range req.Query {
				assert.Contains(t, declared, key)
			}
		})
	}
}

func TestParams_Clone(t *testing.T) {
	p := Params{"league": "cbb"}
	c := p.Clone()
	c["limit"] = 5

	assert.NotContains(t, p, "limit")
	assert.Equal(t, "cbb", c["league"])
}
