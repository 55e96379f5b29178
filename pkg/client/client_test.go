package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/ishmael-client/internal/testutil"
	"github.com/Sternrassler/ishmael-client/pkg/ratelimit"
	"github.com/Sternrassler/ishmael-client/pkg/request"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "pk_test_123"

func setupMock(t *testing.T) *testutil.MockAPI {
	t.Helper()
	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)
	return mock
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestClient(t *testing.T, mock *testutil.MockAPI, redisClient *redis.Client) *Client {
	t.Helper()
	cfg := DefaultConfig(testAPIKey)
	cfg.BaseURL = mock.URL()
	cfg.Redis = redisClient
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorIs  error
		errorMsg string
	}{
		{name: "valid config", config: DefaultConfig(testAPIKey)},
		{name: "zero config with key", config: Config{APIKey: testAPIKey}},
		{name: "missing api key", config: DefaultConfig(""), errorIs: ErrMissingAPIKey},
		{name: "blank api key", config: DefaultConfig("   "), errorIs: ErrMissingAPIKey},
		{
			name:     "relative base url",
			config:   Config{APIKey: testAPIKey, BaseURL: "ishmaelinsights.com"},
			errorMsg: "must be absolute",
		},
		{
			name:     "negative timeout",
			config:   Config{APIKey: testAPIKey, Timeout: -time.Second},
			errorMsg: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			switch {
			case tt.errorIs != nil:
				assert.ErrorIs(t, err, tt.errorIs)
			case tt.errorMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			default:
				require.NoError(t, err)
				assert.NotNil(t, c)
				assert.Nil(t, c.Cache(), "no cache without redis")
				assert.Nil(t, c.Quota(), "no quota tracker without redis")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key")

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "ishmael-client-go/0.1.0", cfg.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, ratelimit.QuotaThresholdCritical, cfg.QuotaThreshold)
}

func TestAPIRoot(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://ishmaelinsights.com", "https://ishmaelinsights.com/api/v1"},
		{"https://ishmaelinsights.com/", "https://ishmaelinsights.com/api/v1"},
		{"https://ishmaelinsights.com/api/v1", "https://ishmaelinsights.com/api/v1"},
		{"https://ishmaelinsights.com/api/v1/", "https://ishmaelinsights.com/api/v1"},
		{"http://localhost:8080/proxy", "http://localhost:8080/proxy/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.want, APIRoot(tt.base))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{200, ""},
		{400, ErrorClassClient},
		{401, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.status), "status %d", tt.status)
	}
}

func TestDo_HeadersSet(t *testing.T) {
	mock := setupMock(t)
	c := newTestClient(t, mock, nil)

	_, err := c.AuthCheck(context.Background())
	require.NoError(t, err)

	h := mock.LastRequestHeader()
	assert.Equal(t, testAPIKey, h.Get("x-api-key"))
	assert.Equal(t, DefaultUserAgent, h.Get("User-Agent"))
	assert.Equal(t, "application/json", h.Get("Accept"))
}

func TestCall_SendsBuiltQuery(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/games", testutil.NewHealthyResponse(`{"items": [], "count": 0}`))
	c := newTestClient(t, mock, nil)

	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	_, err := c.Games(context.Background(), GamesQuery{
		League:    "cbb",
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
		TeamIDs:   []string{"12", "34"},
	})
	require.NoError(t, err)

	queries := mock.Queries("/games")
	require.Len(t, queries, 1)
	q := queries[0]
	assert.Equal(t, "cbb", q.Get("league"))
	assert.Equal(t, "1773446400", q.Get("start_date"))
	assert.Equal(t, "1773532800", q.Get("end_date"))
	assert.Equal(t, []string{"12", "34"}, q["team_ids"])
	assert.Equal(t, "50", q.Get("limit"), "default page limit")
}

func TestCall_PredictionsTagsRepeat(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/predictions", testutil.NewHealthyResponse(`{"items": []}`))
	c := newTestClient(t, mock, nil)

	_, err := c.Predictions(context.Background(), PredictionsQuery{
		Time:     time.Unix(1700000000, 0),
		Tags:     []string{"cbb", "ncaa"},
		TagsMode: "any",
		Limit:    10,
	})
	require.NoError(t, err)

	q := mock.Queries("/predictions")[0]
	assert.Equal(t, []string{"cbb", "ncaa"}, q["tag"])
	assert.Equal(t, "1700000000", q.Get("time"))
	assert.Equal(t, "10", q.Get("limit"))
}

func TestCache_DistinctListValuesNotShared(t *testing.T) {
	mock := setupMock(t)
	mock.SetHandler("/predictions", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"tags": strings.Join(r.URL.Query()["tag"], "|")})
	})
	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	joined, err := c.Predictions(ctx, PredictionsQuery{Time: at, Tags: []string{"a,b"}})
	require.NoError(t, err)
	split, err := c.Predictions(ctx, PredictionsQuery{Time: at, Tags: []string{"a", "b"}})
	require.NoError(t, err)

	assert.Equal(t, "a,b", joined["tags"])
	assert.Equal(t, "a|b", split["tags"])
	assert.Equal(t, 2, mock.RequestCount())

	again, err := c.Predictions(ctx, PredictionsQuery{Time: at, Tags: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, split, again)
	assert.Equal(t, 2, mock.RequestCount(), "identical query is served from cache")
}

func TestCall_BuilderErrorSendsNothing(t *testing.T) {
	mock := setupMock(t)
	c := newTestClient(t, mock, nil)
	ctx := context.Background()

	_, err := c.Games(ctx, GamesQuery{League: "cbb"})
	assert.ErrorIs(t, err, request.ErrConfiguration)

	_, err = c.Team(ctx, TeamQuery{League: "nba"})
	assert.ErrorIs(t, err, request.ErrConfiguration)

	_, err = c.Call(ctx, request.OpTeams, request.Params{"league": "nba", "colour": "red"})
	assert.ErrorIs(t, err, request.ErrValidation)

	assert.Equal(t, 0, mock.RequestCount())
}

func TestGame_Modes(t *testing.T) {
	mock := setupMock(t)
	c := newTestClient(t, mock, nil)
	ctx := context.Background()

	_, err := c.Game(ctx, GameQuery{ConditionID: "0xabc"})
	require.NoError(t, err)
	q := mock.Queries("/game")[0]
	assert.Equal(t, "0xabc", q.Get("condition_id"))
	assert.Len(t, q, 1)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	_, err = c.Game(ctx, GameQuery{League: "cbb", GameDate: day, TeamAID: "12", TeamBID: "34"})
	require.NoError(t, err)
	q = mock.Queries("/game")[1]
	assert.Equal(t, "2026-03-14", q.Get("game_date"))
	assert.Equal(t, "12", q.Get("team_a_id"))
	assert.Equal(t, "34", q.Get("team_b_id"))

	_, err = c.Game(ctx, GameQuery{ConditionID: "0xabc", League: "cbb", GameDate: day, TeamAID: "12", TeamBID: "34"})
	assert.ErrorIs(t, err, request.ErrConfiguration)

	_, err = c.Game(ctx, GameQuery{League: "cbb", TeamAID: "12"})
	assert.ErrorIs(t, err, request.ErrConfiguration)

	assert.Equal(t, 2, mock.RequestCount())
}

func TestCall_APIError(t *testing.T) {
	long := strings.Repeat("é", 300)

	tests := []struct {
		name        string
		resp        testutil.MockResponse
		wantStatus  int
		wantClass   ErrorClass
		wantMessage string
	}{
		{
			name:        "error field",
			resp:        testutil.MockResponse{StatusCode: 404, Body: `{"error": "team not found"}`},
			wantStatus:  404,
			wantClass:   ErrorClassClient,
			wantMessage: "team not found",
		},
		{
			name:        "message field",
			resp:        testutil.MockResponse{StatusCode: 400, Body: `{"message": "bad league"}`},
			wantStatus:  400,
			wantClass:   ErrorClassClient,
			wantMessage: "bad league",
		},
		{
			name:        "json without message uses status text",
			resp:        testutil.MockResponse{StatusCode: 400, Body: `[1, 2]`},
			wantStatus:  400,
			wantClass:   ErrorClassClient,
			wantMessage: "Bad Request",
		},
		{
			name:        "plain text body",
			resp:        testutil.MockResponse{StatusCode: 502, Body: "upstream down"},
			wantStatus:  502,
			wantClass:   ErrorClassServer,
			wantMessage: "upstream down",
		},
		{
			name:        "empty body uses status text",
			resp:        testutil.MockResponse{StatusCode: 503},
			wantStatus:  503,
			wantClass:   ErrorClassServer,
			wantMessage: "Service Unavailable",
		},
		{
			name:        "rate limited",
			resp:        testutil.NewRateLimitResponse(),
			wantStatus:  429,
			wantClass:   ErrorClassRateLimit,
			wantMessage: "Rate limit exceeded",
		},
		{
			name:        "long text body is truncated",
			resp:        testutil.MockResponse{StatusCode: 500, Body: long},
			wantStatus:  500,
			wantClass:   ErrorClassServer,
			wantMessage: strings.Repeat("é", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := setupMock(t)
			mock.SetResponse("/team", tt.resp)
			c := newTestClient(t, mock, nil)

			_, err := c.Team(context.Background(), TeamQuery{TeamID: "42"})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantClass, apiErr.Class)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.LessOrEqual(t, utf8.RuneCountInString(apiErr.Message), 200)
		})
	}
}

func TestAPIError_Helpers(t *testing.T) {
	notFound := &APIError{StatusCode: 404, Class: ErrorClassClient}
	assert.True(t, notFound.IsNotFound())
	assert.False(t, notFound.IsUnauthorized())

	unauthorized := &APIError{StatusCode: 401, Class: ErrorClassClient}
	assert.True(t, unauthorized.IsUnauthorized())

	limited := &APIError{StatusCode: 429, Class: ErrorClassRateLimit, Message: "slow down"}
	assert.True(t, limited.IsRateLimited())
	assert.Equal(t, "ishmael rate_limit error (status 429): slow down", limited.Error())
}

func TestCall_NonJSONSuccess(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/auth/check", testutil.MockResponse{StatusCode: 200, Body: "pong"})
	c := newTestClient(t, mock, nil)

	payload, err := c.AuthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Payload{"ok": true, "raw": "pong"}, payload)
}

func TestCall_NonObjectJSONSuccess(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/auth/check", testutil.MockResponse{StatusCode: 200, Body: `["nba", 3]`})
	c := newTestClient(t, mock, nil)

	payload, err := c.AuthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Payload{"ok": true, "raw": []any{"nba", json.Number("3")}}, payload)
}

func TestCall_NumbersPreserved(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/team", testutil.NewHealthyResponse(`{"team_id": 9007199254740993, "rating": 0.1}`))
	c := newTestClient(t, mock, nil)

	payload, err := c.Team(context.Background(), TeamQuery{Abbreviation: "DUKE"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), payload["team_id"])
	assert.Equal(t, json.Number("0.1"), payload["rating"])
}

func TestAuthCheck_UsesPost(t *testing.T) {
	mock := setupMock(t)
	var method string
	mock.SetHandler("/auth/check", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "key_id": "k1"})
	})
	c := newTestClient(t, mock, nil)

	payload, err := c.AuthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "k1", payload["key_id"])
}

func TestDo_NetworkError(t *testing.T) {
	mock := testutil.NewMockAPI()
	c := newTestClient(t, mock, nil)
	mock.Close()

	_, err := c.Teams(context.Background(), TeamsQuery{League: "nba"})
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport errors are not API errors")
}

func TestDo_CacheHit(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/teams", testutil.NewHealthyResponse(`{"items": [{"team_id": 1}], "count": 1}`))
	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()

	first, err := c.Teams(ctx, TeamsQuery{League: "nba"})
	require.NoError(t, err)

	second, err := c.Teams(ctx, TeamsQuery{League: "nba"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.RequestCount(), "fresh entry served without a request")

	_, err = c.Teams(ctx, TeamsQuery{League: "cbb"})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.RequestCount(), "different query is a different key")
}

func TestDo_ConditionalRevalidation(t *testing.T) {
	mock := setupMock(t)
	mock.SetHandler("/teams", testutil.NewConditionalHandler(`"v1"`, `{"items": [{"team_id": 7}]}`, 0))
	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()

	first, err := c.Teams(ctx, TeamsQuery{League: "nba"})
	require.NoError(t, err)

	second, err := c.Teams(ctx, TeamsQuery{League: "nba"})
	require.NoError(t, err)

	assert.Equal(t, first, second, "304 answer is served from the cached body")
	assert.Equal(t, 2, mock.RequestCount())
	assert.Equal(t, 1, mock.ConditionalCount())
}

func TestDo_PostIsNotCached(t *testing.T) {
	mock := setupMock(t)
	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()

	for range 2 {
		_, err := c.AuthCheck(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, mock.RequestCount())
	assert.Equal(t, 0, mock.ConditionalCount())
}

func TestDo_QuotaBlocked(t *testing.T) {
	mock := setupMock(t)
	mock.SetResponse("/teams", testutil.NewRateLimitResponse())
	c := newTestClient(t, mock, setupTestRedis(t))
	ctx := context.Background()

	_, err := c.Teams(ctx, TeamsQuery{League: "nba"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRateLimited())

	_, err = c.Teams(ctx, TeamsQuery{League: "nba"})
	assert.ErrorIs(t, err, ratelimit.ErrQuotaExhausted)
	assert.Equal(t, 1, mock.RequestCount(), "blocked request never reaches the server")
}
