package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Sternrassler/ishmael-client/pkg/pagination"
	"github.com/Sternrassler/ishmael-client/pkg/request"
)

// Payload is a decoded JSON object returned by the API. Numbers are kept as
// json.Number.
type Payload map[string]any

// Call builds the request for op, sends it, and decodes the answer.
// Builder errors are returned before anything is sent. A non-2xx answer
// becomes an *APIError. A success body that is not a JSON object is
// returned under "raw": decoded when it is JSON, as text otherwise.
func (c *Client) Call(ctx context.Context, op request.Operation, params request.Params) (Payload, error) {
	r, err := request.Build(op, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL(c.root), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}

	value, decoded := decodeJSON(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body, value, decoded)
	}

	if !decoded {
		return Payload{"ok": true, "raw": string(body)}, nil
	}
	if m, ok := value.(map[string]any); ok {
		return Payload(m), nil
	}
	return Payload{"ok": true, "raw": value}, nil
}

func decodeJSON(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// AuthCheck verifies the configured API key.
func (c *Client) AuthCheck(ctx context.Context) (Payload, error) {
	return c.Call(ctx, request.OpAuthCheck, nil)
}

// Predictions fetches one page of predictions.
func (c *Client) Predictions(ctx context.Context, q PredictionsQuery) (Payload, error) {
	if q.Limit == 0 {
		q.Limit = DefaultPredictionsLimit
	}
	return c.Call(ctx, request.OpPredictions, q.Params())
}

// Games fetches one page of games.
func (c *Client) Games(ctx context.Context, q GamesQuery) (Payload, error) {
	if q.Limit == 0 {
		q.Limit = DefaultGamesLimit
	}
	return c.Call(ctx, request.OpGames, q.Params())
}

// Game fetches a single game.
func (c *Client) Game(ctx context.Context, q GameQuery) (Payload, error) {
	return c.Call(ctx, request.OpGame, q.Params())
}

// Teams fetches one page of teams.
func (c *Client) Teams(ctx context.Context, q TeamsQuery) (Payload, error) {
	if q.Limit == 0 {
		q.Limit = DefaultTeamsLimit
	}
	return c.Call(ctx, request.OpTeams, q.Params())
}

// Team fetches a single team.
func (c *Client) Team(ctx context.Context, q TeamQuery) (Payload, error) {
	return c.Call(ctx, request.OpTeam, q.Params())
}

// IterPredictions returns an iterator over all predictions matching q.
// q.Limit is ignored; pageSize controls the page size.
func (c *Client) IterPredictions(q PredictionsQuery, pageSize int) (*pagination.Iterator, error) {
	return c.Iterate(request.OpPredictions, q.Params(), pageSize)
}

// IterGames returns an iterator over all games matching q.
func (c *Client) IterGames(q GamesQuery, pageSize int) (*pagination.Iterator, error) {
	return c.Iterate(request.OpGames, q.Params(), pageSize)
}

// IterTeams returns an iterator over all teams of a league.
func (c *Client) IterTeams(q TeamsQuery, pageSize int) (*pagination.Iterator, error) {
	return c.Iterate(request.OpTeams, q.Params(), pageSize)
}

// Iterate returns a lazy iterator over a paginated operation. The parameters
// are validated up front so a bad query fails before any request is sent.
func (c *Client) Iterate(op request.Operation, params request.Params, pageSize int) (*pagination.Iterator, error) {
	ep, ok := request.Lookup(op)
	if !ok {
		return nil, &request.ValidationError{Operation: op, Reason: "unknown operation"}
	}
	if !ep.Paginated {
		return nil, &request.ValidationError{Operation: op, Reason: "operation is not paginated"}
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	if _, err := pagination.ParseOffset(params["offset"]); err != nil {
		return nil, &request.ValidationError{Operation: op, Key: "offset", Reason: err.Error()}
	}

	check := params.Clone()
	check["limit"] = pageSize
	if _, err := request.Build(op, check); err != nil {
		return nil, err
	}

	return pagination.New(c.FetchPage(op), params, pageSize), nil
}

// FetchPage adapts Call into a page fetcher for op.
func (c *Client) FetchPage(op request.Operation) pagination.FetchFunc {
	return func(ctx context.Context, params request.Params) (*pagination.Page, error) {
		payload, err := c.Call(ctx, op, params)
		if err != nil {
			return nil, err
		}
		pagesFetchedTotal.WithLabelValues(string(op)).Inc()
		return PageFromPayload(payload), nil
	}
}

// PageFromPayload extracts one page from a list payload. Rows come from
// "items" (or "rows"); non-object rows are wrapped as {"value": v}. A
// present but empty "next_cursor", or "has_more": false, marks the last page.
func PageFromPayload(p Payload) *pagination.Page {
	raw, ok := p["items"].([]any)
	if !ok {
		raw, _ = p["rows"].([]any)
	}

	page := &pagination.Page{Rows: make([]pagination.Row, 0, len(raw))}
	for _, item := range raw {
		if row, ok := item.(map[string]any); ok {
			page.Rows = append(page.Rows, row)
		} else {
			page.Rows = append(page.Rows, pagination.Row{"value": item})
		}
	}

	page.Count = len(page.Rows)
	if n, ok := p["count"].(json.Number); ok {
		if v, err := n.Int64(); err == nil {
			page.Count = int(v)
		}
	}

	if v, present := p["next_cursor"]; present {
		if s := cursorString(v); s != "" {
			page.NextCursor = s
		} else {
			last := false
			page.HasMore = &last
		}
	}

	if more, ok := p["has_more"].(bool); ok && page.HasMore == nil {
		page.HasMore = &more
	}

	return page
}

func cursorString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}
