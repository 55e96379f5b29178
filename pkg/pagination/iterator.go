package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/Sternrassler/ishmael-client/pkg/request"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is used when New is given a non-positive page size.
const DefaultPageSize = 500

// Row is one opaque entity (prediction, game, team) from a page.
type Row = map[string]any

// Page is one fetched page of rows.
type Page struct {
	Rows  []Row
	Count int

	// NextCursor is forwarded as the cursor parameter of the next request.
	NextCursor string

	// HasMore, when set, is the server's explicit end-of-data signal.
	HasMore *bool
}

// FetchFunc fetches one page for the given parameters.
type FetchFunc func(ctx context.Context, params request.Params) (*Page, error)

// Iterator walks a paginated endpoint one page at a time.
// It is not safe for concurrent use.
type Iterator struct {
	fetch    FetchFunc
	base     request.Params
	pageSize int

	offset         int
	explicitOffset bool
	cursor         string
	buf     []Row
	pos     int
	row     Row
	done    bool
	err     error
	fetches int
}

// New creates an iterator. No request is made until the first call to Next.
func New(fetch FetchFunc, initial request.Params, pageSize int) *Iterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	base := initial.Clone()
	offset, _ := ParseOffset(base["offset"])
	_, explicit := base["offset"]
	it := &Iterator{
		fetch:          fetch,
		pageSize:       pageSize,
		offset:         offset,
		explicitOffset: explicit,
	}
	if c, ok := base["cursor"].(string); ok {
		it.cursor = c
	}
	delete(base, "offset")
	delete(base, "cursor")
	delete(base, "limit")
	it.base = base

	return it
}

// Next advances to the next row, fetching a page if the buffer is empty.
// It returns false when the sequence is exhausted or a fetch failed.
func (it *Iterator) Next(ctx context.Context) bool {
	for it.pos >= len(it.buf) {
		if it.done || it.err != nil {
			it.row = nil
			return false
		}
		it.fetchPage(ctx)
	}

	it.row = it.buf[it.pos]
	it.pos++
	return true
}

// Row returns the row produced by the last successful call to Next.
func (it *Iterator) Row() Row {
	return it.row
}

// Err returns the fetch error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Fetches returns how many page requests have been issued.
func (it *Iterator) Fetches() int {
	return it.fetches
}

// All adapts the iterator to a range-over-func sequence. A fetch failure is
// yielded once as the final element with a nil row.
func (it *Iterator) All(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Row(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains it. On failure the rows gathered so far are returned with
// the error.
func Collect(ctx context.Context, it *Iterator) ([]Row, error) {
	var rows []Row
	for it.Next(ctx) {
		rows = append(rows, it.Row())
	}
	return rows, it.Err()
}

func (it *Iterator) fetchPage(ctx context.Context) {
	params := it.base.Clone()
	params["limit"] = it.pageSize
	// A known cursor replaces the offset; the first request carries
	// whatever the caller supplied.
	if it.cursor != "" {
		params["cursor"] = it.cursor
	}
	if it.cursor == "" || (it.fetches == 0 && it.explicitOffset) {
		params["offset"] = it.offset
	}

	it.fetches++
	page, err := it.fetch(ctx, params)
	if err != nil {
		log.Debug().
			Err(err).
			Int("offset", it.offset).
			Int("fetches", it.fetches).
			Msg("Page fetch failed")
		it.err = err
		it.buf, it.pos = nil, 0
		return
	}
	if page == nil {
		page = &Page{}
	}

	it.buf, it.pos = page.Rows, 0
	it.offset += len(page.Rows)
	it.cursor = page.NextCursor

	switch {
	case len(page.Rows) == 0, len(page.Rows) < it.pageSize:
		it.done = true
	case page.HasMore != nil && !*page.HasMore:
		it.done = true
	}

	log.Debug().
		Int("rows", len(page.Rows)).
		Int("count", page.Count).
		Int("offset", it.offset).
		Bool("done", it.done).
		Msg("Fetched page")
}

// ParseOffset converts an initial offset parameter into a row count. It
// accepts the integer kinds, integral floats, json.Number and decimal
// strings; nil and "" mean 0. Negative or fractional values are rejected.
func ParseOffset(v any) (int, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return parseOffsetString(x.String())
	case string:
		return parseOffsetString(x)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return 0, nil
			}
			return ParseOffset(rv.Elem().Interface())
		}
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := rv.Uint()
			if u > math.MaxInt32 {
				return 0, fmt.Errorf("offset %d out of range", u)
			}
			n = int64(u)
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || f > math.MaxInt32 {
				return 0, fmt.Errorf("offset %v is not a whole number", f)
			}
			n = int64(f)
		default:
			return 0, fmt.Errorf("unsupported offset type %T", v)
		}
	}
	if n < 0 {
		return 0, fmt.Errorf("offset %d is negative", n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("offset %d out of range", n)
	}
	return int(n), nil
}

func parseOffsetString(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("offset %q is not an integer", s)
	}
	return ParseOffset(n)
}
