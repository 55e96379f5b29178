// Package request turns an operation name and a parameter mapping into a
// validated HTTP method, path and query string for the Ishmael Insights API.
//
// Every operation is described by a static Endpoint. Build rejects keys the
// endpoint does not declare, values that are neither scalars nor lists of
// scalars, and combinations of mutually exclusive parameter modes (for
// example a games query with both game_date and start_date). Build performs
// no I/O.
package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Params is a caller-supplied parameter mapping. Nil values, empty strings,
// empty lists and zero times count as absent.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p)+3)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Request is the result of Build.
type Request struct {
	Operation Operation
	Method    string
	Path      string
	Query     url.Values
}

// URL joins the request path and encoded query onto root.
func (r *Request) URL(root string) string {
	u := strings.TrimRight(root, "/") + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// Build validates params against the descriptor of op and returns the
// normalized request.
func Build(op Operation, params Params) (*Request, error) {
	ep, ok := Lookup(op)
	if !ok {
		return nil, &ValidationError{Operation: op, Reason: "unknown operation"}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := url.Values{}
	for _, key := range keys {
		p, ok := ep.Param(key)
		if !ok {
			return nil, &ValidationError{Operation: op, Key: key, Reason: "unknown parameter"}
		}
		values, err := normalize(p, params[key])
		if err != nil {
			return nil, &ValidationError{Operation: op, Key: key, Reason: err.Error()}
		}
		if len(values) > 0 {
			query[key] = values
		}
	}

	if err := checkRules(ep, query); err != nil {
		return nil, err
	}

	return &Request{
		Operation: op,
		Method:    ep.Method,
		Path:      ep.Path,
		Query:     query,
	}, nil
}

func checkRules(ep Endpoint, query url.Values) error {
	if len(ep.Modes) > 0 {
		var active []Group
		for _, m := range ep.Modes {
			if len(present(query, m.Keys)) > 0 {
				active = append(active, m)
			}
		}

		switch len(active) {
		case 0:
			var all, names []string
			for _, m := range ep.Modes {
				all = append(all, m.Keys...)
				names = append(names, m.Name)
			}
			return &ConfigurationError{
				Operation: ep.Operation,
				Keys:      all,
				Reason:    fmt.Sprintf("one parameter mode is required (%s)", strings.Join(names, " or ")),
			}
		case 1:
			if missing := absent(query, active[0].Required); len(missing) > 0 {
				return &ConfigurationError{
					Operation: ep.Operation,
					Keys:      missing,
					Reason:    fmt.Sprintf("incomplete %s mode, missing", active[0].Name),
				}
			}
		default:
			var conflicting, names []string
			for _, m := range active {
				conflicting = append(conflicting, present(query, m.Keys)...)
				names = append(names, m.Name)
			}
			return &ConfigurationError{
				Operation: ep.Operation,
				Keys:      conflicting,
				Reason:    fmt.Sprintf("modes %s are mutually exclusive", strings.Join(names, " and ")),
			}
		}
	}

	if missing := absent(query, ep.Required); len(missing) > 0 {
		return &ConfigurationError{
			Operation: ep.Operation,
			Keys:      missing,
			Reason:    "missing required parameters",
		}
	}

	if len(ep.AnyOf) > 0 && len(present(query, ep.AnyOf)) == 0 {
		return &ConfigurationError{
			Operation: ep.Operation,
			Keys:      ep.AnyOf,
			Reason:    "at least one parameter is required",
		}
	}

	return nil
}

func present(query url.Values, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := query[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func absent(query url.Values, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := query[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// normalize renders v as zero or more query values for p.
func normalize(p Param, v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
		v = rv.Interface()
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, fmt.Errorf("unsupported type %T", v)
		}
		if !p.List {
			return nil, fmt.Errorf("list value for scalar parameter")
		}
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, ok, err := formatScalar(p, rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			if ok {
				out = append(out, s)
			}
		}
		return out, nil
	}

	s, ok, err := formatScalar(p, v)
	if err != nil || !ok {
		return nil, err
	}
	return []string{s}, nil
}

// formatScalar reports ok=false for absent values.
func formatScalar(p Param, v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, x != "", nil
	case json.Number:
		return x.String(), x != "", nil
	case time.Time:
		if x.IsZero() {
			return "", false, nil
		}
		return formatTime(p.Time, x), true, nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return "", false, nil
		}
		return formatTime(p.Time, *x), true, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false, nil
		}
		return formatScalar(p, rv.Elem().Interface())
	}

	switch rv.Kind() {
	case reflect.String:
		s := rv.String()
		return s, s != "", nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true, nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true, nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true, nil
	}

	return "", false, fmt.Errorf("unsupported type %T", v)
}

func formatTime(f TimeFormat, t time.Time) string {
	switch f {
	case TimeUnix:
		return strconv.FormatInt(t.Unix(), 10)
	case TimeDate:
		return t.Format(time.DateOnly)
	default:
		return t.Format(time.RFC3339)
	}
}
