package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const restPrefix = "/rest/v1/"

// RESTStore executes row operations against the hosted PostgREST-style
// API.  It is the default RowStore of a Client.
type RESTStore struct {
	c *Client
}

func (s *RESTStore) Select(ctx context.Context, q Query, dest any) (int, error) {
	params := url.Values{}
	params.Set("select", q.Columns)
	for _, f := range q.Filters {
		params.Add(filterKey(f), EncodeFilter(f))
	}
	if len(q.Orders) > 0 {
		params.Set("order", encodeOrders(q.Orders))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	header := http.Header{}
	if q.Count {
		header.Set("Prefer", "count=exact")
	}
	resp, err := s.c.doJSON(ctx, http.MethodGet, restPrefix+url.PathEscape(q.Table), params, nil, header, dest)
	if err != nil {
		return -1, err
	}
	if !q.Count {
		return -1, nil
	}
	return parseContentRange(resp.Header.Get("Content-Range")), nil
}

func (s *RESTStore) Insert(ctx context.Context, table string, rows any, dest any) error {
	header := http.Header{}
	header.Set("Prefer", preferReturn(dest))
	_, err := s.c.doJSON(ctx, http.MethodPost, restPrefix+url.PathEscape(table), nil, rows, header, dest)
	return err
}

func (s *RESTStore) Update(ctx context.Context, table string, filters []Filter, patch any, dest any) error {
	header := http.Header{}
	header.Set("Prefer", preferReturn(dest))
	_, err := s.c.doJSON(ctx, http.MethodPatch, restPrefix+url.PathEscape(table), filterParams(filters), patch, header, dest)
	return err
}

func (s *RESTStore) Delete(ctx context.Context, table string, filters []Filter) error {
	_, err := s.c.doJSON(ctx, http.MethodDelete, restPrefix+url.PathEscape(table), filterParams(filters), nil, nil, nil)
	return err
}

func (s *RESTStore) Call(ctx context.Context, fn string, args any, dest any) error {
	if args == nil {
		args = map[string]any{}
	}
	_, err := s.c.doJSON(ctx, http.MethodPost, restPrefix+"rpc/"+url.PathEscape(fn), nil, args, nil, dest)
	return err
}

func preferReturn(dest any) string {
	if dest == nil {
		return "return=minimal"
	}
	return "return=representation"
}

func filterParams(filters []Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(filterKey(f), EncodeFilter(f))
	}
	return params
}

// filterKey is the query parameter a filter is sent under: its column, or
// "or" for a disjunction.
func filterKey(f Filter) string {
	if f.Op == OpOr {
		return string(OpOr)
	}
	return f.Column
}

// EncodeFilter renders a filter as the value of its column parameter, e.g.
// "eq.O-", "ilike.%dhaka%", "is.null", "in.(a,b)" or, for OpOr,
// "(name.ilike.%ab%,phone.ilike.%ab%)".
func EncodeFilter(f Filter) string {
	switch f.Op {
	case OpOr:
		subs, _ := f.Value.([]Filter)
		terms := make([]string, 0, len(subs))
		for _, sub := range subs {
			if sub.Op == OpOr {
				terms = append(terms, "or"+EncodeFilter(sub))
				continue
			}
			terms = append(terms, sub.Column+"."+encodeOrTerm(sub))
		}
		return "(" + strings.Join(terms, ",") + ")"
	case OpIs:
		switch v := f.Value.(type) {
		case nil:
			return "is.null"
		case bool:
			return "is." + strconv.FormatBool(v)
		default:
			return "is." + formatValue(v)
		}
	case OpIn:
		items := sliceValues(f.Value)
		quoted := make([]string, 0, len(items))
		for _, it := range items {
			s := formatValue(it)
			if strings.ContainsAny(s, ",()\" ") {
				s = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
			}
			quoted = append(quoted, s)
		}
		return "in.(" + strings.Join(quoted, ",") + ")"
	default:
		return string(f.Op) + "." + formatValue(f.Value)
	}
}

// encodeOrTerm quotes values that would break the parenthesized list.
func encodeOrTerm(f Filter) string {
	switch f.Op {
	case OpIs, OpIn:
		return EncodeFilter(f)
	}
	v := formatValue(f.Value)
	if strings.ContainsAny(v, ",()\"") {
		v = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return string(f.Op) + "." + v
}

func encodeOrders(orders []Order) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		parts = append(parts, o.Column+"."+dir)
	}
	return strings.Join(parts, ",")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func sliceValues(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}

// parseContentRange extracts the total from "0-9/42" or "*/0".  An
// unknown total ("0-9/*") yields -1.
func parseContentRange(h string) int {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(h[i+1:]))
	if err != nil {
		return -1
	}
	return n
}
