package backend

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Procedure implements an RPC for the SQL driver.  args holds the raw JSON
// arguments; the returned value is encoded to JSON and decoded into the
// caller's dest, exactly as a hosted RPC result would be.
type Procedure func(ctx context.Context, db *sql.DB, args json.RawMessage) (any, error)

// SQLStore runs row operations against MySQL.  It lets the registry keep
// its rows in a self-hosted database while auth and storage stay hosted.
// Column names come from the JSON tags of the rows, so the same models
// work with both drivers.
//
// Conventions of the schema it expects: every table has a string `id`
// primary key, booleans are TINYINT(1) and no other TINYINT columns exist.
type SQLStore struct {
	db *sql.DB

	mu    sync.RWMutex
	procs map[string]Procedure
}

// NewSQLStore wraps an open MySQL handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, procs: map[string]Procedure{}}
}

// Register makes fn callable through Client.RPC under name.
func (s *SQLStore) Register(name string, fn Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[name] = fn
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("backend: invalid identifier %q", name)
	}
	return "`" + name + "`", nil
}

func (s *SQLStore) Select(ctx context.Context, q Query, dest any) (int, error) {
	count := -1
	if q.Count {
		countSQL, args, err := buildCount(q)
		if err != nil {
			return -1, err
		}
		if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&count); err != nil {
			return -1, err
		}
	}
	stmt, args, err := buildSelect(q)
	if err != nil {
		return -1, err
	}
	records, err := s.query(ctx, stmt, args...)
	if err != nil {
		return -1, err
	}
	if err := decodeInto(records, dest); err != nil {
		return -1, err
	}
	return count, nil
}

func (s *SQLStore) Insert(ctx context.Context, table string, rows any, dest any) error {
	tbl, err := quoteIdent(table)
	if err != nil {
		return err
	}
	records, err := toRecords(rows)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("backend: nothing to insert")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ids := make([]any, 0, len(records))
	for _, rec := range records {
		stmt, args, err := buildInsert(tbl, rec)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		if id, ok := rec["id"]; ok && id != nil {
			ids = append(ids, sqlArg(id))
		} else if last, err := res.LastInsertId(); err == nil && last > 0 {
			ids = append(ids, last)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	if dest == nil {
		return nil
	}
	if len(ids) == 0 {
		return decodeInto(nil, dest)
	}
	stmt, args, err := buildSelect(Query{Table: table, Columns: "*", Filters: []Filter{{Column: "id", Op: OpIn, Value: ids}}})
	if err != nil {
		return err
	}
	stored, err := s.query(ctx, stmt, args...)
	if err != nil {
		return err
	}
	return decodeInto(stored, dest)
}

// Update applies patch to the filtered rows.  With a non-nil dest the rows
// are re-read using the same filters, so a patch that changes a filtered
// column returns fewer rows than it touched.
func (s *SQLStore) Update(ctx context.Context, table string, filters []Filter, patch any, dest any) error {
	tbl, err := quoteIdent(table)
	if err != nil {
		return err
	}
	records, err := toRecords(patch)
	if err != nil {
		return err
	}
	if len(records) != 1 || len(records[0]) == 0 {
		return errors.New("backend: update needs exactly one non-empty patch")
	}
	cols := sortedKeys(records[0])
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		q, err := quoteIdent(col)
		if err != nil {
			return err
		}
		sets = append(sets, q+" = ?")
		args = append(args, sqlArg(records[0][col]))
	}
	where, wargs, err := buildWhere(filters)
	if err != nil {
		return err
	}
	stmt := "UPDATE " + tbl + " SET " + strings.Join(sets, ", ") + where
	if _, err := s.db.ExecContext(ctx, stmt, append(args, wargs...)...); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	_, err = s.Select(ctx, Query{Table: table, Columns: "*", Filters: filters}, dest)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, table string, filters []Filter) error {
	tbl, err := quoteIdent(table)
	if err != nil {
		return err
	}
	where, args, err := buildWhere(filters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM "+tbl+where, args...)
	return err
}

func (s *SQLStore) Call(ctx context.Context, fn string, args any, dest any) error {
	s.mu.RLock()
	proc, ok := s.procs[fn]
	s.mu.RUnlock()
	if !ok {
		return &APIError{Status: 404, Code: "PGRST202", Message: fmt.Sprintf("function %s not found", fn)}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode rpc args: %w", err)
	}
	out, err := proc(ctx, s.db, raw)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (s *SQLStore) query(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]map[string]any, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(types))
		for i, ct := range types {
			rec[ct.Name()] = jsonValue(vals[i], ct.DatabaseTypeName())
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// jsonValue maps a scanned MySQL value onto what the hosted API would
// return for the same column.
func jsonValue(v any, dbType string) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		if strings.EqualFold(dbType, "TINYINT") {
			return t != 0
		}
		return t
	case time.Time:
		return t.UTC()
	default:
		return t
	}
}

func decodeInto(records []map[string]any, dest any) error {
	if dest == nil {
		return nil
	}
	if records == nil {
		records = []map[string]any{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// toRecords turns a struct, map or slice of either into column maps using
// the JSON encoding of the value.
func toRecords(v any) ([]map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var many []map[string]any
		if err := dec.Decode(&many); err != nil {
			return nil, fmt.Errorf("rows must be objects: %w", err)
		}
		return many, nil
	}
	var one map[string]any
	if err := dec.Decode(&one); err != nil {
		return nil, fmt.Errorf("row must be an object: %w", err)
	}
	return []map[string]any{one}, nil
}

// sqlArg converts a JSON-decoded value into a driver argument.
func sqlArg(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case string:
		if len(t) > len("2006-01-02") && t[10] == 'T' {
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return ts.UTC()
			}
		}
		return t
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	case fmt.Stringer:
		return t.String()
	default:
		return t
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(tbl string, rec map[string]any) (string, []any, error) {
	cols := sortedKeys(rec)
	quoted := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		q, err := quoteIdent(col)
		if err != nil {
			return "", nil, err
		}
		quoted = append(quoted, q)
		args = append(args, sqlArg(rec[col]))
	}
	stmt := "INSERT INTO " + tbl + " (" + strings.Join(quoted, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	return stmt, args, nil
}

func buildColumns(cols string) (string, error) {
	cols = strings.TrimSpace(cols)
	if cols == "" || cols == "*" {
		return "*", nil
	}
	parts := strings.Split(cols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		q, err := quoteIdent(strings.TrimSpace(p))
		if err != nil {
			return "", err
		}
		out = append(out, q)
	}
	return strings.Join(out, ", "), nil
}

func buildSelect(q Query) (string, []any, error) {
	tbl, err := quoteIdent(q.Table)
	if err != nil {
		return "", nil, err
	}
	cols, err := buildColumns(q.Columns)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("SELECT " + cols + " FROM " + tbl + where)
	if len(q.Orders) > 0 {
		terms := make([]string, 0, len(q.Orders))
		for _, o := range q.Orders {
			col, err := quoteIdent(o.Column)
			if err != nil {
				return "", nil, err
			}
			dir := " ASC"
			if o.Descending {
				dir = " DESC"
			}
			terms = append(terms, col+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		// MySQL has no OFFSET without LIMIT
		b.WriteString(" LIMIT 18446744073709551615 OFFSET ?")
		args = append(args, q.Offset)
	}
	return b.String(), args, nil
}

func buildCount(q Query) (string, []any, error) {
	tbl, err := quoteIdent(q.Table)
	if err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + tbl + where, args, nil
}

func buildWhere(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := []any{}
	for _, f := range filters {
		cond, a, err := buildCond(f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, a...)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// buildCond renders one filter with its bound arguments.
func buildCond(f Filter) (string, []any, error) {
	if f.Op == OpOr {
		subs, ok := f.Value.([]Filter)
		if !ok || len(subs) == 0 {
			return "", nil, errors.New("backend: or filter needs at least one term")
		}
		conds := make([]string, 0, len(subs))
		args := []any{}
		for _, sub := range subs {
			cond, a, err := buildCond(sub)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
			args = append(args, a...)
		}
		return "(" + strings.Join(conds, " OR ") + ")", args, nil
	}

	col, err := quoteIdent(f.Column)
	if err != nil {
		return "", nil, err
	}
	arg := []any{sqlArg(f.Value)}
	switch f.Op {
	case OpEq:
		return col + " = ?", arg, nil
	case OpNeq:
		return col + " <> ?", arg, nil
	case OpGt:
		return col + " > ?", arg, nil
	case OpGte:
		return col + " >= ?", arg, nil
	case OpLt:
		return col + " < ?", arg, nil
	case OpLte:
		return col + " <= ?", arg, nil
	case OpLike:
		return col + " LIKE BINARY ?", arg, nil
	case OpILike:
		return "LOWER(" + col + ") LIKE LOWER(?)", arg, nil
	case OpIs:
		switch v := f.Value.(type) {
		case nil:
			return col + " IS NULL", nil, nil
		case bool:
			if v {
				return col + " IS TRUE", nil, nil
			}
			return col + " IS FALSE", nil, nil
		default:
			return "", nil, fmt.Errorf("backend: is filter needs nil or bool, got %T", f.Value)
		}
	case OpIn:
		items := sliceValues(f.Value)
		if len(items) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]any, 0, len(items))
		for _, it := range items {
			args = append(args, sqlArg(it))
		}
		return col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ") + ")", args, nil
	default:
		return "", nil, fmt.Errorf("backend: unsupported operator %q", f.Op)
	}
}
