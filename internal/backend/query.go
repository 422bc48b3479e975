package backend

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Op is a filter operator understood by every RowStore.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIs    Op = "is"
	OpIn    Op = "in"
	OpOr    Op = "or"
)

// Filter is one column predicate.  For OpIs the value is nil, true or
// false; for OpIn it is a slice.  OpOr has no column and its value is a
// []Filter of which at least one must match.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Descending bool
}

// Query is a fully built SELECT.
type Query struct {
	Table   string
	Columns string
	Filters []Filter
	Orders  []Order
	Offset  int
	Limit   int // 0 means no limit
	Count   bool
}

// RowStore executes row operations.  RESTStore speaks the hosted wire
// format; SQLStore runs them against MySQL.
type RowStore interface {
	// Select decodes matching rows into dest (a pointer to a slice) and
	// returns the exact match count when q.Count is set, -1 otherwise.
	Select(ctx context.Context, q Query, dest any) (int, error)
	// Insert writes one row (struct or map) or a slice of rows.  When dest
	// is non-nil the stored rows are decoded into it.
	Insert(ctx context.Context, table string, rows any, dest any) error
	Update(ctx context.Context, table string, filters []Filter, patch any, dest any) error
	Delete(ctx context.Context, table string, filters []Filter) error
	Call(ctx context.Context, fn string, args any, dest any) error
}

// Table is the entry point of the query builder returned by Client.From.
type Table struct {
	c    *Client
	name string
}

// Select starts a read.  columns is "*" or a comma-separated list.
func (t *Table) Select(columns string) *SelectQuery {
	if strings.TrimSpace(columns) == "" {
		columns = "*"
	}
	return &SelectQuery{c: t.c, q: Query{Table: t.name, Columns: columns}}
}

// Insert starts a write of one row or a slice of rows.
func (t *Table) Insert(rows any) *Mutation {
	return &Mutation{c: t.c, kind: mutationInsert, table: t.name, payload: rows}
}

// Update starts a partial update; at least one filter must follow.
func (t *Table) Update(patch any) *Mutation {
	return &Mutation{c: t.c, kind: mutationUpdate, table: t.name, payload: patch}
}

// Delete starts a delete; at least one filter must follow.
func (t *Table) Delete() *Mutation {
	return &Mutation{c: t.c, kind: mutationDelete, table: t.name}
}

// SelectQuery accumulates filters, ordering and range for a read.
type SelectQuery struct {
	c *Client
	q Query
}

func (s *SelectQuery) where(col string, op Op, v any) *SelectQuery {
	s.q.Filters = append(s.q.Filters, Filter{Column: col, Op: op, Value: v})
	return s
}

func (s *SelectQuery) Eq(col string, v any) *SelectQuery  { return s.where(col, OpEq, v) }
func (s *SelectQuery) Neq(col string, v any) *SelectQuery { return s.where(col, OpNeq, v) }
func (s *SelectQuery) Gt(col string, v any) *SelectQuery  { return s.where(col, OpGt, v) }
func (s *SelectQuery) Gte(col string, v any) *SelectQuery { return s.where(col, OpGte, v) }
func (s *SelectQuery) Lt(col string, v any) *SelectQuery  { return s.where(col, OpLt, v) }
func (s *SelectQuery) Lte(col string, v any) *SelectQuery { return s.where(col, OpLte, v) }

// Like matches a case-sensitive pattern using % as wildcard.
func (s *SelectQuery) Like(col, pattern string) *SelectQuery { return s.where(col, OpLike, pattern) }

// ILike matches a case-insensitive pattern using % as wildcard.
func (s *SelectQuery) ILike(col, pattern string) *SelectQuery { return s.where(col, OpILike, pattern) }

// Is compares against null (nil), true or false.
func (s *SelectQuery) Is(col string, v any) *SelectQuery { return s.where(col, OpIs, v) }

func (s *SelectQuery) In(col string, values []string) *SelectQuery { return s.where(col, OpIn, values) }

// Or matches rows satisfying any of filters.
func (s *SelectQuery) Or(filters ...Filter) *SelectQuery { return s.where("", OpOr, filters) }

// Order appends an ordering term.
func (s *SelectQuery) Order(col string, ascending bool) *SelectQuery {
	s.q.Orders = append(s.q.Orders, Order{Column: col, Descending: !ascending})
	return s
}

// Range limits the result to rows from..to inclusive (0-based).
func (s *SelectQuery) Range(from, to int) *SelectQuery {
	if from < 0 {
		from = 0
	}
	if to < from {
		to = from
	}
	s.q.Offset = from
	s.q.Limit = to - from + 1
	return s
}

// Limit caps the number of rows returned.
func (s *SelectQuery) Limit(n int) *SelectQuery {
	s.q.Limit = n
	return s
}

// Count asks for the exact number of matching rows, ignoring the range.
func (s *SelectQuery) Count() *SelectQuery {
	s.q.Count = true
	return s
}

// Query exposes the built query, mainly for tests.
func (s *SelectQuery) Query() Query { return s.q }

// Execute runs the query and decodes rows into dest (pointer to slice).
// The returned count is -1 unless Count was requested.
func (s *SelectQuery) Execute(ctx context.Context, dest any) (int, error) {
	if strings.TrimSpace(s.q.Table) == "" {
		return -1, errors.New("backend: table name is required")
	}
	return s.c.rows.Select(ctx, s.q, dest)
}

// Single runs the query expecting exactly one row and decodes it into dest.
func (s *SelectQuery) Single(ctx context.Context, dest any) error {
	q := *s
	q.q.Limit = 2
	q.q.Count = false
	var rows []json.RawMessage
	if _, err := q.Execute(ctx, &rows); err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return ErrNoRows
	case 1:
		return json.Unmarshal(rows[0], dest)
	default:
		return ErrMultipleRows
	}
}

type mutationKind int

const (
	mutationInsert mutationKind = iota
	mutationUpdate
	mutationDelete
)

// Mutation is a pending insert, update or delete.
type Mutation struct {
	c       *Client
	kind    mutationKind
	table   string
	payload any
	filters []Filter
}

func (m *Mutation) where(col string, op Op, v any) *Mutation {
	m.filters = append(m.filters, Filter{Column: col, Op: op, Value: v})
	return m
}

func (m *Mutation) Eq(col string, v any) *Mutation           { return m.where(col, OpEq, v) }
func (m *Mutation) Neq(col string, v any) *Mutation          { return m.where(col, OpNeq, v) }
func (m *Mutation) Lt(col string, v any) *Mutation           { return m.where(col, OpLt, v) }
func (m *Mutation) Is(col string, v any) *Mutation           { return m.where(col, OpIs, v) }
func (m *Mutation) In(col string, values []string) *Mutation { return m.where(col, OpIn, values) }

// Execute runs the mutation.  When dest is non-nil the affected rows are
// decoded into it (pointer to slice).
func (m *Mutation) Execute(ctx context.Context, dest any) error {
	if strings.TrimSpace(m.table) == "" {
		return errors.New("backend: table name is required")
	}
	switch m.kind {
	case mutationInsert:
		if m.payload == nil {
			return errors.New("backend: nothing to insert")
		}
		return m.c.rows.Insert(ctx, m.table, m.payload, dest)
	case mutationUpdate:
		if len(m.filters) == 0 {
			return ErrUnfilteredMutation
		}
		return m.c.rows.Update(ctx, m.table, m.filters, m.payload, dest)
	default:
		if len(m.filters) == 0 {
			return ErrUnfilteredMutation
		}
		return m.c.rows.Delete(ctx, m.table, m.filters)
	}
}
