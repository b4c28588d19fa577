package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/expression"
	"github.com/nexuscrm/salescrm/pkg/query"
)

// ErrNotFound is returned when no owned row matches.
var ErrNotFound = errors.New("record not found")

// Executor is satisfied by the connection and by a transaction carried in
// the context. SQL is written with '?' placeholders.
type Executor interface {
	QueryContext(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, q string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// RecordRepository holds the owner-scoped operations shared by every table
// repository. Every statement carries "user_id = ?" for the caller, the
// same predicate the hosted backend's row-level policies apply.
type RecordRepository struct {
	conn *database.Connection
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(conn *database.Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

// Dialect returns the connection dialect.
func (r *RecordRepository) Dialect() query.Dialect {
	return r.conn.Dialect()
}

// GetExecutor returns the transaction in ctx if present, or the connection.
func (r *RecordRepository) GetExecutor(ctx context.Context) Executor {
	if tx := ExtractTx(ctx); tx != nil {
		return &txExecutor{tx: tx, dialect: r.conn.Dialect()}
	}
	return r.conn
}

// Exists checks if an owned record exists by ID
func (r *RecordRepository) Exists(ctx context.Context, table, userID, id string) (bool, error) {
	q := query.From(table).
		Select(constants.FieldID).
		Where(table+".id = ?", id).
		OwnedBy(userID).
		Limit(1).
		Build()

	rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// Insert writes a row from column values.
func (r *RecordRepository) Insert(ctx context.Context, table string, values map[string]interface{}) error {
	q := query.Insert(table, values).Build()
	if _, err := r.GetExecutor(ctx).ExecContext(ctx, q.SQL, q.Params...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Update applies fields to an owned row. updated_at is stamped when the
// table has one. Returns ErrNotFound when no owned row matched.
func (r *RecordRepository) Update(ctx context.Context, table, userID, id string, fields map[string]interface{}, stampUpdatedAt bool) error {
	if len(fields) == 0 {
		return nil
	}
	if stampUpdatedAt {
		fields[constants.FieldUpdatedAt] = time.Now().UTC()
	}

	b := query.Update(table).Set(fields).Where("id = ?", id)
	if userID != "" {
		b = b.OwnedBy(userID)
	}
	q := b.Build()

	res, err := r.GetExecutor(ctx).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return requireAffected(res)
}

// Delete removes an owned row. Returns ErrNotFound when nothing matched.
func (r *RecordRepository) Delete(ctx context.Context, table, userID, id string) error {
	q := query.Delete(table).Where("id = ?", id).OwnedBy(userID).Build()
	res, err := r.GetExecutor(ctx).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return requireAffected(res)
}

// Count returns the number of owned rows matching an extra condition.
func (r *RecordRepository) Count(ctx context.Context, table, userID, cond string, args ...interface{}) (int, error) {
	b := query.From(table).SelectRaw("COUNT(*)").OwnedBy(userID)
	if cond != "" {
		b = b.Where(cond, args...)
	}
	q := b.Build()

	var n int
	if err := r.GetExecutor(ctx).QueryRowContext(ctx, q.SQL, q.Params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// listSpec describes how a table's list query may be shaped by callers.
type listSpec struct {
	table        string
	columns      map[string]bool
	searchCols   []string
	defaultOrder string
	defaultDir   string
}

// applyListOptions adds the filter expression, free-text search, ordering and
// paging from opts. Column names outside spec.columns are rejected.
func (r *RecordRepository) applyListOptions(b *query.Builder, spec listSpec, opts models.ListOptions) (*query.Builder, error) {
	dialect := r.conn.Dialect()

	if strings.TrimSpace(opts.Filter) != "" {
		cond, args, err := expression.ToSQL(opts.Filter, expression.SQLOptions{
			Table:   spec.table,
			Columns: spec.columns,
			Dialect: dialect,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		b = b.Where(cond, args...)
	}

	if term := strings.TrimSpace(opts.Search); term != "" {
		if cond, args, ok := query.ParseFieldCondition(term, spec.table, spec.columns); ok {
			b = b.Where(cond, args...)
		} else if len(spec.searchCols) > 0 {
			cols := make([]string, len(spec.searchCols))
			for i, c := range spec.searchCols {
				cols[i] = spec.table + "." + c
			}
			cond, args := dialect.LikeAny(cols, term)
			b = b.Where(cond, args...)
		}
	}

	order := spec.defaultOrder
	dir := spec.defaultDir
	if dir == "" {
		dir = constants.SortDESC
	}
	if opts.OrderBy != "" {
		if !spec.columns[opts.OrderBy] {
			return nil, fmt.Errorf("%w: cannot order by %q", ErrInvalidFilter, opts.OrderBy)
		}
		order = opts.OrderBy
	}
	switch {
	case strings.EqualFold(opts.OrderDir, constants.SortASC):
		dir = constants.SortASC
	case strings.EqualFold(opts.OrderDir, constants.SortDESC):
		dir = constants.SortDESC
	}
	b = b.OrderBy(spec.table+"."+order, dir)
	if order != constants.FieldID {
		// stable paging
		b = b.OrderBy(spec.table+".id", dir)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.DefaultMaxLimit {
		limit = constants.DefaultMaxLimit
	}
	return b.Limit(limit).Offset(opts.Offset), nil
}

// ErrInvalidFilter wraps filter, search and order errors caused by input.
var ErrInvalidFilter = errors.New("invalid list options")

func columnSet(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func qualified(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}

// nullableTime converts a scanned nullable time into a UTC pointer.
func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// nullable converts optional pointers into driver values.
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
