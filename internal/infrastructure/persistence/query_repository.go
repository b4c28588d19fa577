package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

// QueryRepository handles read-only queries that span tables: global
// search and validated ad-hoc reports.
type QueryRepository struct {
	*RecordRepository
}

// NewQueryRepository creates a new QueryRepository
func NewQueryRepository(base *RecordRepository) *QueryRepository {
	return &QueryRepository{RecordRepository: base}
}

type searchTarget struct {
	table    string
	title    string
	subtitle string
	columns  []string
}

var searchTargets = []searchTarget{
	{
		table:    constants.TableContacts,
		title:    "first_name || ' ' || last_name",
		subtitle: "email",
		columns:  []string{"first_name", "last_name", "email", "job_title"},
	},
	{
		table:    constants.TableCompanies,
		title:    "name",
		subtitle: "industry",
		columns:  []string{"name", "industry", "website"},
	},
	{
		table:    constants.TableDeals,
		title:    "title",
		subtitle: "stage",
		columns:  []string{"title", "description"},
	},
}

// titleExpr renders a title expression for the dialect. MySQL treats || as OR.
func (r *QueryRepository) titleExpr(expr string) string {
	if r.Dialect() == query.DialectMySQL && strings.Contains(expr, "||") {
		parts := strings.Split(expr, "||")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	}
	return expr
}

// Search matches term against contacts, companies and deals of the owner
// with LOWER(col) LIKE. limit applies per table.
func (r *QueryRepository) Search(ctx context.Context, userID, term string, limit int) ([]models.SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	hits := make([]models.SearchHit, 0)
	for _, target := range searchTargets {
		cond, args := r.Dialect().LikeAny(qualified(target.table, target.columns), term)
		q := query.From(target.table).
			Select(constants.FieldID).
			SelectRaw(r.titleExpr(target.title), "title").
			SelectRaw("COALESCE("+target.subtitle+", '')", "subtitle").
			OwnedBy(userID).
			Where(cond, args...).
			OrderBy(constants.FieldUpdatedAt, constants.SortDESC).
			Limit(limit).
			Build()

		rows, err := r.GetExecutor(ctx).QueryContext(ctx, q.SQL, q.Params...)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", target.table, err)
		}
		for rows.Next() {
			hit := models.SearchHit{Table: target.table}
			if err := rows.Scan(&hit.ID, &hit.Title, &hit.Subtitle); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s hit: %w", target.table, err)
			}
			hit.Title = strings.TrimSpace(hit.Title)
			hits = append(hits, hit)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return hits, nil
}

// ExecuteRawSQL runs a statement already validated and rewritten by the
// report validator inside a read-only transaction, returning at most
// maxRows rows.
func (r *QueryRepository) ExecuteRawSQL(ctx context.Context, statement string, maxRows int) (*models.ReportResult, error) {
	tx, err := r.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin report transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("raw query error: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	scanned, err := query.ScanRowsToMaps(rows)
	if err != nil {
		return nil, err
	}

	result := &models.ReportResult{SQL: statement, Columns: columns, Rows: make([]map[string]interface{}, 0, len(scanned))}
	for i, row := range scanned {
		if maxRows > 0 && i >= maxRows {
			result.Truncated = true
			break
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}
