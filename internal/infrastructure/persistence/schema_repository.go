package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/schema"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/query"
)

// SchemaRepository creates and clears the CRM tables.
type SchemaRepository struct {
	conn *database.Connection
}

// NewSchemaRepository creates a new SchemaRepository
func NewSchemaRepository(conn *database.Connection) *SchemaRepository {
	return &SchemaRepository{conn: conn}
}

// Migrate creates every CRM table and index that does not exist yet.
// Statements are idempotent so Migrate can run on every start.
func (r *SchemaRepository) Migrate(ctx context.Context) error {
	dialect := r.conn.Dialect()
	for _, def := range schema.CRMTables() {
		stmts, err := BuildTableDDL(dialect, def)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := r.conn.DB().ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create table %s: %w", def.TableName, err)
			}
		}
		zap.L().Debug("table ready", zap.String("table", def.TableName), zap.String("dialect", string(dialect)))
	}
	zap.L().Info("schema migrated", zap.Int("tables", len(constants.CRMTables)))
	return nil
}

// Wipe deletes all rows from the CRM tables, children first. Tables are kept.
func (r *SchemaRepository) Wipe(ctx context.Context) error {
	tables := constants.CRMTables
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := r.conn.DB().ExecContext(ctx, "DELETE FROM "+tables[i]); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", tables[i], err)
		}
	}
	zap.L().Warn("all CRM rows deleted", zap.Int("tables", len(tables)))
	return nil
}

// DropAll drops the CRM tables, children first.
func (r *SchemaRepository) DropAll(ctx context.Context) error {
	tables := constants.CRMTables
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := r.conn.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i]); err != nil {
			return fmt.Errorf("failed to drop %s: %w", tables[i], err)
		}
	}
	return nil
}

// TableCounts returns the row count of every CRM table.
func (r *SchemaRepository) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(constants.CRMTables))
	for _, table := range constants.CRMTables {
		q := query.From(table).SelectRaw("COUNT(*)").Build()
		var n int
		if err := r.conn.QueryRowContext(ctx, q.SQL, q.Params...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
