package persistence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nexuscrm/salescrm/internal/domain/schema"
	"github.com/nexuscrm/salescrm/pkg/query"
)

var validIdentifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// BuildTableDDL renders CREATE TABLE and CREATE INDEX statements for def.
// MySQL gets inline keys and table-level foreign keys; Postgres and SQLite
// get inline references and separate index statements.
func BuildTableDDL(dialect query.Dialect, def schema.TableDefinition) ([]string, error) {
	if !validIdentifier.MatchString(def.TableName) {
		return nil, fmt.Errorf("table name '%s' must be snake_case (lowercase, alphanumeric, underscores)", def.TableName)
	}

	var lines []string
	for _, col := range def.Columns {
		if err := ValidateColumnDefinition(col); err != nil {
			return nil, fmt.Errorf("invalid column definition for '%s.%s': %w", def.TableName, col.Name, err)
		}
		lines = append(lines, buildColumnDDL(dialect, col))
	}

	var stmts []string
	if dialect == query.DialectMySQL {
		for _, idx := range def.Indices {
			lines = append(lines, buildMySQLIndex(def.TableName, idx))
		}
		for _, col := range def.Columns {
			if col.ReferenceTo != "" {
				lines = append(lines, buildForeignKeyDDL(def.TableName, col))
			}
		}
	} else {
		for _, idx := range def.Indices {
			stmts = append(stmts, buildCreateIndex(def.TableName, idx))
		}
	}

	var ddl strings.Builder
	fmt.Fprintf(&ddl, "CREATE TABLE IF NOT EXISTS %s (\n  ", def.TableName)
	ddl.WriteString(strings.Join(lines, ",\n  "))
	ddl.WriteString("\n)")
	if dialect == query.DialectMySQL {
		ddl.WriteString(" ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci")
	}

	return append([]string{ddl.String()}, stmts...), nil
}

// ValidateColumnDefinition fails fast on definitions the DDL builder cannot render.
func ValidateColumnDefinition(col schema.ColumnDefinition) error {
	if !validIdentifier.MatchString(col.Name) {
		return fmt.Errorf("column name must be snake_case")
	}
	if col.Type == schema.TypeString && col.Size <= 0 {
		return fmt.Errorf("string column requires a size")
	}
	if col.PrimaryKey && col.Nullable {
		return fmt.Errorf("primary key cannot be nullable")
	}
	switch col.OnDelete {
	case "", "CASCADE", "SET NULL", "RESTRICT":
	default:
		return fmt.Errorf("unsupported ON DELETE action %q", col.OnDelete)
	}
	if col.OnDelete == "SET NULL" && !col.Nullable {
		return fmt.Errorf("ON DELETE SET NULL requires a nullable column")
	}
	return nil
}

func sqlType(dialect query.Dialect, col schema.ColumnDefinition) string {
	switch col.Type {
	case schema.TypeID:
		if dialect == query.DialectSQLite {
			return "TEXT"
		}
		return "VARCHAR(36)"
	case schema.TypeString:
		if dialect == query.DialectSQLite {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", col.Size)
	case schema.TypeMoney:
		switch dialect {
		case query.DialectPostgres:
			return "NUMERIC(15,2)"
		case query.DialectMySQL:
			return "DECIMAL(15,2)"
		}
		return "REAL"
	case schema.TypeInt:
		if dialect == query.DialectMySQL {
			return "INT"
		}
		return "INTEGER"
	case schema.TypeBigInt:
		if dialect == query.DialectSQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeTimestamp:
		switch dialect {
		case query.DialectPostgres:
			return "TIMESTAMPTZ"
		case query.DialectMySQL:
			return "DATETIME(6)"
		}
		return "TIMESTAMP"
	}
	return "TEXT"
}

func buildColumnDDL(dialect query.Dialect, col schema.ColumnDefinition) string {
	parts := []string{col.Name, sqlType(dialect, col)}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+col.Default)
	}
	if len(col.Options) > 0 {
		quoted := make([]string, len(col.Options))
		for i, o := range col.Options {
			quoted[i] = "'" + strings.ReplaceAll(o, "'", "''") + "'"
		}
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))", col.Name, strings.Join(quoted, ", ")))
	}
	if col.ReferenceTo != "" && dialect != query.DialectMySQL {
		parts = append(parts, referenceClause(col))
	}
	return strings.Join(parts, " ")
}

func referenceClause(col schema.ColumnDefinition) string {
	ref := fmt.Sprintf("REFERENCES %s(id)", col.ReferenceTo)
	if col.OnDelete != "" {
		ref += " ON DELETE " + col.OnDelete
	}
	return ref
}

func buildForeignKeyDDL(table string, col schema.ColumnDefinition) string {
	return fmt.Sprintf("CONSTRAINT fk_%s_%s FOREIGN KEY (%s) %s", table, col.Name, col.Name, referenceClause(col))
}

func indexName(table string, idx schema.IndexDefinition) string {
	if idx.Name != "" {
		return idx.Name
	}
	return "idx_" + table + "_" + strings.Join(idx.Columns, "_")
}

func buildMySQLIndex(table string, idx schema.IndexDefinition) string {
	kind := "KEY"
	if idx.Unique {
		kind = "UNIQUE KEY"
	}
	return fmt.Sprintf("%s %s (%s)", kind, indexName(table, idx), strings.Join(idx.Columns, ", "))
}

func buildCreateIndex(table string, idx schema.IndexDefinition) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, indexName(table, idx), table, strings.Join(idx.Columns, ", "))
}
