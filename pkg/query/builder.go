package query

import (
	"fmt"
	"sort"
	"strings"
)

// QueryType represents the type of SQL query
type QueryType string

const (
	QueryTypeSelect QueryType = "SELECT"
	QueryTypeInsert QueryType = "INSERT"
	QueryTypeUpdate QueryType = "UPDATE"
	QueryTypeDelete QueryType = "DELETE"
)

// QueryResult represents the built SQL query and parameters.
// SQL uses '?' placeholders; pass it through Dialect.Rebind before executing.
type QueryResult struct {
	SQL    string
	Params []interface{}
}

// Builder is a fluent SQL query builder
type Builder struct {
	queryType    QueryType
	table        string
	alias        string
	fields       []string
	joins        []string
	whereClauses []string
	params       []interface{}
	orderBy      []string
	limit        *int
	offset       *int
	values       map[string]interface{}
}

// From creates a new SELECT query builder
func From(table string) *Builder {
	return &Builder{
		queryType: QueryTypeSelect,
		table:     table,
	}
}

// Insert creates a new INSERT query builder
func Insert(table string, data map[string]interface{}) *Builder {
	return &Builder{
		queryType: QueryTypeInsert,
		table:     table,
		values:    data,
	}
}

// Update creates a new UPDATE query builder
func Update(table string) *Builder {
	return &Builder{
		queryType: QueryTypeUpdate,
		table:     table,
		values:    make(map[string]interface{}),
	}
}

// Delete creates a new DELETE query builder
func Delete(table string) *Builder {
	return &Builder{
		queryType: QueryTypeDelete,
		table:     table,
	}
}

// qualify prefixes a bare column with the table name.
func (b *Builder) qualify(field string) string {
	if strings.ContainsAny(field, ".( ") || field == "*" {
		return field
	}
	return b.table + "." + field
}

// Select specifies which fields to select
func (b *Builder) Select(fields ...string) *Builder {
	if b.queryType != QueryTypeSelect {
		return b
	}
	for _, field := range fields {
		b.fields = append(b.fields, b.qualify(field))
	}
	return b
}

// SelectRaw adds a raw select expression with an optional alias
func (b *Builder) SelectRaw(expression string, alias ...string) *Builder {
	if b.queryType != QueryTypeSelect {
		return b
	}
	if len(alias) > 0 && alias[0] != "" {
		b.fields = append(b.fields, fmt.Sprintf("%s AS %s", expression, alias[0]))
	} else {
		b.fields = append(b.fields, expression)
	}
	return b
}

// Join adds a JOIN clause
func (b *Builder) Join(joinType string, table string, alias string, on string) *Builder {
	if b.queryType != QueryTypeSelect {
		return b
	}
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s %s ON %s", joinType, table, alias, on))
	return b
}

// Where adds a WHERE condition
func (b *Builder) Where(condition string, value ...interface{}) *Builder {
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, value...)
	return b
}

// OwnedBy scopes the query to rows owned by userID.
func (b *Builder) OwnedBy(userID string) *Builder {
	return b.Where(b.qualify("user_id")+" = ?", userID)
}

// Set sets values for UPDATE query
func (b *Builder) Set(data map[string]interface{}) *Builder {
	if b.queryType != QueryTypeUpdate {
		return b
	}
	for k, v := range data {
		b.values[k] = v
	}
	return b
}

// OrderBy appends an ORDER BY term
func (b *Builder) OrderBy(field string, direction string) *Builder {
	if b.queryType != QueryTypeSelect {
		return b
	}
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", b.qualify(field), dir))
	return b
}

// Limit adds LIMIT clause
func (b *Builder) Limit(n int) *Builder {
	if b.queryType != QueryTypeSelect || n <= 0 {
		return b
	}
	b.limit = &n
	return b
}

// Offset adds OFFSET clause. Ignored without a limit.
func (b *Builder) Offset(n int) *Builder {
	if b.queryType != QueryTypeSelect || n <= 0 {
		return b
	}
	b.offset = &n
	return b
}

// Build constructs the final SQL query
func (b *Builder) Build() QueryResult {
	var sql string
	var params []interface{}

	switch b.queryType {
	case QueryTypeSelect:
		sql = b.buildSelect()
		params = b.params
	case QueryTypeInsert:
		sql, params = b.buildInsert()
	case QueryTypeUpdate:
		sql, params = b.buildUpdate()
	case QueryTypeDelete:
		sql = b.buildDelete()
		params = b.params
	}

	return QueryResult{SQL: sql, Params: params}
}

func (b *Builder) buildSelect() string {
	var parts []string

	fields := "*"
	if len(b.fields) > 0 {
		fields = strings.Join(b.fields, ", ")
	}
	parts = append(parts, fmt.Sprintf("SELECT %s FROM %s", fields, b.table))

	if len(b.joins) > 0 {
		parts = append(parts, strings.Join(b.joins, " "))
	}
	if len(b.whereClauses) > 0 {
		parts = append(parts, "WHERE "+strings.Join(b.whereClauses, " AND "))
	}
	if len(b.orderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(b.orderBy, ", "))
	}
	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *b.limit))
		if b.offset != nil {
			parts = append(parts, fmt.Sprintf("OFFSET %d", *b.offset))
		}
	}

	return strings.Join(parts, " ")
}

// sortedKeys keeps column order stable so generated SQL is deterministic.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Builder) buildInsert() (string, []interface{}) {
	keys := sortedKeys(b.values)
	placeholders := make([]string, len(keys))
	params := make([]interface{}, len(keys))
	for i, key := range keys {
		placeholders[i] = "?"
		params[i] = b.values[key]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.table,
		strings.Join(keys, ", "),
		strings.Join(placeholders, ", "))

	return sql, params
}

func (b *Builder) buildUpdate() (string, []interface{}) {
	keys := sortedKeys(b.values)
	setClauses := make([]string, len(keys))
	params := make([]interface{}, 0, len(keys)+len(b.params))
	for i, key := range keys {
		setClauses[i] = key + " = ?"
		params = append(params, b.values[key])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", b.table, strings.Join(setClauses, ", "))
	if len(b.whereClauses) > 0 {
		sql += " WHERE " + strings.Join(b.whereClauses, " AND ")
		params = append(params, b.params...)
	}

	return sql, params
}

func (b *Builder) buildDelete() string {
	sql := "DELETE FROM " + b.table
	if len(b.whereClauses) > 0 {
		sql += " WHERE " + strings.Join(b.whereClauses, " AND ")
	}
	return sql
}
