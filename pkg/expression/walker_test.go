package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexuscrm/salescrm/pkg/query"
)

var dealColumns = map[string]bool{
	"title": true, "value": true, "stage": true, "probability": true,
	"expected_close_date": true, "closed_at": true, "contact_id": true,
}

func TestToSQL(t *testing.T) {
	tests := []struct {
		name         string
		expression   string
		dialect      query.Dialect
		expectedSQL  string
		expectedArgs []interface{}
		expectError  bool
	}{
		{
			name:         "simple equality",
			expression:   "value == 1000",
			expectedSQL:  "(deals.value = ?)",
			expectedArgs: []interface{}{1000},
		},
		{
			name:         "string literal",
			expression:   "stage == 'closed_won'",
			expectedSQL:  "(deals.stage = ?)",
			expectedArgs: []interface{}{"closed_won"},
		},
		{
			name:         "logical AND",
			expression:   "value > 1000 && stage == 'proposal'",
			expectedSQL:  "((deals.value > ?) AND (deals.stage = ?))",
			expectedArgs: []interface{}{1000, "proposal"},
		},
		{
			name:         "lowercase and keyword",
			expression:   "value > 1000 and probability >= 50",
			expectedSQL:  "((deals.value > ?) AND (deals.probability >= ?))",
			expectedArgs: []interface{}{1000, 50},
		},
		{
			name:         "mixed logic",
			expression:   "(value > 1000 || probability > 0.5) && stage != 'closed_lost'",
			expectedSQL:  "(((deals.value > ?) OR (deals.probability > ?)) AND (deals.stage != ?))",
			expectedArgs: []interface{}{1000, 0.5, "closed_lost"},
		},
		{
			name:         "in list",
			expression:   "stage in ['lead', 'qualified']",
			expectedSQL:  "(deals.stage IN (?, ?))",
			expectedArgs: []interface{}{"lead", "qualified"},
		},
		{
			name:         "negation",
			expression:   "!(stage == 'lead')",
			expectedSQL:  "(NOT (deals.stage = ?))",
			expectedArgs: []interface{}{"lead"},
		},
		{
			name:         "function LOWER",
			expression:   "LOWER(title) == 'renewal'",
			expectedSQL:  "(LOWER(deals.title) = ?)",
			expectedArgs: []interface{}{"renewal"},
		},
		{
			name:         "function LEN on sqlite",
			expression:   "LEN(title) > 5",
			dialect:      query.DialectSQLite,
			expectedSQL:  "(LENGTH(deals.title) > ?)",
			expectedArgs: []interface{}{5},
		},
		{
			name:         "function IF",
			expression:   "IF(value > 1000, 'big', 'small') == 'big'",
			expectedSQL:  "((CASE WHEN (deals.value > ?) THEN ? ELSE ? END) = ?)",
			expectedArgs: []interface{}{1000, "big", "small", "big"},
		},
		{
			name:         "function TODAY",
			expression:   "expected_close_date < TODAY()",
			expectedSQL:  "(deals.expected_close_date < CURRENT_DATE)",
			expectedArgs: []interface{}{},
		},
		{
			name:         "DATE_ADD on mysql",
			expression:   "expected_close_date < DATE_ADD(TODAY(), 30)",
			dialect:      query.DialectMySQL,
			expectedSQL:  "(deals.expected_close_date < DATE_ADD(CURRENT_DATE, INTERVAL ? DAY))",
			expectedArgs: []interface{}{30},
		},
		{
			name:         "DATE_ADD on postgres",
			expression:   "expected_close_date < DATE_ADD(TODAY(), 30)",
			dialect:      query.DialectPostgres,
			expectedSQL:  "(deals.expected_close_date < (CURRENT_DATE + ? * INTERVAL '1 day'))",
			expectedArgs: []interface{}{30},
		},
		{
			name:         "CONTAINS is case insensitive",
			expression:   "CONTAINS(title, 'Renewal')",
			expectedSQL:  "(LOWER(deals.title) LIKE ?)",
			expectedArgs: []interface{}{"%renewal%"},
		},
		{
			name:         "null comparison IS NULL",
			expression:   "closed_at == null",
			expectedSQL:  "(deals.closed_at IS NULL)",
			expectedArgs: []interface{}{},
		},
		{
			name:         "null comparison combined",
			expression:   "stage == 'lead' && contact_id != nil",
			expectedSQL:  "((deals.stage = ?) AND (deals.contact_id IS NOT NULL))",
			expectedArgs: []interface{}{"lead"},
		},
		{
			name:        "unknown column",
			expression:  "user_id == 'someone-else'",
			expectError: true,
		},
		{
			name:        "uppercase AND keyword",
			expression:  "stage == 'lead' AND value > 1",
			expectError: true,
		},
		{
			name:        "unsupported node",
			expression:  "map(items, {.value})",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialect := tt.dialect
			if dialect == "" {
				dialect = query.DialectPostgres
			}
			sql, args, err := ToSQL(tt.expression, SQLOptions{Table: "deals", Columns: dealColumns, Dialect: dialect})
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedSQL, sql)
				assert.Equal(t, tt.expectedArgs, args)
			}
		})
	}
}
