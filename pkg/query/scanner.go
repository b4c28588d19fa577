package query

import (
	"database/sql"
)

// Row is a generic column-name keyed result row.
type Row map[string]interface{}

// ScanRowsToMaps scans SQL rows into a slice of maps keyed by column name.
// []byte values are converted to strings so rows serialize as JSON text.
func ScanRowsToMaps(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		results = append(results, record)
	}

	return results, rows.Err()
}
