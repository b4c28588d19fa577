package query

import (
	"fmt"
	"strings"
)

// ParseFieldCondition parses a search term of the form "field op value"
// (for example "stage = proposal" or "value > 1000") into a SQL condition.
// Only columns present in allowed are accepted. It returns false when the
// term is free text and should be matched with LIKE instead.
func ParseFieldCondition(term, table string, allowed map[string]bool) (string, []interface{}, bool) {
	// multi-char operators first
	operators := []struct {
		symbol string
		sqlOp  string
	}{
		{"!=", "!="}, {"<>", "!="}, {">=", ">="}, {"<=", "<="},
		{"=", "="}, {">", ">"}, {"<", "<"},
	}

	for _, op := range operators {
		idx := strings.Index(term, op.symbol)
		if idx <= 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(term[:idx]))
		value := strings.Trim(strings.TrimSpace(term[idx+len(op.symbol):]), `"'`)
		if field == "" || value == "" {
			continue
		}
		for _, c := range field {
			if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
				return "", nil, false
			}
		}
		if !allowed[field] {
			return "", nil, false
		}
		return fmt.Sprintf("%s.%s %s ?", table, field, op.sqlOp), []interface{}{value}, true
	}

	return "", nil, false
}

// LikePattern lowercases term and wraps it for a LOWER(col) LIKE ? match.
// LIKE wildcards in the input are escaped with a backslash.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
