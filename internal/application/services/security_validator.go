package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expressions for parsed literals

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/schema"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
)

const (
	DefaultReportRows = 1000
	MaxReportRows     = 10000
	passwordColumn    = "password_hash"
)

// allowedFunctions are the scalar functions a report may call: string,
// date, math and null handling across the supported databases. Anything
// else is rejected, including functions that run SQL given as a string.
var allowedFunctions = map[string]bool{
	// string
	"concat": true, "concat_ws": true, "lower": true, "upper": true, "length": true,
	"char_length": true, "character_length": true, "substring": true, "substr": true,
	"trim": true, "ltrim": true, "rtrim": true, "replace": true, "left": true, "right": true,
	"lpad": true, "rpad": true, "locate": true, "position": true, "instr": true, "reverse": true,
	// null handling and conditionals
	"coalesce": true, "ifnull": true, "nullif": true, "if": true, "greatest": true, "least": true,
	// math
	"abs": true, "round": true, "floor": true, "ceil": true, "ceiling": true, "mod": true,
	"power": true, "pow": true, "sqrt": true, "sign": true, "truncate": true,
	// date
	"now": true, "current_date": true, "current_timestamp": true, "curdate": true,
	"date": true, "year": true, "month": true, "day": true, "dayofmonth": true, "week": true,
	"quarter": true, "hour": true, "extract": true, "date_format": true, "date_add": true,
	"date_sub": true, "datediff": true, "timestampdiff": true, "strftime": true,
	"julianday": true, "date_trunc": true, "date_part": true, "to_char": true,
	ast.DateLiteral: true, ast.TimeLiteral: true, ast.TimestampLiteral: true,
}

var allowedAggregates = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "group_concat": true,
}

var allowedWindowFunctions = map[string]bool{
	"row_number": true, "rank": true, "dense_rank": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
}

// restoreFlags render literals without MySQL charset introducers so the
// statement runs on Postgres and SQLite too.
const restoreFlags = format.RestoreStringSingleQuotes |
	format.RestoreKeyWordUppercase |
	format.RestoreStringWithoutCharset |
	format.RestoreSpacesAroundBinaryOperation

// ValidatedQuery is a report statement ready to execute.
type ValidatedQuery struct {
	SQL string
	// MaxRows is the number of rows to return. The statement may fetch one
	// more so truncation can be detected.
	MaxRows int
}

// SecurityValidator parses report SQL, enforces the read-only rules and
// rewrites it with owner predicates and a row cap.
type SecurityValidator struct {
	parser  *parser.Parser
	maxRows int
}

// NewSecurityValidator creates a SecurityValidator. maxRows caps every
// result; zero uses DefaultReportRows.
func NewSecurityValidator(maxRows int) *SecurityValidator {
	if maxRows <= 0 {
		maxRows = DefaultReportRows
	}
	if maxRows > MaxReportRows {
		maxRows = MaxReportRows
	}
	return &SecurityValidator{parser: parser.New(), maxRows: maxRows}
}

func reportError(format string, args ...interface{}) error {
	return apperrors.NewValidationError("sql", fmt.Sprintf(format, args...))
}

// ValidateAndRewrite checks sql and scopes it to the caller. Admins are not
// owner scoped.
func (v *SecurityValidator) ValidateAndRewrite(sql string, user *models.UserSession) (*ValidatedQuery, error) {
	stmtNodes, _, err := v.parser.Parse(sql, "", "")
	if err != nil {
		return nil, reportError("SQL parse error: %v", err)
	}
	if len(stmtNodes) != 1 {
		return nil, reportError("only single SQL statements are allowed")
	}

	selectStmt, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return nil, reportError("only SELECT statements are allowed in reports")
	}
	if selectStmt.With != nil {
		return nil, reportError("WITH clauses are not allowed")
	}
	if selectStmt.SelectIntoOpt != nil {
		return nil, reportError("SELECT INTO is not allowed")
	}
	if selectStmt.LockInfo != nil && selectStmt.LockInfo.LockType != ast.SelectLockNone {
		return nil, reportError("locking clauses are not allowed")
	}
	if selectStmt.From == nil || selectStmt.From.TableRefs == nil {
		return nil, reportError("a FROM clause is required")
	}

	sources, err := collectSources(selectStmt.From.TableRefs)
	if err != nil {
		return nil, err
	}

	visitor := newSecurityVisitor(selectStmt, sources)
	selectStmt.Accept(visitor)
	if visitor.err != nil {
		return nil, visitor.err
	}

	if !user.IsAdmin() {
		applyOwnerScope(selectStmt, sources, user.ID)
	}

	count, offset, err := v.limits(selectStmt.Limit)
	if err != nil {
		return nil, err
	}
	selectStmt.Limit = nil

	var sb strings.Builder
	restoreCtx := format.NewRestoreCtx(restoreFlags, &sb)
	if err := selectStmt.Restore(restoreCtx); err != nil {
		return nil, reportError("SQL restore error: %v", err)
	}

	q := &ValidatedQuery{MaxRows: count}
	fetch := count
	if count == v.maxRows {
		fetch = count + 1
	}
	sb.WriteString(" LIMIT " + strconv.Itoa(fetch))
	if offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(offset))
	}
	q.SQL = sb.String()
	return q, nil
}

// limits resolves the caller's LIMIT against the cap. A LIMIT below the cap
// is kept as is.
func (v *SecurityValidator) limits(l *ast.Limit) (count, offset int, err error) {
	count = v.maxRows
	if l == nil {
		return count, 0, nil
	}
	if l.Count != nil {
		n, err := intLiteral(l.Count)
		if err != nil {
			return 0, 0, err
		}
		if n < count {
			count = n
		}
	}
	if l.Offset != nil {
		if offset, err = intLiteral(l.Offset); err != nil {
			return 0, 0, err
		}
	}
	return count, offset, nil
}

func intLiteral(e ast.ExprNode) (int, error) {
	ve, ok := e.(ast.ValueExpr)
	if !ok {
		return 0, reportError("LIMIT and OFFSET must be integer literals")
	}
	switch n := ve.GetValue().(type) {
	case int64:
		if n >= 0 {
			return int(n), nil
		}
	case uint64:
		if n <= MaxReportRows*1000 {
			return int(n), nil
		}
	}
	return 0, reportError("LIMIT and OFFSET must be non-negative integers")
}

// tableSource is one table of the FROM clause.
type tableSource struct {
	table string
	// qualifier is the alias, or the table name when unaliased.
	qualifier string
	def       schema.TableDefinition
	source    *ast.TableSource
	// join is the join that has this table on its right side, if any.
	join *ast.Join
}

func collectSources(node ast.ResultSetNode) ([]tableSource, error) {
	var out []tableSource
	var walk func(n ast.ResultSetNode, parent *ast.Join) error
	walk = func(n ast.ResultSetNode, parent *ast.Join) error {
		switch t := n.(type) {
		case nil:
			return nil
		case *ast.Join:
			if err := walk(t.Left, nil); err != nil {
				return err
			}
			if t.Right == nil {
				return nil
			}
			return walk(t.Right, t)
		case *ast.TableSource:
			tn, ok := t.Source.(*ast.TableName)
			if !ok {
				return reportError("subqueries are not allowed")
			}
			if tn.Schema.O != "" {
				return reportError("schema-qualified table names are not allowed")
			}
			name := tn.Name.L
			def, ok := schema.Lookup(name)
			if !ok {
				return reportError("table %q is not available for reports", tn.Name.O)
			}
			qualifier := name
			if t.AsName.O != "" {
				qualifier = t.AsName.L
			}
			out = append(out, tableSource{table: name, qualifier: qualifier, def: def, source: t, join: parent})
			return nil
		default:
			return reportError("unsupported FROM clause")
		}
	}
	if err := walk(node, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// applyOwnerScope adds an owner predicate per table. Tables on the right of
// an inner or left ON join get it in the ON condition so outer joins keep
// their meaning. Every other table gets it in WHERE.
func applyOwnerScope(stmt *ast.SelectStmt, sources []tableSource, userID string) {
	for _, src := range sources {
		column := constants.FieldUserID
		if !constants.IsOwnedTable(src.table) {
			column = constants.FieldID
		}
		cond := &ast.BinaryOperationExpr{
			Op: opcode.EQ,
			L: &ast.ColumnNameExpr{Name: &ast.ColumnName{
				Table: ast.NewCIStr(src.qualifier),
				Name:  ast.NewCIStr(column),
			}},
			R: ast.NewValueExpr(userID, "", ""),
		}

		if j := src.join; j != nil && j.Tp != ast.RightJoin && j.Using == nil && !j.NaturalJoin && j.On != nil {
			j.On.Expr = and(j.On.Expr, cond)
			continue
		}
		stmt.Where = and(stmt.Where, cond)
	}
}

func and(left, right ast.ExprNode) ast.ExprNode {
	if left == nil {
		return right
	}
	return &ast.BinaryOperationExpr{
		Op: opcode.LogicAnd,
		L:  &ast.ParenthesesExpr{Expr: left},
		R:  right,
	}
}

// SecurityVisitor rejects nodes a report may not contain. Column
// references must name a declared column of a FROM table or a select alias.
type SecurityVisitor struct {
	root    *ast.SelectStmt
	sources []tableSource
	aliases map[string]bool
	err     error
}

func newSecurityVisitor(root *ast.SelectStmt, sources []tableSource) *SecurityVisitor {
	v := &SecurityVisitor{root: root, sources: sources, aliases: make(map[string]bool)}
	if root.Fields != nil {
		for _, f := range root.Fields.Fields {
			if f.AsName.L != "" {
				v.aliases[f.AsName.L] = true
			}
		}
	}
	return v
}

func (v *SecurityVisitor) fail(format string, args ...interface{}) {
	v.err = reportError(format, args...)
}

func (v *SecurityVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, true
	}

	switch n := in.(type) {
	case *ast.SelectStmt:
		if n != v.root {
			v.fail("subqueries are not allowed")
			return in, true
		}
	case *ast.SetOprStmt, *ast.SubqueryExpr:
		v.fail("subqueries are not allowed")
		return in, true
	case *ast.VariableExpr:
		v.fail("variables are not allowed")
		return in, true
	case ast.ParamMarkerExpr:
		v.fail("parameter markers are not allowed")
		return in, true
	case *ast.FuncCallExpr:
		if n.Schema.O != "" || !allowedFunctions[n.FnName.L] {
			v.fail("function %s is not allowed", n.FnName.O)
			return in, true
		}
	case *ast.AggregateFuncExpr:
		if !allowedAggregates[strings.ToLower(n.F)] {
			v.fail("function %s is not allowed", n.F)
			return in, true
		}
	case *ast.WindowFuncExpr:
		if !allowedWindowFunctions[strings.ToLower(n.Name)] {
			v.fail("function %s is not allowed", n.Name)
			return in, true
		}
	case *ast.ColumnName:
		if msg := v.checkColumn(n); msg != "" {
			v.fail("%s", msg)
			return in, true
		}
	case *ast.SelectField:
		if n.WildCard != nil && v.wildcardHitsProfiles(n.WildCard) {
			v.fail("select explicit columns from %s", constants.TableUserProfiles)
			return in, true
		}
	}
	return in, false
}

// checkColumn returns why n may not be referenced, or "" when it may.
func (v *SecurityVisitor) checkColumn(n *ast.ColumnName) string {
	if n.Schema.O != "" {
		return "schema-qualified column names are not allowed"
	}
	if n.Name.L == passwordColumn {
		return fmt.Sprintf("column %s is not selectable", n.Name.O)
	}
	if n.Table.O != "" {
		for _, src := range v.sources {
			if src.qualifier != n.Table.L {
				continue
			}
			if src.def.HasColumn(n.Name.L) {
				return ""
			}
			return fmt.Sprintf("unknown column %s.%s", n.Table.O, n.Name.O)
		}
		return fmt.Sprintf("unknown table %s", n.Table.O)
	}
	for _, src := range v.sources {
		if n.Name.L == src.qualifier || n.Name.L == src.table {
			return fmt.Sprintf("whole-row reference %s is not allowed", n.Name.O)
		}
	}
	if v.aliases[n.Name.L] {
		return ""
	}
	for _, src := range v.sources {
		if src.def.HasColumn(n.Name.L) {
			return ""
		}
	}
	return fmt.Sprintf("unknown column %s", n.Name.O)
}

func (v *SecurityVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}

// wildcardHitsProfiles reports whether * or t.* expands to user_profiles
// columns, which include the password hash.
func (v *SecurityVisitor) wildcardHitsProfiles(w *ast.WildCardField) bool {
	for _, src := range v.sources {
		if src.table != constants.TableUserProfiles {
			continue
		}
		if w.Table.O == "" || w.Table.L == src.qualifier {
			return true
		}
	}
	return false
}
