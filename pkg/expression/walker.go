package expression

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/nexuscrm/salescrm/pkg/query"
)

// SQLOptions controls how an expression is rendered into a WHERE clause.
type SQLOptions struct {
	// Table qualifies every identifier.
	Table string
	// Columns is the set of identifiers the expression may reference.
	Columns map[string]bool
	Dialect query.Dialect
}

// SQLWalker converts an expr AST to SQL
type SQLWalker struct {
	opts    SQLOptions
	builder strings.Builder
	args    []interface{}
	err     error
}

// isNilNode checks if a node represents a null/nil value
// In expr-lang, null can be either a NilNode or an IdentifierNode with value "null", "nil", or "NULL"
func isNilNode(node ast.Node) bool {
	if _, ok := node.(*ast.NilNode); ok {
		return true
	}
	if id, ok := node.(*ast.IdentifierNode); ok {
		val := strings.ToLower(id.Value)
		return val == "null" || val == "nil"
	}
	return false
}

// ToSQL converts a list filter such as `stage == 'proposal' && value > 1000`
// into a SQL condition with '?' placeholders.
func ToSQL(expression string, opts SQLOptions) (string, []interface{}, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	walker := &SQLWalker{
		opts: opts,
		args: make([]interface{}, 0),
	}
	walker.walk(&tree.Node)

	if walker.err != nil {
		return "", nil, walker.err
	}
	return walker.builder.String(), walker.args, nil
}

func (w *SQLWalker) placeholder(v interface{}) {
	w.builder.WriteString("?")
	w.args = append(w.args, v)
}

func (w *SQLWalker) walk(node *ast.Node) {
	if w.err != nil {
		return
	}
	if node == nil || *node == nil {
		return
	}

	switch v := (*node).(type) {
	case *ast.BinaryNode:
		w.visitBinary(v)
	case *ast.UnaryNode:
		w.visitUnary(v)
	case *ast.IdentifierNode:
		w.visitIdentifier(v)
	case *ast.IntegerNode:
		w.placeholder(v.Value)
	case *ast.FloatNode:
		w.placeholder(v.Value)
	case *ast.StringNode:
		w.placeholder(v.Value)
	case *ast.BoolNode:
		w.placeholder(w.opts.Dialect.BoolValue(v.Value))
	case *ast.NilNode:
		w.builder.WriteString("NULL")
	case *ast.CallNode:
		w.visitCall(v)
	default:
		w.err = fmt.Errorf("unsupported node type: %T", *node)
	}
}

func (w *SQLWalker) visitIdentifier(node *ast.IdentifierNode) {
	name := strings.ToLower(node.Value)
	if w.opts.Columns != nil && !w.opts.Columns[name] {
		w.err = fmt.Errorf("unknown field: %s", node.Value)
		return
	}
	if w.opts.Table != "" {
		w.builder.WriteString(w.opts.Table + ".")
	}
	w.builder.WriteString(name)
}

func (w *SQLWalker) visitUnary(node *ast.UnaryNode) {
	switch node.Operator {
	case "!", "not":
		w.builder.WriteString("(NOT ")
		w.walk(&node.Node)
		w.builder.WriteString(")")
	case "-":
		w.builder.WriteString("-")
		w.walk(&node.Node)
	default:
		w.err = fmt.Errorf("unsupported unary operator: %s", node.Operator)
	}
}

var sqlOperators = map[string]string{
	"==":  "=",
	"!=":  "!=",
	"<":   "<",
	">":   ">",
	"<=":  "<=",
	">=":  ">=",
	"&&":  "AND",
	"and": "AND",
	"||":  "OR",
	"or":  "OR",
	"+":   "+",
	"-":   "-",
	"*":   "*",
	"/":   "/",
}

func (w *SQLWalker) visitBinary(node *ast.BinaryNode) {
	// Check for null comparisons which need special SQL syntax
	rightIsNil := isNilNode(node.Right)
	leftIsNil := isNilNode(node.Left)

	if rightIsNil || leftIsNil {
		fieldNode := node.Left
		if leftIsNil {
			fieldNode = node.Right
		}

		w.builder.WriteString("(")
		w.walk(&fieldNode)
		switch node.Operator {
		case "==":
			w.builder.WriteString(" IS NULL")
		case "!=":
			w.builder.WriteString(" IS NOT NULL")
		default:
			w.err = fmt.Errorf("unsupported operator for null comparison: %s", node.Operator)
		}
		w.builder.WriteString(")")
		return
	}

	if node.Operator == "in" {
		w.visitIn(node)
		return
	}

	op, ok := sqlOperators[node.Operator]
	if !ok {
		w.err = fmt.Errorf("unsupported operator: %s", node.Operator)
		return
	}

	w.builder.WriteString("(")
	w.walk(&node.Left)
	w.builder.WriteString(" " + op + " ")
	w.walk(&node.Right)
	w.builder.WriteString(")")
}

// stage in ['lead', 'qualified'] -> stage IN (?, ?)
func (w *SQLWalker) visitIn(node *ast.BinaryNode) {
	arr, ok := node.Right.(*ast.ArrayNode)
	if !ok {
		w.err = fmt.Errorf("right side of 'in' must be a list literal")
		return
	}
	if len(arr.Nodes) == 0 {
		w.builder.WriteString("(1 = 0)")
		return
	}

	w.builder.WriteString("(")
	w.walk(&node.Left)
	w.builder.WriteString(" IN (")
	w.walkArgs(arr.Nodes)
	w.builder.WriteString("))")
}

func (w *SQLWalker) visitCall(node *ast.CallNode) {
	callee, ok := node.Callee.(*ast.IdentifierNode)
	if !ok {
		w.err = fmt.Errorf("unsupported callee type: %T", node.Callee)
		return
	}

	fnName := strings.ToUpper(callee.Value)

	switch fnName {
	case "UPPER", "LOWER":
		w.builder.WriteString(fnName + "(")
		w.walkArgs(node.Arguments)
		w.builder.WriteString(")")

	case "LEN":
		if w.opts.Dialect == query.DialectSQLite {
			w.builder.WriteString("LENGTH(")
		} else {
			w.builder.WriteString("CHAR_LENGTH(")
		}
		w.walkArgs(node.Arguments)
		w.builder.WriteString(")")

	case "IF":
		if len(node.Arguments) != 3 {
			w.err = fmt.Errorf("IF requires 3 arguments")
			return
		}
		w.builder.WriteString("(CASE WHEN ")
		w.walk(&node.Arguments[0])
		w.builder.WriteString(" THEN ")
		w.walk(&node.Arguments[1])
		w.builder.WriteString(" ELSE ")
		w.walk(&node.Arguments[2])
		w.builder.WriteString(" END)")

	case "TODAY":
		w.builder.WriteString("CURRENT_DATE")

	case "NOW":
		w.builder.WriteString("CURRENT_TIMESTAMP")

	case "DATE_ADD":
		if len(node.Arguments) != 2 {
			w.err = fmt.Errorf("DATE_ADD requires 2 arguments")
			return
		}
		w.visitDateAdd(node.Arguments[0], node.Arguments[1])

	case "CONTAINS", "STARTS_WITH", "ENDS_WITH":
		if len(node.Arguments) != 2 {
			w.err = fmt.Errorf("%s requires 2 arguments", fnName)
			return
		}
		strArg, ok := node.Arguments[1].(*ast.StringNode)
		if !ok {
			w.err = fmt.Errorf("%s second argument must be a string", fnName)
			return
		}
		pattern := strings.ToLower(strArg.Value)
		switch fnName {
		case "CONTAINS":
			pattern = "%" + pattern + "%"
		case "STARTS_WITH":
			pattern = pattern + "%"
		case "ENDS_WITH":
			pattern = "%" + pattern
		}
		w.builder.WriteString("(LOWER(")
		w.walk(&node.Arguments[0])
		w.builder.WriteString(") LIKE ")
		w.placeholder(pattern)
		w.builder.WriteString(")")

	default:
		w.err = fmt.Errorf("unsupported function: %s", callee.Value)
	}
}

func (w *SQLWalker) visitDateAdd(date, days ast.Node) {
	switch w.opts.Dialect {
	case query.DialectMySQL:
		w.builder.WriteString("DATE_ADD(")
		w.walk(&date)
		w.builder.WriteString(", INTERVAL ")
		w.walk(&days)
		w.builder.WriteString(" DAY)")
	case query.DialectSQLite:
		w.builder.WriteString("DATE(")
		w.walk(&date)
		w.builder.WriteString(", ")
		w.walk(&days)
		w.builder.WriteString(" || ' days')")
	default:
		w.builder.WriteString("(")
		w.walk(&date)
		w.builder.WriteString(" + ")
		w.walk(&days)
		w.builder.WriteString(" * INTERVAL '1 day')")
	}
}

// Helper to walk multiple args with comma separation
func (w *SQLWalker) walkArgs(args []ast.Node) {
	for i := range args {
		if i > 0 {
			w.builder.WriteString(", ")
		}
		w.walk(&args[i])
	}
}
