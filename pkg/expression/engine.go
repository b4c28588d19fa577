// Package expression evaluates user supplied filter expressions.
// ToSQL pushes a filter down into a WHERE clause. Engine evaluates the same
// language in memory, for values that never pass through SQL such as the
// changes on the realtime stream.
package expression

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine is a wrapper around expr-lang/expr with a compiled program cache
type Engine struct {
	programCache map[string]*vm.Program
	now          func() time.Time
	mu           sync.RWMutex
}

// NewEngine creates a new expression engine
func NewEngine() *Engine {
	return &Engine{
		programCache: make(map[string]*vm.Program),
		now:          time.Now,
	}
}

// Evaluate compiles (if needed) and runs an expression against the given environment
func (e *Engine) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = map[string]interface{}{}
	}
	return expr.Run(program, env)
}

// Match evaluates expression and requires a boolean result.
func (e *Engine) Match(expression string, env map[string]interface{}) (bool, error) {
	out, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter must evaluate to a boolean, got %T", out)
	}
	return b, nil
}

// Validate compiles expression without running it
func (e *Engine) Validate(expression string) error {
	_, err := e.getProgram(expression)
	return err
}

func (e *Engine) getProgram(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.programCache[expression]; ok {
		return prog, nil
	}

	// Rows are untyped maps, so every variable is resolved at run time.
	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("TODAY", func(params ...interface{}) (interface{}, error) {
			return e.now().Format("2006-01-02"), nil
		}),
		expr.Function("NOW", func(params ...interface{}) (interface{}, error) {
			return e.now().Format(time.RFC3339), nil
		}),
		expr.Function("LEN", func(params ...interface{}) (interface{}, error) {
			s, err := stringArg("LEN", params)
			if err != nil {
				return nil, err
			}
			return len(s), nil
		}),
		expr.Function("UPPER", func(params ...interface{}) (interface{}, error) {
			s, err := stringArg("UPPER", params)
			if err != nil {
				return nil, err
			}
			return strings.ToUpper(s), nil
		}),
		expr.Function("LOWER", func(params ...interface{}) (interface{}, error) {
			s, err := stringArg("LOWER", params)
			if err != nil {
				return nil, err
			}
			return strings.ToLower(s), nil
		}),
		expr.Function("CONTAINS", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("CONTAINS requires 2 arguments")
			}
			s, _ := params[0].(string)
			sub, _ := params[1].(string)
			return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
		}),
		expr.Function("ROUND", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("ROUND requires 2 arguments")
			}
			val, err := toFloat(params[0])
			if err != nil {
				return nil, fmt.Errorf("ROUND arg 1 must be number")
			}
			prec, err := toInt(params[1])
			if err != nil {
				return nil, fmt.Errorf("ROUND arg 2 must be integer")
			}
			mult := math.Pow(10, float64(prec))
			return math.Round(val*mult) / mult, nil
		}),
		expr.Function("IF", func(params ...interface{}) (interface{}, error) {
			if len(params) != 3 {
				return nil, fmt.Errorf("IF requires 3 arguments (condition, true_value, false_value)")
			}
			cond, ok := params[0].(bool)
			if !ok {
				return nil, fmt.Errorf("IF condition must be boolean")
			}
			if cond {
				return params[1], nil
			}
			return params[2], nil
		}),
		expr.Function("DATE_ADD", func(params ...interface{}) (interface{}, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("DATE_ADD requires 2 arguments (date, days)")
			}
			dateStr, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("DATE_ADD date must be string")
			}
			days, err := toInt(params[1])
			if err != nil {
				return nil, fmt.Errorf("DATE_ADD days must be integer")
			}
			t, err := parseDate(dateStr)
			if err != nil {
				return nil, fmt.Errorf("DATE_ADD date format invalid")
			}
			return t.AddDate(0, 0, days).Format("2006-01-02"), nil
		}),
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return nil, err
	}

	e.programCache[expression] = program
	return program, nil
}

// MatchValue evaluates expression against v converted to its JSON field
// names, so `table == 'deals' && record.stage == 'closed_won'` addresses the
// same keys the API returns. An empty expression matches everything.
func (e *Engine) MatchValue(expression string, v interface{}) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	env, err := toEnv(v)
	if err != nil {
		return false, err
	}
	return e.Match(expression, env)
}

func toEnv(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	env := map[string]interface{}{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env, nil
}

func stringArg(fn string, params []interface{}) (string, error) {
	if len(params) != 1 {
		return "", fmt.Errorf("%s requires 1 argument", fn)
	}
	s, ok := params[0].(string)
	if !ok {
		return "", fmt.Errorf("%s argument must be string", fn)
	}
	return s, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case string:
		var f float64
		_, err := fmt.Sscanf(val, "%f", &f)
		return f, err
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}

func toInt(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case float64:
		return int(val), nil
	case int64:
		return int(val), nil
	case float32:
		return int(val), nil
	case string:
		var i int
		_, err := fmt.Sscanf(val, "%d", &i)
		return i, err
	}
	return 0, fmt.Errorf("cannot convert %T to int", v)
}
