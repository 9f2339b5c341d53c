package filter

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xdbsoft/gript"

	"github.com/xdbsoft/docstore/api"
)

// Operator is the kind of test a PropertyComparison performs.
type Operator string

const (
	EqualTo            Operator = "eq"
	NotEqualTo         Operator = "ne"
	Contains           Operator = "contains"
	GreaterThan        Operator = "gt"
	GreaterThanOrEqual Operator = "gte"
	LessThan           Operator = "lt"
	LessThanOrEqual    Operator = "lte"
)

// ErrUnknownOperator is returned for operators outside of the supported set.
var ErrUnknownOperator = errors.New("unknown comparison operator")

// ParseOperator returns the operator named s.
func ParseOperator(s string) (Operator, error) {
	switch op := Operator(strings.ToLower(s)); op {
	case EqualTo, NotEqualTo, Contains, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return op, nil
	}
	return "", errors.Wrapf(ErrUnknownOperator, "%q", s)
}

// Comparison is a predicate over a document.
type Comparison interface {
	Matches(d *api.Document) bool
}

// PropertyComparison tests the value found at a key path of the document.
// A path that cannot be resolved never matches.
type PropertyComparison struct {
	KeyPath  string
	Operator Operator
	Value    interface{}
}

func NewPropertyComparison(keyPath string, op Operator, value interface{}) PropertyComparison {
	return PropertyComparison{KeyPath: keyPath, Operator: op, Value: value}
}

func (c PropertyComparison) Matches(d *api.Document) bool {
	v, ok := d.ValueForKeyPath(c.KeyPath)
	if !ok {
		return false
	}

	switch c.Operator {
	case EqualTo:
		return api.Equal(v, c.Value)
	case NotEqualTo:
		return !api.Equal(v, c.Value)
	case Contains:
		return contains(v, c.Value)
	case GreaterThan:
		cmp, ok := compare(v, c.Value)
		return ok && cmp > 0
	case GreaterThanOrEqual:
		cmp, ok := compare(v, c.Value)
		return ok && cmp >= 0
	case LessThan:
		cmp, ok := compare(v, c.Value)
		return ok && cmp < 0
	case LessThanOrEqual:
		cmp, ok := compare(v, c.Value)
		return ok && cmp <= 0
	}
	return false
}

func contains(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case []interface{}:
		for _, item := range h {
			if api.Equal(item, needle) {
				return true
			}
		}
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case map[string]interface{}:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		_, found := h[n]
		return found
	}
	return false
}

// compare orders two numbers or two strings.
func compare(a, b interface{}) (int, bool) {
	if na, ok := api.Number(a); ok {
		nb, ok := api.Number(b)
		if !ok {
			return 0, false
		}
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

// ExpressionComparison evaluates a boolean gript expression. The properties
// of the document are the variables of the expression. Evaluation errors and
// non boolean results never match.
type ExpressionComparison struct {
	Expression string
}

func NewExpressionComparison(expression string) ExpressionComparison {
	return ExpressionComparison{Expression: expression}
}

func (c ExpressionComparison) Matches(d *api.Document) bool {
	r, err := gript.Eval(c.Expression, d.Map())
	if err != nil {
		return false
	}
	b, ok := r.(bool)
	return ok && b
}
