package rules

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xdbsoft/gript"

	"github.com/xdbsoft/docstore/api"
)

type Checker struct {
	rules []Rule
}

func NewChecker(rules []Rule) Checker {
	return Checker{rules: rules}
}

// Enabled reports whether any rule is configured.
func (c Checker) Enabled() bool {
	return len(c.rules) > 0
}

func isVariable(s string) (bool, string) {

	if len(s) >= 3 {
		if s[0] == '{' && s[len(s)-1] == '}' {
			return true, s[1 : len(s)-1]
		}
	}
	return false, ""
}

func checkCondition(condition string, variables map[string]interface{}) (bool, error) {
	if len(condition) == 0 {
		return true, nil
	}
	r, err := gript.Eval(condition, variables)
	if err != nil {
		return false, err
	}
	result, ok := r.(bool)
	if !ok {
		return false, errors.New("Invalid condition: result is not boolean")
	}
	return result, nil
}

func match(rule Rule, target api.ObjectRef) (map[string]interface{}, bool) {
	path := strings.Split(strings.Trim(rule.Path, "/"), "/")
	if len(path) != len(target) {
		return nil, false
	}
	pathVariables := make(map[string]interface{})
	for i := range path {
		if isVar, name := isVariable(path[i]); isVar {
			pathVariables[name] = target[i]
			continue
		}
		if path[i] != "*" && path[i] != target[i] {
			return nil, false
		}
	}
	return pathVariables, true
}

// Check reports whether user may perform method on target. The first rule
// whose path matches decides; targets no rule matches are allowed.
func (c Checker) Check(target api.ObjectRef, user api.User, method Method) (bool, error) {

	docTarget := target
	if !docTarget.IsDocument() {
		docTarget = append(api.ObjectRef{}, target...)
		docTarget = append(docTarget, "*")
	}

	for _, rule := range c.rules {
		pathVariables, ok := match(rule, docTarget)
		if !ok {
			continue
		}

		variables := map[string]interface{}{
			"path": pathVariables,
			"user": map[string]interface{}{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
			},
			"method": string(method),
		}
		for _, a := range rule.Allow {
			if !allows(a, method) {
				continue
			}
			granted, err := checkCondition(a.If, variables)
			if err != nil {
				return false, errors.Wrapf(err, "rule %q", rule.Path)
			}
			if granted {
				return true, nil
			}
		}
		return false, nil
	}

	return true, nil
}

func allows(a Allow, method Method) bool {
	for _, m := range a.Methods {
		if m == method {
			return true
		}
	}
	return false
}
