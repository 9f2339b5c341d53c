package filter

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// WhereKey is the query parameter holding an expression comparison.
const WhereKey = "_where"

// reserved query parameters are response options or credentials, not
// comparisons.
var reserved = map[string]bool{
	"print": true,
	"auth":  true,
}

// Build creates a filter from query parameters:
//
//	eyeColor=green          eyeColor equal to "green"
//	age[gte]=21             age greater than or equal to 21
//	tags[contains]=labore   tags containing "labore"
//	_where=age > 21         gript expression
//
// Values are decoded as JSON scalars when possible and kept as strings
// otherwise. A nil filter is returned when no parameter describes a
// comparison.
func Build(query url.Values) (*Filter, error) {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var f *Filter
	add := func(c Comparison) {
		if f == nil {
			f = New()
		}
		f.AddComparison(c)
	}

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		for _, raw := range query[key] {
			if key == WhereKey {
				if strings.TrimSpace(raw) == "" {
					return nil, errors.New("empty _where expression")
				}
				add(NewExpressionComparison(raw))
				continue
			}
			keyPath, op, err := parseKey(key)
			if err != nil {
				return nil, err
			}
			add(NewPropertyComparison(keyPath, op, parseValue(raw)))
		}
	}
	return f, nil
}

func parseKey(key string) (string, Operator, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if key == "" {
			return "", "", errors.New("empty property path")
		}
		return key, EqualTo, nil
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", errors.Errorf("malformed filter key %q", key)
	}
	op, err := ParseOperator(key[open+1 : len(key)-1])
	if err != nil {
		return "", "", err
	}
	return key[:open], op, nil
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return raw
	}
	return v
}
