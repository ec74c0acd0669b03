// Package filter implements a generic boolean predicate engine over
// arbitrary entity shapes. Filters are AND combined and an empty filter list
// matches everything. Matches never panics; a filter that cannot be
// evaluated simply does not match.
package filter

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindContains Kind = iota
	KindExact
	KindStartsWith
	KindEndsWith
	KindRegex
	KindGreaterThan
	KindLessThan
	KindGreaterOrEqual
	KindLessOrEqual
	KindExists
)

// ParseKind maps the wire level match type to a predicate kind. Unknown
// match types fall back to substring containment.
func ParseKind(matchType string) Kind {
	switch strings.ToLower(matchType) {
	case "exact":
		return KindExact
	case "startswith":
		return KindStartsWith
	case "endswith":
		return KindEndsWith
	case "regex":
		return KindRegex
	case "gt":
		return KindGreaterThan
	case "lt":
		return KindLessThan
	case "gte":
		return KindGreaterOrEqual
	case "lte":
		return KindLessOrEqual
	case "exists":
		return KindExists
	default:
		return KindContains
	}
}

type Filter struct {
	Path          string `json:"path"`
	Value         string `json:"value"`
	MatchType     string `json:"matchType"`
	CaseSensitive bool   `json:"caseSensitive"`
}

func Matches(entity any, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}

	normalized := normalize(entity)

	for _, f := range filters {
		if !matchesOne(normalized, f) {
			return false
		}
	}

	return true
}

func matchesOne(entity any, f Filter) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	kind := ParseKind(f.MatchType)

	path := f.Path
	if strings.HasSuffix(path, "?") {
		kind = KindExists
		path = strings.TrimSuffix(path, "?")
	}

	resolved, found := valueAt(entity, path)
	present := found && resolved != nil

	if kind == KindExists {
		return present == expectExists(f.Value)
	}

	if !present {
		// only an explicit null/undefined filter value matches a missing value
		return f.Value == "null" || f.Value == "undefined"
	}

	if b, ok := resolved.(bool); ok {
		want, ok := parseBool(f.Value)
		if !ok {
			return false
		}
		return b == want
	}

	switch kind {
	case KindGreaterThan, KindLessThan, KindGreaterOrEqual, KindLessOrEqual:
		return matchRelational(kind, resolved, f.Value)
	case KindRegex:
		return matchRegex(resolved, f.Value, f.CaseSensitive)
	case KindExact, KindStartsWith, KindEndsWith, KindContains:
		return matchTextual(kind, resolved, f.Value, f.CaseSensitive)
	}

	return false
}

func matchRelational(kind Kind, resolved any, value string) bool {
	left, ok := toNumber(resolved)
	if !ok {
		return false
	}

	right, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false
	}

	switch kind {
	case KindGreaterThan:
		return left > right
	case KindLessThan:
		return left < right
	case KindGreaterOrEqual:
		return left >= right
	case KindLessOrEqual:
		return left <= right
	}

	return false
}

func matchRegex(resolved any, pattern string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}

	return re.MatchString(stringify(resolved))
}

func matchTextual(kind Kind, resolved any, value string, caseSensitive bool) bool {
	left := stringify(resolved)
	right := value

	if !caseSensitive {
		left = strings.ToLower(left)
		right = strings.ToLower(right)
	}

	switch kind {
	case KindExact:
		return left == right
	case KindStartsWith:
		return strings.HasPrefix(left, right)
	case KindEndsWith:
		return strings.HasSuffix(left, right)
	case KindContains:
		return strings.Contains(left, right)
	}

	return false
}

// expectExists interprets the filter value as the expected presence state.
func expectExists(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// valueAt walks a dot notation path through nested objects and arrays.
func valueAt(entity any, path string) (any, bool) {
	if path == "" {
		return entity, true
	}

	current := entity

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// normalize runs typed entities through a JSON round trip so that path
// resolution only ever sees maps, slices and JSON scalars.
func normalize(entity any) any {
	switch entity.(type) {
	case nil, map[string]any, []any, string, bool, float64, json.Number:
		return entity
	}

	b, err := json.Marshal(entity)
	if err != nil {
		return entity
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return entity
	}

	return v
}
