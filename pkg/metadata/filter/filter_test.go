package filter

import (
	"testing"

	"github.com/matryer/is"
)

func TestEmptyFilterListMatchesEverything(t *testing.T) {
	is := is.New(t)

	is.True(Matches(map[string]any{"a": 1}, nil))
	is.True(Matches(nil, []Filter{}))
	is.True(Matches("just a string", nil))
}

func TestFiltersAreAndCombined(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"name": "Device", "core": true}

	is.True(Matches(entity, []Filter{
		{Path: "name", Value: "dev", MatchType: "contains"},
		{Path: "core", Value: "true"},
	}))

	is.True(!Matches(entity, []Filter{
		{Path: "name", Value: "dev", MatchType: "contains"},
		{Path: "core", Value: "false"},
	}))
}

func TestRelationalOperatorsCoerceToNumbers(t *testing.T) {
	is := is.New(t)

	matching := map[string]any{"a": map[string]any{"b": 10}}
	is.True(Matches(matching, []Filter{{Path: "a.b", Value: "5", MatchType: "gt"}}))

	nonNumeric := map[string]any{"a": map[string]any{"b": "x"}}
	is.True(!Matches(nonNumeric, []Filter{{Path: "a.b", Value: "5", MatchType: "gt"}}))

	is.True(Matches(matching, []Filter{{Path: "a.b", Value: "10", MatchType: "gte"}}))
	is.True(!Matches(matching, []Filter{{Path: "a.b", Value: "10", MatchType: "lt"}}))

	// numeric strings on the entity side are coerced too
	stringly := map[string]any{"a": map[string]any{"b": "12"}}
	is.True(Matches(stringly, []Filter{{Path: "a.b", Value: "5", MatchType: "gt"}}))
}

func TestExistenceChecks(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"config": map[string]any{"mode": "auto"}, "gone": nil}

	is.True(Matches(entity, []Filter{{Path: "config.mode?", Value: "true"}}))
	is.True(Matches(entity, []Filter{{Path: "config.missing?", Value: "no"}}))
	is.True(!Matches(entity, []Filter{{Path: "config.missing?", Value: "yes"}}))

	// explicit null values do not count as present
	is.True(Matches(entity, []Filter{{Path: "gone?", Value: "false"}}))

	// matchType exists works without the path suffix
	is.True(Matches(entity, []Filter{{Path: "config.mode", Value: "1", MatchType: "exists"}}))
}

func TestMissingValuesOnlyMatchExplicitNullLiterals(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"a": 1}

	is.True(Matches(entity, []Filter{{Path: "b", Value: "null"}}))
	is.True(Matches(entity, []Filter{{Path: "b", Value: "undefined"}}))
	is.True(!Matches(entity, []Filter{{Path: "b", Value: ""}}))
	is.True(!Matches(entity, []Filter{{Path: "b", Value: "x"}}))
}

func TestBooleanVocabulary(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"hidden": false}

	for _, v := range []string{"false", "no", "0", "off", "FALSE"} {
		is.True(Matches(entity, []Filter{{Path: "hidden", Value: v}}))
	}

	for _, v := range []string{"true", "yes", "1", "on"} {
		is.True(!Matches(entity, []Filter{{Path: "hidden", Value: v}}))
	}

	// unparseable text never matches a boolean
	is.True(!Matches(entity, []Filter{{Path: "hidden", Value: "maybe"}}))
}

func TestTextualOperators(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"name": "TemperatureSensor"}

	is.True(Matches(entity, []Filter{{Path: "name", Value: "temperature", MatchType: "startsWith"}}))
	is.True(!Matches(entity, []Filter{{Path: "name", Value: "temperature", MatchType: "startsWith", CaseSensitive: true}}))
	is.True(Matches(entity, []Filter{{Path: "name", Value: "Sensor", MatchType: "endsWith", CaseSensitive: true}}))
	is.True(Matches(entity, []Filter{{Path: "name", Value: "TemperatureSensor", MatchType: "exact"}}))
	is.True(Matches(entity, []Filter{{Path: "name", Value: "ureSen", MatchType: "contains"}}))

	// unknown match types fall back to contains
	is.True(Matches(entity, []Filter{{Path: "name", Value: "ureSen", MatchType: "fuzzy"}}))
}

func TestRegexMatching(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"name": "TemperatureSensor"}

	is.True(Matches(entity, []Filter{{Path: "name", Value: "^temp.*sensor$", MatchType: "regex"}}))
	is.True(!Matches(entity, []Filter{{Path: "name", Value: "^temp.*sensor$", MatchType: "regex", CaseSensitive: true}}))

	// an invalid pattern fails the filter instead of blowing up
	is.True(!Matches(entity, []Filter{{Path: "name", Value: "([", MatchType: "regex"}}))
}

func TestNumbersStringifyWithoutTrailingZeroes(t *testing.T) {
	is := is.New(t)

	// JSON decoding turns 10 into float64(10); textual matching should see "10"
	entity := map[string]any{"id": float64(10)}

	is.True(Matches(entity, []Filter{{Path: "id", Value: "10", MatchType: "exact"}}))
}

func TestPathsIndexIntoArrays(t *testing.T) {
	is := is.New(t)

	entity := map[string]any{"tags": []any{"alpha", "beta"}}

	is.True(Matches(entity, []Filter{{Path: "tags.1", Value: "beta", MatchType: "exact"}}))
	is.True(!Matches(entity, []Filter{{Path: "tags.5", Value: "beta", MatchType: "exact"}}))
}

func TestTypedEntitiesAreNormalized(t *testing.T) {
	is := is.New(t)

	type inner struct {
		Mode string `json:"mode"`
	}
	type outer struct {
		Name   string `json:"name"`
		Config inner  `json:"config"`
	}

	entity := outer{Name: "Device", Config: inner{Mode: "auto"}}

	is.True(Matches(entity, []Filter{{Path: "config.mode", Value: "auto", MatchType: "exact"}}))
}
