package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Balanced(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "ProseAroundObject",
			raw:  `Sure! Here's your recipe: {"recipe_name":"X","cooking_time":20} Hope that helps!`,
			want: `{"recipe_name":"X","cooking_time":20}`,
		},
		{
			name: "CodeFence",
			raw:  "```json\n{\"a\": [1, 2, {\"b\": null}]}\n```",
			want: `{"a":[1,2,{"b":null}]}`,
		},
		{
			name: "BracesInsideStrings",
			raw:  `note: {"text": "use {curly} braces and \"quotes\" }"} end`,
			want: `{"text":"use {curly} braces and \"quotes\" }"}`,
		},
		{
			name: "TwoObjectsReturnsFirst",
			raw:  `first {"a": 1} then {"b": 2}`,
			want: `{"a":1}`,
		},
		{
			name: "StrayBraceInProseBeforeObject",
			raw:  `set {x to 3. {"ok": true}`,
			want: `{"ok":true}`,
		},
		{
			name: "FirstSpanInvalidSecondValid",
			raw:  `{not json} and {"ok": 1}`,
			want: `{"ok":1}`,
		},
		{
			name: "ByteOrderMark",
			raw:  "\uFEFF{\"a\":\"b\"}",
			want: `{"a":"b"}`,
		},
	}

	p := New(StrategyBalanced)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.raw)
			require.NoError(t, err)
			assertJSONEqual(t, tt.want, got)
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		raw      string
		reason   string
	}{
		{"EmptyBalanced", StrategyBalanced, "", ReasonNoJSON},
		{"EmptyGreedy", StrategyGreedy, "", ReasonNoJSON},
		{"NoBraces", StrategyBalanced, "I could not find a recipe", ReasonNoJSON},
		{"OnlyOpening", StrategyBalanced, "here { it is", ReasonNoJSON},
		{"ReversedBraces", StrategyGreedy, "} oops {", ReasonNoJSON},
		{"ReversedBracesBalanced", StrategyBalanced, "} oops {", ReasonNoJSON},
		{"MalformedBalanced", StrategyBalanced, `{"a": 1,}`, ReasonMalformed},
		{"MalformedGreedy", StrategyGreedy, `result {name: x}`, ReasonMalformed},
		{"UnbalancedBalanced", StrategyBalanced, `{"a": [1, 2}`, ReasonMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.strategy).Parse(tt.raw)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

// The legacy strategy captures a superspan when two objects are present.
func TestParse_GreedyLegacySuperspan(t *testing.T) {
	raw := `example: {"a": 1} actual: {"b": 2}`

	_, err := New(StrategyGreedy).Parse(raw)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ReasonMalformed, perr.Reason)
	assert.Contains(t, perr.Error(), "malformed JSON: ")

	got, err := New(StrategyBalanced).Parse(raw)
	require.NoError(t, err)
	assertJSONEqual(t, `{"a":1}`, got)
}

func TestParse_GreedyNestedObject(t *testing.T) {
	got, err := New(StrategyGreedy).Parse(`ok {"outer": {"inner": "v"}} bye`)

	require.NoError(t, err)
	assertJSONEqual(t, `{"outer":{"inner":"v"}}`, got)
}

func TestParse_NumbersKeepPrecision(t *testing.T) {
	got, err := Parse(`{"points_response": 12345678901234567}`)

	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901234567"), got["points_response"])
}

func TestNew_DefaultsToBalanced(t *testing.T) {
	assert.Equal(t, StrategyBalanced, New("").Strategy())
	assert.Equal(t, StrategyBalanced, New("regex").Strategy())
	assert.Equal(t, StrategyGreedy, New(StrategyGreedy).Strategy())
}

func assertJSONEqual(t *testing.T, want string, got map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(data))
}
