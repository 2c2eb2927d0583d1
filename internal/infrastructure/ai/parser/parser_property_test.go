//go:build property
// +build property

package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var stripBraces = strings.NewReplacer("{", "", "}", "")

// Property: one well-formed object surrounded by prose is returned unchanged.
func TestParseReturnsEmbeddedObject(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, strategy := range []Strategy{StrategyBalanced, StrategyGreedy} {
		p := New(strategy)
		properties.Property(string(strategy)+": embedded object round-trips", prop.ForAll(
			func(prefix, suffix, key, value string, n int) bool {
				obj := map[string]interface{}{key: value, "n": n, "list": []string{value}}
				payload, err := json.Marshal(obj)
				if err != nil {
					return false
				}

				got, err := p.Parse(prefix + " " + string(payload) + " " + suffix)
				if err != nil {
					return false
				}
				back, err := json.Marshal(got)
				if err != nil {
					return false
				}
				return string(back) == string(payload)
			},
			gen.AlphaString(),
			gen.AlphaString(),
			gen.AlphaString(),
			gen.AlphaString(),
			gen.Int(),
		))
	}

	properties.TestingRun(t)
}

// Property: text without a brace pair never yields an object.
func TestParseWithoutBracesFails(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("no JSON object found", prop.ForAll(
		func(raw string) bool {
			for _, strategy := range []Strategy{StrategyBalanced, StrategyGreedy} {
				_, err := New(strategy).Parse(raw)
				perr, ok := err.(*ParseError)
				if !ok || perr.Reason != ReasonNoJSON {
					return false
				}
			}
			return true
		},
		gen.AnyString().Map(func(s string) string { return stripBraces.Replace(s) }),
	))

	properties.TestingRun(t)
}

// Property: a brace span that is not JSON is reported as malformed.
func TestParseMalformedSpanFails(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("malformed JSON", prop.ForAll(
		func(prefix, word, suffix string) bool {
			raw := prefix + " {" + word + ": } " + suffix
			for _, strategy := range []Strategy{StrategyBalanced, StrategyGreedy} {
				_, err := New(strategy).Parse(raw)
				perr, ok := err.(*ParseError)
				if !ok || perr.Reason != ReasonMalformed {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
