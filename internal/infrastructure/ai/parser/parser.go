// Package parser extracts a JSON object from free-form generative model output.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Failure reasons
const (
	ReasonNoJSON    = "no JSON object found"
	ReasonMalformed = "malformed JSON"
)

// Strategy selects how the JSON span is located.
type Strategy string

const (
	// StrategyGreedy takes everything from the first '{' to the last '}'.
	// Two fragments in one response produce an invalid superspan; kept so
	// old audit logs replay identically.
	StrategyGreedy Strategy = "greedy"
	// StrategyBalanced scans for string-aware balanced spans and returns the
	// first one that decodes.
	StrategyBalanced Strategy = "balanced"
)

// ParseError reports why no object could be extracted.
type ParseError struct {
	Reason string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Parser extracts JSON objects using one strategy
type Parser struct {
	strategy Strategy
}

// New creates a parser. Unknown strategies fall back to balanced.
func New(strategy Strategy) *Parser {
	if strategy != StrategyGreedy {
		strategy = StrategyBalanced
	}
	return &Parser{strategy: strategy}
}

// Strategy returns the configured strategy
func (p *Parser) Strategy() Strategy {
	return p.strategy
}

// Parse returns the JSON object contained in raw. Numbers decode as json.Number.
func (p *Parser) Parse(raw string) (map[string]interface{}, error) {
	raw = Sanitize(raw)
	if p.strategy == StrategyGreedy {
		return parseGreedy(raw)
	}
	return parseBalanced(raw)
}

// Parse uses the balanced strategy
func Parse(raw string) (map[string]interface{}, error) {
	return New(StrategyBalanced).Parse(raw)
}

// Sanitize strips byte order marks and NUL bytes some providers emit.
func Sanitize(raw string) string {
	raw = strings.ReplaceAll(raw, "\uFEFF", "")
	return strings.ReplaceAll(raw, "\x00", "")
}

func parseGreedy(raw string) (map[string]interface{}, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &ParseError{Reason: ReasonNoJSON}
	}

	obj, err := decodeObject(raw[start : end+1])
	if err != nil {
		return nil, &ParseError{Reason: ReasonMalformed, Detail: err.Error()}
	}
	return obj, nil
}

func parseBalanced(raw string) (map[string]interface{}, error) {
	if !hasBracePair(raw) {
		return nil, &ParseError{Reason: ReasonNoJSON}
	}

	var firstErr error
	for start := strings.IndexByte(raw, '{'); start != -1; {
		if end := balancedEnd(raw, start); end != -1 {
			obj, err := decodeObject(raw[start : end+1])
			if err == nil {
				return obj, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}

		next := strings.IndexByte(raw[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	detail := "no balanced object span"
	if firstErr != nil {
		detail = firstErr.Error()
	}
	return nil, &ParseError{Reason: ReasonMalformed, Detail: detail}
}

// hasBracePair reports whether some '{' is followed by a '}'.
func hasBracePair(raw string) bool {
	start := strings.IndexByte(raw, '{')
	return start != -1 && strings.LastIndexByte(raw, '}') > start
}

// balancedEnd returns the index of the '}' closing the object opened at
// start, honouring JSON string literals and escapes, or -1.
func balancedEnd(raw string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				if c == '}' {
					return i
				}
				return -1
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

func decodeObject(span string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after object")
	}
	if obj == nil {
		return nil, fmt.Errorf("object is null")
	}
	return obj, nil
}
