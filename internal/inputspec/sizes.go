package inputspec

import (
	"strings"
	"unicode/utf8"
)

// Sizer computes the logical size of an input.
type Sizer func(input string) int

const (
	SizeLength   = "length"
	SizeBytes    = "bytes"
	SizeLines    = "lines"
	SizeTokens   = "tokens"
	SizeElements = "elements"
)

var sizers = map[string]Sizer{
	SizeLength:   utf8.RuneCountInString,
	SizeBytes:    func(s string) int { return len(s) },
	SizeLines:    countLines,
	SizeTokens:   func(s string) int { return len(strings.Fields(s)) },
	SizeElements: countElements,
}

func countLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// countElements counts the items of a flat list such as "[3, 1, 2]" or
// "3 1 2". Commas take precedence over whitespace as separators.
func countElements(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	if !strings.Contains(s, ",") {
		return len(strings.Fields(s))
	}
	n := 0
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}
