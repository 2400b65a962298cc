package executor

import "strings"

// Classifier decides whether a failed run was caused by malformed input
// rather than by the program's own logic.
type Classifier interface {
	IsFormatError(o Outcome) bool
}

// DefaultFormatErrorIndicators are matched case-insensitively against stderr.
var DefaultFormatErrorIndicators = []string{
	"parse error",
	"syntax error",
	"invalid format",
	"json.decoder.JSONDecodeError",
	"ValueError",
	"TypeError",
	"expected",
	"invalid literal",
	"cannot convert",
	"malformed",
	"unexpected",
	"invalid input",
	"parsing failed",
	"format error",
	"decode error",
	"invalid syntax",
	"bad input",
	"wrong format",
}

// SubstringClassifier flags a failed run as a format error when stderr
// contains any of its indicators.
type SubstringClassifier struct {
	indicators []string
}

func NewSubstringClassifier(indicators ...string) *SubstringClassifier {
	if len(indicators) == 0 {
		indicators = DefaultFormatErrorIndicators
	}
	lowered := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		ind = strings.TrimSpace(ind)
		if ind == "" {
			continue
		}
		lowered = append(lowered, strings.ToLower(ind))
	}
	return &SubstringClassifier{indicators: lowered}
}

func (c *SubstringClassifier) IsFormatError(o Outcome) bool {
	if o.Succeeded || o.TimedOut {
		return false
	}
	stderr := strings.ToLower(o.Stderr)
	for _, ind := range c.indicators {
		if strings.Contains(stderr, ind) {
			return true
		}
	}
	return false
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(o Outcome) bool

func (f ClassifierFunc) IsFormatError(o Outcome) bool {
	if o.TimedOut {
		return false
	}
	return f(o)
}
