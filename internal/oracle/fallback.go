package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// FallbackCandidates is the fixed candidate set used when an oracle call fails.
func FallbackCandidates(n int) []string {
	res := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, fmt.Sprintf("[%d, %d, %d]", i, i+1, i+2))
	}
	return res
}

var sizeListRe = regexp.MustCompile(`sizes:\s*\[([0-9,\s]*)\]`)

// Fallback is an offline oracle. For every target size listed in the prompt
// it answers with a strictly descending integer sequence of that length,
// shifted by one on each call so repeated calls yield new inputs.
type Fallback struct {
	calls atomic.Int64
}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Name() string {
	return ProviderFallback
}

func (f *Fallback) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	shift := int(f.calls.Add(1) - 1)

	sizes := targetSizes(prompt)
	if len(sizes) == 0 {
		return strings.Join(FallbackCandidates(3), "\n"), nil
	}

	var b strings.Builder
	for _, size := range sizes {
		for v := size + shift; v > shift; v-- {
			b.WriteString(strconv.Itoa(v))
			if v > shift+1 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func targetSizes(prompt string) []int {
	matches := sizeListRe.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return nil
	}
	last := matches[len(matches)-1][1]

	var sizes []int
	for _, field := range strings.Split(last, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n <= 0 {
			continue
		}
		sizes = append(sizes, n)
	}
	return sizes
}
