package oracle

import (
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var listNumberRe = regexp.MustCompile(`^\d+[.)]\s+`)

// ParseCandidates splits an oracle response into candidate inputs: one per
// non-empty line, skipping comments and code fences, with list markers and
// "Input:" labels removed. Repeated lines are returned once.
func ParseCandidates(response string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var res []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isComment(line) {
			continue
		}
		c := cleanCandidate(line)
		if c == "" || seen.Contains(c) {
			continue
		}
		seen.Add(c)
		res = append(res, c)
	}
	return res
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "//") ||
		strings.HasPrefix(line, "```")
}

func cleanCandidate(line string) string {
	for _, bullet := range []string{"- ", "* "} {
		if strings.HasPrefix(line, bullet) {
			line = strings.TrimSpace(line[len(bullet):])
			break
		}
	}
	line = listNumberRe.ReplaceAllString(line, "")
	for _, label := range []string{"Input:", "input:"} {
		if strings.HasPrefix(line, label) {
			line = strings.TrimSpace(line[len(label):])
			break
		}
	}
	return line
}
