package perf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Counter is one parsed line of "perf stat -x ," output.
type Counter struct {
	Value      int64
	Unit       string
	Event      string
	RunTime    int64
	RunningPct float64
}

var fallbackCounterRe = regexp.MustCompile(`(\d+)[^\n]*instructions`)

// ParseCounter extracts the counter for event from perf's CSV output.
// Lines look like "1234567,,instructions:u,1000100,100.00,,".
func ParseCounter(data []byte, event string) (*Counter, error) {
	text := string(data)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 || fields[2] != event {
			continue
		}
		value, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s is %q", event, fields[0])
		}
		c := &Counter{
			Value: value,
			Unit:  fields[1],
			Event: fields[2],
		}
		if len(fields) > 3 {
			c.RunTime, _ = strconv.ParseInt(fields[3], 10, 64)
		}
		if len(fields) > 4 {
			c.RunningPct, _ = strconv.ParseFloat(fields[4], 64)
		}
		return c, nil
	}

	m := fallbackCounterRe.FindStringSubmatch(text)
	if m != nil {
		value, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return &Counter{Value: value, Event: event}, nil
		}
	}

	return nil, fmt.Errorf("no %s counter in perf output", event)
}
