package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/programme-lv/pathogen/internal/gatherer"
	"golang.org/x/sync/errgroup"
)

const (
	RepairNone = "none"
	RepairTrim = "trim"
)

// Repair proposes a corrected version of an input the target rejected as
// malformed. ok is false when it has nothing new to offer.
type Repair func(input string) (repaired string, ok bool)

func RepairByName(name string) (Repair, error) {
	switch name {
	case "", RepairNone:
		return noRepair, nil
	case RepairTrim:
		return TrimRepair, nil
	}
	return nil, fmt.Errorf("unknown input repair %q", name)
}

func noRepair(string) (string, bool) {
	return "", false
}

// TrimRepair strips wrapping quotes or backticks and trailing separators
// that oracles like to add around an input.
func TrimRepair(input string) (string, bool) {
	s := strings.TrimSpace(input)
	for {
		prev := s
		s = strings.TrimSpace(strings.TrimRight(s, ",;"))
		if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
		if s == prev {
			break
		}
	}
	if s == "" || s == input {
		return "", false
	}
	return s, true
}

func isQuote(b byte) bool {
	return b == '"' || b == '\'' || b == '`'
}

type rejection struct {
	input  string
	stderr string
}

type verdict struct {
	// accepted input, possibly repaired
	input    string
	accepted bool
	rejects  []rejection
}

// validate executes every input once and keeps those the target does not
// reject as malformed. Rejections are reported to the gatherer in input
// order once all runs are done.
func (c *Controller) validate(ctx context.Context, gen int, inputs []string) ([]string, int, error) {
	verdicts := make([]verdict, len(inputs))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			v, err := c.validateOne(ctx, in)
			verdicts[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	accepted := make([]string, 0, len(inputs))
	dropped := 0
	for _, v := range verdicts {
		for _, r := range v.rejects {
			c.gath.RejectCandidate(gen, r.input, r.stderr)
		}
		if v.accepted {
			accepted = append(accepted, v.input)
			continue
		}
		dropped++
		c.logger.Debug("dropped malformed candidate",
			slog.Int("generation", gen),
			slog.String("input", gatherer.TrimToRect(v.rejects[0].input, 1, 50)))
	}
	return accepted, dropped, nil
}

func (c *Controller) validateOne(ctx context.Context, input string) (verdict, error) {
	var v verdict
	attempt := input
	for try := 0; ; try++ {
		if _, seen := c.rejected.Load(attempt); seen {
			c.stats.rejections.Inc()
			v.rejects = append(v.rejects, rejection{input: attempt, stderr: "rejected earlier in this campaign"})
		} else {
			out, err := c.execute(ctx, attempt)
			if err != nil && ctx.Err() != nil {
				return v, ctx.Err()
			}
			if err != nil {
				// cannot tell whether the input is malformed, leave it to evaluation
				c.logger.Warn("validation run failed",
					slog.String("input", gatherer.TrimToRect(attempt, 1, 50)),
					slog.Any("error", err))
				v.input, v.accepted = attempt, true
				return v, nil
			}
			if !out.IsInputFormatError {
				v.input, v.accepted = attempt, true
				return v, nil
			}
			c.rejected.Store(attempt, struct{}{})
			c.stats.rejections.Inc()
			v.rejects = append(v.rejects, rejection{input: attempt, stderr: out.Stderr})
		}

		if try >= c.validCfg.MaxFormatRetries {
			return v, nil
		}
		next, ok := c.repair(attempt)
		if !ok {
			return v, nil
		}
		attempt = next
	}
}
