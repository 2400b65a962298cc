package campaign

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/gatherer"
	"github.com/programme-lv/pathogen/internal/population"
	"golang.org/x/sync/errgroup"
)

type run struct {
	outcome executor.Outcome
	err     error
}

// evaluate measures every input in parallel and then scores the outcomes one
// by one in input order, so the score history has a single writer.
// A candidate whose run or scoring fails gets score 0.
func (c *Controller) evaluate(ctx context.Context, gen int, inputs []string) ([]population.Candidate, error) {
	runs := make([]run, len(inputs))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			out, err := c.execute(ctx, in)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			runs[i] = run{outcome: out, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]population.Candidate, 0, len(inputs))
	for i, in := range inputs {
		r := runs[i]
		eval := api.Evaluation{
			Input:         in,
			Size:          c.spec.Size(in),
			ResourceValue: r.outcome.ResourceValue,
			ExitCode:      r.outcome.ExitCode,
			TimedOut:      r.outcome.TimedOut,
		}

		score, err := c.score(r)
		if err != nil {
			c.logger.Warn("failed to evaluate candidate",
				slog.String("input", gatherer.TrimToRect(in, 1, 50)),
				slog.Any("error", err))
			msg := err.Error()
			eval.Error = &msg
			score = 0
		}
		eval.Score = score

		results = append(results, population.Candidate{Input: in, Score: score})
		c.gath.EvaluateCandidate(gen, eval)
	}
	return results, nil
}

func (c *Controller) score(r run) (score float64, err error) {
	if r.err != nil {
		return 0, r.err
	}
	defer func() {
		if p := recover(); p != nil {
			score, err = 0, fmt.Errorf("scoring panicked: %v", p)
		}
	}()
	return c.scorer.Score(r.outcome, c.req.Metric)
}
