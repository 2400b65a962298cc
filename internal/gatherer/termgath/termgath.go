package termgath

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/gatherer"
)

var (
	headColor   = color.New(color.FgCyan, color.Bold)
	bestColor   = color.New(color.FgGreen, color.Bold)
	rejectColor = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
)

type TerminalGatherer struct {
	StartedAt time.Time
	// Verbose also prints every evaluated and rejected candidate.
	Verbose bool

	out       io.Writer
	bestSoFar float64
}

func New(verbose bool) *TerminalGatherer {
	return NewWriter(os.Stdout, verbose)
}

func NewWriter(out io.Writer, verbose bool) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		Verbose:   verbose,
		out:       out,
	}
}

func (t *TerminalGatherer) StartCampaign(campaignUuid string, req api.CampaignRequest) {
	t.StartedAt = time.Now()
	headColor.Fprintf(t.out, "== Campaign %s started ==\n", campaignUuid)
	fmt.Fprintf(t.out, "program=%s metric=%s oracle=%s iterations=%d\n",
		req.Program, req.Metric, req.Oracle, req.MaxIterations)
}

func (t *TerminalGatherer) StartGeneration(generation int, targetSizes []int) {
	headColor.Fprintf(t.out, "-- Generation %d --\n", generation)
	if t.Verbose {
		fmt.Fprintf(t.out, "target sizes: %v\n", targetSizes)
	}
}

func (t *TerminalGatherer) RejectCandidate(generation int, input string, stderr string) {
	if !t.Verbose {
		return
	}
	rejectColor.Fprintf(t.out, "  x rejected %s\n", gatherer.TrimToRect(input, 1, 60))
}

func (t *TerminalGatherer) EvaluateCandidate(generation int, eval api.Evaluation) {
	if !t.Verbose {
		return
	}
	status := fmt.Sprintf("exit=%d", eval.ExitCode)
	if eval.TimedOut {
		status = "timeout"
	}
	fmt.Fprintf(t.out, "  %-60s instr=%d score=%.4f %s\n",
		gatherer.TrimToRect(eval.Input, 1, 60), eval.ResourceValue, eval.Score, status)
}

func (t *TerminalGatherer) FinishGeneration(record api.GenerationRecord) {
	line := fmt.Sprintf("<- best=%.4f avg=%.4f inputs=%d rejected=%d in %dms\n",
		record.BestScore, record.AvgScore, record.NumInputs, record.NumRejected, record.DurationMs)
	if record.BestScore > t.bestSoFar {
		t.bestSoFar = record.BestScore
		bestColor.Fprint(t.out, line)
		return
	}
	fmt.Fprint(t.out, line)
}

func (t *TerminalGatherer) FinishCampaign(res *api.Result, err error) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if err != nil {
		errColor.Fprintf(t.out, "== Campaign stopped: %v ==\n", err)
	}
	if res == nil {
		return
	}
	headColor.Fprintf(t.out, "== Campaign %s after %d iterations in %s ==\n", res.Status, res.TotalIterations, dur)
	if res.ConvergenceGeneration != nil {
		fmt.Fprintf(t.out, "converged at generation %d\n", *res.ConvergenceGeneration)
	}
	for i, in := range res.BestInputs {
		fmt.Fprintf(t.out, "%2d. score=%.4f size=%d %s\n", i+1, in.Score, in.Size, gatherer.TrimToRect(in.Input, 1, 60))
	}
}
