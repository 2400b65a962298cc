package campaign_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/campaign"
	"github.com/programme-lv/pathogen/internal/config"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/inputspec"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/programme-lv/pathogen/internal/scorer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const intListSpec = `
input_specification:
  name: int_list
  description: A list of integers in brackets
  size_calculation: elements
  valid_examples:
    - "[1, 2, 3]"
`

// fakeRunner reports len(input)^2 instructions unless outcome is set.
type fakeRunner struct {
	mu      sync.Mutex
	calls   map[string]int
	outcome func(input string) executor.Outcome
}

func (r *fakeRunner) Execute(ctx context.Context, program string, input string) (executor.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return executor.Outcome{ExitCode: -1}, err
	}
	r.mu.Lock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[input]++
	r.mu.Unlock()

	if r.outcome != nil {
		return r.outcome(input), nil
	}
	n := int64(len(input))
	return executor.Outcome{Succeeded: true, ResourceValue: n * n}, nil
}

func (r *fakeRunner) Calls(input string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[input]
}

type fakeOracle struct {
	mu      sync.Mutex
	prompts []string
	respond func(call int, prompt string) (string, error)
}

func (o *fakeOracle) Name() string { return "fake" }

func (o *fakeOracle) Generate(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	call := len(o.prompts)
	o.mu.Unlock()
	return o.respond(call, prompt)
}

func (o *fakeOracle) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}

// growingOracle answers call k with lists of k..k+n-1 elements.
func growingOracle(n int) *fakeOracle {
	return &fakeOracle{respond: func(call int, prompt string) (string, error) {
		lines := make([]string, n)
		for i := range lines {
			lines[i] = fmt.Sprintf("%d. [%s]", i+1, strings.Repeat("9, ", call+i)+"0")
		}
		return strings.Join(lines, "\n"), nil
	}}
}

type recorder struct {
	started   []string
	rejected  []string
	evaluated []api.Evaluation
	records   []api.GenerationRecord
	finished  *api.Result
	finishErr error
	onFinish  func(api.GenerationRecord)
}

func (r *recorder) StartCampaign(campaignUuid string, req api.CampaignRequest) {
	r.started = append(r.started, campaignUuid)
}
func (r *recorder) StartGeneration(int, []int) {}
func (r *recorder) RejectCandidate(generation int, input string, stderr string) {
	r.rejected = append(r.rejected, input)
}
func (r *recorder) EvaluateCandidate(generation int, eval api.Evaluation) {
	r.evaluated = append(r.evaluated, eval)
}
func (r *recorder) FinishGeneration(record api.GenerationRecord) {
	r.records = append(r.records, record)
	if r.onFinish != nil {
		r.onFinish(record)
	}
}
func (r *recorder) FinishCampaign(res *api.Result, err error) {
	r.finished = res
	r.finishErr = err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Campaign.MaxIterations = 3
	cfg.Campaign.InputsPerIteration = 4
	cfg.Campaign.EliteSize = 2
	cfg.Campaign.Workers = 2
	cfg.Campaign.MaxTopupRounds = 1
	cfg.Campaign.SizeProgression = config.SizeProgression{StartSize: 2, Increment: 2}
	cfg.Output.Dir = "/tmp/pathogen-test"
	seed := int64(7)
	cfg.Campaign.Seed = &seed
	return cfg
}

func newController(t *testing.T, cfg config.Config, runner campaign.Runner, orc oracle.Oracle, gath *recorder) *campaign.Controller {
	t.Helper()
	spec, err := inputspec.Parse([]byte(intListSpec), nil)
	require.NoError(t, err)

	c, err := campaign.New(cfg, api.CampaignRequest{Program: "./target"}, campaign.Deps{
		Runner:   runner,
		Oracle:   orc,
		Spec:     spec,
		Gatherer: gath,
	})
	require.NoError(t, err)
	return c
}

func TestRunExhaustsIterations(t *testing.T) {
	rec := &recorder{}
	c := newController(t, testConfig(), &fakeRunner{}, growingOracle(4), rec)
	assert.Equal(t, campaign.Idle, c.State())

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, campaign.Exhausted, c.State())
	assert.Equal(t, api.StatusExhausted, res.Status)
	assert.Equal(t, 3, res.TotalIterations)
	assert.Nil(t, res.ConvergenceGeneration)
	require.Len(t, res.GenerationHistory, 3)
	assert.Equal(t, scorer.MetricInstructionCount, res.Request.Metric)
	assert.Equal(t, "int_list", res.Request.InputSpecName)
	assert.Equal(t, int64(7), *res.Request.Seed)
	assert.Len(t, rec.started, 1)
	assert.Equal(t, rec.started[0], res.CampaignUuid)
	assert.Same(t, res, rec.finished)
	assert.Len(t, rec.evaluated, 12)

	for i, g := range res.GenerationHistory {
		assert.Equal(t, i+1, g.Generation)
		if i > 0 {
			assert.GreaterOrEqual(t, g.BestScore, res.GenerationHistory[i-1].BestScore)
		}
	}

	require.NotEmpty(t, res.BestInputs)
	assert.LessOrEqual(t, len(res.BestInputs), 4)
	for i := 1; i < len(res.BestInputs); i++ {
		assert.GreaterOrEqual(t, res.BestInputs[i-1].Score, res.BestInputs[i].Score)
	}
	assert.Equal(t, res.BestInputs[0].Score, res.GenerationHistory[2].BestScore)

	// each candidate is run once to validate and once to measure
	assert.Equal(t, int64(24), res.Stats.TotalExecutions)
	assert.Equal(t, int64(24), res.Stats.SuccessfulExecutions)
}

func TestRunConverges(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 20
	orc := &fakeOracle{respond: func(int, string) (string, error) {
		return "[1, 2]\n[3, 4]\n[5, 6]\n[7, 8]", nil
	}}
	runner := &fakeRunner{outcome: func(string) executor.Outcome {
		return executor.Outcome{Succeeded: true, ResourceValue: 1000}
	}}

	c := newController(t, cfg, runner, orc, &recorder{})
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, campaign.Converged, c.State())
	assert.Equal(t, api.StatusConverged, res.Status)
	require.NotNil(t, res.ConvergenceGeneration)
	assert.Equal(t, 5, *res.ConvergenceGeneration)
	assert.Equal(t, 5, res.TotalIterations)
}

func TestRunDropsMalformedInputs(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 2
	cfg.Campaign.InputsPerIteration = 2
	cfg.Campaign.MaxTopupRounds = 0
	orc := &fakeOracle{respond: func(int, string) (string, error) {
		return "[1, 2]\nbad input\n[3, 4, 5]", nil
	}}
	runner := &fakeRunner{outcome: func(input string) executor.Outcome {
		if strings.HasPrefix(input, "bad") {
			return executor.Outcome{ExitCode: 1, Stderr: "parse error", IsInputFormatError: true}
		}
		return executor.Outcome{Succeeded: true, ResourceValue: int64(len(input))}
	}}
	rec := &recorder{}

	c := newController(t, cfg, runner, orc, rec)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"bad input", "bad input"}, rec.rejected)
	// a rejected string is not executed again later in the campaign
	assert.Equal(t, 1, runner.Calls("bad input"))
	for _, e := range rec.evaluated {
		assert.NotEqual(t, "bad input", e.Input)
	}
	for _, b := range res.BestInputs {
		assert.NotEqual(t, "bad input", b.Input)
	}
	assert.Equal(t, 1, res.GenerationHistory[0].NumRejected)
	assert.Equal(t, int64(2), res.Stats.FormatRejections)
}

func TestRunRepairsTrimmableInputs(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 1
	cfg.Campaign.InputsPerIteration = 1
	cfg.Validation.Repair = campaign.RepairTrim
	orc := &fakeOracle{respond: func(int, string) (string, error) {
		return `"[3, 2, 1]"`, nil
	}}
	runner := &fakeRunner{outcome: func(input string) executor.Outcome {
		if strings.HasPrefix(input, `"`) {
			return executor.Outcome{ExitCode: 1, Stderr: "invalid literal", IsInputFormatError: true}
		}
		return executor.Outcome{Succeeded: true, ResourceValue: 100}
	}}
	rec := &recorder{}

	c := newController(t, cfg, runner, orc, rec)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{`"[3, 2, 1]"`}, rec.rejected)
	require.Len(t, res.BestInputs, 1)
	assert.Equal(t, "[3, 2, 1]", res.BestInputs[0].Input)
	assert.Equal(t, 3, res.BestInputs[0].Size)
	assert.Equal(t, 0, res.GenerationHistory[0].NumRejected)
}

func TestRunTopsUpMissingCandidates(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 1
	orc := &fakeOracle{respond: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "[1]\nbad 1\n[1, 2]\nbad 2", nil
		}
		return "[1, 2, 3]\n[1, 2, 3, 4]", nil
	}}
	runner := &fakeRunner{outcome: func(input string) executor.Outcome {
		if strings.HasPrefix(input, "bad") {
			return executor.Outcome{ExitCode: 1, IsInputFormatError: true}
		}
		return executor.Outcome{Succeeded: true, ResourceValue: int64(len(input))}
	}}
	rec := &recorder{}

	c := newController(t, cfg, runner, orc, rec)
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	prompts := orc.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Generate 4 diverse initial test inputs with sizes: [2, 4, 6, 8].")
	assert.Equal(t, "Generate 2 more inputs with target sizes: [2, 4, 6, 8]:", prompts[1])
	assert.Len(t, rec.evaluated, 4)
}

func TestRunBoundsTopupRounds(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 1
	cfg.Campaign.MaxTopupRounds = 2
	orc := &fakeOracle{respond: func(call int, prompt string) (string, error) {
		return fmt.Sprintf("bad %d", call), nil
	}}
	runner := &fakeRunner{outcome: func(string) executor.Outcome {
		return executor.Outcome{ExitCode: 1, IsInputFormatError: true}
	}}

	c := newController(t, cfg, runner, orc, &recorder{})
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, orc.Prompts(), 3)
	assert.Empty(t, res.BestInputs)
	assert.Equal(t, 3, res.GenerationHistory[0].NumRejected)
	assert.Equal(t, 0.0, res.GenerationHistory[0].BestScore)
}

func TestRunUsesPreviousBestInLaterPrompts(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 2
	orc := growingOracle(4)

	c := newController(t, cfg, &fakeRunner{}, orc, &recorder{})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	prompts := orc.Prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "Best inputs so far")
	assert.Contains(t, prompts[1], "Best inputs so far")
	assert.Contains(t, prompts[1], "| Size: ")
}

func TestRunFallsBackWhenOracleFails(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 2
	cfg.Campaign.MaxTopupRounds = 0
	orc := &fakeOracle{respond: func(int, string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	rec := &recorder{}

	c := newController(t, cfg, &fakeRunner{}, orc, rec)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalIterations)
	assert.Equal(t, int64(2), res.Stats.OracleFailures)
	require.Len(t, rec.evaluated, 8)
	assert.Equal(t, oracle.FallbackCandidates(4)[0], rec.evaluated[0].Input)
}

func TestRunContainsPanickingRunner(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 1
	cfg.Campaign.InputsPerIteration = 2
	orc := &fakeOracle{respond: func(int, string) (string, error) {
		return "[boom]\n[1, 2, 3]", nil
	}}
	runner := &fakeRunner{outcome: func(input string) executor.Outcome {
		if input == "[boom]" {
			panic("runner exploded")
		}
		return executor.Outcome{Succeeded: true, ResourceValue: 50}
	}}
	rec := &recorder{}

	c := newController(t, cfg, runner, orc, rec)
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.evaluated, 2)
	boom := rec.evaluated[0]
	assert.Equal(t, "[boom]", boom.Input)
	assert.Equal(t, 0.0, boom.Score)
	require.NotNil(t, boom.Error)
	assert.Contains(t, *boom.Error, "runner exploded")
	assert.Nil(t, rec.evaluated[1].Error)
}

func TestRunCancelledBetweenGenerations(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 10
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onFinish: func(r api.GenerationRecord) {
		if r.Generation == 2 {
			cancel()
		}
	}}

	c := newController(t, cfg, &fakeRunner{}, growingOracle(4), rec)
	res, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, res)
	assert.Equal(t, campaign.Cancelled, c.State())
	assert.Equal(t, api.StatusCancelled, res.Status)
	assert.Equal(t, 2, res.TotalIterations)
	assert.NotEmpty(t, res.BestInputs)
	assert.ErrorIs(t, rec.finishErr, context.Canceled)
}

func TestRunOnlyOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 1
	c := newController(t, cfg, &fakeRunner{}, growingOracle(4), &recorder{})

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.ErrorIs(t, err, campaign.ErrAlreadyStarted)
}

func TestNewRejectsUnsupportedMetric(t *testing.T) {
	spec, err := inputspec.Parse([]byte(intListSpec), nil)
	require.NoError(t, err)

	_, err = campaign.New(testConfig(), api.CampaignRequest{Program: "./t", Metric: "wall_time"}, campaign.Deps{
		Runner: &fakeRunner{},
		Oracle: growingOracle(1),
		Spec:   spec,
	})
	require.ErrorIs(t, err, scorer.ErrUnsupportedMetric)
}

func TestNewRejectsBrokenPromptOverride(t *testing.T) {
	spec, err := inputspec.Parse([]byte(intListSpec), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Prompts.Generation = "{{.NoSuchField}}"
	_, err = campaign.New(cfg, api.CampaignRequest{Program: "./t"}, campaign.Deps{
		Runner: &fakeRunner{},
		Oracle: growingOracle(1),
		Spec:   spec,
	})
	require.Error(t, err)
}

func TestRunAllCandidatesRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Campaign.MaxIterations = 7
	runner := &fakeRunner{outcome: func(string) executor.Outcome {
		return executor.Outcome{ExitCode: 1, Stderr: "ValueError: bad list", IsInputFormatError: true}
	}}
	rec := &recorder{}
	c := newController(t, cfg, runner, growingOracle(4), rec)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.BestInputs)
	assert.Empty(t, rec.evaluated)
	assert.Equal(t, api.StatusConverged, res.Status)
	require.NotNil(t, res.ConvergenceGeneration)
	assert.Equal(t, 5, *res.ConvergenceGeneration)
	require.Len(t, res.GenerationHistory, 5)
	for _, g := range res.GenerationHistory {
		assert.Equal(t, 0.0, g.BestScore)
		assert.Equal(t, 0, g.NumInputs)
		assert.Positive(t, g.NumRejected)
	}
	assert.Zero(t, res.Stats.SuccessfulExecutions)
}
