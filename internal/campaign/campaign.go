package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/config"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/gatherer"
	"github.com/programme-lv/pathogen/internal/inputspec"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/programme-lv/pathogen/internal/population"
	"github.com/programme-lv/pathogen/internal/scorer"
	"github.com/programme-lv/pathogen/internal/selector"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrAlreadyStarted = errors.New("campaign already started")

// Runner measures one execution of program on input. *executor.Executor
// implements it.
type Runner interface {
	Execute(ctx context.Context, program string, input string) (executor.Outcome, error)
}

type Deps struct {
	Runner   Runner
	Oracle   oracle.Oracle
	Spec     *inputspec.Spec
	Gatherer gatherer.Gatherer
	Logger   *slog.Logger
}

// Controller runs a single campaign. It owns the score history and the
// elite pool of that campaign and cannot be reused.
type Controller struct {
	cfg       config.CampaignConfig
	validCfg  config.ValidationConfig
	effective config.Config
	req       api.CampaignRequest

	runner Runner
	oracle oracle.Oracle
	spec   *inputspec.Spec
	gath   gatherer.Gatherer
	logger *slog.Logger

	prompts *Prompts
	system  string
	repair  Repair

	scorer   *scorer.Scorer
	selector *selector.Selector
	pool     *population.Pool
	// inputs the target rejected as malformed during this campaign
	rejected *xsync.MapOf[string, struct{}]
	stats    *stats

	mu    sync.Mutex
	state State
}

func New(cfg config.Config, req api.CampaignRequest, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Runner == nil || deps.Oracle == nil || deps.Spec == nil {
		return nil, errors.New("campaign needs a runner, an oracle and an input specification")
	}
	if req.Program == "" {
		return nil, errors.New("campaign needs a target program")
	}
	if req.Metric == "" {
		req.Metric = cfg.Scoring.Metric
	}
	if err := scorer.ValidateMetric(req.Metric); err != nil {
		return nil, err
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = cfg.Campaign.MaxIterations
	}
	if req.Oracle == "" {
		req.Oracle = deps.Oracle.Name()
	}
	if req.InputSpecName == "" {
		req.InputSpecName = deps.Spec.Name
	}

	policy, err := scorer.ParseTimeoutPolicy(cfg.Scoring.TimeoutPolicy)
	if err != nil {
		return nil, err
	}
	repair, err := RepairByName(cfg.Validation.Repair)
	if err != nil {
		return nil, err
	}

	var seed int64
	switch {
	case req.Seed != nil:
		seed = *req.Seed
	case cfg.Campaign.Seed != nil:
		seed = *cfg.Campaign.Seed
	default:
		seed = time.Now().UnixNano()
	}
	req.Seed = &seed

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gath := deps.Gatherer
	if gath == nil {
		gath = gatherer.Nop{}
	}

	c := &Controller{
		cfg:       cfg.Campaign,
		validCfg:  cfg.Validation,
		effective: cfg,
		req:       req,
		runner:    deps.Runner,
		oracle:    deps.Oracle,
		spec:      deps.Spec,
		gath:      gath,
		logger:    logger,
		repair:    repair,
		scorer:    scorer.New(policy),
		selector:  selector.NewSeeded(cfg.Campaign.EliteSize, cfg.Campaign.TournamentSize, seed),
		pool:      population.NewPool(cfg.Campaign.EliteSize),
		rejected:  xsync.NewMapOf[string, struct{}](),
		stats:     newStats(),
		state:     Idle,
	}

	c.prompts, err = NewPrompts(cfg.Prompts)
	if err != nil {
		return nil, err
	}
	if err := c.renderSystemPrompt(); err != nil {
		return nil, err
	}
	return c, nil
}

// renderSystemPrompt renders the system prompt once and dry-runs the other
// templates so that broken overrides fail before the campaign starts.
func (c *Controller) renderSystemPrompt() error {
	var err error
	c.system, err = c.prompts.System(c.promptData())
	if err != nil {
		return err
	}
	d := c.promptData()
	d.NumInputs = c.cfg.InputsPerIteration
	d.TargetSizes = c.cfg.SizeProgression.TargetSizes(c.cfg.InputsPerIteration)
	d.PreviousBest = inputspec.NoPreviousBest
	for _, render := range []func(PromptData) (string, error){
		c.prompts.Initial, c.prompts.Generation, c.prompts.Topup,
	} {
		if _, err := render(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) Request() api.CampaignRequest {
	return c.req
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Controller) start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return false
	}
	c.state = Running
	return true
}

// Run executes the generation loop until convergence, the iteration limit or
// cancellation of ctx. A cancelled campaign still returns the progress made
// so far, together with ctx's error.
func (c *Controller) Run(ctx context.Context) (*api.Result, error) {
	if !c.start() {
		return nil, ErrAlreadyStarted
	}

	campaignUuid := uuid.NewString()
	startedAt := time.Now()
	c.gath.StartCampaign(campaignUuid, c.req)
	c.logger.Info("starting campaign",
		slog.String("campaign", campaignUuid),
		slog.String("program", c.req.Program),
		slog.String("oracle", c.req.Oracle),
		slog.Int("max_iterations", c.req.MaxIterations),
		slog.Int("inputs_per_iteration", c.cfg.InputsPerIteration),
		slog.Int64("seed", *c.req.Seed))

	var history []api.GenerationRecord
	var runErr error
	final := Exhausted
	convergedAt := -1

	for gen := 1; gen <= c.req.MaxIterations; gen++ {
		if err := ctx.Err(); err != nil {
			final, runErr = Cancelled, err
			break
		}

		rec, err := c.runGeneration(ctx, gen)
		if err != nil {
			final, runErr = Cancelled, err
			break
		}
		history = append(history, rec)
		c.gath.FinishGeneration(rec)
		c.logger.Info("generation finished",
			slog.Int("generation", gen),
			slog.Float64("best_score", rec.BestScore),
			slog.Float64("avg_score", rec.AvgScore),
			slog.Int("selected", rec.NumInputs),
			slog.Int("rejected", rec.NumRejected))

		if HasConverged(history, c.cfg.ConvergenceWindow) {
			final, convergedAt = Converged, gen
			c.logger.Info("campaign converged", slog.Int("generation", gen))
			break
		}
	}

	c.setState(final)
	res := c.result(campaignUuid, startedAt, history, convergedAt, final)
	c.gath.FinishCampaign(res, runErr)
	return res, runErr
}

func (c *Controller) runGeneration(ctx context.Context, gen int) (api.GenerationRecord, error) {
	startedAt := time.Now()
	sizes := SizeList(c.cfg.SizeProgression.TargetSizes(c.cfg.InputsPerIteration))
	c.gath.StartGeneration(gen, []int(sizes))
	c.logger.Debug("starting generation",
		slog.Int("generation", gen),
		slog.String("target_sizes", sizes.String()))

	candidates, numRejected, err := c.generate(ctx, gen, sizes)
	if err != nil {
		return api.GenerationRecord{}, err
	}

	results, err := c.evaluate(ctx, gen, candidates)
	if err != nil {
		return api.GenerationRecord{}, err
	}

	selected := c.selector.SelectBest(results, c.pool.Members())
	c.pool.Replace(selected)

	var bestScore float64
	if best, ok := c.pool.Best(); ok {
		bestScore = best.Score
	}
	return api.GenerationRecord{
		Generation:  gen,
		BestScore:   bestScore,
		AvgScore:    population.Average(selected),
		NumInputs:   len(selected),
		NumRejected: numRejected,
		DurationMs:  time.Since(startedAt).Milliseconds(),
	}, nil
}

// generate asks the oracle for candidates and keeps those the target accepts,
// topping up for a bounded number of rounds when too few survive.
func (c *Controller) generate(ctx context.Context, gen int, sizes SizeList) ([]string, int, error) {
	want := c.cfg.InputsPerIteration
	var valid []string
	numRejected := 0
	seen := mapset.NewThreadUnsafeSet[string]()

	for round := 0; round <= c.cfg.MaxTopupRounds && len(valid) < want; round++ {
		need := want - len(valid)
		raw, err := c.ask(ctx, gen, round, need, sizes)
		if err != nil {
			return nil, numRejected, err
		}

		fresh := make([]string, 0, len(raw))
		for _, in := range raw {
			if seen.Add(in) {
				fresh = append(fresh, in)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		accepted, dropped, err := c.validate(ctx, gen, fresh)
		if err != nil {
			return nil, numRejected, err
		}
		for _, in := range accepted {
			if !slices.Contains(valid, in) {
				valid = append(valid, in)
			}
		}
		numRejected += dropped
	}

	if len(valid) < want {
		c.logger.Warn("fewer valid candidates than requested",
			slog.Int("generation", gen),
			slog.Int("valid", len(valid)),
			slog.Int("requested", want))
	}
	if len(valid) > want {
		valid = valid[:want]
	}
	return valid, numRejected, nil
}

// ask returns parsed candidates from the oracle, or the fallback set when the
// oracle fails or answers with nothing usable.
func (c *Controller) ask(ctx context.Context, gen int, round int, need int, sizes SizeList) ([]string, error) {
	resp, err := c.query(ctx, gen, round, need, sizes)
	if err == nil {
		if cands := oracle.ParseCandidates(resp); len(cands) > 0 {
			return cands, nil
		}
		err = errors.New("response contains no candidates")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.stats.oracleFailures.Inc()
	c.logger.Warn("oracle failed, using fallback candidates",
		slog.String("oracle", c.oracle.Name()),
		slog.Int("generation", gen),
		slog.Any("error", err))
	return oracle.FallbackCandidates(need), nil
}

func (c *Controller) query(ctx context.Context, gen int, round int, need int, sizes SizeList) (string, error) {
	d := c.promptData()
	d.NumInputs = need
	d.TargetSizes = sizes

	var prompt string
	var err error
	switch {
	case round > 0:
		prompt, err = c.prompts.Topup(d)
	case gen == 1:
		prompt, err = c.prompts.Initial(d)
	default:
		d.PreviousBest = c.spec.FormatPreviousBest(c.pool.Members(), c.cfg.PromptTopN)
		prompt, err = c.prompts.Generation(d)
	}
	if err != nil {
		return "", err
	}
	return c.oracle.Generate(ctx, prompt)
}

func (c *Controller) promptData() PromptData {
	return PromptData{
		PromptContext: c.spec.PromptContext(),
		Program:       c.req.Program,
		Metric:        c.req.Metric,
		System:        c.system,
	}
}

// execute runs one input through the runner. A panicking runner is reported
// as an error for that input only.
func (c *Controller) execute(ctx context.Context, input string) (out executor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = executor.Outcome{ExitCode: -1}, fmt.Errorf("execution panicked: %v", r)
		}
	}()

	out, err = c.runner.Execute(ctx, c.req.Program, input)
	if err == nil {
		c.stats.recordRun(out)
	}
	return out, err
}

func (c *Controller) result(campaignUuid string, startedAt time.Time, history []api.GenerationRecord, convergedAt int, final State) *api.Result {
	finishedAt := time.Now()

	best := population.Top(c.pool.Members(), c.cfg.ReportTopN)
	bestInputs := make([]api.ScoredInput, 0, len(best))
	for _, b := range best {
		bestInputs = append(bestInputs, api.ScoredInput{
			Input: b.Input,
			Score: b.Score,
			Size:  c.spec.Size(b.Input),
		})
	}

	var convergence *int
	if convergedAt > 0 {
		convergence = &convergedAt
	}
	if history == nil {
		history = []api.GenerationRecord{}
	}

	return &api.Result{
		CampaignUuid:          campaignUuid,
		Request:               c.req,
		Status:                final.status(),
		BestInputs:            bestInputs,
		GenerationHistory:     history,
		TotalIterations:       len(history),
		TotalTimeSec:          finishedAt.Sub(startedAt).Seconds(),
		ConvergenceGeneration: convergence,
		Stats:                 c.stats.snapshot(),
		StartTime:             startedAt.Format(time.RFC3339),
		FinishTime:            finishedAt.Format(time.RFC3339),
		Config:                c.effective,
	}
}
