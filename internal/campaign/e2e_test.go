package campaign_test

import (
	"context"
	"testing"
	"time"

	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/campaign"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/executor/exectest"
	"github.com/programme-lv/pathogen/internal/inputspec"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/programme-lv/pathogen/internal/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fake perf counts n*n + 1000 instructions for n input bytes, like an
// in-order scan with quadratic worst case. Growing candidates must never
// lower the best score of the campaign.
func TestCampaignWithRealExecutor(t *testing.T) {
	p, err := perf.New(exectest.FakePerf(t), "instructions:u")
	require.NoError(t, err)
	exec := executor.New(p, executor.Options{Timeout: 5 * time.Second})

	prog := exectest.Program(t, "scan", `input=$(cat)
case "$input" in
  *x*) echo "invalid literal for int()" >&2; exit 1 ;;
esac`)

	spec, err := inputspec.Parse([]byte(intListSpec), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Campaign.MaxIterations = 4
	cfg.Campaign.InputsPerIteration = 3

	rec := &recorder{}
	c, err := campaign.New(cfg, api.CampaignRequest{Program: prog}, campaign.Deps{
		Runner:   exec,
		Oracle:   oracle.NewFallback(),
		Spec:     spec,
		Gatherer: rec,
	})
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, api.StatusExhausted, res.Status)
	assert.Equal(t, "fallback", res.Request.Oracle)
	require.Len(t, res.GenerationHistory, 4)
	for i := 1; i < len(res.GenerationHistory); i++ {
		assert.GreaterOrEqual(t, res.GenerationHistory[i].BestScore, res.GenerationHistory[i-1].BestScore)
	}

	require.Len(t, rec.evaluated, 12)
	first := rec.evaluated[0]
	assert.Equal(t, exectest.FakeInstructions(first.Input), first.ResourceValue)
	assert.Equal(t, float64(first.ResourceValue), first.Score)
	for _, e := range rec.evaluated {
		assert.Equal(t, 0, e.ExitCode)
		assert.False(t, e.TimedOut)
	}

	require.NotEmpty(t, res.BestInputs)
	assert.Equal(t, int64(24), res.Stats.TotalExecutions)
	assert.Equal(t, int64(0), res.Stats.FormatRejections)
}
