package gatherer_test

import (
	"errors"
	"testing"

	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/gatherer"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []string
}

func (r *recorder) StartCampaign(string, api.CampaignRequest) { r.events = append(r.events, "start") }
func (r *recorder) StartGeneration(int, []int) { r.events = append(r.events, "gen") }
func (r *recorder) RejectCandidate(int, string, string) { r.events = append(r.events, "reject") }
func (r *recorder) EvaluateCandidate(int, api.Evaluation) { r.events = append(r.events, "eval") }
func (r *recorder) FinishGeneration(api.GenerationRecord) { r.events = append(r.events, "genfin") }
func (r *recorder) FinishCampaign(*api.Result, error) { r.events = append(r.events, "fin") }

func TestMultiForwardsInOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := gatherer.Multi{a, gatherer.Nop{}, b}

	m.StartCampaign("u", api.CampaignRequest{})
	m.StartGeneration(1, nil)
	m.RejectCandidate(1, "", "")
	m.EvaluateCandidate(1, api.Evaluation{})
	m.FinishGeneration(api.GenerationRecord{})
	m.FinishCampaign(nil, errors.New("x"))

	want := []string{"start", "gen", "reject", "eval", "genfin", "fin"}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}

func TestTrimToRect(t *testing.T) {
	assert.Equal(t, "", gatherer.TrimToRect("", 2, 3))
	assert.Equal(t, "ab", gatherer.TrimToRect("ab", 2, 3))
	assert.Equal(t, "abc[...]", gatherer.TrimToRect("abcdef", 2, 3))
	assert.Equal(t, "a\nb\n[...]", gatherer.TrimToRect("a\nb\nc", 2, 3))
}
