package gatherer

import (
	"strings"

	"github.com/programme-lv/pathogen/api"
)

// Gatherer receives campaign progress events. The campaign controller calls
// it from a single goroutine, in event order.
type Gatherer interface {
	StartCampaign(campaignUuid string, req api.CampaignRequest)
	StartGeneration(generation int, targetSizes []int)
	RejectCandidate(generation int, input string, stderr string)
	EvaluateCandidate(generation int, eval api.Evaluation)
	FinishGeneration(record api.GenerationRecord)
	// FinishCampaign is called exactly once; res is nil only when the
	// campaign could not start.
	FinishCampaign(res *api.Result, err error)
}

// Multi forwards every event to each of its gatherers in order.
type Multi []Gatherer

func (m Multi) StartCampaign(campaignUuid string, req api.CampaignRequest) {
	for _, g := range m {
		g.StartCampaign(campaignUuid, req)
	}
}

func (m Multi) StartGeneration(generation int, targetSizes []int) {
	for _, g := range m {
		g.StartGeneration(generation, targetSizes)
	}
}

func (m Multi) RejectCandidate(generation int, input string, stderr string) {
	for _, g := range m {
		g.RejectCandidate(generation, input, stderr)
	}
}

func (m Multi) EvaluateCandidate(generation int, eval api.Evaluation) {
	for _, g := range m {
		g.EvaluateCandidate(generation, eval)
	}
}

func (m Multi) FinishGeneration(record api.GenerationRecord) {
	for _, g := range m {
		g.FinishGeneration(record)
	}
}

func (m Multi) FinishCampaign(res *api.Result, err error) {
	for _, g := range m {
		g.FinishCampaign(res, err)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) StartCampaign(string, api.CampaignRequest) {}
func (Nop) StartGeneration(int, []int) {}
func (Nop) RejectCandidate(int, string, string) {}
func (Nop) EvaluateCandidate(int, api.Evaluation) {}
func (Nop) FinishGeneration(api.GenerationRecord) {}
func (Nop) FinishCampaign(*api.Result, error) {}

// TrimToRect cuts s to at most maxHeight lines of at most maxWidth bytes,
// marking each cut with "[...]".
func TrimToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var res strings.Builder
	for i, line := range lines {
		if i > 0 {
			res.WriteByte('\n')
		}
		if len(line) > maxWidth {
			res.WriteString(line[:maxWidth])
			res.WriteString("[...]")
		} else {
			res.WriteString(line)
		}
	}
	return res.String()
}

// TrimEvaluation applies TrimToRect to the input of eval.
func TrimEvaluation(eval api.Evaluation) api.Evaluation {
	eval.Input = TrimToRect(eval.Input, api.MaxStreamTextHeight, api.MaxStreamTextWidth)
	return eval
}
