package natsgath

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/programme-lv/pathogen/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.msgs = append(f.msgs, published{subj, data})
	return f.err
}

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestStreamsCampaignEvents(t *testing.T) {
	conn := &fakeConn{}
	g := New(conn, "pathogen.progress", nil)

	g.StartCampaign("uuid-1", api.CampaignRequest{Program: "./qs", Metric: "instruction_count"})
	g.StartGeneration(1, []int{10, 25})
	g.RejectCandidate(1, "[1,", strings.Repeat("x", 200))
	g.EvaluateCandidate(1, api.Evaluation{Input: "[3, 2, 1]", Score: 1})
	g.FinishGeneration(api.GenerationRecord{Generation: 1, BestScore: 1, NumInputs: 1})
	g.FinishCampaign(&api.Result{Status: api.StatusExhausted, TotalIterations: 1,
		BestInputs: []api.ScoredInput{{Input: "[3, 2, 1]", Score: 1}}}, nil)

	require.Len(t, conn.msgs, 6)
	types := []string{}
	for _, m := range conn.msgs {
		assert.Equal(t, "pathogen.progress", m.subject)
		msg := decode(t, m.data)
		assert.Equal(t, "uuid-1", msg["campaign_uuid"])
		types = append(types, msg["msg_type"].(string))
	}
	assert.Equal(t, []string{
		"campaign_start", "generation_start", "candidate_reject",
		"candidate_evaluate", "generation_finish", "campaign_finish",
	}, types)

	reject := decode(t, conn.msgs[2].data)
	assert.Equal(t, strings.Repeat("x", api.MaxStreamTextWidth)+"[...]", reject["stderr"])

	finish := decode(t, conn.msgs[5].data)
	assert.Equal(t, "exhausted", finish["status"])
	assert.Nil(t, finish["error_message"])
	assert.Nil(t, finish["convergence_generation"])
}

func TestFinishCampaignWithError(t *testing.T) {
	conn := &fakeConn{}
	g := New(conn, "s", nil)
	g.FinishCampaign(nil, errors.New("perf missing"))

	require.Len(t, conn.msgs, 1)
	msg := decode(t, conn.msgs[0].data)
	assert.Equal(t, "failed", msg["status"])
	assert.Equal(t, "perf missing", msg["error_message"])
}

func TestPublishErrorIsNotFatal(t *testing.T) {
	conn := &fakeConn{err: errors.New("disconnected")}
	g := New(conn, "s", nil)
	g.StartGeneration(2, nil)
	assert.Len(t, conn.msgs, 1)
}
