package population_test

import (
	"testing"

	"github.com/programme-lv/pathogen/internal/population"
	"github.com/stretchr/testify/assert"
)

type cand = population.Candidate

func TestDedupKeepsHigherScore(t *testing.T) {
	got := population.Dedup([]cand{{"a", 1}, {"b", 5}, {"a", 3}, {"b", 2}})
	assert.Equal(t, []cand{{"a", 3}, {"b", 5}}, got)
}

func TestSortDescIsStable(t *testing.T) {
	cs := []cand{{"x", 1}, {"y", 2}, {"z", 1}, {"w", 2}}
	population.SortDesc(cs)
	assert.Equal(t, []cand{{"y", 2}, {"w", 2}, {"x", 1}, {"z", 1}}, cs)
}

func TestTopDoesNotModifyInput(t *testing.T) {
	cs := []cand{{"x", 1}, {"y", 3}, {"z", 2}}
	top := population.Top(cs, 2)
	assert.Equal(t, []cand{{"y", 3}, {"z", 2}}, top)
	assert.Equal(t, "x", cs[0].Input)
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, population.Average(nil))
	assert.Equal(t, 2.0, population.Average([]cand{{"a", 1}, {"b", 3}}))
}

func TestPoolReplaceCapsAndSorts(t *testing.T) {
	p := population.NewPool(2)
	assert.Equal(t, 4, p.Capacity())

	p.Replace([]cand{{"a", 1}, {"b", 6}, {"c", 3}, {"d", 5}, {"e", 4}, {"c", 2}})

	assert.Equal(t, []cand{{"b", 6}, {"d", 5}, {"e", 4}, {"c", 3}}, p.Members())
	best, ok := p.Best()
	assert.True(t, ok)
	assert.Equal(t, "b", best.Input)
}

func TestPoolEmpty(t *testing.T) {
	p := population.NewPool(3)
	_, ok := p.Best()
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}
