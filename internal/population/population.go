package population

import (
	"slices"
	"sync"
)

// Candidate is an input string together with the score it earned.
type Candidate struct {
	Input string  `json:"input"`
	Score float64 `json:"score"`
}

// Dedup keeps one entry per input, with the highest score seen for it.
// Entries stay in first-seen order.
func Dedup(cands []Candidate) []Candidate {
	index := make(map[string]int, len(cands))
	res := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if i, ok := index[c.Input]; ok {
			if c.Score > res[i].Score {
				res[i].Score = c.Score
			}
			continue
		}
		index[c.Input] = len(res)
		res = append(res, c)
	}
	return res
}

// SortDesc sorts by descending score, keeping the relative order of ties.
func SortDesc(cands []Candidate) {
	slices.SortStableFunc(cands, func(a, b Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
}

// Top returns up to n of the best candidates, without modifying cands.
func Top(cands []Candidate, n int) []Candidate {
	res := slices.Clone(cands)
	SortDesc(res)
	if n >= 0 && len(res) > n {
		res = res[:n]
	}
	return res
}

// Average score of cands, 0 for an empty slice.
func Average(cands []Candidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cands {
		sum += c.Score
	}
	return sum / float64(len(cands))
}

// Pool is the elite pool carried between generations. It is kept sorted by
// descending score and never grows beyond its capacity.
type Pool struct {
	mu       sync.RWMutex
	capacity int
	members  []Candidate
}

func NewPool(eliteSize int) *Pool {
	return &Pool{capacity: 2 * eliteSize}
}

func (p *Pool) Capacity() int {
	return p.capacity
}

// Replace sets the pool content to cands, sorted and truncated.
func (p *Pool) Replace(cands []Candidate) {
	members := Dedup(cands)
	SortDesc(members)
	if len(members) > p.capacity {
		members = members[:p.capacity]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = members
}

// Members returns a copy of the pool content, best first.
func (p *Pool) Members() []Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.members)
}

func (p *Pool) Best() (Candidate, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.members) == 0 {
		return Candidate{}, false
	}
	return p.members[0], true
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}
