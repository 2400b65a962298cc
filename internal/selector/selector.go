package selector

import (
	"math/rand"
	"sync"

	"github.com/programme-lv/pathogen/internal/population"
)

const DefaultTournamentSize = 3

// Selector chooses which candidates survive into the next generation:
// the best eliteSize unconditionally, the rest by tournament.
type Selector struct {
	eliteSize      int
	tournamentSize int

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Selector whose tournaments draw from rng.
// A nil rng is seeded from the clock.
func New(eliteSize int, tournamentSize int, rng *rand.Rand) *Selector {
	if tournamentSize <= 0 {
		tournamentSize = DefaultTournamentSize
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Selector{
		eliteSize:      max(0, eliteSize),
		tournamentSize: tournamentSize,
		rng:            rng,
	}
}

// NewSeeded is New with a deterministic source.
func NewSeeded(eliteSize int, tournamentSize int, seed int64) *Selector {
	return New(eliteSize, tournamentSize, rand.New(rand.NewSource(seed)))
}

func (s *Selector) EliteSize() int {
	return s.eliteSize
}

// SelectBest merges current with previous, keeps the top eliteSize and fills
// up to len(current)-eliteSize further slots by tournament over the rest.
// The result has unique inputs and is sorted by descending score.
func (s *Selector) SelectBest(current []population.Candidate, previous []population.Candidate) []population.Candidate {
	all := make([]population.Candidate, 0, len(current)+len(previous))
	all = append(all, current...)
	all = append(all, previous...)

	unique := population.Dedup(all)
	population.SortDesc(unique)

	if len(unique) <= s.eliteSize {
		return unique
	}

	selected := make([]population.Candidate, 0, len(current))
	selected = append(selected, unique[:s.eliteSize]...)

	slots := len(current) - s.eliteSize
	if slots <= 0 {
		return selected
	}

	remaining := make([]population.Candidate, len(unique)-s.eliteSize)
	copy(remaining, unique[s.eliteSize:])

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < slots && len(remaining) > 0; i++ {
		w := s.tournament(remaining)
		selected = append(selected, remaining[w])
		remaining = append(remaining[:w], remaining[w+1:]...)
	}

	population.SortDesc(selected)
	return selected
}

// tournament samples up to tournamentSize distinct entries of pool and
// returns the index of the best one.
func (s *Selector) tournament(pool []population.Candidate) int {
	k := min(s.tournamentSize, len(pool))
	contestants := s.rng.Perm(len(pool))[:k]

	best := contestants[0]
	for _, idx := range contestants[1:] {
		if pool[idx].Score > pool[best].Score {
			best = idx
		}
	}
	return best
}
