package campaign

import "github.com/programme-lv/pathogen/api"

// HasConverged reports whether the best score stayed exactly the same over the
// last window generations.
func HasConverged(history []api.GenerationRecord, window int) bool {
	if window < 1 || len(history) < window {
		return false
	}
	recent := history[len(history)-window:]
	for _, rec := range recent[1:] {
		if rec.BestScore != recent[0].BestScore {
			return false
		}
	}
	return true
}
