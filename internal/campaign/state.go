package campaign

import "github.com/programme-lv/pathogen/api"

type State int

const (
	Idle State = iota
	Running
	Converged
	Exhausted
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s State) status() api.CampaignStatus {
	switch s {
	case Converged:
		return api.StatusConverged
	case Exhausted:
		return api.StatusExhausted
	case Cancelled:
		return api.StatusCancelled
	}
	return api.StatusFailed
}
