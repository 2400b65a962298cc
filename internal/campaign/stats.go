package campaign

import (
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/puzpuzpuz/xsync/v3"
)

// stats is updated concurrently by validation and evaluation workers.
type stats struct {
	executions     *xsync.Counter
	successes      *xsync.Counter
	rejections     *xsync.Counter
	timeouts       *xsync.Counter
	oracleFailures *xsync.Counter
}

func newStats() *stats {
	return &stats{
		executions:     xsync.NewCounter(),
		successes:      xsync.NewCounter(),
		rejections:     xsync.NewCounter(),
		timeouts:       xsync.NewCounter(),
		oracleFailures: xsync.NewCounter(),
	}
}

func (s *stats) recordRun(out executor.Outcome) {
	s.executions.Inc()
	if out.Succeeded {
		s.successes.Inc()
	}
	if out.TimedOut {
		s.timeouts.Inc()
	}
}

func (s *stats) snapshot() api.Stats {
	return api.Stats{
		TotalExecutions:      s.executions.Value(),
		SuccessfulExecutions: s.successes.Value(),
		FormatRejections:     s.rejections.Value(),
		Timeouts:             s.timeouts.Value(),
		OracleFailures:       s.oracleFailures.Value(),
	}
}
