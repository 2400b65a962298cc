package executor

// Outcome is the result of a single measured run of the target program.
// A timed out run is never successful and never a format error.
type Outcome struct {
	Succeeded          bool
	ResourceValue      int64
	Stdout             string
	Stderr             string
	TimedOut           bool
	ExitCode           int
	IsInputFormatError bool
}

// Failed reports whether the run neither succeeded nor timed out.
func (o Outcome) Failed() bool {
	return !o.Succeeded && !o.TimedOut
}

func timedOutOutcome() Outcome {
	return Outcome{
		Succeeded:     false,
		ResourceValue: 0,
		Stderr:        "execution timeout",
		TimedOut:      true,
		ExitCode:      -1,
	}
}
