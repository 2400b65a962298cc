package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/programme-lv/pathogen/internal/perf"
)

const (
	DefaultTimeout = 30 * time.Second

	// how long Wait keeps reading pipes after the process group was killed
	waitDelay = 2 * time.Second
	// perf output excerpt length in parse warnings
	excerptLen = 200
)

type Options struct {
	Timeout    time.Duration
	Classifier Classifier
	Logger     *slog.Logger
}

// Executor runs a target program once per call under "perf stat".
// It holds no per-call state and is safe for concurrent use.
type Executor struct {
	perf       *perf.Perf
	timeout    time.Duration
	classifier Classifier
	logger     *slog.Logger
}

func New(p *perf.Perf, opts Options) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Classifier == nil {
		opts.Classifier = NewSubstringClassifier()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{
		perf:       p,
		timeout:    opts.Timeout,
		classifier: opts.Classifier,
		logger:     opts.Logger,
	}
}

func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute feeds input to program's stdin and counts the instructions it
// retires. A returned error means the run could not be carried out at all
// or ctx was cancelled; everything the program itself does is in Outcome.
func (e *Executor) Execute(ctx context.Context, program string, input string) (Outcome, error) {
	counterPath, err := perf.NewCounterFilePath()
	if err != nil {
		return Outcome{ExitCode: -1}, fmt.Errorf("failed to create counter file: %w", err)
	}
	defer os.Remove(counterPath)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.perf.Path(), e.perf.StatArgs(counterPath, program)...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return Outcome{ExitCode: -1}, ctx.Err()
	}
	if killedByTimeout(runCtx.Err(), cmd.ProcessState) {
		e.logger.Debug("execution timed out",
			slog.String("program", program),
			slog.Duration("timeout", e.timeout))
		return timedOutOutcome(), nil
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Outcome{ExitCode: -1, Stderr: runErr.Error()},
				fmt.Errorf("failed to run %s under perf: %w", program, runErr)
		}
	}

	outcome := Outcome{
		Succeeded:     cmd.ProcessState.ExitCode() == 0,
		ResourceValue: e.readCounter(counterPath),
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		TimedOut:      false,
		ExitCode:      cmd.ProcessState.ExitCode(),
	}
	outcome.IsInputFormatError = e.classifier.IsFormatError(outcome)

	return outcome, nil
}

// killedByTimeout reports whether the run was cut short by the deadline.
// A program that exited on its own just as the deadline passed keeps its
// result.
func killedByTimeout(runCtxErr error, ps *os.ProcessState) bool {
	if !errors.Is(runCtxErr, context.DeadlineExceeded) {
		return false
	}
	return ps == nil || !ps.Exited()
}

func (e *Executor) readCounter(counterPath string) int64 {
	data, err := os.ReadFile(counterPath)
	if err != nil {
		e.logger.Warn("failed to read perf counter file", slog.Any("error", err))
		return 0
	}
	counter, err := perf.ParseCounter(data, e.perf.Event())
	if err != nil {
		e.logger.Warn("failed to parse instruction count from perf output",
			slog.Any("error", err),
			slog.String("output", excerpt(data)))
		return 0
	}
	if counter.Value < 0 {
		return 0
	}
	return counter.Value
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > excerptLen {
		return s[:excerptLen] + "..."
	}
	return s
}
