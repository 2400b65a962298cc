package perf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrUnavailable is returned when the perf tool cannot be executed on this host.
var ErrUnavailable = errors.New("perf tool is not available")

const (
	DefaultPath  = "perf"
	DefaultEvent = "instructions:u"

	probeTimeout = 5 * time.Second
)

// Perf wraps the host "perf stat" command used to count retired instructions
// of a child process.
type Perf struct {
	path    string
	event   string
	version string
}

// New probes the perf binary at path and returns an error wrapping
// ErrUnavailable if it does not answer "--version".
func New(path string, event string) (*Perf, error) {
	if path == "" {
		path = DefaultPath
	}
	if event == "" {
		event = DefaultEvent
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: %s --version: %v\n%s", ErrUnavailable, path, err, installHint)
	}

	return &Perf{
		path:    path,
		event:   event,
		version: strings.TrimSpace(string(out)),
	}, nil
}

const installHint = `install perf to measure instruction counts:
  Ubuntu/Debian: sudo apt-get install linux-perf
  RHEL/CentOS:   sudo yum install perf
  Arch Linux:    sudo pacman -S perf`

func (p *Perf) Path() string {
	return p.path
}

func (p *Perf) Event() string {
	return p.event
}

func (p *Perf) Version() string {
	return p.version
}

// StatArgs returns the arguments for "perf stat" that run program and write
// the counter line in CSV form to counterPath instead of stderr, so the
// program's own stderr stays clean.
func (p *Perf) StatArgs(counterPath string, program string, programArgs ...string) []string {
	args := []string{
		"stat",
		p.EventArg(),
		"-x", ",",
		"-o", counterPath,
		"--",
		program,
	}
	return append(args, programArgs...)
}

func (p *Perf) EventArg() string {
	return fmt.Sprintf("--event=%s", p.event)
}

// NewCounterFilePath reserves a temporary file for perf's counter output.
// The caller removes it after reading.
func NewCounterFilePath() (string, error) {
	file, err := os.CreateTemp("", "perf.*.csv")
	if err != nil {
		return "", err
	}
	err = file.Close()
	if err != nil {
		return "", err
	}
	return file.Name(), nil
}
