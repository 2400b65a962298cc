package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/programme-lv/pathogen/internal/perf"
	"github.com/urfave/cli/v3"
)

const trialProgram = "/bin/true"

type health int

const (
	healthOk health = iota
	healthWarn
	healthError
)

func (h health) String() string {
	switch h {
	case healthOk:
		return "OKAY"
	case healthWarn:
		return "WARN"
	}
	return "ERROR"
}

type feedbackRow struct {
	unit    string
	health  health
	message string
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "check that perf, the configuration and the oracle are usable",
		Action: checkAction,
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	var feedback []feedbackRow
	cfg, path, err := loadConfig(cmd, logger)
	switch {
	case err != nil:
		feedback = append(feedback, feedbackRow{unit: "Config", health: healthError, message: err.Error()})
	case path == "":
		feedback = append(feedback, feedbackRow{unit: "Config", health: healthOk, message: "built-in defaults"})
	default:
		feedback = append(feedback, feedbackRow{unit: "Config", health: healthOk, message: path})
	}

	perfRow, p := ensurePerfOk(cfg.Executor.PerfPath, cfg.Executor.Event)
	feedback = append(feedback, perfRow)
	if p != nil {
		feedback = append(feedback, ensureMeasurementOk(ctx, p))
	}
	feedback = append(feedback, ensureOracleOk(cfg.Oracle.Provider))

	outputFeedback(feedback)
	for _, row := range feedback {
		if row.health == healthError {
			return cli.Exit("", 1)
		}
	}
	return nil
}

func ensurePerfOk(path, event string) (feedbackRow, *perf.Perf) {
	p, err := perf.New(path, event)
	if err != nil {
		return feedbackRow{unit: "perf", health: healthError, message: err.Error()}, nil
	}
	return feedbackRow{unit: "perf", health: healthOk, message: p.Version()}, p
}

// ensureMeasurementOk counts the instructions of a program that does nothing.
// Zero means perf runs but cannot read the counter.
func ensureMeasurementOk(ctx context.Context, p *perf.Perf) feedbackRow {
	unit := fmt.Sprintf("%s (%s)", trialProgram, p.Event())
	exec := executor.New(p, executor.Options{Timeout: 10 * time.Second})
	out, err := exec.Execute(ctx, trialProgram, "")
	switch {
	case err != nil:
		return feedbackRow{unit: unit, health: healthError, message: err.Error()}
	case !out.Succeeded:
		return feedbackRow{unit: unit, health: healthError, message: fmt.Sprintf("exit code %d: %s", out.ExitCode, out.Stderr)}
	case out.ResourceValue == 0:
		return feedbackRow{unit: unit, health: healthWarn,
			message: "no instructions counted, check kernel.perf_event_paranoid"}
	}
	return feedbackRow{unit: unit, health: healthOk, message: fmt.Sprintf("%d instructions", out.ResourceValue)}
}

func ensureOracleOk(provider string) feedbackRow {
	unit := "oracle " + provider
	info, err := oracle.Lookup(provider)
	if err != nil {
		return feedbackRow{unit: unit, health: healthError, message: err.Error()}
	}
	if !info.Available() {
		return feedbackRow{unit: unit, health: healthWarn,
			message: fmt.Sprintf("%s is not set, campaigns will use fallback candidates", info.APIKeyEnv)}
	}
	return feedbackRow{unit: unit, health: healthOk, message: "model " + info.DefaultModel}
}

func outputFeedback(feedback []feedbackRow) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Unit", "Health", "Message"})
	for _, row := range feedback {
		t.AppendRow(table.Row{row.unit, row.health.String(), row.message})
	}
	t.SetStyle(table.StyleColoredDark)
	t.SetColumnConfigs([]table.ColumnConfig{
		{
			Name:        "Health",
			Transformer: healthColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}

var healthColor = text.Transformer(func(s interface{}) string {
	switch s.(string) {
	case "OKAY":
		return text.FgHiGreen.Sprint(s)
	case "WARN":
		return text.FgHiYellow.Sprint(s)
	case "ERROR":
		return text.FgHiRed.Sprint(s)
	}
	return fmt.Sprint(s)
})
