package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/pathogen/internal/behave"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/perf"
	"github.com/urfave/cli/v3"
)

func behaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "behave",
		Usage:     "run outcome classification scenarios against the configured perf and indicators",
		ArgsUsage: "SCENARIOS_TOML",
		Action:    behaveAction,
	}
}

func behaveAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return cli.Exit("usage: pathogen behave SCENARIOS_TOML", 2)
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}

	cases, err := behave.Parse(cmd.Args().First())
	if err != nil {
		return err
	}
	p, err := perf.New(cfg.Executor.PerfPath, cfg.Executor.Event)
	if err != nil {
		return err
	}
	exec := executor.New(p, executor.Options{
		Timeout:    cfg.Executor.Timeout(),
		Classifier: executor.NewSubstringClassifier(cfg.Executor.FormatErrorIndicators...),
		Logger:     logger,
	})

	dir, err := os.MkdirTemp("", "pathogen-behave-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Scenario", "Health", "Message"})
	failed := 0
	for _, c := range cases {
		health, msg := runScenario(ctx, exec, dir, c)
		if health == healthError {
			failed++
		}
		t.AppendRow(table.Row{c.Name, health.String(), msg})
	}
	t.SetStyle(table.StyleColoredDark)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Health", Transformer: healthColor, Align: text.AlignCenter},
	})
	t.Render()

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d scenarios failed", failed, len(cases)), 1)
	}
	return nil
}

func runScenario(ctx context.Context, exec *executor.Executor, dir string, c behave.Case) (health, string) {
	prog, err := c.WriteProgram(dir)
	if err != nil {
		return healthError, err.Error()
	}
	out, err := exec.Execute(ctx, prog, c.Input)
	if err != nil {
		return healthError, err.Error()
	}
	if diffs := c.Verify(out); len(diffs) > 0 {
		return healthError, strings.Join(diffs, "\n")
	}
	return healthOk, fmt.Sprintf("exit=%d instructions=%d", out.ExitCode, out.ResourceValue)
}
