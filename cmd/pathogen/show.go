package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/artifact"
	"github.com/programme-lv/pathogen/internal/gatherer"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "print a saved results file",
		ArgsUsage: "RESULTS_FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "history", Usage: "also print the per-generation history"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("usage: pathogen show RESULTS_FILE", 2)
			}
			res, err := artifact.Load(cmd.Args().First())
			if err != nil {
				return err
			}
			printResult(res, cmd.Bool("history"))
			return nil
		},
	}
}

func printResult(res *api.Result, history bool) {
	color.New(color.Bold).Printf("Campaign %s: %s\n", res.CampaignUuid, res.Status)
	fmt.Printf("program:    %s\n", res.Request.Program)
	fmt.Printf("oracle:     %s\n", res.Request.Oracle)
	fmt.Printf("iterations: %d in %.1fs\n", res.TotalIterations, res.TotalTimeSec)
	if res.ConvergenceGeneration != nil {
		fmt.Printf("converged:  generation %d\n", *res.ConvergenceGeneration)
	} else {
		fmt.Println("converged:  no")
	}
	fmt.Printf("executions: %d (%d ok, %d malformed, %d timeouts)\n",
		res.Stats.TotalExecutions, res.Stats.SuccessfulExecutions, res.Stats.FormatRejections, res.Stats.Timeouts)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Score", "Size", "Input"})
	for i, in := range res.BestInputs {
		t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.4f", in.Score), in.Size,
			gatherer.TrimToRect(in.Input, 3, api.MaxStreamTextWidth)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if !history {
		return
	}
	h := table.NewWriter()
	h.SetOutputMirror(os.Stdout)
	h.AppendHeader(table.Row{"Gen", "Best", "Avg", "Inputs", "Rejected", "ms"})
	for _, g := range res.GenerationHistory {
		h.AppendRow(table.Row{g.Generation, fmt.Sprintf("%.4f", g.BestScore), fmt.Sprintf("%.4f", g.AvgScore),
			g.NumInputs, g.NumRejected, g.DurationMs})
	}
	h.SetStyle(table.StyleLight)
	h.Render()
}
