package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/urfave/cli/v3"
)

func oraclesCommand() *cli.Command {
	return &cli.Command{
		Name:  "oracles",
		Usage: "list oracle providers and whether their API keys are set",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd, logger)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Provider", "Default model", "API key", "Available", ""})
			for _, p := range oracle.Providers() {
				key := p.APIKeyEnv
				if key == "" {
					key = "-"
				}
				available := "no"
				if p.Available() {
					available = "yes"
				}
				selected := ""
				if p.Name == cfg.Oracle.Provider {
					selected = "configured"
				}
				t.AppendRow(table.Row{p.Name, p.DefaultModel, key, available, selected})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}
