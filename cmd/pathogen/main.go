package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/programme-lv/pathogen/internal/config"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "pathogen",
		Usage: "search for inputs that make a program execute as many instructions as possible",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML configuration file (default: $XDG_CONFIG_HOME/pathogen/config.toml)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "`.env` files with oracle API keys",
				Value: []string{".env"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
			oraclesCommand(),
			showCommand(),
			behaveCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newLogger(cmd *cli.Command) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	if cmd.Bool("verbose") && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    color.NoColor,
	}))
	slog.SetDefault(logger)
	return logger, nil
}

// loadConfig reads the configuration file if one is found and loads API keys
// from the .env files.
func loadConfig(cmd *cli.Command, logger *slog.Logger) (config.Config, string, error) {
	if err := config.LoadEnv(cmd.StringSlice("env-file")...); err != nil {
		return config.Config{}, "", err
	}

	path := config.Find(cmd.String("config"))
	if path == "" {
		logger.Debug("no configuration file found, using defaults")
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, err
	}
	logger.Debug("loaded configuration", slog.String("path", path))
	return cfg, path, nil
}
