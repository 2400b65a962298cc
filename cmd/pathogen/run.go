package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/programme-lv/pathogen/api"
	"github.com/programme-lv/pathogen/internal/artifact"
	"github.com/programme-lv/pathogen/internal/campaign"
	"github.com/programme-lv/pathogen/internal/config"
	"github.com/programme-lv/pathogen/internal/executor"
	"github.com/programme-lv/pathogen/internal/gatherer"
	"github.com/programme-lv/pathogen/internal/gatherer/natsgath"
	"github.com/programme-lv/pathogen/internal/gatherer/promgath"
	"github.com/programme-lv/pathogen/internal/gatherer/sqsgath"
	"github.com/programme-lv/pathogen/internal/gatherer/termgath"
	"github.com/programme-lv/pathogen/internal/inputspec"
	"github.com/programme-lv/pathogen/internal/oracle"
	"github.com/programme-lv/pathogen/internal/perf"
	"github.com/programme-lv/pathogen/internal/scorer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run a campaign against a target program",
		ArgsUsage: "PROGRAM INPUT_SPEC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "metric", Usage: "resource metric to maximise (default: " + scorer.MetricInstructionCount + ")"},
			&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "maximum number of generations"},
			&cli.StringFlag{Name: "llm", Usage: "oracle provider (see \"pathogen oracles\")"},
			&cli.StringFlag{Name: "model", Usage: "oracle model"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "results file, .zst compresses it"},
			&cli.IntFlag{Name: "seed", Usage: "selection RNG seed"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print every candidate"},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return cli.Exit("usage: pathogen run PROGRAM INPUT_SPEC", 2)
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	program, err := filepath.Abs(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	if _, err := os.Stat(program); err != nil {
		return fmt.Errorf("target program: %w", err)
	}
	specPath := cmd.Args().Get(1)
	spec, err := inputspec.Load(specPath, logger)
	if err != nil {
		return err
	}

	p, err := perf.New(cfg.Executor.PerfPath, cfg.Executor.Event)
	if err != nil {
		return err
	}
	logger.Info("using perf", slog.String("version", p.Version()), slog.String("event", p.Event()))
	exec := executor.New(p, executor.Options{
		Timeout:    cfg.Executor.Timeout(),
		Classifier: executor.NewSubstringClassifier(cfg.Executor.FormatErrorIndicators...),
		Logger:     logger,
	})

	orc, err := oracle.New(ctx, oracle.Config{
		Provider:    cfg.Oracle.Provider,
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Oracle.Temperature,
		MaxTokens:   cfg.Oracle.MaxTokens,
		APIKeyEnv:   cfg.Oracle.APIKeyEnv,
		BaseURL:     cfg.Oracle.BaseURL,
		Timeout:     cfg.Oracle.Timeout(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if closer, ok := orc.(io.Closer); ok {
		defer closer.Close()
	}

	gath, closeGath, err := newGatherers(ctx, cfg, cmd.Bool("verbose"), logger)
	if err != nil {
		return err
	}
	defer closeGath()

	c, err := campaign.New(cfg, api.CampaignRequest{
		Program:       program,
		InputSpecPath: specPath,
		Metric:        cmd.String("metric"),
		MaxIterations: cfg.Campaign.MaxIterations,
	}, campaign.Deps{
		Runner:   exec,
		Oracle:   orc,
		Spec:     spec,
		Gatherer: gath,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := c.Run(ctx)

	out := cmd.String("output")
	if out == "" {
		out = artifact.DefaultPath(cfg.Output.Dir, time.Now(), cfg.Output.Compress)
	}
	if err := artifact.Save(out, res); err != nil {
		return err
	}
	logger.Info("results saved", slog.String("path", out))

	if errors.Is(runErr, context.Canceled) {
		return cli.Exit("campaign interrupted, partial results saved", 130)
	}
	return runErr
}

func applyRunFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("iterations") {
		cfg.Campaign.MaxIterations = int(cmd.Int("iterations"))
	}
	if cmd.IsSet("llm") {
		cfg.Oracle.Provider = cmd.String("llm")
		// the configured model belongs to the configured provider
		cfg.Oracle.Model = ""
	}
	if cmd.IsSet("model") {
		cfg.Oracle.Model = cmd.String("model")
	}
	if cmd.IsSet("seed") {
		seed := cmd.Int("seed")
		cfg.Campaign.Seed = &seed
	}
}

// newGatherers wires the terminal output and whichever progress sinks the
// configuration enables. The returned func releases their connections.
func newGatherers(ctx context.Context, cfg config.Config, verbose bool, logger *slog.Logger) (gatherer.Gatherer, func(), error) {
	gaths := gatherer.Multi{termgath.New(verbose)}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Nats.URL != "" {
		nc, err := natsgath.Connect(cfg.Nats.URL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain NATS connection", slog.Any("error", err))
			}
		})
		gaths = append(gaths, natsgath.New(nc, cfg.Nats.Subject, logger))
	}

	if cfg.Sqs.QueueURL != "" {
		client, err := sqsgath.NewClient(ctx, cfg.Sqs.Region)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		gaths = append(gaths, sqsgath.New(client, cfg.Sqs.QueueURL, logger))
	}

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		pg, err := promgath.New(reg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promgath.Handler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		})
		logger.Info("serving metrics", slog.String("addr", cfg.Metrics.Listen))
		gaths = append(gaths, pg)
	}

	return gaths, closeAll, nil
}
