package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/pathogen/internal/xdg"
)

const (
	AppName        = "pathogen"
	ConfigFileName = "config.toml"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Campaign   CampaignConfig   `toml:"campaign" json:"campaign"`
	Executor   ExecutorConfig   `toml:"executor" json:"executor"`
	Validation ValidationConfig `toml:"validation" json:"validation"`
	Scoring    ScoringConfig    `toml:"scoring" json:"scoring"`
	Oracle     OracleConfig     `toml:"oracle" json:"oracle"`
	Prompts    PromptsConfig    `toml:"prompts" json:"prompts"`
	Output     OutputConfig     `toml:"output" json:"output"`
	Nats       NatsConfig       `toml:"nats" json:"nats"`
	Sqs        SqsConfig        `toml:"sqs" json:"sqs"`
	Metrics    MetricsConfig    `toml:"metrics" json:"metrics"`
}

type CampaignConfig struct {
	MaxIterations      int `toml:"max_iterations" json:"max_iterations"`
	EliteSize          int `toml:"elite_size" json:"elite_size"`
	InputsPerIteration int `toml:"inputs_per_iteration" json:"inputs_per_iteration"`
	TournamentSize     int `toml:"tournament_size" json:"tournament_size"`
	ConvergenceWindow  int `toml:"convergence_window" json:"convergence_window"`
	// number of best inputs shown to the oracle
	PromptTopN int `toml:"prompt_top_n" json:"prompt_top_n"`
	// number of best inputs kept in the result
	ReportTopN     int    `toml:"report_top_n" json:"report_top_n"`
	Workers        int    `toml:"workers" json:"workers"`
	MaxTopupRounds int    `toml:"max_topup_rounds" json:"max_topup_rounds"`
	Seed           *int64 `toml:"seed" json:"seed,omitempty"`

	SizeProgression SizeProgression `toml:"size_progression" json:"size_progression"`
}

type SizeProgression struct {
	StartSize int `toml:"start_size" json:"start_size"`
	Increment int `toml:"increment" json:"increment"`
}

type ExecutorConfig struct {
	PerfPath       string  `toml:"perf_path" json:"perf_path"`
	Event          string  `toml:"event" json:"event"`
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
	// replaces the built-in stderr indicators of malformed input
	FormatErrorIndicators []string `toml:"format_error_indicators" json:"format_error_indicators,omitempty"`
}

type ValidationConfig struct {
	MaxFormatRetries int    `toml:"max_format_retries" json:"max_format_retries"`
	Repair           string `toml:"repair" json:"repair"`
}

type ScoringConfig struct {
	Metric        string `toml:"metric" json:"metric"`
	TimeoutPolicy string `toml:"timeout_policy" json:"timeout_policy"`
}

type OracleConfig struct {
	Provider       string  `toml:"provider" json:"provider"`
	Model          string  `toml:"model" json:"model"`
	Temperature    float64 `toml:"temperature" json:"temperature"`
	MaxTokens      int     `toml:"max_tokens" json:"max_tokens"`
	APIKeyEnv      string  `toml:"api_key_env" json:"api_key_env,omitempty"`
	BaseURL        string  `toml:"base_url" json:"base_url,omitempty"`
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
}

// PromptsConfig overrides the built-in prompt templates. Empty keeps the default.
type PromptsConfig struct {
	System     string `toml:"system" json:"system,omitempty"`
	Initial    string `toml:"initial" json:"initial,omitempty"`
	Generation string `toml:"generation" json:"generation,omitempty"`
	Topup      string `toml:"topup" json:"topup,omitempty"`
}

type OutputConfig struct {
	Dir      string `toml:"dir" json:"dir"`
	Compress bool   `toml:"compress" json:"compress"`
}

type NatsConfig struct {
	URL     string `toml:"url" json:"url,omitempty"`
	Subject string `toml:"subject" json:"subject,omitempty"`
}

type SqsConfig struct {
	QueueURL string `toml:"queue_url" json:"queue_url,omitempty"`
	Region   string `toml:"region" json:"region,omitempty"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" json:"listen,omitempty"`
}

func Default() Config {
	return Config{
		Campaign: CampaignConfig{
			MaxIterations:      50,
			EliteSize:          3,
			InputsPerIteration: 15,
			TournamentSize:     3,
			ConvergenceWindow:  5,
			PromptTopN:         5,
			ReportTopN:         10,
			Workers:            runtime.NumCPU(),
			MaxTopupRounds:     3,
			SizeProgression: SizeProgression{
				StartSize: 10,
				Increment: 15,
			},
		},
		Executor: ExecutorConfig{
			PerfPath:       "perf",
			Event:          "instructions:u",
			TimeoutSeconds: 30,
		},
		Validation: ValidationConfig{
			MaxFormatRetries: 2,
			Repair:           "none",
		},
		Scoring: ScoringConfig{
			Metric:        "instruction_count",
			TimeoutPolicy: "zero",
		},
		Oracle: OracleConfig{
			Provider:       "groq",
			Temperature:    0.7,
			MaxTokens:      1000,
			TimeoutSeconds: 120,
		},
		Output: OutputConfig{
			Dir: filepath.Join(xdg.NewXDGDirs().AppStateDir(AppName), "results"),
		},
		Nats: NatsConfig{
			Subject: "pathogen.progress",
		},
		Sqs: SqsConfig{
			Region: "eu-central-1",
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Find returns path if set, else the config file found in the XDG config
// dirs, else "".
func Find(path string) string {
	if path != "" {
		return path
	}
	return xdg.NewXDGDirs().FindConfigFile(AppName, ConfigFileName)
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	cc := c.Campaign
	check(cc.MaxIterations > 0, "campaign.max_iterations must be positive")
	check(cc.EliteSize > 0, "campaign.elite_size must be positive")
	check(cc.InputsPerIteration > 0, "campaign.inputs_per_iteration must be positive")
	check(cc.TournamentSize > 0, "campaign.tournament_size must be positive")
	check(cc.ConvergenceWindow > 1, "campaign.convergence_window must be at least 2")
	check(cc.PromptTopN >= 0, "campaign.prompt_top_n must not be negative")
	check(cc.ReportTopN > 0, "campaign.report_top_n must be positive")
	check(cc.Workers > 0, "campaign.workers must be positive")
	check(cc.MaxTopupRounds >= 0, "campaign.max_topup_rounds must not be negative")
	check(cc.SizeProgression.StartSize > 0, "campaign.size_progression.start_size must be positive")
	check(cc.SizeProgression.Increment >= 0, "campaign.size_progression.increment must not be negative")

	check(c.Executor.TimeoutSeconds > 0, "executor.timeout_seconds must be positive")
	check(c.Executor.PerfPath != "", "executor.perf_path must be set")

	check(c.Validation.MaxFormatRetries >= 0, "validation.max_format_retries must not be negative")
	check(c.Validation.Repair == "none" || c.Validation.Repair == "trim",
		"validation.repair must be \"none\" or \"trim\", got %q", c.Validation.Repair)

	check(c.Scoring.TimeoutPolicy == "zero" || c.Scoring.TimeoutPolicy == "ceiling",
		"scoring.timeout_policy must be \"zero\" or \"ceiling\", got %q", c.Scoring.TimeoutPolicy)

	check(c.Oracle.Provider != "", "oracle.provider must be set")
	check(c.Oracle.TimeoutSeconds > 0, "oracle.timeout_seconds must be positive")
	check(c.Output.Dir != "", "output.dir must be set")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c ExecutorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

func (c OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// TargetSizes returns n sizes of the arithmetic progression.
func (s SizeProgression) TargetSizes(n int) []int {
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = s.StartSize + i*s.Increment
	}
	return sizes
}
