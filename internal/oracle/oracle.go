package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"
)

var (
	ErrUnknownProvider = errors.New("unknown oracle provider")
	ErrMissingAPIKey   = errors.New("oracle API key not set")
)

// Oracle proposes candidate inputs as free text.
type Oracle interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderFallback = "fallback"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 2 * time.Minute
)

type Config struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	// APIKeyEnv overrides the provider's default key variable.
	APIKeyEnv string
	BaseURL   string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// ProviderInfo describes one entry of the provider registry.
type ProviderInfo struct {
	Name         string
	DefaultModel string
	APIKeyEnv    string
	BaseURL      string
}

// Available reports whether the provider can be constructed in this
// environment.
func (p ProviderInfo) Available() bool {
	if p.APIKeyEnv == "" {
		return true
	}
	return os.Getenv(p.APIKeyEnv) != ""
}

var registry = map[string]ProviderInfo{
	ProviderGemini: {
		Name:         ProviderGemini,
		DefaultModel: "gemini-1.5-flash",
		APIKeyEnv:    "GOOGLE_API_KEY",
	},
	ProviderOpenAI: {
		Name:         ProviderOpenAI,
		DefaultModel: "gpt-4o-mini",
		APIKeyEnv:    "OPENAI_API_KEY",
		BaseURL:      "https://api.openai.com/v1",
	},
	ProviderGroq: {
		Name:         ProviderGroq,
		DefaultModel: "llama-3.1-8b-instant",
		APIKeyEnv:    "GROQ_API_KEY",
		BaseURL:      "https://api.groq.com/openai/v1",
	},
	ProviderFallback: {
		Name:         ProviderFallback,
		DefaultModel: "sequences",
	},
}

// Providers lists the registry sorted by name.
func Providers() []ProviderInfo {
	res := make([]ProviderInfo, 0, len(registry))
	for _, p := range registry {
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b ProviderInfo) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return res
}

func Lookup(name string) (ProviderInfo, error) {
	p, ok := registry[name]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// New constructs the oracle named by cfg.Provider. Closing the returned
// oracle, when it implements io.Closer, is the caller's job.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	info, err := Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = info.DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = info.BaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	keyEnv := info.APIKeyEnv
	if cfg.APIKeyEnv != "" {
		keyEnv = cfg.APIKeyEnv
	}

	var apiKey string
	if keyEnv != "" {
		apiKey = os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: provider %s reads %s", ErrMissingAPIKey, info.Name, keyEnv)
		}
	}

	switch info.Name {
	case ProviderGemini:
		return NewGemini(ctx, apiKey, cfg)
	case ProviderOpenAI, ProviderGroq:
		return NewChatCompletions(info.Name, apiKey, cfg), nil
	case ProviderFallback:
		return NewFallback(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, info.Name)
}
