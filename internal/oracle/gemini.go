package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini generates candidates with the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	logger *slog.Logger
}

func NewGemini(ctx context.Context, apiKey string, cfg Config) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(float32(cfg.Temperature))
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))

	return &Gemini{
		client: client,
		model:  model,
		name:   cfg.Model,
		logger: cfg.Logger,
	}, nil
}

func (g *Gemini) Name() string {
	return ProviderGemini + "/" + g.name
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	var reply strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply.WriteString(string(text))
			}
		}
		// one candidate is requested, but be lenient if more arrive
		reply.WriteString("\n")
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", errors.New("gemini returned no text")
	}
	g.logger.Debug("gemini responded", slog.Int("chars", reply.Len()))
	return reply.String(), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
