package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/programme-lv/pathogen/internal/config"
	"github.com/programme-lv/pathogen/internal/inputspec"
)

const defaultSystemPrompt = `You are searching for inputs that make a program execute as many CPU instructions as possible.

Program: {{.Program}}
Resource metric: {{.Metric}} (higher is better)

Input format:
{{.InputDescription}}

Valid examples:
{{.ValidExamples}}

Invalid examples:
{{.InvalidExamples}}

Input size is measured by: {{.SizeCalculation}}

Answer with one input per line and nothing else. Do not number the lines or explain them.`

const defaultInitialPrompt = `{{.System}}

Generate {{.NumInputs}} diverse initial test inputs with sizes: {{.TargetSizes}}.`

const defaultGenerationPrompt = `{{.System}}

Best inputs so far:
{{.PreviousBest}}

Generate {{.NumInputs}} new inputs with sizes: {{.TargetSizes}}.
Keep what makes the best inputs expensive and push it further.`

const defaultTopupPrompt = `Generate {{.NumInputs}} more inputs with target sizes: {{.TargetSizes}}:`

// SizeList prints as [10, 25, 40].
type SizeList []int

func (s SizeList) String() string {
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// PromptData is what the prompt templates can refer to.
type PromptData struct {
	inputspec.PromptContext

	Program string
	Metric  string
	// rendered system prompt, empty while rendering the system prompt itself
	System       string
	NumInputs    int
	TargetSizes  SizeList
	PreviousBest string
}

type Prompts struct {
	system     *template.Template
	initial    *template.Template
	generation *template.Template
	topup      *template.Template
}

// NewPrompts parses the built-in templates, replacing those overridden in cfg.
func NewPrompts(cfg config.PromptsConfig) (*Prompts, error) {
	var p Prompts
	var err error
	if p.system, err = parsePrompt("system", cfg.System, defaultSystemPrompt); err != nil {
		return nil, err
	}
	if p.initial, err = parsePrompt("initial", cfg.Initial, defaultInitialPrompt); err != nil {
		return nil, err
	}
	if p.generation, err = parsePrompt("generation", cfg.Generation, defaultGenerationPrompt); err != nil {
		return nil, err
	}
	if p.topup, err = parsePrompt("topup", cfg.Topup, defaultTopupPrompt); err != nil {
		return nil, err
	}
	return &p, nil
}

func parsePrompt(name, override, def string) (*template.Template, error) {
	text := def
	if strings.TrimSpace(override) != "" {
		text = override
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

func (p *Prompts) System(d PromptData) (string, error) {
	return render(p.system, d)
}

func (p *Prompts) Initial(d PromptData) (string, error) {
	return render(p.initial, d)
}

func (p *Prompts) Generation(d PromptData) (string, error) {
	return render(p.generation, d)
}

func (p *Prompts) Topup(d PromptData) (string, error) {
	return render(p.topup, d)
}

func render(tmpl *template.Template, d PromptData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, d); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
