package inputspec

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/programme-lv/pathogen/internal/population"
	"gopkg.in/yaml.v3"
)

const NoPreviousBest = "No previous successful inputs yet"

type file struct {
	InputSpecification Spec `yaml:"input_specification"`
}

// Spec describes the inputs a target program accepts. It only feeds prompts
// and progress summaries.
type Spec struct {
	Name            string   `yaml:"name" json:"name"`
	Description     string   `yaml:"description" json:"description"`
	SizeCalculation string   `yaml:"size_calculation" json:"size_calculation"`
	ValidExamples   []string `yaml:"valid_examples" json:"valid_examples,omitempty"`
	InvalidExamples []string `yaml:"invalid_examples" json:"invalid_examples,omitempty"`

	sizer Sizer
}

// PromptContext holds the input specification fields that prompt templates refer to.
type PromptContext struct {
	InputDescription string
	ValidExamples    string
	InvalidExamples  string
	SizeCalculation  string
}

func Load(path string, logger *slog.Logger) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input specification: %w", err)
	}
	spec, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load input specification %s: %w", path, err)
	}
	return spec, nil
}

func Parse(data []byte, logger *slog.Logger) (*Spec, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	spec := f.InputSpecification
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("input_specification.name is required")
	}
	if strings.TrimSpace(spec.Description) == "" {
		return nil, fmt.Errorf("input_specification.description is required")
	}
	if spec.SizeCalculation == "" {
		spec.SizeCalculation = SizeLength
	}

	sizer, ok := sizers[spec.SizeCalculation]
	if !ok {
		logger.Warn("unknown size calculation, using length",
			slog.String("size_calculation", spec.SizeCalculation))
		sizer = sizers[SizeLength]
	}
	spec.sizer = sizer

	logger.Info("loaded input specification", slog.String("name", spec.Name))
	return &spec, nil
}

// Size is the logical size of input under the configured size calculation.
func (s *Spec) Size(input string) int {
	if s.sizer == nil {
		return sizers[SizeLength](input)
	}
	return s.sizer(input)
}

func (s *Spec) PromptContext() PromptContext {
	return PromptContext{
		InputDescription: strings.TrimSpace(s.Description),
		ValidExamples:    bulletList(s.ValidExamples),
		InvalidExamples:  bulletList(s.InvalidExamples),
		SizeCalculation:  s.SizeCalculation,
	}
}

// FormatPreviousBest renders up to n of best, one per line, with size and score.
func (s *Spec) FormatPreviousBest(best []population.Candidate, n int) string {
	if len(best) == 0 {
		return NoPreviousBest
	}
	if n > 0 && len(best) > n {
		best = best[:n]
	}
	lines := make([]string, 0, len(best))
	for _, c := range best {
		lines = append(lines, fmt.Sprintf("Input: %s | Size: %d | Score: %.4g",
			c.Input, s.Size(c.Input), c.Score))
	}
	return strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "No examples available"
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
