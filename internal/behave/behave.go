package behave

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/pathogen/internal/executor"
)

// Program is a target program written inline as a shell script body
type Program struct {
	Name  string `toml:"name"`
	Shell string `toml:"shell"`
	Body  string `toml:"body"`
}

// Expectation describes the outcome classification a scenario expects.
// Unset fields are not checked.
type Expectation struct {
	Succeeded       *bool  `toml:"succeeded"`
	TimedOut        *bool  `toml:"timed_out"`
	FormatError     *bool  `toml:"format_error"`
	ExitCode        *int   `toml:"exit_code"`
	MinInstructions *int64 `toml:"min_instructions"`
}

// scenarioDef is one [[scenarios]] entry
type scenarioDef struct {
	Description string      `toml:"description"`
	Program     string      `toml:"program"`
	Input       string      `toml:"input"`
	Expect      Expectation `toml:"expect"`
	Inline      Program     `toml:"inline"`
}

type scenarioFile struct {
	Scenarios []scenarioDef `toml:"scenarios"`
	// programs that scenarios refer to by name
	Programs []Program `toml:"programs"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Program Program
	Input   string
	Expect  Expectation
}

// Parse reads a behaviour TOML file and converts it to runnable cases
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	cases, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

func ParseBytes(data []byte) ([]Case, error) {
	var root scenarioFile
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	progByName := make(map[string]Program)
	for _, p := range root.Programs {
		if p.Name == "" {
			continue
		}
		progByName[p.Name] = p
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, def := range root.Scenarios {
		// a named program, with inline fields taking precedence
		var prog Program
		if def.Program != "" {
			base, ok := progByName[def.Program]
			if !ok {
				return nil, fmt.Errorf("scenario %d: unknown program: %s", i+1, def.Program)
			}
			prog = base
		}
		if def.Inline.Body != "" {
			prog.Body = def.Inline.Body
		}
		if def.Inline.Shell != "" {
			prog.Shell = def.Inline.Shell
		}
		if prog.Name == "" {
			prog.Name = fmt.Sprintf("scenario%d", i+1)
		}
		if prog.Shell == "" {
			prog.Shell = "/bin/sh"
		}
		if strings.TrimSpace(prog.Body) == "" {
			return nil, fmt.Errorf("scenario %d: program body is empty", i+1)
		}

		name := def.Description
		if name == "" {
			name = prog.Name
		}
		cases = append(cases, Case{
			Name:    name,
			Program: prog,
			Input:   def.Input,
			Expect:  def.Expect,
		})
	}
	return cases, nil
}

// WriteProgram writes the scenario's program into dir as an executable
// script and returns its path.
func (c Case) WriteProgram(dir string) (string, error) {
	path := filepath.Join(dir, c.Program.Name)
	script := "#!" + c.Program.Shell + "\n" + c.Program.Body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("failed to write program %s: %w", c.Program.Name, err)
	}
	return path, nil
}

// Verify lists every way out differs from the expectation.
func (c Case) Verify(out executor.Outcome) []string {
	var diffs []string
	checkBool := func(name string, want *bool, got bool) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s: want %t, got %t", name, *want, got))
		}
	}
	checkBool("succeeded", c.Expect.Succeeded, out.Succeeded)
	checkBool("timed_out", c.Expect.TimedOut, out.TimedOut)
	checkBool("format_error", c.Expect.FormatError, out.IsInputFormatError)

	if want := c.Expect.ExitCode; want != nil && *want != out.ExitCode {
		diffs = append(diffs, fmt.Sprintf("exit_code: want %d, got %d", *want, out.ExitCode))
	}
	if want := c.Expect.MinInstructions; want != nil && out.ResourceValue < *want {
		diffs = append(diffs, fmt.Sprintf("instructions: want at least %d, got %d", *want, out.ResourceValue))
	}
	return diffs
}
