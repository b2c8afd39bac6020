package llm

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts is the model-facing configuration.
type Prompts struct {
	SystemPrompt         string           `yaml:"system_prompt"`
	ErrorMessage         string           `yaml:"error_message"`
	DefaultToolReasoning string           `yaml:"default_tool_reasoning"`
	ForbiddenPatterns    []string         `yaml:"forbidden_patterns"`
	Tools                []map[string]any `yaml:"tools"`

	forbidden []*regexp.Regexp
}

// DefaultPrompts returns the embedded configuration.
func DefaultPrompts() (*Prompts, error) {
	return parsePrompts(defaultPrompts)
}

// LoadPrompts reads a YAML override from path, or the embedded default when
// path is empty.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return parsePrompts(data)
}

func parsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if p.SystemPrompt == "" {
		return nil, fmt.Errorf("prompts: system_prompt is required")
	}
	for _, pattern := range p.ForbiddenPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("prompts: forbidden pattern %q: %w", pattern, err)
		}
		p.forbidden = append(p.forbidden, re)
	}
	return &p, nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	doubleStop    = regexp.MustCompile(`\.\s*\.`)
)

// Clean strips forbidden phrases from model output and tidies the spacing
// they leave behind.
func (p *Prompts) Clean(text string) string {
	for _, re := range p.forbidden {
		text = re.ReplaceAllString(text, "")
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return doubleStop.ReplaceAllString(text, ".")
}
