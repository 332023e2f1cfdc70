package extractor

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

const defaultMaxTokens = 256

// Group is one evidence section. Every part is asked on its own and the
// non-empty answers are joined into a single entry under Label.
type Group struct {
	Key         string   `yaml:"key"`
	Label       string   `yaml:"label"`
	Temperature float64  `yaml:"temperature"`
	TopP        float64  `yaml:"top_p"`
	MaxTokens   int      `yaml:"max_tokens"`
	Parts       []string `yaml:"parts"`
}

// Params returns the decoding parameters for this group. Penalties are
// job-wide and supplied by the caller.
func (g Group) Params(repetitionPenalty, frequencyPenalty float64) Params {
	return Params{
		Temperature:       g.Temperature,
		TopP:              g.TopP,
		RepetitionPenalty: repetitionPenalty,
		FrequencyPenalty:  frequencyPenalty,
		MaxTokens:         g.MaxTokens,
	}
}

type PromptSet struct {
	Groups []Group `yaml:"groups"`
}

// LoadPrompts reads the prompt set at path, or the built-in set when path is empty.
func LoadPrompts(path string) (*PromptSet, error) {
	if strings.TrimSpace(path) == "" {
		return ParsePrompts(defaultPrompts)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	return ParsePrompts(data)
}

func ParsePrompts(data []byte) (*PromptSet, error) {
	var ps PromptSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if len(ps.Groups) == 0 {
		return nil, errors.New("prompt set has no groups")
	}
	for i := range ps.Groups {
		g := &ps.Groups[i]
		if strings.TrimSpace(g.Label) == "" {
			return nil, fmt.Errorf("prompt group %d (%s): missing label", i, g.Key)
		}
		var parts []string
		for _, p := range g.Parts {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("prompt group %q has no prompts", g.Label)
		}
		g.Parts = parts
		if g.MaxTokens <= 0 {
			g.MaxTokens = defaultMaxTokens
		}
	}
	return &ps, nil
}
