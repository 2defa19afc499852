// Package corpus provides training statements: an embedded default set per
// mode, and loading of user corpora from YAML or JSON files.
package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/factcheck/internal/model"
)

//go:embed corpus.json
var corpusJSON []byte

// DefaultMinWords is the shortest paper section kept as an evaluation example.
const DefaultMinWords = 8

// Set is a labelled corpus for one mode.
type Set struct {
	// Labels names the classes in classification mode, indexed by label id.
	Labels   []string        `json:"labels" yaml:"labels"`
	Examples []model.Example `json:"examples" yaml:"examples"`
	// Eval is an explicit evaluation set. When empty, evaluation uses the
	// sections of the training papers.
	Eval []model.Example `json:"eval,omitempty" yaml:"eval"`
}

// file is the on-disk layout: either one Set at the top level, or one Set
// per mode keyed by mode name.
type file struct {
	Set            `yaml:",inline"`
	Regression     *Set `yaml:"regression"`
	Classification *Set `yaml:"classification"`
}

func (f *file) forMode(mode model.Mode) (*Set, error) {
	var s *Set
	switch mode {
	case model.Regression:
		s = f.Regression
	case model.Classification:
		s = f.Classification
	default:
		return nil, fmt.Errorf("corpus: unknown mode %q", mode)
	}
	if s == nil && len(f.Examples) > 0 {
		s = &f.Set
	}
	if s == nil {
		return nil, fmt.Errorf("corpus: no %s examples", mode)
	}
	return s, nil
}

// Default returns the embedded corpus for mode: the three research abstracts
// at confidence 0.9 for regression, a small mock credible/not-credible set
// for classification.
func Default(mode model.Mode) (*Set, error) {
	var f struct {
		Regression     *Set `json:"regression"`
		Classification *Set `json:"classification"`
	}
	if err := json.Unmarshal(corpusJSON, &f); err != nil {
		return nil, fmt.Errorf("corpus: parse corpus.json: %w", err)
	}
	return (&file{Regression: f.Regression, Classification: f.Classification}).forMode(mode)
}

// LoadFile reads a corpus for mode from a YAML or JSON file.
func LoadFile(path string, mode model.Mode) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", path, err)
	}
	s, err := f.forMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	return s, nil
}

// EvalExamples returns the explicit evaluation set, or the sections of the
// training examples with at least minWords words.
func (s *Set) EvalExamples(minWords int) []model.Example {
	if len(s.Eval) > 0 {
		return s.Eval
	}
	return SectionExamples(s.Examples, minWords)
}

// SplitSections splits a paper into its non-empty lines.
func SplitSections(paper string) []string {
	var out []string
	for _, line := range strings.Split(paper, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SectionExamples expands each example into one example per section with at
// least minWords words, carrying the example's label.
func SectionExamples(examples []model.Example, minWords int) []model.Example {
	var out []model.Example
	for _, ex := range examples {
		for _, sec := range SplitSections(ex.Text) {
			if len(strings.Fields(sec)) < minWords {
				continue
			}
			out = append(out, model.Example{Text: sec, Label: ex.Label})
		}
	}
	return out
}
