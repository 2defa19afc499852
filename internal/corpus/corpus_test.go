package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/crimson-sun/factcheck/internal/model"
)

func TestDefaultRegression(t *testing.T) {
	s, err := Default(model.Regression)
	if err != nil {
		t.Fatalf("Default error: %v", err)
	}
	if len(s.Examples) != 3 {
		t.Fatalf("got %d examples, want 3 abstracts", len(s.Examples))
	}
	for i, ex := range s.Examples {
		if ex.Label != 0.9 {
			t.Errorf("example %d label = %v, want 0.9", i, ex.Label)
		}
		if ex.Text == "" {
			t.Errorf("example %d is empty", i)
		}
	}

	eval := s.EvalExamples(DefaultMinWords)
	if len(eval) == 0 {
		t.Fatal("default evaluation set is empty")
	}
	for _, ex := range eval {
		if ex.Label != 0.9 {
			t.Fatalf("evaluation section label = %v, want 0.9", ex.Label)
		}
	}
}

func TestDefaultClassification(t *testing.T) {
	s, err := Default(model.Classification)
	if err != nil {
		t.Fatalf("Default error: %v", err)
	}
	if len(s.Labels) != 2 {
		t.Fatalf("got labels %v, want 2", s.Labels)
	}

	seen := map[float64]int{}
	for _, ex := range s.Examples {
		seen[ex.Label]++
	}
	if seen[0] == 0 || seen[1] == 0 || len(seen) != 2 {
		t.Errorf("expected both classes 0 and 1, got %v", seen)
	}
}

func TestDefaultUnknownMode(t *testing.T) {
	if _, err := Default(model.Mode("ranking")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSplitSections(t *testing.T) {
	got := SplitSections("Title\n\n  Abstract text here.  \n\t\nConclusion")
	want := []string{"Title", "Abstract text here.", "Conclusion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSections = %q, want %q", got, want)
	}
}

func TestSectionExamples(t *testing.T) {
	examples := []model.Example{
		{Text: "Short heading\none two three four five six seven eight\n", Label: 0.9},
		{Text: "nine words are present in this particular line here", Label: 0.2},
	}
	got := SectionExamples(examples, 8)
	want := []model.Example{
		{Text: "one two three four five six seven eight", Label: 0.9},
		{Text: "nine words are present in this particular line here", Label: 0.2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SectionExamples = %+v, want %+v", got, want)
	}
}

func TestExplicitEvalWins(t *testing.T) {
	s := &Set{
		Examples: []model.Example{{Text: "one two three four five six seven eight", Label: 1}},
		Eval:     []model.Example{{Text: "held out", Label: 0}},
	}
	if got := s.EvalExamples(8); !reflect.DeepEqual(got, s.Eval) {
		t.Errorf("EvalExamples = %+v, want explicit eval set", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	flat := filepath.Join(dir, "flat.yaml")
	os.WriteFile(flat, []byte(`
examples:
  - text: Healing touch lowered anxiety scores in a pilot study.
    label: 0.7
  - text: Reiki cures cancer.
    label: 0.1
eval:
  - text: Therapeutic touch had no measurable effect.
    label: 0.5
`), 0o644)

	keyed := filepath.Join(dir, "keyed.json")
	os.WriteFile(keyed, []byte(`{
  "classification": {
    "labels": ["low", "high"],
    "examples": [{"text": "a", "label": 0}, {"text": "b", "label": 1}]
  }
}`), 0o644)

	t.Run("flat yaml", func(t *testing.T) {
		s, err := LoadFile(flat, model.Regression)
		if err != nil {
			t.Fatalf("LoadFile error: %v", err)
		}
		if len(s.Examples) != 2 || s.Examples[0].Label != 0.7 || len(s.Eval) != 1 {
			t.Errorf("unexpected set: %+v", s)
		}
	})

	t.Run("mode keyed json", func(t *testing.T) {
		s, err := LoadFile(keyed, model.Classification)
		if err != nil {
			t.Fatalf("LoadFile error: %v", err)
		}
		if !reflect.DeepEqual(s.Labels, []string{"low", "high"}) || len(s.Examples) != 2 {
			t.Errorf("unexpected set: %+v", s)
		}
	})

	t.Run("missing mode", func(t *testing.T) {
		if _, err := LoadFile(keyed, model.Regression); err == nil {
			t.Fatal("expected error for missing regression section")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "absent.yaml"), model.Regression); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
