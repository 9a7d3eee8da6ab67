package coach

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/canvascoach/internal/store"
)

const leanYAML = `id: lean-101
title: Lean Canvas Basics
canvas_type: Lean Canvas
questions:
  - id: q1
    text: What problem do you solve?
sections:
  - section_id: problem
    title: Problem
    ai_instructions: Push for evidence.
    questions: [q1]
  - section_id: segments
    title: Customer Segments
    ai_instructions: Look for early adopters.
`

func TestLoadWorkshop(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "lean.yaml")
	os.WriteFile(yamlPath, []byte(leanYAML), 0600)

	jsonPath := filepath.Join(tmpDir, "bmc.json")
	os.WriteFile(jsonPath, []byte(`{"id":"bmc","title":"BMC","canvasType":"Business Model Canvas",
		"sections":[{"sectionId":"vp","title":"Value Proposition","aiInstructions":"Be sharp."}]}`), 0600)

	t.Run("YAML", func(t *testing.T) {
		w, err := LoadWorkshop(yamlPath)
		if err != nil {
			t.Fatalf("Failed to load YAML: %v", err)
		}
		if w.CanvasType != "Lean Canvas" || len(w.Sections) != 2 || w.Sections[0].AIInstructions != "Push for evidence." {
			t.Errorf("unexpected workshop %+v", w)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		w, err := LoadWorkshop(jsonPath)
		if err != nil {
			t.Fatalf("Failed to load JSON: %v", err)
		}
		if w.Sections[0].SectionID != "vp" {
			t.Errorf("unexpected workshop %+v", w)
		}
	})

	t.Run("Invalid Extension", func(t *testing.T) {
		if _, err := LoadWorkshop(filepath.Join(tmpDir, "lean.txt")); err == nil {
			t.Error("Expected error for .txt extension")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		w := &store.Workshop{
			ID: "w", Title: "T", CanvasType: "Lean Canvas",
			Questions: []store.Question{{ID: "q1", Text: "Why?"}},
			Sections:  []store.Section{{SectionID: "s", Title: "Problem", AIInstructions: "x"}},
		}
		res := Validate(w)
		if !res.Valid || len(res.Warnings) != 0 {
			t.Errorf("expected clean result, got %+v", res)
		}
	})

	t.Run("Missing Fields", func(t *testing.T) {
		res := Validate(&store.Workshop{})
		if res.Valid {
			t.Error("expected invalid workshop")
		}
		if len(res.Errors) != 4 {
			t.Errorf("expected 4 errors, got %v", res.Errors)
		}
	})

	t.Run("Duplicates And Shadowing", func(t *testing.T) {
		w := &store.Workshop{
			ID: "w", Title: "T", CanvasType: "C",
			Questions: []store.Question{{ID: "q1"}, {ID: "q1"}},
			Sections: []store.Section{
				{SectionID: "a", Title: "Channels", AIInstructions: "x", Questions: []string{"q9"}},
				{SectionID: "a", Title: "Channels Mix"},
			},
		}
		res := Validate(w)
		if res.Valid {
			t.Error("expected duplicates to invalidate")
		}
		joined := strings.Join(res.Warnings, "\n")
		for _, want := range []string{"unknown question q9", "shadows", "no AI instructions"} {
			if !strings.Contains(joined, want) {
				t.Errorf("expected warning containing %q, got %v", want, res.Warnings)
			}
		}
	})
}

func TestCoach_ImportWorkshops(t *testing.T) {
	f := newFixture(t)
	root := t.TempDir()

	nested := filepath.Join(root, "tracks", "spring")
	os.MkdirAll(nested, 0750)
	os.WriteFile(filepath.Join(nested, "lean.yaml"), []byte(leanYAML), 0600)
	os.WriteFile(filepath.Join(root, "broken.yml"), []byte("id: x\ntitle: [unclosed"), 0600)
	os.WriteFile(filepath.Join(root, "invalid.json"), []byte(`{"id":"bad"}`), 0600)
	os.WriteFile(filepath.Join(root, "README.md"), []byte("# notes"), 0600)

	res, err := f.coach.ImportWorkshops(context.Background(), filepath.Join(root, "**", "*"))
	if err != nil {
		t.Fatalf("ImportWorkshops failed: %v", err)
	}
	if len(res.Imported) != 1 || res.Imported[0] != "lean-101" {
		t.Errorf("expected lean-101 to be imported, got %v", res.Imported)
	}
	if len(res.Failed) != 2 {
		t.Errorf("expected 2 failures, got %v", res.Failed)
	}

	w, err := f.store.GetWorkshop(context.Background(), "lean-101")
	if err != nil {
		t.Fatalf("imported workshop not stored: %v", err)
	}
	if len(w.Questions) != 1 {
		t.Errorf("unexpected stored workshop %+v", w)
	}
}
