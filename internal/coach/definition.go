package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/felixgeelhaar/canvascoach/internal/store"
	"gopkg.in/yaml.v3"
)

// ValidationResult represents the outcome of a linting pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// LoadWorkshop reads a workshop definition from a file (JSON or YAML).
func LoadWorkshop(path string) (*store.Workshop, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read workshop file: %w", err)
	}

	var w store.Workshop
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON workshop: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML workshop: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workshop format: %s (use .json or .yaml)", ext)
	}

	return &w, nil
}

// Validate checks a workshop definition for completeness.
func Validate(w *store.Workshop) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	if w.ID == "" {
		fail("Workshop ID is required")
	}
	if w.Title == "" {
		fail("Title is required")
	}
	if w.CanvasType == "" {
		fail("Canvas type is required")
	}

	questions := make(map[string]bool, len(w.Questions))
	for _, q := range w.Questions {
		if q.ID == "" {
			fail("Question %q has no ID", q.Text)
			continue
		}
		if questions[q.ID] {
			fail("Duplicate question ID: %s", q.ID)
		}
		questions[q.ID] = true
	}
	if len(w.Questions) == 0 {
		warn("No questions defined; content generation will have no answers to work from")
	}

	if len(w.Sections) == 0 {
		fail("At least one canvas section is required")
	}
	sections := make(map[string]bool, len(w.Sections))
	for i, s := range w.Sections {
		if s.SectionID == "" {
			fail("Section %d has no section_id", i+1)
			continue
		}
		if sections[s.SectionID] {
			fail("Duplicate section ID: %s", s.SectionID)
		}
		sections[s.SectionID] = true

		if s.Title == "" {
			fail("Section %s has no title", s.SectionID)
		}
		if s.AIInstructions == "" {
			warn("Section %s has no AI instructions", s.SectionID)
		}
		for _, qid := range s.Questions {
			if !questions[qid] {
				warn("Section %s references unknown question %s", s.SectionID, qid)
			}
		}
	}

	// Section routing matches titles in order, so an earlier title that
	// prefixes a later one shadows it.
	for i, a := range w.Sections {
		for _, b := range w.Sections[i+1:] {
			ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if ta != "" && ta != tb && strings.HasPrefix(tb, ta) {
				warn("Section title %q shadows %q when routing questions", a.Title, b.Title)
			}
		}
	}

	return res
}

// ImportResult reports what ImportWorkshops did with each matched file.
type ImportResult struct {
	Imported []string
	Failed   map[string]error
}

// ImportWorkshops loads, validates and stores every workshop definition
// matching pattern. Patterns may use ** to match across directories. A bad
// file is recorded and skipped.
func (c *Coach) ImportWorkshops(ctx context.Context, pattern string) (ImportResult, error) {
	res := ImportResult{Failed: map[string]error{}}

	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return res, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		w, err := LoadWorkshop(path)
		if err != nil {
			res.Failed[path] = err
			continue
		}
		if v := Validate(w); !v.Valid {
			res.Failed[path] = fmt.Errorf("invalid workshop: %s", strings.Join(v.Errors, "; "))
			continue
		}
		if err := c.store.SaveWorkshop(ctx, w); err != nil {
			return res, fmt.Errorf("failed to save workshop %s: %w", w.ID, err)
		}
		c.obs.Log().Info().Str("workshop", w.ID).Str("path", path).Msg("imported workshop")
		res.Imported = append(res.Imported, w.ID)
	}

	return res, nil
}
