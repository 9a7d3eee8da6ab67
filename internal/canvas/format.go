// Package canvas turns workshop canvases into text for the assistant and
// parses what the assistant generates back into canvas sections.
package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/canvascoach/internal/store"
)

// ErrSectionNotFound is returned when a section has no content or no
// configuration. It matches store.ErrNotFound.
var ErrSectionNotFound = fmt.Errorf("section %w", store.ErrNotFound)

// ErrMalformedResponse is returned when generated content is not the
// expected JSON document.
var ErrMalformedResponse = errors.New("malformed assistant response")

// FormatContext renders the priming message for a session. With a section
// ID only that section is rendered, together with its instructions and
// feedback rules; otherwise the whole canvas is.
func FormatContext(sub *store.Submission, w *store.Workshop, sectionID string) (string, error) {
	if sectionID != "" {
		return formatSection(sub, w, sectionID)
	}
	return formatCanvas(sub, w), nil
}

func formatSection(sub *store.Submission, w *store.Workshop, sectionID string) (string, error) {
	content, ok := findContent(sub, sectionID)
	cfg, hasCfg := w.Section(sectionID)
	if !ok || !hasCfg {
		return "", fmt.Errorf("%s: %w", sectionID, ErrSectionNotFound)
	}

	rules := cfg.FeedbackRules
	if rules == "" {
		rules = "No specific rules provided"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Canvas Type: %s\n", w.CanvasType)
	fmt.Fprintf(&b, "Section: %s\n\n", cfg.Title)
	fmt.Fprintf(&b, "Content:\n%s\n\n", FormatContent(content))
	fmt.Fprintf(&b, "AI Instructions:\n%s\n\n", cfg.AIInstructions)
	fmt.Fprintf(&b, "Feedback Rules:\n%s\n", rules)
	return b.String(), nil
}

func formatCanvas(sub *store.Submission, w *store.Workshop) string {
	blocks := make([]string, 0, len(sub.Canvas))
	for _, sc := range sub.Canvas {
		title := sc.SectionID
		if cfg, ok := w.Section(sc.SectionID); ok {
			title = cfg.Title
		}
		blocks = append(blocks, fmt.Sprintf("## %s\n%s", title, FormatContent(sc)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Canvas Type: %s\n\n", w.CanvasType)
	fmt.Fprintf(&b, "Canvas Content:\n%s\n\n", strings.Join(blocks, "\n\n"))
	b.WriteString("General Instructions:\n")
	fmt.Fprintf(&b, "You are an expert business consultant helping with a %s canvas.\n", w.CanvasType)
	b.WriteString("Provide guidance based on business model best practices and industry expertise.\n")
	return b.String()
}

// FormatContent renders list content as "- item" lines and text as is.
func FormatContent(c store.SectionContent) string {
	if !c.IsList() {
		return c.Text
	}
	lines := make([]string, len(c.Items))
	for i, item := range c.Items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func findContent(sub *store.Submission, sectionID string) (store.SectionContent, bool) {
	for _, sc := range sub.Canvas {
		if sc.SectionID == sectionID {
			return sc, true
		}
	}
	return store.SectionContent{}, false
}

// GeneratedSection is one section of generated canvas content.
type GeneratedSection struct {
	SectionID string   `json:"sectionId" yaml:"section_id"`
	Content   []string `json:"content" yaml:"content"`
}

// ParseGeneratedSections decodes the assistant's content generation reply.
// A fenced code block, when present, is unwrapped first.
func ParseGeneratedSections(raw string) ([]GeneratedSection, error) {
	body := stripFence(raw)

	var doc struct {
		Sections []GeneratedSection `json:"sections"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if doc.Sections == nil {
		return nil, fmt.Errorf("%w: no sections", ErrMalformedResponse)
	}
	return doc.Sections, nil
}

func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return strings.TrimSpace(s)
	}
	rest := s[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(s)
	}
	inner := rest[:end]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
