package canvas

import (
	"strings"

	"github.com/felixgeelhaar/canvascoach/internal/store"
)

// DetectSection guesses which section a free-text question is about. Sections
// are checked in workshop order and the first match wins:
//
//	"title:" at the start, "title:" anywhere, then "title" at the start.
//
// It returns "" when nothing matches.
func DetectSection(question string, w *store.Workshop) string {
	q := strings.ToLower(question)
	for _, s := range w.Sections {
		title := strings.ToLower(s.Title)
		if title == "" {
			continue
		}
		switch {
		case strings.HasPrefix(q, title+":"),
			strings.Contains(q, title+":"),
			strings.HasPrefix(q, title):
			return s.SectionID
		}
	}
	return ""
}
