package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a workshop or submission does not exist.
var ErrNotFound = errors.New("not found")

// FeedbackStatus tracks AI feedback generation for a submission.
type FeedbackStatus string

const (
	FeedbackPending    FeedbackStatus = "pending"
	FeedbackProcessing FeedbackStatus = "processing"
	FeedbackCompleted  FeedbackStatus = "completed"
	FeedbackFailed     FeedbackStatus = "failed"
)

// Question is one entry of a workshop questionnaire.
type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Text     string   `json:"text" yaml:"text"`
	Type     string   `json:"type" yaml:"type"`
	Required bool     `json:"required" yaml:"required"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Section is the configuration of one canvas section.
type Section struct {
	SectionID      string   `json:"sectionId" yaml:"section_id"`
	Title          string   `json:"title" yaml:"title"`
	AIInstructions string   `json:"aiInstructions" yaml:"ai_instructions"`
	FeedbackRules  string   `json:"feedbackRules,omitempty" yaml:"feedback_rules,omitempty"`
	Questions      []string `json:"questions,omitempty" yaml:"questions,omitempty"`
}

// Workshop is a workshop event: a canvas type, its sections and a questionnaire.
type Workshop struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"tenantId" yaml:"tenant_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	CanvasType  string     `json:"canvasType" yaml:"canvas_type"`
	Questions   []Question `json:"questions" yaml:"questions"`
	Sections    []Section  `json:"sections" yaml:"sections"`
}

// Section returns the section configuration with the given ID.
func (w *Workshop) Section(id string) (Section, bool) {
	for _, s := range w.Sections {
		if s.SectionID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SectionContent holds what a participant wrote into one section.
// Items is used for list content, Text for free-form content.
type SectionContent struct {
	SectionID string
	Items     []string
	Text      string
}

// IsList reports whether the content is list-structured.
func (c SectionContent) IsList() bool {
	return c.Items != nil
}

type sectionContentJSON struct {
	SectionID string          `json:"sectionId"`
	Content   json.RawMessage `json:"content"`
}

func (c SectionContent) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error
	if c.IsList() {
		raw, err = json.Marshal(c.Items)
	} else {
		raw, err = json.Marshal(c.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(sectionContentJSON{SectionID: c.SectionID, Content: raw})
}

func (c *SectionContent) UnmarshalJSON(data []byte) error {
	var aux sectionContentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.SectionID = aux.SectionID
	c.Items, c.Text = nil, ""
	if len(aux.Content) == 0 || string(aux.Content) == "null" {
		return nil
	}
	if aux.Content[0] == '[' {
		items := []string{}
		if err := json.Unmarshal(aux.Content, &items); err != nil {
			return fmt.Errorf("section %s: %w", aux.SectionID, err)
		}
		c.Items = items
		return nil
	}
	if aux.Content[0] == '"' {
		return json.Unmarshal(aux.Content, &c.Text)
	}
	// Anything else is kept verbatim so it can still be shown to the model.
	c.Text = string(aux.Content)
	return nil
}

// QuestionAnswer is a participant's answer; single answers are a one-item list.
type QuestionAnswer struct {
	QuestionID string   `json:"questionId" yaml:"question_id"`
	Answer     []string `json:"answer" yaml:"answer"`
}

func (qa *QuestionAnswer) UnmarshalJSON(data []byte) error {
	var aux struct {
		QuestionID string          `json:"questionId"`
		Answer     json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	qa.QuestionID = aux.QuestionID
	qa.Answer = nil
	if len(aux.Answer) == 0 || string(aux.Answer) == "null" {
		return nil
	}
	if aux.Answer[0] == '[' {
		return json.Unmarshal(aux.Answer, &qa.Answer)
	}
	var single string
	if err := json.Unmarshal(aux.Answer, &single); err != nil {
		return err
	}
	qa.Answer = []string{single}
	return nil
}

// SectionFeedback is the generated feedback for one section.
type SectionFeedback struct {
	SectionID string `json:"sectionId"`
	Feedback  string `json:"feedback"`
}

// Suggestions is the persisted result of feedback generation.
type Suggestions struct {
	SectionFeedback []SectionFeedback `json:"sectionFeedback"`
	OverallFeedback string            `json:"overallFeedback"`
	GeneratedAt     time.Time         `json:"generatedAt"`
}

// Submission is a participant's filled-in canvas. SessionID and
// SessionLastUpdated point at the assistant conversation bound to it.
type Submission struct {
	ID                 string
	WorkshopID         string
	TenantID           string
	ParticipantID      string
	Status             string
	Answers            []QuestionAnswer
	Canvas             []SectionContent
	FeedbackStatus     FeedbackStatus
	Suggestions        *Suggestions
	SessionID          string
	SessionLastUpdated *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSession reports whether a session pointer is set.
func (s *Submission) HasSession() bool {
	return s.SessionID != "" && s.SessionLastUpdated != nil
}

// ClearSession drops the session pointer.
func (s *Submission) ClearSession() {
	s.SessionID = ""
	s.SessionLastUpdated = nil
}

// Clone returns a deep copy.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Answers = make([]QuestionAnswer, len(s.Answers))
	for i, a := range s.Answers {
		c.Answers[i] = QuestionAnswer{QuestionID: a.QuestionID, Answer: append([]string(nil), a.Answer...)}
	}
	c.Canvas = make([]SectionContent, len(s.Canvas))
	for i, sc := range s.Canvas {
		c.Canvas[i] = sc
		if sc.Items != nil {
			c.Canvas[i].Items = append([]string{}, sc.Items...)
		}
	}
	if s.Suggestions != nil {
		sg := *s.Suggestions
		sg.SectionFeedback = append([]SectionFeedback(nil), s.Suggestions.SectionFeedback...)
		c.Suggestions = &sg
	}
	if s.SessionLastUpdated != nil {
		t := *s.SessionLastUpdated
		c.SessionLastUpdated = &t
	}
	return &c
}

// Storage defines the interface for persistence
type Storage interface {
	// Workshops
	SaveWorkshop(ctx context.Context, w *Workshop) error
	GetWorkshop(ctx context.Context, id string) (*Workshop, error)
	ListWorkshops(ctx context.Context) ([]*Workshop, error)

	// Submissions
	SaveSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, workshopID string) ([]*Submission, error)
	// FindExpiredSessions returns submissions holding a session last
	// updated strictly before olderThan.
	FindExpiredSessions(ctx context.Context, olderThan time.Time) ([]*Submission, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}
