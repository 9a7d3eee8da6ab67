package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/assistant"
	"github.com/felixgeelhaar/canvascoach/internal/canvas"
	"github.com/felixgeelhaar/canvascoach/internal/config"
	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/provider"
	"github.com/felixgeelhaar/canvascoach/internal/session"
	"github.com/felixgeelhaar/canvascoach/internal/store"
)

type fixture struct {
	coach   *Coach
	store   *store.MemoryStore
	backend *assistant.ChatBackend
	stub    *provider.StubProvider
	bus     *events.Bus
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	if err := st.SaveWorkshop(ctx, &store.Workshop{
		ID:         "ws-1",
		Title:      "Founders Lab",
		CanvasType: "Lean Canvas",
		Questions: []store.Question{
			{ID: "q1", Text: "What problem do you solve?"},
			{ID: "q2", Text: "Who has it?"},
		},
		Sections: []store.Section{
			{SectionID: "problem", Title: "Problem", AIInstructions: "Challenge vague problems."},
			{SectionID: "solution", Title: "Solution", AIInstructions: "Tie back to the problem.", FeedbackRules: "Max three bullets."},
		},
	}); err != nil {
		t.Fatalf("SaveWorkshop failed: %v", err)
	}
	if err := st.SaveSubmission(ctx, &store.Submission{
		ID:             "sub-1",
		WorkshopID:     "ws-1",
		FeedbackStatus: store.FeedbackPending,
		Canvas: []store.SectionContent{
			{SectionID: "problem", Items: []string{"Invoices get paid late"}},
			{SectionID: "notes", Text: "Ask mentors"},
			{SectionID: "solution", Text: "Automatic reminders"},
		},
	}); err != nil {
		t.Fatalf("SaveSubmission failed: %v", err)
	}

	cfg := config.Default()
	cfg.Poll = config.Poll{MaxAttempts: 200, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	stub := provider.NewStubProvider(responses...)
	backend := assistant.NewChatBackend(stub)
	t.Cleanup(func() { backend.Close() })

	bus := events.NewBus()
	return &fixture{
		coach:   New(st, backend, cfg, nil, bus),
		store:   st,
		backend: backend,
		stub:    stub,
		bus:     bus,
	}
}

func TestCoach_ProcessChatTurn(t *testing.T) {
	f := newFixture(t, "Quantify the delay.", "Try a pilot.")
	ctx := context.Background()

	first, err := f.coach.ProcessChatTurn(ctx, "sub-1", "Problem: is this painful enough?", "")
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if first.Text != "Quantify the delay." || !first.IsNew || first.SectionID != "problem" {
		t.Errorf("unexpected first reply %+v", first)
	}

	second, err := f.coach.ProcessChatTurn(ctx, "sub-1", "And what next?", "")
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	if second.IsNew || second.SessionID != first.SessionID || second.Text != "Try a pilot." {
		t.Errorf("expected reuse of the session, got %+v", second)
	}

	calls := f.stub.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two provider calls, got %d", len(calls))
	}
	if !strings.HasPrefix(calls[0][0].Content, "Focus on the problem section") {
		t.Errorf("expected section instructions, got %q", calls[0][0].Content)
	}
	if !strings.Contains(calls[0][1].Content, "Section: Problem") {
		t.Errorf("expected section priming message, got %q", calls[0][1].Content)
	}
	if !strings.Contains(calls[1][0].Content, "entire business canvas") {
		t.Errorf("expected whole canvas instructions, got %q", calls[1][0].Content)
	}
	// Second transcript carries the first turn's question and answer.
	if got := len(calls[1]); got != 5 {
		t.Errorf("expected 5 messages in the second transcript, got %d", got)
	}

	sub, _ := f.store.GetSubmission(ctx, "sub-1")
	if sub.SessionID != first.SessionID || sub.SessionLastUpdated == nil {
		t.Errorf("expected bound session, got %q", sub.SessionID)
	}
}

func TestCoach_ProcessChatTurn_SectionWithoutContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, _ := f.store.GetSubmission(ctx, "sub-1")
	sub.Canvas = sub.Canvas[:1]
	_ = f.store.SaveSubmission(ctx, sub)

	reply, err := f.coach.ProcessChatTurn(ctx, "sub-1", "Solution: any ideas?", "")
	if err != nil {
		t.Fatalf("ProcessChatTurn failed: %v", err)
	}
	if reply.SectionID != "" {
		t.Errorf("expected fallback to the whole canvas, got section %q", reply.SectionID)
	}

	// An explicit section must exist when a session has to be primed.
	if _, err := f.coach.ResetSession(ctx, "sub-1"); err != nil {
		t.Fatalf("ResetSession failed: %v", err)
	}
	_, err = f.coach.ProcessChatTurn(ctx, "sub-1", "any ideas?", "solution")
	if !errors.Is(err, session.ErrSessionCreationFailed) || !IsNotFound(err) {
		t.Errorf("expected creation failure for a missing section, got %v", err)
	}
}

func TestCoach_ProcessChatTurn_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.coach.ProcessChatTurn(context.Background(), "ghost", "hello", "")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoach_ResetSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coach.ProcessChatTurn(ctx, "sub-1", "hello", "")
	if err != nil {
		t.Fatalf("ProcessChatTurn failed: %v", err)
	}

	ok, err := f.coach.ResetSession(ctx, "sub-1")
	if err != nil || !ok {
		t.Fatalf("ResetSession = %v, %v", ok, err)
	}
	if f.backend.Sessions() != 0 {
		t.Errorf("expected remote session to be deleted, got %d", f.backend.Sessions())
	}

	again, err := f.coach.ProcessChatTurn(ctx, "sub-1", "hello again", "")
	if err != nil {
		t.Fatalf("ProcessChatTurn failed: %v", err)
	}
	if !again.IsNew || again.SessionID == first.SessionID {
		t.Errorf("expected a fresh session after reset, got %+v", again)
	}

	if _, err := f.coach.ResetSession(ctx, "ghost"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoach_GetOrCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1, err := f.coach.GetOrCreateSession(ctx, "sub-1", "solution")
	if err != nil {
		t.Fatalf("GetOrCreateSession failed: %v", err)
	}
	s2, err := f.coach.GetOrCreateSession(ctx, "sub-1", "")
	if err != nil {
		t.Fatalf("GetOrCreateSession failed: %v", err)
	}
	if !s1.IsNew || s2.IsNew || s1.ID != s2.ID {
		t.Errorf("expected create then reuse, got %+v %+v", s1, s2)
	}
}

func TestCoach_GenerateInitialContent(t *testing.T) {
	reply := "Sure!\n```json\n{\"sections\":[{\"sectionId\":\"problem\",\"content\":[\"**Late** payments\"]},{\"sectionId\":\"solution\",\"content\":[\"**Auto** reminders\"]}]}\n```"
	f := newFixture(t, reply)

	answers := []store.QuestionAnswer{{QuestionID: "q1", Answer: []string{"Late invoices"}}}
	sections, err := f.coach.GenerateInitialContent(context.Background(), "ws-1", answers)
	if err != nil {
		t.Fatalf("GenerateInitialContent failed: %v", err)
	}
	if len(sections) != 2 || sections[1].SectionID != "solution" {
		t.Errorf("unexpected sections %+v", sections)
	}
	if f.backend.Sessions() != 0 {
		t.Errorf("expected throwaway session to be deleted, got %d", f.backend.Sessions())
	}

	prompt := f.stub.Calls()[0][2].Content
	if !strings.Contains(prompt, "Answer: Late invoices") || !strings.Contains(prompt, "Answer: Not answered") {
		t.Errorf("unexpected generation prompt:\n%s", prompt)
	}
}

func TestCoach_GenerateInitialContent_Malformed(t *testing.T) {
	f := newFixture(t, "I'd rather not.")

	_, err := f.coach.GenerateInitialContent(context.Background(), "ws-1", nil)
	if !errors.Is(err, canvas.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if f.backend.Sessions() != 0 {
		t.Errorf("expected throwaway session to be deleted on failure, got %d", f.backend.Sessions())
	}

	if _, err := f.coach.GenerateInitialContent(context.Background(), "nope", nil); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoach_GenerateFeedback(t *testing.T) {
	f := newFixture(t, "Problem is clear.", "Solution is thin.", "Overall solid.")
	var completed int
	f.bus.Subscribe(events.FeedbackCompleted, func(events.Event) { completed++ })

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	f.coach.Now = func() time.Time { return now }

	got, err := f.coach.GenerateFeedback(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("GenerateFeedback failed: %v", err)
	}

	want := []store.SectionFeedback{
		{SectionID: "problem", Feedback: "Problem is clear."},
		{SectionID: "notes", Feedback: canvas.NoSectionFeedback},
		{SectionID: "solution", Feedback: "Solution is thin."},
	}
	if len(got.SectionFeedback) != len(want) {
		t.Fatalf("expected %d section feedbacks, got %+v", len(want), got.SectionFeedback)
	}
	for i := range want {
		if got.SectionFeedback[i] != want[i] {
			t.Errorf("section %d = %+v, want %+v", i, got.SectionFeedback[i], want[i])
		}
	}
	if got.OverallFeedback != "Overall solid." || !got.GeneratedAt.Equal(now) {
		t.Errorf("unexpected overall feedback %+v", got)
	}

	sub, _ := f.store.GetSubmission(context.Background(), "sub-1")
	if sub.FeedbackStatus != store.FeedbackCompleted || sub.Suggestions == nil {
		t.Errorf("expected completed feedback to be stored, got %s", sub.FeedbackStatus)
	}
	if f.backend.Sessions() != 0 {
		t.Errorf("expected throwaway session to be deleted, got %d", f.backend.Sessions())
	}
	if completed != 1 {
		t.Errorf("expected one completion event, got %d", completed)
	}
}

func TestCoach_GenerateFeedback_Failure(t *testing.T) {
	f := newFixture(t)
	f.stub.Err = errors.New("model overloaded")

	_, err := f.coach.GenerateFeedback(context.Background(), "sub-1")
	if !errors.Is(err, assistant.ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}

	sub, _ := f.store.GetSubmission(context.Background(), "sub-1")
	if sub.FeedbackStatus != store.FeedbackFailed {
		t.Errorf("expected failed status, got %s", sub.FeedbackStatus)
	}
	if sub.Suggestions != nil {
		t.Error("expected no suggestions on failure")
	}
}

func TestCoach_CreateSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.coach.CreateSubmission(ctx, "ws-1", "p-7", []store.SectionContent{{SectionID: "problem", Text: "x"}})
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}
	if sub.ID == "" || sub.FeedbackStatus != store.FeedbackPending || sub.HasSession() {
		t.Errorf("unexpected submission %+v", sub)
	}
	if _, err := f.coach.CreateSubmission(ctx, "nope", "p-7", nil); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCoach_ProcessChatTurn_LostSession(t *testing.T) {
	f := newFixture(t, "first", "second")
	ctx := context.Background()

	first, err := f.coach.ProcessChatTurn(ctx, "sub-1", "hello", "")
	if err != nil {
		t.Fatalf("ProcessChatTurn failed: %v", err)
	}
	// Simulate a backend that forgot the session, as after a restart.
	if err := f.backend.DeleteSession(ctx, first.SessionID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	second, err := f.coach.ProcessChatTurn(ctx, "sub-1", "still there?", "")
	if err != nil {
		t.Fatalf("ProcessChatTurn failed: %v", err)
	}
	if !second.IsNew || second.SessionID == first.SessionID || second.Text != "second" {
		t.Errorf("expected a replacement session, got %+v", second)
	}
}

func TestCoach_ReaperFollowsTTL(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ApplyStore(store.NewMemoryStore()); err != nil {
		t.Fatal(err)
	}
	cfg.SessionTTL = 2 * time.Hour

	c := New(store.NewMemoryStore(), nil, cfg, nil, nil)
	if got := c.NewReaper().Interval(); got != 2*time.Hour {
		t.Errorf("expected reaper to sweep every 2h, got %s", got)
	}

	cfg.ReapInterval = 15 * time.Minute
	c = New(store.NewMemoryStore(), nil, cfg, nil, nil)
	if got := c.NewReaper().Interval(); got != 15*time.Minute {
		t.Errorf("expected explicit 15m interval, got %s", got)
	}
}
