package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/canvascoach/internal/provider"
	"github.com/google/uuid"
)

// ChatBackend emulates server-side sessions on top of a chat-completion
// provider. Transcripts live in process memory; each run completes the
// transcript on its own goroutine so callers poll it like a remote run.
type ChatBackend struct {
	provider provider.Provider

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*chatSession
}

type chatSession struct {
	messages  []Message // oldest first
	runs      map[string]*chatRun
	activeRun string
}

type chatRun struct {
	status RunStatus
	err    error
}

func NewChatBackend(p provider.Provider) *ChatBackend {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatBackend{
		provider: p,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*chatSession),
	}
}

func (b *ChatBackend) CreateSession(ctx context.Context) (string, error) {
	id := "chat_" + uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[id] = &chatSession{runs: make(map[string]*chatRun)}
	return id, nil
}

func (b *ChatBackend) DeleteSession(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	delete(b.sessions, sessionID)
	return nil
}

func (b *ChatBackend) AppendMessage(ctx context.Context, sessionID string, role Role, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	s.messages = append(s.messages, Message{Role: role, Text: text})
	return nil
}

func (b *ChatBackend) StartRun(ctx context.Context, sessionID, instructions string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if active, ok := s.runs[s.activeRun]; ok && active.status.Pending() {
		return "", fmt.Errorf("session %s already has an active run %s", sessionID, s.activeRun)
	}

	runID := "run_" + uuid.NewString()
	run := &chatRun{status: RunQueued}
	s.runs[runID] = run
	s.activeRun = runID

	transcript := make([]provider.Message, 0, len(s.messages)+1)
	if instructions != "" {
		transcript = append(transcript, provider.Message{Role: provider.RoleSystem, Content: instructions})
	}
	for _, m := range s.messages {
		transcript = append(transcript, provider.Message{Role: string(m.Role), Content: m.Text})
	}

	b.wg.Add(1)
	go b.execute(sessionID, run, transcript)

	return runID, nil
}

func (b *ChatBackend) execute(sessionID string, run *chatRun, transcript []provider.Message) {
	defer b.wg.Done()

	b.mu.Lock()
	run.status = RunInProgress
	b.mu.Unlock()

	resp, err := b.provider.Chat(b.ctx, transcript)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case errors.Is(err, context.Canceled):
		run.status, run.err = RunCancelled, err
	case err != nil:
		run.status, run.err = RunFailed, err
	default:
		run.status = RunCompleted
		if s, ok := b.sessions[sessionID]; ok {
			s.messages = append(s.messages, Message{Role: RoleAssistant, Text: resp.Content})
		}
	}
}

func (b *ChatBackend) PollRun(ctx context.Context, sessionID, runID string) (RunStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	run, ok := s.runs[runID]
	if !ok {
		return "", fmt.Errorf("unknown run %s in session %s", runID, sessionID)
	}
	return run.status, nil
}

func (b *ChatBackend) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[len(s.messages)-1-i] = m
	}
	return out, nil
}

// Sessions returns the number of live sessions.
func (b *ChatBackend) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Close cancels in-flight runs and waits for their goroutines to exit.
func (b *ChatBackend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
