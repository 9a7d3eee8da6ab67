package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend keeps sessions as OpenAI Assistants threads.
type OpenAIBackend struct {
	client      *openai.Client
	assistantID string
}

func NewOpenAIBackend(apiKey, baseURL, assistantID string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if assistantID == "" {
		return nil, errors.New("assistant ID is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIBackend{
		client:      openai.NewClientWithConfig(config),
		assistantID: assistantID,
	}, nil
}

func (b *OpenAIBackend) CreateSession(ctx context.Context) (string, error) {
	thread, err := b.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

func (b *OpenAIBackend) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := b.client.DeleteThread(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", sessionID, err)
	}
	return nil
}

// AppendMessage adds a message to the thread. Assistants threads only take
// user messages, so system text is sent as a tagged user message.
func (b *OpenAIBackend) AppendMessage(ctx context.Context, sessionID string, role Role, text string) error {
	_, err := b.client.CreateMessage(ctx, sessionID, openai.MessageRequest{
		Role:    "user",
		Content: emulateSystem(role, text),
	})
	if err != nil {
		return fmt.Errorf("failed to add message to thread %s: %w", sessionID, classify(err))
	}
	return nil
}

func (b *OpenAIBackend) StartRun(ctx context.Context, sessionID, instructions string) (string, error) {
	run, err := b.client.CreateRun(ctx, sessionID, openai.RunRequest{
		AssistantID:  b.assistantID,
		Instructions: instructions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start run on thread %s: %w", sessionID, classify(err))
	}
	return run.ID, nil
}

func (b *OpenAIBackend) PollRun(ctx context.Context, sessionID, runID string) (RunStatus, error) {
	run, err := b.client.RetrieveRun(ctx, sessionID, runID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve run %s: %w", runID, err)
	}
	return RunStatus(run.Status), nil
}

func (b *OpenAIBackend) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	limit := 20
	order := "desc"
	list, err := b.client.ListMessage(ctx, sessionID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of thread %s: %w", sessionID, err)
	}

	out := make([]Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg := Message{Role: Role(m.Role)}
		for _, c := range m.Content {
			if c.Type == "text" && c.Text != nil && c.Text.Value != "" {
				msg.Text = c.Text.Value
				break
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

// classify maps a missing thread onto ErrUnknownSession.
func classify(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound,
		errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrUnknownSession, err)
	}
	return err
}
