package provider

import (
	"context"
	"sync"
	"time"
)

// StubProvider replays scripted responses. Once the script is exhausted it
// keeps answering with Fallback. Safe for concurrent use.
type StubProvider struct {
	mu        sync.Mutex
	Responses []Response
	Fallback  string
	Delay     time.Duration
	Err       error
	calls     [][]Message
}

func NewStubProvider(responses ...string) *StubProvider {
	s := &StubProvider{Fallback: "Here is some advice on your canvas: sharpen the **customer segment** first."}
	for _, r := range responses {
		s.Responses = append(s.Responses, Response{Content: r, Usage: Usage{TotalTokens: len(r)}})
	}
	return s
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]Message(nil), messages...))
	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.Responses) == 0 {
		return &Response{Content: m.Fallback}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

// Calls returns the message lists the stub has been called with.
func (m *StubProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

func (m *StubProvider) Name() string {
	return "stub"
}
