// Package assistant talks to the generative-AI assistant that holds
// conversation sessions, and drives runs inside those sessions to completion.
package assistant

import (
	"context"
	"errors"
	"fmt"
)

// Role is the author of a message appended to a session.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// SystemPrefix marks system text on backends that only accept user messages.
const SystemPrefix = "[SYSTEM]: "

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunRequiresAction RunStatus = "requires_action"
	RunIncomplete     RunStatus = "incomplete"
)

// Pending reports whether the run has not reached a terminal status yet.
func (s RunStatus) Pending() bool {
	return s == RunQueued || s == RunInProgress
}

// Message is one entry of a session transcript.
type Message struct {
	Role Role
	Text string
}

// Backend is the remote side of a conversation session.
type Backend interface {
	CreateSession(ctx context.Context) (string, error)
	// DeleteSession removes the remote session. Callers treat failures as
	// best-effort.
	DeleteSession(ctx context.Context, sessionID string) error
	AppendMessage(ctx context.Context, sessionID string, role Role, text string) error
	StartRun(ctx context.Context, sessionID, instructions string) (string, error)
	PollRun(ctx context.Context, sessionID, runID string) (RunStatus, error)
	// ListMessages returns the transcript newest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

var (
	// ErrRunFailed matches any run that ended in a non-completed terminal status.
	ErrRunFailed = errors.New("assistant run failed")
	// ErrRunTimedOut is returned when a run is still pending after the attempt cap.
	ErrRunTimedOut = errors.New("assistant run timed out")
	// ErrUnknownSession is returned by backends for a session they do not hold.
	ErrUnknownSession = errors.New("unknown session")
)

// RunFailedError carries the terminal status of a failed run.
type RunFailedError struct {
	RunID  string
	Status RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("assistant run %s failed with status: %s", e.RunID, e.Status)
}

func (e *RunFailedError) Is(target error) bool {
	return target == ErrRunFailed
}

// emulateSystem folds a system message into user text for backends that
// only accept the user role.
func emulateSystem(role Role, text string) string {
	if role == RoleSystem {
		return SystemPrefix + text
	}
	return text
}
