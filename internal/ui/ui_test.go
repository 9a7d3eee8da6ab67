package ui

import (
	"testing"

	"github.com/felixgeelhaar/canvascoach/internal/events"
)

type progress struct{ attempt, max int }

// recordingUI implements UI for testing
type recordingUI struct {
	statuses []string
	progress []progress
	logs     []string
}

func (r *recordingUI) UpdateStatus(status string)      { r.statuses = append(r.statuses, status) }
func (r *recordingUI) UpdateProgress(attempt, max int) { r.progress = append(r.progress, progress{attempt, max}) }
func (r *recordingUI) Log(msg string)                  { r.logs = append(r.logs, msg) }

func TestSilentUI_ImplementsInterface(t *testing.T) {
	var u UI = SilentUI{}
	u.UpdateStatus("x")
	u.UpdateProgress(1, 30)
	u.Log("")
}

func TestAttach(t *testing.T) {
	bus := events.NewBus()
	u := &recordingUI{}
	Attach(bus, u)

	bus.Publish(events.Event{Type: events.SessionCreated, SessionID: "thread_1"})
	bus.Publish(events.Event{Type: events.RunStarted})
	bus.Publish(events.Event{Type: events.RunPolled, Data: map[string]any{"attempt": 3, "max": 30}})
	bus.Publish(events.Event{Type: events.RunCompleted})

	if len(u.logs) != 1 || u.logs[0] != "Started coaching session thread_1" {
		t.Errorf("unexpected logs %v", u.logs)
	}
	if len(u.progress) != 2 || u.progress[1] != (progress{3, 30}) {
		t.Errorf("unexpected progress %v", u.progress)
	}
	if len(u.statuses) != 2 || u.statuses[1] != "Ready" {
		t.Errorf("unexpected statuses %v", u.statuses)
	}
}

func TestAttach_RunFailed(t *testing.T) {
	bus := events.NewBus()
	u := &recordingUI{}
	Attach(bus, u)

	bus.Publish(events.Event{Type: events.RunFailed, Data: map[string]any{"status": "expired"}})
	if len(u.statuses) != 1 || u.statuses[0] != "Run expired" {
		t.Errorf("unexpected statuses %v", u.statuses)
	}
}
