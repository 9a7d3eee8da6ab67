// Package ui reports coaching progress to whoever is watching.
package ui

import (
	"fmt"

	"github.com/felixgeelhaar/canvascoach/internal/events"
)

type UI interface {
	UpdateStatus(status string)
	UpdateProgress(attempt, max int)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)      {}
func (s SilentUI) UpdateProgress(attempt, max int) {}
func (s SilentUI) Log(msg string)                  {}

// Attach forwards session and run events from bus to u.
func Attach(bus *events.Bus, u UI) {
	bus.Subscribe(events.SessionCreated, func(e events.Event) {
		u.Log(fmt.Sprintf("Started coaching session %s", e.SessionID))
	})
	bus.Subscribe(events.SessionReset, func(e events.Event) {
		u.Log("Conversation reset")
	})
	bus.Subscribe(events.RunStarted, func(e events.Event) {
		u.UpdateStatus("Thinking...")
		u.UpdateProgress(0, 0)
	})
	bus.Subscribe(events.RunPolled, func(e events.Event) {
		attempt, _ := e.Data["attempt"].(int)
		max, _ := e.Data["max"].(int)
		u.UpdateProgress(attempt, max)
	})
	bus.Subscribe(events.RunCompleted, func(e events.Event) {
		u.UpdateStatus("Ready")
	})
	bus.Subscribe(events.RunFailed, func(e events.Event) {
		status, _ := e.Data["status"].(string)
		u.UpdateStatus("Run " + status)
	})
}
