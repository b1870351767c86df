package session

import "time"

type EventType string

const (
	EventStateChanged     EventType = "state_changed"
	EventCountdownTick    EventType = "countdown_tick"
	EventArtifact         EventType = "artifact"
	EventError            EventType = "error"
	EventRecordingActive  EventType = "recording_active"
	EventRecordingStopped EventType = "recording_stopped"
)

type Event struct {
	Type      EventType
	Time      time.Time
	SessionID string
	From      State
	To        State
	Remaining int
	Artifact  *Artifact
	Err       error
}

// Observer receives controller events. Events are delivered synchronously
// while the controller is serialized, so observers must not call back into
// the controller.
type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
