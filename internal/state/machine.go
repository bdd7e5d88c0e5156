// Package state owns the assistant's logical state and the status line shown to the user.
package state

import (
	"strings"
	"sync"
)

// State describes what the assistant is doing.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

// Status lines shown for each event.
const (
	StatusConnected        = "Connection established. Hold button to speak."
	StatusRecording        = "Recording... Release to stop."
	StatusProcessing       = "Processing..."
	StatusPlaying          = "Playing response..."
	StatusReady            = "Ready. Press the button to speak."
	StatusMicrophoneDenied = "Error: Microphone access denied."
	StatusPlaybackFailed   = "Error playing audio response."
	StatusConnectionLost   = "Connection lost. Please refresh."
	StatusNoResponse       = "Error: no response from server"
	errorPrefix            = "Error: "
)

// Kind names a discrete transition event.
type Kind string

const (
	KindConnected        Kind = "connected"
	KindRecordingStarted Kind = "recording_started"
	KindRecordingStopped Kind = "recording_stopped"
	KindPlaybackStarted  Kind = "playback_started"
	KindReady            Kind = "ready"
	KindErrorReceived    Kind = "error_received"
	KindMicrophoneDenied Kind = "microphone_denied"
	KindPlaybackFailed   Kind = "playback_failed"
	KindConnectionLost   Kind = "connection_lost"
	KindResponseTimedOut Kind = "response_timed_out"
)

// Event is a transition request. Detail is only used by KindErrorReceived.
type Event struct {
	Kind   Kind
	Detail string
}

// Events for the fixed transitions.
var (
	Connected        = Event{Kind: KindConnected}
	RecordingStarted = Event{Kind: KindRecordingStarted}
	RecordingStopped = Event{Kind: KindRecordingStopped}
	PlaybackStarted  = Event{Kind: KindPlaybackStarted}
	Ready            = Event{Kind: KindReady}
	MicrophoneDenied = Event{Kind: KindMicrophoneDenied}
	PlaybackFailed   = Event{Kind: KindPlaybackFailed}
	ConnectionLost   = Event{Kind: KindConnectionLost}
	ResponseTimedOut = Event{Kind: KindResponseTimedOut}
)

// ErrorReceived builds the event for a server-reported error.
func ErrorReceived(detail string) Event {
	return Event{Kind: KindErrorReceived, Detail: detail}
}

// Resolve returns the state and status line an event produces.
func (e Event) Resolve() (State, string) {
	switch e.Kind {
	case KindConnected:
		return StateIdle, StatusConnected
	case KindRecordingStarted:
		return StateListening, StatusRecording
	case KindRecordingStopped:
		return StateProcessing, StatusProcessing
	case KindPlaybackStarted:
		return StateSpeaking, StatusPlaying
	case KindErrorReceived:
		return StateIdle, errorPrefix + e.Detail
	case KindMicrophoneDenied:
		return StateIdle, StatusMicrophoneDenied
	case KindPlaybackFailed:
		return StateIdle, StatusPlaybackFailed
	case KindConnectionLost:
		return StateIdle, StatusConnectionLost
	case KindResponseTimedOut:
		return StateIdle, StatusNoResponse
	default:
		return StateIdle, StatusReady
	}
}

// StateFromStatus derives a state from a status line by prefix. Every status an Event
// resolves to maps back to that event's state.
func StateFromStatus(message string) State {
	switch {
	case strings.HasPrefix(message, "Recording"):
		return StateListening
	case strings.HasPrefix(message, "Processing"):
		return StateProcessing
	case strings.HasPrefix(message, "Playing"):
		return StateSpeaking
	default:
		return StateIdle
	}
}

// DefaultStatusFor returns the resting status line for a state.
func DefaultStatusFor(s State) string {
	switch s {
	case StateListening:
		return StatusRecording
	case StateProcessing:
		return StatusProcessing
	case StateSpeaking:
		return StatusPlaying
	default:
		return StatusReady
	}
}

// Listener observes state changes. It runs synchronously inside Apply.
type Listener func(from, to State)

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State    State  `json:"state"`
	Status   string `json:"status"`
	Revision uint64 `json:"revision"`
}

// Controller is the single source of truth for the assistant state.
type Controller struct {
	mu        sync.RWMutex
	state     State
	status    string
	revision  uint64
	listeners []Listener
}

// New creates a controller in the idle state.
func New() *Controller {
	return &Controller{
		state:  StateIdle,
		status: StatusReady,
	}
}

// OnChange registers a listener for state transitions.
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Apply performs a transition and returns the new revision.
func (c *Controller) Apply(e Event) uint64 {
	to, status := e.Resolve()
	return c.set(to, status)
}

// Notify replaces the status line without changing the state.
func (c *Controller) Notify(message string) uint64 {
	c.mu.RLock()
	current := c.state
	c.mu.RUnlock()
	return c.set(current, message)
}

// RestoreDefault resets the status line to the default for the current state.
func (c *Controller) RestoreDefault() uint64 {
	c.mu.RLock()
	current := c.state
	c.mu.RUnlock()
	return c.set(current, DefaultStatusFor(current))
}

// DefaultStatus returns the resting status for the current state.
func (c *Controller) DefaultStatus() string {
	return DefaultStatusFor(c.State())
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns the current status line.
func (c *Controller) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Revision increments on every status change.
func (c *Controller) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Snapshot returns state, status and revision together.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{State: c.state, Status: c.status, Revision: c.revision}
}

func (c *Controller) set(to State, status string) uint64 {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.status = status
	c.revision++
	rev := c.revision
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if from != to {
		for _, l := range listeners {
			l(from, to)
		}
	}
	return rev
}
