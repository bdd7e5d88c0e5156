// Package transcript keeps the local conversation log.
package transcript

import (
	"strings"
	"sync"
	"time"
)

const (
	SenderYou       = "You"
	SenderAssistant = "Assistant"
	SenderSystem    = "System"
)

// Entry is one logged message.
type Entry struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Log is an append-only conversation log that can be cleared. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append adds a message.
func (l *Log) Append(sender, text string) Entry {
	e := Entry{Sender: sender, Text: text, At: l.now()}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// Clear empties the log. The server keeps its own history.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Text renders the log as plain text, sender above message, one blank line between entries.
func (l *Log) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var b strings.Builder
	for i, e := range l.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e.Sender)
		b.WriteByte('\n')
		b.WriteString(e.Text)
	}
	return b.String()
}
