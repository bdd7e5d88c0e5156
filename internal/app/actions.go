package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/settings"
	"github.com/saker-ai/orion-client/internal/state"
)

// ErrClosed is returned by actions after Close.
var ErrClosed = errors.New("app: assistant closed")

// StartRecording is the press half of the record gesture. It interrupts playback first.
func (a *Assistant) StartRecording() error {
	if err := a.ctx.Err(); err != nil {
		return ErrClosed
	}
	a.exec.Post(func() { a.recorder.Start(a.ctx) })
	return nil
}

// StopRecording is the release half of the record gesture.
func (a *Assistant) StopRecording() error {
	if err := a.ctx.Err(); err != nil {
		return ErrClosed
	}
	a.exec.Post(a.recorder.Stop)
	return nil
}

// Interrupt stops playback and discards queued segments.
func (a *Assistant) Interrupt() error {
	if err := a.ctx.Err(); err != nil {
		return ErrClosed
	}
	a.exec.Post(a.interrupt)
	return nil
}

// UpdateSettings validates and stores a partial settings change. A new playback rate
// reaches the active voice without restarting it.
func (a *Assistant) UpdateSettings(p settings.Patch) error {
	if err := a.settings.Apply(p); err != nil {
		return err
	}
	if p.PlaybackRate != nil {
		rate := a.settings.PlaybackRate()
		a.exec.Post(func() { a.queue.SetRate(rate) })
	}
	return nil
}

// SetRateSlider moves the playback rate slider to pos in [0, 1].
func (a *Assistant) SetRateSlider(pos float64) (float64, error) {
	rate, err := a.settings.SetSlider(pos)
	if err != nil {
		return 0, err
	}
	a.exec.Post(func() { a.queue.SetRate(rate) })
	return rate, nil
}

// ClearConversation empties the local log. The server keeps its history.
func (a *Assistant) ClearConversation() {
	a.log.Clear()
	a.logger.Info("conversation cleared")
}

// ConversationText renders the log the way it is copied.
func (a *Assistant) ConversationText() string {
	return a.log.Text()
}

// CopyConversation copies the rendered log to the clipboard and shows a transient
// confirmation that reverts to the default status.
func (a *Assistant) CopyConversation(ctx context.Context) error {
	if err := a.clip.SetText(ctx, a.log.Text()); err != nil {
		a.logger.Warn("copy conversation failed", zap.Error(err))
		return err
	}
	a.exec.Post(a.copied)
	return nil
}

func (a *Assistant) copied() {
	rev := a.state.Notify(StatusCopied)
	a.exec.AfterFunc(a.opts.NoticeRevertDelay, func() {
		if a.state.Revision() == rev {
			a.state.RestoreDefault()
		}
	})
}

// Snapshot is a convenience for callers that only need the state.
func (a *Assistant) Snapshot() state.Snapshot {
	return a.state.Snapshot()
}
