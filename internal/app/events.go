package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/state"
	"github.com/saker-ai/orion-client/internal/transcript"
)

func (a *Assistant) connected() {
	a.logger.Info("connected to assistant server")
	a.state.Apply(state.Connected)
}

func (a *Assistant) disconnected(err error) {
	a.cancelResponseTimer()
	if err != nil {
		a.logger.Warn("connection lost", zap.Error(err))
	} else {
		a.logger.Info("connection closed")
	}
	a.state.Apply(state.ConnectionLost)
}

func (a *Assistant) transcriptReceived(text string) {
	a.responseArrived()
	a.log.Append(transcript.SenderYou, text)
}

func (a *Assistant) responseReceived(text string) {
	a.responseArrived()
	a.log.Append(transcript.SenderAssistant, text)
}

func (a *Assistant) audioReceived(segment string) {
	a.responseArrived()
	a.queue.Enqueue(segment)
	a.queue.Pump()
}

// serverError shows the error, logs it, and returns to ready after the revert delay
// unless another status replaced it first.
func (a *Assistant) serverError(message string) {
	a.responseArrived()
	a.metrics.ServerError()
	rev := a.state.Apply(state.ErrorReceived(message))
	a.log.Append(transcript.SenderSystem, a.state.Status())
	a.exec.AfterFunc(a.opts.ErrorRevertDelay, func() {
		if a.state.Revision() == rev {
			a.state.Apply(state.Ready)
		}
	})
}

func (a *Assistant) interrupt() {
	if !a.queue.Active() && a.queue.Len() == 0 {
		a.hideInterrupt()
		a.state.Apply(state.Ready)
		return
	}
	a.queue.Interrupt()
}

func (a *Assistant) segmentEnqueued(depth int) {
	a.metrics.Segment("enqueued")
	a.setQueueDepth(depth)
}

func (a *Assistant) playbackStarted() {
	a.setQueueDepth(a.queue.Len())
	a.metrics.Segment("started")
	a.state.Apply(state.PlaybackStarted)
	a.interruptVisible.Store(true)
}

func (a *Assistant) playbackFailed(err error) {
	a.setQueueDepth(a.queue.Len())
	a.metrics.Segment("failed")
	a.logger.Warn("audio segment failed", zap.Error(err))
	a.state.Apply(state.PlaybackFailed)
	a.hideInterrupt()
}

func (a *Assistant) playbackEnded() {
	a.setQueueDepth(a.queue.Len())
	a.metrics.Segment("played")
}

func (a *Assistant) playbackDrained() {
	a.state.Apply(state.Ready)
	a.hideInterrupt()
}

func (a *Assistant) playbackInterrupted(discarded int) {
	a.setQueueDepth(0)
	a.metrics.Interrupt()
	a.state.Apply(state.Ready)
	a.hideInterrupt()
	if discarded > 0 {
		a.logger.Info("discarded queued segments", zap.Int("segments", discarded))
	}
}

func (a *Assistant) hideInterrupt() {
	a.interruptVisible.Store(false)
}

func (a *Assistant) setQueueDepth(n int) {
	a.queueDepth.Store(int64(n))
	a.metrics.SetQueueDepth(n)
}

func (a *Assistant) armResponseTimer() {
	a.cancelResponseTimer()
	a.awaiting = true
	a.sentAt = time.Now()
	if a.opts.ResponseTimeout <= 0 {
		return
	}
	a.responseTimer = a.exec.AfterFunc(a.opts.ResponseTimeout, func() {
		if !a.awaiting || a.responseTimer == nil {
			return
		}
		a.awaiting = false
		a.responseTimer = nil
		if a.state.State() != state.StateProcessing {
			return
		}
		a.logger.Warn("no response from server", zap.Duration("timeout", a.opts.ResponseTimeout))
		a.state.Apply(state.ResponseTimedOut)
	})
}

func (a *Assistant) responseArrived() {
	if !a.awaiting {
		return
	}
	a.awaiting = false
	a.metrics.ObserveResponseLatency(time.Since(a.sentAt))
	a.cancelResponseTimer()
}

func (a *Assistant) cancelResponseTimer() {
	if a.responseTimer != nil {
		a.responseTimer()
		a.responseTimer = nil
	}
}
