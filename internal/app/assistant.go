// Package app wires the assistant's components together on a single event loop.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/ambient"
	"github.com/saker-ai/orion-client/internal/channel"
	"github.com/saker-ai/orion-client/internal/clipboard"
	"github.com/saker-ai/orion-client/internal/config"
	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/observability"
	"github.com/saker-ai/orion-client/internal/playback"
	"github.com/saker-ai/orion-client/internal/protocol"
	"github.com/saker-ai/orion-client/internal/recorder"
	"github.com/saker-ai/orion-client/internal/render"
	"github.com/saker-ai/orion-client/internal/settings"
	"github.com/saker-ai/orion-client/internal/state"
	"github.com/saker-ai/orion-client/internal/transcript"
	"github.com/saker-ai/orion-client/internal/visualizer"
)

// StatusCopied is the transient status shown after the conversation is copied.
const StatusCopied = "Conversation copied!"

// Link is the server connection the assistant talks through.
type Link interface {
	Connect(ctx context.Context) error
	IsOpen() bool
	Send(payload protocol.RecordingPayload) bool
	Close() error
}

// Options holds the timing and sizing knobs.
type Options struct {
	ErrorRevertDelay   time.Duration
	NoticeRevertDelay  time.Duration
	ResponseTimeout    time.Duration
	SkipFailedSegments bool
	VisualizerFPS      int
	Ambient            ambient.Config
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ErrorRevertDelay:   cfg.Status.ErrorRevertDelay,
		NoticeRevertDelay:  cfg.Status.NoticeRevertDelay,
		ResponseTimeout:    cfg.Status.ResponseTimeout,
		SkipFailedSegments: cfg.Playback.SkipFailedSegments,
		VisualizerFPS:      cfg.Visualizer.FPS,
		Ambient: ambient.Config{
			BaseParticles: cfg.Ambient.BaseParticles,
			BusyExtra:     cfg.Ambient.BusyExtra,
			SpeedBoost:    cfg.Ambient.SpeedBoost,
			LinkDistance:  cfg.Ambient.LinkDistance,
			FPS:           cfg.Ambient.FPS,
			Seed:          cfg.Ambient.Seed,
		},
	}
}

// Deps are the collaborators the assistant drives.
type Deps struct {
	Exec             loop.Executor
	Settings         *settings.Settings
	Microphone       recorder.Microphone
	Decoder          playback.Decoder
	Player           playback.Player
	Clipboard        clipboard.Clipboard
	VisualizerCanvas render.Canvas
	AmbientCanvas    render.Canvas
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// Status is what the control surface reports.
type Status struct {
	state.Snapshot
	InterruptVisible bool             `json:"interrupt_visible"`
	QueueDepth       int              `json:"queue_depth"`
	Settings         settings.Values  `json:"settings"`
	Display          settings.Display `json:"display"`
}

// Assistant owns every component. Loop-owned fields are only touched from posted
// closures; the exported methods are safe to call from any goroutine.
type Assistant struct {
	exec     loop.Executor
	opts     Options
	logger   *zap.Logger
	metrics  *observability.Metrics
	settings *settings.Settings
	clip     clipboard.Clipboard

	state      *state.Controller
	log        *transcript.Log
	recorder   *recorder.Recorder
	queue      *playback.Queue
	visualizer *visualizer.Visualizer
	ambient    *ambient.Animator

	linkMu sync.RWMutex
	link   Link

	ctx    context.Context
	cancel context.CancelFunc

	interruptVisible atomic.Bool
	queueDepth       atomic.Int64

	// loop-owned
	awaiting      bool
	sentAt        time.Time
	responseTimer func() bool
}

// New builds an assistant. Bind a Link before calling Start.
func New(deps Deps, opts Options) *Assistant {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Settings == nil {
		deps.Settings = settings.New(settings.Bounds{}, settings.Values{})
	}
	if deps.Microphone == nil {
		deps.Microphone = recorder.Unavailable{}
	}
	clip := deps.Clipboard
	if clip == nil {
		clip = &clipboard.Memory{}
	}
	if opts.ErrorRevertDelay <= 0 {
		opts.ErrorRevertDelay = 3 * time.Second
	}
	if opts.NoticeRevertDelay <= 0 {
		opts.NoticeRevertDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Assistant{
		exec:     deps.Exec,
		opts:     opts,
		logger:   logger,
		metrics:  deps.Metrics,
		settings: deps.Settings,
		clip:     clip,
		state:    state.New(),
		log:      transcript.New(),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.visualizer = visualizer.New(a.exec, deps.VisualizerCanvas, a.settings, opts.VisualizerFPS, logger.Named("visualizer"))
	a.ambient = ambient.New(a.exec, deps.AmbientCanvas, opts.Ambient, logger.Named("ambient"))
	a.state.OnChange(a.stateChanged)

	a.queue = playback.New(a.exec, deps.Decoder, deps.Player, a.visualizer, playback.Hooks{
		OnEnqueued:    a.segmentEnqueued,
		OnStarted:     a.playbackStarted,
		OnFailed:      a.playbackFailed,
		OnEnded:       a.playbackEnded,
		OnDrained:     a.playbackDrained,
		OnInterrupted: a.playbackInterrupted,
	}, playback.Options{
		SkipFailed: opts.SkipFailedSegments,
		Rate:       a.settings.PlaybackRate,
		Logger:     logger.Named("playback"),
	})

	a.recorder = recorder.New(a.exec, deps.Microphone, linkSender{a}, a.sessionParams, recorder.Hooks{
		BeforeStart: a.interrupt,
		OnDenied:    func(error) { a.state.Apply(state.MicrophoneDenied) },
		OnStarted:   func() { a.state.Apply(state.RecordingStarted) },
		OnStopped:   func() { a.state.Apply(state.RecordingStopped) },
		OnSent:      func(int) { a.metrics.Recording("sent") },
		OnDropped:   a.metrics.Recording,
	}, logger.Named("recorder"))

	return a
}

// Bind attaches the server link.
func (a *Assistant) Bind(link Link) {
	a.linkMu.Lock()
	a.link = link
	a.linkMu.Unlock()
}

// Callbacks returns channel callbacks that hand every event to the loop.
func (a *Assistant) Callbacks() channel.Callbacks {
	return channel.Callbacks{
		OnOpen: func() {
			a.exec.Post(a.connected)
		},
		OnTranscript: func(text string) {
			a.metrics.WSMessage("in", string(protocol.TypeTranscript))
			a.exec.Post(func() { a.transcriptReceived(text) })
		},
		OnResponse: func(text string) {
			a.metrics.WSMessage("in", string(protocol.TypeLLMResponse))
			a.exec.Post(func() { a.responseReceived(text) })
		},
		OnAudio: func(segment string) {
			a.metrics.WSMessage("in", string(protocol.TypeAudioResponse))
			a.exec.Post(func() { a.audioReceived(segment) })
		},
		OnServerError: func(message string) {
			a.metrics.WSMessage("in", string(protocol.TypeError))
			a.exec.Post(func() { a.serverError(message) })
		},
		OnClose: func(err error) {
			a.exec.Post(func() { a.disconnected(err) })
		},
		OnError: func(err error) {
			a.logger.Warn("channel error", zap.Error(err))
		},
	}
}

// Start begins the ambient animation and connects the link once.
func (a *Assistant) Start(ctx context.Context) error {
	a.exec.Post(a.ambient.Start)
	link := a.currentLink()
	if link == nil {
		return nil
	}
	return link.Connect(ctx)
}

// Close stops every loop-owned activity and closes the link.
func (a *Assistant) Close() error {
	a.cancel()
	a.exec.Post(func() {
		a.recorder.Stop()
		if a.queue.Active() || a.queue.Len() > 0 {
			a.queue.Interrupt()
		}
		a.visualizer.Stop()
		a.ambient.Stop()
		a.cancelResponseTimer()
	})
	if link := a.currentLink(); link != nil {
		return link.Close()
	}
	return nil
}

// Status returns the current status snapshot.
func (a *Assistant) Status() Status {
	return Status{
		Snapshot:         a.state.Snapshot(),
		InterruptVisible: a.interruptVisible.Load(),
		QueueDepth:       int(a.queueDepth.Load()),
		Settings:         a.settings.Values(),
		Display:          a.settings.Display(),
	}
}

// State exposes the state controller for read-only queries.
func (a *Assistant) State() *state.Controller {
	return a.state
}

// Settings exposes the user controls.
func (a *Assistant) Settings() *settings.Settings {
	return a.settings
}

// Conversation returns the logged messages.
func (a *Assistant) Conversation() []transcript.Entry {
	return a.log.Entries()
}

// Ambient returns the particle animator. Population is safe from any goroutine.
func (a *Assistant) Ambient() *ambient.Animator {
	return a.ambient
}

func (a *Assistant) currentLink() Link {
	a.linkMu.RLock()
	defer a.linkMu.RUnlock()
	return a.link
}

func (a *Assistant) sessionParams() (float64, int, string) {
	v := a.settings.Values()
	return v.Temperature, v.ContextLength, v.Instructions
}

func (a *Assistant) stateChanged(from, to state.State) {
	a.metrics.Transition(string(to))
	a.logger.Debug("state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	switch {
	case to == state.StateProcessing:
		a.ambient.SetBusy(true)
	case from == state.StateProcessing:
		a.ambient.SetBusy(false)
	}
}

type linkSender struct {
	a *Assistant
}

func (s linkSender) IsOpen() bool {
	link := s.a.currentLink()
	return link != nil && link.IsOpen()
}

func (s linkSender) Send(payload protocol.RecordingPayload) bool {
	link := s.a.currentLink()
	if link == nil || !link.Send(payload) {
		return false
	}
	s.a.metrics.WSMessage("out", "recording")
	s.a.armResponseTimer()
	return true
}
