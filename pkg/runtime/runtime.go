package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/app"
	"github.com/saker-ai/orion-client/internal/channel"
	"github.com/saker-ai/orion-client/internal/clipboard"
	appconfig "github.com/saker-ai/orion-client/internal/config"
	apphttp "github.com/saker-ai/orion-client/internal/http"
	applogger "github.com/saker-ai/orion-client/internal/logger"
	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/observability"
	"github.com/saker-ai/orion-client/internal/playback"
	"github.com/saker-ai/orion-client/internal/recorder"
	"github.com/saker-ai/orion-client/internal/render"
	"github.com/saker-ai/orion-client/internal/settings"
)

// Client is a fully wired assistant client with its control surface.
type Client struct {
	cfg       appconfig.Config
	logger    *zap.Logger
	loop      *loop.Loop
	assistant *app.Assistant
	channel   *channel.Channel
	server    *http.Server
	sink      playback.Sink

	loopCtx  context.Context
	stopLoop context.CancelFunc
	stopOnce sync.Once
	running  atomic.Bool
}

// New loads the config at configPath (empty means discover it) and wires every component.
func New(configPath string) (*Client, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load orion config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("orion logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	logger.Info("orion config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("ws_url", cfg.WSURL),
		zap.String("http_addr", cfg.Control.HTTPAddr),
	)
	return NewWithConfig(cfg, logger)
}

// NewWithConfig wires a client from an already loaded config.
func NewWithConfig(cfg appconfig.Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loopCtx, stopLoop := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		loop:     loop.New(applogger.Component(logger, "loop"), 512),
		loopCtx:  loopCtx,
		stopLoop: stopLoop,
	}

	mic, err := recorder.FromConfig(cfg.Recorder, applogger.Component(logger, "microphone"))
	if err != nil {
		logger.Warn("no usable microphone, recording will be denied", zap.Error(err))
		mic = recorder.Unavailable{Err: err}
	}

	if len(cfg.Playback.SinkCommand) > 0 {
		sink, err := playback.StartCommandSink(loopCtx, cfg.Playback.SinkCommand, applogger.Component(logger, "sink"))
		if err != nil {
			logger.Warn("audio sink unavailable, playing silently", zap.Error(err))
		} else {
			c.sink = sink
		}
	}
	player := playback.NewClockPlayer(playback.ClockConfig{
		Tick:             cfg.Playback.Tick,
		FFTSize:          cfg.Visualizer.FFTSize,
		OutputSampleRate: cfg.Playback.OutputSampleRate,
	}, c.sink, applogger.Component(logger, "player"))

	var clip clipboard.Clipboard
	if cmd, err := clipboard.Detect(cfg.Clipboard.Command); err != nil {
		logger.Warn("clipboard command unavailable, copies stay in memory", zap.Error(err))
		clip = &clipboard.Memory{}
	} else {
		clip = cmd
	}

	visCanvas := render.NewRaster(cfg.Visualizer.Width, cfg.Visualizer.Height)
	ambCanvas := render.NewRaster(cfg.Ambient.Width, cfg.Ambient.Height)
	metrics := observability.NewMetrics("orion")

	c.assistant = app.New(app.Deps{
		Exec:             c.loop,
		Settings:         settings.FromConfig(cfg),
		Microphone:       mic,
		Decoder:          playback.NewFormatDecoder(cfg.Playback.Format, cfg.Playback.SampleRate, cfg.Playback.Channels),
		Player:           player,
		Clipboard:        clip,
		VisualizerCanvas: visCanvas,
		AmbientCanvas:    ambCanvas,
		Metrics:          metrics,
		Logger:           logger,
	}, app.OptionsFromConfig(cfg))

	c.channel = channel.New(channel.Config{
		URL:                cfg.WSURL,
		HandshakeTimeout:   cfg.Server.HandshakeTimeout,
		InsecureSkipVerify: cfg.Server.InsecureSkipVerify,
	}, c.assistant.Callbacks(), applogger.Component(logger, "channel"))
	c.assistant.Bind(c.channel)

	router := apphttp.NewRouter(apphttp.Options{
		Assistant:  c.assistant,
		Metrics:    metrics,
		Visualizer: visCanvas,
		Ambient:    ambCanvas,
	}, applogger.Component(logger, "http"))
	c.server = &http.Server{
		Addr:              cfg.Control.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return c, nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// Assistant returns the wired assistant.
func (c *Client) Assistant() *app.Assistant {
	return c.assistant
}

// Run starts the event loop, connects to the server and serves the control surface
// until Shutdown. A failed connection is reported through the status line, not here.
func (c *Client) Run(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	if c.running.CompareAndSwap(false, true) {
		go c.loop.Run(c.loopCtx)
	}

	go func() {
		if err := c.assistant.Start(ctx); err != nil {
			c.logger.Error("connect to assistant server failed", zap.String("url", c.cfg.WSURL), zap.Error(err))
		}
	}()

	ln, err := net.Listen("tcp", c.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.server.Addr, err)
	}
	c.logger.Info("starting control server", zap.String("addr", ln.Addr().String()))
	return ignoreServerClosed(c.server.Serve(ln))
}

// Addr returns the configured control address.
func (c *Client) Addr() string {
	if c == nil || c.server == nil {
		return ""
	}
	return c.server.Addr
}

// Shutdown closes the connection, stops the control server and the event loop.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	var errs []error
	if err := c.assistant.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if c.running.Load() {
		// let the loop run the cleanup posted by Close
		if err := c.loop.Do(ctx, func() {}); err != nil && !errors.Is(err, loop.ErrStopped) {
			errs = append(errs, err)
		}
	}
	if err := ignoreServerClosed(c.server.Shutdown(ctx)); err != nil {
		errs = append(errs, err)
	}
	c.stopOnce.Do(c.stopLoop)
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
