package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/app"
	"github.com/saker-ai/orion-client/internal/observability"
	"github.com/saker-ai/orion-client/internal/settings"
)

// Snapshot renders the last published frame of a canvas.
type Snapshot interface {
	PNG() ([]byte, error)
}

// Options collects what the control surface exposes.
type Options struct {
	Assistant  *app.Assistant
	Metrics    *observability.Metrics
	Visualizer Snapshot
	Ambient    Snapshot
}

type settingsRequest struct {
	settings.Patch
	RateSlider *float64 `json:"rate_slider,omitempty"`
}

// NewRouter builds the local control surface.
func NewRouter(opts Options, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := opts.Assistant

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	api := router.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Status())
	})
	api.POST("/record/start", action(a, a.StartRecording))
	api.POST("/record/stop", action(a, a.StopRecording))
	api.POST("/interrupt", action(a, a.Interrupt))

	api.GET("/settings", func(c *gin.Context) {
		s := a.Settings()
		c.JSON(http.StatusOK, gin.H{"values": s.Values(), "display": s.Display(), "bounds": s.Bounds()})
	})
	api.PATCH("/settings", func(c *gin.Context) {
		var req settingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := a.UpdateSettings(req.Patch); err != nil {
			c.JSON(settingsStatus(err), gin.H{"error": err.Error()})
			return
		}
		if req.RateSlider != nil {
			if _, err := a.SetRateSlider(*req.RateSlider); err != nil {
				c.JSON(settingsStatus(err), gin.H{"error": err.Error()})
				return
			}
		}
		s := a.Settings()
		c.JSON(http.StatusOK, gin.H{"values": s.Values(), "display": s.Display()})
	})

	api.GET("/conversation", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entries": a.Conversation(), "text": a.ConversationText()})
	})
	api.DELETE("/conversation", func(c *gin.Context) {
		a.ClearConversation()
		c.Status(http.StatusNoContent)
	})
	api.POST("/conversation/copy", func(c *gin.Context) {
		if err := a.CopyConversation(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": app.StatusCopied})
	})

	api.GET("/visualizer.png", png(opts.Visualizer, logger))
	api.GET("/ambient.png", png(opts.Ambient, logger))

	return router
}

func action(a *app.Assistant, fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, app.ErrClosed) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, a.Status())
	}
}

func settingsStatus(err error) int {
	if errors.Is(err, settings.ErrOutOfRange) || errors.Is(err, settings.ErrUnknownOption) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func png(snap Snapshot, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if snap == nil {
			c.Status(http.StatusNotFound)
			return
		}
		data, err := snap.PNG()
		if err != nil {
			logger.Warn("canvas snapshot failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", data)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
		)
	}
}
