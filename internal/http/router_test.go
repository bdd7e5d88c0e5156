package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/saker-ai/orion-client/internal/ambient"
	"github.com/saker-ai/orion-client/internal/app"
	"github.com/saker-ai/orion-client/internal/clipboard"
	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/observability"
	"github.com/saker-ai/orion-client/internal/render"
	"github.com/saker-ai/orion-client/internal/settings"
	"github.com/saker-ai/orion-client/internal/state"
)

type fixture struct {
	exec   *loop.Manual
	clip   *clipboard.Memory
	a      *app.Assistant
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{exec: loop.NewManual(), clip: &clipboard.Memory{}}
	metrics := observability.NewMetrics("router_test")
	vis := render.NewRaster(60, 20)
	amb := render.NewRaster(60, 30)
	f.a = app.New(app.Deps{
		Exec: f.exec,
		Settings: settings.New(settings.Bounds{
			TemperatureMin: 0, TemperatureMax: 1,
			ContextMin: 1, ContextMax: 50,
			RateMin: 0.97, RateMax: 1.2,
		}, settings.Values{Temperature: 0.7, ContextLength: 10, PlaybackRate: 1}),
		Clipboard:        f.clip,
		VisualizerCanvas: vis,
		AmbientCanvas:    amb,
		Metrics:          metrics,
	}, app.Options{Ambient: ambient.Config{BaseParticles: 3, Seed: 1}})
	f.router = NewRouter(Options{Assistant: f.a, Metrics: metrics, Visualizer: vis, Ambient: amb}, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health=%d %s", rec.Code, rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/status", "")
	var got app.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode err=%v", err)
	}
	if got.State != state.StateIdle || got.Status != state.StatusReady || got.Display.PlaybackRate != "0.13" {
		t.Fatalf("status=%+v", got)
	}
}

func TestRecordWithoutMicrophone(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/record/start", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code=%d, want 202", rec.Code)
	}
	f.exec.Drain()
	if got := f.a.State().Status(); got != state.StatusMicrophoneDenied {
		t.Fatalf("status=%q, want %q", got, state.StatusMicrophoneDenied)
	}
}

func TestSettingsPatch(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPatch, "/api/settings", `{"temperature":0.3,"visualization_style":"waveform"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
	v := f.a.Settings().Values()
	if v.Temperature != 0.3 || v.Style != settings.StyleWaveform {
		t.Fatalf("values=%+v", v)
	}

	rec = f.do(t, http.MethodPatch, "/api/settings", `{"color_scheme":"neon"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code=%d, want 400 for unknown scheme", rec.Code)
	}
	rec = f.do(t, http.MethodPatch, "/api/settings", `{"temperature":7}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code=%d, want 400 for out of range", rec.Code)
	}
	rec = f.do(t, http.MethodPatch, "/api/settings", `{"rate_slider":1}`)
	if rec.Code != http.StatusOK || f.a.Settings().PlaybackRate() != 1.2 {
		t.Fatalf("code=%d rate=%v, want slider at max", rec.Code, f.a.Settings().PlaybackRate())
	}
}

func TestConversationEndpoints(t *testing.T) {
	f := newFixture(t)
	f.a.Callbacks().OnTranscript("hello")
	f.exec.Drain()

	rec := f.do(t, http.MethodGet, "/api/conversation", "")
	if !strings.Contains(rec.Body.String(), "You\\nhello") {
		t.Fatalf("conversation=%s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/conversation/copy", "")
	if rec.Code != http.StatusOK || f.clip.Text() != "You\nhello" {
		t.Fatalf("copy code=%d clipboard=%q", rec.Code, f.clip.Text())
	}
	f.exec.Drain()
	if f.a.State().Status() != app.StatusCopied {
		t.Fatalf("status=%q, want copy notice", f.a.State().Status())
	}

	rec = f.do(t, http.MethodDelete, "/api/conversation", "")
	if rec.Code != http.StatusNoContent || len(f.a.Conversation()) != 0 {
		t.Fatalf("clear code=%d entries=%d", rec.Code, len(f.a.Conversation()))
	}
}

func TestSnapshots(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/visualizer.png", "/api/ambient.png"} {
		rec := f.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s code=%d type=%q", path, rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Fatalf("%s is not a png", path)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.a.Callbacks().OnServerError("boom")
	f.exec.Drain()
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "router_test_server_errors_total 1") {
		t.Fatalf("metrics missing server error counter")
	}
}

func TestClosedAssistant(t *testing.T) {
	f := newFixture(t)
	_ = f.a.Close()
	rec := f.do(t, http.MethodPost, "/api/interrupt", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d, want 503", rec.Code)
	}
}
