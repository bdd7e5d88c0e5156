package recorder

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/saker-ai/orion-client/internal/loop"
	"github.com/saker-ai/orion-client/internal/protocol"
	"github.com/saker-ai/orion-client/pkg/audio"
)

type fakeStream struct {
	ch       chan []byte
	once     sync.Once
	mu       sync.Mutex
	stopped  bool
	analyser *audio.Analyser
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte, 8)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.ch }

func (s *fakeStream) Stop() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (s *fakeStream) Monitor(a *audio.Analyser) {
	s.mu.Lock()
	s.analyser = a
	s.mu.Unlock()
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeMic struct {
	err     error
	streams []*fakeStream
}

func (m *fakeMic) Open(context.Context) (Stream, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := newFakeStream()
	m.streams = append(m.streams, s)
	return s, nil
}

type fakeSender struct {
	open bool
	sent []protocol.RecordingPayload
}

func (s *fakeSender) IsOpen() bool { return s.open }

func (s *fakeSender) Send(p protocol.RecordingPayload) bool {
	if !s.open || p.Audio == "" {
		return false
	}
	s.sent = append(s.sent, p)
	return true
}

type recorderHarness struct {
	exec   *loop.Manual
	mic    *fakeMic
	sender *fakeSender
	rec    *Recorder
	events []string
}

func newRecorderHarness(open bool) *recorderHarness {
	h := &recorderHarness{
		exec:   loop.NewManual(),
		mic:    &fakeMic{},
		sender: &fakeSender{open: open},
	}
	h.rec = New(h.exec, h.mic, h.sender, func() (float64, int, string) {
		return 0.8, 10, "be terse"
	}, Hooks{
		BeforeStart: func() { h.events = append(h.events, "interrupt") },
		OnDenied:    func(error) { h.events = append(h.events, "denied") },
		OnStarted:   func() { h.events = append(h.events, "started") },
		OnStopped:   func() { h.events = append(h.events, "stopped") },
		OnSent:      func(int) { h.events = append(h.events, "sent") },
		OnDropped:   func(reason string) { h.events = append(h.events, "dropped:"+reason) },
	}, nil)
	return h
}

func (h *recorderHarness) last() string {
	if len(h.events) == 0 {
		return ""
	}
	return h.events[len(h.events)-1]
}

func TestRecordingPayload(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Start(context.Background())
	h.exec.Drain()
	if !h.rec.Active() {
		t.Fatal("Active=false after grant, want true")
	}
	stream := h.mic.streams[0]
	if stream.analyser == nil {
		t.Fatal("live analyser not attached")
	}

	stream.ch <- []byte{1, 2, 3}
	stream.ch <- []byte{4, 5}
	h.rec.Stop()
	if !h.exec.Await(2*time.Second, func() bool { return h.last() == "sent" }) {
		t.Fatalf("events=%v, want sent", h.events)
	}

	if len(h.sender.sent) != 1 {
		t.Fatalf("sent=%d, want 1", len(h.sender.sent))
	}
	got := h.sender.sent[0]
	want := protocol.RecordingPayload{
		Audio:         base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4, 5}),
		Temperature:   0.8,
		ContextLength: 10,
		Instructions:  "be terse",
	}
	if got != want {
		t.Fatalf("payload=%+v, want %+v", got, want)
	}
	if !stream.isStopped() {
		t.Fatal("stream not stopped")
	}
	if stream.analyser != nil {
		t.Fatal("live analyser still attached")
	}
	if h.rec.Active() {
		t.Fatal("Active=true after finalize, want false")
	}
	wantEvents := []string{"interrupt", "started", "stopped", "sent"}
	for i := range wantEvents {
		if h.events[i] != wantEvents[i] {
			t.Fatalf("events=%v, want %v", h.events, wantEvents)
		}
	}
}

func TestRecordingWithoutChunksIsDropped(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Start(context.Background())
	h.exec.Drain()
	h.rec.Stop()
	if !h.exec.Await(2*time.Second, func() bool { return h.last() == "dropped:"+DropNoAudio }) {
		t.Fatalf("events=%v, want dropped:%s", h.events, DropNoAudio)
	}
	if len(h.sender.sent) != 0 {
		t.Fatalf("sent=%d, want 0", len(h.sender.sent))
	}
}

func TestRecordingDroppedWhenChannelClosed(t *testing.T) {
	h := newRecorderHarness(false)
	h.rec.Start(context.Background())
	h.exec.Drain()
	h.mic.streams[0].ch <- []byte{1}
	h.rec.Stop()
	if !h.exec.Await(2*time.Second, func() bool { return h.last() == "dropped:"+DropChannelShut }) {
		t.Fatalf("events=%v, want dropped:%s", h.events, DropChannelShut)
	}
	if !h.mic.streams[0].isStopped() {
		t.Fatal("stream not stopped after drop")
	}
}

func TestMicrophoneDenied(t *testing.T) {
	h := newRecorderHarness(true)
	h.mic.err = errors.New("permission denied")
	h.rec.Start(context.Background())
	h.exec.Drain()
	if h.last() != "denied" || h.rec.Active() {
		t.Fatalf("events=%v active=%v, want denied, inactive", h.events, h.rec.Active())
	}

	// the user may retry
	h.mic.err = nil
	h.rec.Start(context.Background())
	h.exec.Drain()
	if !h.rec.Active() {
		t.Fatal("Active=false after retry, want true")
	}
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Stop()
	h.exec.Drain()
	if len(h.events) != 0 {
		t.Fatalf("events=%v, want none", h.events)
	}
}

func TestReleaseWhilePendingAbandons(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Start(context.Background())
	if !h.rec.Pending() {
		t.Fatal("Pending=false before grant, want true")
	}
	h.rec.Stop()
	h.exec.Drain()

	if h.rec.Active() {
		t.Fatal("Active=true after abandoned grant, want false")
	}
	if !h.mic.streams[0].isStopped() {
		t.Fatal("late-granted stream not stopped")
	}
	for _, e := range h.events {
		if e == "started" || e == "sent" {
			t.Fatalf("events=%v, want no start or send", h.events)
		}
	}
}

type floodMic struct {
	done chan struct{}
}

// Open returns a stream whose producer keeps emitting until stop is requested.
func (m *floodMic) Open(context.Context) (Stream, error) {
	stream := newChunkStream(1, nil)
	go func() {
		defer close(m.done)
		defer close(stream.ch)
		for stream.emit(make([]byte, 320)) {
		}
	}()
	return stream, nil
}

func TestAbandonedStreamIsDrained(t *testing.T) {
	mic := &floodMic{done: make(chan struct{})}
	exec := loop.NewManual()
	rec := New(exec, mic, &fakeSender{open: true}, nil, Hooks{}, nil)

	rec.Start(context.Background())
	rec.Stop()
	exec.Drain()

	select {
	case <-mic.done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer still blocked after the abandoned stream was stopped")
	}
	if rec.Active() || rec.Pending() {
		t.Fatalf("active=%v pending=%v, want both false", rec.Active(), rec.Pending())
	}
}

func TestStartIgnoredWhileRecording(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Start(context.Background())
	h.exec.Drain()
	h.rec.Start(context.Background())
	h.exec.Drain()
	if len(h.mic.streams) != 1 {
		t.Fatalf("streams=%d, want 1", len(h.mic.streams))
	}
}

func TestStreamEndingEarlyFinalizes(t *testing.T) {
	h := newRecorderHarness(true)
	h.rec.Start(context.Background())
	h.exec.Drain()
	s := h.mic.streams[0]
	s.ch <- []byte{9}
	_ = s.Stop()
	if !h.exec.Await(2*time.Second, func() bool { return h.last() == "sent" }) {
		t.Fatalf("events=%v, want sent", h.events)
	}
}

func collect(t *testing.T, s Stream, stopAfter int) [][]byte {
	t.Helper()
	var out [][]byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case c, ok := <-s.Chunks():
			if !ok {
				return out
			}
			out = append(out, c)
			if len(out) == stopAfter {
				_ = s.Stop()
			}
		case <-timeout:
			t.Fatal("timed out reading stream")
		}
	}
}

func TestFileMicrophoneChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcm")
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	mic := &FileMicrophone{Path: path, ChunkBytes: 4, Interval: time.Millisecond}
	s, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	chunks := collect(t, s, 3)
	if len(chunks) != 3 || len(chunks[2]) != 2 {
		t.Fatalf("chunks=%v, want sizes 4,4,2", chunks)
	}
}

func TestFileMicrophoneMissing(t *testing.T) {
	mic := &FileMicrophone{Path: filepath.Join(t.TempDir(), "nope.pcm")}
	if _, err := mic.Open(context.Background()); err == nil {
		t.Fatal("Open error=nil, want non-nil")
	}
}

func TestWAVMicrophoneHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcm")
	pcm := audio.Int16ToBytes([]int16{1, 2, 3, 4})
	if err := os.WriteFile(path, pcm, 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	mic := &WAVMicrophone{Source: &FileMicrophone{Path: path, ChunkBytes: 8, Interval: time.Millisecond}, SampleRate: 16000, Channels: 1}
	s, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	var blob []byte
	for _, c := range collect(t, s, 2) {
		blob = append(blob, c...)
	}
	got, err := audio.DecodeWAV(blob, 0, 0)
	if err != nil {
		t.Fatalf("DecodeWAV error: %v", err)
	}
	if string(got.Data) != string(pcm) {
		t.Fatalf("pcm=%v, want %v", got.Data, pcm)
	}
}

func TestOpusMicrophoneFramesPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcm")
	// two 20ms frames at 16kHz mono
	if err := os.WriteFile(path, make([]byte, 1280), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	mic := &OpusMicrophone{
		Source:        &FileMicrophone{Path: path, ChunkBytes: 1280, Interval: time.Millisecond},
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: 20,
	}
	s, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	chunks := collect(t, s, 2)
	if len(chunks) != 2 {
		t.Fatalf("chunks=%d, want 2", len(chunks))
	}
	if chunks[0][0] != 0 {
		t.Fatalf("frame type=%d, want audio", chunks[0][0])
	}
}

func TestCommandMicrophoneMissingBinary(t *testing.T) {
	mic := &CommandMicrophone{Argv: []string{"/nonexistent/orion-capture"}}
	if _, err := mic.Open(context.Background()); err == nil {
		t.Fatal("Open error=nil, want non-nil")
	}
	if _, err := (&CommandMicrophone{}).Open(context.Background()); !errors.Is(err, ErrNoMicrophone) {
		t.Fatalf("Open err=%v, want ErrNoMicrophone", err)
	}
}
