package clipboard

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestSystemSetText(t *testing.T) {
	var got string
	s := System{write: func(text string) error {
		got = text
		return nil
	}}
	if err := s.SetText(context.Background(), "You\nhello"); err != nil {
		t.Fatalf("SetText err=%v", err)
	}
	if got != "You\nhello" {
		t.Fatalf("written=%q, want %q", got, "You\nhello")
	}

	boom := errors.New("xclip: exit status 1")
	s = System{write: func(string) error { return boom }}
	if err := s.SetText(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapped %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	s = System{write: func(string) error { called = true; return nil }}
	if err := s.SetText(ctx, "x"); !errors.Is(err, context.Canceled) || called {
		t.Fatalf("err=%v called=%v, want context.Canceled without write", err, called)
	}
}

func TestDetectConfiguredCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	c, err := Detect([]string{"sh", "-c", "cat >/dev/null"})
	if err != nil {
		t.Fatalf("Detect err=%v", err)
	}
	if _, ok := c.(*Command); !ok {
		t.Fatalf("Detect=%T, want *Command", c)
	}
}

func TestDetectConfiguredMissing(t *testing.T) {
	if _, err := Detect([]string{"orion-no-such-clipboard-tool"}); err == nil {
		t.Fatalf("expected error for missing configured command")
	}
}

func TestCommandSetText(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "clip.txt")
	c := &Command{Argv: []string{"sh", "-c", "cat > " + out}}
	if err := c.SetText(context.Background(), "You\nhello"); err != nil {
		t.Fatalf("SetText err=%v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	if string(data) != "You\nhello" {
		t.Fatalf("copied=%q, want %q", data, "You\nhello")
	}
}

func TestMemory(t *testing.T) {
	var m Memory
	_ = m.SetText(context.Background(), "a")
	_ = m.SetText(context.Background(), "b")
	if m.Text() != "b" || m.Copies() != 2 {
		t.Fatalf("text=%q copies=%d, want b and 2", m.Text(), m.Copies())
	}
}
