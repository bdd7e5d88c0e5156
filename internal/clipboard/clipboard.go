// Package clipboard copies text to the system clipboard.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when the platform has no usable clipboard.
var ErrUnavailable = errors.New("clipboard: no clipboard command available")

// Clipboard receives copied text.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Detect returns a Command for the configured argv, or the system clipboard when argv is empty.
func Detect(argv []string) (Clipboard, error) {
	if len(argv) > 0 {
		if _, err := exec.LookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("clipboard command %q: %w", argv[0], err)
		}
		return &Command{Argv: argv}, nil
	}
	if clipboard.Unsupported {
		return nil, ErrUnavailable
	}
	return System{}, nil
}

// System writes through the platform clipboard tool (pbcopy, wl-copy, xclip, xsel or clip).
type System struct {
	write func(string) error
}

func (s System) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	write := s.write
	if write == nil {
		write = clipboard.WriteAll
	}
	if err := write(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// Command pipes text into a configured clipboard tool.
type Command struct {
	Argv []string
}

// SetText runs the command with text on stdin.
func (c *Command) SetText(ctx context.Context, text string) error {
	if len(c.Argv) == 0 {
		return ErrUnavailable
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	return nil
}

// Memory keeps the last copied text in process. It backs headless runs and tests.
type Memory struct {
	mu   sync.Mutex
	text string
	n    int
}

func (m *Memory) SetText(_ context.Context, text string) error {
	m.mu.Lock()
	m.text = text
	m.n++
	m.mu.Unlock()
	return nil
}

// Text returns the last copied text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Copies returns how many times SetText was called.
func (m *Memory) Copies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}
