package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Sink receives PCM16 audio that is being played.
type Sink interface {
	Write(pcm []byte) error
	Close() error
}

// CommandSink pipes audio into the stdin of a long-running process such as
// `aplay -f S16_LE -r 24000 -c 1` or `ffplay -f s16le -ar 24000 -nodisp -`.
type CommandSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// StartCommandSink starts the process. argv[0] is the program.
func StartCommandSink(ctx context.Context, argv []string, logger *zap.Logger) (*CommandSink, error) {
	if len(argv) == 0 {
		return nil, errors.New("sink command is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sink stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sink %q: %w", argv[0], err)
	}
	logger.Info("audio sink started", zap.Strings("command", argv), zap.Int("pid", cmd.Process.Pid))
	return &CommandSink{cmd: cmd, stdin: stdin, logger: logger}, nil
}

// Write implements Sink.
func (s *CommandSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	_, err := s.stdin.Write(pcm)
	return err
}

// Close implements Sink.
func (s *CommandSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.stdin.Close()
	err := s.cmd.Wait()
	s.logger.Info("audio sink stopped", zap.Error(err))
	return err
}
