// Package logging wraps decred/slog into one per-process backend handing
// out per-subsystem loggers, mirroring how the teacher service wired its
// subsystem loggers ("GATEWAY", "ENGINE", ...) from a single slog.Backend.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/decred/slog"
)

// Backend owns the process-wide slog.Backend and the loggers it has handed
// out, so level changes via SetLevels apply consistently everywhere.
type Backend struct {
	backend slog.Backend

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// New creates a Backend writing every logger's output to w.
func New(w io.Writer) *Backend {
	return &Backend{
		backend: slog.NewBackend(w),
		loggers: make(map[string]slog.Logger),
	}
}

// NewStdout is the common case: log to stdout only.
func NewStdout() *Backend { return New(os.Stdout) }

// Logger returns (creating if needed) the named subsystem logger, e.g.
// "GATEWAY", "ENGINE", "EVENTS", "PUBSUB", "DB".
func (b *Backend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(slog.LevelInfo)
	b.loggers[subsystem] = l
	return l
}

// SetLevels parses the teacher's "subsystem=level,subsystem=level" grammar
// (a bare "level" with no subsystem sets every already-created logger).
func (b *Backend) SetLevels(spec string) error {
	if spec == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "=") {
			lvl, ok := slog.LevelFromString(part)
			if !ok {
				return fmt.Errorf("logging: invalid level %q", part)
			}
			for _, l := range b.loggers {
				l.SetLevel(lvl)
			}
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		subsystem, levelStr := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		lvl, ok := slog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("logging: invalid level %q for subsystem %q", levelStr, subsystem)
		}
		b.Logger(subsystem).SetLevel(lvl)
	}
	return nil
}
