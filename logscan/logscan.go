// Package logscan waits for markers to appear in a log file written by another process.
package logscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oar-cd/hound/domain"
)

// DefaultInterval is the fallback polling period when no file event arrives
const DefaultInterval = time.Second

// Scanner rereads a whole log file until a marker shows up or the timeout expires.
// File system events only shorten the wait between two reads.
type Scanner struct {
	Interval time.Duration
}

func NewScanner(interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scanner{Interval: interval}
}

// ExtractSecret returns the trimmed text between prefix and the next suffix.
// A prefix without a following suffix is a partial write and is not a match.
func ExtractSecret(content, prefix, suffix string) (string, bool) {
	start := strings.Index(content, prefix)
	if start == -1 {
		return "", false
	}
	rest := content[start+len(prefix):]

	end := strings.Index(rest, suffix)
	if end == -1 {
		return "", false
	}

	secret := strings.TrimSpace(rest[:end])
	if secret == "" {
		return "", false
	}
	return secret, true
}

// AwaitSecret waits for the bootstrap secret framed by prefix and suffix
func (s *Scanner) AwaitSecret(ctx context.Context, logPath, prefix, suffix string, timeout time.Duration) (string, error) {
	var secret string
	err := s.await(ctx, logPath, timeout, "await_secret", func(content string) bool {
		var ok bool
		secret, ok = ExtractSecret(content, prefix, suffix)
		return ok
	})
	if err != nil {
		return "", err
	}
	return secret, nil
}

// AwaitMarker waits until marker appears anywhere in the log
func (s *Scanner) AwaitMarker(ctx context.Context, logPath, marker string, timeout time.Duration) error {
	return s.await(ctx, logPath, timeout, "await_marker", func(content string) bool {
		return strings.Contains(content, marker)
	})
}

func (s *Scanner) await(ctx context.Context, logPath string, timeout time.Duration, operation string, match func(string) bool) error {
	deadline := time.Now().Add(timeout)

	events, closeWatcher := s.watch(logPath)
	defer closeWatcher()

	timer := time.NewTimer(s.Interval)
	timer.Stop()
	defer timer.Stop()

	attempts := 0
	for {
		attempts++
		content, err := os.ReadFile(logPath)
		switch {
		case err == nil:
			if match(string(content)) {
				slog.Debug("Log marker found",
					"layer", "logscan",
					"operation", operation,
					"log_path", logPath,
					"attempts", attempts)
				return nil
			}
		case errors.Is(err, os.ErrNotExist):
			// The runtime has not created its output yet
		default:
			return fmt.Errorf("failed to read log %s: %w", logPath, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s after %s", domain.ErrBootstrapTimeout, logPath, timeout)
		}

		timer.Reset(min(s.Interval, remaining))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-events:
			timer.Stop()
		}
	}
}

// watch subscribes to write events on logPath. Without a watcher the returned
// channel never fires and the scanner falls back to plain polling.
func (s *Scanner) watch(logPath string) (<-chan struct{}, func()) {
	notify := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("File watcher unavailable, polling only", "layer", "logscan", "error", err)
		return notify, func() {}
	}

	// Watch the directory so that creation of the log is seen as well
	if err := watcher.Add(filepath.Dir(logPath)); err != nil {
		slog.Debug("File watcher unavailable, polling only", "layer", "logscan", "error", err)
		_ = watcher.Close()
		return notify, func() {}
	}

	target := filepath.Clean(logPath)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case notify <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return notify, func() {
		close(done)
		_ = watcher.Close()
	}
}
