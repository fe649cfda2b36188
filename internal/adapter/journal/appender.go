// Package journal writes the plain-text analysis log.
//
// Each entry is "[YYYY-MM-DD HH:MM:SS] message\n" in local time. The file is
// only ever opened for append and is closed again after every entry, so
// prior content is never rewritten.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// TimeLayout is the entry timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

const lockTimeout = 5 * time.Second

// Appender appends entries to one log file.
type Appender struct {
	path    string
	lockDir string
	now     func() time.Time
}

func NewAppender(path string) *Appender {
	return &Appender{
		path:    path,
		lockDir: filepath.Join(os.TempDir(), "loganalyzer-locks"),
		now:     time.Now,
	}
}

// WithLockDir places the cross-process lock file in dir instead of the
// system temp directory. Nothing is ever created next to the log.
func (a *Appender) WithLockDir(dir string) *Appender {
	if dir != "" {
		a.lockDir = dir
	}
	return a
}

// WithClock replaces the time source. Used by tests.
func (a *Appender) WithClock(now func() time.Time) *Appender {
	a.now = now
	return a
}

// Append writes message as a single entry. Embedded newlines are kept
// inside the entry.
func (a *Appender) Append(message string) error {
	entry := Format(a.now(), message)

	// The lock serializes writers from other processes; if it cannot be
	// taken the write still goes ahead with plain O_APPEND semantics.
	if err := os.MkdirAll(a.lockDir, 0755); err == nil {
		fl := flock.New(LockPath(a.lockDir, a.path))
		ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
		defer cancel()
		if locked, err := fl.TryLockContext(ctx, 50*time.Millisecond); err == nil && locked {
			defer fl.Unlock()
		}
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", a.path, err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return fmt.Errorf("journal: write %s: %w", a.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close %s: %w", a.path, err)
	}
	return nil
}

// LockPath names the lock file for logPath inside lockDir. Writers that
// reach the same log through different relative paths share one lock.
func LockPath(lockDir, logPath string) string {
	if abs, err := filepath.Abs(logPath); err == nil {
		logPath = abs
	}
	sum := sha256.Sum256([]byte(logPath))
	return filepath.Join(lockDir, "journal-"+hex.EncodeToString(sum[:8])+".lock")
}

// Format renders one entry, including the trailing newline.
func Format(t time.Time, message string) string {
	return "[" + t.Format(TimeLayout) + "] " + message + "\n"
}
