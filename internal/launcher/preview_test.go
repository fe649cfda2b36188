package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "analysis.log")
	require.NoError(t, os.WriteFile(logPath, []byte("[2025-01-01 00:00:00] hello\n"), 0644))

	assert.Equal(t, NoLogSelected, Preview(""))
	assert.Equal(t, NoLogSelected, Preview("   "))
	assert.Equal(t, "[2025-01-01 00:00:00] hello\n", Preview(logPath))

	missing := filepath.Join(dir, "missing.log")
	assert.Equal(t, "<Log file not found: "+missing+">", Preview(missing))
	assert.Contains(t, Preview(dir), "<Error reading log file:")
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{"/x.log"}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", "/x.log"}},
		{"linux", "xdg-open", []string{"/x.log"}},
		{"freebsd", "xdg-open", []string{"/x.log"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "/x.log")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestOpenExternal_MissingFile(t *testing.T) {
	err := OpenExternal(filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, ErrNoLogFile)
}

func TestWatchFile_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "analysis.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- WatchFile(ctx, logPath, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.log"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(logPath, []byte("entry\n"), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	assert.ErrorIs(t, <-watchErr, context.Canceled)
}
