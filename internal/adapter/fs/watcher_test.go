package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faq.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))

	w, err := NewWatcher(path, 100*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	changes, err := w.Watch(ctx)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		for i := 0; i < 3; i++ {
			_ = os.WriteFile(path, []byte(`[{"questions":["q"],"answer":"a"}]`), 0644)
			time.Sleep(10 * time.Millisecond)
		}
		_ = os.WriteFile(filepath.Join(dir, "other.json"), []byte("[]"), 0644)
	}()

	select {
	case got := <-changes:
		abs, _ := filepath.Abs(path)
		assert.Equal(t, abs, got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for change notification")
	}

	select {
	case got, ok := <-changes:
		if ok {
			t.Fatalf("expected a single debounced notification, got another for %s", got)
		}
	case <-time.After(300 * time.Millisecond):
	}
}
