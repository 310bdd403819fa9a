package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsRemovedFiles(t *testing.T) {
	store := newTestStore(t)
	key, _, err := store.Save(KindSong, "a.mp3", strings.NewReader("data"), 0)
	require.NoError(t, err)

	removed := make(chan string, 4)
	w, err := NewWatcher(store, []string{store.Path("songs")}, func(k string) { removed <- k })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.Remove(store.Path(key)))

	select {
	case got := <-removed:
		assert.Equal(t, key, got)
	case <-time.After(3 * time.Second):
		t.Fatal("removal was not reported")
	}
}

func TestWatcherRejectsMissingDir(t *testing.T) {
	store := newTestStore(t)
	_, err := NewWatcher(store, []string{store.Path("nope")}, func(string) {})
	assert.Error(t, err)
}
