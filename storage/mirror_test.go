package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingMirror struct {
	mu      sync.Mutex
	uploads []string
	removed []string
	fail    bool
}

func (m *recordingMirror) Upload(_ context.Context, key, _, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, key+"|"+contentType)
	if m.fail {
		return errors.New("bucket offline")
	}
	return nil
}

func (m *recordingMirror) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, key)
	return nil
}

func TestAsyncMirrorRunsInBackground(t *testing.T) {
	rec := &recordingMirror{fail: true}
	a := NewAsyncMirror(rec, time.Second)

	a.Upload("songs/a.mp3", "/tmp/a.mp3", "audio/mpeg")
	a.Remove("covers/c.png")
	a.Remove("")
	a.Wait()

	assert.Equal(t, []string{"songs/a.mp3|audio/mpeg"}, rec.uploads)
	assert.Equal(t, []string{"covers/c.png"}, rec.removed)
}

func TestAsyncMirrorDisabled(t *testing.T) {
	var nilMirror *AsyncMirror
	nilMirror.Upload("k", "p", "t")
	nilMirror.Wait()

	NewAsyncMirror(nil, time.Second).Remove("k")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "10.0 MB", FormatSize(10<<20))
}
