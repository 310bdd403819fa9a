package server

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSong(t *testing.T) {
	env := newTestEnv(t)
	artist, _ := env.user(t, "artist", true)
	data := mp3Data(3 << 20) // 跨越多个分块
	song := env.song(t, artist, "Long", data)
	path := "/songs/" + itoa(song.ID) + "/stream"
	size := strconv.Itoa(len(data))

	t.Run("no range returns whole file", func(t *testing.T) {
		w := env.get(t, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
		assert.Equal(t, size, w.Header().Get("Content-Length"))
		assert.Equal(t, data, w.Body.Bytes())
	})

	t.Run("bounded range", func(t *testing.T) {
		w := env.do(t, request{method: http.MethodGet, path: path, header: map[string]string{"Range": "bytes=100-199"}})
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "bytes 100-199/"+size, w.Header().Get("Content-Range"))
		assert.Equal(t, "100", w.Header().Get("Content-Length"))
		assert.Equal(t, data[100:200], w.Body.Bytes())
	})

	t.Run("open ended range", func(t *testing.T) {
		start := len(data) - 10
		w := env.do(t, request{method: http.MethodGet, path: path, header: map[string]string{"Range": "bytes=" + strconv.Itoa(start) + "-"}})
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, data[start:], w.Body.Bytes())
	})

	t.Run("end past eof is clamped", func(t *testing.T) {
		w := env.do(t, request{method: http.MethodGet, path: path, header: map[string]string{"Range": "bytes=0-999999999"}})
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "bytes 0-"+strconv.Itoa(len(data)-1)+"/"+size, w.Header().Get("Content-Range"))
		assert.Len(t, w.Body.Bytes(), len(data))
	})

	t.Run("start past eof", func(t *testing.T) {
		w := env.do(t, request{method: http.MethodGet, path: path, header: map[string]string{"Range": "bytes=" + size + "-"}})
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
		assert.Equal(t, "bytes */"+size, w.Header().Get("Content-Range"))
	})

	t.Run("malformed range", func(t *testing.T) {
		for _, h := range []string{"bytes=abc-", "items=0-1", "bytes=-500", "bytes=0-1,5-6", "bytes=10-5"} {
			w := env.do(t, request{method: http.MethodGet, path: path, header: map[string]string{"Range": h}})
			assert.Equal(t, http.StatusBadRequest, w.Code, h)
		}
	})

	t.Run("head sends headers only", func(t *testing.T) {
		w := env.do(t, request{method: http.MethodHead, path: path, header: map[string]string{"Range": "bytes=0-9"}})
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "10", w.Header().Get("Content-Length"))
		assert.Empty(t, w.Body.Bytes())
	})
}

func TestStreamMissingSongOrFile(t *testing.T) {
	env := newTestEnv(t)
	artist, _ := env.user(t, "artist", true)
	song := env.song(t, artist, "Gone", mp3Data(2048))

	w := env.get(t, "/songs/999/stream", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Song not found", detail(t, w))

	require.NoError(t, env.store.Remove(song.FilePath))
	w = env.get(t, "/songs/"+itoa(song.ID)+"/stream", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Song file not found", detail(t, w))
}
