package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"Sonora/cache"
	"Sonora/config"
	"Sonora/core/audio"
	"Sonora/core/auth"
	"Sonora/core/notify"
	"Sonora/db/dbtest"
	"Sonora/model"
	"Sonora/repository"
	"Sonora/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber 返回固定时长，测试不依赖 ffprobe
type fakeProber struct {
	duration audio.Duration
}

func (p fakeProber) Probe(context.Context, string) audio.Duration {
	return p.duration
}

type testEnv struct {
	handler http.Handler
	redis   *miniredis.Miniredis
	store   *storage.LocalStore
	tokens  *auth.TokenManager
	hub     *notify.Hub

	users     repository.UserRepository
	songs     repository.SongRepository
	albums    repository.AlbumRepository
	playlists repository.PlaylistRepository
	genres    repository.GenreRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		MaxAudioSize: 1 << 20,
		MaxImageSize: 64 << 10,
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
	}
	cfg.SetUploadDir(t.TempDir())

	store := storage.NewLocalStore(cfg)
	require.NoError(t, store.EnsureDirs())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := notify.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	gdb := dbtest.Open(t)
	env := &testEnv{
		redis:     mr,
		store:     store,
		tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		hub:       hub,
		users:     repository.NewGormUserRepository(gdb),
		songs:     repository.NewGormSongRepository(gdb),
		albums:    repository.NewGormAlbumRepository(gdb),
		playlists: repository.NewGormPlaylistRepository(gdb),
		genres:    repository.NewGormGenreRepository(gdb),
	}
	env.handler = NewRouter(NewAPIHandler(cfg, Dependencies{
		Users:      env.users,
		Songs:      env.songs,
		Albums:     env.albums,
		Playlists:  env.playlists,
		Genres:     env.genres,
		Store:      store,
		Prober:     fakeProber{duration: audio.KnownDuration(215)},
		Tokens:     env.tokens,
		History:    cache.NewSearchHistory(client),
		GenreCache: cache.NewGenreCache(client),
		Hub:        hub,
	}))
	return env
}

// user 直接写库创建用户并签发令牌
func (e *testEnv) user(t *testing.T, name string, artist bool) (*model.User, string) {
	t.Helper()
	hashed, err := auth.HashPassword("secret-" + name)
	require.NoError(t, err)
	u := &model.User{
		Email:          name + "@example.com",
		Username:       name,
		HashedPassword: hashed,
		IsActive:       true,
		IsArtist:       artist,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	token, err := e.tokens.GenerateToken(u.ID, u.Username)
	require.NoError(t, err)
	return u, token
}

// song 在存储中写入音频并创建歌曲记录
func (e *testEnv) song(t *testing.T, creator *model.User, title string, data []byte, genreIDs ...int64) *model.Song {
	t.Helper()
	key, _, err := e.store.Save(storage.KindSong, title+".mp3", bytes.NewReader(data), 0)
	require.NoError(t, err)
	s := &model.Song{Title: title, Duration: 180, FilePath: key, CreatorID: creator.ID}
	require.NoError(t, e.songs.Create(context.Background(), s, genreIDs))
	return s
}

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
	header      map[string]string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(req.method, req.path, req.body)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.contentType != "" {
		r.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodGet, path: path, token: token})
}

func (e *testEnv) postJSON(t *testing.T, path, token string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, request{
		method:      http.MethodPost,
		path:        path,
		token:       token,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	decode(t, w, &body)
	return body.Detail
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string][]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// mp3Data 带 ID3 头的假音频
func mp3Data(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	copy(b, "ID3")
	return b
}

func TestRootAndFallbacks(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var root map[string]string
	decode(t, w, &root)
	assert.Equal(t, "/docs", root["docs_url"])
	assert.NotEmpty(t, root["message"])

	w = env.get(t, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", detail(t, w))

	// 路由只接受数字 ID
	w = env.get(t, "/songs/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, request{method: http.MethodPatch, path: "/songs/1"})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSExposesRangeHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, request{
		method: http.MethodGet,
		path:   "/",
		header: map[string]string{"Origin": "http://player.example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestPaginationRejectsNegativeValues(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/songs?skip=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.get(t, "/songs/?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.get(t, "/songs/?skip=0&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
