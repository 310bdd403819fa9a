package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"Sonora/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadSong(t *testing.T, env *testEnv, token string, fields map[string][]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, files...)
	return env.do(t, request{method: http.MethodPost, path: "/songs/", token: token, body: body, contentType: ct})
}

func TestCreateSongRequiresArtist(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "listener", false)

	res := uploadSong(t, env, token, map[string][]string{"title": {"Anthem"}},
		formFile{field: "file", filename: "a.mp3", contentType: "audio/mpeg", data: mp3Data(4096)})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Only artists can create songs", detail(t, res))
}

func TestCreateSongValidatesUpload(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "artist", true)

	res := uploadSong(t, env, token, map[string][]string{"title": {"Anthem"}},
		formFile{field: "file", filename: "notes.txt", contentType: "text/plain", data: []byte("hello")})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "File must be an audio file", detail(t, res))

	// 扩展名正确但内容不是音频
	res = uploadSong(t, env, token, map[string][]string{"title": {"Anthem"}},
		formFile{field: "file", filename: "fake.mp3", contentType: "audio/mpeg", data: bytes.Repeat([]byte("x"), 4096)})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid audio file format", detail(t, res))

	res = uploadSong(t, env, token, map[string][]string{"title": {"Anthem"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Audio file is required", detail(t, res))

	songs, err := env.songs.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, songs, "rejected uploads must not create songs")
}

func TestCreateSongStoresProbedDuration(t *testing.T) {
	env := newTestEnv(t)
	artist, token := env.user(t, "artist", true)
	rock := &model.Genre{Name: "Rock"}
	require.NoError(t, env.genres.Create(context.Background(), rock))

	data := mp3Data(8192)
	res := uploadSong(t, env, token,
		map[string][]string{
			"title":     {"Anthem"},
			"genre_ids": {strconv.FormatInt(rock.ID, 10) + ",9999"},
		},
		formFile{field: "file", filename: "anthem.mp3", contentType: "audio/mpeg", data: data},
		formFile{field: "cover", filename: "cover.png", contentType: "image/png", data: []byte("\x89PNG fake")},
	)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var song model.Song
	decode(t, res, &song)
	assert.Equal(t, "Anthem", song.Title)
	assert.Equal(t, 215, song.Duration)
	assert.Equal(t, artist.ID, song.CreatorID)
	require.Len(t, song.Genres, 1)
	assert.Equal(t, "Rock", song.Genres[0].Name)

	stored, err := env.songs.GetByID(context.Background(), song.ID)
	require.NoError(t, err)
	assert.True(t, env.store.Exists(stored.FilePath))

	w := env.get(t, "/songs/"+itoa(song.ID)+"/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info model.SongInfo
	decode(t, w, &info)
	assert.EqualValues(t, len(data), info.FileSize)
	assert.Equal(t, "audio/mpeg", info.ContentType)

	w = env.get(t, "/songs/"+itoa(song.ID)+"/cover", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestUpdateAndDeleteSongOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.user(t, "owner", true)
	_, otherToken := env.user(t, "other", true)
	song := env.song(t, owner, "Anthem", mp3Data(2048))

	body, ct := multipartBody(t, map[string][]string{"title": {"Renamed"}})
	w := env.do(t, request{method: http.MethodPut, path: "/songs/" + itoa(song.ID), token: otherToken, body: body, contentType: ct})
	assert.Equal(t, http.StatusForbidden, w.Code)

	body, ct = multipartBody(t, map[string][]string{"title": {"Renamed"}})
	w = env.do(t, request{method: http.MethodPut, path: "/songs/" + itoa(song.ID), token: ownerToken, body: body, contentType: ct})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.Song
	decode(t, w, &updated)
	assert.Equal(t, "Renamed", updated.Title)

	w = env.do(t, request{method: http.MethodDelete, path: "/songs/" + itoa(song.ID), token: otherToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, request{method: http.MethodDelete, path: "/songs/" + itoa(song.ID), token: ownerToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.store.Exists(song.FilePath))

	w = env.get(t, "/songs/"+itoa(song.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Song not found", detail(t, w))
}

func TestLikeSongAndCheckLikes(t *testing.T) {
	env := newTestEnv(t)
	artist, _ := env.user(t, "artist", true)
	_, fan := env.user(t, "fan", false)
	liked := env.song(t, artist, "Liked", mp3Data(2048))
	other := env.song(t, artist, "Other", mp3Data(2048))

	w := env.do(t, request{method: http.MethodPost, path: "/songs/" + itoa(liked.ID) + "/like", token: fan})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, request{method: http.MethodPost, path: "/songs/" + itoa(liked.ID) + "/like", token: fan})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Song already liked", detail(t, w))

	w = env.get(t, "/songs/"+itoa(liked.ID)+"/is-liked", fan)
	require.Equal(t, http.StatusOK, w.Code)
	var isLiked map[string]bool
	decode(t, w, &isLiked)
	assert.True(t, isLiked["is_liked"])

	w = env.postJSON(t, "/songs/check-likes", fan, []int64{liked.ID, other.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var states map[string]bool
	decode(t, w, &states)
	assert.Equal(t, map[string]bool{itoa(liked.ID): true, itoa(other.ID): false}, states)

	w = env.get(t, "/users/me/liked-songs", fan)
	require.Equal(t, http.StatusOK, w.Code)
	var likedSongs []model.Song
	decode(t, w, &likedSongs)
	require.Len(t, likedSongs, 1)
	assert.Equal(t, liked.ID, likedSongs[0].ID)

	w = env.do(t, request{method: http.MethodDelete, path: "/songs/" + itoa(liked.ID) + "/like", token: fan})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, request{method: http.MethodDelete, path: "/songs/" + itoa(liked.ID) + "/like", token: fan})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Song not liked", detail(t, w))
}
