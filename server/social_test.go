package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Sonora/core/notify"
	"Sonora/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowFlow(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice", false)
	bob, bobToken := env.user(t, "bob", true)

	w := env.do(t, request{method: http.MethodPost, path: "/users/follow/" + itoa(alice.ID), token: aliceToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot follow yourself", detail(t, w))

	w = env.do(t, request{method: http.MethodPost, path: "/users/follow/999", token: aliceToken})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, request{method: http.MethodPost, path: "/users/follow/" + itoa(bob.ID), token: aliceToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var status model.FollowStatus
	decode(t, w, &status)
	assert.True(t, status.IsFollowing)
	assert.EqualValues(t, 1, status.FollowerCount)

	w = env.do(t, request{method: http.MethodPost, path: "/users/follow/" + itoa(bob.ID), token: aliceToken})
	assert.Equal(t, "Already following this user", detail(t, w))

	w = env.get(t, "/users/followers", bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	var followers []model.UserProfile
	decode(t, w, &followers)
	require.Len(t, followers, 1)
	assert.Equal(t, "alice", followers[0].Username)

	w = env.get(t, "/users/"+itoa(bob.ID)+"/profile", aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	var profile model.UserProfile
	decode(t, w, &profile)
	assert.True(t, profile.IsFollowing)

	w = env.do(t, request{method: http.MethodDelete, path: "/users/follow/" + itoa(bob.ID), token: aliceToken})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, request{method: http.MethodDelete, path: "/users/follow/" + itoa(bob.ID), token: aliceToken})
	assert.Equal(t, "Not following this user", detail(t, w))
}

func TestUserSongsRequiresArtist(t *testing.T) {
	env := newTestEnv(t)
	listener, _ := env.user(t, "listener", false)
	artist, _ := env.user(t, "artist", true)
	env.song(t, artist, "Hit", mp3Data(2048))

	w := env.get(t, "/users/"+itoa(listener.ID)+"/songs", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "This user is not an artist", detail(t, w))

	w = env.get(t, "/users/"+itoa(artist.ID)+"/songs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var songs []model.Song
	decode(t, w, &songs)
	assert.Len(t, songs, 1)

	w = env.get(t, "/users/"+itoa(artist.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "email")

	w = env.get(t, "/users/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", detail(t, w))
}

func TestNotificationsOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice", false)
	bob, bobToken := env.user(t, "bob", true)
	song := env.song(t, bob, "Hit", mp3Data(2048))

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+bobToken, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return env.hub.Online(bob.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w := env.do(t, request{method: http.MethodPost, path: "/users/follow/" + itoa(bob.ID), token: aliceToken})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, request{method: http.MethodPost, path: "/songs/" + itoa(song.ID) + "/like", token: aliceToken})
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev notify.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.EventFollow, ev.Type)
	assert.Equal(t, alice.ID, ev.ActorID)
	assert.Equal(t, "alice", ev.ActorName)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.EventSongLiked, ev.Type)
	assert.Equal(t, song.ID, ev.SubjectID)
	assert.Equal(t, "Hit", ev.Title)

	// 断开后 hub 清理连接
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.Online(bob.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
