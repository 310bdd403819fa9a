package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"Sonora/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.postJSON(t, "/auth/register", "", RegisterRequest{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "hunter2",
		IsArtist: true,
		Bio:      "synths",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var registered model.User
	decode(t, w, &registered)
	assert.Equal(t, "ada", registered.Username)
	assert.True(t, registered.IsArtist)
	assert.True(t, registered.IsActive)
	assert.NotContains(t, w.Body.String(), "hashed_password")
	assert.NotContains(t, w.Body.String(), "hunter2")

	// JSON 登录
	w = env.postJSON(t, "/auth/login", "", map[string]string{"username": "ada", "password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok TokenResponse
	decode(t, w, &tok)
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	w = env.get(t, "/auth/me", tok.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var me model.User
	decode(t, w, &me)
	assert.Equal(t, registered.ID, me.ID)

	// 表单登录，用户名填邮箱
	form := url.Values{"username": {"ada@example.com"}, "password": {"hunter2"}}
	w = env.do(t, request{
		method:      http.MethodPost,
		path:        "/auth/token",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ada", false)

	w := env.postJSON(t, "/auth/register", "", RegisterRequest{Email: "ada@example.com", Username: "other", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", detail(t, w))

	w = env.postJSON(t, "/auth/register", "", RegisterRequest{Email: "new@example.com", Username: "ada", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already taken", detail(t, w))

	w = env.postJSON(t, "/auth/register", "", RegisterRequest{Email: "not-an-email", Username: "bob", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ada", false)

	w := env.postJSON(t, "/auth/login", "", map[string]string{"username": "ada", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, w))
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = env.postJSON(t, "/auth/login", "", map[string]string{"username": "ghost", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Could not validate credentials", detail(t, w))

	w = env.get(t, "/users/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	u, token := env.user(t, "sleepy", false)
	u.IsActive = false
	require.NoError(t, env.users.Update(context.Background(), u))

	w = env.get(t, "/users/me", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Inactive user", detail(t, w))
}
