package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"Sonora/core/auth"
	"Sonora/logger"
	"Sonora/model"
	"Sonora/repository"
)

type contextKey string

const currentUserKey contextKey = "currentUser"

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	IsArtist bool   `json:"is_artist"`
	Bio      string `json:"bio"`
}

// TokenResponse 登录成功返回的令牌
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email, username and password are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	ctx := r.Context()
	existing, err := h.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		internalError(w, "[Register] 查询邮箱失败", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	existing, err = h.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		internalError(w, "[Register] 查询用户名失败", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, "[Register] 密码加密失败", err)
		return
	}

	user := &model.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hashed,
		IsActive:       true,
		IsArtist:       req.IsArtist,
		Bio:            req.Bio,
	}
	if err := h.userRepo.Create(ctx, user); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "Username or email already registered")
			return
		}
		internalError(w, "[Register] 创建用户失败", err)
		return
	}

	logger.Info("[Register] 注册成功",
		logger.Int64("userId", user.ID),
		logger.String("username", user.Username),
		logger.Bool("isArtist", user.IsArtist))
	writeJSON(w, http.StatusOK, user)
}

// LoginHandler 接受 JSON 或表单，username 也可以填邮箱
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(req.Username, "@") {
		user, err = h.userRepo.GetByEmail(r.Context(), req.Username)
	} else {
		user, err = h.userRepo.GetByUsername(r.Context(), req.Username)
	}
	if err != nil {
		internalError(w, "[Login] 查询用户失败", err)
		return
	}

	if user == nil || !auth.VerifyPassword(req.Password, user.HashedPassword) {
		logger.Warn("[Login] 用户名或密码错误", logger.String("username", req.Username))
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		internalError(w, "[Login] 生成Token失败", err)
		return
	}

	logger.Info("[Login] 登录成功", logger.String("username", user.Username))
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// MeHandler 返回当前用户
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r.Context()))
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

// authenticate 根据令牌加载用户，令牌无效或用户不存在时返回 nil
func (h *APIHandler) authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		return nil, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil
	}
	return h.userRepo.GetByID(ctx, userID)
}

// AuthMiddleware is a middleware function that checks for a valid bearer token
// and puts the active user into the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			unauthorized(w)
			return
		}

		user, err := h.authenticate(r.Context(), token)
		if err != nil {
			internalError(w, "[Auth] 加载用户失败", err)
			return
		}
		if user == nil {
			unauthorized(w)
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusBadRequest, "Inactive user")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// currentUser 只能在 AuthMiddleware 之后调用
func currentUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(currentUserKey).(*model.User)
	return user
}
