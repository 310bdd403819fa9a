package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"Sonora/cache"
	"Sonora/config"
	"Sonora/core/audio"
	"Sonora/core/auth"
	"Sonora/core/notify"
	"Sonora/core/stream"
	"Sonora/logger"
	"Sonora/model"
	"Sonora/repository"
	"Sonora/storage"

	"github.com/gorilla/mux"
)

// Dependencies 构造 APIHandler 需要的组件
type Dependencies struct {
	Users     repository.UserRepository
	Songs     repository.SongRepository
	Albums    repository.AlbumRepository
	Playlists repository.PlaylistRepository
	Genres    repository.GenreRepository

	Store  *storage.LocalStore
	Prober audio.Prober
	Tokens *auth.TokenManager

	History    *cache.SearchHistory // Redis 未启用时为空操作
	GenreCache *cache.GenreCache
	Hub        *notify.Hub          // 可为 nil
	Mirror     *storage.AsyncMirror // 可为 nil
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg *config.Config

	userRepo     repository.UserRepository
	songRepo     repository.SongRepository
	albumRepo    repository.AlbumRepository
	playlistRepo repository.PlaylistRepository
	genreRepo    repository.GenreRepository

	store    *storage.LocalStore
	prober   audio.Prober
	streamer *stream.Streamer
	tokens   *auth.TokenManager

	history    *cache.SearchHistory
	genreCache *cache.GenreCache
	hub        *notify.Hub
	mirror     *storage.AsyncMirror
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(cfg *config.Config, deps Dependencies) *APIHandler {
	h := &APIHandler{
		cfg:          cfg,
		userRepo:     deps.Users,
		songRepo:     deps.Songs,
		albumRepo:    deps.Albums,
		playlistRepo: deps.Playlists,
		genreRepo:    deps.Genres,
		store:        deps.Store,
		prober:       deps.Prober,
		tokens:       deps.Tokens,
		history:      deps.History,
		genreCache:   deps.GenreCache,
		hub:          deps.Hub,
		mirror:       deps.Mirror,
	}
	h.streamer = stream.NewStreamer(songAssets{songs: deps.Songs}, deps.Store)
	return h
}

// songAssets 让歌曲仓库充当流媒体的资源查找器
type songAssets struct {
	songs repository.SongRepository
}

func (a songAssets) FindAsset(ctx context.Context, id int64) (*stream.Asset, error) {
	song, err := a.songs.GetByID(ctx, id)
	if err != nil || song == nil {
		return nil, err
	}
	return &stream.Asset{ID: song.ID, FilePath: song.FilePath}, nil
}

// errorResponse 错误响应体
type errorResponse struct {
	Detail string `json:"detail"`
}

// messageResponse 操作成功的提示
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

// internalError 记录错误并返回 500
func internalError(w http.ResponseWriter, msg string, err error, fields ...logger.Field) {
	logger.Error(msg, append(fields, logger.ErrorField(err))...)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// pathID 读取路由中的数字参数，路由已用正则限制为数字
func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

// pagination 解析 skip/limit 查询参数
func pagination(r *http.Request, defaultLimit int) (skip, limit int, ok bool) {
	skip, limit = 0, defaultLimit
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		limit = n
	}
	return skip, limit, true
}

// paginationOrError 解析失败时直接写 400
func paginationOrError(w http.ResponseWriter, r *http.Request, defaultLimit int) (int, int, bool) {
	skip, limit, ok := pagination(r, defaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "skip and limit must be non-negative integers")
	}
	return skip, limit, ok
}

// publicUsers 转为对外可见的用户信息
func publicUsers(users []*model.User) []model.UserPublic {
	out := make([]model.UserPublic, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

// RootHandler 服务欢迎信息
func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Welcome to Sonora music streaming API",
		"docs_url": "/docs",
	})
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
