package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"Sonora/logger"
	"Sonora/model"
)

const (
	searchPageSize = 20
	maxSuggestions = 10
)

// OptionalAuthMiddleware 有合法令牌时把用户放进上下文，否则按匿名处理
func (h *APIHandler) OptionalAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if found && strings.EqualFold(scheme, "Bearer") && token != "" {
			user, err := h.authenticate(r.Context(), token)
			if err != nil {
				logger.Warn("[Auth] 加载用户失败", logger.ErrorField(err))
			}
			if user != nil && user.IsActive {
				r = r.WithContext(context.WithValue(r.Context(), currentUserKey, user))
			}
		}
		next.ServeHTTP(w, r)
	}
}

// searchQuery 读取必填的 query 参数和分页
func searchQuery(w http.ResponseWriter, r *http.Request) (query string, skip, limit int, ok bool) {
	query = strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return "", 0, 0, false
	}
	skip, limit, ok = paginationOrError(w, r, searchPageSize)
	return query, skip, limit, ok
}

// recordSearch 登录用户的搜索词写入历史，失败不影响搜索结果
func (h *APIHandler) recordSearch(r *http.Request, query string) {
	user := currentUser(r.Context())
	if user == nil {
		return
	}
	if err := h.history.Record(r.Context(), user.ID, query); err != nil {
		logger.Warn("[Search] 记录搜索历史失败", logger.Int64("userId", user.ID), logger.ErrorField(err))
	}
}

func optionalInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return nil, false
	}
	return &n, true
}

// SearchSongsHandler 按标题、艺人名、专辑名搜索歌曲，可按流派和时长过滤
func (h *APIHandler) SearchSongsHandler(w http.ResponseWriter, r *http.Request) {
	query, skip, limit, ok := searchQuery(w, r)
	if !ok {
		return
	}
	filter := model.SongFilter{
		Query: query,
		Genre: strings.TrimSpace(r.URL.Query().Get("genre")),
	}
	if filter.MinDuration, ok = optionalInt(w, r, "min_duration"); !ok {
		return
	}
	if filter.MaxDuration, ok = optionalInt(w, r, "max_duration"); !ok {
		return
	}

	songs, err := h.songRepo.Search(r.Context(), filter, skip, limit)
	if err != nil {
		internalError(w, "[SearchSongs] 查询失败", err, logger.String("query", query))
		return
	}
	h.recordSearch(r, query)
	writeJSON(w, http.StatusOK, songs)
}

// SearchAlbumsHandler 搜索专辑
func (h *APIHandler) SearchAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	query, skip, limit, ok := searchQuery(w, r)
	if !ok {
		return
	}
	albums, err := h.albumRepo.Search(r.Context(), query, skip, limit)
	if err != nil {
		internalError(w, "[SearchAlbums] 查询失败", err, logger.String("query", query))
		return
	}
	h.recordSearch(r, query)
	writeJSON(w, http.StatusOK, albums)
}

// SearchPlaylistsHandler 搜索歌单
func (h *APIHandler) SearchPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	query, skip, limit, ok := searchQuery(w, r)
	if !ok {
		return
	}
	playlists, err := h.playlistRepo.Search(r.Context(), query, skip, limit)
	if err != nil {
		internalError(w, "[SearchPlaylists] 查询失败", err, logger.String("query", query))
		return
	}
	h.recordSearch(r, query)
	writeJSON(w, http.StatusOK, playlists)
}

// SearchGenresHandler 搜索流派
func (h *APIHandler) SearchGenresHandler(w http.ResponseWriter, r *http.Request) {
	query, skip, limit, ok := searchQuery(w, r)
	if !ok {
		return
	}
	genres, err := h.genreRepo.Search(r.Context(), query, skip, limit)
	if err != nil {
		internalError(w, "[SearchGenres] 查询失败", err, logger.String("query", query))
		return
	}
	h.recordSearch(r, query)
	writeJSON(w, http.StatusOK, genres)
}

// SearchArtistsHandler 搜索艺人
func (h *APIHandler) SearchArtistsHandler(w http.ResponseWriter, r *http.Request) {
	query, skip, limit, ok := searchQuery(w, r)
	if !ok {
		return
	}
	artists, err := h.userRepo.SearchArtists(r.Context(), query, skip, limit)
	if err != nil {
		internalError(w, "[SearchArtists] 查询失败", err, logger.String("query", query))
		return
	}
	h.recordSearch(r, query)
	writeJSON(w, http.StatusOK, publicUsers(artists))
}

// SuggestionsHandler 前缀补全：歌曲名、专辑名、艺人名，去重后最多 10 条
func (h *APIHandler) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	ctx := r.Context()
	sources := []func(ctx context.Context, prefix string, limit int) ([]string, error){
		h.songRepo.TitlesWithPrefix,
		h.albumRepo.TitlesWithPrefix,
		h.userRepo.ArtistNamesWithPrefix,
	}

	seen := make(map[string]bool)
	suggestions := make([]string, 0, maxSuggestions)
	for _, source := range sources {
		if len(suggestions) >= maxSuggestions {
			break
		}
		items, err := source(ctx, query, maxSuggestions)
		if err != nil {
			internalError(w, "[Suggestions] 查询失败", err, logger.String("query", query))
			return
		}
		for _, item := range items {
			if seen[item] || len(suggestions) >= maxSuggestions {
				continue
			}
			seen[item] = true
			suggestions = append(suggestions, item)
		}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// SearchHistoryHandler 当前用户最近的搜索词
func (h *APIHandler) SearchHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	items, err := h.history.List(r.Context(), user.ID)
	if err != nil {
		internalError(w, "[SearchHistory] 读取失败", err, logger.Int64("userId", user.ID))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ClearSearchHistoryHandler 清空搜索历史
func (h *APIHandler) ClearSearchHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := h.history.Clear(r.Context(), user.ID); err != nil {
		internalError(w, "[SearchHistory] 清空失败", err, logger.Int64("userId", user.ID))
		return
	}
	writeMessage(w, "Search history cleared")
}
