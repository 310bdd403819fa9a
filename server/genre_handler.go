package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"Sonora/logger"
	"Sonora/model"
)

const defaultPopularGenres = 10

// GenreRequest 创建/修改流派的请求体
type GenreRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func decodeGenre(w http.ResponseWriter, r *http.Request) (*GenreRequest, bool) {
	var req GenreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Genre name is required")
		return nil, false
	}
	return &req, true
}

// CreateGenreHandler 创建流派，名称唯一
func (h *APIHandler) CreateGenreHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGenre(w, r)
	if !ok {
		return
	}
	existing, err := h.genreRepo.GetByName(r.Context(), req.Name)
	if err != nil {
		internalError(w, "[CreateGenre] 查询失败", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Genre already exists")
		return
	}

	genre := &model.Genre{Name: req.Name, Description: req.Description}
	if err := h.genreRepo.Create(r.Context(), genre); err != nil {
		internalError(w, "[CreateGenre] 创建失败", err, logger.String("name", req.Name))
		return
	}
	h.invalidateGenres(r)
	writeJSON(w, http.StatusOK, genre)
}

// ListGenresHandler 分页列出流派
func (h *APIHandler) ListGenresHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	genres, err := h.genreRepo.List(r.Context(), skip, limit)
	if err != nil {
		internalError(w, "[ListGenres] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

// PopularGenresHandler 按歌曲数量排序的流派，结果缓存在 Redis
func (h *APIHandler) PopularGenresHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultPopularGenres
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx := r.Context()
	if cached, hit, err := h.genreCache.GetPopular(ctx, limit); err != nil {
		logger.Warn("[PopularGenres] 读取缓存失败", logger.ErrorField(err))
	} else if hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	genres, err := h.genreRepo.Popular(ctx, limit)
	if err != nil {
		internalError(w, "[PopularGenres] 查询失败", err)
		return
	}
	if genres == nil {
		genres = []model.GenreWithCount{}
	}
	if err := h.genreCache.SetPopular(ctx, limit, genres); err != nil {
		logger.Warn("[PopularGenres] 写入缓存失败", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, genres)
}

// loadGenre 读取路径中的流派，不存在时写 404
func (h *APIHandler) loadGenre(w http.ResponseWriter, r *http.Request) (*model.Genre, bool) {
	id := pathID(r, "id")
	genre, err := h.genreRepo.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, "查询流派失败", err, logger.Int64("genreId", id))
		return nil, false
	}
	if genre == nil {
		writeError(w, http.StatusNotFound, "Genre not found")
		return nil, false
	}
	return genre, true
}

// GetGenreHandler 流派详情
func (h *APIHandler) GetGenreHandler(w http.ResponseWriter, r *http.Request) {
	genre, ok := h.loadGenre(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, genre)
}

// UpdateGenreHandler 修改流派，新名称不能与其他流派重复
func (h *APIHandler) UpdateGenreHandler(w http.ResponseWriter, r *http.Request) {
	genre, ok := h.loadGenre(w, r)
	if !ok {
		return
	}
	req, ok := decodeGenre(w, r)
	if !ok {
		return
	}
	if req.Name != genre.Name {
		other, err := h.genreRepo.GetByName(r.Context(), req.Name)
		if err != nil {
			internalError(w, "[UpdateGenre] 查询失败", err)
			return
		}
		if other != nil {
			writeError(w, http.StatusBadRequest, "Genre name already exists")
			return
		}
	}

	genre.Name = req.Name
	genre.Description = req.Description
	if err := h.genreRepo.Update(r.Context(), genre); err != nil {
		internalError(w, "[UpdateGenre] 更新失败", err, logger.Int64("genreId", genre.ID))
		return
	}
	h.invalidateGenres(r)
	writeJSON(w, http.StatusOK, genre)
}

// DeleteGenreHandler 删除流派
func (h *APIHandler) DeleteGenreHandler(w http.ResponseWriter, r *http.Request) {
	genre, ok := h.loadGenre(w, r)
	if !ok {
		return
	}
	if err := h.genreRepo.Delete(r.Context(), genre.ID); err != nil {
		internalError(w, "[DeleteGenre] 删除失败", err, logger.Int64("genreId", genre.ID))
		return
	}
	h.invalidateGenres(r)
	writeMessage(w, "Genre deleted successfully")
}

// GenreSongsHandler 某个流派下的歌曲
func (h *APIHandler) GenreSongsHandler(w http.ResponseWriter, r *http.Request) {
	genre, ok := h.loadGenre(w, r)
	if !ok {
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.ListByGenre(r.Context(), genre.ID, skip, limit)
	if err != nil {
		internalError(w, "[GenreSongs] 查询失败", err, logger.Int64("genreId", genre.ID))
		return
	}
	writeJSON(w, http.StatusOK, songs)
}
