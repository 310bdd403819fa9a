package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"Sonora/core/notify"
	"Sonora/logger"
	"Sonora/model"
	"Sonora/repository"
	"Sonora/storage"
)

// 发行日期接受的格式
var releaseDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

func parseReleaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CreateAlbumHandler 创建专辑（multipart: title, release_date, cover）
func (h *APIHandler) CreateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "Only artists can create albums")
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	releaseDate, ok := parseReleaseDate(r.FormValue("release_date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	var cover string
	if r.MultipartForm != nil {
		if cover, ok = h.saveImage(w, r, "cover", storage.KindCover, "Cover must be an image file"); !ok {
			return
		}
	}

	album := &model.Album{
		Title:       title,
		ReleaseDate: releaseDate,
		CoverImage:  cover,
		CreatorID:   user.ID,
	}
	if err := h.albumRepo.Create(r.Context(), album); err != nil {
		h.removeFile(cover)
		internalError(w, "[CreateAlbum] 创建专辑失败", err, logger.Int64("userId", user.ID))
		return
	}

	logger.Info("[CreateAlbum] 专辑已创建",
		logger.Int64("albumId", album.ID),
		logger.String("title", album.Title))
	writeJSON(w, http.StatusOK, album)
}

// ListAlbumsHandler 分页列出专辑
func (h *APIHandler) ListAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	albums, err := h.albumRepo.List(r.Context(), skip, limit)
	if err != nil {
		internalError(w, "[ListAlbums] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// AlbumsByUserHandler 指定用户的专辑
func (h *APIHandler) AlbumsByUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	albums, err := h.albumRepo.ListByCreator(r.Context(), user.ID, skip, limit)
	if err != nil {
		internalError(w, "[AlbumsByUser] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// loadAlbum 读取路径中的专辑，不存在时写 404
func (h *APIHandler) loadAlbum(w http.ResponseWriter, r *http.Request) (*model.Album, bool) {
	id := pathID(r, "id")
	album, err := h.albumRepo.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, "查询专辑失败", err, logger.Int64("albumId", id))
		return nil, false
	}
	if album == nil {
		writeError(w, http.StatusNotFound, "Album not found")
		return nil, false
	}
	return album, true
}

// loadOwnAlbum 读取专辑并校验当前用户是创建者
func (h *APIHandler) loadOwnAlbum(w http.ResponseWriter, r *http.Request, forbidden string) (*model.Album, bool) {
	album, ok := h.loadAlbum(w, r)
	if !ok {
		return nil, false
	}
	if album.CreatorID != currentUser(r.Context()).ID {
		writeError(w, http.StatusForbidden, forbidden)
		return nil, false
	}
	return album, true
}

// GetAlbumHandler 专辑详情（包含歌曲）
func (h *APIHandler) GetAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	album, err := h.albumRepo.GetWithSongs(r.Context(), id)
	if err != nil {
		internalError(w, "[GetAlbum] 查询失败", err, logger.Int64("albumId", id))
		return
	}
	if album == nil {
		writeError(w, http.StatusNotFound, "Album not found")
		return
	}
	writeJSON(w, http.StatusOK, album)
}

// UpdateAlbumHandler 修改专辑
func (h *APIHandler) UpdateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadOwnAlbum(w, r, "Not authorized to update this album")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		album.Title = title
	}
	if v := r.FormValue("release_date"); v != "" {
		releaseDate, ok := parseReleaseDate(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		album.ReleaseDate = releaseDate
	}

	var cover string
	if r.MultipartForm != nil {
		if cover, ok = h.saveImage(w, r, "cover", storage.KindCover, "Cover must be an image file"); !ok {
			return
		}
	}
	oldCover := album.CoverImage
	if cover != "" {
		album.CoverImage = cover
	}

	if err := h.albumRepo.Update(r.Context(), album); err != nil {
		h.removeFile(cover)
		internalError(w, "[UpdateAlbum] 更新失败", err, logger.Int64("albumId", album.ID))
		return
	}
	if cover != "" {
		h.removeFile(oldCover)
	}
	writeJSON(w, http.StatusOK, album)
}

// DeleteAlbumHandler 删除专辑，歌曲保留但不再属于该专辑
func (h *APIHandler) DeleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadOwnAlbum(w, r, "Not authorized to delete this album")
	if !ok {
		return
	}
	if err := h.albumRepo.Delete(r.Context(), album.ID); err != nil {
		internalError(w, "[DeleteAlbum] 删除失败", err, logger.Int64("albumId", album.ID))
		return
	}
	h.removeFile(album.CoverImage)

	logger.Info("[DeleteAlbum] 专辑已删除", logger.Int64("albumId", album.ID))
	writeMessage(w, "Album deleted successfully")
}

// AlbumSongsHandler 专辑内的歌曲
func (h *APIHandler) AlbumSongsHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadAlbum(w, r)
	if !ok {
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.ListByAlbum(r.Context(), album.ID, skip, limit)
	if err != nil {
		internalError(w, "[AlbumSongs] 查询失败", err, logger.Int64("albumId", album.ID))
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// AddSongToAlbumHandler 把自己的歌曲加入自己的专辑
func (h *APIHandler) AddSongToAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadOwnAlbum(w, r, "Not authorized to modify this album")
	if !ok {
		return
	}
	song, ok := h.loadSong(w, r, "song_id")
	if !ok {
		return
	}
	if song.CreatorID != album.CreatorID {
		writeError(w, http.StatusForbidden, "Not authorized to add this song")
		return
	}
	if song.AlbumID != nil && *song.AlbumID == album.ID {
		writeError(w, http.StatusBadRequest, "Song already in this album")
		return
	}

	if err := h.albumRepo.AddSong(r.Context(), album.ID, song.ID); err != nil {
		internalError(w, "[AlbumAddSong] 添加失败", err,
			logger.Int64("albumId", album.ID), logger.Int64("songId", song.ID))
		return
	}
	writeMessage(w, "Song added to album successfully")
}

// RemoveSongFromAlbumHandler 从专辑移除歌曲
func (h *APIHandler) RemoveSongFromAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadOwnAlbum(w, r, "Not authorized to modify this album")
	if !ok {
		return
	}
	song, ok := h.loadSong(w, r, "song_id")
	if !ok {
		return
	}

	err := h.albumRepo.RemoveSong(r.Context(), album.ID, song.ID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Song not found in this album")
		return
	}
	if err != nil {
		internalError(w, "[AlbumRemoveSong] 移除失败", err,
			logger.Int64("albumId", album.ID), logger.Int64("songId", song.ID))
		return
	}
	writeMessage(w, "Song removed from album successfully")
}

// LikeAlbumHandler 点赞专辑
func (h *APIHandler) LikeAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadAlbum(w, r)
	if !ok {
		return
	}
	user := currentUser(r.Context())
	err := h.albumRepo.Like(r.Context(), user.ID, album.ID)
	if errors.Is(err, repository.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "Album already liked")
		return
	}
	if err != nil {
		internalError(w, "[LikeAlbum] 点赞失败", err, logger.Int64("albumId", album.ID))
		return
	}

	if album.CreatorID != user.ID {
		h.hub.Notify(album.CreatorID, notify.Event{
			Type:      notify.EventAlbumLiked,
			ActorID:   user.ID,
			ActorName: user.Username,
			SubjectID: album.ID,
			Title:     album.Title,
		})
	}
	writeMessage(w, "Album liked successfully")
}

// UnlikeAlbumHandler 取消点赞专辑
func (h *APIHandler) UnlikeAlbumHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadAlbum(w, r)
	if !ok {
		return
	}
	err := h.albumRepo.Unlike(r.Context(), currentUser(r.Context()).ID, album.ID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Album not liked")
		return
	}
	if err != nil {
		internalError(w, "[UnlikeAlbum] 取消点赞失败", err, logger.Int64("albumId", album.ID))
		return
	}
	writeMessage(w, "Album unliked successfully")
}

// AlbumCoverHandler 专辑封面
func (h *APIHandler) AlbumCoverHandler(w http.ResponseWriter, r *http.Request) {
	album, ok := h.loadAlbum(w, r)
	if !ok {
		return
	}
	h.serveImage(w, album.CoverImage, "Album cover not found")
}
