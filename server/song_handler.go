package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"Sonora/core/audio"
	"Sonora/core/notify"
	"Sonora/logger"
	"Sonora/model"
	"Sonora/repository"
	"Sonora/storage"
)

// parseGenreIDs 读取 genre_ids，既支持重复字段也支持逗号分隔
func parseGenreIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// resolveAlbum 校验 album_id 属于当前艺人；返回 nil 表示不关联专辑
func (h *APIHandler) resolveAlbum(w http.ResponseWriter, r *http.Request, raw string, ownerID int64) (*int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	albumID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "album_id must be an integer")
		return nil, false
	}
	album, err := h.albumRepo.GetByID(r.Context(), albumID)
	if err != nil {
		internalError(w, "查询专辑失败", err, logger.Int64("albumId", albumID))
		return nil, false
	}
	if album == nil {
		writeError(w, http.StatusNotFound, "Album not found")
		return nil, false
	}
	if album.CreatorID != ownerID {
		writeError(w, http.StatusForbidden, "Not authorized to add songs to this album")
		return nil, false
	}
	return &albumID, true
}

// CreateSongHandler 上传歌曲。
// multipart 字段:
// - file: 音频文件
// - title: 标题
// - album_id: 所属专辑（可选）
// - genre_ids: 流派（可重复）
// - cover: 封面图片（可选）
func (h *APIHandler) CreateSongHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "Only artists can create songs")
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	albumID, ok := h.resolveAlbum(w, r, r.FormValue("album_id"), user.ID)
	if !ok {
		return
	}
	genreIDs, err := parseGenreIDs(r.MultipartForm.Value["genre_ids"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "genre_ids must be integers")
		return
	}

	key, err := h.saveFormFile(r, "file", storage.KindSong, h.cfg.MaxAudioSize, storage.IsAudioUpload)
	switch {
	case errors.Is(err, storage.ErrInvalidType):
		writeError(w, http.StatusBadRequest, "File must be an audio file")
		return
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "File too large")
		return
	case err != nil:
		internalError(w, "[CreateSong] 保存音频失败", err)
		return
	case key == "":
		writeError(w, http.StatusBadRequest, "Audio file is required")
		return
	}

	if err := h.store.ValidateAudio(key); err != nil {
		h.removeFile(key)
		if errors.Is(err, storage.ErrInvalidAudio) {
			writeError(w, http.StatusBadRequest, "Invalid audio file format")
			return
		}
		internalError(w, "[CreateSong] 校验音频失败", err, logger.String("key", key))
		return
	}

	duration := h.prober.Probe(r.Context(), h.store.Path(key))

	cover, ok := h.saveImage(w, r, "cover", storage.KindSongCover, "Cover must be an image file")
	if !ok {
		h.removeFile(key)
		return
	}

	song := &model.Song{
		Title:      title,
		Duration:   duration.OrZero(),
		FilePath:   key,
		CoverImage: cover,
		AlbumID:    albumID,
		CreatorID:  user.ID,
	}
	if err := h.songRepo.Create(r.Context(), song, genreIDs); err != nil {
		h.removeFile(key)
		h.removeFile(cover)
		internalError(w, "[CreateSong] 保存歌曲失败", err)
		return
	}
	h.mirrorFile(key, audio.MediaType(key))
	h.invalidateGenres(r)

	logger.Info("[CreateSong] 歌曲已创建",
		logger.Int64("songId", song.ID),
		logger.String("title", song.Title),
		logger.String("duration", duration.String()))

	h.writeSong(w, r, song.ID)
}

// writeSong 重新读取歌曲（带流派）并返回
func (h *APIHandler) writeSong(w http.ResponseWriter, r *http.Request, id int64) {
	song, err := h.songRepo.GetByID(r.Context(), id)
	if err != nil || song == nil {
		internalError(w, "读取歌曲失败", err, logger.Int64("songId", id))
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// invalidateGenres 歌曲或流派变化后清除热门流派缓存
func (h *APIHandler) invalidateGenres(r *http.Request) {
	if err := h.genreCache.Invalidate(r.Context()); err != nil {
		logger.Warn("清除流派缓存失败", logger.ErrorField(err))
	}
}

// ListSongsHandler 分页列出歌曲
func (h *APIHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.List(r.Context(), skip, limit)
	if err != nil {
		internalError(w, "[ListSongs] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// loadSong 读取路径中的歌曲，不存在时写 404
func (h *APIHandler) loadSong(w http.ResponseWriter, r *http.Request, param string) (*model.Song, bool) {
	id := pathID(r, param)
	song, err := h.songRepo.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, "查询歌曲失败", err, logger.Int64("songId", id))
		return nil, false
	}
	if song == nil {
		writeError(w, http.StatusNotFound, "Song not found")
		return nil, false
	}
	return song, true
}

// GetSongHandler 获取单首歌曲
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// UpdateSongHandler 修改歌曲信息，只有创建者可以修改
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	user := currentUser(r.Context())
	if song.CreatorID != user.ID {
		writeError(w, http.StatusForbidden, "Not authorized to update this song")
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		song.Title = title
	}
	if _, present := r.Form["album_id"]; present {
		albumID, ok := h.resolveAlbum(w, r, r.FormValue("album_id"), user.ID)
		if !ok {
			return
		}
		song.AlbumID = albumID
	}

	genreValues, replaceGenres := r.Form["genre_ids"]
	genreIDs, err := parseGenreIDs(genreValues)
	if err != nil {
		writeError(w, http.StatusBadRequest, "genre_ids must be integers")
		return
	}

	var cover string
	if r.MultipartForm != nil {
		if cover, ok = h.saveImage(w, r, "cover", storage.KindSongCover, "Cover must be an image file"); !ok {
			return
		}
	}
	oldCover := song.CoverImage
	if cover != "" {
		song.CoverImage = cover
	}

	if err := h.songRepo.Update(r.Context(), song); err != nil {
		h.removeFile(cover)
		internalError(w, "[UpdateSong] 更新失败", err, logger.Int64("songId", song.ID))
		return
	}
	if replaceGenres {
		if err := h.songRepo.ReplaceGenres(r.Context(), song, genreIDs); err != nil {
			internalError(w, "[UpdateSong] 更新流派失败", err, logger.Int64("songId", song.ID))
			return
		}
		h.invalidateGenres(r)
	}
	if cover != "" {
		h.removeFile(oldCover)
	}

	h.writeSong(w, r, song.ID)
}

// DeleteSongHandler 删除歌曲及其文件
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	if song.CreatorID != currentUser(r.Context()).ID {
		writeError(w, http.StatusForbidden, "Not authorized to delete this song")
		return
	}

	if err := h.songRepo.Delete(r.Context(), song.ID); err != nil {
		internalError(w, "[DeleteSong] 删除失败", err, logger.Int64("songId", song.ID))
		return
	}
	h.removeFile(song.FilePath)
	h.removeFile(song.CoverImage)
	h.invalidateGenres(r)

	logger.Info("[DeleteSong] 歌曲已删除", logger.Int64("songId", song.ID))
	writeMessage(w, "Song deleted successfully")
}

// SongInfoHandler 音频文件信息
func (h *APIHandler) SongInfoHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	info, err := h.store.Stat(song.FilePath)
	if song.FilePath == "" || err != nil {
		writeError(w, http.StatusNotFound, "Song file not found")
		return
	}
	writeJSON(w, http.StatusOK, model.SongInfo{
		ID:          song.ID,
		Title:       song.Title,
		Duration:    song.Duration,
		FileSize:    info.Size(),
		ContentType: audio.MediaType(song.FilePath),
		AlbumID:     song.AlbumID,
		CreatorID:   song.CreatorID,
	})
}

// SongCoverHandler 歌曲封面
func (h *APIHandler) SongCoverHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	h.serveImage(w, song.CoverImage, "Song cover not found")
}

// LikeSongHandler 点赞歌曲
func (h *APIHandler) LikeSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	user := currentUser(r.Context())
	err := h.songRepo.Like(r.Context(), user.ID, song.ID)
	if errors.Is(err, repository.ErrDuplicate) {
		writeError(w, http.StatusBadRequest, "Song already liked")
		return
	}
	if err != nil {
		internalError(w, "[LikeSong] 点赞失败", err, logger.Int64("songId", song.ID))
		return
	}

	if song.CreatorID != user.ID {
		h.hub.Notify(song.CreatorID, notify.Event{
			Type:      notify.EventSongLiked,
			ActorID:   user.ID,
			ActorName: user.Username,
			SubjectID: song.ID,
			Title:     song.Title,
		})
	}
	writeMessage(w, "Song liked successfully")
}

// UnlikeSongHandler 取消点赞
func (h *APIHandler) UnlikeSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	err := h.songRepo.Unlike(r.Context(), currentUser(r.Context()).ID, song.ID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Song not liked")
		return
	}
	if err != nil {
		internalError(w, "[UnlikeSong] 取消点赞失败", err, logger.Int64("songId", song.ID))
		return
	}
	writeMessage(w, "Song unliked successfully")
}

// IsSongLikedHandler 当前用户是否点赞
func (h *APIHandler) IsSongLikedHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.loadSong(w, r, "id")
	if !ok {
		return
	}
	liked, err := h.songRepo.IsLiked(r.Context(), currentUser(r.Context()).ID, song.ID)
	if err != nil {
		internalError(w, "[IsLiked] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_liked": liked})
}

// CheckLikesHandler 批量查询点赞状态，请求体为歌曲 ID 数组
func (h *APIHandler) CheckLikesHandler(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be a list of song ids")
		return
	}
	liked, err := h.songRepo.LikedAmong(r.Context(), currentUser(r.Context()).ID, ids)
	if err != nil {
		internalError(w, "[CheckLikes] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, liked)
}
