package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"Sonora/logger"
	"Sonora/model"
)

// PlaylistRequest 创建/修改歌单的请求体
type PlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func decodePlaylist(w http.ResponseWriter, r *http.Request) (*PlaylistRequest, bool) {
	var req PlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return nil, false
	}
	return &req, true
}

// CreatePlaylistHandler 创建歌单
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePlaylist(w, r)
	if !ok {
		return
	}
	user := currentUser(r.Context())
	playlist := &model.Playlist{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     user.ID,
		Songs:       []model.Song{},
	}
	if err := h.playlistRepo.Create(r.Context(), playlist); err != nil {
		internalError(w, "[CreatePlaylist] 创建失败", err, logger.Int64("userId", user.ID))
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// ListPlaylistsHandler 当前用户的歌单
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	h.MyPlaylistsHandler(w, r)
}

// loadPlaylist 只返回当前用户自己的歌单，别人的歌单视为不存在
func (h *APIHandler) loadPlaylist(w http.ResponseWriter, r *http.Request) (*model.Playlist, bool) {
	id := pathID(r, "id")
	playlist, err := h.playlistRepo.GetForOwner(r.Context(), id, currentUser(r.Context()).ID)
	if err != nil {
		internalError(w, "查询歌单失败", err, logger.Int64("playlistId", id))
		return nil, false
	}
	if playlist == nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return nil, false
	}
	return playlist, true
}

// GetPlaylistHandler 歌单详情
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// UpdatePlaylistHandler 修改名称和描述
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	req, ok := decodePlaylist(w, r)
	if !ok {
		return
	}
	playlist.Name = req.Name
	playlist.Description = req.Description
	if err := h.playlistRepo.Update(r.Context(), playlist); err != nil {
		internalError(w, "[UpdatePlaylist] 更新失败", err, logger.Int64("playlistId", playlist.ID))
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// DeletePlaylistHandler 删除歌单
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if err := h.playlistRepo.Delete(r.Context(), playlist); err != nil {
		internalError(w, "[DeletePlaylist] 删除失败", err, logger.Int64("playlistId", playlist.ID))
		return
	}
	writeMessage(w, "Playlist deleted successfully")
}

// AddSongToPlaylistHandler 添加歌曲
func (h *APIHandler) AddSongToPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	song, ok := h.loadSong(w, r, "song_id")
	if !ok {
		return
	}

	has, err := h.playlistRepo.HasSong(r.Context(), playlist.ID, song.ID)
	if err != nil {
		internalError(w, "[PlaylistAddSong] 查询失败", err)
		return
	}
	if has {
		writeError(w, http.StatusBadRequest, "Song already in playlist")
		return
	}
	if err := h.playlistRepo.AddSong(r.Context(), playlist, song); err != nil {
		internalError(w, "[PlaylistAddSong] 添加失败", err,
			logger.Int64("playlistId", playlist.ID), logger.Int64("songId", song.ID))
		return
	}
	writeMessage(w, "Song added to playlist successfully")
}

// RemoveSongFromPlaylistHandler 移除歌曲
func (h *APIHandler) RemoveSongFromPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	song, ok := h.loadSong(w, r, "song_id")
	if !ok {
		return
	}

	has, err := h.playlistRepo.HasSong(r.Context(), playlist.ID, song.ID)
	if err != nil {
		internalError(w, "[PlaylistRemoveSong] 查询失败", err)
		return
	}
	if !has {
		writeError(w, http.StatusBadRequest, "Song not in playlist")
		return
	}
	if err := h.playlistRepo.RemoveSong(r.Context(), playlist, song); err != nil {
		internalError(w, "[PlaylistRemoveSong] 移除失败", err,
			logger.Int64("playlistId", playlist.ID), logger.Int64("songId", song.ID))
		return
	}
	writeMessage(w, "Song removed from playlist successfully")
}
