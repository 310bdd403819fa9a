package server

import (
	"context"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"Sonora/core/notify"
	"Sonora/logger"
	"Sonora/model"
	"Sonora/storage"
)

const followPageSize = 50

// UpdateMeHandler 更新当前用户资料（multipart 表单）
func (h *APIHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if err := r.ParseMultipartForm(multipartMemory); err != nil && err != http.ErrNotMultipart {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	ctx := r.Context()
	if username := strings.TrimSpace(r.FormValue("username")); username != "" && username != user.Username {
		other, err := h.userRepo.GetByUsername(ctx, username)
		if err != nil {
			internalError(w, "[UpdateMe] 查询用户名失败", err)
			return
		}
		if other != nil {
			writeError(w, http.StatusBadRequest, "Username already taken")
			return
		}
		user.Username = username
	}

	if email := strings.TrimSpace(r.FormValue("email")); email != "" && email != user.Email {
		if _, err := mail.ParseAddress(email); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid email address")
			return
		}
		other, err := h.userRepo.GetByEmail(ctx, email)
		if err != nil {
			internalError(w, "[UpdateMe] 查询邮箱失败", err)
			return
		}
		if other != nil {
			writeError(w, http.StatusBadRequest, "Email already taken")
			return
		}
		user.Email = email
	}

	if _, ok := r.Form["bio"]; ok {
		user.Bio = r.FormValue("bio")
	}
	if v := r.FormValue("is_artist"); v != "" {
		isArtist, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "is_artist must be a boolean")
			return
		}
		user.IsArtist = isArtist
	}

	var newImage string
	if r.MultipartForm != nil {
		key, ok := h.saveImage(w, r, "image", storage.KindUserImage, "Image must be an image file")
		if !ok {
			return
		}
		newImage = key
	}
	oldImage := user.Image
	if newImage != "" {
		user.Image = newImage
	}

	if err := h.userRepo.Update(ctx, user); err != nil {
		h.removeFile(newImage)
		internalError(w, "[UpdateMe] 更新用户失败", err, logger.Int64("userId", user.ID))
		return
	}
	if newImage != "" && oldImage != "" {
		h.removeFile(oldImage)
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteMyImageHandler 删除头像
func (h *APIHandler) DeleteMyImageHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if user.Image == "" {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}

	old := user.Image
	user.Image = ""
	if err := h.userRepo.Update(r.Context(), user); err != nil {
		internalError(w, "[DeleteImage] 更新用户失败", err, logger.Int64("userId", user.ID))
		return
	}
	h.removeFile(old)
	writeMessage(w, "Image deleted successfully")
}

// GetUserImageHandler 输出用户头像
func (h *APIHandler) GetUserImageHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetByID(r.Context(), pathID(r, "id"))
	if err != nil {
		internalError(w, "[UserImage] 查询用户失败", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	h.serveImage(w, user.Image, "Image not found")
}

// MySongsHandler 当前艺人的歌曲
func (h *APIHandler) MySongsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "Only artists can have songs")
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.ListByCreator(r.Context(), user.ID, skip, limit)
	if err != nil {
		internalError(w, "[MySongs] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// MyAlbumsHandler 当前艺人的专辑
func (h *APIHandler) MyAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "Only artists can have albums")
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	albums, err := h.albumRepo.ListByCreator(r.Context(), user.ID, skip, limit)
	if err != nil {
		internalError(w, "[MyAlbums] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// MyPlaylistsHandler 当前用户的歌单
func (h *APIHandler) MyPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	playlists, err := h.playlistRepo.ListByOwner(r.Context(), currentUser(r.Context()).ID, skip, limit)
	if err != nil {
		internalError(w, "[MyPlaylists] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// LikedSongsHandler 当前用户喜欢的歌曲
func (h *APIHandler) LikedSongsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.ListLiked(r.Context(), currentUser(r.Context()).ID, skip, limit)
	if err != nil {
		internalError(w, "[LikedSongs] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// LikedAlbumsHandler 当前用户喜欢的专辑
func (h *APIHandler) LikedAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	albums, err := h.albumRepo.ListLiked(r.Context(), currentUser(r.Context()).ID, skip, limit)
	if err != nil {
		internalError(w, "[LikedAlbums] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// loadUser 读取路径中的用户，不存在时写 404
func (h *APIHandler) loadUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := h.userRepo.GetByID(r.Context(), pathID(r, "id"))
	if err != nil {
		internalError(w, "查询用户失败", err)
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return nil, false
	}
	return user, true
}

// GetUserHandler 公开的用户信息
func (h *APIHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// UserSongsHandler 指定艺人的歌曲
func (h *APIHandler) UserSongsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "This user is not an artist")
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	songs, err := h.songRepo.ListByCreator(r.Context(), user.ID, skip, limit)
	if err != nil {
		internalError(w, "[UserSongs] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

// UserAlbumsHandler 指定艺人的专辑
func (h *APIHandler) UserAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	if !user.IsArtist {
		writeError(w, http.StatusForbidden, "This user is not an artist")
		return
	}
	skip, limit, ok := paginationOrError(w, r, 100)
	if !ok {
		return
	}
	albums, err := h.albumRepo.ListByCreator(r.Context(), user.ID, skip, limit)
	if err != nil {
		internalError(w, "[UserAlbums] 查询失败", err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

// followStatus 统计目标用户的关注数据
func (h *APIHandler) followStatus(r *http.Request, viewerID, targetID int64) (*model.FollowStatus, error) {
	ctx := r.Context()
	following, err := h.userRepo.IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	followers, err := h.userRepo.CountFollowers(ctx, targetID)
	if err != nil {
		return nil, err
	}
	followingCount, err := h.userRepo.CountFollowing(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &model.FollowStatus{
		IsFollowing:    following,
		FollowerCount:  followers,
		FollowingCount: followingCount,
	}, nil
}

// profile 组装用户主页信息
func (h *APIHandler) profile(r *http.Request, viewerID int64, user *model.User) (*model.UserProfile, error) {
	status, err := h.followStatus(r, viewerID, user.ID)
	if err != nil {
		return nil, err
	}
	songCount, err := h.songRepo.CountByCreator(r.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return &model.UserProfile{
		UserPublic:     user.Public(),
		FollowerCount:  status.FollowerCount,
		FollowingCount: status.FollowingCount,
		SongCount:      songCount,
		IsFollowing:    status.IsFollowing,
	}, nil
}

// UserProfileHandler 用户主页
func (h *APIHandler) UserProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	p, err := h.profile(r, currentUser(r.Context()).ID, user)
	if err != nil {
		internalError(w, "[Profile] 查询失败", err, logger.Int64("userId", user.ID))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// FollowHandler 关注用户，并通知被关注者
func (h *APIHandler) FollowHandler(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	targetID := pathID(r, "id")
	if targetID == me.ID {
		writeError(w, http.StatusBadRequest, "Cannot follow yourself")
		return
	}
	target, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	following, err := h.userRepo.IsFollowing(r.Context(), me.ID, target.ID)
	if err != nil {
		internalError(w, "[Follow] 查询失败", err)
		return
	}
	if following {
		writeError(w, http.StatusBadRequest, "Already following this user")
		return
	}
	if err := h.userRepo.Follow(r.Context(), me.ID, target.ID); err != nil {
		internalError(w, "[Follow] 关注失败", err)
		return
	}

	h.hub.Notify(target.ID, notify.Event{
		Type:      notify.EventFollow,
		ActorID:   me.ID,
		ActorName: me.Username,
	})

	h.writeFollowStatus(w, r, me.ID, target.ID)
}

// UnfollowHandler 取消关注
func (h *APIHandler) UnfollowHandler(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	target, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	removed, err := h.userRepo.Unfollow(r.Context(), me.ID, target.ID)
	if err != nil {
		internalError(w, "[Unfollow] 取消关注失败", err)
		return
	}
	if !removed {
		writeError(w, http.StatusBadRequest, "Not following this user")
		return
	}
	h.writeFollowStatus(w, r, me.ID, target.ID)
}

// FollowStatusHandler 当前用户对目标用户的关注状态
func (h *APIHandler) FollowStatusHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	h.writeFollowStatus(w, r, currentUser(r.Context()).ID, target.ID)
}

func (h *APIHandler) writeFollowStatus(w http.ResponseWriter, r *http.Request, viewerID, targetID int64) {
	status, err := h.followStatus(r, viewerID, targetID)
	if err != nil {
		internalError(w, "查询关注状态失败", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// FollowingHandler 我关注的人
func (h *APIHandler) FollowingHandler(w http.ResponseWriter, r *http.Request) {
	h.listFollows(w, r, h.userRepo.ListFollowing)
}

// FollowersHandler 关注我的人
func (h *APIHandler) FollowersHandler(w http.ResponseWriter, r *http.Request) {
	h.listFollows(w, r, h.userRepo.ListFollowers)
}

type followLister func(ctx context.Context, userID int64, skip, limit int) ([]*model.User, error)

func (h *APIHandler) listFollows(w http.ResponseWriter, r *http.Request, list followLister) {
	skip, limit, ok := paginationOrError(w, r, followPageSize)
	if !ok {
		return
	}
	me := currentUser(r.Context())
	users, err := list(r.Context(), me.ID, skip, limit)
	if err != nil {
		internalError(w, "查询关注列表失败", err, logger.Int64("userId", me.ID))
		return
	}

	profiles := make([]*model.UserProfile, 0, len(users))
	for _, u := range users {
		p, err := h.profile(r, me.ID, u)
		if err != nil {
			internalError(w, "查询用户主页失败", err, logger.Int64("userId", u.ID))
			return
		}
		profiles = append(profiles, p)
	}
	writeJSON(w, http.StatusOK, profiles)
}
