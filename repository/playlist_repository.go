package repository

import (
	"context"
	"fmt"

	"Sonora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaylistRepository 歌单数据访问接口，所有读取都按 owner 过滤
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) error
	GetForOwner(ctx context.Context, id, ownerID int64) (*model.Playlist, error)
	ListByOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Playlist, error)
	Update(ctx context.Context, playlist *model.Playlist) error
	Delete(ctx context.Context, playlist *model.Playlist) error

	HasSong(ctx context.Context, playlistID, songID int64) (bool, error)
	AddSong(ctx context.Context, playlist *model.Playlist, song *model.Song) error
	RemoveSong(ctx context.Context, playlist *model.Playlist, song *model.Song) error

	Search(ctx context.Context, query string, skip, limit int) ([]*model.Playlist, error)
}

// gormPlaylistRepository GORM 实现
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository 创建 GORM 歌单仓库
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

func preloadPlaylistSongs(db *gorm.DB) *gorm.DB {
	return db.Preload("Songs", func(db *gorm.DB) *gorm.DB {
		return db.Order("songs.id")
	}).Preload("Songs.Genres")
}

// Create 创建歌单
func (r *gormPlaylistRepository) Create(ctx context.Context, playlist *model.Playlist) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(playlist).Error; err != nil {
		return fmt.Errorf("failed to create playlist %q: %w", playlist.Name, err)
	}
	return nil
}

// GetForOwner 获取歌单，不属于该用户时视为不存在
func (r *gormPlaylistRepository) GetForOwner(ctx context.Context, id, ownerID int64) (*model.Playlist, error) {
	var playlist model.Playlist
	err := r.db.WithContext(ctx).
		Scopes(preloadPlaylistSongs).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&playlist).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &playlist, nil
}

// ListByOwner 用户的歌单
func (r *gormPlaylistRepository) ListByOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Playlist, error) {
	var playlists []*model.Playlist
	err := r.db.WithContext(ctx).
		Scopes(preloadPlaylistSongs).
		Where("owner_id = ?", ownerID).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&playlists).Error
	return playlists, err
}

// Update 保存歌单字段
func (r *gormPlaylistRepository) Update(ctx context.Context, playlist *model.Playlist) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(playlist).Error
}

// Delete 删除歌单和曲目关联
func (r *gormPlaylistRepository) Delete(ctx context.Context, playlist *model.Playlist) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(playlist).Association("Songs").Clear(); err != nil {
			return err
		}
		return tx.Delete(&model.Playlist{}, playlist.ID).Error
	})
}

// HasSong 歌曲是否已在歌单内
func (r *gormPlaylistRepository) HasSong(ctx context.Context, playlistID, songID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("song_playlist").
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Count(&count).Error
	return count > 0, err
}

// AddSong 添加歌曲到歌单
func (r *gormPlaylistRepository) AddSong(ctx context.Context, playlist *model.Playlist, song *model.Song) error {
	return r.db.WithContext(ctx).Model(playlist).Association("Songs").Append(song)
}

// RemoveSong 从歌单移除歌曲
func (r *gormPlaylistRepository) RemoveSong(ctx context.Context, playlist *model.Playlist, song *model.Song) error {
	return r.db.WithContext(ctx).Model(playlist).Association("Songs").Delete(song)
}

// Search 匹配歌单名或描述
func (r *gormPlaylistRepository) Search(ctx context.Context, query string, skip, limit int) ([]*model.Playlist, error) {
	p := containsPattern(query)
	var playlists []*model.Playlist
	err := r.db.WithContext(ctx).
		Where("("+likeClause("name")+" OR "+likeClause("description")+")", p, p).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&playlists).Error
	return playlists, err
}
