package repository

import (
	"context"
	"fmt"

	"Sonora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlbumRepository 专辑数据访问接口
type AlbumRepository interface {
	Create(ctx context.Context, album *model.Album) error
	GetByID(ctx context.Context, id int64) (*model.Album, error)
	GetWithSongs(ctx context.Context, id int64) (*model.Album, error)
	List(ctx context.Context, skip, limit int) ([]*model.Album, error)
	ListByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]*model.Album, error)
	Update(ctx context.Context, album *model.Album) error
	Delete(ctx context.Context, id int64) error

	// 专辑曲目
	AddSong(ctx context.Context, albumID, songID int64) error
	RemoveSong(ctx context.Context, albumID, songID int64) error

	// 点赞
	Like(ctx context.Context, userID, albumID int64) error
	Unlike(ctx context.Context, userID, albumID int64) error
	IsLiked(ctx context.Context, userID, albumID int64) (bool, error)
	ListLiked(ctx context.Context, userID int64, skip, limit int) ([]*model.Album, error)

	Search(ctx context.Context, query string, skip, limit int) ([]*model.Album, error)
	TitlesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}

// gormAlbumRepository GORM 实现
type gormAlbumRepository struct {
	db *gorm.DB
}

// NewGormAlbumRepository 创建 GORM 专辑仓库
func NewGormAlbumRepository(db *gorm.DB) AlbumRepository {
	return &gormAlbumRepository{db: db}
}

// Create 创建专辑
func (r *gormAlbumRepository) Create(ctx context.Context, album *model.Album) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(album).Error; err != nil {
		return fmt.Errorf("failed to create album %q: %w", album.Title, err)
	}
	return nil
}

// GetByID 根据ID获取专辑（不含歌曲）
func (r *gormAlbumRepository) GetByID(ctx context.Context, id int64) (*model.Album, error) {
	var album model.Album
	if err := r.db.WithContext(ctx).First(&album, id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &album, nil
}

func preloadAlbumSongs(db *gorm.DB) *gorm.DB {
	return db.Preload("Songs", func(db *gorm.DB) *gorm.DB {
		return db.Order("songs.id")
	}).Preload("Songs.Genres")
}

// GetWithSongs 获取专辑和曲目
func (r *gormAlbumRepository) GetWithSongs(ctx context.Context, id int64) (*model.Album, error) {
	var album model.Album
	if err := r.db.WithContext(ctx).Scopes(preloadAlbumSongs).First(&album, id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &album, nil
}

// List 分页获取专辑
func (r *gormAlbumRepository) List(ctx context.Context, skip, limit int) ([]*model.Album, error) {
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Scopes(preloadAlbumSongs).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&albums).Error
	return albums, err
}

// ListByCreator 获取艺人的专辑
func (r *gormAlbumRepository) ListByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]*model.Album, error) {
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Scopes(preloadAlbumSongs).
		Where("creator_id = ?", creatorID).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&albums).Error
	return albums, err
}

// Update 保存专辑字段
func (r *gormAlbumRepository) Update(ctx context.Context, album *model.Album) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(album).Error
}

// Delete 删除专辑，歌曲保留但脱离专辑
func (r *gormAlbumRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Song{}).Where("album_id = ?", id).
			UpdateColumn("album_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", id).Delete(&model.AlbumLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Album{}, id).Error
	})
}

// ========== 专辑曲目 ==========

// AddSong 把歌曲放进专辑
func (r *gormAlbumRepository) AddSong(ctx context.Context, albumID, songID int64) error {
	return r.db.WithContext(ctx).Model(&model.Song{}).
		Where("id = ?", songID).
		UpdateColumn("album_id", albumID).Error
}

// RemoveSong 把歌曲移出专辑，歌曲不在该专辑时返回 ErrNotFound
func (r *gormAlbumRepository) RemoveSong(ctx context.Context, albumID, songID int64) error {
	res := r.db.WithContext(ctx).Model(&model.Song{}).
		Where("id = ? AND album_id = ?", songID, albumID).
		UpdateColumn("album_id", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ========== 点赞 ==========

// Like 点赞并增加计数，已点赞返回 ErrDuplicate
func (r *gormAlbumRepository) Like(ctx context.Context, userID, albumID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.AlbumLike{UserID: userID, AlbumID: albumID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicate
		}
		return tx.Model(&model.Album{}).Where("id = ?", albumID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
}

// Unlike 取消点赞，未点赞返回 ErrNotFound
func (r *gormAlbumRepository) Unlike(ctx context.Context, userID, albumID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND album_id = ?", userID, albumID).Delete(&model.AlbumLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&model.Album{}).Where("id = ?", albumID).
			UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
	})
}

// IsLiked 是否已点赞
func (r *gormAlbumRepository) IsLiked(ctx context.Context, userID, albumID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AlbumLike{}).
		Where("user_id = ? AND album_id = ?", userID, albumID).
		Count(&count).Error
	return count > 0, err
}

// ListLiked 用户喜欢的专辑
func (r *gormAlbumRepository) ListLiked(ctx context.Context, userID int64, skip, limit int) ([]*model.Album, error) {
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Joins("JOIN user_liked_albums ON user_liked_albums.album_id = albums.id").
		Where("user_liked_albums.user_id = ?", userID).
		Order("user_liked_albums.created_at DESC").
		Scopes(page(skip, limit)).
		Find(&albums).Error
	return albums, err
}

// Search 匹配专辑名或艺人名
func (r *gormAlbumRepository) Search(ctx context.Context, query string, skip, limit int) ([]*model.Album, error) {
	p := containsPattern(query)
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Select("albums.*").
		Joins("LEFT JOIN users ON users.id = albums.creator_id").
		Where("("+likeClause("albums.title")+" OR "+likeClause("users.username")+")", p, p).
		Order("albums.id").
		Scopes(page(skip, limit)).
		Find(&albums).Error
	return albums, err
}

// TitlesWithPrefix 搜索建议用
func (r *gormAlbumRepository) TitlesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	var titles []string
	err := r.db.WithContext(ctx).Model(&model.Album{}).
		Where(likeClause("title"), prefixPattern(prefix)).
		Order("title").
		Limit(limit).
		Distinct().
		Pluck("title", &titles).Error
	return titles, err
}
