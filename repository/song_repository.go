package repository

import (
	"context"
	"fmt"
	"strings"

	"Sonora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SongRepository 歌曲数据访问接口
type SongRepository interface {
	Create(ctx context.Context, song *model.Song, genreIDs []int64) error
	GetByID(ctx context.Context, id int64) (*model.Song, error)
	GetByFilePath(ctx context.Context, key string) (*model.Song, error)
	List(ctx context.Context, skip, limit int) ([]*model.Song, error)
	ListByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]*model.Song, error)
	CountByCreator(ctx context.Context, creatorID int64) (int64, error)
	ListByAlbum(ctx context.Context, albumID int64, skip, limit int) ([]*model.Song, error)
	ListByGenre(ctx context.Context, genreID int64, skip, limit int) ([]*model.Song, error)
	Update(ctx context.Context, song *model.Song) error
	ReplaceGenres(ctx context.Context, song *model.Song, genreIDs []int64) error
	Delete(ctx context.Context, id int64) error

	// 点赞
	Like(ctx context.Context, userID, songID int64) error
	Unlike(ctx context.Context, userID, songID int64) error
	IsLiked(ctx context.Context, userID, songID int64) (bool, error)
	LikedAmong(ctx context.Context, userID int64, songIDs []int64) (map[int64]bool, error)
	ListLiked(ctx context.Context, userID int64, skip, limit int) ([]*model.Song, error)

	Search(ctx context.Context, filter model.SongFilter, skip, limit int) ([]*model.Song, error)
	TitlesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}

// gormSongRepository GORM 实现
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

// loadGenres 查出存在的流派，未知 ID 直接忽略
func loadGenres(tx *gorm.DB, ids []int64) ([]model.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var genres []model.Genre
	if err := tx.Where("id IN ?", ids).Order("id").Find(&genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

// Create 创建歌曲并关联流派
func (r *gormSongRepository) Create(ctx context.Context, song *model.Song, genreIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		genres, err := loadGenres(tx, genreIDs)
		if err != nil {
			return err
		}
		song.Genres = genres
		if err := tx.Omit("Genres.*").Create(song).Error; err != nil {
			return fmt.Errorf("failed to create song %q: %w", song.Title, err)
		}
		return nil
	})
}

// GetByID 根据ID获取歌曲（含流派）
func (r *gormSongRepository) GetByID(ctx context.Context, id int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).Preload("Genres").First(&song, id).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

// GetByFilePath 根据存储 key 获取歌曲
func (r *gormSongRepository) GetByFilePath(ctx context.Context, key string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).Where("file_path = ?", key).First(&song).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

func (r *gormSongRepository) list(ctx context.Context, skip, limit int, scopes ...func(*gorm.DB) *gorm.DB) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Scopes(scopes...).
		Preload("Genres").
		Order("songs.id").
		Scopes(page(skip, limit)).
		Find(&songs).Error
	return songs, err
}

// List 分页获取所有歌曲
func (r *gormSongRepository) List(ctx context.Context, skip, limit int) ([]*model.Song, error) {
	return r.list(ctx, skip, limit)
}

// ListByCreator 获取某个艺人的歌曲
func (r *gormSongRepository) ListByCreator(ctx context.Context, creatorID int64, skip, limit int) ([]*model.Song, error) {
	return r.list(ctx, skip, limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("songs.creator_id = ?", creatorID)
	})
}

// CountByCreator 艺人的歌曲数量
func (r *gormSongRepository) CountByCreator(ctx context.Context, creatorID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Song{}).Where("creator_id = ?", creatorID).Count(&count).Error
	return count, err
}

// ListByAlbum 获取专辑内歌曲
func (r *gormSongRepository) ListByAlbum(ctx context.Context, albumID int64, skip, limit int) ([]*model.Song, error) {
	return r.list(ctx, skip, limit, func(db *gorm.DB) *gorm.DB {
		return db.Where("songs.album_id = ?", albumID)
	})
}

// ListByGenre 获取某个流派下的歌曲
func (r *gormSongRepository) ListByGenre(ctx context.Context, genreID int64, skip, limit int) ([]*model.Song, error) {
	return r.list(ctx, skip, limit, func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN song_genre ON song_genre.song_id = songs.id").
			Where("song_genre.genre_id = ?", genreID)
	})
}

// Update 保存歌曲字段，不触碰流派关联
func (r *gormSongRepository) Update(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(song).Error
}

// ReplaceGenres 替换歌曲的流派
func (r *gormSongRepository) ReplaceGenres(ctx context.Context, song *model.Song, genreIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		genres, err := loadGenres(tx, genreIDs)
		if err != nil {
			return err
		}
		if err := tx.Model(song).Association("Genres").Replace(genres); err != nil {
			return fmt.Errorf("failed to replace genres of song %d: %w", song.ID, err)
		}
		song.Genres = genres
		return nil
	})
}

// Delete 删除歌曲及其关联行（流派、歌单、点赞）
func (r *gormSongRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM song_genre WHERE song_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM song_playlist WHERE song_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("song_id = ?", id).Delete(&model.SongLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Song{}, id).Error
	})
}

// ========== 点赞 ==========

// Like 点赞并增加计数，已点赞返回 ErrDuplicate
func (r *gormSongRepository) Like(ctx context.Context, userID, songID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.SongLike{UserID: userID, SongID: songID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicate
		}
		return tx.Model(&model.Song{}).Where("id = ?", songID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
}

// Unlike 取消点赞，计数不会小于 0；未点赞返回 ErrNotFound
func (r *gormSongRepository) Unlike(ctx context.Context, userID, songID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND song_id = ?", userID, songID).Delete(&model.SongLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&model.Song{}).Where("id = ?", songID).
			UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
	})
}

// IsLiked 是否已点赞
func (r *gormSongRepository) IsLiked(ctx context.Context, userID, songID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SongLike{}).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Count(&count).Error
	return count > 0, err
}

// LikedAmong 批量检查点赞状态，结果包含每个传入的 ID
func (r *gormSongRepository) LikedAmong(ctx context.Context, userID int64, songIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(songIDs))
	for _, id := range songIDs {
		result[id] = false
	}
	if len(songIDs) == 0 {
		return result, nil
	}

	var liked []int64
	err := r.db.WithContext(ctx).Model(&model.SongLike{}).
		Where("user_id = ? AND song_id IN ?", userID, songIDs).
		Pluck("song_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}

// ListLiked 用户喜欢的歌曲，最近点赞的在前
func (r *gormSongRepository) ListLiked(ctx context.Context, userID int64, skip, limit int) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Joins("JOIN user_liked_songs ON user_liked_songs.song_id = songs.id").
		Where("user_liked_songs.user_id = ?", userID).
		Preload("Genres").
		Order("user_liked_songs.created_at DESC").
		Scopes(page(skip, limit)).
		Find(&songs).Error
	return songs, err
}

// Search 匹配标题、艺人名或专辑名，可按流派和时长过滤
func (r *gormSongRepository) Search(ctx context.Context, filter model.SongFilter, skip, limit int) ([]*model.Song, error) {
	p := containsPattern(filter.Query)
	q := r.db.WithContext(ctx).Model(&model.Song{}).
		Select("songs.*").
		Joins("LEFT JOIN users ON users.id = songs.creator_id").
		Joins("LEFT JOIN albums ON albums.id = songs.album_id").
		Where("("+likeClause("songs.title")+" OR "+likeClause("users.username")+" OR "+likeClause("albums.title")+")", p, p, p)

	if filter.Genre != "" {
		tagged := r.db.Table("song_genre").
			Select("song_genre.song_id").
			Joins("JOIN genres ON genres.id = song_genre.genre_id").
			Where("LOWER(genres.name) = ?", strings.ToLower(filter.Genre))
		q = q.Where("songs.id IN (?)", tagged)
	}
	if filter.MinDuration != nil {
		q = q.Where("songs.duration >= ?", *filter.MinDuration)
	}
	if filter.MaxDuration != nil {
		q = q.Where("songs.duration <= ?", *filter.MaxDuration)
	}

	var songs []*model.Song
	err := q.Preload("Genres").
		Order("songs.id").
		Scopes(page(skip, limit)).
		Find(&songs).Error
	return songs, err
}

// TitlesWithPrefix 搜索建议用
func (r *gormSongRepository) TitlesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	var titles []string
	err := r.db.WithContext(ctx).Model(&model.Song{}).
		Where(likeClause("title"), prefixPattern(prefix)).
		Order("title").
		Limit(limit).
		Distinct().
		Pluck("title", &titles).Error
	return titles, err
}
