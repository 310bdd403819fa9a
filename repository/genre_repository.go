package repository

import (
	"context"
	"fmt"

	"Sonora/model"

	"gorm.io/gorm"
)

// GenreRepository 流派数据访问接口
type GenreRepository interface {
	Create(ctx context.Context, genre *model.Genre) error
	GetByID(ctx context.Context, id int64) (*model.Genre, error)
	GetByName(ctx context.Context, name string) (*model.Genre, error)
	List(ctx context.Context, skip, limit int) ([]*model.Genre, error)
	Update(ctx context.Context, genre *model.Genre) error
	Delete(ctx context.Context, id int64) error
	Popular(ctx context.Context, limit int) ([]model.GenreWithCount, error)
	Search(ctx context.Context, query string, skip, limit int) ([]*model.Genre, error)
}

// gormGenreRepository GORM 实现
type gormGenreRepository struct {
	db *gorm.DB
}

// NewGormGenreRepository 创建 GORM 流派仓库
func NewGormGenreRepository(db *gorm.DB) GenreRepository {
	return &gormGenreRepository{db: db}
}

// Create 创建流派
func (r *gormGenreRepository) Create(ctx context.Context, genre *model.Genre) error {
	if err := r.db.WithContext(ctx).Create(genre).Error; err != nil {
		return fmt.Errorf("failed to create genre %q: %w", genre.Name, err)
	}
	return nil
}

// GetByID 根据ID获取流派
func (r *gormGenreRepository) GetByID(ctx context.Context, id int64) (*model.Genre, error) {
	var genre model.Genre
	if err := r.db.WithContext(ctx).First(&genre, id).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &genre, nil
}

// GetByName 按名称精确查找
func (r *gormGenreRepository) GetByName(ctx context.Context, name string) (*model.Genre, error) {
	var genre model.Genre
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&genre).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &genre, nil
}

// List 分页获取流派
func (r *gormGenreRepository) List(ctx context.Context, skip, limit int) ([]*model.Genre, error) {
	var genres []*model.Genre
	err := r.db.WithContext(ctx).Order("id").Scopes(page(skip, limit)).Find(&genres).Error
	return genres, err
}

// Update 保存流派
func (r *gormGenreRepository) Update(ctx context.Context, genre *model.Genre) error {
	return r.db.WithContext(ctx).Save(genre).Error
}

// Delete 删除流派及歌曲关联
func (r *gormGenreRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM song_genre WHERE genre_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Genre{}, id).Error
	})
}

// Popular 按歌曲数量倒序的流派
func (r *gormGenreRepository) Popular(ctx context.Context, limit int) ([]model.GenreWithCount, error) {
	var rows []model.GenreWithCount
	err := r.db.WithContext(ctx).Model(&model.Genre{}).
		Select("genres.id, genres.name, genres.description, COUNT(song_genre.song_id) AS song_count").
		Joins("LEFT JOIN song_genre ON song_genre.genre_id = genres.id").
		Group("genres.id, genres.name, genres.description").
		Order("song_count DESC, genres.id").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// Search 按名称模糊搜索
func (r *gormGenreRepository) Search(ctx context.Context, query string, skip, limit int) ([]*model.Genre, error) {
	var genres []*model.Genre
	err := r.db.WithContext(ctx).
		Where(likeClause("name"), containsPattern(query)).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&genres).Error
	return genres, err
}
