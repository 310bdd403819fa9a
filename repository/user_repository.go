package repository

import (
	"context"
	"fmt"

	"Sonora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error

	// 关注关系
	Follow(ctx context.Context, followerID, followingID int64) error
	Unfollow(ctx context.Context, followerID, followingID int64) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
	CountFollowers(ctx context.Context, userID int64) (int64, error)
	CountFollowing(ctx context.Context, userID int64) (int64, error)
	ListFollowing(ctx context.Context, userID int64, skip, limit int) ([]*model.User, error)
	ListFollowers(ctx context.Context, userID int64, skip, limit int) ([]*model.User, error)

	SearchArtists(ctx context.Context, query string, skip, limit int) ([]*model.User, error)
	ArtistNamesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}

// gormUserRepository GORM 实现
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GORM 用户仓库
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create 创建用户
func (r *gormUserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByID 根据ID获取用户，不存在返回 nil, nil
func (r *gormUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByUsername 根据用户名获取用户
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

// GetByEmail 根据邮箱获取用户
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

// Update 保存用户的全部字段
func (r *gormUserRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// ========== 关注关系 ==========

// Follow 关注，已关注时返回 ErrDuplicate
func (r *gormUserRepository) Follow(ctx context.Context, followerID, followingID int64) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserFollow{FollowerID: followerID, FollowingID: followingID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// Unfollow 取消关注，返回是否真的删除了关系
func (r *gormUserRepository) Unfollow(ctx context.Context, followerID, followingID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&model.UserFollow{})
	return res.RowsAffected > 0, res.Error
}

// IsFollowing 是否已关注
func (r *gormUserRepository) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserFollow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// CountFollowers 粉丝数
func (r *gormUserRepository) CountFollowers(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserFollow{}).
		Where("following_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountFollowing 关注数
func (r *gormUserRepository) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserFollow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error
	return count, err
}

// ListFollowing 我关注的人，按关注时间倒序
func (r *gormUserRepository) ListFollowing(ctx context.Context, userID int64, skip, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_follows ON user_follows.following_id = users.id").
		Where("user_follows.follower_id = ?", userID).
		Order("user_follows.created_at DESC").
		Scopes(page(skip, limit)).
		Find(&users).Error
	return users, err
}

// ListFollowers 关注我的人，按关注时间倒序
func (r *gormUserRepository) ListFollowers(ctx context.Context, userID int64, skip, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_follows ON user_follows.follower_id = users.id").
		Where("user_follows.following_id = ?", userID).
		Order("user_follows.created_at DESC").
		Scopes(page(skip, limit)).
		Find(&users).Error
	return users, err
}

// SearchArtists 按用户名模糊搜索艺人
func (r *gormUserRepository) SearchArtists(ctx context.Context, query string, skip, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("is_artist = ?", true).
		Where(likeClause("username"), containsPattern(query)).
		Order("id").
		Scopes(page(skip, limit)).
		Find(&users).Error
	return users, err
}

// ArtistNamesWithPrefix 搜索建议用
func (r *gormUserRepository) ArtistNamesWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("is_artist = ?", true).
		Where(likeClause("username"), prefixPattern(prefix)).
		Order("username").
		Limit(limit).
		Pluck("username", &names).Error
	return names, err
}
