package model

import "time"

// User 用户，艺人（IsArtist）才能发布歌曲和专辑
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Username       string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"size:255;not null"`
	IsActive       bool      `json:"is_active" gorm:"not null"`
	IsArtist       bool      `json:"is_artist" gorm:"not null;index"`
	Bio            string    `json:"bio" gorm:"type:text"`
	Image          string    `json:"-" gorm:"size:512"` // storage key
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// HasImage reports whether the user uploaded a profile image.
func (u *User) HasImage() bool {
	return u.Image != ""
}

// UserFollow 关注关系，FollowerID 关注了 FollowingID
type UserFollow struct {
	FollowerID  int64     `gorm:"primaryKey;autoIncrement:false"`
	FollowingID int64     `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (UserFollow) TableName() string {
	return "user_follows"
}

// UserPublic is the view of a user shown to other users.
type UserPublic struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	IsArtist  bool      `json:"is_artist"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
}

// Public strips private fields from the user.
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Username:  u.Username,
		Bio:       u.Bio,
		IsArtist:  u.IsArtist,
		HasImage:  u.HasImage(),
		CreatedAt: u.CreatedAt,
	}
}

// UserProfile 用户主页信息
type UserProfile struct {
	UserPublic
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	SongCount      int64 `json:"song_count"`
	IsFollowing    bool  `json:"is_following"`
}

// FollowStatus is returned by the follow endpoints.
type FollowStatus struct {
	IsFollowing    bool  `json:"is_following"`
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
}
