package model

import "time"

// Album 专辑，歌曲通过 songs.album_id 归属专辑
type Album struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string    `json:"title" gorm:"size:255;not null;index"`
	ReleaseDate time.Time `json:"release_date"`
	CoverImage  string    `json:"-" gorm:"size:512"`
	LikeCount   int64     `json:"like_count" gorm:"not null;default:0"`
	CreatorID   int64     `json:"creator_id" gorm:"not null;index"`
	Songs       []Song    `json:"songs,omitempty" gorm:"foreignKey:AlbumID"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName 指定表名
func (Album) TableName() string {
	return "albums"
}

// AlbumLike 用户喜欢的专辑
type AlbumLike struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	AlbumID   int64 `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// TableName 指定表名
func (AlbumLike) TableName() string {
	return "user_liked_albums"
}
