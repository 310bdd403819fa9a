package model

import "time"

// Song 歌曲。FilePath 和 CoverImage 保存的是存储层的相对 key
type Song struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title      string    `json:"title" gorm:"size:255;not null;index"`
	Duration   int       `json:"duration"` // seconds, 0 when unknown
	FilePath   string    `json:"-" gorm:"size:512;not null;index"`
	CoverImage string    `json:"-" gorm:"size:512"`
	LikeCount  int64     `json:"like_count" gorm:"not null;default:0"`
	AlbumID    *int64    `json:"album_id" gorm:"index"`
	CreatorID  int64     `json:"creator_id" gorm:"not null;index"`
	Genres     []Genre   `json:"genres" gorm:"many2many:song_genre"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"-"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

// SongLike 用户喜欢的歌曲
type SongLike struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	SongID    int64 `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// TableName 指定表名
func (SongLike) TableName() string {
	return "user_liked_songs"
}

// SongInfo describes the stored audio file of a song.
type SongInfo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Duration    int    `json:"duration"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	AlbumID     *int64 `json:"album_id"`
	CreatorID   int64  `json:"creator_id"`
}

// SongFilter narrows a song search.
type SongFilter struct {
	Query       string
	Genre       string
	MinDuration *int
	MaxDuration *int
}
