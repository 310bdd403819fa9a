package model

import "time"

// Playlist 歌单，只对创建者可见
type Playlist struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:255;not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	OwnerID     int64     `json:"owner_id" gorm:"not null;index"`
	Songs       []Song    `json:"songs" gorm:"many2many:song_playlist"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName 指定表名
func (Playlist) TableName() string {
	return "playlists"
}
