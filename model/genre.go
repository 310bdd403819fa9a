package model

// Genre 流派
type Genre struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
}

// TableName 指定表名
func (Genre) TableName() string {
	return "genres"
}

// GenreWithCount is a genre together with the number of songs tagged with it.
type GenreWithCount struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SongCount   int64  `json:"song_count"`
}
