package model

import "time"

// Default values applied when a song is created without explicit fields.
const (
	DefaultSongTitle    = "New Song"
	DefaultSongDuration = 300
)

// Song is a user-owned composition. Duration is in whole seconds and every
// timeline entry of the song must fit inside [0, Duration].
type Song struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    int64     `json:"userId" gorm:"column:user_id;index"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName maps Song to the songs table.
func (Song) TableName() string {
	return "songs"
}
