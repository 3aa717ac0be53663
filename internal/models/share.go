package models

import (
	"time"
)

// ShareLink grants token access to one file. There is at most one per file.
type ShareLink struct {
	ID        int64      `json:"-" gorm:"primaryKey;autoIncrement"`
	FileID    int64      `json:"file_id" gorm:"uniqueIndex;not null"`
	File      FileRecord `json:"-" gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	Token     string     `json:"share_token" gorm:"uniqueIndex;not null"`
	Password  string     `json:"share_password" gorm:"not null;default:''"` // empty means no password
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ShareLink) TableName() string { return "share_links" }
