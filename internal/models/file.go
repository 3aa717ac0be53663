package models

import (
	"time"
)

// FileRecord is one stored file. It owns the blob named by BlobKey.
type FileRecord struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Filename        string    `json:"filename" gorm:"not null"`
	Filesize        int64     `json:"filesize" gorm:"not null"` // bytes written to the blob
	UploadTimestamp time.Time `json:"upload_timestamp" gorm:"not null;index"`
	BlobKey         string    `json:"-" gorm:"uniqueIndex;not null"`
}

func (FileRecord) TableName() string { return "files" }
