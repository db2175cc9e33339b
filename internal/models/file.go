package models

import (
	"time"

	"github.com/google/uuid"
)

// File represents a stored file record. The record is keyed by the logical
// file identity: re-uploading with an existing ID bumps Version and repoints
// FilePath at the new object, it never mutates bytes in place.
type File struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FileName    string    `json:"fileName" gorm:"size:1000;not null"`
	FilePath    string    `json:"-" gorm:"size:2000;not null"`
	ContentType string    `json:"contentType" gorm:"size:100;not null"`
	FileSize    int64     `json:"fileSize" gorm:"not null"`
	Category    string    `json:"category" gorm:"size:255;not null;index"`
	Version     int       `json:"version" gorm:"not null"`
	DateUpload  time.Time `json:"dateUpload" gorm:"not null"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null"`
}
