package model

import (
	"time"
)

// File is an uploaded attachment. The row is linked to the message announcing it.
type File struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string     `gorm:"size:64;not null;index" json:"session_id"`
	FileName   string     `gorm:"size:255;not null" json:"file_name"`
	StorageKey string     `gorm:"size:512;not null" json:"-"`
	FileURL    string     `gorm:"type:text;not null" json:"file_url"`
	FileType   string     `gorm:"size:16;not null" json:"file_type"`
	FileSize   int64      `gorm:"not null" json:"file_size"`
	MimeType   string     `gorm:"size:128;not null" json:"mime_type"`
	SenderType SenderType `gorm:"size:16;not null" json:"sender_type"`
	SenderID   *uint64    `json:"sender_id"`
	MessageID  *uint64    `gorm:"index" json:"message_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"created_at"`
}

func (File) TableName() string { return "chat_files" }

// FileData is the file description carried in realtime payloads and upload responses.
type FileData struct {
	FileID        uint64 `json:"file_id"`
	FileName      string `json:"file_name"`
	FileURL       string `json:"file_url"`
	FileType      string `json:"file_type"`
	FileSize      int64  `json:"file_size"`
	FormattedSize string `json:"formatted_size"`
	MimeType      string `json:"mime_type"`
}

func (f *File) Data() FileData {
	return FileData{
		FileID:        f.ID,
		FileName:      f.FileName,
		FileURL:       f.FileURL,
		FileType:      f.FileType,
		FileSize:      f.FileSize,
		FormattedSize: FormatFileSize(f.FileSize),
		MimeType:      f.MimeType,
	}
}
