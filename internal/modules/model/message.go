package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// SenderType identifies who authored a message.
type SenderType = string

const (
	SenderUser   SenderType = "user"
	SenderAdmin  SenderType = "admin"
	SenderSystem SenderType = "system"
)

// Display names used when a sender has no name of its own.
const (
	DefaultVisitorName  = "کاربر"
	DefaultOperatorName = "پشتیبان"
	SystemSenderName    = "سیستم"
	EmptyPreview        = "گفتگوی جدید"
)

// WireTimeFormat is the timestamp layout used in realtime payloads and history rows. It keeps
// the microseconds the database stores, so a timestamp handed back as a history cursor
// excludes the message it came from.
const WireTimeFormat = "2006-01-02 15:04:05.000000"

type Message struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string     `gorm:"size:64;not null;index:idx_chat_messages_session_created,priority:1" json:"session_id"`
	SenderType SenderType `gorm:"size:16;not null" json:"sender_type"`
	SenderID   *uint64    `json:"sender_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`

	// CreatedAt is assigned by the repository in UTC and is the ordering key.
	CreatedAt time.Time `gorm:"not null;precision:6;index:idx_chat_messages_session_created,priority:2" json:"created_at"`

	// SenderName is resolved at read time and never stored.
	SenderName string    `gorm:"-" json:"sender_name,omitempty"`
	// File is attached at read time for file messages.
	File       *FileData `gorm:"-" json:"file_data,omitempty"`
}

func (Message) TableName() string { return "chat_messages" }

// MessageBody is the content of a message being routed. It is either TextBody or FileBody.
type MessageBody interface {
	// Content is the text persisted in the message row.
	Content() string
	isMessageBody()
}

// TextBody is an ordinary chat line.
type TextBody struct {
	Text string
}

func (b TextBody) Content() string { return b.Text }
func (TextBody) isMessageBody() {}

// FileBody is a message announcing an uploaded file. Content is a readable placeholder;
// the structured metadata travels in FileData.
type FileBody struct {
	File FileData
}

func (b FileBody) Content() string {
	return fmt.Sprintf("📎 فایل: %s (%s)", b.File.FileName, FormatFileSize(b.File.FileSize))
}
func (FileBody) isMessageBody() {}

// FormatFileSize renders a byte count in binary units rounded to two decimals, e.g. "1.5 KB".
func FormatFileSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(max(n, 0))
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(size*100)/100, 'f', -1, 64) + " " + units[i]
}
