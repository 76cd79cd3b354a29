package model

import (
	"time"
)

// SessionStatus is the lifecycle state of a conversation.
type SessionStatus = string

const (
	SessionStatusNew    SessionStatus = "new"
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// ValidSessionStatus reports whether s is one of the known statuses.
func ValidSessionStatus(s string) bool {
	switch s {
	case SessionStatusNew, SessionStatusOpen, SessionStatusClosed:
		return true
	}
	return false
}

type Session struct {
	ID          uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   string        `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	UserName    string        `gorm:"size:255;not null;default:''" json:"user_name"`
	PhoneNumber string        `gorm:"size:32;not null;default:''" json:"phone_number"`
	Status      SessionStatus `gorm:"size:16;not null;default:'new';index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;index" json:"updated_at"`

	// Session <-> Message (soft reference, messages are never cascaded)
	Messages []Message `gorm:"foreignKey:SessionID;references:SessionID;constraint:false" json:"-"`
}

func (Session) TableName() string { return "chat_sessions" }

// SessionSummary is a session row joined with its latest message, as shown in the operator inbox.
type SessionSummary struct {
	Session
	LastMessage     string     `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	MessageCount    int64      `json:"message_count"`
}

// SessionDetails is the operator view of a single conversation.
type SessionDetails struct {
	Session      Session `json:"session"`
	MessageCount int64   `json:"message_count"`
	Files        []File  `json:"files"`
}
