package model

import (
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Realtime event names.
const (
	EventNewMessage     = "new-message"
	EventChatClosed     = "chat-closed"
	EventNewUserMessage = "new-user-message"
)

// SenderRef is the sender_id field of a realtime payload. Operators are referenced by their
// numeric id, visitors by their session id.
type SenderRef struct {
	OperatorID uint64
	SessionID  string
}

func (r SenderRef) MarshalJSON() ([]byte, error) {
	if r.SessionID != "" {
		return sonic.Marshal(r.SessionID)
	}
	return []byte(strconv.FormatUint(r.OperatorID, 10)), nil
}

func (r *SenderRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return sonic.Unmarshal(b, &r.SessionID)
	}
	return sonic.Unmarshal(b, &r.OperatorID)
}

// RealtimePayload is the body of new-message and new-user-message events.
type RealtimePayload struct {
	SessionID    string     `json:"session_id"`
	SenderType   SenderType `json:"sender_type"`
	SenderID     *SenderRef `json:"sender_id,omitempty"`
	MessageID    uint64     `json:"message_id,omitempty"`
	Content      string     `json:"content"`
	UserName     string     `json:"user_name,omitempty"`
	SenderName   string     `json:"sender_name,omitempty"`
	OperatorRole string     `json:"operator_role,omitempty"`
	MessageType  string     `json:"message_type,omitempty"`
	CreatedAt    string     `json:"created_at"`
	FileData     *FileData  `json:"file_data,omitempty"`
}

// ClosePayload is the body of chat-closed events.
type ClosePayload struct {
	SessionID    string `json:"session_id"`
	ClosedBy     string `json:"closed_by"`
	ClosedByRole string `json:"closed_by_role"`
	Timestamp    string `json:"timestamp"`
}

// FormatWireTime renders t in UTC using WireTimeFormat.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeFormat)
}

// MessageEvent is published on the message mirror exchange after every persisted message.
type MessageEvent struct {
	MessageID  uint64     `json:"message_id"`
	SessionID  string     `json:"session_id"`
	SenderType SenderType `json:"sender_type"`
	SenderID   *uint64    `json:"sender_id,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	FileID     uint64     `json:"file_id,omitempty"`
}
