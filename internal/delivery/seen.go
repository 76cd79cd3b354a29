package delivery

import (
	"sync"

	"github.com/wplc/livechat/internal/modules/model"
)

// DefaultSeenCapacity bounds how many message keys a conversation remembers.
const DefaultSeenCapacity = 100

// Key identifies a delivered message. Server-assigned ids are preferred; messages without
// one fall back to their session, sender, timestamp and content.
type Key struct {
	MessageID  uint64
	SessionID  string
	SenderType model.SenderType
	CreatedAt  string
	Content    string
}

// KeyFor builds the dedup key for a message.
func KeyFor(messageID uint64, sessionID string, senderType model.SenderType, createdAt, content string) Key {
	if messageID > 0 {
		return Key{MessageID: messageID}
	}
	return Key{
		SessionID:  sessionID,
		SenderType: senderType,
		CreatedAt:  createdAt,
		Content:    content,
	}
}

// PayloadKey is the dedup key of a realtime payload.
func PayloadKey(p model.RealtimePayload) Key {
	return KeyFor(p.MessageID, p.SessionID, p.SenderType, p.CreatedAt, p.Content)
}

// MessageKey is the dedup key of a history row.
func MessageKey(m model.Message) Key {
	return KeyFor(m.ID, m.SessionID, m.SenderType, model.FormatWireTime(m.CreatedAt), m.Content)
}

// SeenSet is a bounded set of keys. When full, the oldest key is evicted first.
type SeenSet struct {
	mu    sync.Mutex
	cap   int
	order []Key
	keys  map[Key]struct{}
}

func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{
		cap:   capacity,
		order: make([]Key, 0, capacity),
		keys:  make(map[Key]struct{}, capacity),
	}
}

// Add records k and reports whether it was new.
func (s *SeenSet) Add(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; ok {
		return false
	}
	if len(s.order) == s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.keys, oldest)
	}
	s.order = append(s.order, k)
	s.keys[k] = struct{}{}
	return true
}

func (s *SeenSet) Has(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[k]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Reset forgets every key.
func (s *SeenSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.keys = make(map[Key]struct{}, s.cap)
}
