package delivery

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/modules/model"
)

var (
	ErrAlreadyLoading = errors.New("history is already loading")
	ErrUnknownEntry   = errors.New("no such local message")
	ErrNotFailed      = errors.New("only failed messages can be retried")
)

// TempIDPrefix marks local ids of messages the server has not acknowledged yet.
const TempIDPrefix = "temp_"

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type WidgetState int

const (
	WidgetClosed WidgetState = iota
	WidgetOpen
)

// Entry is one rendered message.
type Entry struct {
	LocalID    string
	MessageID  uint64
	SessionID  string
	SenderType model.SenderType
	SenderName string
	Content    string
	CreatedAt  string
	File       *model.FileData
	Status     Status
}

// SendResult is the server's acknowledgement of a sent message.
type SendResult struct {
	MessageID       uint64
	CreatedAt       string
	SystemResponse  string
	SystemMessageID uint64
	SystemCreatedAt string
}

// Transport is the request/response side of the chat API.
type Transport interface {
	// History returns messages after since, a message id or timestamp; "" means from the start.
	History(ctx context.Context, sessionID, since string) ([]model.Message, error)
	Send(ctx context.Context, sessionID, text string) (*SendResult, error)
}

// Conversation merges persisted history, optimistic local echoes and realtime events into one
// duplicate-free list of entries.
type Conversation struct {
	mu         sync.Mutex
	sessionID  string
	self       model.SenderType
	transport  Transport
	seen       *SeenSet
	entries    []Entry
	state      WidgetState
	loading    bool
	chatClosed bool
	lastID     uint64
	log        *zap.Logger
	newTempID  func() string
}

// NewConversation builds a conversation for sessionID as seen by self, the local sender type.
func NewConversation(sessionID string, self model.SenderType, transport Transport, log *zap.Logger) *Conversation {
	return &Conversation{
		sessionID: sessionID,
		self:      self,
		transport: transport,
		seen:      NewSeenSet(DefaultSeenCapacity),
		log:       log,
		newTempID: func() string { return TempIDPrefix + uuid.NewString() },
	}
}

func (c *Conversation) SessionID() string { return c.sessionID }

func (c *Conversation) State() WidgetState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChatClosed reports whether an operator closed the chat.
func (c *Conversation) ChatClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatClosed
}

// Entries returns a snapshot of the rendered messages.
func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Conversation) beginLoad() error {
	if c.loading {
		return ErrAlreadyLoading
	}
	c.loading = true
	return nil
}

func historyEntry(m model.Message) Entry {
	return Entry{
		LocalID:    strconv.FormatUint(m.ID, 10),
		MessageID:  m.ID,
		SessionID:  m.SessionID,
		SenderType: m.SenderType,
		SenderName: m.SenderName,
		Content:    m.Content,
		CreatedAt:  model.FormatWireTime(m.CreatedAt),
		File:       m.File,
		Status:     StatusSent,
	}
}

func (c *Conversation) trackID(id uint64) {
	if id > c.lastID {
		c.lastID = id
	}
}

// Open shows the widget and replaces the local render with the full history.
func (c *Conversation) Open(ctx context.Context) error {
	c.mu.Lock()
	c.state = WidgetOpen
	if err := c.beginLoad(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	msgs, err := c.transport.History(ctx, c.sessionID, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.log.Warn("load history", zap.String("session_id", c.sessionID), zap.Error(err))
		return err
	}

	c.seen.Reset()
	c.entries = make([]Entry, 0, len(msgs))
	c.lastID = 0
	for _, m := range msgs {
		if !c.seen.Add(MessageKey(m)) {
			continue
		}
		c.entries = append(c.entries, historyEntry(m))
		c.trackID(m.ID)
	}
	return nil
}

// Close hides the widget. Entries are kept until the next Open.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = WidgetClosed
}

// Sync fetches messages after the newest known id and appends the ones not seen yet.
// It is meant for reconnects, when realtime events may have been missed.
func (c *Conversation) Sync(ctx context.Context) (int, error) {
	c.mu.Lock()
	if err := c.beginLoad(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	since := ""
	if c.lastID > 0 {
		since = strconv.FormatUint(c.lastID, 10)
	}
	c.mu.Unlock()

	msgs, err := c.transport.History(ctx, c.sessionID, since)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range msgs {
		c.trackID(m.ID)
		if !c.seen.Add(MessageKey(m)) {
			continue
		}
		c.entries = append(c.entries, historyEntry(m))
		added++
	}
	return added, nil
}

// Receive applies a realtime message event. It reports whether the event added an entry;
// duplicates and events for other sessions are dropped.
func (c *Conversation) Receive(p model.RealtimePayload) bool {
	if p.SessionID != c.sessionID {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seen.Add(PayloadKey(p)) {
		return false
	}
	name := p.SenderName
	if name == "" {
		name = p.UserName
	}
	localID := strconv.FormatUint(p.MessageID, 10)
	if p.MessageID == 0 {
		localID = c.newTempID()
	}
	c.entries = append(c.entries, Entry{
		LocalID:    localID,
		MessageID:  p.MessageID,
		SessionID:  p.SessionID,
		SenderType: p.SenderType,
		SenderName: name,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
		File:       p.FileData,
		Status:     StatusSent,
	})
	c.trackID(p.MessageID)
	return true
}

// MarkClosed applies a chat-closed event.
func (c *Conversation) MarkClosed(p model.ClosePayload) {
	if p.SessionID != c.sessionID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatClosed = true
}

func (c *Conversation) indexOf(localID string) int {
	for i := range c.entries {
		if c.entries[i].LocalID == localID {
			return i
		}
	}
	return -1
}

// Send echoes text immediately as a pending entry, then reconciles it with the server's id.
// On failure the entry stays visible as failed and can be retried.
func (c *Conversation) Send(ctx context.Context, text string) (Entry, error) {
	c.mu.Lock()
	e := Entry{
		LocalID:    c.newTempID(),
		SessionID:  c.sessionID,
		SenderType: c.self,
		Content:    text,
		Status:     StatusPending,
	}
	c.entries = append(c.entries, e)
	c.mu.Unlock()

	return c.deliver(ctx, e.LocalID, text)
}

// Retry resends a failed entry under its existing local id.
func (c *Conversation) Retry(ctx context.Context, localID string) (Entry, error) {
	c.mu.Lock()
	i := c.indexOf(localID)
	if i < 0 {
		c.mu.Unlock()
		return Entry{}, ErrUnknownEntry
	}
	if c.entries[i].Status != StatusFailed {
		c.mu.Unlock()
		return Entry{}, ErrNotFailed
	}
	c.entries[i].Status = StatusPending
	text := c.entries[i].Content
	c.mu.Unlock()

	return c.deliver(ctx, localID, text)
}

func (c *Conversation) deliver(ctx context.Context, localID, text string) (Entry, error) {
	res, err := c.transport.Send(ctx, c.sessionID, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(localID)
	if err != nil {
		c.log.Warn("send message", zap.String("session_id", c.sessionID), zap.Error(err))
		if i < 0 {
			return Entry{}, err
		}
		c.entries[i].Status = StatusFailed
		return c.entries[i], err
	}

	k := Key{MessageID: res.MessageID}
	if i < 0 {
		// The render was replaced while the request was in flight.
		e := Entry{
			LocalID:    strconv.FormatUint(res.MessageID, 10),
			MessageID:  res.MessageID,
			SessionID:  c.sessionID,
			SenderType: c.self,
			Content:    text,
			CreatedAt:  res.CreatedAt,
			Status:     StatusSent,
		}
		if c.seen.Add(k) {
			c.entries = append(c.entries, e)
		}
		c.trackID(res.MessageID)
		c.appendSystem(res)
		return e, nil
	}

	if !c.seen.Add(k) {
		// A realtime event or sync already delivered this message; drop the echo.
		e := c.entries[i]
		e.MessageID, e.CreatedAt, e.Status = res.MessageID, res.CreatedAt, StatusSent
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		c.appendSystem(res)
		return e, nil
	}
	c.entries[i].MessageID = res.MessageID
	c.entries[i].LocalID = strconv.FormatUint(res.MessageID, 10)
	c.entries[i].CreatedAt = res.CreatedAt
	c.entries[i].Status = StatusSent
	c.trackID(res.MessageID)
	c.appendSystem(res)
	return c.entries[i], nil
}

func (c *Conversation) appendSystem(res *SendResult) {
	if res.SystemResponse == "" || res.SystemMessageID == 0 {
		return
	}
	if !c.seen.Add(Key{MessageID: res.SystemMessageID}) {
		return
	}
	createdAt := res.SystemCreatedAt
	if createdAt == "" {
		createdAt = res.CreatedAt
	}
	c.entries = append(c.entries, Entry{
		LocalID:    strconv.FormatUint(res.SystemMessageID, 10),
		MessageID:  res.SystemMessageID,
		SessionID:  c.sessionID,
		SenderType: model.SenderSystem,
		SenderName: model.SystemSenderName,
		Content:    res.SystemResponse,
		CreatedAt:  createdAt,
		Status:     StatusSent,
	})
	c.trackID(res.SystemMessageID)
}
