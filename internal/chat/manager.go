package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/common"
)

const (
	DefaultGreeting  = "<p>Hii</p>"
	PlaceholderTitle = "New Chat"

	DefaultReloadCount = 1
)

type State int

const (
	NoActiveConversation State = iota
	ActiveConversation
)

func (s State) String() string {
	if s == ActiveConversation {
		return "active"
	}
	return "none"
}

type Options struct {
	// ReloadCount is how many greeting bubbles seed a new chat. Zero means
	// DefaultReloadCount; a negative value seeds no greeting.
	ReloadCount int
	Greeting    string
	// ResumeLatest makes Open load the newest stored conversation instead of a new chat.
	ResumeLatest bool

	Now   func() time.Time
	NewID func() string
}

func (o *Options) defaults() {
	switch {
	case o.ReloadCount == 0:
		o.ReloadCount = DefaultReloadCount
	case o.ReloadCount < 0:
		o.ReloadCount = 0
	}
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = common.NewConversationID
	}
}

// Entry is one row of the conversation list, newest first.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Selected  bool      `json:"selected"`
}

// When formats the timestamp the way the history list shows it.
func (e Entry) When() string {
	return e.Timestamp.Local().Format("15:04 2006-01-02")
}

// Manager owns the conversation history and the active transcript.
//
// A conversation id is allocated by StartNewChat and only registered in the
// history by the first Append. Until then the transcript holds the greeting
// seed and ActiveID reports no conversation.
//
// Manager is not safe for concurrent use.
type Manager struct {
	store Store
	opts  Options

	conversations []*Conversation
	active        *Conversation

	pendingID string
	pending   []Message
}

func NewManager(store Store, opts Options) *Manager {
	opts.defaults()
	return &Manager{store: store, opts: opts}
}

// Open loads the stored history and prepares the first chat.
func Open(ctx context.Context, store Store, opts Options) (*Manager, error) {
	m := NewManager(store, opts)
	h, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	m.conversations = make([]*Conversation, 0, len(h))
	for i := range h {
		c := h[i]
		m.conversations = append(m.conversations, &c)
	}

	if m.opts.ResumeLatest && len(m.conversations) > 0 {
		m.LoadConversation(m.conversations[len(m.conversations)-1].ID)
	} else {
		m.StartNewChat()
	}
	log.Debug().Int("conversations", len(m.conversations)).Msg("history loaded")
	return m, nil
}

// StartNewChat allocates a fresh id and seeds the transcript with the greeting.
// Nothing is persisted until the first Append.
func (m *Manager) StartNewChat() {
	m.active = nil
	m.pendingID = m.opts.NewID()
	m.pending = make([]Message, 0, m.opts.ReloadCount)
	for i := 0; i < m.opts.ReloadCount; i++ {
		m.pending = append(m.pending, m.newMessage(SenderAI, "", m.opts.Greeting))
	}
}

// LoadConversation activates the conversation with the given id. An unknown id
// falls back to StartNewChat and reports false.
func (m *Manager) LoadConversation(id string) bool {
	c := m.find(id)
	if c == nil {
		log.Warn().Str("conversation_id", id).Msg("conversation not found, starting new chat")
		m.StartNewChat()
		return false
	}
	m.active = c
	m.pendingID = ""
	m.pending = nil
	return true
}

// Append adds a message to the active transcript, registering the conversation
// on first use, and persists the full history.
func (m *Manager) Append(ctx context.Context, sender Sender, query, content string) (Message, error) {
	if !sender.Valid() {
		return Message{}, fmt.Errorf("invalid sender %q", sender)
	}
	msg := m.newMessage(sender, query, content)

	if m.active == nil {
		id := m.pendingID
		if id == "" {
			id = m.opts.NewID()
		}
		c := &Conversation{
			ID:        id,
			Timestamp: msg.Timestamp,
			Messages:  append(m.pending, msg),
		}
		m.conversations = append(m.conversations, c)
		m.active = c
		m.pendingID = ""
		m.pending = nil
	} else {
		m.active.Messages = append(m.active.Messages, msg)
	}

	if m.active.Title == "" && sender == SenderUser {
		m.active.Title = query
	}

	if err := m.save(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}

// ClearAll wipes every stored conversation and starts a new chat.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.conversations = nil
	m.active = nil
	err := m.save(ctx)
	m.StartNewChat()
	return err
}

func (m *Manager) State() State {
	if m.active != nil {
		return ActiveConversation
	}
	return NoActiveConversation
}

// ActiveID is the registered active conversation, or "" when none.
func (m *Manager) ActiveID() string {
	if m.active == nil {
		return ""
	}
	return m.active.ID
}

// PendingID is the allocated, not yet registered id after StartNewChat.
func (m *Manager) PendingID() string { return m.pendingID }

// ConversationID is the id requests for the current chat should carry.
func (m *Manager) ConversationID() string {
	if m.active != nil {
		return m.active.ID
	}
	return m.pendingID
}

func (m *Manager) Transcript() []Message {
	if m.active != nil {
		return append([]Message(nil), m.active.Messages...)
	}
	return append([]Message(nil), m.pending...)
}

func (m *Manager) Conversation(id string) (Conversation, bool) {
	c := m.find(id)
	if c == nil {
		return Conversation{}, false
	}
	return c.clone(), true
}

func (m *Manager) Len() int { return len(m.conversations) }

// History returns a deep copy in creation order.
func (m *Manager) History() History {
	return m.snapshot().Clone()
}

func (m *Manager) Entries() []Entry {
	out := make([]Entry, 0, len(m.conversations))
	for i := len(m.conversations) - 1; i >= 0; i-- {
		c := m.conversations[i]
		title := c.Title
		if title == "" {
			title = PlaceholderTitle
		}
		out = append(out, Entry{
			ID:        c.ID,
			Title:     title,
			Timestamp: c.Timestamp,
			Selected:  c == m.active,
		})
	}
	return out
}

func (m *Manager) find(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, c := range m.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *Manager) newMessage(sender Sender, query, content string) Message {
	return Message{
		Sender:    sender,
		Query:     query,
		Content:   content,
		Timestamp: m.opts.Now().UTC().Truncate(time.Millisecond),
	}
}

func (m *Manager) snapshot() History {
	h := make(History, 0, len(m.conversations))
	for _, c := range m.conversations {
		h = append(h, *c)
	}
	return h
}

func (m *Manager) save(ctx context.Context) error {
	if err := m.store.Save(ctx, m.snapshot()); err != nil {
		log.Error().Err(err).Str("conversation_id", m.ActiveID()).Msg("save history failed")
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
