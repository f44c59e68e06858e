package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound indicates the displayed session index and the store have
// drifted apart; this is a programmer error and is not absorbed.
var ErrSessionNotFound = errors.New("session not found")

const titleMaxRunes = 30

// SessionManager is the single authority over which session is active and
// how it evolves on a send. Sessions with zero messages are never persisted;
// only completed exchanges reach the store.
type SessionManager struct {
	store  SessionStore
	client *ChatClient
	logger *Logger

	Language Language

	mu      sync.Mutex
	current *Session
	index   []Session // display order, most recently touched first
	sending bool
}

func NewSessionManager(store SessionStore, client *ChatClient, lang Language, logger *Logger) *SessionManager {
	m := &SessionManager{
		store:    store,
		client:   client,
		logger:   logger,
		Language: lang,
	}
	stored := store.Load()
	m.index = make([]Session, 0, len(stored))
	// Stored order is insertion order; the display index shows recency.
	for i := len(stored) - 1; i >= 0; i-- {
		m.index = append(m.index, stored[i])
	}
	m.current = m.freshSession()
	return m
}

func (m *SessionManager) freshSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSession starts a fresh conversation and makes it active. It is not
// persisted until it receives a completed exchange.
func (m *SessionManager) NewSession() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.freshSession()
	return *m.current
}

// Current returns a copy of the active session.
func (m *SessionManager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Sessions returns the display index, most recently touched first.
func (m *SessionManager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, len(m.index))
	copy(out, m.index)
	return out
}

// Select makes a known session the active one.
func (m *SessionManager) Select(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.index {
		if m.index[i].ID == id {
			// Re-selecting the live session must keep the live object; an
			// index clone would detach any exchange still in flight on it.
			if m.current.ID == id {
				return m.current.Clone(), nil
			}
			sess := m.index[i].Clone()
			m.current = &sess
			return sess.Clone(), nil
		}
	}
	return Session{}, fmt.Errorf("select session %s: %w", id, ErrSessionNotFound)
}

// Delete removes a session from the store and the index. Deleting the active
// session immediately starts a fresh one.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(id); err != nil {
		return err
	}
	for i := range m.index {
		if m.index[i].ID == id {
			m.index = append(m.index[:i], m.index[i+1:]...)
			break
		}
	}
	if m.current.ID == id {
		m.current = m.freshSession()
	}
	return nil
}

// Sending reports whether a send is in flight; callers gate the send action
// on it.
func (m *SessionManager) Sending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending
}

// Send runs one exchange against the active session: append the user turn,
// call the backend, append the assistant turn (response or absorbed-failure
// notice), persist. A send with no payload at all is a no-op, as is a send
// issued while another is in flight.
func (m *SessionManager) Send(ctx context.Context, text, imageB64, audioB64 string) (Message, bool) {
	m.mu.Lock()
	if m.sending || (text == "" && imageB64 == "" && audioB64 == "") {
		m.mu.Unlock()
		return Message{}, false
	}
	m.sending = true

	// The exchange binds to the session that started it, even if the active
	// session is switched while the response is pending.
	sess := m.current

	now := time.Now()
	userMsg := Message{
		ID:        fmt.Sprintf("%d", now.UnixNano()),
		Role:      RoleUser,
		Content:   text,
		Timestamp: now,
		ImageURL:  imageB64,
		AudioURL:  audioB64,
	}
	if len(sess.Messages) == 0 && text != "" {
		sess.Title = DeriveTitle(text)
	}
	sess.Append(userMsg)

	req := ChatRequest{
		Text:        text,
		ImageBase64: imageB64,
		AudioFile:   audioB64,
		SessionID:   sess.ID,
		Language:    m.Language,
	}
	m.mu.Unlock()

	// Network round trip runs outside the lock; m.sending keeps the session
	// single-writer for its duration.
	response, err := m.client.Send(ctx, req)
	if err != nil {
		m.logger.Error("chat send failed", map[string]interface{}{
			"session_id": req.SessionID,
			"error":      err.Error(),
		})
		response = UnavailableNotice(m.Language)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sending = false

	reply := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Role:      RoleAssistant,
		Content:   response,
		Timestamp: time.Now(),
	}
	sess.Append(reply)

	// If the same session was re-selected from the index while the exchange
	// was pending, the active copy predates it; converge on the completed one.
	if m.current != sess && m.current.ID == sess.ID {
		m.current = sess
	}

	if err := m.store.Save(sess.Clone()); err != nil {
		m.logger.Error("session save failed", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	m.touchIndex(sess.Clone())
	return reply, true
}

// touchIndex upserts the session into the display index and moves it to the
// front. Storage order is untouched; eviction stays FIFO.
func (m *SessionManager) touchIndex(sess Session) {
	for i := range m.index {
		if m.index[i].ID == sess.ID {
			m.index = append(m.index[:i], m.index[i+1:]...)
			break
		}
	}
	m.index = append([]Session{sess}, m.index...)
	if len(m.index) > MaxSessions {
		// Mirror store eviction: drop whatever the store dropped.
		m.reloadIndex()
	}
}

func (m *SessionManager) reloadIndex() {
	stored := m.store.Load()
	keep := make(map[string]bool, len(stored))
	for _, sess := range stored {
		keep[sess.ID] = true
	}
	out := m.index[:0]
	for _, sess := range m.index {
		if keep[sess.ID] {
			out = append(out, sess)
		}
	}
	m.index = out
}

// DeriveTitle truncates the first user text to 30 characters, marking the
// cut with an ellipsis. Counted in runes so Tamil text is not split mid-glyph.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes]) + "..."
}
