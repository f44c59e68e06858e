package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MaxSessions bounds the persisted collection. When a save pushes the
// collection past the cap, the session at position 0 is evicted (FIFO by
// insertion position, not by recency).
const MaxSessions = 50

// SessionStore is the durable collection of sessions. Load never fails:
// corrupt or missing data reads as an empty collection.
type SessionStore interface {
	Load() []Session
	Save(sess Session) error
	Delete(id string) error
	Clear() error
}

// FileSessionStore keeps the whole collection in one JSON record on disk.
//
// Layout:
//
//	<root>/sessions.json
type FileSessionStore struct {
	Root string

	mu sync.Mutex
}

func DefaultStorageRoot() string {
	// Prefer XDG data dir (Linux/macOS). If unavailable, fall back to ~/.local/share.
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "earthworm", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "earthworm", "storage")
	}
	return filepath.Join(os.TempDir(), "earthworm", "storage")
}

func NewFileSessionStore(root string) *FileSessionStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	return &FileSessionStore{Root: root}
}

func (s *FileSessionStore) path() string {
	return filepath.Join(s.Root, "sessions.json")
}

// Load returns the persisted collection in insertion order. Missing or
// corrupt data reads as empty; local corruption must never take the app down.
func (s *FileSessionStore) Load() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSessionStore) read() []Session {
	b, err := os.ReadFile(s.path())
	if err != nil {
		return []Session{}
	}
	var sessions []Session
	if err := json.Unmarshal(b, &sessions); err != nil {
		return []Session{}
	}
	return sessions
}

func (s *FileSessionStore) write(sessions []Session) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), b, 0o644)
}

// Save upserts by id. An existing session is replaced in place so its
// insertion position (and therefore its eviction order) is preserved; a new
// one is appended, evicting position 0 if the cap is exceeded.
func (s *FileSessionStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.read()
	replaced := false
	for i := range sessions {
		if sessions[i].ID == sess.ID {
			sessions[i] = sess
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, sess)
	}
	if len(sessions) > MaxSessions {
		sessions = sessions[len(sessions)-MaxSessions:]
	}
	return s.write(sessions)
}

func (s *FileSessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.read()
	out := sessions[:0]
	for _, sess := range sessions {
		if sess.ID != id {
			out = append(out, sess)
		}
	}
	if len(out) == len(sessions) {
		return nil
	}
	return s.write(out)
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write([]Session{})
}
