package app

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSessionStore persists the session collection in a local SQLite file.
// Insertion order is tracked in an explicit position column so eviction
// behaves exactly like the JSON record store.
type SQLiteSessionStore struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error

	// Used only for legacy import.
	legacy *FileSessionStore
}

func NewSQLiteSessionStore(root string) (*SQLiteSessionStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteSessionStore{
		Root:   root,
		dbPath: filepath.Join(root, "earthworm.db"),
		legacy: NewFileSessionStore(root),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	// One-time best-effort import of the JSON record store.
	_ = st.importLegacyIfNeeded()
	return st, nil
}

func (s *SQLiteSessionStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				pos INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				title TEXT,
				messages TEXT NOT NULL,
				created_at_ns INTEGER NOT NULL,
				updated_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at_ns);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}

		s.db = db
	})
	return s.err
}

func (s *SQLiteSessionStore) dbConn() (*sql.DB, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("sqlite store unavailable")
	}
	return db, nil
}

func (s *SQLiteSessionStore) importLegacyIfNeeded() error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil || n > 0 {
		return err
	}
	for _, sess := range s.legacy.Load() {
		if err := s.Save(sess); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the collection in insertion order. Any read failure is
// absorbed as an empty collection.
func (s *SQLiteSessionStore) Load() []Session {
	db, err := s.dbConn()
	if err != nil {
		return []Session{}
	}
	rows, err := db.Query(`SELECT id, title, messages, created_at_ns, updated_at_ns FROM sessions ORDER BY pos ASC`)
	if err != nil {
		return []Session{}
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess      Session
			title     sql.NullString
			rawMsgs   string
			createdNS int64
			updatedNS int64
		)
		if err := rows.Scan(&sess.ID, &title, &rawMsgs, &createdNS, &updatedNS); err != nil {
			continue
		}
		sess.Title = title.String
		if err := json.Unmarshal([]byte(rawMsgs), &sess.Messages); err != nil {
			sess.Messages = []Message{}
		}
		sess.CreatedAt = time.Unix(0, createdNS)
		sess.UpdatedAt = time.Unix(0, updatedNS)
		sessions = append(sessions, sess)
	}
	return sessions
}

// Save upserts by id. An UPDATE leaves pos untouched so the row keeps its
// eviction slot; an INSERT takes the next pos and trims position 0 overflow.
func (s *SQLiteSessionStore) Save(sess Session) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	rawMsgs, err := json.Marshal(sess.Messages)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := db.Exec(
		`UPDATE sessions SET title = ?, messages = ?, created_at_ns = ?, updated_at_ns = ? WHERE id = ?`,
		nullIfEmpty(sess.Title), string(rawMsgs), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(), sess.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = db.Exec(
		`INSERT INTO sessions(id, title, messages, created_at_ns, updated_at_ns) VALUES(?, ?, ?, ?, ?)`,
		sess.ID, nullIfEmpty(sess.Title), string(rawMsgs), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`DELETE FROM sessions WHERE pos NOT IN (
			SELECT pos FROM sessions ORDER BY pos DESC LIMIT ?
		)`,
		MaxSessions,
	)
	return err
}

func (s *SQLiteSessionStore) Delete(id string) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteSessionStore) Clear() error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = db.Exec(`DELETE FROM sessions`)
	return err
}

func (s *SQLiteSessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
