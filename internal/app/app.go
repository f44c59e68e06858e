package app

import (
	"strings"
)

// Application wires the session core together from config: store, chat
// client, active-session manager and the voice recorder.
type Application struct {
	Config   Config
	Logger   *Logger
	Store    SessionStore
	Client   *ChatClient
	Sessions *SessionManager
	Recorder *Recorder
}

func NewApplication(cfg Config) (*Application, error) {
	root := strings.TrimSpace(cfg.StorageRoot)
	if root == "" {
		root = DefaultStorageRoot()
	}
	logger := NewFileLogger(root)

	var store SessionStore
	if cfg.Store == "sqlite" {
		st, err := NewSQLiteSessionStore(root)
		if err != nil {
			// Backward-compatible fallback when SQLite is unavailable.
			logger.WithComponent("store").Error("sqlite store unavailable, using json store", map[string]interface{}{
				"error": err.Error(),
			})
			store = NewFileSessionStore(root)
		} else {
			store = st
		}
	} else {
		store = NewFileSessionStore(root)
	}

	lang, _ := ParseLanguage(cfg.Language)
	client := NewChatClient(cfg.BaseURL, cfg.DevFallback)

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Client:   client,
		Sessions: NewSessionManager(store, client, lang, logger.WithComponent("sessions")),
		Recorder: NewRecorder(NewExecCaptureDevice(cfg.RecorderCommand)),
	}, nil
}
