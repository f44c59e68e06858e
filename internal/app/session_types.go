package app

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation. Content may be empty when the turn
// carries only media; at least one of Content/ImageURL/AudioURL must be set.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user|assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	AudioURL  string    `json:"audioUrl,omitempty"`
}

// HasPayload reports whether the message carries anything worth sending.
func (m Message) HasPayload() bool {
	return m.Content != "" || m.ImageURL != "" || m.AudioURL != ""
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultTitle is the placeholder until the first user message with text
// arrives and the title is derived from it.
const DefaultTitle = "New Chat"

// Clone returns a deep copy so stored sessions never alias the live one.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.Timestamp
}
