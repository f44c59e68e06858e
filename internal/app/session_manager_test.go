package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func testManager(t *testing.T, handler http.HandlerFunc) (*SessionManager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	store := NewFileSessionStore(t.TempDir())
	client := NewChatClient(server.URL, false)
	return NewSessionManager(store, client, LangEnglish, NewLogger(io.Discard)), server
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"response":   "echo: " + req.Text,
		"session_id": req.SessionID,
	})
}

func TestSendAppendsBothTurnsAndPersists(t *testing.T) {
	m, _ := testManager(t, echoHandler)

	reply, ok := m.Send(context.Background(), "hello", "", "")
	if !ok {
		t.Fatalf("expected send to run")
	}
	if reply.Role != RoleAssistant || reply.Content != "echo: hello" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	cur := m.Current()
	if len(cur.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(cur.Messages))
	}
	if cur.Messages[0].Role != RoleUser || cur.Messages[0].Content != "hello" {
		t.Fatalf("unexpected user turn %+v", cur.Messages[0])
	}

	stored := m.store.Load()
	if len(stored) != 1 || stored[0].ID != cur.ID {
		t.Fatalf("completed exchange must be persisted, got %+v", stored)
	}
}

func TestEmptySessionsAreNeverPersisted(t *testing.T) {
	m, _ := testManager(t, echoHandler)
	m.NewSession()
	m.NewSession()
	if stored := m.store.Load(); len(stored) != 0 {
		t.Fatalf("zero-message sessions must not be persisted, got %d", len(stored))
	}
}

func TestSendWithoutPayloadIsNoOp(t *testing.T) {
	calls := 0
	m, _ := testManager(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		echoHandler(w, r)
	})

	if _, ok := m.Send(context.Background(), "", "", ""); ok {
		t.Fatalf("payload-less send must be a no-op")
	}
	if calls != 0 {
		t.Fatalf("no network call expected, got %d", calls)
	}
	if cur := m.Current(); len(cur.Messages) != 0 {
		t.Fatalf("no message must be appended, got %d", len(cur.Messages))
	}
}

func TestSendWithOnlyMediaRuns(t *testing.T) {
	m, _ := testManager(t, echoHandler)
	if _, ok := m.Send(context.Background(), "", "aGVsbG8=", ""); !ok {
		t.Fatalf("media-only send must run")
	}
	cur := m.Current()
	if cur.Title != DefaultTitle {
		t.Fatalf("textless first message must not derive a title, got %q", cur.Title)
	}
}

func TestTitleDerivation(t *testing.T) {
	short := strings.Repeat("a", 30)
	long := strings.Repeat("b", 31)

	if got := DeriveTitle(short); got != short {
		t.Fatalf("title of 30-char text must be unchanged, got %q", got)
	}
	if got := DeriveTitle(long); got != strings.Repeat("b", 30)+"..." {
		t.Fatalf("31-char text must truncate to 30 plus ellipsis, got %q", got)
	}
	if got := DeriveTitle("வணக்கம்"); got != "வணக்கம்" {
		t.Fatalf("short multibyte text must be unchanged, got %q", got)
	}

	m, _ := testManager(t, echoHandler)
	if _, ok := m.Send(context.Background(), long, "", ""); !ok {
		t.Fatalf("send failed")
	}
	first := m.Current().Title
	if _, ok := m.Send(context.Background(), "a different second message", "", ""); !ok {
		t.Fatalf("second send failed")
	}
	if got := m.Current().Title; got != first {
		t.Fatalf("title must only come from the first message, got %q", got)
	}
}

func TestOverlappingSendIsRejected(t *testing.T) {
	release := make(chan struct{})
	m, _ := testManager(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		echoHandler(w, r)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Send(context.Background(), "first", "", "")
	}()

	// Wait for the first send to be in flight.
	deadline := time.Now().Add(2 * time.Second)
	for !m.Sending() {
		if time.Now().After(deadline) {
			t.Fatalf("first send never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := m.Send(context.Background(), "second", "", ""); ok {
		t.Fatalf("overlapping send must be rejected")
	}
	close(release)
	wg.Wait()

	cur := m.Current()
	if len(cur.Messages) != 2 {
		t.Fatalf("expected exactly one completed exchange, got %d messages", len(cur.Messages))
	}
	if cur.Messages[0].Content != "first" {
		t.Fatalf("unexpected surviving exchange %+v", cur.Messages[0])
	}
}

// waitForSending spins until a send is in flight.
func waitForSending(t *testing.T, m *SessionManager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !m.Sending() {
		if time.Now().After(deadline) {
			t.Fatalf("send never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func messageContents(sess Session) []string {
	out := make([]string, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		out = append(out, msg.Content)
	}
	return out
}

func TestSelectDuringSendKeepsPendingExchange(t *testing.T) {
	gate := make(chan struct{}, 3)
	gate <- struct{}{} // first exchange passes straight through
	m, _ := testManager(t, func(w http.ResponseWriter, r *http.Request) {
		<-gate
		echoHandler(w, r)
	})

	if _, ok := m.Send(context.Background(), "one", "", ""); !ok {
		t.Fatalf("first send failed")
	}
	id := m.Current().ID

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Send(context.Background(), "two", "", "")
	}()
	waitForSending(t, m)

	// Re-selecting the session whose exchange is in flight must hand back
	// the live copy, already carrying the pending user turn.
	sess, err := m.Select(id)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := messageContents(sess); len(got) != 3 || got[2] != "two" {
		t.Fatalf("reselected session must carry the pending turn, got %v", got)
	}

	gate <- struct{}{}
	wg.Wait()
	gate <- struct{}{}
	if _, ok := m.Send(context.Background(), "three", "", ""); !ok {
		t.Fatalf("third send failed")
	}

	want := []string{"one", "echo: one", "two", "echo: two", "three", "echo: three"}
	stored := m.store.Load()
	if len(stored) != 1 {
		t.Fatalf("expected one stored session, got %d", len(stored))
	}
	got := messageContents(stored[0])
	if len(got) != len(want) {
		t.Fatalf("exchange lost across mid-flight select: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSwitchAwayAndBackDuringSendConverges(t *testing.T) {
	gate := make(chan struct{}, 3)
	gate <- struct{}{}
	m, _ := testManager(t, func(w http.ResponseWriter, r *http.Request) {
		<-gate
		echoHandler(w, r)
	})

	if _, ok := m.Send(context.Background(), "one", "", ""); !ok {
		t.Fatalf("first send failed")
	}
	id := m.Current().ID

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Send(context.Background(), "two", "", "")
	}()
	waitForSending(t, m)

	// Switch to a fresh session and back while the exchange is pending. The
	// index clone predates the pending turn; completion must converge on it.
	m.NewSession()
	if _, err := m.Select(id); err != nil {
		t.Fatalf("select: %v", err)
	}

	gate <- struct{}{}
	wg.Wait()

	if got := messageContents(m.Current()); len(got) != 4 || got[3] != "echo: two" {
		t.Fatalf("active session must see the completed exchange, got %v", got)
	}

	gate <- struct{}{}
	if _, ok := m.Send(context.Background(), "three", "", ""); !ok {
		t.Fatalf("third send failed")
	}
	stored := m.store.Load()
	if len(stored) != 1 || len(stored[0].Messages) != 6 {
		t.Fatalf("all three exchanges must persist, got %+v", stored)
	}
}

func TestFailedSendAppendsUnavailableNotice(t *testing.T) {
	m, server := testManager(t, echoHandler)
	server.Close() // force a network failure

	reply, ok := m.Send(context.Background(), "hello", "", "")
	if !ok {
		t.Fatalf("failure must be absorbed, not rejected")
	}
	if reply.Content != UnavailableNotice(LangEnglish) {
		t.Fatalf("expected unavailable notice, got %q", reply.Content)
	}

	// The absorbed failure still counts as a completed exchange.
	if stored := m.store.Load(); len(stored) != 1 {
		t.Fatalf("session must be persisted after absorbed failure, got %d", len(stored))
	}
}

func TestSelectUnknownSessionFails(t *testing.T) {
	m, _ := testManager(t, echoHandler)
	if _, err := m.Select("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSelectRestoresStoredSession(t *testing.T) {
	m, _ := testManager(t, echoHandler)
	if _, ok := m.Send(context.Background(), "hello", "", ""); !ok {
		t.Fatalf("send failed")
	}
	id := m.Current().ID

	m.NewSession()
	sess, err := m.Select(id)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sess.ID != id || len(sess.Messages) != 2 {
		t.Fatalf("selected session not restored: %+v", sess)
	}
	if m.Current().ID != id {
		t.Fatalf("selected session must become active")
	}
}

func TestDeleteActiveSessionStartsFresh(t *testing.T) {
	m, _ := testManager(t, echoHandler)
	if _, ok := m.Send(context.Background(), "hello", "", ""); !ok {
		t.Fatalf("send failed")
	}
	id := m.Current().ID

	if err := m.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Current().ID == id {
		t.Fatalf("deleting the active session must start a fresh one")
	}
	if len(m.Current().Messages) != 0 {
		t.Fatalf("fresh session must be empty")
	}
	if stored := m.store.Load(); len(stored) != 0 {
		t.Fatalf("deleted session must leave the store, got %d", len(stored))
	}
	for _, sess := range m.Sessions() {
		if sess.ID == id {
			t.Fatalf("deleted session must leave the index")
		}
	}
}

func TestIndexOrdersByRecency(t *testing.T) {
	m, _ := testManager(t, echoHandler)

	if _, ok := m.Send(context.Background(), "first session", "", ""); !ok {
		t.Fatalf("send failed")
	}
	firstID := m.Current().ID

	m.NewSession()
	if _, ok := m.Send(context.Background(), "second session", "", ""); !ok {
		t.Fatalf("send failed")
	}
	secondID := m.Current().ID

	index := m.Sessions()
	if len(index) != 2 || index[0].ID != secondID || index[1].ID != firstID {
		t.Fatalf("display index must be most-recent-first: %+v", index)
	}

	// Touching the older session moves it to the front of the display
	// index, while the store keeps insertion order.
	if _, err := m.Select(firstID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, ok := m.Send(context.Background(), "again", "", ""); !ok {
		t.Fatalf("send failed")
	}
	if index := m.Sessions(); index[0].ID != firstID {
		t.Fatalf("touched session must move to display front")
	}
	stored := m.store.Load()
	if stored[0].ID != firstID || stored[1].ID != secondID {
		t.Fatalf("store must keep insertion order: %+v", stored)
	}
}
