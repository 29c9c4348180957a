package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/guild-tender/platform"
)

// MockSession is a scripted platform.Session for core tests. Populate the
// exported fields up front; Sent records everything the code under test
// sends, in order.
type MockSession struct {
	ChannelList []platform.Channel
	EmojiList   []platform.Emoji
	Roles       []platform.Role
	Members     []platform.Member
	// Histories maps channel ID to its full message list (chronological).
	Histories map[string][]platform.Message
	// Forbidden marks channel IDs whose history yields ErrForbidden.
	Forbidden map[string]bool

	mu   sync.Mutex
	Sent []SentMessage
}

// SentMessage is one outbound message captured by the mock.
type SentMessage struct {
	ChannelID string
	Text      string
}

func (m *MockSession) Channels(ctx context.Context) ([]platform.Channel, error) {
	return m.ChannelList, nil
}

func (m *MockSession) GuildEmojis(ctx context.Context) ([]platform.Emoji, error) {
	return m.EmojiList, nil
}

func (m *MockSession) RoleByName(ctx context.Context, name string) (*platform.Role, error) {
	for _, r := range m.Roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, nil
}

func (m *MockSession) MemberByName(ctx context.Context, name string) (*platform.Member, error) {
	for _, mb := range m.Members {
		if mb.Username == name || mb.DisplayName == name {
			member := mb
			return &member, nil
		}
	}
	return nil, nil
}

func (m *MockSession) History(ctx context.Context, channelID string, after time.Time) platform.HistoryIter {
	if m.Forbidden[channelID] {
		return &mockIter{err: platform.ErrForbidden}
	}
	var msgs []platform.Message
	for _, msg := range m.Histories[channelID] {
		if !msg.Timestamp.Before(after) {
			msgs = append(msgs, msg)
		}
	}
	return &mockIter{msgs: msgs}
}

func (m *MockSession) Send(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{ChannelID: channelID, Text: text})
	return nil
}

// SentTexts returns the text of every captured outbound message.
func (m *MockSession) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Text
	}
	return out
}

type mockIter struct {
	msgs []platform.Message
	err  error
}

func (it *mockIter) Next(ctx context.Context) (*platform.Message, error) {
	if it.err != nil {
		return nil, it.err
	}
	if len(it.msgs) == 0 {
		return nil, nil
	}
	msg := it.msgs[0]
	it.msgs = it.msgs[1:]
	return &msg, nil
}

// MockAPIServer is a test server that mocks the platform REST API with a
// handler per path.
type MockAPIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockAPIServer creates a new mock REST API server. Paths without a
// registered handler return 404.
func NewMockAPIServer(t *testing.T) *MockAPIServer {
	t.Helper()
	m := &MockAPIServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// RespondJSON registers a handler that serves a fixed JSON body for a path.
func (m *MockAPIServer) RespondJSON(path string, body any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}
}

// RespondStatus registers a handler that answers with a bare status code.
func (m *MockAPIServer) RespondStatus(path string, code int) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}
