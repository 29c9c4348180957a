// Package gateway is the chat-platform collaborator: a thin adapter that
// implements platform.Session over the guild platform's REST API and
// delivers gateway events (message create/delete) over a websocket. It does
// protocol plumbing only; all decisions live in the bot core. There is no
// rate-limit machinery and no resume logic: a dropped connection ends Run.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/guild-tender/platform"
)

const (
	defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	defaultBaseURL    = "https://discord.com/api/v10"

	// guilds, guild messages, guild message reactions, message content
	identifyIntents = 1<<0 | 1<<9 | 1<<10 | 1<<15

	writeWait = 10 * time.Second

	// Deletion events only carry IDs, so recent messages are cached to
	// recover author, content, and mentions when one is deleted.
	maxCachedMessages = 4096
)

// Session implements platform.Session and pumps gateway events into the
// OnMessage / OnMessageDelete callbacks. Each event is dispatched on its own
// goroutine so a slow handler (a long history scan) never stalls the read
// loop or other events.
type Session struct {
	Token      string
	GuildID    string
	GatewayURL string       // defaults to the public gateway endpoint
	BaseURL    string       // REST base; overridable for tests
	HTTPClient *http.Client // defaults to a client with a sane timeout

	OnMessage       func(context.Context, platform.Message)
	OnMessageDelete func(context.Context, platform.Message)

	writeMu sync.Mutex
	conn    *websocket.Conn
	selfID  string

	cacheMu    sync.Mutex
	cache      map[string]platform.Message
	cacheOrder []string
}

type gatewayPayload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  int64           `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Run connects to the gateway, identifies, and pumps events until the
// context is cancelled or the connection drops.
func (s *Session) Run(ctx context.Context) error {
	url := s.GatewayURL
	if url == "" {
		url = defaultGatewayURL
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	s.conn = conn
	defer conn.Close() //nolint:errcheck // best-effort close on exit
	s.cache = make(map[string]platform.Message)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var hello struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	p, err := s.readPayload()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if p.Op != 10 {
		return fmt.Errorf("expected hello opcode 10, got %d", p.Op)
	}
	if err := json.Unmarshal(p.D, &hello); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := s.writePayload(2, map[string]any{
		"token":   s.Token,
		"intents": identifyIntents,
		"properties": map[string]string{
			"os": "linux", "browser": "guild-tender", "device": "guild-tender",
		},
	}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	var seq atomic.Int64
	go s.heartbeat(ctx, time.Duration(hello.HeartbeatInterval)*time.Millisecond, &seq)

	for {
		p, err := s.readPayload()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gateway read: %w", err)
		}
		if p.S != 0 {
			seq.Store(p.S)
		}
		switch p.Op {
		case 0:
			s.dispatch(ctx, p)
		case 1:
			if err := s.writePayload(1, seq.Load()); err != nil {
				return fmt.Errorf("heartbeat ack request: %w", err)
			}
		case 7, 9:
			// reconnect / invalid session; thin adapter gives up and lets
			// the process supervisor restart
			return fmt.Errorf("gateway requested reconnect (op %d)", p.Op)
		}
	}
}

func (s *Session) heartbeat(ctx context.Context, interval time.Duration, seq *atomic.Int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writePayload(1, seq.Load()); err != nil {
				slog.Debug("heartbeat write failed", slog.Any("err", err))
				return
			}
		}
	}
}

func (s *Session) dispatch(ctx context.Context, p gatewayPayload) {
	switch p.T {
	case "READY":
		var ready struct {
			User wireUser `json:"user"`
		}
		if err := json.Unmarshal(p.D, &ready); err != nil {
			slog.Warn("decode ready event", slog.Any("err", err))
			return
		}
		s.selfID = ready.User.ID
		slog.Info("logged in", slog.String("user", ready.User.Username))

	case "MESSAGE_CREATE":
		var w wireMessage
		if err := json.Unmarshal(p.D, &w); err != nil {
			slog.Warn("decode message event", slog.Any("err", err))
			return
		}
		msg := w.toMessage()
		s.remember(msg)
		if msg.Author.ID == s.selfID || s.OnMessage == nil {
			return
		}
		go s.OnMessage(ctx, msg)

	case "MESSAGE_DELETE":
		var del struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p.D, &del); err != nil {
			slog.Warn("decode delete event", slog.Any("err", err))
			return
		}
		msg, ok := s.recall(del.ID)
		if !ok {
			slog.Debug("deleted message not in cache", slog.String("id", del.ID))
			return
		}
		if s.OnMessageDelete != nil {
			go s.OnMessageDelete(ctx, msg)
		}
	}
}

func (s *Session) readPayload() (gatewayPayload, error) {
	var p gatewayPayload
	err := s.conn.ReadJSON(&p)
	return p, err
}

func (s *Session) writePayload(op int, d any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // deadline on live conn
	return s.conn.WriteJSON(map[string]any{"op": op, "d": d})
}

func (s *Session) remember(msg platform.Message) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if _, ok := s.cache[msg.ID]; !ok {
		s.cacheOrder = append(s.cacheOrder, msg.ID)
	}
	s.cache[msg.ID] = msg
	for len(s.cacheOrder) > maxCachedMessages {
		delete(s.cache, s.cacheOrder[0])
		s.cacheOrder = s.cacheOrder[1:]
	}
}

func (s *Session) recall(id string) (platform.Message, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	msg, ok := s.cache[id]
	return msg, ok
}
