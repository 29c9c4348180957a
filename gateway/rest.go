package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/guild-tender/platform"
)

// snowflakeEpoch is the platform's ID epoch in unix milliseconds. History
// pagination is by message ID, so time cutoffs are converted to the smallest
// ID a message at that instant could have.
const snowflakeEpoch = 1420070400000

func snowflakeFromTime(t time.Time) string {
	ms := t.UnixMilli() - snowflakeEpoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatUint(uint64(ms)<<22, 10)
}

// api performs one REST call. A 403 maps to platform.ErrForbidden so callers
// can distinguish "no access" from real failures.
func (s *Session) api(ctx context.Context, method, path string, body, out any) error {
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode == http.StatusForbidden {
		return platform.ErrForbidden
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Channels lists the guild's text channels.
func (s *Session) Channels(ctx context.Context) ([]platform.Channel, error) {
	var wire []wireChannel
	if err := s.api(ctx, http.MethodGet, "/guilds/"+s.GuildID+"/channels", nil, &wire); err != nil {
		return nil, err
	}
	var out []platform.Channel
	for _, c := range wire {
		if c.Type != 0 { // text channels only
			continue
		}
		out = append(out, platform.Channel{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// GuildEmojis lists the guild's registered custom emoji.
func (s *Session) GuildEmojis(ctx context.Context) ([]platform.Emoji, error) {
	var wire []wireEmoji
	if err := s.api(ctx, http.MethodGet, "/guilds/"+s.GuildID+"/emojis", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]platform.Emoji, 0, len(wire))
	for _, e := range wire {
		out = append(out, platform.Emoji{ID: e.ID, Name: e.Name})
	}
	return out, nil
}

// RoleByName resolves a role by exact name; (nil, nil) when absent.
func (s *Session) RoleByName(ctx context.Context, name string) (*platform.Role, error) {
	var wire []wireRole
	if err := s.api(ctx, http.MethodGet, "/guilds/"+s.GuildID+"/roles", nil, &wire); err != nil {
		return nil, err
	}
	for _, r := range wire {
		if r.Name == name {
			return &platform.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, nil
}

// MemberByName resolves a member whose username or display name matches
// exactly; (nil, nil) when absent.
func (s *Session) MemberByName(ctx context.Context, name string) (*platform.Member, error) {
	var wire []struct {
		User wireUser `json:"user"`
		Nick string   `json:"nick"`
	}
	path := "/guilds/" + s.GuildID + "/members/search?limit=100&query=" + url.QueryEscape(name)
	if err := s.api(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	for _, m := range wire {
		if m.User.Username == name || m.User.displayName(m.Nick) == name {
			return &platform.Member{
				ID:            m.User.ID,
				Username:      m.User.Username,
				Discriminator: m.User.Discriminator,
				DisplayName:   m.User.displayName(m.Nick),
			}, nil
		}
	}
	return nil, nil
}

// Send posts a message to a channel.
func (s *Session) Send(ctx context.Context, channelID, text string) error {
	body := map[string]string{"content": text}
	return s.api(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil)
}
