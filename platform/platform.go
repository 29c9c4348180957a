// Package platform defines the seam between the bot core and the chat
// platform. The core packages (bot, emoji, permission, audit) depend only on
// the types and the Session interface declared here; how events and requests
// actually travel over the wire is the gateway adapter's business.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrForbidden is returned by Session methods (and history iterators) when
// the platform denies the bot access to a channel. Callers are expected to
// treat it as "skip and continue", not as a fatal condition.
var ErrForbidden = errors.New("platform: access forbidden")

// Channel is a text channel visible to the bot.
type Channel struct {
	ID   string
	Name string
}

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Member is a guild member. DisplayName is the per-guild nickname when set,
// otherwise the account username.
type Member struct {
	ID            string
	Username      string
	Discriminator string
	DisplayName   string
	RoleIDs       []string
}

// Tag returns the legacy name#discriminator form used by the owner-bypass
// configuration entry.
func (m Member) Tag() string {
	return m.Username + "#" + m.Discriminator
}

// Emoji is a custom emoji registered on the guild.
type Emoji struct {
	ID   string
	Name string
}

// String renders the emoji as its inline markup token so it displays as the
// actual image when sent back to the platform.
func (e Emoji) String() string {
	return "<:" + e.Name + ":" + e.ID + ">"
}

// Reaction is one emoji's aggregate reaction tally on a message. EmojiID is
// empty for unicode (non-custom) reactions.
type Reaction struct {
	EmojiID string
	Name    string
	Custom  bool
	Count   int
}

// Message is a chat message as the core sees it. Mentions and RoleMentions
// hold the mentioned identities' IDs.
type Message struct {
	ID           string
	ChannelID    string
	Author       Member
	Content      string
	Timestamp    time.Time
	Mentions     []string
	RoleMentions []string
	Reactions    []Reaction
}

// HistoryIter walks a channel's message history lazily, one page at a time
// behind the scenes. Next returns (nil, nil) once the history is drained.
// A channel the bot may not read yields ErrForbidden from the first call.
type HistoryIter interface {
	Next(ctx context.Context) (*Message, error)
}

// Session is the request surface of the chat-platform collaborator. Event
// delivery (inbound messages, deletions) is wired separately by the adapter.
type Session interface {
	// Channels lists the guild's text channels visible to the bot.
	Channels(ctx context.Context) ([]Channel, error)

	// History returns an iterator over a channel's messages with timestamps
	// at or after the given cutoff. There is no upper bound and no page
	// limit; the iterator runs until the history is drained.
	History(ctx context.Context, channelID string, after time.Time) HistoryIter

	// GuildEmojis returns every custom emoji registered on the guild.
	GuildEmojis(ctx context.Context) ([]Emoji, error)

	// RoleByName resolves a role by exact name. Returns (nil, nil) when no
	// such role exists.
	RoleByName(ctx context.Context, name string) (*Role, error)

	// MemberByName resolves a member by exact username or display name.
	// Returns (nil, nil) when no such member exists.
	MemberByName(ctx context.Context, name string) (*Member, error)

	// Send posts a message to a channel. The caller is responsible for
	// keeping text under the platform's message length limit.
	Send(ctx context.Context, channelID, text string) error
}
