package gateway

import (
	"time"

	"github.com/onnwee/guild-tender/platform"
)

// Wire types mirror the platform's JSON shapes; conversion into platform
// types happens at the edge so nothing above this package sees the wire.

type wireUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
}

type wireMember struct {
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

type wireEmoji struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireReaction struct {
	Count int       `json:"count"`
	Emoji wireEmoji `json:"emoji"`
}

type wireMessage struct {
	ID           string         `json:"id"`
	ChannelID    string         `json:"channel_id"`
	Author       wireUser       `json:"author"`
	Member       *wireMember    `json:"member"`
	Content      string         `json:"content"`
	Timestamp    time.Time      `json:"timestamp"`
	Mentions     []wireUser     `json:"mentions"`
	MentionRoles []string       `json:"mention_roles"`
	Reactions    []wireReaction `json:"reactions"`
}

type wireChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

type wireRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u wireUser) displayName(nick string) string {
	if nick != "" {
		return nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (w wireMessage) toMessage() platform.Message {
	author := platform.Member{
		ID:            w.Author.ID,
		Username:      w.Author.Username,
		Discriminator: w.Author.Discriminator,
		DisplayName:   w.Author.displayName(""),
	}
	if w.Member != nil {
		author.DisplayName = w.Author.displayName(w.Member.Nick)
		author.RoleIDs = w.Member.Roles
	}

	msg := platform.Message{
		ID:           w.ID,
		ChannelID:    w.ChannelID,
		Author:       author,
		Content:      w.Content,
		Timestamp:    w.Timestamp.UTC(),
		RoleMentions: w.MentionRoles,
	}
	for _, u := range w.Mentions {
		msg.Mentions = append(msg.Mentions, u.ID)
	}
	for _, r := range w.Reactions {
		msg.Reactions = append(msg.Reactions, platform.Reaction{
			EmojiID: r.Emoji.ID,
			Name:    r.Emoji.Name,
			Custom:  r.Emoji.ID != "",
			Count:   r.Count,
		})
	}
	return msg
}
