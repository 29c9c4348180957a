// Package bot is the command router and event core: it parses prefixed
// commands out of inbound messages, gates them through the permission store,
// and runs the handlers (allow, count). It also serves autoreplies and feeds
// message deletions into the audit log. The chat platform itself sits behind
// platform.Session; the gateway adapter delivers events here.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/onnwee/guild-tender/audit"
	"github.com/onnwee/guild-tender/config"
	"github.com/onnwee/guild-tender/permission"
	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/telemetry"
)

// Bot wires the core components together. Handlers run one goroutine per
// event (the gateway dispatches each event asynchronously), so a long count
// scan never blocks deletion handling; shared state behind Cfg carries its
// own locking.
type Bot struct {
	Cfg     *config.Store
	Perms   *permission.Store
	Session platform.Session
	Audit   *audit.Log
}

// New returns a Bot over the given collaborators.
func New(cfg *config.Store, perms *permission.Store, session platform.Session, auditLog *audit.Log) *Bot {
	return &Bot{Cfg: cfg, Perms: perms, Session: session, Audit: auditLog}
}

// HandleMessage processes one inbound message: autoreply first, then
// command dispatch. Unknown command names and plain chatter are ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg platform.Message) {
	if text, ok := b.Cfg.Autoreply(msg.Author.DisplayName); ok {
		if err := b.Session.Send(ctx, msg.ChannelID, text); err != nil {
			slog.Error("autoreply send failed", slog.Any("err", err), slog.String("user", msg.Author.DisplayName))
		} else {
			telemetry.AutorepliesSent.Inc()
			slog.Info("sent autoreply", slog.String("user", msg.Author.DisplayName))
		}
	}

	prefix := b.Cfg.Prefix()
	if !strings.HasPrefix(msg.Content, prefix) {
		return
	}
	fields := strings.Fields(msg.Content[len(prefix):])
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]

	var handler func(context.Context, platform.Message, []string) error
	switch name {
	case "allow":
		handler = b.handleAllow
	case "count":
		handler = b.handleCount
	default:
		return
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	log := telemetry.LoggerWithCorr(ctx)
	telemetry.CommandsDispatched.Inc()
	log.Info("dispatching command", slog.String("command", name), slog.String("author", msg.Author.Tag()))
	if err := handler(ctx, msg, args); err != nil {
		telemetry.CommandsFailed.Inc()
		log.Error("command failed", slog.String("command", name), slog.Any("err", err))
	}
}

// HandleMessageDelete records deleted messages that mentioned at least one
// user or role. Deletions without mentions are not audited. This path is
// always on and independent of any permission entry.
func (b *Bot) HandleMessageDelete(ctx context.Context, msg platform.Message) {
	if len(msg.Mentions) == 0 && len(msg.RoleMentions) == 0 {
		return
	}
	if err := b.Audit.RecordDeletion(ctx, msg, b.Cfg.LogDeletedText()); err != nil {
		slog.Error("failed to record deletion", slog.Any("err", err), slog.String("message_id", msg.ID))
		return
	}
	telemetry.DeletionsRecorded.Inc()
	slog.Info("recorded deletion",
		slog.String("author", msg.Author.ID),
		slog.Int("user_mentions", len(msg.Mentions)),
		slog.Int("role_mentions", len(msg.RoleMentions)))
}

// reply sends a single message back to the invoking channel.
func (b *Bot) reply(ctx context.Context, msg platform.Message, text string) error {
	return b.Session.Send(ctx, msg.ChannelID, text)
}
