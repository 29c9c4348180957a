package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/guild-tender/platform"
)

// RecordDeletion writes one deletions row plus one mentions row per
// mentioned user and role, in a single transaction. Callers only invoke it
// for messages that actually mention someone; a message with no mentions is
// rejected outright so the invariant "a deletion row always has mention
// rows" holds. Message text is stored only when logText is set; otherwise
// the column stays NULL.
func (l *Log) RecordDeletion(ctx context.Context, msg platform.Message, logText bool) error {
	if len(msg.Mentions) == 0 && len(msg.RoleMentions) == 0 {
		return fmt.Errorf("record deletion: message %s has no mentions", msg.ID)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deletion tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	text := sql.NullString{}
	if logText {
		text = sql.NullString{String: msg.Content, Valid: true}
	}
	var deletionID int64
	err = tx.QueryRowContext(ctx,
		l.rebind(`INSERT INTO deletions(user_id, timestamp, message) VALUES(?,?,?) RETURNING id`),
		msg.Author.ID, msg.Timestamp.Unix(), text,
	).Scan(&deletionID)
	if err != nil {
		return fmt.Errorf("insert deletion: %w", err)
	}

	insert := l.rebind(`INSERT INTO mentions(deletion_id, mentioned_id, mentioned_type) VALUES(?,?,?)`)
	for _, id := range msg.Mentions {
		if _, err := tx.ExecContext(ctx, insert, deletionID, id, "user"); err != nil {
			return fmt.Errorf("insert user mention: %w", err)
		}
	}
	for _, id := range msg.RoleMentions {
		if _, err := tx.ExecContext(ctx, insert, deletionID, id, "role"); err != nil {
			return fmt.Errorf("insert role mention: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deletion tx: %w", err)
	}
	return nil
}
