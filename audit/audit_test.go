package audit_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/guild-tender/audit"
	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/testutil"
)

func deletedMessage() platform.Message {
	return platform.Message{
		ID:        "m1",
		ChannelID: "c1",
		Author:    platform.Member{ID: "author-1", Username: "alice", Discriminator: "0001"},
		Content:   "hey @someone and @role",
		Timestamp: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		Mentions:  []string{"u-55"},
		RoleMentions: []string{
			"r-77",
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	log, err := audit.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	ctx := context.Background()
	if err := log.Migrate(ctx); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := log.RecordDeletion(ctx, deletedMessage(), false); err != nil {
		t.Fatal(err)
	}
	// second migrate must reuse the existing schema and keep the data
	if err := log.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := log.DB().QueryRow(`SELECT COUNT(*) FROM deletions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("existing rows must survive re-migration, got %d", n)
	}
}

func TestRecordDeletionWritesDeletionAndMentions(t *testing.T) {
	log := testutil.SetupTestDB(t)
	ctx := context.Background()
	msg := deletedMessage()

	if err := log.RecordDeletion(ctx, msg, false); err != nil {
		t.Fatalf("record deletion: %v", err)
	}

	var userID string
	var ts int64
	var text sql.NullString
	err := log.DB().QueryRow(`SELECT user_id, timestamp, message FROM deletions`).Scan(&userID, &ts, &text)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "author-1" {
		t.Errorf("author id = %q, want author-1", userID)
	}
	if ts != msg.Timestamp.Unix() {
		t.Errorf("timestamp = %d, want %d", ts, msg.Timestamp.Unix())
	}
	if text.Valid {
		t.Errorf("message text must be NULL when logText is off, got %q", text.String)
	}

	rows, err := log.DB().Query(`SELECT mentioned_id, mentioned_type FROM mentions ORDER BY mentioned_type`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	type mention struct{ id, kind string }
	var got []mention
	for rows.Next() {
		var m mention
		if err := rows.Scan(&m.id, &m.kind); err != nil {
			t.Fatal(err)
		}
		got = append(got, m)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	want := []mention{{"r-77", "role"}, {"u-55", "user"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d mention rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mention %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRecordDeletionStoresTextWhenEnabled(t *testing.T) {
	log := testutil.SetupTestDB(t)
	msg := deletedMessage()

	if err := log.RecordDeletion(context.Background(), msg, true); err != nil {
		t.Fatal(err)
	}
	var text sql.NullString
	if err := log.DB().QueryRow(`SELECT message FROM deletions`).Scan(&text); err != nil {
		t.Fatal(err)
	}
	if !text.Valid || text.String != msg.Content {
		t.Fatalf("message text = %+v, want %q", text, msg.Content)
	}
}

func TestRecordDeletionRejectsMessageWithoutMentions(t *testing.T) {
	log := testutil.SetupTestDB(t)
	msg := deletedMessage()
	msg.Mentions = nil
	msg.RoleMentions = nil

	if err := log.RecordDeletion(context.Background(), msg, false); err == nil {
		t.Fatal("a mention-free deletion must not be recorded")
	}
	var n int
	if err := log.DB().QueryRow(`SELECT COUNT(*) FROM deletions`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("no rows expected, got %d", n)
	}
}

func TestMentionTypesSeeded(t *testing.T) {
	log := testutil.SetupTestDB(t)
	rows, err := log.DB().Query(`SELECT name FROM mention_types ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "role" || names[1] != "user" {
		t.Fatalf("mention_types = %v, want [role user]", names)
	}
}
