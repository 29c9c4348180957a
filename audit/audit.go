// Package audit is the append-only deletion audit sink. Every deleted
// message that mentioned a user or role becomes one deletions row plus one
// mentions row per mentioned identity, written in a single transaction.
// Nothing here is ever updated or read back by the bot; the store exists for
// offline inspection.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
	_ "modernc.org/sqlite"             // pure-Go sqlite driver registered as 'sqlite'
)

// Log is an open handle on the audit store.
type Log struct {
	db       *sql.DB
	postgres bool
}

// Open connects to the audit store. A postgres:// (or postgresql://) DSN
// selects the pgx driver; anything else is treated as a sqlite file path.
// An empty DSN falls back to AUDIT_DSN, then to a local default file.
func Open(dsn string) (*Log, error) {
	if dsn == "" {
		dsn = os.Getenv("AUDIT_DSN")
	}
	if dsn == "" {
		dsn = "guild-tender.db"
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return &Log{db: db, postgres: true}, nil
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	// modernc/sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY on concurrent event handlers.
	db.SetMaxOpenConns(1)
	return &Log{db: db}, nil
}

// DB exposes the underlying handle for health probes.
func (l *Log) DB() *sql.DB { return l.db }

// Close closes the store.
func (l *Log) Close() error { return l.db.Close() }

// Migrate creates the audit schema on first use. The check is keyed on the
// deletions table: when it already exists the store is reused unchanged, so
// repeated startups are no-ops.
func (l *Log) Migrate(ctx context.Context) error {
	exists, err := l.tableExists(ctx, "deletions")
	if err != nil {
		return fmt.Errorf("check audit schema: %w", err)
	}
	if exists {
		return nil
	}

	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if l.postgres {
		serial = "SERIAL PRIMARY KEY"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE deletions(
			id %s,
			user_id TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			message TEXT
		)`, serial),
		fmt.Sprintf(`CREATE TABLE mention_types(
			id %s,
			name TEXT UNIQUE NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE mentions(
			id %s,
			deletion_id INTEGER NOT NULL REFERENCES deletions(id),
			mentioned_id TEXT NOT NULL,
			mentioned_type TEXT NOT NULL REFERENCES mention_types(name)
		)`, serial),
		`INSERT INTO mention_types(name) VALUES ('user'),('role')`,
	}
	for i, s := range stmts {
		if _, err := l.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("audit migrate step %d failed: %w", i, err)
		}
	}
	slog.Info("initialised audit schema")
	return nil
}

func (l *Log) tableExists(ctx context.Context, name string) (bool, error) {
	var q string
	if l.postgres {
		q = l.rebind(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name=?`)
	} else {
		q = `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	}
	var n int
	if err := l.db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// rebind rewrites ? placeholders to $n for postgres. Queries are written in
// sqlite style and rebound on the way out.
func (l *Log) rebind(q string) string {
	if !l.postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
