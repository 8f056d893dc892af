package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	origin     TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	agent_name TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	reasoning  TEXT NOT NULL DEFAULT '',
	actions    TEXT NOT NULL DEFAULT '[]',
	ts         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
`

// SQLite archives messages into a local SQLite database file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates when needed) the database at path
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Write(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, origin, author, agent_name, content, reasoning, actions, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Origin, rec.Author, rec.AgentName, rec.Content, rec.Reasoning, rec.Actions,
		rec.Timestamp.UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to insert message", goerr.V("id", rec.ID))
	}
	return nil
}

// Recent returns up to limit of the latest records, oldest first
func (s *SQLite) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, origin, author, agent_name, content, reasoning, actions, ts
		FROM (SELECT rowid AS seq, * FROM messages ORDER BY ts DESC, rowid DESC LIMIT ?)
		ORDER BY ts ASC, seq ASC`, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query messages")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			rec Record
			ts  int64
		)
		if err := rows.Scan(&rec.ID, &rec.Origin, &rec.Author, &rec.AgentName, &rec.Content, &rec.Reasoning, &rec.Actions, &ts); err != nil {
			return nil, goerr.Wrap(err, "failed to scan message")
		}
		rec.Timestamp = time.UnixMilli(ts)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate messages")
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
