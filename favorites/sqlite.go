package favorites

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS favorite_stops (
    id       TEXT PRIMARY KEY,
    code     TEXT NOT NULL,
    name     TEXT NOT NULL DEFAULT '',
    added_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS favorite_lines (
    label TEXT PRIMARY KEY
);`

// SQLite persists favorites in a SQLite database file.
type SQLite struct {
	conn *sql.DB
}

var _ Persister = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path with WAL mode.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Close() error { return s.conn.Close() }

func (s *SQLite) LoadStops(ctx context.Context) ([]Stop, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, code, name, added_at FROM favorite_stops ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query favorite stops: %w", err)
	}
	defer rows.Close()

	var out []Stop
	for rows.Next() {
		var (
			st    Stop
			added int64
		)
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &added); err != nil {
			return nil, fmt.Errorf("scan favorite stop: %w", err)
		}
		st.AddedAt = time.UnixMilli(added).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveStop(ctx context.Context, st Stop) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO favorite_stops (id, code, name, added_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name, added_at = excluded.added_at`,
		st.ID, st.Code, st.Name, st.AddedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert favorite stop %s: %w", st.ID, err)
	}
	return nil
}

func (s *SQLite) DeleteStop(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM favorite_stops WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete favorite stop %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) LoadLines(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT label FROM favorite_lines ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("query favorite lines: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan favorite line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLite) SetLine(ctx context.Context, label string, on bool) error {
	q := `DELETE FROM favorite_lines WHERE label = ?`
	if on {
		q = `INSERT INTO favorite_lines (label) VALUES (?) ON CONFLICT(label) DO NOTHING`
	}
	if _, err := s.conn.ExecContext(ctx, q, label); err != nil {
		return fmt.Errorf("set favorite line %s: %w", label, err)
	}
	return nil
}
