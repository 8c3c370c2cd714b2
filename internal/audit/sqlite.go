package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

// SQLiteJournal stores events in an "events" table.
type SQLiteJournal struct {
	mu     sync.Mutex
	db     *sql.DB
	insert *sql.Stmt
}

func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path required")
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	stmt, err := db.Prepare(`INSERT INTO events (ts_ms, kind, session_id, partner_id, meta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db, insert: stmt}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec(`PRAGMA journal_mode = WAL;`)
	_, _ = db.Exec(`PRAGMA synchronous = NORMAL;`)
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000;`)
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  kind TEXT NOT NULL,
  session_id TEXT NOT NULL,
  partner_id TEXT NOT NULL,
  meta TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
`)
	return err
}

func (j *SQLiteJournal) Record(event Event) {
	if j == nil || j.db == nil {
		return
	}
	if event.TsMS == 0 {
		event.TsMS = time.Now().UnixMilli()
	}
	meta := "{}"
	if len(event.Meta) > 0 {
		b, err := json.Marshal(event.Meta)
		if err == nil {
			meta = string(b)
		}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.insert.Exec(event.TsMS, string(event.Kind), event.SessionID, event.PartnerID, meta); err != nil {
		slog.Warn("audit insert failed", "kind", event.Kind, "session_id", event.SessionID, "err", err)
	}
}

// Events returns the journal for one session, oldest first.
func (j *SQLiteJournal) Events(sessionID string) ([]Event, error) {
	rows, err := j.db.Query(`
SELECT ts_ms, kind, session_id, partner_id, meta
FROM events
WHERE session_id = ?
ORDER BY id
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev   Event
			kind string
			meta string
		)
		if err := rows.Scan(&ev.TsMS, &kind, &ev.SessionID, &ev.PartnerID, &meta); err != nil {
			return nil, err
		}
		ev.Kind = Kind(kind)
		if meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &ev.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return multierr.Append(j.insert.Close(), j.db.Close())
}
