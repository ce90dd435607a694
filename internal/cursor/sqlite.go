package cursor

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists cursors so a restart does not replay greetings for
// deals the bot already handled. Reads are served from memory; writes go
// through to disk.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.RWMutex
	cursors map[string]Cursor
}

// NewSQLiteStore opens (or creates) the cursor database at dbPath and loads
// every stored cursor into memory.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cursor directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cursor database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cursor database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cursors (
		chat_id      TEXT PRIMARY KEY,
		message_id   TEXT NOT NULL,
		message_time TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cursor schema: %w", err)
	}

	s := &SQLiteStore{db: db, cursors: make(map[string]Cursor)}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadAll() error {
	rows, err := s.db.Query(`SELECT chat_id, message_id, message_time FROM cursors`)
	if err != nil {
		return fmt.Errorf("load cursors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chatID, messageID, messageTime string
		if err := rows.Scan(&chatID, &messageID, &messageTime); err != nil {
			return fmt.Errorf("scan cursor row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, messageTime)
		if err != nil {
			continue // drop unparsable rows rather than refuse to start
		}
		s.cursors[chatID] = Cursor{MessageID: messageID, MessageTime: t}
	}
	return rows.Err()
}

func (s *SQLiteStore) Get(chatID string) (Cursor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.cursors[chatID]
	return cur, ok
}

func (s *SQLiteStore) Set(chatID string, cur Cursor) error {
	s.mu.Lock()
	s.cursors[chatID] = cur
	s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO cursors (chat_id, message_id, message_time) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET message_id = excluded.message_id, message_time = excluded.message_time`,
		chatID, cur.MessageID, cur.MessageTime.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persist cursor for chat %s: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
