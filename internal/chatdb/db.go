package chatdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a read-only SQLite connection to the externally-owned Messages
// store (chat.db). This process never writes to it; the store is mutated by
// the messaging application and treated as append-only.
type DB struct {
	*sql.DB
}

// Open creates a read-only SQLite connection to the store.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &DB{db}, nil
}
