package discovery

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"owp.world/internal/protocol"
)

// Cache is a sqlite-backed copy of the last successful directory scan, so
// the admin API can answer directory reads without hitting the RPC node.
type Cache struct {
	db *sql.DB
}

func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS registry_worlds (
  world_id     TEXT PRIMARY KEY,
  name         TEXT NOT NULL,
  endpoint     TEXT NOT NULL,
  port         INTEGER NOT NULL,
  token_mint   TEXT,
  dbc_pool     TEXT,
  world_pubkey TEXT,
  last_seen    TEXT,
  fetched_at   TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Replace swaps the cached directory for a fresh scan result.
func (c *Cache) Replace(entries []protocol.WorldDirectoryEntry, fetchedAt time.Time) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM registry_worlds`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO registry_worlds
  (world_id, name, endpoint, port, token_mint, dbc_pool, world_pubkey, last_seen, fetched_at)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	at := fetchedAt.UTC().Format(time.RFC3339)
	for _, e := range entries {
		if _, err := stmt.Exec(
			e.WorldID.String(), e.Name, e.Endpoint, int(e.Port),
			e.TokenMint, e.DbcPool, e.WorldPubkey, e.LastSeen, at,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns the cached directory and when it was fetched. A zero time
// means the cache has never been filled.
func (c *Cache) List() ([]protocol.WorldDirectoryEntry, time.Time, error) {
	rows, err := c.db.Query(`SELECT world_id, name, endpoint, port, token_mint, dbc_pool, world_pubkey, last_seen, fetched_at
  FROM registry_worlds ORDER BY name, world_id`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var out []protocol.WorldDirectoryEntry
	var fetchedAt time.Time
	for rows.Next() {
		var e protocol.WorldDirectoryEntry
		var worldID string
		var port int
		var at string
		if err := rows.Scan(&worldID, &e.Name, &e.Endpoint, &port, &e.TokenMint, &e.DbcPool, &e.WorldPubkey, &e.LastSeen, &at); err != nil {
			return nil, time.Time{}, err
		}
		id, err := uuid.Parse(worldID)
		if err != nil {
			continue
		}
		e.WorldID = id
		e.Port = uint16(port)
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			fetchedAt = t
		}
		out = append(out, e)
	}
	return out, fetchedAt, rows.Err()
}
