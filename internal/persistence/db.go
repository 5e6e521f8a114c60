// Package persistence stores saved games in SQLite. The save itself is an
// opaque JSON document under a key; the shop's ledger and a few metadata
// values are kept in their own tables for inspection.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/pawnbroker/internal/game"
)

// SaveKey is the key of the current save.
const SaveKey = "save:current"

// DB wraps a SQLite connection for save storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		saved_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day INTEGER NOT NULL,
		text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shop_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_day ON ledger(day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Put stores a value under key, replacing any previous value.
func (db *DB) Put(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO saves (key, value, saved_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, value,
	)
	return err
}

// Get returns the value under key. ok is false if there is none.
func (db *DB) Get(key string) (value string, ok bool, err error) {
	err = db.conn.Get(&value, "SELECT value FROM saves WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key string) error {
	_, err := db.conn.Exec("DELETE FROM saves WHERE key = ?", key)
	return err
}

// SaveGame writes the state as the current save, replaces the ledger with
// the state's log and records the day reached.
func (db *DB) SaveGame(st *game.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	if err := db.Put(SaveKey, string(data)); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	if err := db.SaveLedger(st.Log); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := db.SaveMeta("day", strconv.Itoa(st.Stats.Day)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("game saved", "day", st.Stats.Day, "items", len(st.Inventory), "chains", len(st.Chains))
	return nil
}

// LoadGame returns the current save. Any failure, including a document
// without stats or inventory, reads as "no save".
func (db *DB) LoadGame() (*game.State, bool) {
	raw, ok, err := db.Get(SaveKey)
	if err != nil {
		slog.Warn("load save failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &shape); err != nil {
		slog.Warn("save is not a JSON object", "error", err)
		return nil, false
	}
	for _, field := range []string{"stats", "inventory"} {
		if v, ok := shape[field]; !ok || string(v) == "null" {
			slog.Warn("save is missing a required field", "field", field)
			return nil, false
		}
	}

	var st game.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		slog.Warn("decode save failed", "error", err)
		return nil, false
	}
	return &st, true
}

// HasSaveGame reports whether a current save exists.
func (db *DB) HasSaveGame() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM saves WHERE key = ?", SaveKey); err != nil {
		return false
	}
	return n > 0
}

// ClearSave removes the current save and its ledger.
func (db *DB) ClearSave() error {
	if err := db.Delete(SaveKey); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	if _, err := db.conn.Exec("DELETE FROM ledger"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// SaveLedger replaces the ledger with entries.
func (db *DB) SaveLedger(entries []game.Entry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM ledger"); err != nil {
		return err
	}
	stmt, err := tx.Preparex("INSERT INTO ledger (day, text) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Day, e.Text); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return tx.Commit()
}

// RecentLedger returns the most recent N ledger entries, newest first.
func (db *DB) RecentLedger(limit int) ([]game.Entry, error) {
	var rows []struct {
		Day  int    `db:"day"`
		Text string `db:"text"`
	}
	err := db.conn.Select(&rows, "SELECT day, text FROM ledger ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	out := make([]game.Entry, len(rows))
	for i, r := range rows {
		out[i] = game.Entry{Day: r.Day, Text: r.Text}
	}
	return out, nil
}

// SaveMeta stores a key-value pair in shop metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO shop_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM shop_meta WHERE key = ?", key)
	return value, err
}
