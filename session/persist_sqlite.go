package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	name  TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLitePersister stores the record as one row of a key-value table, the
// layout mobile key-value stores use on top of SQLite.
type SQLitePersister struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens (or creates) a SQLite database file with the pure-Go
// driver.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLitePersister ensures the kv table exists and returns a persister for
// the row keyed by name.
func NewSQLitePersister(ctx context.Context, db *sql.DB, name string) (*SQLitePersister, error) {
	if db == nil || name == "" {
		return nil, errors.New("sqlite persister requires db and name")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLitePersister{db: db, name: name}, nil
}

func (p *SQLitePersister) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE name = ?`, p.name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	return data, nil
}

func (p *SQLitePersister) Save(ctx context.Context, data []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO kv(name, value) VALUES(?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		p.name, data,
	)
	return err
}
