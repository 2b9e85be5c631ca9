package keystore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type (
	// SQLite stores API keys and their secrets in a single-file database.
	// Lookups hit the keys table directly, there is no in-process cache;
	// wrap with Cached when the lookup rate warrants one.
	SQLite struct {
		db        *sql.DB
		writeable bool
	}

	// Record is one managed API key.
	Record struct {
		APIKey   string
		Secret   string
		Disabled bool
	}
)

// OpenSQLite opens (and for readwrite mode, creates) a key store at path.
func OpenSQLite(ctx context.Context, path string, readwrite bool) (*SQLite, error) {
	var connstr string
	if readwrite {
		connstr = fmt.Sprintf("file:%v?_journal=wal&mode=rwc", path)
	} else {
		connstr = fmt.Sprintf("file:%v?mode=ro", path)
	}
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("keystore: unable to open %v, cause %w", path, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("keystore: unable to ping %v, cause %w", path, err)
	}
	s := &SQLite{db: conn, writeable: readwrite}
	if readwrite {
		if err := s.init(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLite) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `create table if not exists keys(
		api_key text primary key,
		secret text not null,
		disabled integer not null default 0)`)
	if err != nil {
		return fmt.Errorf("keystore: unable to create keys table, cause %w", err)
	}
	return nil
}

// ResolveSecret implements the server's lookup contract. A disabled key is
// reported as not found rather than as an error, callers get the same
// API_KEY_UNRECOGNIZED rejection as for a key that never existed.
func (s *SQLite) ResolveSecret(ctx context.Context, apiKey string) (string, bool, error) {
	var secret string
	var disabled bool
	err := s.db.QueryRowContext(ctx,
		`select secret, disabled from keys where api_key = ?`, apiKey).Scan(&secret, &disabled)
	if err == sql.ErrNoRows {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("keystore: unable to look up key, cause %w", err)
	}
	if disabled {
		return "", false, nil
	}
	return secret, true, nil
}

// Put inserts or replaces a key.
func (s *SQLite) Put(ctx context.Context, apiKey, secret string) error {
	if !s.writeable {
		return fmt.Errorf("keystore: store is read-only")
	}
	_, err := s.db.ExecContext(ctx,
		`insert into keys(api_key, secret) values(?, ?)
		on conflict(api_key) do update set secret = excluded.secret`, apiKey, secret)
	if err != nil {
		return fmt.Errorf("keystore: unable to store key, cause %w", err)
	}
	return nil
}

// Disable toggles a key without discarding its secret.
func (s *SQLite) Disable(ctx context.Context, apiKey string, disabled bool) error {
	if !s.writeable {
		return fmt.Errorf("keystore: store is read-only")
	}
	_, err := s.db.ExecContext(ctx,
		`update keys set disabled = ? where api_key = ?`, disabled, apiKey)
	if err != nil {
		return fmt.Errorf("keystore: unable to update key, cause %w", err)
	}
	return nil
}

// Remove deletes a key outright.
func (s *SQLite) Remove(ctx context.Context, apiKey string) error {
	if !s.writeable {
		return fmt.Errorf("keystore: store is read-only")
	}
	_, err := s.db.ExecContext(ctx, `delete from keys where api_key = ?`, apiKey)
	if err != nil {
		return fmt.Errorf("keystore: unable to remove key, cause %w", err)
	}
	return nil
}

// List returns every record, secrets included, ordered by key.
func (s *SQLite) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select api_key, secret, disabled from keys order by api_key`)
	if err != nil {
		return nil, fmt.Errorf("keystore: unable to list keys, cause %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.APIKey, &r.Secret, &r.Disabled); err != nil {
			return nil, fmt.Errorf("keystore: unable to list keys, cause %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
