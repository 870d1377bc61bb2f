// Package sqlite provides a backend.Store persisted in a SQLite database,
// useful for single-node caches that must survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polycache/polycache/backend"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS cache_expires ON cache(expires_at) WHERE expires_at > 0;
`

// Config for a Store.
type Config struct {
	// Path of the database file. ":memory:" works for tests.
	Path string
	// JanitorInterval is how often expired rows are swept. Zero disables the
	// sweeper; expired rows are then only reclaimed lazily on read.
	JanitorInterval time.Duration
}

// Store keeps entries in a cache table keyed by string, with expiry stored as
// unix nanoseconds (0 = never). Reads treat expired rows as misses and delete
// them in passing.
type Store struct {
	db   *sql.DB
	stop chan struct{}
	once sync.Once
}

// New opens (or creates) the database at cfg.Path and prepares the schema.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", "file:"+cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY churn under concurrency
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	s := &Store{db: db, stop: make(chan struct{})}
	if cfg.JanitorInterval > 0 {
		go s.janitor(cfg.JanitorInterval)
	}
	return s, nil
}

func (s *Store) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.db.Exec(`DELETE FROM cache WHERE expires_at > 0 AND expires_at <= ?`, time.Now().UnixNano())
		case <-s.stop:
			return
		}
	}
}

func deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

func live(expiresAt int64) bool {
	return expiresAt == 0 || expiresAt > time.Now().UnixNano()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !live(expiresAt) {
		s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ? AND expires_at = ?`, key, expiresAt)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) MultiGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, key := range keys {
		v, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = v
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache(key, value, expires_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, deadline(ttl))
	return err
}

func (s *Store) MultiSet(ctx context.Context, items []backend.Item, ttl time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	exp := deadline(ttl)
	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cache(key, value, expires_at) VALUES(?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
			it.Key, it.Value, exp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT expires_at FROM cache WHERE key = ?`, key).Scan(&expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, err
	case live(expiresAt):
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache(key, value, expires_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, deadline(ttl)); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) Delete(ctx context.Context, key string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var (
		value     []byte
		expiresAt int64
	)
	err = tx.QueryRowContext(ctx, `SELECT value, expires_at FROM cache WHERE key = ?`, key).Scan(&value, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && !live(expiresAt)):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cache(key, value, expires_at) VALUES(?, ?, 0)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`,
			key, []byte(strconv.FormatInt(delta, 10))); err != nil {
			return 0, err
		}
		return delta, tx.Commit()
	case err != nil:
		return 0, err
	}

	n, perr := strconv.ParseInt(string(value), 10, 64)
	if perr != nil {
		return 0, backend.ErrNotNumeric
	}
	n += delta
	if _, err := tx.ExecContext(ctx, `UPDATE cache SET value = ? WHERE key = ?`,
		[]byte(strconv.FormatInt(n, 10)), key); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cache SET expires_at = ? WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		deadline(ttl), key, time.Now().UnixNano())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) Clear(ctx context.Context, prefix string) error {
	if prefix == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM cache`)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	return err
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache WHERE key = ? AND value = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, expected, time.Now().UnixNano())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Raw understands "exec" and "query_row_int": escape hatches for pragmas and
// maintenance statements.
func (s *Store) Raw(ctx context.Context, command string, args ...any) (any, error) {
	switch command {
	case "exec":
		if len(args) == 0 {
			return nil, backend.ErrNotSupported
		}
		stmt, ok := args[0].(string)
		if !ok {
			return nil, backend.ErrNotSupported
		}
		res, err := s.db.ExecContext(ctx, stmt, args[1:]...)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		return n, nil
	case "query_row_int":
		if len(args) == 0 {
			return nil, backend.ErrNotSupported
		}
		stmt, ok := args[0].(string)
		if !ok {
			return nil, backend.ErrNotSupported
		}
		var n int64
		if err := s.db.QueryRowContext(ctx, stmt, args[1:]...).Scan(&n); err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, backend.ErrNotSupported
	}
}

func (s *Store) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })
	return s.db.Close()
}
