package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file, for deployments
// that want a durable cache tier without running Redis. Insertion order
// is tracked with a monotonic sequence column so capacity eviction
// removes the oldest-inserted row, matching the in-memory store.
type SQLiteStore struct {
	db       *sql.DB
	capacity int

	hits    int64
	misses  int64
	sets    int64
	deletes int64
	errs    int64
}

// NewSQLiteStore opens (or creates) the cache database at path.
func NewSQLiteStore(path string, capacity int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		ttl_ns INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_seq ON cache_entries(seq);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	if capacity <= 0 {
		capacity = 10000
	}
	return &SQLiteStore{db: db, capacity: capacity}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var createdAt, ttlNS int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value, created_at, ttl_ns FROM cache_entries WHERE key = ?", key).
		Scan(&value, &createdAt, &ttlNS)
	if err == sql.ErrNoRows {
		atomic.AddInt64(&s.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}

	if time.Now().UnixNano()-createdAt > ttlNS {
		// Lazy expiry; the row is dead weight either way.
		_, _ = s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
		atomic.AddInt64(&s.misses, 1)
		return nil, false, nil
	}
	atomic.AddInt64(&s.hits, 1)
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	defer tx.Rollback()

	// Updating an existing key keeps its original seq so insertion
	// order is preserved across overwrites.
	_, err = tx.ExecContext(ctx, `INSERT INTO cache_entries (key, value, created_at, ttl_ns, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cache_entries))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			created_at = excluded.created_at, ttl_ns = excluded.ttl_ns`,
		key, value, time.Now().UnixNano(), int64(ttl))
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}

	// Evict oldest-inserted rows while above capacity.
	_, err = tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE key IN (
		SELECT key FROM cache_entries ORDER BY seq ASC
		LIMIT MAX(0, (SELECT COUNT(*) FROM cache_entries) - ?))`, s.capacity)
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return fmt.Errorf("sqlite evict: %w", err)
	}

	if err := tx.Commit(); err != nil {
		atomic.AddInt64(&s.errs, 1)
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	atomic.AddInt64(&s.sets, 1)
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return false, fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		atomic.AddInt64(&s.deletes, n)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, pattern string) (int, error) {
	var res sql.Result
	var err error
	switch {
	case pattern == "" || pattern == "*":
		res, err = s.db.ExecContext(ctx, "DELETE FROM cache_entries")
	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(pattern, "*")
		res, err = s.db.ExecContext(ctx,
			"DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	default:
		res, err = s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", pattern)
	}
	if err != nil {
		atomic.AddInt64(&s.errs, 1)
		return 0, fmt.Errorf("sqlite clear: %w", err)
	}
	n, _ := res.RowsAffected()
	atomic.AddInt64(&s.deletes, n)
	return int(n), nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Hits:    atomic.LoadInt64(&s.hits),
		Misses:  atomic.LoadInt64(&s.misses),
		Sets:    atomic.LoadInt64(&s.sets),
		Deletes: atomic.LoadInt64(&s.deletes),
		Errors:  atomic.LoadInt64(&s.errs),
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&stats.Size); err != nil {
		return stats, fmt.Errorf("sqlite stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
