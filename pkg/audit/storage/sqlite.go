package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"clearlink-hq/hermes/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite history backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/history.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cleaned_links (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	original_url TEXT NOT NULL,
	cleaned_url TEXT NOT NULL,
	removals TEXT NOT NULL DEFAULT '[]',
	removed_count INTEGER NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	rule_version INTEGER NOT NULL DEFAULT 0,
	changed INTEGER NOT NULL DEFAULT 0,
	unwrapped INTEGER NOT NULL DEFAULT 0,
	expansion_hops INTEGER NOT NULL DEFAULT 0,
	partial_expansion INTEGER NOT NULL DEFAULT 0,
	error_kind TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cleaned_links_owner ON cleaned_links(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_cleaned_links_created ON cleaned_links(created_at);
`

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the history database.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, int(config.BusyTimeout.Milliseconds()))
	if config.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &audit.StorageError{Op: "open", Cause: err}
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger.With("component", "audit.storage"),
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &audit.StorageError{Op: "init schema", Cause: err}
	}
	return s, nil
}

// Store persists one record.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.CleaningRecord) error {
	removals, err := json.Marshal(record.Removals)
	if err != nil {
		return &audit.StorageError{Op: "store", Cause: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cleaned_links
			(id, owner, original_url, cleaned_url, removals, removed_count, provider,
			 rule_version, changed, unwrapped, expansion_hops, partial_expansion,
			 error_kind, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Owner, record.OriginalURL, record.CleanedURL,
		string(removals), len(record.Removals), record.Provider,
		record.RuleVersion, boolInt(record.Changed), boolInt(record.Unwrapped),
		record.ExpansionHops, boolInt(record.PartialExpansion),
		record.ErrorKind, record.Duration.Microseconds(), record.CreatedAt.UnixMilli())
	if err != nil {
		return &audit.StorageError{Op: "store", Cause: err}
	}
	return nil
}

// Query returns records matching q, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.CleaningRecord, error) {
	where, args := buildWhere(q)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, original_url, cleaned_url, removals, provider,
		       rule_version, changed, unwrapped, expansion_hops,
		       partial_expansion, error_kind, duration_us, created_at
		FROM cleaned_links`+where+`
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, &audit.StorageError{Op: "query", Cause: err}
	}
	defer rows.Close()

	var out []*audit.CleaningRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, &audit.StorageError{Op: "query", Cause: err}
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &audit.StorageError{Op: "query", Cause: err}
	}
	return out, nil
}

// Count returns the number of records matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cleaned_links`+where, args...).Scan(&n)
	if err != nil {
		return 0, &audit.StorageError{Op: "count", Cause: err}
	}
	return n, nil
}

// StatsByDay aggregates per-day activity, newest first.
func (s *SQLiteStorage) StatsByDay(ctx context.Context, owner string, days int) ([]audit.DayStat, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).UnixMilli()

	query := `
		SELECT date(created_at / 1000, 'unixepoch') AS day,
		       COUNT(*), SUM(changed), SUM(removed_count)
		FROM cleaned_links
		WHERE created_at >= ?`
	args := []any{cutoff}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` GROUP BY day ORDER BY day DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &audit.StorageError{Op: "stats", Cause: err}
	}
	defer rows.Close()

	var out []audit.DayStat
	for rows.Next() {
		var stat audit.DayStat
		if err := rows.Scan(&stat.Day, &stat.Total, &stat.Changed, &stat.Removed); err != nil {
			return nil, &audit.StorageError{Op: "stats", Cause: err}
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, &audit.StorageError{Op: "stats", Cause: err}
	}
	return out, nil
}

// DeleteOlderThan removes records created before cutoff.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cleaned_links WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, &audit.StorageError{Op: "delete", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &audit.StorageError{Op: "delete", Cause: err}
	}
	return n, nil
}

// Ping reports whether the database answers.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhere(q *audit.Query) (string, []any) {
	var conds []string
	var args []any
	if q.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, q.Owner)
	}
	if q.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if q.Until != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, q.Until.UnixMilli())
	}
	if q.OnlyChanged {
		conds = append(conds, "changed = 1")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*audit.CleaningRecord, error) {
	var r audit.CleaningRecord
	var removals string
	var changed, unwrapped, partial int
	var durationUS, createdAt int64

	err := rows.Scan(&r.ID, &r.Owner, &r.OriginalURL, &r.CleanedURL, &removals,
		&r.Provider, &r.RuleVersion, &changed, &unwrapped, &r.ExpansionHops,
		&partial, &r.ErrorKind, &durationUS, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(removals), &r.Removals); err != nil {
		return nil, err
	}
	r.Changed = changed != 0
	r.Unwrapped = unwrapped != 0
	r.PartialExpansion = partial != 0
	r.Duration = time.Duration(durationUS) * time.Microsecond
	r.CreatedAt = time.UnixMilli(createdAt)
	return &r, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
