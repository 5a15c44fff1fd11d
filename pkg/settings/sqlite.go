package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend persists settings in a SQLite database. Suitable for
// single-instance deployments that need settings to survive restarts.
// WAL journaling keeps concurrent readers off the writer's back.
type SQLiteBackend struct {
	db *sql.DB
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens (creating if needed) the settings database at
// dbPath with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig opens the settings database with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Cause: err}
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "init schema", Cause: err}
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owner_preferences (
		owner TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL,
		remove_referral_marketing INTEGER NOT NULL,
		allow_ai_fallback INTEGER NOT NULL,
		domain_exceptions TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS custom_rules (
		owner TEXT NOT NULL,
		pattern TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (owner, pattern)
	);

	CREATE INDEX IF NOT EXISTS idx_custom_rules_owner ON custom_rules(owner);
	`
	_, err := b.db.Exec(schema)
	return err
}

// SavePreferences inserts or updates an owner's preferences.
func (b *SQLiteBackend) SavePreferences(ctx context.Context, prefs *Preferences) error {
	exceptions, err := json.Marshal(prefs.DomainExceptions)
	if err != nil {
		return &StorageError{Op: "save preferences", Cause: err}
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO owner_preferences
			(owner, enabled, remove_referral_marketing, allow_ai_fallback, domain_exceptions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			enabled = excluded.enabled,
			remove_referral_marketing = excluded.remove_referral_marketing,
			allow_ai_fallback = excluded.allow_ai_fallback,
			domain_exceptions = excluded.domain_exceptions,
			updated_at = excluded.updated_at`,
		prefs.Owner, boolInt(prefs.Enabled), boolInt(prefs.RemoveReferralMarketing),
		boolInt(prefs.AllowAIFallback), string(exceptions), prefs.UpdatedAt.UnixMilli())
	if err != nil {
		return &StorageError{Op: "save preferences", Cause: err}
	}
	return nil
}

// LoadPreferences returns an owner's preferences, nil when absent.
func (b *SQLiteBackend) LoadPreferences(ctx context.Context, owner string) (*Preferences, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT enabled, remove_referral_marketing, allow_ai_fallback, domain_exceptions, updated_at
		FROM owner_preferences WHERE owner = ?`, owner)

	var enabled, referral, ai int
	var exceptions string
	var updatedAt int64
	err := row.Scan(&enabled, &referral, &ai, &exceptions, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "load preferences", Cause: err}
	}

	prefs := &Preferences{
		Owner:                   owner,
		Enabled:                 enabled != 0,
		RemoveReferralMarketing: referral != 0,
		AllowAIFallback:         ai != 0,
		UpdatedAt:               time.UnixMilli(updatedAt),
	}
	if err := json.Unmarshal([]byte(exceptions), &prefs.DomainExceptions); err != nil {
		return nil, &StorageError{Op: "load preferences", Cause: err}
	}
	return prefs, nil
}

// AddRule stores a custom rule.
func (b *SQLiteBackend) AddRule(ctx context.Context, rule StoredRule) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO custom_rules (owner, pattern, created_at) VALUES (?, ?, ?)`,
		rule.Owner, rule.Pattern, rule.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return &StorageError{Op: "add rule", Cause: err}
	}
	return nil
}

// DeleteRule removes a custom rule.
func (b *SQLiteBackend) DeleteRule(ctx context.Context, owner, pattern string) error {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM custom_rules WHERE owner = ? AND pattern = ?`, owner, pattern)
	if err != nil {
		return &StorageError{Op: "delete rule", Cause: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ListRules returns an owner's rules ordered by creation time.
func (b *SQLiteBackend) ListRules(ctx context.Context, owner string) ([]StoredRule, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT pattern, created_at FROM custom_rules
		WHERE owner = ? ORDER BY created_at, pattern`, owner)
	if err != nil {
		return nil, &StorageError{Op: "list rules", Cause: err}
	}
	defer rows.Close()

	var out []StoredRule
	for rows.Next() {
		var pattern string
		var createdAt int64
		if err := rows.Scan(&pattern, &createdAt); err != nil {
			return nil, &StorageError{Op: "list rules", Cause: err}
		}
		out = append(out, StoredRule{Owner: owner, Pattern: pattern, CreatedAt: time.UnixMilli(createdAt)})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list rules", Cause: err}
	}
	return out, nil
}

// Ping reports whether the database answers.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// isUniqueViolation detects a primary-key conflict without tying the check
// to driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
