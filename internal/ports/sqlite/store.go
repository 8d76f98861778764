// Package sqlite provides a SQLite-backed versioned DocumentStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"duelhall/internal/ports"
	"duelhall/internal/ports/sqlite/migrations"

	sq "github.com/Masterminds/squirrel"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const table = "documents"

var documentColumns = []string{"collection", "owner", "key", "value", "version", "updated_at"}

// Store persists documents in one SQLite table. Versions come from a single
// sequence, so a deleted and re-created document never reuses a version.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite document store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers; conditional writes rely on it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func refWhere(ref ports.Ref) sq.Eq {
	return sq.Eq{"collection": ref.Collection, "owner": ref.Owner, "key": ref.Key}
}

func (s *Store) Get(ctx context.Context, ref ports.Ref) (*ports.Document, error) {
	query, args, err := sq.Select(documentColumns...).From(table).Where(refWhere(ref)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}
	doc, err := scanDocument(s.sqlDB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", ref.Collection, ref.Key, err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*ports.Document, error) {
	var (
		doc       ports.Document
		value     string
		version   int64
		updatedAt int64
	)
	if err := row.Scan(&doc.Collection, &doc.Owner, &doc.Key, &value, &version, &updatedAt); err != nil {
		return nil, err
	}
	doc.Value = json.RawMessage(value)
	doc.Version = strconv.FormatInt(version, 10)
	doc.UpdatedAt = fromMillis(updatedAt)
	return &doc, nil
}

func (s *Store) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var expected int64
	if version != ports.AnyVersion && version != ports.CreateOnly {
		parsed, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return "", ports.ErrVersionConflict
		}
		expected = parsed
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	next, err := nextVersion(ctx, tx)
	if err != nil {
		return "", err
	}
	now := toMillis(s.now())

	var stmt sq.Sqlizer
	switch version {
	case ports.AnyVersion:
		stmt = sq.Insert(table).Columns(documentColumns...).
			Values(ref.Collection, ref.Owner, ref.Key, string(value), next, now).
			Suffix("ON CONFLICT (collection, owner, key) DO UPDATE SET value = excluded.value, version = excluded.version, updated_at = excluded.updated_at")
	case ports.CreateOnly:
		stmt = sq.Insert(table).Columns(documentColumns...).
			Values(ref.Collection, ref.Owner, ref.Key, string(value), next, now)
	default:
		stmt = sq.Update(table).
			Set("value", string(value)).
			Set("version", next).
			Set("updated_at", now).
			Where(refWhere(ref)).
			Where(sq.Eq{"version": expected})
	}
	query, args, err := stmt.ToSql()
	if err != nil {
		return "", fmt.Errorf("build put: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ports.ErrVersionConflict
		}
		return "", fmt.Errorf("put %s/%s: %w", ref.Collection, ref.Key, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", ref.Collection, ref.Key, err)
	} else if n == 0 {
		return "", ports.ErrVersionConflict
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit put: %w", err)
	}
	return strconv.FormatInt(next, 10), nil
}

func nextVersion(ctx context.Context, tx *sql.Tx) (int64, error) {
	query, args, err := sq.Update("document_sequence").
		Set("seq", sq.Expr("seq + 1")).
		Where(sq.Eq{"id": 1}).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sequence: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next version: %w", err)
	}
	return seq, nil
}

func (s *Store) Delete(ctx context.Context, ref ports.Ref, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	del := sq.Delete(table).Where(refWhere(ref))
	if version != ports.AnyVersion {
		expected, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			expected = -1
		}
		del = del.Where(sq.Eq{"version": expected})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ref.Collection, ref.Key, err)
	}
	if version == ports.AnyVersion {
		return nil
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete %s/%s: %w", ref.Collection, ref.Key, err)
	} else if n == 1 {
		return nil
	}
	if _, err := s.Get(ctx, ref); err != nil {
		return err
	}
	return ports.ErrVersionConflict
}

func (s *Store) List(ctx context.Context, collection, owner string) ([]*ports.Document, error) {
	query, args, err := sq.Select(documentColumns...).From(table).
		Where(sq.Eq{"collection": collection, "owner": owner}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*ports.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ports.DocumentStore = (*Store)(nil)
