package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingStore = (*StorageRepo)(nil)

// StorageRepo is the SQLite implementation of the SettingStore port, backed
// by the generic locker/contents table.
type StorageRepo struct {
	db *DB
}

// NewStorageRepo creates a new StorageRepo backed by the given DB.
func NewStorageRepo(db *DB) *StorageRepo {
	return &StorageRepo{db: db}
}

// Get returns the contents of the named locker.
func (r *StorageRepo) Get(ctx context.Context, name string) (string, bool, error) {
	var contents string
	err := r.db.Reader.QueryRowContext(ctx, `SELECT contents FROM storage WHERE locker = ?`, name).Scan(&contents)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get storage %q: %w", name, err)
	}
	return contents, true, nil
}

// Set stores or replaces the contents of the named locker.
func (r *StorageRepo) Set(ctx context.Context, name, value string) error {
	_, err := r.db.Writer.ExecContext(ctx, `INSERT OR REPLACE INTO storage (locker, contents) VALUES (?, ?)`, name, value)
	if err != nil {
		return fmt.Errorf("set storage %q: %w", name, err)
	}
	return nil
}
