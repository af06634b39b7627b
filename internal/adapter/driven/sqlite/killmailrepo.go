package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KillmailStore = (*KillmailRepo)(nil)

// KillmailRepo is the SQLite implementation of the KillmailStore port.
type KillmailRepo struct {
	db *DB
}

// NewKillmailRepo creates a new KillmailRepo backed by the given DB.
func NewKillmailRepo(db *DB) *KillmailRepo {
	return &KillmailRepo{db: db}
}

// Exists reports whether killID is already stored.
func (r *KillmailRepo) Exists(ctx context.Context, killID int64) (bool, error) {
	var count int
	err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(1) FROM killmails WHERE kill_id = ?`, killID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check killmail %d: %w", killID, err)
	}
	return count > 0, nil
}

// InsertIgnore stores km unless a row with its kill id exists.
func (r *KillmailRepo) InsertIgnore(ctx context.Context, km model.Killmail) (bool, error) {
	const query = `INSERT OR IGNORE INTO killmails (kill_id, hash, source, kill_json, processed) VALUES (?, ?, ?, ?, ?)`

	processed := 0
	if km.Processed {
		processed = 1
	}

	result, err := r.db.Writer.ExecContext(ctx, query, km.KillID, km.Hash, km.Source, string(km.Payload), processed)
	if err != nil {
		return false, fmt.Errorf("insert killmail %d: %w", km.KillID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// Get returns the stored killmail. Returns nil, nil if it does not exist.
func (r *KillmailRepo) Get(ctx context.Context, killID int64) (*model.Killmail, error) {
	const query = `SELECT kill_id, hash, source, kill_json, processed FROM killmails WHERE kill_id = ?`

	var km model.Killmail
	var payload string
	var processed int
	err := r.db.Reader.QueryRowContext(ctx, query, killID).Scan(&km.KillID, &km.Hash, &km.Source, &payload, &processed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get killmail %d: %w", killID, err)
	}
	km.Payload = []byte(payload)
	km.Processed = processed != 0

	return &km, nil
}
