package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CharacterStore = (*CharacterRepo)(nil)

// CharacterRepo is the SQLite implementation of the CharacterStore port.
type CharacterRepo struct {
	db *DB
}

// NewCharacterRepo creates a new CharacterRepo backed by the given DB.
func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterColumns = `c.api_row_id, c.key_id, c.character_id, c.is_director, c.cached_until, c.error_code, c.modulus`

// Upsert inserts the (keyID, characterID) row or refreshes its director flag.
func (r *CharacterRepo) Upsert(ctx context.Context, keyID, characterID int64, director model.DirectorFlag) error {
	const query = `INSERT INTO api_characters (key_id, character_id, is_director) VALUES (?, ?, ?)
		ON CONFLICT (key_id, character_id) DO UPDATE SET is_director = excluded.is_director`

	if _, err := r.db.Writer.ExecContext(ctx, query, keyID, characterID, string(director)); err != nil {
		return fmt.Errorf("upsert character %d of key %d: %w", characterID, keyID, err)
	}
	return nil
}

// Get returns the character row. Returns nil, nil if it does not exist.
func (r *CharacterRepo) Get(ctx context.Context, keyID, characterID int64) (*model.Character, error) {
	const query = `SELECT ` + characterColumns + ` FROM api_characters c WHERE c.key_id = ? AND c.character_id = ?`

	char, err := scanCharacter(r.db.Reader.QueryRowContext(ctx, query, keyID, characterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get character %d of key %d: %w", characterID, keyID, err)
	}
	return char, nil
}

// ListByKey returns every character granted by keyID.
func (r *CharacterRepo) ListByKey(ctx context.Context, keyID int64) ([]model.Character, error) {
	const query = `SELECT ` + characterColumns + ` FROM api_characters c WHERE c.key_id = ? ORDER BY c.api_row_id`
	return r.list(ctx, "list characters of key", query, keyID)
}

// ListDue returns shard members whose backoff has expired at now.
func (r *CharacterRepo) ListDue(ctx context.Context, shard int, now time.Time) ([]model.Character, error) {
	const query = `SELECT ` + characterColumns + ` FROM api_characters c
		WHERE c.modulus = ? AND c.cached_until <= ? ORDER BY c.api_row_id`
	return r.list(ctx, "list due characters", query, shard, now.Unix())
}

func (r *CharacterRepo) list(ctx context.Context, op, query string, args ...any) ([]model.Character, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	chars := []model.Character{}
	for rows.Next() {
		char, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		chars = append(chars, *char)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}

	return chars, nil
}

// DeleteUnsetDirector removes rows whose director flag was never resolved.
func (r *CharacterRepo) DeleteUnsetDirector(ctx context.Context) (int64, error) {
	result, err := r.db.Writer.ExecContext(ctx, `DELETE FROM api_characters WHERE is_director = ''`)
	if err != nil {
		return 0, fmt.Errorf("delete unset director rows: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// MaxModulus returns the highest assigned shard index.
func (r *CharacterRepo) MaxModulus(ctx context.Context) (int, bool, error) {
	var maxModulus sql.NullInt64
	err := r.db.Reader.QueryRowContext(ctx, `SELECT MAX(modulus) FROM api_characters`).Scan(&maxModulus)
	if err != nil {
		return 0, false, fmt.Errorf("max modulus: %w", err)
	}
	return int(maxModulus.Int64), maxModulus.Valid, nil
}

// ResetModulus clears every shard assignment.
func (r *CharacterRepo) ResetModulus(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `UPDATE api_characters SET modulus = NULL`); err != nil {
		return fmt.Errorf("reset modulus: %w", err)
	}
	return nil
}

// AssignModulus derives a shard for every unassigned row from its row id.
func (r *CharacterRepo) AssignModulus(ctx context.Context, shardCount int) (int64, error) {
	if shardCount <= 0 {
		return 0, fmt.Errorf("assign modulus: invalid shard count %d", shardCount)
	}

	result, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_characters SET modulus = api_row_id % ? WHERE modulus IS NULL`, shardCount)
	if err != nil {
		return 0, fmt.Errorf("assign modulus: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// Demote clears the director flag of characterID under every key.
func (r *CharacterRepo) Demote(ctx context.Context, characterID int64) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_characters SET is_director = ? WHERE character_id = ?`, string(model.DirectorNo), characterID)
	if err != nil {
		return fmt.Errorf("demote character %d: %w", characterID, err)
	}
	return nil
}

// Delete removes one character row.
func (r *CharacterRepo) Delete(ctx context.Context, keyID, characterID int64) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM api_characters WHERE key_id = ? AND character_id = ?`, keyID, characterID)
	if err != nil {
		return fmt.Errorf("delete character %d of key %d: %w", characterID, keyID, err)
	}
	return nil
}

// DeleteByKey removes every character granted by keyID.
func (r *CharacterRepo) DeleteByKey(ctx context.Context, keyID int64) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM api_characters WHERE key_id = ?`, keyID); err != nil {
		return fmt.Errorf("delete characters of key %d: %w", keyID, err)
	}
	return nil
}

// SetCachedUntil backs characterID off until the given time.
func (r *CharacterRepo) SetCachedUntil(ctx context.Context, characterID int64, until time.Time) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_characters SET cached_until = ? WHERE character_id = ?`, toUnix(until), characterID)
	if err != nil {
		return fmt.Errorf("set cached_until of character %d: %w", characterID, err)
	}
	return nil
}

// SetErrorCode records the last remote error seen for the pair.
func (r *CharacterRepo) SetErrorCode(ctx context.Context, keyID, characterID int64, code int) error {
	_, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_characters SET error_code = ? WHERE key_id = ? AND character_id = ?`, code, keyID, characterID)
	if err != nil {
		return fmt.Errorf("set error code of character %d: %w", characterID, err)
	}
	return nil
}

func scanCharacter(s scanner) (*model.Character, error) {
	var char model.Character
	var director string
	var cachedUntil int64
	var modulus sql.NullInt64

	err := s.Scan(&char.APIRowID, &char.KeyID, &char.CharacterID, &director, &cachedUntil, &char.ErrorCode, &modulus)
	if err != nil {
		return nil, err
	}

	char.IsDirector = model.DirectorFlag(director)
	char.CachedUntil = fromUnix(cachedUntil)
	char.Modulus = int(modulus.Int64)
	char.HasModulus = modulus.Valid

	return &char, nil
}
