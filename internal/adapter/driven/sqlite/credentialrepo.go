package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/killsync/internal/domain/model"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `key_id, v_code, user_id, label, last_validation, error_code`

// Get returns the credential for keyID. Returns nil, nil if it does not exist.
func (r *CredentialRepo) Get(ctx context.Context, keyID int64) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM api_keys WHERE key_id = ? LIMIT 1`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, keyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %d: %w", keyID, err)
	}
	return cred, nil
}

// Find returns the credential for the exact pair. Returns nil, nil if absent.
func (r *CredentialRepo) Find(ctx context.Context, keyID int64, vCode string) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM api_keys WHERE key_id = ? AND v_code = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, keyID, vCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential %d: %w", keyID, err)
	}
	return cred, nil
}

// Insert stores a new credential.
func (r *CredentialRepo) Insert(ctx context.Context, cred model.Credential) error {
	const query = `INSERT INTO api_keys (key_id, v_code, user_id, label, last_validation, error_code)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.KeyID, cred.VCode, cred.OwnerUserID, cred.Label, toUnix(cred.LastValidation), cred.ErrorCode)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("insert credential %d: %w", cred.KeyID, driven.ErrCredentialExists)
		}
		return fmt.Errorf("insert credential %d: %w", cred.KeyID, err)
	}
	return nil
}

// Claim assigns keyID to userID and replaces its label.
func (r *CredentialRepo) Claim(ctx context.Context, keyID, userID int64, label string) error {
	const query = `UPDATE api_keys SET user_id = ?, label = ? WHERE key_id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, userID, label, keyID); err != nil {
		return fmt.Errorf("claim credential %d: %w", keyID, err)
	}
	return nil
}

// MarkErrored records code as the key-wide error.
func (r *CredentialRepo) MarkErrored(ctx context.Context, keyID int64, code int) error {
	const query = `UPDATE api_keys SET error_code = ? WHERE key_id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, code, keyID); err != nil {
		return fmt.Errorf("mark credential %d errored: %w", keyID, err)
	}
	return nil
}

// MarkValidated records a successful validation at the given time.
func (r *CredentialRepo) MarkValidated(ctx context.Context, keyID int64, at time.Time) error {
	const query = `UPDATE api_keys SET last_validation = ?, error_code = 0 WHERE key_id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, toUnix(at), keyID); err != nil {
		return fmt.Errorf("mark credential %d validated: %w", keyID, err)
	}
	return nil
}

func scanCredential(s scanner) (*model.Credential, error) {
	var cred model.Credential
	var lastValidation int64

	err := s.Scan(&cred.KeyID, &cred.VCode, &cred.OwnerUserID, &cred.Label, &lastValidation, &cred.ErrorCode)
	if err != nil {
		return nil, err
	}
	cred.LastValidation = fromUnix(lastValidation)

	return &cred, nil
}
