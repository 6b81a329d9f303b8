package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aeqet/ucp/keys"
)

// KeyStore persists signing keys in PostgreSQL.
type KeyStore struct {
	db *sql.DB
}

// NewKeyStore builds a KeyStore over an open connection pool.
func NewKeyStore(db *sql.DB) *KeyStore {
	if db == nil {
		panic("postgres: key store requires a database")
	}
	return &KeyStore{db: db}
}

// Insert stores a new key record, rejecting duplicate kids.
func (s *KeyStore) Insert(ctx context.Context, rec *keys.Record) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ucp_signing_keys (kid, public_jwk, encrypted_private_key, is_active, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kid) DO NOTHING`,
		rec.KID, rec.PublicKeyJWK, rec.EncryptedPrivateKey, rec.IsActive, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signing key %q: %w", rec.KID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: insert signing key %q: %w", rec.KID, err)
	}
	if n == 0 {
		return keys.ErrDuplicateKID
	}
	return nil
}

// Find loads a key record by kid.
func (s *KeyStore) Find(ctx context.Context, kid string) (*keys.Record, error) {
	rec := &keys.Record{}
	err := s.db.QueryRowContext(ctx,
		`SELECT kid, public_jwk, encrypted_private_key, is_active, created_at, expires_at
		 FROM ucp_signing_keys WHERE kid = $1`,
		kid,
	).Scan(&rec.KID, &rec.PublicKeyJWK, &rec.EncryptedPrivateKey, &rec.IsActive, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keys.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load signing key %q: %w", kid, err)
	}
	return rec, nil
}

// Active lists active key records, newest first.
func (s *KeyStore) Active(ctx context.Context) ([]*keys.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kid, public_jwk, encrypted_private_key, is_active, created_at, expires_at
		 FROM ucp_signing_keys WHERE is_active ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active signing keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*keys.Record
	for rows.Next() {
		rec := &keys.Record{}
		if err := rows.Scan(&rec.KID, &rec.PublicKeyJWK, &rec.EncryptedPrivateKey, &rec.IsActive, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("postgres: scan signing key: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active signing keys: %w", err)
	}
	return records, nil
}

// Deactivate marks a key inactive.
func (s *KeyStore) Deactivate(ctx context.Context, kid string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ucp_signing_keys SET is_active = FALSE WHERE kid = $1`, kid,
	)
	if err != nil {
		return fmt.Errorf("postgres: deactivate signing key %q: %w", kid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: deactivate signing key %q: %w", kid, err)
	}
	if n == 0 {
		return keys.ErrKeyNotFound
	}
	return nil
}

// Delete removes a key record.
func (s *KeyStore) Delete(ctx context.Context, kid string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ucp_signing_keys WHERE kid = $1`, kid,
	)
	if err != nil {
		return fmt.Errorf("postgres: delete signing key %q: %w", kid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: delete signing key %q: %w", kid, err)
	}
	if n == 0 {
		return keys.ErrKeyNotFound
	}
	return nil
}

// CountActive returns the number of active keys.
func (s *KeyStore) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM ucp_signing_keys WHERE is_active`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count active signing keys: %w", err)
	}
	return n, nil
}
