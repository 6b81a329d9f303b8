// Package keys manages the lifecycle of ES256 signing keys: generation,
// encrypted storage, JWK publication, deactivation, and removal.
package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrDuplicateKID reports an insert with a key id that already exists.
	ErrDuplicateKID = errors.New("keys: kid already exists")
	// ErrKeyNotFound reports a lookup for an unknown key id.
	ErrKeyNotFound = errors.New("keys: key not found")
)

// Record is a stored signing key. The private half is always encrypted; the
// public half is kept as serialized JWK ready for publication.
type Record struct {
	KID                 string
	PublicKeyJWK        string
	EncryptedPrivateKey []byte
	IsActive            bool
	CreatedAt           time.Time
	ExpiresAt           *time.Time
}

// Store persists signing key records. Implementations return ErrDuplicateKID
// from Insert and ErrKeyNotFound from lookups by kid.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Find(ctx context.Context, kid string) (*Record, error)
	// Active lists active records newest first.
	Active(ctx context.Context) ([]*Record, error)
	Deactivate(ctx context.Context, kid string) error
	Delete(ctx context.Context, kid string) error
	CountActive(ctx context.Context) (int, error)
}

// Manager is the signing-key lifecycle manager.
type Manager struct {
	store     Store
	encryptor Encryptor
	clock     func() time.Time
	logger    *slog.Logger
}

// ManagerOption customizes the key manager.
type ManagerOption func(*Manager)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.clock = fn
	}
}

// NewManager builds a Manager over a key store and an at-rest encryptor.
func NewManager(store Store, encryptor Encryptor, opts ...ManagerOption) *Manager {
	if store == nil || encryptor == nil {
		panic("keys: manager requires a store and an encryptor")
	}
	m := &Manager{
		store:     store,
		encryptor: encryptor,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(m)
	}
	return m
}

// GenerateKey creates a new active P-256 signing key. A non-empty kid is
// used as given and must be unique; an empty kid gets an auto-generated one.
// The optional expiry is advisory metadata stored with the key.
func (m *Manager) GenerateKey(ctx context.Context, kid string, expiresAt *time.Time) (*Record, error) {
	now := m.clock().UTC()
	if kid == "" {
		generated, err := GenerateKID(now)
		if err != nil {
			return nil, err
		}
		kid = generated
	}

	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keys: generate key pair: %w", err)
	}
	jwk, err := FromECDSAPublicKey(kid, &private.PublicKey)
	if err != nil {
		return nil, err
	}
	jwkJSON, err := json.Marshal(jwk)
	if err != nil {
		return nil, fmt.Errorf("keys: encode JWK: %w", err)
	}
	pemBytes, err := EncodePrivateKeyPEM(private)
	if err != nil {
		return nil, err
	}
	encrypted, err := m.encryptor.Encrypt(pemBytes)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		KID:                 kid,
		PublicKeyJWK:        string(jwkJSON),
		EncryptedPrivateKey: encrypted,
		IsActive:            true,
		CreatedAt:           now,
		ExpiresAt:           expiresAt,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	m.logger.Info("generated signing key", "kid", kid)
	return rec, nil
}

// GetActivePublicKeysAsJWK returns the JWKs of all active keys, newest
// first. Records whose stored JWK no longer parses or fails validation are
// skipped with a warning rather than failing the whole listing.
func (m *Manager) GetActivePublicKeysAsJWK(ctx context.Context) ([]JWK, error) {
	records, err := m.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("keys: list active keys: %w", err)
	}
	jwks := make([]JWK, 0, len(records))
	for _, rec := range records {
		var jwk JWK
		if err := json.Unmarshal([]byte(rec.PublicKeyJWK), &jwk); err != nil {
			m.logger.Warn("skipping signing key with unparseable JWK", "kid", rec.KID, "error", err)
			continue
		}
		if !jwk.Valid() {
			m.logger.Warn("skipping signing key with malformed JWK", "kid", rec.KID)
			continue
		}
		jwks = append(jwks, jwk)
	}
	return jwks, nil
}

// GetCurrentKey returns the most recently created active key.
func (m *Manager) GetCurrentKey(ctx context.Context) (*Record, error) {
	records, err := m.store.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("keys: list active keys: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrKeyNotFound
	}
	return records[0], nil
}

// GetPrivateKeyPEM decrypts and returns the PKCS#8 PEM private key for an
// active key kid. Deactivated keys report ErrKeyNotFound: their material is
// retained in the store but never handed out for signing again.
func (m *Manager) GetPrivateKeyPEM(ctx context.Context, kid string) ([]byte, error) {
	rec, err := m.store.Find(ctx, kid)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrKeyNotFound
	}
	return m.encryptor.Decrypt(rec.EncryptedPrivateKey)
}

// SigningKey decrypts the private key for kid and parses it for use.
func (m *Manager) SigningKey(ctx context.Context, kid string) (*ecdsa.PrivateKey, error) {
	pemBytes, err := m.GetPrivateKeyPEM(ctx, kid)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(pemBytes)
}

// DeactivateKey marks the key inactive. The record and its material are
// retained so past signatures stay attributable.
func (m *Manager) DeactivateKey(ctx context.Context, kid string) error {
	if err := m.store.Deactivate(ctx, kid); err != nil {
		return err
	}
	m.logger.Info("deactivated signing key", "kid", kid)
	return nil
}

// DeleteKey removes the key record entirely.
func (m *Manager) DeleteKey(ctx context.Context, kid string) error {
	if err := m.store.Delete(ctx, kid); err != nil {
		return err
	}
	m.logger.Info("deleted signing key", "kid", kid)
	return nil
}

// ActiveKeyCount returns the number of active keys.
func (m *Manager) ActiveKeyCount(ctx context.Context) (int, error) {
	return m.store.CountActive(ctx)
}

// HasActiveKeys reports whether at least one active key exists.
func (m *Manager) HasActiveKeys(ctx context.Context) (bool, error) {
	n, err := m.store.CountActive(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
