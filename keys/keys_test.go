package keys

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

// memKeyStore is an in-memory Store for tests.
type memKeyStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{records: make(map[string]*Record)}
}

func (s *memKeyStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.KID]; ok {
		return ErrDuplicateKID
	}
	clone := *rec
	s.records[rec.KID] = &clone
	return nil
}

func (s *memKeyStore) Find(_ context.Context, kid string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *memKeyStore) Active(_ context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*Record
	for _, rec := range s.records {
		if rec.IsActive {
			clone := *rec
			active = append(active, &clone)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.After(active[j].CreatedAt)
		}
		return active[i].KID > active[j].KID
	})
	return active, nil
}

func (s *memKeyStore) Deactivate(_ context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[kid]
	if !ok {
		return ErrKeyNotFound
	}
	rec.IsActive = false
	return nil
}

func (s *memKeyStore) Delete(_ context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[kid]; !ok {
		return ErrKeyNotFound
	}
	delete(s.records, kid)
	return nil
}

func (s *memKeyStore) CountActive(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.IsActive {
			n++
		}
	}
	return n, nil
}

func testEncryptor(t *testing.T) *AESGCMEncryptor {
	t.Helper()
	enc, err := NewAESGCMEncryptor(make([]byte, 32))
	if err != nil {
		t.Fatalf("build encryptor: %v", err)
	}
	return enc
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	return NewManager(store, testEncryptor(t),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		withClock(func() time.Time { return testNow }),
	)
}

func TestManagerGenerateKey(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, newMemKeyStore())
	rec, err := mgr.GenerateKey(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rec.KID == "" || !rec.IsActive {
		t.Fatalf("unexpected record %+v", rec)
	}

	var jwk JWK
	if err := json.Unmarshal([]byte(rec.PublicKeyJWK), &jwk); err != nil {
		t.Fatalf("parse stored JWK: %v", err)
	}
	if !jwk.Valid() {
		t.Fatalf("stored JWK invalid: %+v", jwk)
	}
	if jwk.KID != rec.KID {
		t.Fatalf("JWK kid %q does not match record %q", jwk.KID, rec.KID)
	}

	// The private key round-trips through encryption and PEM.
	private, err := mgr.SigningKey(context.Background(), rec.KID)
	if err != nil {
		t.Fatalf("load signing key: %v", err)
	}
	pub, err := jwk.PublicKey()
	if err != nil {
		t.Fatalf("rebuild public key: %v", err)
	}
	if !private.PublicKey.Equal(pub) {
		t.Fatalf("JWK public key does not match generated pair")
	}
}

func TestManagerGenerateKeyDuplicateKID(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, newMemKeyStore())
	if _, err := mgr.GenerateKey(context.Background(), "ucp_2026_abcd1234", nil); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	_, err := mgr.GenerateKey(context.Background(), "ucp_2026_abcd1234", nil)
	if !errors.Is(err, ErrDuplicateKID) {
		t.Fatalf("expected duplicate kid, got %v", err)
	}
}

func TestManagerActiveKeyListing(t *testing.T) {
	t.Parallel()

	store := newMemKeyStore()
	mgr := newTestManager(t, store)
	ctx := context.Background()

	first, err := mgr.GenerateKey(ctx, "ucp_2026_aaaa0001", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := mgr.GenerateKey(ctx, "ucp_2026_bbbb0002", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	jwks, err := mgr.GetActivePublicKeysAsJWK(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jwks) != 2 {
		t.Fatalf("expected 2 JWKs, got %d", len(jwks))
	}

	if err := mgr.DeactivateKey(ctx, first.KID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	jwks, err = mgr.GetActivePublicKeysAsJWK(ctx)
	if err != nil {
		t.Fatalf("list after deactivate: %v", err)
	}
	if len(jwks) != 1 || jwks[0].KID != second.KID {
		t.Fatalf("unexpected listing %+v", jwks)
	}

	// Deactivated keys no longer hand out private material, but the stored
	// record is retained.
	if _, err := mgr.GetPrivateKeyPEM(ctx, first.KID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected deactivated key to be withheld, got %v", err)
	}
	if _, err := store.Find(ctx, first.KID); err != nil {
		t.Fatalf("deactivated key record lost: %v", err)
	}

	n, err := mgr.ActiveKeyCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 active key, got %d (%v)", n, err)
	}
	has, err := mgr.HasActiveKeys(ctx)
	if err != nil || !has {
		t.Fatalf("expected active keys, got %v (%v)", has, err)
	}
}

func TestManagerSkipsMalformedJWKs(t *testing.T) {
	t.Parallel()

	store := newMemKeyStore()
	mgr := newTestManager(t, store)
	ctx := context.Background()

	good, err := mgr.GenerateKey(ctx, "", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := store.Insert(ctx, &Record{
		KID:          "ucp_2026_broken01",
		PublicKeyJWK: `{"kid":"ucp_2026_broken01","kty":"RSA"}`,
		IsActive:     true,
		CreatedAt:    testNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed broken record: %v", err)
	}
	// Well-formed curve point but the wrong algorithm claim.
	wrongAlg, err := json.Marshal(JWK{
		KID: "ucp_2026_broken02",
		Kty: "EC", Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(make([]byte, 32)),
		Y:   base64.RawURLEncoding.EncodeToString(make([]byte, 32)),
		Use: "sig", Alg: "RS256",
	})
	if err != nil {
		t.Fatalf("encode wrong-alg JWK: %v", err)
	}
	if err := store.Insert(ctx, &Record{
		KID:          "ucp_2026_broken02",
		PublicKeyJWK: string(wrongAlg),
		IsActive:     true,
		CreatedAt:    testNow.Add(-2 * time.Hour),
	}); err != nil {
		t.Fatalf("seed wrong-alg record: %v", err)
	}

	jwks, err := mgr.GetActivePublicKeysAsJWK(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jwks) != 1 || jwks[0].KID != good.KID {
		t.Fatalf("expected only the valid JWK, got %+v", jwks)
	}
}

func TestManagerGetCurrentKey(t *testing.T) {
	t.Parallel()

	store := newMemKeyStore()
	mgr := newTestManager(t, store)
	ctx := context.Background()

	if _, err := mgr.GetCurrentKey(ctx); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected no current key, got %v", err)
	}

	older := &Record{KID: "ucp_2025_old00001", PublicKeyJWK: "{}", IsActive: true, CreatedAt: testNow.Add(-time.Hour)}
	if err := store.Insert(ctx, older); err != nil {
		t.Fatalf("seed: %v", err)
	}
	newest, err := mgr.GenerateKey(ctx, "", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	current, err := mgr.GetCurrentKey(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.KID != newest.KID {
		t.Fatalf("expected newest key %q, got %q", newest.KID, current.KID)
	}
}

func TestManagerDeleteKey(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, newMemKeyStore())
	ctx := context.Background()

	rec, err := mgr.GenerateKey(ctx, "", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := mgr.DeleteKey(ctx, rec.KID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := mgr.GetPrivateKeyPEM(ctx, rec.KID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected key gone, got %v", err)
	}
	if err := mgr.DeleteKey(ctx, rec.KID); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected not found on repeat delete, got %v", err)
	}
}
