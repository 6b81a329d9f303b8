package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aeqet/ucp"
	"github.com/aeqet/ucp/keys"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("testuser"),
		pgcontainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping, could not start postgres container (is Docker running?): %s", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, db))

	cleanup := func() {
		_ = db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return db, cleanup
}

func newRecord(cartRef string) *ucp.SessionRecord {
	return &ucp.SessionRecord{
		Session: &ucp.CheckoutSession{
			ID:       "ucp_" + cartRef,
			Status:   ucp.CheckoutSessionStatusIncomplete,
			Currency: "usd",
			Totals: []ucp.Total{
				{Type: ucp.TotalTypeTotal, Amount: 2500, DisplayText: "Total"},
			},
		},
		CartRef: cartRef,
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(db, nil)
	ctx := context.Background()
	cartRef := uuid.NewString()

	rec := newRecord(cartRef)
	require.NoError(t, store.Save(ctx, rec))
	assert.Equal(t, int64(1), rec.Revision)

	got, err := store.Get(ctx, rec.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Session.ID, got.Session.ID)
	assert.Equal(t, cartRef, got.CartRef)
	assert.Equal(t, int64(1), got.Revision)
	assert.Equal(t, rec.Session.Totals, got.Session.Totals)

	id, err := store.FindByCartRef(ctx, cartRef)
	require.NoError(t, err)
	assert.Equal(t, rec.Session.ID, id)
}

func TestSessionStoreNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(db, nil)
	ctx := context.Background()

	_, err := store.Get(ctx, "ucp_missing")
	assert.ErrorIs(t, err, ucp.ErrSessionNotFound)

	_, err = store.FindByCartRef(ctx, "missing")
	assert.ErrorIs(t, err, ucp.ErrSessionNotFound)
}

func TestSessionStoreRevisionConflicts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(db, nil)
	ctx := context.Background()
	cartRef := uuid.NewString()

	require.NoError(t, store.Save(ctx, newRecord(cartRef)))

	// A second insert for the same session loses.
	err := store.Save(ctx, newRecord(cartRef))
	assert.ErrorIs(t, err, ucp.ErrSessionConflict)

	// Two readers pick up revision 1; only the first writer wins.
	first, err := store.Get(ctx, "ucp_"+cartRef)
	require.NoError(t, err)
	second, err := store.Get(ctx, "ucp_"+cartRef)
	require.NoError(t, err)

	first.Session.Status = ucp.CheckoutSessionStatusCanceled
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	second.Session.Status = ucp.CheckoutSessionStatusCompleted
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, ucp.ErrSessionConflict)

	// The winning write is what storage holds.
	got, err := store.Get(ctx, "ucp_"+cartRef)
	require.NoError(t, err)
	assert.Equal(t, ucp.CheckoutSessionStatusCanceled, got.Session.Status)
}

func TestSessionStoreDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(db, nil)
	ctx := context.Background()
	cartRef := uuid.NewString()

	rec := newRecord(cartRef)
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Delete(ctx, rec.Session.ID))

	_, err := store.Get(ctx, rec.Session.ID)
	assert.ErrorIs(t, err, ucp.ErrSessionNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, rec.Session.ID))
}

func TestKeyStoreLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		rec := &keys.Record{
			KID:                 fmt.Sprintf("ucp_2026_%08x", i),
			PublicKeyJWK:        `{"kid":"k","kty":"EC"}`,
			EncryptedPrivateKey: []byte{0x01, 0x02},
			IsActive:            true,
			CreatedAt:           now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(ctx, rec))
	}

	err := store.Insert(ctx, &keys.Record{
		KID:                 "ucp_2026_00000000",
		PublicKeyJWK:        "{}",
		EncryptedPrivateKey: []byte{0x01},
		IsActive:            true,
		CreatedAt:           now,
	})
	assert.ErrorIs(t, err, keys.ErrDuplicateKID)

	active, err := store.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	// Newest first.
	assert.Equal(t, "ucp_2026_00000002", active[0].KID)

	require.NoError(t, store.Deactivate(ctx, "ucp_2026_00000002"))
	n, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Deactivated keys stay fetchable.
	rec, err := store.Find(ctx, "ucp_2026_00000002")
	require.NoError(t, err)
	assert.False(t, rec.IsActive)

	require.NoError(t, store.Delete(ctx, "ucp_2026_00000001"))
	_, err = store.Find(ctx, "ucp_2026_00000001")
	assert.ErrorIs(t, err, keys.ErrKeyNotFound)

	err = store.Delete(ctx, "ucp_2026_00000001")
	assert.ErrorIs(t, err, keys.ErrKeyNotFound)

	err = store.Deactivate(ctx, "ucp_2026_missing1")
	assert.ErrorIs(t, err, keys.ErrKeyNotFound)
}
