package ucp

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors returned by SessionStore implementations.
var (
	// ErrSessionNotFound reports that no record matches the lookup key.
	ErrSessionNotFound = errors.New("checkout session not found")

	// ErrSessionConflict reports a failed compare-and-swap: the stored
	// revision no longer matches the one the caller read. The losing write
	// is discarded, never merged.
	ErrSessionConflict = errors.New("checkout session was modified concurrently")
)

// SessionRecord couples a snapshot with its reverse-lookup key and its
// optimistic-concurrency revision.
type SessionRecord struct {
	Session *CheckoutSession

	// CartRef is the masked cart reference the session was created from.
	// A cart reference maps to at most one session for the session's
	// lifetime.
	CartRef string

	// Revision is the compare-and-swap token. Zero means the record has
	// never been persisted; Save increments it on success.
	Revision int64
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	return &SessionRecord{
		Session:  r.Session.Clone(),
		CartRef:  r.CartRef,
		Revision: r.Revision,
	}
}

// SessionStore persists checkout-session records with two consistent lookup
// directions: session id to record, and cart reference to session id. Every
// Save updates both.
//
// Save is conditional: the record's Revision must equal the stored revision
// (zero for a first insert) or Save fails with ErrSessionConflict. Concurrent
// writers therefore fail fast instead of silently overwriting each other.
type SessionStore interface {
	// Get returns the record for a session id, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)

	// FindByCartRef returns the session id indexed under the cart
	// reference, or ErrSessionNotFound when the cart has no session.
	FindByCartRef(ctx context.Context, cartRef string) (string, error)

	// Save persists the record under both lookup keys atomically and, on
	// success, increments rec.Revision.
	Save(ctx context.Context, rec *SessionRecord) error

	// Delete removes the record and its reverse-index entry. Deleting an
	// absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// CachedSessionStore decorates a SessionStore with a process-local read
// cache. The cache is a same-process accelerator only: it is refreshed on
// every Save, evicted on Delete, and hands out clones so a cached snapshot
// can never be mutated through a shared pointer. It is not safe to treat as
// a source of truth across multiple service instances.
type CachedSessionStore struct {
	inner SessionStore

	mu        sync.RWMutex
	byID      map[string]*SessionRecord
	byCartRef map[string]string
}

// NewCachedSessionStore wraps inner with a process-local cache.
func NewCachedSessionStore(inner SessionStore) *CachedSessionStore {
	return &CachedSessionStore{
		inner:     inner,
		byID:      make(map[string]*SessionRecord),
		byCartRef: make(map[string]string),
	}
}

// Get implements SessionStore.
func (c *CachedSessionStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	c.mu.RLock()
	rec, ok := c.byID[sessionID]
	c.mu.RUnlock()
	if ok {
		return rec.Clone(), nil
	}

	rec, err := c.inner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.remember(rec)
	return rec.Clone(), nil
}

// FindByCartRef implements SessionStore.
func (c *CachedSessionStore) FindByCartRef(ctx context.Context, cartRef string) (string, error) {
	c.mu.RLock()
	id, ok := c.byCartRef[cartRef]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := c.inner.FindByCartRef(ctx, cartRef)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.byCartRef[cartRef] = id
	c.mu.Unlock()
	return id, nil
}

// Save implements SessionStore. The cache entry is replaced only after the
// durable write succeeds, so a conflicting write never leaves the cache
// ahead of storage.
func (c *CachedSessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	if err := c.inner.Save(ctx, rec); err != nil {
		return err
	}
	c.remember(rec)
	return nil
}

// Delete implements SessionStore. Both cache directions are evicted.
func (c *CachedSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := c.inner.Delete(ctx, sessionID); err != nil {
		return err
	}
	c.mu.Lock()
	if rec, ok := c.byID[sessionID]; ok {
		delete(c.byCartRef, rec.CartRef)
	}
	for ref, id := range c.byCartRef {
		if id == sessionID {
			delete(c.byCartRef, ref)
		}
	}
	delete(c.byID, sessionID)
	c.mu.Unlock()
	return nil
}

func (c *CachedSessionStore) remember(rec *SessionRecord) {
	clone := rec.Clone()
	c.mu.Lock()
	c.byID[clone.Session.ID] = clone
	c.byCartRef[clone.CartRef] = clone.Session.ID
	c.mu.Unlock()
}
