package ucp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// sessionIDPrefix namespaces session ids apart from raw cart references.
	sessionIDPrefix = "ucp_"

	// defaultSessionTTL is the advisory lifetime stamped on open snapshots.
	// Expiry is never enforced here; a reaper, if wanted, is the host's job.
	defaultSessionTTL = 6 * time.Hour

	// defaultPaymentMethod is the host payment method code set on the cart
	// before order placement.
	defaultPaymentMethod = "checkmo"
)

// SessionManager orchestrates the checkout-session lifecycle: creation,
// refresh-on-read, buyer updates, completion, and cancellation. It owns the
// status transitions; everything it shows callers is derived from the live
// cart until the session reaches a terminal status, after which the snapshot
// is frozen.
//
// All operations are synchronous and local to a single call. There is no
// internal retry; storage conflicts between concurrent writers surface as
// invalid_state errors (see SessionStore).
type SessionManager struct {
	gateway   CartGateway
	converter CartConverter
	store     SessionStore
	cfg       sessionConfig
}

type sessionConfig struct {
	ttl           time.Duration
	paymentMethod string
	clock         func() time.Time
	logger        *slog.Logger
}

// SessionOption customizes the session manager.
type SessionOption func(*sessionConfig)

// WithSessionTTL overrides the advisory snapshot lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	if ttl <= 0 {
		panic("ucp: session TTL must be positive")
	}
	return func(cfg *sessionConfig) {
		cfg.ttl = ttl
	}
}

// WithDefaultPaymentMethod overrides the payment method code set on the cart
// during completion.
func WithDefaultPaymentMethod(code string) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.paymentMethod = code
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// withSessionClock provides deterministic time in tests.
func withSessionClock(fn func() time.Time) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.clock = fn
	}
}

// NewSessionManager builds a SessionManager over the host cart gateway, the
// snapshot converter, and a session store.
func NewSessionManager(gateway CartGateway, converter CartConverter, store SessionStore, opts ...SessionOption) *SessionManager {
	if gateway == nil || converter == nil || store == nil {
		panic("ucp: session manager requires a gateway, converter, and store")
	}
	cfg := sessionConfig{
		ttl:           defaultSessionTTL,
		paymentMethod: defaultPaymentMethod,
		clock:         time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &SessionManager{
		gateway:   gateway,
		converter: converter,
		store:     store,
		cfg:       cfg,
	}
}

// Create opens a checkout session for a cart reference. Create is idempotent
// per cart: if a session already exists for the cart, open or terminal, it is
// returned unchanged.
func (m *SessionManager) Create(ctx context.Context, cartRef string) (*CheckoutSession, error) {
	cartRef = strings.TrimSpace(cartRef)
	if cartRef == "" {
		return nil, NewInvalidArgumentError("cart reference is required to create a checkout session")
	}

	existingID, err := m.store.FindByCartRef(ctx, cartRef)
	switch {
	case err == nil:
		rec, err := m.store.Get(ctx, existingID)
		if err == nil {
			return rec.Session, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("load existing session %q: %w", existingID, err)
		}
		// Reverse index pointed at a vanished record; fall through and
		// create a fresh session.
		m.cfg.logger.Warn("session index entry had no record, recreating",
			"session_id", existingID, "cart_ref", cartRef)
	case !errors.Is(err, ErrSessionNotFound):
		return nil, fmt.Errorf("look up session for cart %q: %w", cartRef, err)
	}

	cartID, err := m.resolveCartRef(ctx, cartRef)
	if err != nil {
		return nil, err
	}
	cart, err := m.loadCart(ctx, cartRef, cartID)
	if err != nil {
		return nil, err
	}

	maskedRef, err := m.gateway.MaskedRef(ctx, cartID)
	if err != nil {
		m.cfg.logger.Debug("unable to derive masked cart reference, using caller reference",
			"cart_id", cartID, "error", err)
		maskedRef = cartRef
	}

	snapshot, err := m.buildSnapshot(ctx, cart, maskedRef)
	if err != nil {
		return nil, err
	}
	rec := &SessionRecord{Session: snapshot, CartRef: maskedRef}
	if err := m.store.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrSessionConflict) {
			// The cart already has a session stored under its masked
			// reference. The caller reached it through another alias, so
			// the reverse index missed; return the stored session.
			existing, getErr := m.store.Get(ctx, snapshot.ID)
			if getErr == nil {
				return existing.Session, nil
			}
			return nil, NewInvalidStateError("checkout session was modified by a concurrent request", WithCause(err))
		}
		return nil, fmt.Errorf("save session %q: %w", snapshot.ID, err)
	}
	return snapshot, nil
}

// Get returns the session, refreshed from the live cart when the session is
// open. Terminal sessions are returned frozen, exactly as stored.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	rec, err := m.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Session.Status.Terminal() {
		return rec.Session, nil
	}
	return m.refresh(ctx, rec)
}

// Update applies the buyer fields present in patch onto the live cart, then
// rebuilds the snapshot. Absent fields are left untouched; present-but-empty
// fields are ignored, never cleared.
func (m *SessionManager) Update(ctx context.Context, sessionID string, patch SessionPatch) (*CheckoutSession, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	rec, err := m.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch rec.Session.Status {
	case CheckoutSessionStatusCompleted:
		return nil, NewInvalidStateError("cannot update a completed checkout session")
	case CheckoutSessionStatusCanceled:
		return nil, NewInvalidStateError("cannot update a canceled checkout session")
	}

	_, cart, err := m.cartForRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	applyBuyerPatch(cart, patch.Buyer)
	if err := m.gateway.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart %q: %w", cart.ID, err)
	}

	snapshot, err := m.buildSnapshot(ctx, cart, rec.CartRef)
	if err != nil {
		return nil, err
	}
	rec.Session = snapshot
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Complete places an order from the cart and transitions the session to
// completed. Complete is idempotent once reached: repeated calls return the
// stored order confirmation without placing a new order. Any placement
// failure surfaces as checkout_failed with the cause attached, and the
// session stays in its prior open state.
func (m *SessionManager) Complete(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	rec, err := m.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch rec.Session.Status {
	case CheckoutSessionStatusCompleted:
		return rec.Session, nil
	case CheckoutSessionStatusCanceled:
		return nil, NewInvalidStateError("cannot complete a canceled checkout session")
	}

	cartID, cart, err := m.cartForRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	cart.PaymentMethod = m.cfg.paymentMethod
	if err := m.gateway.SaveCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart %q: %w", cart.ID, err)
	}

	snapshot, err := m.buildSnapshot(ctx, cart, rec.CartRef)
	if err != nil {
		return nil, err
	}
	rec.Session = snapshot
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}

	placement, err := m.gateway.PlaceOrder(ctx, cartID)
	if err != nil {
		m.cfg.logger.Error("order placement failed",
			"session_id", sessionID, "cart_id", cartID, "error", err)
		return nil, NewCheckoutFailedError("failed to complete checkout", err)
	}

	snapshot.Status = CheckoutSessionStatusCompleted
	snapshot.Order = &OrderConfirmation{
		ID:           placement.ID,
		PermalinkURL: placement.PermalinkURL,
	}
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Cancel transitions the session to canceled, freezing the stored snapshot.
// Cancel is idempotent once reached. The underlying cart is left untouched.
func (m *SessionManager) Cancel(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	rec, err := m.loadRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch rec.Session.Status {
	case CheckoutSessionStatusCompleted:
		return nil, NewInvalidStateError("cannot cancel a completed checkout session")
	case CheckoutSessionStatusCanceled:
		return rec.Session, nil
	}

	rec.Session.Status = CheckoutSessionStatusCanceled
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Session, nil
}

// refresh rebuilds an open session's snapshot from the live cart and
// persists it.
func (m *SessionManager) refresh(ctx context.Context, rec *SessionRecord) (*CheckoutSession, error) {
	_, cart, err := m.cartForRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	snapshot, err := m.buildSnapshot(ctx, cart, rec.CartRef)
	if err != nil {
		return nil, err
	}
	rec.Session = snapshot
	if err := m.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// buildSnapshot converts the cart and stamps the lifecycle fields the
// manager owns: id, derived status, and advisory expiry.
func (m *SessionManager) buildSnapshot(ctx context.Context, cart *Cart, maskedRef string) (*CheckoutSession, error) {
	snapshot, err := m.converter.Convert(ctx, cart, maskedRef)
	if err != nil {
		return nil, fmt.Errorf("convert cart %q: %w", cart.ID, err)
	}
	snapshot.ID = sessionIDPrefix + maskedRef
	snapshot.Status = DeriveStatus(cart)
	expiresAt := m.cfg.clock().Add(m.cfg.ttl).UTC()
	snapshot.ExpiresAt = &expiresAt
	return snapshot, nil
}

// resolveCartRef converts a masked reference to the internal cart id,
// falling back to all-numeric references as raw ids.
func (m *SessionManager) resolveCartRef(ctx context.Context, cartRef string) (string, error) {
	cartID, err := m.gateway.ResolveMasked(ctx, cartRef)
	if err == nil && cartID != "" {
		return cartID, nil
	}
	m.cfg.logger.Debug("unable to resolve masked cart reference, trying numeric",
		"cart_ref", cartRef, "error", err)
	if isNumeric(cartRef) {
		return cartRef, nil
	}
	return "", NewNotFoundError(fmt.Sprintf("cart with reference %q does not exist", cartRef))
}

func (m *SessionManager) loadCart(ctx context.Context, cartRef, cartID string) (*Cart, error) {
	cart, err := m.gateway.Cart(ctx, cartID)
	if err != nil {
		if IsNotFound(err) {
			m.cfg.logger.Warn("cart not found", "cart_ref", cartRef, "cart_id", cartID)
			return nil, NewNotFoundError(fmt.Sprintf("cart with reference %q does not exist", cartRef), WithCause(err))
		}
		return nil, fmt.Errorf("load cart %q: %w", cartID, err)
	}
	return cart, nil
}

// cartForRecord resolves and loads the live cart behind a stored session.
func (m *SessionManager) cartForRecord(ctx context.Context, rec *SessionRecord) (string, *Cart, error) {
	cartID, err := m.resolveCartRef(ctx, rec.CartRef)
	if err != nil {
		return "", nil, err
	}
	cart, err := m.loadCart(ctx, rec.CartRef, cartID)
	if err != nil {
		return "", nil, err
	}
	return cartID, cart, nil
}

func (m *SessionManager) loadRecord(ctx context.Context, sessionID string) (*SessionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, NewInvalidArgumentError("checkout session id is required")
	}
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("checkout session %q does not exist", sessionID))
		}
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}
	return rec, nil
}

// saveRecord persists the record, translating storage conflicts into the
// caller-facing conflict error. The losing write is discarded.
func (m *SessionManager) saveRecord(ctx context.Context, rec *SessionRecord) error {
	if err := m.store.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrSessionConflict) {
			return NewInvalidStateError("checkout session was modified by a concurrent request", WithCause(err))
		}
		return fmt.Errorf("save session %q: %w", rec.Session.ID, err)
	}
	return nil
}

// applyBuyerPatch writes the non-empty buyer fields onto the cart's customer
// and billing-address records.
func applyBuyerPatch(cart *Cart, patch *BuyerPatch) {
	if patch == nil {
		return
	}
	if patch.Email != "" {
		cart.CustomerEmail = patch.Email
	}
	if patch.FirstName != "" {
		cart.CustomerFirstName = patch.FirstName
	}
	if patch.LastName != "" {
		cart.CustomerLastName = patch.LastName
	}
	if cart.Billing == nil {
		return
	}
	if patch.Email != "" {
		cart.Billing.Email = patch.Email
	}
	if patch.FirstName != "" {
		cart.Billing.FirstName = patch.FirstName
	}
	if patch.LastName != "" {
		cart.Billing.LastName = patch.LastName
	}
	if patch.PhoneNumber != "" {
		cart.Billing.Telephone = patch.PhoneNumber
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
