package ucp

import "context"

// Cart mirrors the host commerce system's mutable pre-order object, narrowed
// to the fields the session manager reads and writes. The host's cart gateway
// owns the full entity; this is the exchange shape at the boundary.
type Cart struct {
	ID       string
	Currency string

	// Virtual is true when the cart contains only digital goods; virtual
	// carts have no shipping requirements.
	Virtual bool

	CustomerEmail     string
	CustomerFirstName string
	CustomerLastName  string

	Billing  *CartAddress
	Shipping *CartAddress

	// ShippingMethod is the host's chosen rate code, empty until selected.
	ShippingMethod string

	// PaymentMethod is the host payment method code set before order placement.
	PaymentMethod string
}

// CartAddress is a host billing or shipping address.
type CartAddress struct {
	FirstName  string
	LastName   string
	Email      string
	Telephone  string
	Street     []string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// StreetLine returns the 1-based street line, or "" when absent.
func (a *CartAddress) StreetLine(n int) string {
	if a == nil || n < 1 || n > len(a.Street) {
		return ""
	}
	return a.Street[n-1]
}

// OrderPlacement is the host system's answer to a successful order placement.
type OrderPlacement struct {
	ID           string
	PermalinkURL string
}

// CartGateway is the host commerce system boundary. Implementations resolve
// cart references, load and persist carts, and place orders. All methods are
// blocking host calls; callers impose their own timeouts via ctx.
type CartGateway interface {
	// ResolveMasked converts an opaque masked cart reference to the internal
	// cart id. A failed resolution returns an error; the session manager
	// falls back to treating all-numeric references as raw ids.
	ResolveMasked(ctx context.Context, maskedRef string) (string, error)

	// MaskedRef returns the opaque external alias for an internal cart id.
	MaskedRef(ctx context.Context, cartID string) (string, error)

	// Cart loads the live cart. Returns an error satisfying IsNotFound for
	// unknown ids.
	Cart(ctx context.Context, cartID string) (*Cart, error)

	// SaveCart persists cart mutations back to the host system.
	SaveCart(ctx context.Context, cart *Cart) error

	// PlaceOrder converts the cart into an order. Totals are collected and
	// inventory committed host-side; any failure leaves the cart intact.
	PlaceOrder(ctx context.Context, cartID string) (*OrderPlacement, error)
}

// CartConverter builds the session snapshot body (line items, totals, buyer,
// payment handlers, fulfillment options, links) from a live cart. The session
// manager stamps lifecycle fields afterwards: ID, Status, and ExpiresAt.
type CartConverter interface {
	Convert(ctx context.Context, cart *Cart, maskedRef string) (*CheckoutSession, error)
}

// DeriveStatus computes the open-session status from the live cart. It is
// recomputed on every snapshot build and never stored as independent truth;
// terminal sessions are frozen before this runs. A cart is ready for
// completion once it has a buyer email and a billing street line, plus a
// shipping street line and chosen shipping method when physical goods are
// present.
func DeriveStatus(cart *Cart) CheckoutSessionStatus {
	hasEmail := cart.CustomerEmail != ""
	hasBilling := cart.Billing.StreetLine(1) != ""

	if cart.Virtual {
		if hasEmail && hasBilling {
			return CheckoutSessionStatusReadyForComplete
		}
		return CheckoutSessionStatusIncomplete
	}

	hasShipping := cart.Shipping.StreetLine(1) != ""
	if hasEmail && hasBilling && hasShipping && cart.ShippingMethod != "" {
		return CheckoutSessionStatusReadyForComplete
	}
	return CheckoutSessionStatusIncomplete
}
