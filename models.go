package ucp

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/runtime"
)

// CheckoutSessionStatus defines model for CheckoutSession.Status.
type CheckoutSessionStatus string

// Defines values for CheckoutSessionStatus.
const (
	CheckoutSessionStatusIncomplete       CheckoutSessionStatus = "incomplete"
	CheckoutSessionStatusReadyForComplete CheckoutSessionStatus = "ready_for_complete"
	CheckoutSessionStatusCompleted        CheckoutSessionStatus = "completed"
	CheckoutSessionStatusCanceled         CheckoutSessionStatus = "canceled"
)

// Terminal reports whether the status permits no further transitions.
func (s CheckoutSessionStatus) Terminal() bool {
	return s == CheckoutSessionStatusCompleted || s == CheckoutSessionStatusCanceled
}

// Valid reports whether the status is one of the defined values.
func (s CheckoutSessionStatus) Valid() bool {
	switch s {
	case CheckoutSessionStatusIncomplete,
		CheckoutSessionStatusReadyForComplete,
		CheckoutSessionStatusCompleted,
		CheckoutSessionStatusCanceled:
		return true
	}
	return false
}

// TotalType defines model for Total.Type.
type TotalType string

// Defines values for TotalType.
const (
	TotalTypeSubtotal    TotalType = "subtotal"
	TotalTypeDiscount    TotalType = "discount"
	TotalTypeFulfillment TotalType = "fulfillment"
	TotalTypeTax         TotalType = "tax"
	TotalTypeTotal       TotalType = "total"
)

// LinkRel defines model for Link.Rel.
type LinkRel string

// Defines values for LinkRel.
const (
	LinkRelSelf           LinkRel = "self"
	LinkRelTermsOfService LinkRel = "terms_of_service"
	LinkRelPrivacyPolicy  LinkRel = "privacy_policy"
)

// MessageType defines model for Message.Type.
type MessageType string

// Defines values for MessageType.
const (
	MessageTypeInfo  MessageType = "info"
	MessageTypeError MessageType = "error"
)

// CheckoutSession is the externally visible, versioned snapshot of a
// checkout in progress. Snapshots are derived from the underlying cart and
// are frozen once the session reaches a terminal status.
type CheckoutSession struct {
	ID                 string                `json:"id"`
	Status             CheckoutSessionStatus `json:"status"`
	Currency           string                `json:"currency"`
	ExpiresAt          *time.Time            `json:"expires_at,omitempty"`
	UCP                *UCPMeta              `json:"ucp,omitempty"`
	LineItems          []LineItem            `json:"line_items"`
	Totals             []Total               `json:"totals"`
	Buyer              *Buyer                `json:"buyer,omitempty"`
	Payment            *Payment              `json:"payment,omitempty"`
	FulfillmentOptions []FulfillmentOption   `json:"fulfillment_options"`
	Links              []Link                `json:"links"`
	Messages           []Message             `json:"messages"`
	Order              *OrderConfirmation    `json:"order,omitempty"`
}

// UCPMeta defines model for CheckoutSession.Ucp.
type UCPMeta struct {
	Version      string       `json:"version"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability defines model for UCPMeta.Capabilities.Item.
type Capability struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// LineItem defines model for CheckoutSession.LineItems.Item.
type LineItem struct {
	ID       string   `json:"id"`
	Item     ItemData `json:"item"`
	Quantity int      `json:"quantity"`
	ParentID *string  `json:"parent_id,omitempty"`
	Totals   []Total  `json:"totals,omitempty"`
}

// ItemData defines model for LineItem.Item. Price is in minor currency units.
type ItemData struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    int     `json:"price"`
	ImageURL *string `json:"image_url,omitempty"`
}

// Total defines model for Total. Amount is in minor currency units; discount
// amounts are negative.
type Total struct {
	Type        TotalType `json:"type"`
	Amount      int       `json:"amount"`
	DisplayText string    `json:"display_text,omitempty"`
}

// Buyer defines model for Buyer.
type Buyer struct {
	Email       string  `json:"email,omitempty"`
	FirstName   string  `json:"first_name,omitempty"`
	LastName    string  `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Payment declares the payment handlers available for the session. It
// describes capability, not payment state.
type Payment struct {
	Handlers []PaymentHandler `json:"handlers"`
}

// PaymentHandler defines model for Payment.Handlers.Item.
type PaymentHandler struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	Spec              *string        `json:"spec,omitempty"`
	ConfigSchema      *string        `json:"config_schema,omitempty"`
	InstrumentSchemas []string       `json:"instrument_schemas,omitempty"`
	Config            map[string]any `json:"config,omitempty"`
}

// Link defines model for Link.
type Link struct {
	Rel  LinkRel `json:"rel"`
	Href string  `json:"href"`
}

// Message defines model for Message.
type Message struct {
	Type        MessageType `json:"type"`
	Code        *string     `json:"code,omitempty"`
	Severity    *string     `json:"severity,omitempty"`
	Content     string      `json:"content"`
	Path        *string     `json:"path,omitempty"`
	ContentType *string     `json:"content_type,omitempty"`
}

// OrderConfirmation is the permanent link to the order placed when the
// session completed.
type OrderConfirmation struct {
	ID           string `json:"id"`
	PermalinkURL string `json:"permalink_url"`
}

// FulfillmentOption defines model for CheckoutSession.FulfillmentOptions.Item.
type FulfillmentOption struct {
	union json.RawMessage
}

// FulfillmentOptionShipping defines model for FulfillmentOptionShipping.
// Price is in minor currency units.
type FulfillmentOptionShipping struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	DisplayName string  `json:"display_name"`
	Carrier     *string `json:"carrier,omitempty"`
	Price       int     `json:"price"`
	IsSelected  bool    `json:"is_selected"`
}

// FulfillmentOptionPickup defines model for FulfillmentOptionPickup.
// Price is in minor currency units.
type FulfillmentOptionPickup struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	DisplayName string  `json:"display_name"`
	Address     *string `json:"address,omitempty"`
	Price       int     `json:"price"`
	IsSelected  bool    `json:"is_selected"`
}

// Fulfillment option type discriminators.
const (
	FulfillmentTypeShipping = "shipping"
	FulfillmentTypePickup   = "pickup"
)

// AsFulfillmentOptionShipping returns the union data inside the FulfillmentOption as a FulfillmentOptionShipping
func (t FulfillmentOption) AsFulfillmentOptionShipping() (FulfillmentOptionShipping, error) {
	var body FulfillmentOptionShipping
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromFulfillmentOptionShipping overwrites any union data inside the FulfillmentOption as the provided FulfillmentOptionShipping
func (t *FulfillmentOption) FromFulfillmentOptionShipping(v FulfillmentOptionShipping) error {
	v.Type = FulfillmentTypeShipping
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeFulfillmentOptionShipping performs a merge with any union data inside the FulfillmentOption, using the provided FulfillmentOptionShipping
func (t *FulfillmentOption) MergeFulfillmentOptionShipping(v FulfillmentOptionShipping) error {
	v.Type = FulfillmentTypeShipping
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// AsFulfillmentOptionPickup returns the union data inside the FulfillmentOption as a FulfillmentOptionPickup
func (t FulfillmentOption) AsFulfillmentOptionPickup() (FulfillmentOptionPickup, error) {
	var body FulfillmentOptionPickup
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromFulfillmentOptionPickup overwrites any union data inside the FulfillmentOption as the provided FulfillmentOptionPickup
func (t *FulfillmentOption) FromFulfillmentOptionPickup(v FulfillmentOptionPickup) error {
	v.Type = FulfillmentTypePickup
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// MergeFulfillmentOptionPickup performs a merge with any union data inside the FulfillmentOption, using the provided FulfillmentOptionPickup
func (t *FulfillmentOption) MergeFulfillmentOptionPickup(v FulfillmentOptionPickup) error {
	v.Type = FulfillmentTypePickup
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	merged, err := runtime.JSONMerge(t.union, b)
	t.union = merged
	return err
}

// FulfillmentType returns the union's type discriminator, or "" when unset.
func (t FulfillmentOption) FulfillmentType() string {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(t.union, &disc); err != nil {
		return ""
	}
	return disc.Type
}

// MarshalJSON serializes the underlying union for FulfillmentOption.
func (t FulfillmentOption) MarshalJSON() ([]byte, error) {
	b, err := t.union.MarshalJSON()
	return b, err
}

// UnmarshalJSON loads union data for FulfillmentOption.
func (t *FulfillmentOption) UnmarshalJSON(b []byte) error {
	err := t.union.UnmarshalJSON(b)
	return err
}

// Clone returns a deep copy of the session. Stores hand out clones so cached
// snapshots can never be mutated through a shared pointer.
func (s *CheckoutSession) Clone() *CheckoutSession {
	if s == nil {
		return nil
	}
	out := *s
	out.ExpiresAt = cloneTimePtr(s.ExpiresAt)
	if s.UCP != nil {
		meta := UCPMeta{Version: s.UCP.Version}
		meta.Capabilities = append([]Capability(nil), s.UCP.Capabilities...)
		out.UCP = &meta
	}
	if s.LineItems != nil {
		out.LineItems = make([]LineItem, len(s.LineItems))
		for i, li := range s.LineItems {
			cp := li
			cp.ParentID = cloneStringPtr(li.ParentID)
			cp.Item.ImageURL = cloneStringPtr(li.Item.ImageURL)
			if li.Totals != nil {
				cp.Totals = append([]Total(nil), li.Totals...)
			}
			out.LineItems[i] = cp
		}
	}
	if s.Totals != nil {
		out.Totals = append([]Total(nil), s.Totals...)
	}
	if s.Buyer != nil {
		b := *s.Buyer
		b.PhoneNumber = cloneStringPtr(s.Buyer.PhoneNumber)
		out.Buyer = &b
	}
	if s.Payment != nil {
		p := Payment{}
		if s.Payment.Handlers != nil {
			p.Handlers = make([]PaymentHandler, len(s.Payment.Handlers))
			for i, h := range s.Payment.Handlers {
				cp := h
				cp.Spec = cloneStringPtr(h.Spec)
				cp.ConfigSchema = cloneStringPtr(h.ConfigSchema)
				if h.InstrumentSchemas != nil {
					cp.InstrumentSchemas = append([]string(nil), h.InstrumentSchemas...)
				}
				if h.Config != nil {
					cfg := make(map[string]any, len(h.Config))
					for k, v := range h.Config {
						cfg[k] = v
					}
					cp.Config = cfg
				}
				p.Handlers[i] = cp
			}
		}
		out.Payment = &p
	}
	if s.FulfillmentOptions != nil {
		out.FulfillmentOptions = make([]FulfillmentOption, len(s.FulfillmentOptions))
		for i, fo := range s.FulfillmentOptions {
			out.FulfillmentOptions[i] = FulfillmentOption{union: append(json.RawMessage(nil), fo.union...)}
		}
	}
	if s.Links != nil {
		out.Links = append([]Link(nil), s.Links...)
	}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			cp := m
			cp.Code = cloneStringPtr(m.Code)
			cp.Severity = cloneStringPtr(m.Severity)
			cp.Path = cloneStringPtr(m.Path)
			cp.ContentType = cloneStringPtr(m.ContentType)
			out.Messages[i] = cp
		}
	}
	if s.Order != nil {
		o := *s.Order
		out.Order = &o
	}
	return &out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
