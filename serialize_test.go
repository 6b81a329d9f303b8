package ucp

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func testSerializer() *Serializer {
	return NewSerializer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleSession(t *testing.T) *CheckoutSession {
	t.Helper()

	expiresAt := time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)
	var shipping FulfillmentOption
	if err := shipping.FromFulfillmentOptionShipping(FulfillmentOptionShipping{
		ID:          "flatrate_flatrate",
		DisplayName: "Flat Rate",
		Price:       500,
		IsSelected:  true,
	}); err != nil {
		t.Fatalf("build shipping option: %v", err)
	}
	var pickup FulfillmentOption
	if err := pickup.FromFulfillmentOptionPickup(FulfillmentOptionPickup{
		ID:          "store_pickup",
		DisplayName: "Pick up in store",
	}); err != nil {
		t.Fatalf("build pickup option: %v", err)
	}

	code := "missing_address"
	return &CheckoutSession{
		ID:        "ucp_m7",
		Status:    CheckoutSessionStatusIncomplete,
		Currency:  "usd",
		ExpiresAt: &expiresAt,
		UCP: &UCPMeta{
			Version: Version,
			Capabilities: []Capability{
				{Name: "dev.ucp.shopping.checkout", Version: Version},
			},
		},
		LineItems: []LineItem{
			{
				ID:       "item_1",
				Item:     ItemData{ID: "sku_1", Title: "Widget", Price: 2000},
				Quantity: 1,
				Totals: []Total{
					{Type: TotalTypeSubtotal, Amount: 2000, DisplayText: "Subtotal"},
				},
			},
		},
		Totals: []Total{
			{Type: TotalTypeSubtotal, Amount: 2000, DisplayText: "Subtotal"},
			{Type: TotalTypeFulfillment, Amount: 500, DisplayText: "Shipping"},
			{Type: TotalTypeTotal, Amount: 2500, DisplayText: "Total"},
		},
		Buyer: &Buyer{
			Email:     "buyer@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
		},
		FulfillmentOptions: []FulfillmentOption{shipping, pickup},
		Messages: []Message{
			{Type: MessageTypeError, Code: &code, Content: "shipping address required"},
		},
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	t.Parallel()

	tests := map[string]func(t *testing.T) *CheckoutSession{
		"full session": sampleSession,
		"minimal session": func(t *testing.T) *CheckoutSession {
			return &CheckoutSession{
				ID:       "ucp_m9",
				Status:   CheckoutSessionStatusCanceled,
				Currency: "eur",
			}
		},
		"completed session": func(t *testing.T) *CheckoutSession {
			session := sampleSession(t)
			session.Status = CheckoutSessionStatusCompleted
			session.Order = &OrderConfirmation{
				ID:           "100000042",
				PermalinkURL: "https://shop.example.com/orders/100000042",
			}
			return session
		},
	}

	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := testSerializer()
			original := build(t)
			encoded, err := s.Encode(original)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := s.Decode(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(original, decoded) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, original)
			}
		})
	}
}

func TestSerializerEncodeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]*CheckoutSession{
		"nil session":    nil,
		"missing id":     {Status: CheckoutSessionStatusIncomplete, Currency: "usd"},
		"bogus status":   {ID: "ucp_m7", Status: "on_hold", Currency: "usd"},
		"empty currency": {ID: "ucp_m7", Status: CheckoutSessionStatusIncomplete},
	}

	for name, session := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := testSerializer().Encode(session); CodeOf(err) != CodeInvalidArgument {
				t.Fatalf("expected invalid_argument, got %v", err)
			}
		})
	}
}

func TestSerializerDecodeRejectsCorrupt(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty":           "",
		"truncated":       `{"id":"ucp_m7","status":`,
		"unknown field":   `{"id":"ucp_m7","status":"incomplete","currency":"usd","surprise":1}`,
		"trailing data":   `{"id":"ucp_m7","status":"incomplete","currency":"usd"}{}`,
		"invalid status":  `{"id":"ucp_m7","status":"on_hold","currency":"usd"}`,
		"missing id":      `{"status":"incomplete","currency":"usd"}`,
		"not even object": `[1,2,3]`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := testSerializer().Decode([]byte(data)); CodeOf(err) != CodeCorruptData {
				t.Fatalf("expected corrupt_data, got %v", err)
			}
		})
	}
}
