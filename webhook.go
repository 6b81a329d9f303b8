package ucp

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	canonicaljson "github.com/gibson042/canonicaljson-go"

	"github.com/aeqet/ucp/keys"
)

// WebhookEventType enumerates the supported checkout webhook events.
type WebhookEventType string

const (
	WebhookEventTypeOrderCreated WebhookEventType = "order_created"
	WebhookEventTypeOrderUpdated WebhookEventType = "order_updated"
)

// EventDataType labels the payload for a webhook event.
type EventDataType string

const (
	EventDataTypeOrder EventDataType = "order"
)

// OrderStatus defines model for webhook order data status.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

// RefundType captures the source of refunded funds.
type RefundType string

const (
	RefundTypeStoreCredit     RefundType = "store_credit"
	RefundTypeOriginalPayment RefundType = "original_payment"
)

// Refund describes a refund emitted in webhook events.
type Refund struct {
	Type   RefundType `json:"type"`
	Amount int        `json:"amount"`
}

// EventData is implemented by webhook payloads.
type EventData interface {
	eventType() WebhookEventType
}

// OrderCreated emits order data after the order is placed.
type OrderCreated struct {
	Type              EventDataType `json:"type"`
	CheckoutSessionID string        `json:"checkout_session_id"`
	PermalinkURL      string        `json:"permalink_url"`
	Status            OrderStatus   `json:"status"`
	Refunds           []Refund      `json:"refunds"`
}

func (OrderCreated) eventType() WebhookEventType { return WebhookEventTypeOrderCreated }

// OrderUpdated emits order data whenever the order status changes.
type OrderUpdated struct {
	Type              EventDataType `json:"type"`
	CheckoutSessionID string        `json:"checkout_session_id"`
	PermalinkURL      string        `json:"permalink_url"`
	Status            OrderStatus   `json:"status"`
	Refunds           []Refund      `json:"refunds"`
}

func (OrderUpdated) eventType() WebhookEventType { return WebhookEventTypeOrderUpdated }

type webhookEvent struct {
	Type WebhookEventType `json:"type"`
	Data any              `json:"data"`
}

// WebhookSigner signs webhook payloads with the current ES256 signing key.
// The signing input is `RFC3339(timestamp) + "." + canonicalJSON(body)` and
// the signature is the raw R||S pair, base64url-encoded without padding.
type WebhookSigner struct {
	manager *keys.Manager
	clock   func() time.Time
}

// NewWebhookSigner builds a signer over the key manager.
func NewWebhookSigner(manager *keys.Manager) *WebhookSigner {
	if manager == nil {
		panic("ucp: webhook signer requires a key manager")
	}
	return &WebhookSigner{manager: manager, clock: time.Now}
}

// WebhookSignature is the result of signing a payload: the headers a sender
// attaches to the outgoing request.
type WebhookSignature struct {
	KID       string
	Timestamp time.Time
	Signature string
}

// Sign canonicalizes the payload and signs it with the current active key.
func (s *WebhookSigner) Sign(ctx context.Context, payload []byte) (*WebhookSignature, error) {
	current, err := s.manager.GetCurrentKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("ucp: no signing key available: %w", err)
	}
	private, err := s.manager.SigningKey(ctx, current.KID)
	if err != nil {
		return nil, fmt.Errorf("ucp: load signing key %q: %w", current.KID, err)
	}

	canonical, err := canonicalizeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("ucp: canonicalize webhook payload: %w", err)
	}
	ts := s.clock().UTC()
	digest := sha256.Sum256(buildSigningInput(ts, canonical))

	r, sv, err := ecdsa.Sign(rand.Reader, private, digest[:])
	if err != nil {
		return nil, fmt.Errorf("ucp: sign webhook payload: %w", err)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	sv.FillBytes(sig[32:])

	return &WebhookSignature{
		KID:       current.KID,
		Timestamp: ts,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// buildSigningInput constructs the byte string that is hashed and signed.
func buildSigningInput(ts time.Time, canonicalBody []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte('.')
	buf.Write(canonicalBody)
	return buf.Bytes()
}

// canonicalizeJSON normalizes arbitrary JSON into canonical form for signing.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("null"), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("multiple JSON documents in payload")
	}
	return canonicaljson.Marshal(payload)
}

// WebhookSender posts signed webhook events to a configured endpoint.
type WebhookSender struct {
	endpoint string
	signer   *WebhookSigner
	client   *http.Client
}

// NewWebhookSender builds a sender. A nil client falls back to
// http.DefaultClient.
func NewWebhookSender(endpoint string, signer *WebhookSigner, client *http.Client) *WebhookSender {
	if endpoint == "" {
		panic("ucp: webhook sender requires an endpoint")
	}
	if signer == nil {
		panic("ucp: webhook sender requires a signer")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSender{endpoint: endpoint, signer: signer, client: client}
}

// Send signs and posts a webhook event, failing on any non-2xx response.
func (w *WebhookSender) Send(ctx context.Context, data EventData) error {
	body, err := json.Marshal(webhookEvent{
		Type: data.eventType(),
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("ucp: marshal webhook payload: %w", err)
	}
	sig, err := w.signer.Sign(ctx, body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ucp: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", sig.Signature)
	req.Header.Set("Timestamp", sig.Timestamp.Format(time.RFC3339))
	req.Header.Set("Kid", sig.KID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("ucp: send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ucp: webhook endpoint %s returned %s: %s", w.endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}
