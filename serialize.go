package ucp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Serializer converts session snapshots to and from the durable encoding
// persisted by session stores. Encode and Decode are pure and round-trip
// safe: every optional and nested field survives a Decode(Encode(s)) cycle,
// including nil/absent distinctions.
type Serializer struct {
	logger *slog.Logger
}

// NewSerializer builds a Serializer. A nil logger falls back to slog.Default.
func NewSerializer(logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serializer{logger: logger}
}

// Encode renders the snapshot as its durable encoding.
func (s *Serializer) Encode(session *CheckoutSession) ([]byte, error) {
	if session == nil {
		return nil, NewInvalidArgumentError("cannot encode a nil checkout session")
	}
	if err := validateSnapshot(session); err != nil {
		return nil, NewInvalidArgumentError("refusing to encode malformed checkout session", WithCause(err))
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, NewInvalidArgumentError("encode checkout session", WithCause(err))
	}
	return data, nil
}

// Decode parses a durable encoding back into a snapshot. Malformed input
// fails with a corrupt_data error and never yields a partially populated
// session; decode failures are a data-integrity incident and are logged at
// error severity.
func (s *Serializer) Decode(data []byte) (*CheckoutSession, error) {
	session, err := s.decode(data)
	if err != nil {
		s.logger.Error("checkout session snapshot failed to decode",
			"error", err,
			"snapshot_preview", preview(data, 200))
		return nil, NewCorruptDataError("corrupt checkout session snapshot", err)
	}
	return session, nil
}

func (s *Serializer) decode(data []byte) (*CheckoutSession, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var session CheckoutSession
	if err := dec.Decode(&session); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty snapshot")
		}
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after snapshot")
	}
	if err := validateSnapshot(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// validateSnapshot checks the structural invariants every persisted snapshot
// must hold, regardless of status.
func validateSnapshot(session *CheckoutSession) error {
	if session.ID == "" {
		return errors.New("snapshot is missing id")
	}
	if !session.Status.Valid() {
		return errors.New("snapshot has unknown status " + string(session.Status))
	}
	if session.Currency == "" {
		return errors.New("snapshot is missing currency")
	}
	for i, opt := range session.FulfillmentOptions {
		switch opt.FulfillmentType() {
		case FulfillmentTypeShipping, FulfillmentTypePickup:
		default:
			return fmt.Errorf("fulfillment option %d has unknown type %q", i, opt.FulfillmentType())
		}
	}
	return nil
}

func preview(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}
