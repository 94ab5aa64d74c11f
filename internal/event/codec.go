package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drblury/stocksync/internal/jsoncodec"
)

var (
	// ErrMalformedPayload marks bytes that are not valid envelope JSON, or an
	// envelope whose payload variant does not match its kind tag. Such a
	// message can never succeed and must be rejected without requeue.
	ErrMalformedPayload = errors.New("event: malformed payload")

	// ErrUnknownEventKind marks an envelope whose kind tag is unrecognised,
	// or absent without a readable bare order payload.
	ErrUnknownEventKind = errors.New("event: unknown event kind")
)

// Encode serialises the envelope into its wire form. It fails only when the
// envelope's payload does not match its kind, so encoding a well-formed
// domain event never fails.
func Encode(env Envelope) ([]byte, error) {
	if err := checkPayload(env); err != nil {
		return nil, err
	}
	return jsoncodec.Marshal(env)
}

// Decode parses wire bytes into an Envelope.
//
// A body without a kind tag is tolerated for compatibility with the legacy
// producer, which serialised the order snapshot directly: if the body (or its
// "pedido" field) reads as an order, it is returned as a legacy order-created
// envelope. Everything else without a recognisable kind is rejected.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := jsoncodec.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if env.Kind == "" {
		return decodeLegacy(data, env)
	}

	if !env.Kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}
	if err := checkPayload(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func decodeLegacy(data []byte, env Envelope) (Envelope, error) {
	// Wrapper without a tag but with a pedido field.
	if env.Order != nil {
		env.Kind = KindOrderCreated
		env.Legacy = true
		return env, nil
	}

	// Bare order snapshot at the top level.
	var order OrderSnapshot
	if err := jsoncodec.Unmarshal(data, &order); err == nil && !order.isZero() {
		return Envelope{
			Kind:   KindOrderCreated,
			Order:  &order,
			SentAt: env.SentAt,
			Legacy: true,
		}, nil
	}

	return Envelope{}, fmt.Errorf("%w: kind tag absent", ErrUnknownEventKind)
}

func (o OrderSnapshot) isZero() bool {
	return o.OrderID == 0 && o.CustomerName == "" && len(o.Items) == 0
}

// checkPayload enforces the envelope invariant: the kind tag determines which
// payload variant is present.
func checkPayload(env Envelope) error {
	var want, got string
	switch {
	case env.Kind.IsOrder():
		if env.Order != nil && env.Product == nil && env.ProductID == nil {
			return nil
		}
		want = "pedido"
	case env.Kind == KindProductCreated || env.Kind == KindProductUpdated:
		if env.Product != nil && env.Order == nil && env.ProductID == nil {
			return nil
		}
		want = "produto"
	case env.Kind == KindProductRemoved:
		if env.ProductID != nil && env.Order == nil && env.Product == nil {
			return nil
		}
		want = "produtoId"
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, env.Kind)
	}

	var present []string
	if env.Order != nil {
		present = append(present, "pedido")
	}
	if env.Product != nil {
		present = append(present, "produto")
	}
	if env.ProductID != nil {
		present = append(present, "produtoId")
	}
	got = "none"
	if len(present) > 0 {
		got = strings.Join(present, "+")
	}
	return fmt.Errorf("%w: kind %q requires payload %q, have %q", ErrMalformedPayload, env.Kind, want, got)
}
