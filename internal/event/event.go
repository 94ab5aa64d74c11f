// Package event defines the tagged envelope exchanged between the sales and
// stock services, and the codec that reads and writes its wire form.
//
// The wire format is UTF-8 JSON with the field names the original services
// agreed on (tipoEvento, pedido, produto, dataEnvio). Field matching is
// case-insensitive on decode to tolerate producer/consumer skew.
package event

import "time"

// Kind tags an envelope with the event it carries. The tag determines which
// payload variant must be present.
type Kind string

const (
	KindOrderCreated   Kind = "PEDIDO_CRIADO"
	KindOrderUpdated   Kind = "PEDIDO_ATUALIZADO"
	KindOrderDeleted   Kind = "PEDIDO_DELETADO"
	KindOrderResent    Kind = "PEDIDO_REENVIADO"
	KindProductCreated Kind = "PRODUTO_CRIADO"
	KindProductUpdated Kind = "PRODUTO_ATUALIZADO"
	KindProductRemoved Kind = "PRODUTO_REMOVIDO"
)

// Valid reports whether k is one of the recognised event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOrderCreated, KindOrderUpdated, KindOrderDeleted, KindOrderResent,
		KindProductCreated, KindProductUpdated, KindProductRemoved:
		return true
	}
	return false
}

// IsOrder reports whether k carries an order snapshot.
func (k Kind) IsOrder() bool {
	switch k {
	case KindOrderCreated, KindOrderUpdated, KindOrderDeleted, KindOrderResent:
		return true
	}
	return false
}

// OrderItem is one line of an order: which product and how many units.
type OrderItem struct {
	ProductID int64 `json:"produtoId"`
	Quantity  int   `json:"quantidade"`
}

// OrderSnapshot is the order state carried on the wire. Items is non-empty on
// creation and may be empty on a delete notification.
type OrderSnapshot struct {
	OrderID      int64       `json:"pedidoId"`
	CustomerName string      `json:"clienteNome"`
	Items        []OrderItem `json:"itens"`
}

// ProductSnapshot is the product state carried on product lifecycle events.
type ProductSnapshot struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nome"`
	Description string  `json:"descricao"`
	Price       float64 `json:"preco"`
	Quantity    int     `json:"quantidade"`
}

// Envelope is the outer wrapper transported through the broker. Exactly one
// payload field is set, matching Kind. An envelope is created at publish
// time, transported once and discarded after ack or terminal reject.
type Envelope struct {
	Kind      Kind             `json:"tipoEvento,omitempty"`
	Order     *OrderSnapshot   `json:"pedido,omitempty"`
	Product   *ProductSnapshot `json:"produto,omitempty"`
	ProductID *int64           `json:"produtoId,omitempty"`
	SentAt    time.Time        `json:"dataEnvio"`

	// Legacy marks envelopes reconstructed from a bare order payload that
	// carried no kind tag. Not part of the wire format.
	Legacy bool `json:"-"`
}

// NewOrderEnvelope wraps an order snapshot under the given kind.
func NewOrderEnvelope(kind Kind, order OrderSnapshot, sentAt time.Time) Envelope {
	return Envelope{Kind: kind, Order: &order, SentAt: sentAt}
}

// NewProductEnvelope wraps a product snapshot under the given kind.
func NewProductEnvelope(kind Kind, product ProductSnapshot, sentAt time.Time) Envelope {
	return Envelope{Kind: kind, Product: &product, SentAt: sentAt}
}

// NewProductRemovedEnvelope announces that a product no longer exists.
func NewProductRemovedEnvelope(productID int64, sentAt time.Time) Envelope {
	return Envelope{Kind: KindProductRemoved, ProductID: &productID, SentAt: sentAt}
}
