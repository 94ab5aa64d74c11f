package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/logging"
)

const maxCustomerNameLen = 100

var (
	// ErrInvalidOrder marks a request rejected by validation.
	ErrInvalidOrder = errors.New("sales: invalid order")

	// ErrProductNotFound is returned when an ordered product does not exist
	// in the stock service.
	ErrProductNotFound = errors.New("sales: product not found in stock")

	// ErrInsufficientStock is returned when an ordered quantity exceeds the
	// available stock.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
)

// OrderPublisher sends order events to the broker.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, kind event.Kind, order event.OrderSnapshot) error
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID int64 `json:"produtoId"`
	Quantity  int   `json:"quantidade"`
}

// OrderInput is the payload for creating or updating an order.
type OrderInput struct {
	CustomerName string      `json:"clienteNome"`
	Items        []ItemInput `json:"itens"`
}

// Service implements the order operations. Writes commit to the local store
// first; the matching event is published afterwards, and a publish failure
// is logged but never rolls the write back.
type Service struct {
	store     *OrderStore
	stock     StockChecker
	publisher OrderPublisher
	log       logging.ServiceLogger

	now func() time.Time
}

func NewService(store *OrderStore, stock StockChecker, publisher OrderPublisher, log logging.ServiceLogger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, stock: stock, publisher: publisher, log: log, now: time.Now}
}

// CreateOrder validates the request against current stock, persists the order
// and publishes its creation event.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return Order{}, fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	if len(name) > maxCustomerNameLen {
		return Order{}, fmt.Errorf("%w: customer name exceeds %d characters", ErrInvalidOrder, maxCustomerNameLen)
	}

	items, err := s.buildItems(ctx, input.Items)
	if err != nil {
		return Order{}, err
	}

	order := s.store.Insert(Order{
		CustomerName: name,
		Items:        items,
		PlacedAt:     s.now().UTC(),
	})
	s.log.Info("order created", logging.LogFields{"order_id": order.ID, "items": len(order.Items)})

	s.publishEvent(ctx, event.KindOrderCreated, order.Snapshot())
	return order, nil
}

// UpdateOrder replaces the items of an existing order, re-validating them
// against stock. An empty customer name keeps the stored one.
func (s *Service) UpdateOrder(ctx context.Context, id int64, input OrderInput) (Order, error) {
	existing, err := s.store.Get(id)
	if err != nil {
		return Order{}, err
	}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = existing.CustomerName
	}
	if len(name) > maxCustomerNameLen {
		return Order{}, fmt.Errorf("%w: customer name exceeds %d characters", ErrInvalidOrder, maxCustomerNameLen)
	}

	items, err := s.buildItems(ctx, input.Items)
	if err != nil {
		return Order{}, err
	}

	existing.CustomerName = name
	existing.Items = items
	if err := s.store.Update(existing); err != nil {
		return Order{}, err
	}
	s.log.Info("order updated", logging.LogFields{"order_id": existing.ID, "items": len(existing.Items)})

	s.publishEvent(ctx, event.KindOrderUpdated, existing.Snapshot())
	return existing, nil
}

// DeleteOrder removes the order and publishes a deletion event carrying an
// empty item list, which the stock side acknowledges as a no-op.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	order, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	s.log.Info("order deleted", logging.LogFields{"order_id": order.ID})

	s.publishEvent(ctx, event.KindOrderDeleted, event.OrderSnapshot{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Items:        []event.OrderItem{},
	})
	return nil
}

// ResendOrder republishes an existing order as a resend event. Because the
// stock side applies every order event, resending decrements stock again.
func (s *Service) ResendOrder(ctx context.Context, id int64) error {
	order, err := s.store.Get(id)
	if err != nil {
		return err
	}
	s.log.Info("order resent", logging.LogFields{"order_id": order.ID})

	s.publishEvent(ctx, event.KindOrderResent, order.Snapshot())
	return nil
}

func (s *Service) GetOrder(id int64) (Order, error) {
	return s.store.Get(id)
}

func (s *Service) ListOrders(limit int) []Order {
	return s.store.List(limit)
}

// buildItems validates each requested line against the stock service and
// prices it with the current product price.
func (s *Service) buildItems(ctx context.Context, inputs []ItemInput) ([]OrderItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}

	items := make([]OrderItem, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity must be positive", ErrInvalidOrder, in.ProductID)
		}

		product, err := s.stock.Product(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, in.ProductID)
		}
		if product.Quantity < in.Quantity {
			return nil, fmt.Errorf("%w: product %d has %d, requested %d",
				ErrInsufficientStock, in.ProductID, product.Quantity, in.Quantity)
		}

		items = append(items, OrderItem{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Total:     float64(in.Quantity) * product.Price,
		})
	}
	return items, nil
}

func (s *Service) publishEvent(ctx context.Context, kind event.Kind, snapshot event.OrderSnapshot) {
	if err := s.publisher.PublishOrder(ctx, kind, snapshot); err != nil {
		s.log.Error("order event not published, local state kept", err, logging.LogFields{
			"order_id":   snapshot.OrderID,
			"event_kind": string(kind),
		})
	}
}
