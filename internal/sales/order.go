package sales

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/drblury/stocksync/internal/event"
)

// ErrOrderNotFound is returned when an order ID does not exist in the store.
var ErrOrderNotFound = errors.New("sales: order not found")

// OrderItem is one line of an order. Total is the quantity times the product
// price at the time the order was placed.
type OrderItem struct {
	ProductID int64   `json:"produtoId"`
	Quantity  int     `json:"quantidade"`
	Total     float64 `json:"valorTotal"`
}

// Order is the sales-side record. Only its ID, customer name and item
// quantities travel on the wire; Total and PlacedAt stay local.
type Order struct {
	ID           int64       `json:"pedidoId"`
	CustomerName string      `json:"clienteNome"`
	Items        []OrderItem `json:"itens"`
	PlacedAt     time.Time   `json:"dataPedido"`
}

// Snapshot converts the order to its wire form.
func (o Order) Snapshot() event.OrderSnapshot {
	items := make([]event.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, event.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return event.OrderSnapshot{OrderID: o.ID, CustomerName: o.CustomerName, Items: items}
}

// OrderStore keeps orders in memory. IDs are assigned on insert and never
// reused within a process lifetime.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[int64]Order
	nextID int64
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[int64]Order)}
}

// Insert stores the order under a fresh ID and returns the stored copy.
func (s *OrderStore) Insert(order Order) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order.ID = s.nextID
	s.orders[order.ID] = order
	return order
}

func (s *OrderStore) Get(id int64) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// List returns up to limit orders, newest first. A non-positive limit means
// all orders.
func (s *OrderStore) List(limit int) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Update replaces the stored order. The ID must already exist.
func (s *OrderStore) Update(order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	s.orders[order.ID] = order
	return nil
}

// Delete removes the order and returns the last stored copy.
func (s *OrderStore) Delete(id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	delete(s.orders, id)
	return order, nil
}
