// Package stock applies incoming order and product lifecycle events against
// the inventory store.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/logging"
	"github.com/drblury/stocksync/internal/metrics"
	"github.com/drblury/stocksync/internal/store"
)

// Inventory is the slice of the product store the handler mutates. A fresh
// statement runs per call, so no state is carried across messages.
type Inventory interface {
	GetProduct(ctx context.Context, id int64) (event.ProductSnapshot, error)
	SetQuantity(ctx context.Context, id int64, quantity int) error
	UpsertProduct(ctx context.Context, p event.ProductSnapshot) error
	DeleteProduct(ctx context.Context, id int64) error
}

// ItemOutcome classifies what happened to one order line.
type ItemOutcome string

const (
	OutcomeApplied           ItemOutcome = "applied"
	OutcomeProductNotFound   ItemOutcome = "product_not_found"
	OutcomeInsufficientStock ItemOutcome = "insufficient_stock"
)

// ItemResult records the outcome of a single order line. Remaining is the
// stock count after handling the line (unchanged when the line was skipped).
type ItemResult struct {
	ProductID int64
	Requested int
	Outcome   ItemOutcome
	Remaining int
}

// Report summarises how an order was applied. Missing products and
// insufficient stock are expected business outcomes, recorded per line; they
// never abort the remaining lines.
type Report struct {
	OrderID int64
	Results []ItemResult
}

// Applied counts the lines whose stock was decremented.
func (r Report) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeApplied {
			n++
		}
	}
	return n
}

// Warnings counts the skipped lines.
func (r Report) Warnings() int {
	return len(r.Results) - r.Applied()
}

// Handler owns write access to the inventory while a message is being
// processed.
type Handler struct {
	inv     Inventory
	log     logging.ServiceLogger
	metrics *metrics.Metrics
}

func NewHandler(inv Inventory, log logging.ServiceLogger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{inv: inv, log: log, metrics: m}
}

// ApplyOrder decrements stock for each order line, in the order given. Each
// line is looked up, checked and persisted independently; no transaction
// spans the whole order, so a crash mid-order leaves the earlier lines
// applied. A storage failure aborts and surfaces as an error (the message is
// then rejected); everything else is a per-line outcome in the report.
func (h *Handler) ApplyOrder(ctx context.Context, order event.OrderSnapshot) (Report, error) {
	report := Report{OrderID: order.OrderID}
	if len(order.Items) == 0 {
		h.log.Info("order has no items, nothing to apply", logging.LogFields{"order_id": order.OrderID})
		return report, nil
	}

	log := h.log.With(logging.LogFields{"order_id": order.OrderID, "customer": order.CustomerName})
	log.Info("applying order", logging.LogFields{"items": len(order.Items)})

	for _, item := range order.Items {
		product, err := h.inv.GetProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrProductNotFound) {
			log.Warn("product not found in inventory, skipping item", logging.LogFields{
				"product_id": item.ProductID,
			})
			h.metrics.StockWarning(metrics.WarnProductNotFound)
			report.Results = append(report.Results, ItemResult{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Outcome:   OutcomeProductNotFound,
			})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("stock: look up product %d: %w", item.ProductID, err)
		}

		if product.Quantity < item.Quantity {
			log.Warn("insufficient stock, skipping item", logging.LogFields{
				"product_id": item.ProductID,
				"requested":  item.Quantity,
				"available":  product.Quantity,
			})
			h.metrics.StockWarning(metrics.WarnInsufficientStock)
			report.Results = append(report.Results, ItemResult{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Outcome:   OutcomeInsufficientStock,
				Remaining: product.Quantity,
			})
			continue
		}

		remaining := product.Quantity - item.Quantity
		if err := h.inv.SetQuantity(ctx, item.ProductID, remaining); err != nil {
			return report, fmt.Errorf("stock: persist product %d: %w", item.ProductID, err)
		}

		log.Info("stock decremented", logging.LogFields{
			"product_id": item.ProductID,
			"requested":  item.Quantity,
			"before":     product.Quantity,
			"after":      remaining,
		})
		report.Results = append(report.Results, ItemResult{
			ProductID: item.ProductID,
			Requested: item.Quantity,
			Outcome:   OutcomeApplied,
			Remaining: remaining,
		})
	}

	log.Info("order applied", logging.LogFields{
		"applied":  report.Applied(),
		"warnings": report.Warnings(),
	})
	return report, nil
}

// HandleOrder adapts ApplyOrder to the dispatcher's order route. Warnings do
// not fail the message; only storage errors do.
func (h *Handler) HandleOrder(ctx context.Context, order event.OrderSnapshot) error {
	_, err := h.ApplyOrder(ctx, order)
	return err
}

// UpsertProduct mirrors a product created/updated event into the inventory.
func (h *Handler) UpsertProduct(ctx context.Context, product event.ProductSnapshot) error {
	if err := h.inv.UpsertProduct(ctx, product); err != nil {
		return fmt.Errorf("stock: upsert product %d: %w", product.ID, err)
	}
	h.log.Info("product upserted", logging.LogFields{"product_id": product.ID, "quantity": product.Quantity})
	return nil
}

// RemoveProduct mirrors a product removed event into the inventory.
func (h *Handler) RemoveProduct(ctx context.Context, productID int64) error {
	if err := h.inv.DeleteProduct(ctx, productID); err != nil {
		return fmt.Errorf("stock: remove product %d: %w", productID, err)
	}
	h.log.Info("product removed", logging.LogFields{"product_id": productID})
	return nil
}
