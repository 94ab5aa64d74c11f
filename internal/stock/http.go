package stock

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/jsoncodec"
	"github.com/drblury/stocksync/internal/logging"
	"github.com/drblury/stocksync/internal/store"
)

// ProductPublisher sends product lifecycle events to the broker.
type ProductPublisher interface {
	PublishProduct(ctx context.Context, kind event.Kind, product event.ProductSnapshot) error
	PublishProductRemoved(ctx context.Context, productID int64) error
}

// NewHTTPHandler exposes the product API. Writes go to the store first and
// publish their lifecycle event afterwards; a publish failure is logged and
// the local write stands. healthy feeds /healthz; nil means always healthy.
func NewHTTPHandler(st *store.Store, publisher ProductPublisher, log logging.ServiceLogger, healthy func() bool) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	h := &httpHandler{store: st, publisher: publisher, log: log, healthy: healthy}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /produtos", h.listProducts)
	mux.HandleFunc("GET /produtos/{id}", h.getProduct)
	mux.HandleFunc("GET /produtos/{id}/disponibilidade/{quantidade}", h.checkAvailability)
	mux.HandleFunc("POST /produtos", h.createProduct)
	mux.HandleFunc("PUT /produtos/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /produtos/{id}", h.deleteProduct)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

type httpHandler struct {
	store     *store.Store
	publisher ProductPublisher
	log       logging.ServiceLogger
	healthy   func() bool
}

func (h *httpHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		h.log.Error("listing products", err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *httpHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

func (h *httpHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(r.PathValue("quantidade"))
	if err != nil || quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid quantity")
		return
	}
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"disponivel": product.Quantity >= quantity})
}

func (h *httpHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	if product.ID <= 0 {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}
	if err := h.store.UpsertProduct(r.Context(), product); err != nil {
		h.log.Error("saving product", err, logging.LogFields{"product_id": product.ID})
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.Info("product created", logging.LogFields{"product_id": product.ID, "name": product.Name})

	h.publishProduct(r.Context(), event.KindProductCreated, product)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *httpHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	product.ID = id

	if _, err := h.store.GetProduct(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	if err := h.store.UpsertProduct(r.Context(), product); err != nil {
		h.log.Error("saving product", err, logging.LogFields{"product_id": id})
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.Info("product updated", logging.LogFields{"product_id": id, "name": product.Name})

	h.publishProduct(r.Context(), event.KindProductUpdated, product)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *httpHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetProduct(r.Context(), id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	if err := h.store.DeleteProduct(r.Context(), id); err != nil {
		h.log.Error("deleting product", err, logging.LogFields{"product_id": id})
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.log.Info("product deleted", logging.LogFields{"product_id": id})

	if h.publisher != nil {
		if err := h.publisher.PublishProductRemoved(r.Context(), id); err != nil {
			h.log.Error("product removal event not published, local state kept", err,
				logging.LogFields{"product_id": id})
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) health(w http.ResponseWriter, _ *http.Request) {
	if h.healthy != nil && !h.healthy() {
		h.writeError(w, http.StatusServiceUnavailable, "broker connection unhealthy")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) publishProduct(ctx context.Context, kind event.Kind, product event.ProductSnapshot) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishProduct(ctx, kind, product); err != nil {
		h.log.Error("product event not published, local state kept", err, logging.LogFields{
			"product_id": product.ID,
			"event_kind": string(kind),
		})
	}
}

func (h *httpHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (event.ProductSnapshot, bool) {
	var product event.ProductSnapshot
	if err := jsoncodec.Decode(r.Body, &product); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return event.ProductSnapshot{}, false
	}
	if product.Quantity < 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return event.ProductSnapshot{}, false
	}
	return product, true
}

func (h *httpHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func (h *httpHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrProductNotFound) {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	h.log.Error("product request failed", err, nil)
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		h.log.Error("writing response", err, nil)
	}
}

func (h *httpHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}
