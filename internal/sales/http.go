package sales

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/drblury/stocksync/internal/jsoncodec"
	"github.com/drblury/stocksync/internal/logging"
)

const defaultListLimit = 10

// NewHTTPHandler exposes the order API. healthy feeds /healthz; nil means
// always healthy.
func NewHTTPHandler(svc *Service, log logging.ServiceLogger, healthy func() bool) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	h := &httpHandler{svc: svc, log: log, healthy: healthy}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pedidos", h.listOrders)
	mux.HandleFunc("GET /pedidos/{id}", h.getOrder)
	mux.HandleFunc("POST /pedidos", h.createOrder)
	mux.HandleFunc("PUT /pedidos/{id}", h.updateOrder)
	mux.HandleFunc("DELETE /pedidos/{id}", h.deleteOrder)
	mux.HandleFunc("POST /pedidos/{id}/reenviar", h.resendOrder)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

type httpHandler struct {
	svc     *Service
	log     logging.ServiceLogger
	healthy func() bool
}

func (h *httpHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		limit = parsed
	}
	h.writeJSON(w, http.StatusOK, h.svc.ListOrders(limit))
}

func (h *httpHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *httpHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input OrderInput
	if err := jsoncodec.Decode(r.Body, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *httpHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var input OrderInput
	if err := jsoncodec.Decode(r.Body, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.svc.UpdateOrder(r.Context(), id, input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *httpHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) resendOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResendOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "order requeued"})
}

func (h *httpHandler) health(w http.ResponseWriter, _ *http.Request) {
	if h.healthy != nil && !h.healthy() {
		h.writeError(w, http.StatusServiceUnavailable, "broker connection unhealthy")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func (h *httpHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrInsufficientStock):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("order request failed", err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
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
