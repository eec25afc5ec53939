package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopflow/commerce-core/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// userID extracts the caller identity set by the (out-of-scope) auth layer.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	cart, err := h.service.Get(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err, "get cart", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.AddItem(r.Context(), uid, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err, "add to cart", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	itemID := r.PathValue("id")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing cart item id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), uid, itemID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err, "update cart item", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	itemID := r.PathValue("id")
	if itemID == "" {
		h.writeError(w, http.StatusBadRequest, "missing cart item id")
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), uid, itemID)
	if err != nil {
		h.writeDomainError(w, err, "remove from cart", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	cart, err := h.service.Clear(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err, "clear cart", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Anything unrecognized is a store failure: logged, surfaced as a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, op, uid string) {
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stockErr):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("cart operation failed", "error", err, "op", op, "user_id", uid)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
