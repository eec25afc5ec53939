package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopflow/commerce-core/internal/domain"
)

// EventPublisher emits order lifecycle events. Publishing is best-effort:
// the order is already committed when it runs, so failures are logged, not
// surfaced.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	service   *Service
	created   EventPublisher
	cancelled EventPublisher
	logger    *slog.Logger
}

// NewHandler wires the order service to the transport. Either publisher may
// be nil when the event bus is not configured.
func NewHandler(service *Service, created, cancelled EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		created:   created,
		cancelled: cancelled,
		logger:    logger,
	}
}

// userID extracts the caller identity set by the (out-of-scope) auth layer.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// isAdmin is the explicit trust boundary for administrative operations.
func isAdmin(r *http.Request) bool {
	return r.Header.Get("X-Role") == "admin"
}

type createOrderRequest struct {
	ShippingAddressID string `json:"shipping_address_id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShippingAddressID == "" {
		h.writeError(w, http.StatusBadRequest, "missing shipping address id")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), uid, req.ShippingAddressID)
	if err != nil {
		h.writeDomainError(w, err, "create order", uid)
		return
	}

	if h.created != nil {
		event := domain.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Items:       order.Items,
			TotalAmount: order.TotalAmount,
			Timestamp:   order.CreatedAt,
		}
		if err := h.created.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), uid, id)
	if err != nil {
		h.writeDomainError(w, err, "get order", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	orders, err := h.service.ListUserOrders(r.Context(), uid)
	if err != nil {
		h.writeDomainError(w, err, "list orders", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		h.writeError(w, http.StatusForbidden, "admin capability required")
		return
	}

	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "list all orders", "")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), uid, id, req.Status)
	if err != nil {
		h.writeDomainError(w, err, "update order status", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), uid, id)
	if err != nil {
		h.writeDomainError(w, err, "cancel order", uid)
		return
	}

	if h.cancelled != nil {
		event := domain.OrderCancelledEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Timestamp: time.Now().UTC(),
		}
		if err := h.cancelled.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order cancelled event", "error", err, "order_id", order.ID)
		}
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleMarkAsPaid(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.MarkAsPaid(r.Context(), uid, id)
	if err != nil {
		h.writeDomainError(w, err, "mark order as paid", uid)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		h.writeError(w, http.StatusForbidden, "admin capability required")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.DeleteOrder(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "delete order", "")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Anything unrecognized is a store failure: logged, surfaced as a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, op, uid string) {
	var stockErr *domain.InsufficientStockError
	var transitionErr *domain.InvalidTransitionError

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrAddressNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stockErr), errors.As(err, &transitionErr):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrUserIneligible),
		errors.Is(err, domain.ErrOrderTooLarge),
		errors.Is(err, domain.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("order operation failed", "error", err, "op", op, "user_id", uid)
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
