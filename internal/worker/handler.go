package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopflow/commerce-core/internal/domain"
)

// NotificationHandler turns order lifecycle events into customer emails.
// Stock already moved inside the order transaction, so there is nothing to
// compensate here; this is notification fan-out only.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Confirmation: " + event.OrderID,
		"body": fmt.Sprintf("Your order %s has been placed: %d items, %s total.",
			event.OrderID, len(event.Items), event.TotalAmount),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleOrderCancelled(ctx context.Context, payload []byte) error {
	var event domain.OrderCancelledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order cancelled event: %w", err)
	}

	h.logger.Info("processing order cancelled event", "order_id", event.OrderID, "user_id", event.UserID)

	body := map[string]string{
		"to":      event.UserID + "@example.com",
		"subject": "Order Cancelled: " + event.OrderID,
		"body":    fmt.Sprintf("Your order %s has been cancelled. Any payment will be refunded.", event.OrderID),
	}
	if err := h.sendEmail(ctx, body); err != nil {
		return fmt.Errorf("send cancellation email: %w", err)
	}

	h.logger.Info("order cancellation notice sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
