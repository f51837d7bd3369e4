package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/workorders/internal/entity"
)

// Event types published after a committed order mutation.
const (
	EventCreated       = "order.created"
	EventUpdated       = "order.updated"
	EventStatusChanged = "order.status_changed"
)

// Event is the message published on the order topic.
// ID identifies the event; redeliveries carry the same ID.
type Event struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	OrderID        int64         `json:"order_id"`
	Status         entity.Status `json:"status"`
	PreviousStatus entity.Status `json:"previous_status,omitempty"`
	CustomerID     int64         `json:"customer_id"`
	DatabaseID     int64         `json:"database_id"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

func newEvent(kind string, order *entity.Order, previous entity.Status) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           kind,
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		CustomerID:     order.CustomerID,
		DatabaseID:     order.DatabaseID,
		OccurredAt:     order.UpdatedAt,
	}
}

// EventKey is the partition key used for an order's events.
func EventKey(orderID int64) []byte {
	return []byte(fmt.Sprintf("order-%d", orderID))
}

// publish is best effort; the order is already committed.
func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	headers := map[string]string{
		"event_type":   event.Type,
		"content_type": "application/json",
	}
	if err := s.publisher.Publish(ctx, EventKey(event.OrderID), payload, headers); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
