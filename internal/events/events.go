// Package events публикует события жизненного цикла заказов и откликов.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
)

// Ключи маршрутизации событий.
const (
	OrderCreated          = "order.created"
	OrderPaymentConfirmed = "order.payment_confirmed"
	OrderPaymentFailed    = "order.payment_failed"
	OrderStatusChanged    = "order.status_changed"
	OrderPayoutReleased   = "order.payout_released"
	OrderRefundRequired   = "order.refund_required"

	ApplicationSubmitted     = "application.submitted"
	ApplicationStatusChanged = "application.status_changed"
	ApplicationWithdrawn     = "application.withdrawn"

	GigModerated  = "gig.moderated"
	PostModerated = "post.moderated"
)

// Event - конверт события.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// New создаёт событие с новым идентификатором.
func New(eventType string, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher отправляет события во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher только пишет события в лог. Используется без RABBITMQ_URL.
type LogPublisher struct {
	log *logrus.Entry
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.WithComponent("events")}
}

// Publish пишет событие в лог.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	body, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
		"data":     string(body),
	}).Info("event")
	return nil
}

// Close ничего не делает.
func (p *LogPublisher) Close() error { return nil }
