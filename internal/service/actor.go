package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/events"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// Actor - аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin сообщает, что операция выполняется администратором.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Notifier доставляет события пользователям через WebSocket.
type Notifier interface {
	// BroadcastToUser отправляет событие и сохраняет его как уведомление.
	BroadcastToUser(userID uuid.UUID, event string, data any) error
	// Push отправляет служебное событие без сохранения.
	Push(userID uuid.UUID, event string, data any) error
}

// emitter публикует событие жизненного цикла и уведомляет участников.
// Ошибки доставки только логируются: запрос, вызвавший событие, уже выполнен.
type emitter struct {
	notifier  Notifier
	publisher events.Publisher
	log       *logrus.Entry
}

func (e emitter) emit(ctx context.Context, eventType string, data any, recipients ...uuid.UUID) {
	if e.publisher != nil {
		if err := e.publisher.Publish(context.WithoutCancel(ctx), events.New(eventType, data)); err != nil {
			e.log.WithFields(logrus.Fields{
				"event": eventType,
				"error": err.Error(),
			}).Warn("не удалось опубликовать событие")
		}
	}

	if e.notifier == nil {
		return
	}
	for _, userID := range recipients {
		if userID == uuid.Nil {
			continue
		}
		if err := e.notifier.BroadcastToUser(userID, eventType, data); err != nil {
			e.log.WithFields(logrus.Fields{
				"event":   eventType,
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("не удалось отправить уведомление")
		}
	}
}

// push отправляет служебное событие пользователю.
func (e emitter) push(userID uuid.UUID, eventType string, data any) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Push(userID, eventType, data); err != nil {
		e.log.WithFields(logrus.Fields{
			"event":   eventType,
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("не удалось отправить служебное событие")
	}
}
