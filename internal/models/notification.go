package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification - уведомление пользователя, сохранённое вместе с WebSocket событием.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"isRead"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
