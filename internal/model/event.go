package model

import (
	"time"
)

// EventType names a notification event.
type EventType string

const (
	EventTypeNewMessage EventType = "new_message"
)

// InteractionEvent signals that a new interaction was persisted for a conversation.
type InteractionEvent struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	ChatID        ChatID    `json:"chatId"`
	InteractionID string    `json:"interactionId"`
	Event         EventType `json:"event"`
	CreatedAt     time.Time `json:"createdAt"`
}
