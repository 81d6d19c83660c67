package model

import (
	"encoding/json"
	"strings"
)

// Direction of an interaction relative to the tenant.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// InteractionType classifies what kind of interaction was recorded.
type InteractionType string

const (
	InteractionChat    InteractionType = "CHAT"
	InteractionCommand InteractionType = "COMMAND"
)

// Interaction is the normalized record submitted to the backend. The backend owns
// it; the gateway keeps only the returned identifier.
type Interaction struct {
	ID          string              `json:"id,omitempty"`
	TenantID    string              `json:"tenantId"`
	Type        InteractionType     `json:"type"`
	Channel     string              `json:"channel"`
	Direction   Direction           `json:"direction"`
	Content     string              `json:"content"`
	Metadata    InteractionMetadata `json:"metadata"`
	Attachments []Attachment        `json:"attachments,omitempty"`
}

// InteractionMetadata carries platform correlation fields. On the wire every key
// is prefixed with the lower-cased platform name, e.g. "telegramUsername".
type InteractionMetadata struct {
	Platform  string
	ChatID    ChatID
	MessageID int
	Username  string
	FirstName string
	LastName  string
}

// MarshalJSON implements json.Marshaler.
func (m InteractionMetadata) MarshalJSON() ([]byte, error) {
	prefix := strings.ToLower(m.Platform)
	if prefix == "" {
		prefix = "platform"
	}

	out := map[string]any{
		prefix + "ChatId":    m.ChatID,
		prefix + "MessageId": nil,
		prefix + "Username":  nullable(m.Username),
		prefix + "FirstName": nullable(m.FirstName),
		prefix + "LastName":  nullable(m.LastName),
	}
	if m.MessageID != 0 {
		out[prefix+"MessageId"] = m.MessageID
	}
	return json.Marshal(out)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
