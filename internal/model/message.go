package model

import (
	"time"
)

// AttachmentType identifies the kind of file attached to a message.
type AttachmentType string

const (
	AttachmentPhoto    AttachmentType = "photo"
	AttachmentDocument AttachmentType = "document"
)

// Sender describes the platform user who wrote a message.
type Sender struct {
	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName returns the best human-facing name for the sender.
func (s Sender) DisplayName() string {
	switch {
	case s.FirstName != "":
		return s.FirstName
	case s.Username != "":
		return s.Username
	default:
		return "there"
	}
}

// Attachment is a file reference carried by a message. FileID is the
// platform's handle and stays inside the gateway; URL is filled in from it
// once the message is accepted.
type Attachment struct {
	Type   AttachmentType `json:"type"`
	URL    string         `json:"url,omitempty"`
	Name   string         `json:"name,omitempty"`
	FileID string         `json:"-"`
}

// InboundMessage is the gateway-owned view of a platform update. It carries only
// the fields the pipeline needs, independent of any platform client library.
type InboundMessage struct {
	ConversationID ChatID      `json:"conversationId"`
	MessageID      int         `json:"messageId"`
	ChatType       string      `json:"chatType,omitempty"`
	Sender         Sender      `json:"sender"`
	Text           string      `json:"text,omitempty"`
	Caption        string      `json:"caption,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	SentAt         time.Time   `json:"sentAt"`
}

// SendMessageRequest is the body of POST /send.
type SendMessageRequest struct {
	ChatID           *ChatID `json:"chatId"`
	Text             *string `json:"text"`
	ReplyToMessageID int     `json:"replyToMessageId,omitempty"`
}

// SendMessageResponse is returned after a successful agent send.
type SendMessageResponse struct {
	Status string `json:"status"`
}
