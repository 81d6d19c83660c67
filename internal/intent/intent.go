// Package intent classifies inbound messages into the closed set of things the
// gateway knows how to handle.
package intent

import (
	"strings"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// Kind is an intent tag.
type Kind int

const (
	Ignore Kind = iota
	Start
	Help
	Status
	Text
	Photo
	Document
)

var kindNames = [...]string{
	Ignore:   "ignore",
	Start:    "start",
	Help:     "help",
	Status:   "status",
	Text:     "text",
	Photo:    "photo",
	Document: "document",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsCommand reports whether k is a slash command.
func (k Kind) IsCommand() bool {
	return k == Start || k == Help || k == Status
}

// Intent is a classified message.
type Intent struct {
	Kind Kind
	// Command is the command name without slash or bot mention, when Kind is a
	// command.
	Command string
}

var commands = map[string]Kind{
	"start":  Start,
	"help":   Help,
	"status": Status,
}

// Classify maps msg onto an intent. Attachments win over text; unknown
// commands are ignored rather than logged as chat.
func Classify(msg *model.InboundMessage) Intent {
	if msg == nil {
		return Intent{Kind: Ignore}
	}

	if msg.Attachment != nil {
		switch msg.Attachment.Type {
		case model.AttachmentPhoto:
			return Intent{Kind: Photo}
		case model.AttachmentDocument:
			return Intent{Kind: Document}
		}
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Intent{Kind: Ignore}
	}

	if name, ok := ParseCommand(text); ok {
		kind, known := commands[name]
		if !known {
			return Intent{Kind: Ignore, Command: name}
		}
		return Intent{Kind: kind, Command: name}
	}

	return Intent{Kind: Text}
}

// ParseCommand extracts the command name from "/name" or "/name@bot" at the
// start of text.
func ParseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	token := text[1:]
	if i := strings.IndexAny(token, " \t\n"); i >= 0 {
		token = token[:i]
	}
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", false
	}
	return strings.ToLower(token), true
}
