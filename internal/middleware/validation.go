package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// MaxTextLength bounds agent message text before truncation to the platform
// limit.
const MaxTextLength = 100000

// ValidateMessageText validates agent message text.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text cannot be empty")
	}
	if len(text) > MaxTextLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateChatID accepts a numeric chat id or a channel "@username".
func ValidateChatID(id model.ChatID) error {
	s := id.String()
	if s == "" {
		return errors.New("chat ID cannot be empty")
	}
	if strings.HasPrefix(s, "@") {
		if len(s) < 2 || strings.ContainsAny(s, " \t\n") {
			return errors.New("invalid channel username")
		}
		return nil
	}
	if _, ok := id.Int64(); !ok {
		return errors.New("chat ID must be numeric or an @channel")
	}
	return nil
}
