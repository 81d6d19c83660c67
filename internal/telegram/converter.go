package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// Converter maps Telegram updates onto model.InboundMessage.
type Converter struct {
	bot     BotAPI
	timeout time.Duration
	logger  *logger.Logger
}

// NewConverter creates a converter. bot resolves attachment file paths, each
// lookup bounded by timeout.
func NewConverter(bot BotAPI, timeout time.Duration, log *logger.Logger) *Converter {
	return &Converter{bot: bot, timeout: timeout, logger: log.Named("converter")}
}

// DecodeUpdate reads a webhook body.
func DecodeUpdate(r io.Reader) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&update); err != nil {
		return nil, fmt.Errorf("invalid update: %w", err)
	}
	return &update, nil
}

// Convert returns the gateway view of update, or nil when the update carries no
// message (edits, callback queries and other update kinds). It makes no
// platform calls; attachment paths are left for ResolveAttachment.
func (c *Converter) Convert(update *tgbotapi.Update) *model.InboundMessage {
	if update == nil || update.Message == nil || update.Message.Chat == nil {
		return nil
	}
	m := update.Message

	msg := &model.InboundMessage{
		ConversationID: model.ChatID(strconv.FormatInt(m.Chat.ID, 10)),
		MessageID:      m.MessageID,
		ChatType:       m.Chat.Type,
		Text:           m.Text,
		Caption:        m.Caption,
		SentAt:         time.Unix(int64(m.Date), 0).UTC(),
	}
	if m.From != nil {
		msg.Sender = model.Sender{
			UserID:    m.From.ID,
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
			LastName:  m.From.LastName,
		}
	}

	switch {
	case len(m.Photo) > 0:
		photo := largestPhoto(m.Photo)
		msg.Attachment = &model.Attachment{
			Type:   model.AttachmentPhoto,
			FileID: photo.FileID,
		}
	case m.Document != nil:
		msg.Attachment = &model.Attachment{
			Type:   model.AttachmentDocument,
			Name:   m.Document.FileName,
			FileID: m.Document.FileID,
		}
	}

	return msg
}

// ResolveAttachment fills in att.URL with the file's path on the Bot API file
// server. The path is relative; the download URL would embed the bot token. On
// failure the URL stays empty.
func (c *Converter) ResolveAttachment(ctx context.Context, chatID model.ChatID, att *model.Attachment) {
	if att == nil || att.FileID == "" || att.URL != "" {
		return
	}
	file, err := call(ctx, c.timeout, func() (tgbotapi.File, error) {
		return c.bot.GetFile(tgbotapi.FileConfig{FileID: att.FileID})
	})
	if err != nil {
		c.logger.Warn("failed to resolve attachment",
			zap.String("conversation_id", chatID.String()),
			zap.String("file_id", att.FileID),
			zap.Error(err),
		)
		return
	}
	att.URL = file.FilePath
}

// largestPhoto picks the highest resolution variant Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.FileSize > best.FileSize || (s.FileSize == best.FileSize && s.Width*s.Height > best.Width*best.Height) {
			best = s
		}
	}
	return best
}
