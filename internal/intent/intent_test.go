package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/capitalize-ai/chat-gateway/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  *model.InboundMessage
		want Kind
	}{
		{"nil", nil, Ignore},
		{"empty", &model.InboundMessage{}, Ignore},
		{"whitespace", &model.InboundMessage{Text: "  \n"}, Ignore},
		{"text", &model.InboundMessage{Text: "Hello"}, Text},
		{"start", &model.InboundMessage{Text: "/start"}, Start},
		{"start with payload", &model.InboundMessage{Text: "/start ref123"}, Start},
		{"help with mention", &model.InboundMessage{Text: "/help@CrmSupportBot"}, Help},
		{"status upper", &model.InboundMessage{Text: "/STATUS"}, Status},
		{"unknown command", &model.InboundMessage{Text: "/weather"}, Ignore},
		{"lone slash", &model.InboundMessage{Text: "/"}, Text},
		{"slash inside text", &model.InboundMessage{Text: "use a/b testing"}, Text},
		{"photo", &model.InboundMessage{Attachment: &model.Attachment{Type: model.AttachmentPhoto}}, Photo},
		{"photo caption command", &model.InboundMessage{Text: "/start", Attachment: &model.Attachment{Type: model.AttachmentPhoto}}, Photo},
		{"document", &model.InboundMessage{Attachment: &model.Attachment{Type: model.AttachmentDocument, Name: "a.pdf"}}, Document},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg).Kind)
		})
	}
}

func TestClassifyCommandName(t *testing.T) {
	assert.Equal(t, Intent{Kind: Help, Command: "help"}, Classify(&model.InboundMessage{Text: "/HELP@CrmSupportBot"}))
	assert.Equal(t, Intent{Kind: Ignore, Command: "weather"}, Classify(&model.InboundMessage{Text: "/weather today"}))
	assert.Equal(t, Intent{Kind: Text}, Classify(&model.InboundMessage{Text: "Hello"}))
}

func TestParseCommand(t *testing.T) {
	name, ok := ParseCommand("/Start@bot hello")
	assert.True(t, ok)
	assert.Equal(t, "start", name)

	_, ok = ParseCommand("start")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "document", Document.String())
	assert.True(t, Status.IsCommand())
	assert.False(t, Text.IsCommand())
}
