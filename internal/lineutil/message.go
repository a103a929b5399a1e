package lineutil

import (
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const ellipsis = "..."

// NewTextMessage creates a text message, truncating text that exceeds the
// LINE limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	if utf8.RuneCountInString(text) > MaxTextMessageLength {
		text = TruncateRunes(text, MaxTextMessageLength)
	}
	return &messaging_api.TextMessage{Text: text}
}

// TextMessages wraps texts as a reply, keeping at most MaxMessagesPerReply.
func TextMessages(texts ...string) []messaging_api.MessageInterface {
	if len(texts) > MaxMessagesPerReply {
		texts = texts[:MaxMessagesPerReply]
	}
	msgs := make([]messaging_api.MessageInterface, 0, len(texts))
	for _, t := range texts {
		if t == "" {
			continue
		}
		msgs = append(msgs, NewTextMessage(t))
	}
	return msgs
}

// TruncateRunes shortens text to at most maxRunes runes, ending with "..."
// when anything was cut.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= len(ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(ellipsis)]) + ellipsis
}

// MaskID shortens a LINE user/group ID for logs.
func MaskID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + ellipsis
}
