package bot

import (
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// selfMentions returns the mentions of this bot, sorted by index descending.
func selfMentions(mention *webhook.Mention) []webhook.UserMentionee {
	if mention == nil {
		return nil
	}
	var out []webhook.UserMentionee
	for _, m := range mention.Mentionees {
		if um, ok := m.(webhook.UserMentionee); ok && um.IsSelf {
			out = append(out, um)
		}
	}
	slices.SortFunc(out, func(a, b webhook.UserMentionee) int {
		return int(b.Index - a.Index)
	})
	return out
}

// IsBotMentioned reports whether msg @mentions the bot.
func IsBotMentioned(msg webhook.TextMessageContent) bool {
	return len(selfMentions(msg.Mention)) > 0
}

// StripBotMentions removes every @mention of the bot from msg.Text and
// collapses whitespace. LINE reports mention positions in characters, so the
// text is cut as runes, back to front to keep earlier indexes valid.
func StripBotMentions(msg webhook.TextMessageContent) string {
	mentions := selfMentions(msg.Mention)
	if len(mentions) == 0 {
		return strings.Join(strings.Fields(msg.Text), " ")
	}

	runes := []rune(msg.Text)
	for _, m := range mentions {
		start := max(int(m.Index), 0)
		end := min(int(m.Index+m.Length), len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}
	return strings.Join(strings.Fields(string(runes)), " ")
}
