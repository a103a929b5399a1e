// Package lineutil builds LINE messages within the Messaging API limits.
package lineutil

// LINE API character limits (rune count).
// https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxMessagesPerReply  = 5
)
