package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// Chat identifies where an event came from.
type Chat struct {
	// ID is the user ID for 1-on-1 chats, the group or room ID otherwise.
	ID string
	// UserID is the sender. LINE omits it in groups when the user has not
	// consented to profile access.
	UserID   string
	Personal bool
}

// ChatOf extracts chat and user IDs from a LINE event source. Unknown source
// types yield a zero Chat.
func ChatOf(source webhook.SourceInterface) Chat {
	switch s := source.(type) {
	case webhook.UserSource:
		return Chat{ID: s.UserId, UserID: s.UserId, Personal: true}
	case webhook.GroupSource:
		return Chat{ID: s.GroupId, UserID: s.UserId}
	case webhook.RoomSource:
		return Chat{ID: s.RoomId, UserID: s.UserId}
	}
	return Chat{}
}

// LimitKey is the key the per-user rate limiter counts against: the sender
// when known, else the chat.
func (c Chat) LimitKey() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.ID
}
