package domain

import "time"

// InboundMessage is a message handed to the core by a front end.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"senderId"`
	ChatID    string            `json:"chatId"`
	Content   string            `json:"content"`
	Media     []string          `json:"media,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionKey returns the conversation key for the message: "channel:chatId".
func (m InboundMessage) SessionKey() string {
	return SessionKey(m.Channel, m.ChatID)
}

// OutboundMessage is a reply produced by the core for a front end to deliver.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// SessionKey builds the canonical session key for a channel and chat.
func SessionKey(channel, chatID string) string {
	return channel + ":" + chatID
}
