package routing

import "github.com/volumeee/zenclaw-sub000/internal/domain"

const (
	ScopePerChat   = "per-chat"
	ScopePerSender = "per-sender"
)

// ResolveSessionKey builds a session key from an inbound message and the configured scope.
//
// Scopes:
//   - "per-chat": one session per chat, shared among all senders (default)
//   - "per-sender": separate session per sender within a chat
func ResolveSessionKey(msg domain.InboundMessage, scope string) string {
	switch scope {
	case ScopePerSender:
		if msg.SenderID != "" {
			return msg.SessionKey() + ":" + msg.SenderID
		}
		return msg.SessionKey()
	default:
		return msg.SessionKey()
	}
}
