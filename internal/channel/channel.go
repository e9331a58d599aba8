// Package channel connects front ends to the bus. A channel turns whatever
// its users type into inbound messages and delivers the replies addressed to
// it.
package channel

import (
	"context"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Inbound accepts messages from a channel. PublishInbound blocks while the
// queue is full.
type Inbound interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error
}

// Channel is one front end.
type Channel interface {
	// Name is the value carried in InboundMessage.Channel.
	Name() string

	// Start feeds in until ctx is done or the channel has no more input.
	Start(ctx context.Context, in Inbound) error

	// Deliver hands one reply to the user.
	Deliver(ctx context.Context, msg domain.OutboundMessage) error
}

// Status reports the state of a registered channel.
type Status struct {
	Name      string `json:"name"`
	Running   bool   `json:"running"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
	LastError string `json:"lastError,omitempty"`
}
