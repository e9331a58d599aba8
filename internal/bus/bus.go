// Package bus is the process-wide event bus: a bounded, blocking inbound work
// queue with a single consumer, and non-blocking broadcasts of system events
// and outbound replies with any number of subscribers.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

const (
	DefaultInboundCapacity  = 256
	DefaultSubscriberBuffer = 64
)

// ErrClosed is returned by queue operations after CloseInbound or Close.
var ErrClosed = errors.New("bus closed")

// Config sizes the bus queues.
type Config struct {
	InboundCapacity  int
	SubscriberBuffer int
}

// Bus carries inbound work to the dispatcher and broadcasts progress to observers.
type Bus struct {
	inbound  chan domain.InboundMessage
	system   *Broadcaster[domain.SystemEvent]
	outbound *Broadcaster[domain.OutboundMessage]

	done        chan struct{}
	inboundOnce sync.Once
	closeOnce   sync.Once
	log         *logging.Logger
}

// New constructs a bus. Zero sizes fall back to the defaults.
func New(cfg Config, log *logging.Logger) *Bus {
	if cfg.InboundCapacity <= 0 {
		cfg.InboundCapacity = DefaultInboundCapacity
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	return &Bus{
		inbound:  make(chan domain.InboundMessage, cfg.InboundCapacity),
		system:   NewBroadcaster[domain.SystemEvent](cfg.SubscriberBuffer),
		outbound: NewBroadcaster[domain.OutboundMessage](cfg.SubscriberBuffer),
		done:     make(chan struct{}),
		log:      log.Sub("bus"),
	}
}

// PublishInbound enqueues msg, blocking while the queue is full.
func (b *Bus) PublishInbound(ctx context.Context, msg domain.InboundMessage) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// ConsumeInbound blocks until a message is available. Messages still queued
// when the bus closes are drained before ErrClosed is returned.
func (b *Bus) ConsumeInbound(ctx context.Context) (domain.InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return domain.InboundMessage{}, ctx.Err()
	case <-b.done:
		select {
		case msg := <-b.inbound:
			return msg, nil
		default:
			return domain.InboundMessage{}, ErrClosed
		}
	}
}

// InboundLen returns the number of queued inbound messages.
func (b *Bus) InboundLen() int { return len(b.inbound) }

// Publish broadcasts a system event. It never blocks.
func (b *Bus) Publish(ev domain.SystemEvent) {
	n := b.system.Publish(ev)
	b.log.Trace().Str("run", ev.RunID).Str("event", string(ev.EventType)).Int("delivered", n).Msg("system event")
}

// SubscribeSystem registers a system event observer.
func (b *Bus) SubscribeSystem() *Subscription[domain.SystemEvent] {
	return b.system.Subscribe()
}

// PublishOutbound broadcasts a reply for front ends to deliver. It never blocks.
func (b *Bus) PublishOutbound(msg domain.OutboundMessage) {
	if b.outbound.Publish(msg) == 0 {
		b.log.Debug().Str("channel", msg.Channel).Str("chat", msg.ChatID).Msg("outbound message had no receiver")
	}
}

// SubscribeOutbound registers an outbound reply observer.
func (b *Bus) SubscribeOutbound() *Subscription[domain.OutboundMessage] {
	return b.outbound.Subscribe()
}

// Stats reports subscriber counts and drops.
type Stats struct {
	InboundQueued       int    `json:"inboundQueued"`
	SystemSubscribers   int    `json:"systemSubscribers"`
	SystemDropped       uint64 `json:"systemDropped"`
	OutboundSubscribers int    `json:"outboundSubscribers"`
	OutboundDropped     uint64 `json:"outboundDropped"`
}

func (b *Bus) Stats() Stats {
	return Stats{
		InboundQueued:       len(b.inbound),
		SystemSubscribers:   b.system.Len(),
		SystemDropped:       b.system.Dropped(),
		OutboundSubscribers: b.outbound.Len(),
		OutboundDropped:     b.outbound.Dropped(),
	}
}

// CloseInbound rejects further inbound work. The consumer still receives
// what is queued before ErrClosed, and broadcasts keep flowing until Close.
func (b *Bus) CloseInbound() {
	b.inboundOnce.Do(func() {
		close(b.done)
		b.log.Debug().Int("queued", len(b.inbound)).Msg("inbound queue closed")
	})
}

// Close closes the inbound queue and every subscription. Replies published
// after Close reach nobody, so a graceful stop calls CloseInbound, waits for
// the consumer to drain, then calls Close.
func (b *Bus) Close() {
	b.CloseInbound()
	b.closeOnce.Do(func() {
		b.system.closeAll()
		b.outbound.closeAll()
		b.log.Debug().Msg("bus closed")
	})
}
