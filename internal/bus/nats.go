package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// Publisher is the subset of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials a NATS server for the bridge.
func Connect(url string, log *logging.Logger) (*nats.Conn, error) {
	l := log.Sub("nats")
	nc, err := nats.Connect(url,
		nats.Name("zenclaw"),
		nats.Compression(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return nc, nil
}

// Bridge mirrors bus broadcasts onto NATS subjects so out-of-process
// observers can follow agent runs.
//
// System events go to <prefix>.events.<eventType> and outbound replies to
// <prefix>.outbound.<channel>.
type Bridge struct {
	pub    Publisher
	prefix string
	log    *logging.Logger
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(pub Publisher, prefix string, log *logging.Logger) *Bridge {
	if prefix == "" {
		prefix = "zenclaw"
	}
	return &Bridge{pub: pub, prefix: prefix, log: log.Sub("nats")}
}

// Run forwards broadcasts until ctx is done or the bus closes.
func (br *Bridge) Run(ctx context.Context, b *Bus) error {
	events := b.SubscribeSystem()
	defer events.Unsubscribe()
	replies := b.SubscribeOutbound()
	defer replies.Unsubscribe()

	br.log.Info().Str("prefix", br.prefix).Msg("nats bridge started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events.C():
			if !ok {
				return nil
			}
			br.forward(br.EventSubject(ev), ev)
		case msg, ok := <-replies.C():
			if !ok {
				return nil
			}
			br.forward(br.OutboundSubject(msg), msg)
		}
	}
}

// EventSubject returns the subject a system event is published on.
func (br *Bridge) EventSubject(ev domain.SystemEvent) string {
	return br.prefix + ".events." + subjectToken(string(ev.EventType))
}

// OutboundSubject returns the subject an outbound reply is published on.
func (br *Bridge) OutboundSubject(msg domain.OutboundMessage) string {
	return br.prefix + ".outbound." + subjectToken(msg.Channel)
}

func (br *Bridge) forward(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		br.log.Error().Err(err).Str("subject", subject).Msg("encoding bridge payload")
		return
	}
	if err := br.pub.Publish(subject, data); err != nil {
		br.log.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
	}
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return subjectReplacer.Replace(s)
}
