package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the NATS subject prefix for count events.
const DefaultSubjectPrefix = "bazaar.counts"

// natsConn is the part of *nats.Conn the bus uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// NATSBus shares count events between storefront instances. Every instance
// publishes to NATS and relays whatever arrives to its local subscribers, so a
// badge updates no matter which instance served the mutation.
type NATSBus struct {
	conn   natsConn
	prefix string
	local  *MemoryBus
	logger *slog.Logger
}

// NewNATSBus connects to url and starts relaying events under prefix.
func NewNATSBus(url, prefix string, logger *slog.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("bazaar-storefront"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	b, err := newNATSBus(nc, prefix, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func newNATSBus(conn natsConn, prefix string, logger *slog.Logger) (*NATSBus, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &NATSBus{
		conn:   conn,
		prefix: prefix,
		local:  NewMemoryBus(),
		logger: logger,
	}
	if _, err := conn.Subscribe(prefix+".>", b.handle); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", prefix, err)
	}
	return b, nil
}

// Subject is the NATS subject for e: <prefix>.<kind>.<owner>.
func (b *NATSBus) Subject(e CountChanged) string {
	return fmt.Sprintf("%s.%s.%s", b.prefix, e.Kind, subjectToken(e.OwnerID))
}

// subjectToken makes an owner id safe to use as a single subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

func (b *NATSBus) Publish(_ context.Context, e CountChanged) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal count event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(e), data); err != nil {
		return fmt.Errorf("publish count event: %w", err)
	}
	return nil
}

func (b *NATSBus) handle(msg *nats.Msg) {
	var e CountChanged
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		b.logger.Warn("dropping malformed count event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	b.local.deliver(e)
}

func (b *NATSBus) Subscribe(ownerID string) (<-chan CountChanged, func()) {
	return b.local.Subscribe(ownerID)
}

// Close drains the connection, letting in-flight messages finish.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
