package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	errNATSDisconnected = errors.New("NATS not connected")
	errTenantSubject    = errors.New("tenant ID cannot contain '.', '*', '>' or whitespace")
)

// natsReconnectBuffer holds publishes made while the broker is away.
const natsReconnectBuffer = 8 << 20

// NATSBus carries origination events across processes. Every tenant gets
// its own subject subtree: kestrel.<tenant>.<topic>.
type NATSBus struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[*natsSubscription]struct{}
}

type natsSubscription struct {
	topic string
	bus   *NATSBus
	sub   *nats.Subscription
}

// NewNATSBus dials the broker, retrying up to NATSMaxReconnects times.
// Once connected, the client reconnects on its own.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	var (
		conn *nats.Conn
		err  error
	)
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		if conn, err = nats.Connect(cfg.NATSUrl, natsOptions(cfg)...); err == nil {
			break
		}
		slog.Warn("NATS dial failed", "attempt", attempt, "url", cfg.NATSUrl, "error", err)
		time.Sleep(wait)
	}
	if err != nil {
		return nil, fmt.Errorf("dial NATS at %s: %w", cfg.NATSUrl, err)
	}

	slog.Info("NATS connected", "url", conn.ConnectedUrl())
	return &NATSBus{conn: conn, subs: make(map[*natsSubscription]struct{})}, nil
}

func natsOptions(cfg domain.EventBusConfig) []nats.Option {
	opts := []nats.Option{
		nats.Name(subjectPrefix),
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.NATSReconnectWait) * time.Second),
		nats.ReconnectBufSize(natsReconnectBuffer),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.Error("NATS async error", "subject", sub.Subject, "error", err)
				return
			}
			slog.Error("NATS async error", "error", err)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}
	return opts
}

// natsSubject maps a tenant topic onto a subject. Tenant IDs that would
// add subject tokens or wildcards are refused so one tenant can never
// listen on another's subtree.
func natsSubject(tenantID, topic string) (string, error) {
	if tenantID == "" {
		return "", errTenantRequired
	}
	if strings.ContainsAny(tenantID, ".*> \t\r\n") {
		return "", fmt.Errorf("%w: %q", errTenantSubject, tenantID)
	}
	return subjectPrefix + "." + tenantID + "." + topic, nil
}

// Publish sends an enveloped payload on the tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	subject, err := natsSubject(tenantID, topic)
	if err != nil {
		return err
	}
	data, err := json.Marshal(newMessage(ctx, tenantID, topic, payload))
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}
	return b.conn.Publish(subject, data)
}

// Subscribe delivers the tenant's messages on topic to handler.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	subject, err := natsSubject(tenantID, topic)
	if err != nil {
		return nil, err
	}

	natsSub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		deliver(ctx, tenantID, m, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	sub := &natsSubscription{topic: topic, bus: b, sub: natsSub}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// deliver decodes one NATS message and hands it to handler. Envelopes
// claiming another tenant are dropped.
func deliver(ctx context.Context, tenantID string, m *nats.Msg, handler domain.MessageHandler) {
	var msg domain.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		slog.Error("undecodable event", "subject", m.Subject, "error", err)
		return
	}
	if msg.TenantID != tenantID {
		slog.Warn("dropping event for foreign tenant", "subject", m.Subject, "message_id", msg.ID)
		return
	}
	if err := handler(ctx, &msg); err != nil {
		slog.Error("event handler failed", "subject", m.Subject, "message_id", msg.ID, "error", err)
	}
}

// Ping flushes the connection, proving a round trip to the broker.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return errNATSDisconnected
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drops all subscriptions and the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	for sub := range b.subs {
		_ = sub.sub.Unsubscribe()
	}
	clear(b.subs)
	b.mu.Unlock()

	b.conn.Close()
	return nil
}

func (s *natsSubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	return s.sub.Unsubscribe()
}

func (s *natsSubscription) Topic() string {
	return s.topic
}
