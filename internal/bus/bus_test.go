package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/opensource-finance/kestrel/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// await receives one message or fails the test.
func await(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func collect(ch chan<- *domain.Message) domain.MessageHandler {
	return func(ctx context.Context, msg *domain.Message) error {
		ch <- msg
		return nil
	}
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		if _, err := bus.Subscribe(ctx, tenantID, domain.TopicApplicationSubmitted, collect(got)); err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, tenantID, domain.TopicApplicationSubmitted, []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := await(t, got)
		if string(msg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
		}
		if msg.TenantID != tenantID {
			t.Errorf("expected tenantID '%s', got '%s'", tenantID, msg.TenantID)
		}
		if msg.ID == "" || msg.Timestamp == 0 {
			t.Error("expected message id and timestamp to be set")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32

		bus.Subscribe(ctx, "tenant-001", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "tenant-002", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		bus.Publish(ctx, "tenant-001", "isolation.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if received1.Load() != 1 {
			t.Errorf("tenant-001 should receive 1 message, got %d", received1.Load())
		}
		if received2.Load() != 0 {
			t.Errorf("tenant-002 should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("data")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		_, err := bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, tenantID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)
		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		bus.mu.RLock()
		_, stillRegistered := bus.subscriptions[makeKey(tenantID, "unsub.topic")]
		bus.mu.RUnlock()
		if stillRegistered {
			t.Error("expected subscription to be removed from the bus")
		}

		bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg2"))
		time.Sleep(50 * time.Millisecond)
		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count1, count2 atomic.Int32

		bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count2.Add(1)
			return nil
		})

		bus.Publish(ctx, tenantID, "multi.topic", []byte("broadcast"))
		time.Sleep(50 * time.Millisecond)

		if count1.Load() != 1 || count2.Load() != 1 {
			t.Errorf("expected both subscribers to receive, got %d and %d", count1.Load(), count2.Load())
		}
	})

	t.Run("TraceIDPropagation", func(t *testing.T) {
		traceID := trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		})
		tracedCtx := trace.ContextWithSpanContext(ctx, sc)

		got := make(chan *domain.Message, 1)
		bus.Subscribe(ctx, tenantID, "traced.topic", collect(got))
		bus.Publish(tracedCtx, tenantID, "traced.topic", nil)

		msg := await(t, got)
		if msg.Metadata["trace_id"] != traceID.String() {
			t.Errorf("expected trace_id %s, got %q", traceID, msg.Metadata["trace_id"])
		}
	})

	t.Run("PublishJSON", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		bus.Subscribe(ctx, tenantID, domain.TopicApplicationRejected, collect(got))

		event := domain.ApplicationEvent{
			ApplicationID: "app-1",
			ApplicantID:   "applicant-1",
			Status:        domain.StatusRejected,
			ReasonCode:    domain.ReasonPaymentToIncome,
			OccurredAt:    time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		}
		if err := PublishJSON(ctx, bus, tenantID, domain.TopicApplicationRejected, event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		var decoded domain.ApplicationEvent
		if err := json.Unmarshal(await(t, got).Payload, &decoded); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.ApplicationID != event.ApplicationID || decoded.Status != event.Status || decoded.ReasonCode != event.ReasonCode {
			t.Errorf("expected %+v, got %+v", event, decoded)
		}
		if !decoded.OccurredAt.Equal(event.OccurredAt) {
			t.Errorf("expected occurredAt %v, got %v", event.OccurredAt, decoded.OccurredAt)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, tenantID, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestChannelBusFullBufferDrops(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()

	ctx := context.Background()
	release := make(chan struct{})
	var handled atomic.Int32

	bus.Subscribe(ctx, "tenant-001", "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		<-release
		handled.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		if err := bus.Publish(ctx, "tenant-001", "slow.topic", []byte("msg")); err != nil {
			t.Fatalf("publish should not block or fail on a full buffer: %v", err)
		}
	}
	close(release)
	time.Sleep(50 * time.Millisecond)

	// One message in flight plus one buffered at most.
	if n := handled.Load(); n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 handled messages, got %d", n)
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()
	tenantID := "tenant-001"

	bus.Subscribe(ctx, tenantID, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}

	if err := bus.Publish(ctx, tenantID, "close.topic", []byte("data")); err == nil {
		t.Error("expected error after close")
	}
	if _, err := bus.Subscribe(ctx, tenantID, "close.topic", func(ctx context.Context, msg *domain.Message) error { return nil }); err == nil {
		t.Error("expected subscribe error after close")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		bus, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		if _, ok := bus.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestNATSSubject(t *testing.T) {
	got, err := natsSubject("tenant-001", domain.TopicApplicationSubmitted)
	if err != nil {
		t.Fatalf("natsSubject failed: %v", err)
	}
	if got != "kestrel.tenant-001.application.submitted" {
		t.Errorf("unexpected subject %q", got)
	}

	if _, err := natsSubject("", domain.TopicApplicationSubmitted); !errors.Is(err, errTenantRequired) {
		t.Errorf("expected errTenantRequired, got %v", err)
	}

	for _, tenant := range []string{"*", ">", "bank.a", "bank a"} {
		if _, err := natsSubject(tenant, domain.TopicApplicationSubmitted); !errors.Is(err, errTenantSubject) {
			t.Errorf("tenant %q: expected errTenantSubject, got %v", tenant, err)
		}
	}
}

func TestNATSDeliver(t *testing.T) {
	envelope := func(tenantID string) []byte {
		data, _ := json.Marshal(newMessage(context.Background(), tenantID, domain.TopicApplicationSubmitted, []byte(`{}`)))
		return data
	}

	var got []string
	handler := func(_ context.Context, msg *domain.Message) error {
		got = append(got, msg.TenantID)
		return nil
	}

	deliver(context.Background(), "bank-a", &nats.Msg{Subject: "kestrel.bank-a.application.submitted", Data: envelope("bank-a")}, handler)
	deliver(context.Background(), "bank-a", &nats.Msg{Subject: "kestrel.bank-a.application.submitted", Data: envelope("bank-b")}, handler)
	deliver(context.Background(), "bank-a", &nats.Msg{Subject: "kestrel.bank-a.application.submitted", Data: []byte("not json")}, handler)

	if len(got) != 1 || got[0] != "bank-a" {
		t.Errorf("expected only the bank-a envelope delivered, got %v", got)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-load"
	const messageCount = 100

	var received atomic.Int32
	done := make(chan struct{})

	bus.Subscribe(ctx, tenantID, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		if received.Add(1) == messageCount {
			close(done)
		}
		return nil
	})

	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, tenantID, "load.topic", []byte("msg"))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), messageCount)
	}
}
