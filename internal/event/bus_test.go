package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

func TestPublishIsSynchronous(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	bus.Subscribe("orders.order.created", func(_ context.Context, e plugin.Event) {
		calls++
	})

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "orders.order.created"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// No synchronization needed: handlers run in the caller's goroutine.
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestPublishMatchesTopicOnly(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var matched, other int
	bus.Subscribe("provision.voucher.created", func(_ context.Context, e plugin.Event) { matched++ })
	bus.Subscribe("provision.voucher.failed", func(_ context.Context, e plugin.Event) { other++ })

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "provision.voucher.created"})

	if matched != 1 {
		t.Errorf("matched handler called %d times, want 1", matched)
	}
	if other != 0 {
		t.Errorf("other-topic handler called %d times, want 0", other)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())

	calls := 0
	unsub := bus.Subscribe("devices.status.changed", func(_ context.Context, e plugin.Event) { calls++ })

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "devices.status.changed"})
	unsub()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "devices.status.changed"})

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestSubscribeAllReceivesEveryTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var topics []string
	unsub := bus.SubscribeAll(func(_ context.Context, e plugin.Event) {
		topics = append(topics, e.Topic)
	})

	_ = bus.Publish(context.Background(), plugin.Event{Topic: "a.one"})
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "b.two"})
	unsub()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "c.three"})

	if len(topics) != 2 || topics[0] != "a.one" || topics[1] != "b.two" {
		t.Errorf("topics = %v, want [a.one b.two]", topics)
	}
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	survived := false
	bus.Subscribe("orders.order.failed", func(_ context.Context, e plugin.Event) {
		panic("handler bug")
	})
	bus.Subscribe("orders.order.failed", func(_ context.Context, e plugin.Event) {
		survived = true
	})

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "orders.order.failed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !survived {
		t.Error("second handler never ran after first panicked")
	}
}

func TestPublishAsyncDelivers(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var calls atomic.Int64
	done := make(chan struct{})
	bus.Subscribe("catalog.product.created", func(_ context.Context, e plugin.Event) {
		calls.Add(1)
		close(done)
	})

	bus.PublishAsync(context.Background(), plugin.Event{Topic: "catalog.product.created"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe("load.test", func(_ context.Context, e plugin.Event) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), plugin.Event{Topic: "load.test"})
		}()
	}
	wg.Wait()
}
