package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishSync(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var got []string
	b.Subscribe(EventStatusChanged, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Data["status"].(string))
	})

	b.PublishSync(Event{Type: EventStatusChanged, Data: map[string]any{"status": "Ready"}})
	b.PublishSync(Event{Type: EventEmotionChanged, Data: map[string]any{"emotion": "happy"}})

	assert.Equal(t, []string{"Ready"}, got)
}

func TestPublishAsync(t *testing.T) {
	b := New()

	var count atomic.Int32
	b.SubscribeMultiple([]EventType{EventPayloadReceived, EventVisemesScheduled}, func(Event) {
		count.Add(1)
	})

	b.Publish(Event{Type: EventPayloadReceived})
	b.Publish(Event{Type: EventVisemesScheduled})

	assert.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	var first, second atomic.Int32
	sub := b.Subscribe(EventModelLoaded, func(Event) { first.Add(1) })
	b.Subscribe(EventModelLoaded, func(Event) { second.Add(1) })

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.PublishSync(Event{Type: EventModelLoaded})

	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestNilBusDropsEvents(t *testing.T) {
	var b *EventBus
	assert.NotPanics(t, func() {
		b.Publish(Event{Type: EventStatusChanged})
		b.PublishSync(Event{Type: EventStatusChanged})
	})
}

func TestClear(t *testing.T) {
	b := New()
	var count atomic.Int32
	b.Subscribe(EventModelFailed, func(Event) { count.Add(1) })

	b.Clear()
	b.PublishSync(Event{Type: EventModelFailed})
	assert.Equal(t, int32(0), count.Load())
}
