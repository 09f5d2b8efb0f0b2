package bus

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// MemoryBus is an in-process queue per topic.
//
// Publish never blocks; payloads wait in an unbounded slice until consumed.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string][][]byte
	notify map[string]chan struct{}
	logger *log.Logger
}

func NewMemoryBus(logger *log.Logger) *MemoryBus {
	if logger == nil {
		logger = log.Default()
	}
	return &MemoryBus{
		queues: map[string][][]byte{},
		notify: map[string]chan struct{}{},
		logger: shared.WithLogger(logger, "component", "bus", "driver", "memory"),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return publishErr("memory", err)
	}

	b.mu.Lock()
	b.queues[topic] = append(b.queues[topic], append([]byte(nil), payload...))
	wake := b.wakeup(topic)
	b.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}

	b.logger.Debug("message published", "topic", topic, "bytes", len(payload))
	return nil
}

// Pending returns the number of queued payloads for topic.
func (b *MemoryBus) Pending(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[topic])
}

// wakeup returns topic's notify channel, creating it. Callers hold mu.
func (b *MemoryBus) wakeup(topic string) chan struct{} {
	ch, ok := b.notify[topic]
	if !ok {
		ch = make(chan struct{}, 1)
		b.notify[topic] = ch
	}
	return ch
}

func (b *MemoryBus) pop(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queues[topic]
	if len(q) == 0 {
		return nil, false
	}
	payload := q[0]
	b.queues[topic] = q[1:]
	return payload, true
}

// Drain delivers everything currently queued on topic and returns the count.
func (b *MemoryBus) Drain(ctx context.Context, topic string, h Handler) int {
	n := 0
	for ctx.Err() == nil {
		payload, ok := b.pop(topic)
		if !ok {
			break
		}
		deliver(ctx, b.logger, topic, payload, h)
		n++
	}
	return n
}

// Consume drains topic and then waits for new payloads until ctx is done.
func (b *MemoryBus) Consume(ctx context.Context, topic string, h Handler) error {
	b.mu.Lock()
	wake := b.wakeup(topic)
	b.mu.Unlock()

	for {
		b.Drain(ctx, topic, h)

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		}
	}
}
