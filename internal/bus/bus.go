package bus

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// Publisher hands a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Handler processes one delivered payload.
type Handler func(ctx context.Context, payload []byte) error

// Consumer delivers every payload published to topic to h until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, topic string, h Handler) error
}

// Bus is a driver that can both publish and consume.
type Bus interface {
	Publisher
	Consumer
}

// Durable reports whether payloads published through p outlive the publishing process.
func Durable(p Publisher) bool {
	_, inProcess := p.(*MemoryBus)
	return p != nil && !inProcess
}

// Options selects and configures a driver.
type Options struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SNSTopicARN   string
	Region        string
}

// deliver runs h and logs a failure instead of returning it, so one bad message does not stop a consumer.
func deliver(ctx context.Context, logger *log.Logger, topic string, payload []byte, h Handler) {
	if err := h(ctx, payload); err != nil {
		logger.Error("message handler failed", "topic", topic, "error", err)
	}
}

func publishErr(driver string, err error) error {
	return fmt.Errorf("%w: %s: %w", shared.ErrPublishFailed, driver, err)
}
