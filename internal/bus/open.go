package bus

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// Open builds the publisher for opts.Driver and, when the driver supports it, a consumer.
func Open(ctx context.Context, opts Options, logger *log.Logger) (Publisher, Consumer, error) {
	switch opts.Driver {
	case "", "memory":
		b := NewMemoryBus(logger)
		return b, b, nil
	case "redis":
		b, err := NewRedisBus(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case "sns":
		p, err := NewSNSPublisher(ctx, opts.Region, opts.SNSTopicARN, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown bus driver %q", shared.ErrInvalidConfig, opts.Driver)
	}
}
