package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/application/port"
)

// CatalogNotifier broadcasts status catalog invalidations over Redis pub/sub.
// Each process tags its messages with an instance id and ignores its own.
type CatalogNotifier struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	logger     *zap.Logger
}

// NewCatalogNotifier creates a notifier on channel
func NewCatalogNotifier(rdb *redis.Client, channel string, logger *zap.Logger) *CatalogNotifier {
	return &CatalogNotifier{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// InstanceID identifies this process on the channel
func (n *CatalogNotifier) InstanceID() string {
	return n.instanceID
}

// PublishInvalidation tells other instances to reload their catalog
func (n *CatalogNotifier) PublishInvalidation(ctx context.Context) error {
	if err := n.rdb.Publish(ctx, n.channel, n.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to publish catalog invalidation: %w", err)
	}
	return nil
}

// Listen calls onInvalidate for every invalidation published by another
// instance until ctx is done. Handler errors are logged and do not stop the loop.
func (n *CatalogNotifier) Listen(ctx context.Context, onInvalidate func(ctx context.Context) error) error {
	sub := n.rdb.Subscribe(ctx, n.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no message is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}
	n.logger.Info("Listening for catalog invalidations", zap.String("channel", n.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Payload == n.instanceID {
				continue
			}
			if err := onInvalidate(ctx); err != nil {
				n.logger.Error("Catalog invalidation handler failed",
					zap.String("origin", msg.Payload),
					zap.Error(err))
			}
		}
	}
}

var _ port.CatalogNotifier = (*CatalogNotifier)(nil)
