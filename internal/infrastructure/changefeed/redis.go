package changefeed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis publishes signals on the pub/sub channel docs:<collection> so that
// every replica's listeners see every replica's writes.
type Redis struct {
	Client *redis.Client
	Logger *logrus.Logger
}

func NewRedis(client *redis.Client, logger *logrus.Logger) *Redis {
	return &Redis{Client: client, Logger: logger}
}

// Channel is the pub/sub channel carrying changes of collection.
func Channel(collection string) string {
	return "docs:" + collection
}

func (r *Redis) Publish(ctx context.Context, collection string) error {
	return r.Client.Publish(ctx, Channel(collection), "changed").Err()
}

// Subscribe waits for the subscription to be confirmed so no write that
// happens after it returns can be missed.
func (r *Redis) Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	ps := r.Client.Subscribe(ctx, Channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range ps.Channel() {
			signal(out)
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			if err := ps.Close(); err != nil && r.Logger != nil {
				r.Logger.WithError(err).WithField("collection", collection).Debug("close subscription")
			}
		})
	}, nil
}
