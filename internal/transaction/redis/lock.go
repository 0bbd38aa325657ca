package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
)

const keyPrefix = "webhook:"

// releaseScript deletes the key only if it still holds our token, so an expired
// lock that another delivery re-acquired is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewClient connects to the redis URL and checks it answers.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type DeliveryLock struct {
	client goredis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ transaction.DeliveryLock = (*DeliveryLock)(nil)

func NewDeliveryLock(client goredis.Cmdable, ttl time.Duration, logger *slog.Logger) *DeliveryLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryLock{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock for one gateway transaction. The returned release func is
// only meaningful when acquired is true.
func (l *DeliveryLock) Acquire(ctx context.Context, gatewayTxnID string) (func(), bool, error) {
	key := keyPrefix + gatewayTxnID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// the request context may already be done by the time we release
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release webhook lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
