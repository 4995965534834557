package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// paymentEventTTL keeps replay markers slightly longer than the payment
// provider's retry horizon.
const paymentEventTTL = 72 * time.Hour

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

func GetProduct(ctx context.Context, rdb *redis.Client, id int) ([]byte, error) {
	key := fmt.Sprintf("product:%d", id)
	return rdb.Get(ctx, key).Bytes()
}

func SetProduct(ctx context.Context, rdb *redis.Client, id int, product interface{}, ttl time.Duration) error {
	key := fmt.Sprintf("product:%d", id)
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

func InvalidateProduct(ctx context.Context, rdb *redis.Client, id int) error {
	key := fmt.Sprintf("product:%d", id)
	return rdb.Del(ctx, key).Err()
}

// IsPaymentEventSeen is the fast-path replay check for webhook events. The
// unique payment_reference column remains the source of truth; a Redis miss
// or error just falls through to the database.
func IsPaymentEventSeen(ctx context.Context, rdb *redis.Client, reference string) bool {
	key := fmt.Sprintf("payment_event:%s", reference)
	n, err := rdb.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func MarkPaymentEventSeen(ctx context.Context, rdb *redis.Client, reference string) error {
	key := fmt.Sprintf("payment_event:%s", reference)
	return rdb.Set(ctx, key, 1, paymentEventTTL).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
