package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConn,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Close gracefully closes the Redis client
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// GetClientStats returns Redis client statistics
func GetClientStats(client *redis.Client) map[string]interface{} {
	stats := client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

const availableRidesKey = "rides:available"

// CacheAvailableRides stores the serialized available-rides listing.
// The listing is invalidated on every reservation commit, so the TTL only
// bounds staleness if an invalidation is lost.
func CacheAvailableRides(ctx context.Context, client *redis.Client, payload []byte, ttl time.Duration) error {
	return client.Set(ctx, availableRidesKey, payload, ttl).Err()
}

// GetAvailableRides returns the cached listing, or (nil, false) on a miss
func GetAvailableRides(ctx context.Context, client *redis.Client) ([]byte, bool) {
	payload, err := client.Get(ctx, availableRidesKey).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// InvalidateAvailableRides drops the cached listing after a commit
func InvalidateAvailableRides(ctx context.Context, client *redis.Client) error {
	return client.Del(ctx, availableRidesKey).Err()
}

func pendingRatingsKey(userID string) string {
	return fmt.Sprintf("ratings:pending:%s", userID)
}

// CachePendingRatingCount stores a user's open rating-request count, shown
// as a badge in the client
func CachePendingRatingCount(ctx context.Context, client *redis.Client, userID string, count int, ttl time.Duration) error {
	return client.Set(ctx, pendingRatingsKey(userID), count, ttl).Err()
}

// InvalidatePendingRatingCount drops a user's cached count
func InvalidatePendingRatingCount(ctx context.Context, client *redis.Client, userIDs ...string) error {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = pendingRatingsKey(id)
	}
	return client.Del(ctx, keys...).Err()
}
