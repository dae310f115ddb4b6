package cache

import (
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/booking-settlement/internal/config"
)

// NewRedisClient builds the redis client both binaries share. REDIS_URL wins
// over the host/port settings when set.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}
