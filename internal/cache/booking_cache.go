// Package cache keeps a read-through copy of bookings in redis. A cache built
// without a client does nothing, so callers never branch on its presence.
//
// Every entry has a version key holding the booking's updated_at in
// microseconds. A write carrying an older version than the one recorded is
// dropped, so a reader that loaded a booking before a transition cannot put
// the old state back after the transition refreshed the entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/booking-settlement/internal/domain"
	customError "github.com/segyhp/booking-settlement/pkg/errors"
)

const keyPrefix = "booking:"

// setIfNewer writes KEYS[1]=ARGV[1] and KEYS[2]=ARGV[2] for ARGV[3]
// milliseconds unless KEYS[2] already holds a higher version.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

type BookingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBookingCache(client *redis.Client, ttl time.Duration) *BookingCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BookingCache{client: client, ttl: ttl}
}

// Key returns the redis key a booking is stored under.
func Key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func versionKey(id uuid.UUID) string {
	return Key(id) + ":version"
}

// Get returns the cached booking. A miss is (nil, nil).
func (c *BookingCache) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	var booking domain.Booking
	if err := json.Unmarshal(data, &booking); err != nil {
		// A stale shape from an older build is treated as a miss.
		_ = c.client.Del(ctx, Key(id)).Err()
		return nil, nil
	}
	return &booking, nil
}

// Set stores booking unless a newer version of it was cached or invalidated
// since booking was read.
func (c *BookingCache) Set(ctx context.Context, booking *domain.Booking) error {
	if c == nil || c.client == nil || booking == nil {
		return nil
	}

	data, err := json.Marshal(booking)
	if err != nil {
		return customError.WrapCacheError(err)
	}

	keys := []string{Key(booking.ID), versionKey(booking.ID)}
	err = setIfNewer.Run(ctx, c.client, keys, data, booking.UpdatedAt.UnixMicro(), c.ttl.Milliseconds()).Err()
	if err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Invalidate drops the entry and raises its version to the current time, so
// only bookings read afterwards can be cached again.
func (c *BookingCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, Key(id))
		pipe.Set(ctx, versionKey(id), time.Now().UnixMicro(), c.ttl)
		return nil
	})
	if err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Ping reports whether redis answers. A cache without a client is healthy.
func (c *BookingCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
