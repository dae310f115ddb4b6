package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingCache_WithoutClient(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	for name, c := range map[string]*BookingCache{
		"nil cache":      nil,
		"nil client":     NewBookingCache(nil, time.Minute),
		"zero ttl cache": NewBookingCache(nil, 0),
	} {
		t.Run(name, func(t *testing.T) {
			booking, err := c.Get(ctx, id)
			assert.NoError(t, err)
			assert.Nil(t, booking)
			assert.NoError(t, c.Set(ctx, &domain.Booking{ID: id}))
			assert.NoError(t, c.Invalidate(ctx, id))
			assert.NoError(t, c.Ping(ctx))
		})
	}
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("5f0c8f8e-7d2a-4d47-9e0b-3f9d8a2b1c11")
	assert.Equal(t, "booking:5f0c8f8e-7d2a-4d47-9e0b-3f9d8a2b1c11", Key(id))
}

func TestBookingCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	c := NewBookingCache(client, time.Minute)
	booking := &domain.Booking{
		ID:               uuid.New(),
		TotalAmount:      decimal.NewFromInt(150000),
		SellerAmount:     decimal.NewFromInt(130500),
		Status:           domain.BookingStatusConfirmed,
		PaymentStructure: domain.PaymentPlan{PaymentStructure: domain.FullUpfront{}},
	}

	require.NoError(t, c.Set(ctx, booking))
	cached, err := c.Get(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.True(t, cached.SellerAmount.Equal(booking.SellerAmount))
	assert.Equal(t, domain.PaymentTypeFullUpfront, cached.PaymentStructure.Kind())

	require.NoError(t, c.Invalidate(ctx, booking.ID))
	cached, err = c.Get(ctx, booking.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestBookingCache_KeepsNewestVersion(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	c := NewBookingCache(client, time.Minute)

	loaded := time.Now().Add(-time.Second).UTC()
	stale := &domain.Booking{ID: uuid.New(), Status: domain.BookingStatusConfirmed, UpdatedAt: loaded}
	fresh := *stale
	fresh.Status = domain.BookingStatusCancelled
	fresh.UpdatedAt = loaded.Add(time.Millisecond)

	// A reader that loaded the booking before the cancel writes after it.
	require.NoError(t, c.Set(ctx, &fresh))
	require.NoError(t, c.Set(ctx, stale))

	cached, err := c.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, domain.BookingStatusCancelled, cached.Status)

	// Same race when the writer could only invalidate.
	require.NoError(t, c.Invalidate(ctx, stale.ID))
	require.NoError(t, c.Set(ctx, stale))
	cached, err = c.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	t.Cleanup(func() { client.Del(ctx, Key(stale.ID), versionKey(stale.ID)) })
}

func TestVersionKey(t *testing.T) {
	id := uuid.MustParse("5f0c8f8e-7d2a-4d47-9e0b-3f9d8a2b1c11")
	assert.Equal(t, "booking:5f0c8f8e-7d2a-4d47-9e0b-3f9d8a2b1c11:version", versionKey(id))
}
