package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.GetDefaultCommissionPercentage().Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.GetDefaultTransactionFeePercentage().Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "settlement.events", cfg.RabbitMQ.Queue)
	assert.Equal(t, "0 0 0 * * *", cfg.Scheduler.LateFeeCron)
	assert.Equal(t, 3, cfg.Business.TransitionMaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.GetTransitionRetryBackoff())
	assert.Equal(t, 10*time.Minute, cfg.GetBookingCacheTTL())
	assert.Equal(t, 30*time.Second, cfg.GetOutboxRetryBackoff())
	assert.Equal(t, time.Hour, cfg.GetOutboxMaxBackoff())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DEFAULT_COMMISSION_PERCENTAGE", "12.5")
	t.Setenv("TRANSITION_MAX_RETRIES", "5")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/settlement?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.GetDefaultCommissionPercentage().Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 5, cfg.Business.TransitionMaxRetries)
	assert.Equal(t, "postgres://u:p@db:5432/settlement?sslmode=disable", cfg.Database.DSN())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Host: "localhost"},
			Business: BusinessConfig{
				DefaultCommissionPercentage:     "10",
				DefaultTransactionFeePercentage: "3",
				TransitionMaxRetries:            3,
				TransitionRetryBackoff:          "50ms",
			},
			Cache:     CacheConfig{BookingTTL: "10m"},
			RateLimit: RateLimitConfig{Requests: 100, Period: "1m"},
			Health:    HealthConfig{Timeout: "5s"},
			Scheduler: SchedulerConfig{LateFeeCron: "0 0 0 * * *", PayoutCron: "0 0 * * * *", Timezone: "UTC"},
			Outbox:    OutboxConfig{RelayCron: "*/30 * * * * *", RetryBackoff: "30s", MaxBackoff: "1h"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "SERVER_PORT"},
		{name: "no database", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: "DATABASE_URL"},
		{name: "bad commission", mutate: func(c *Config) { c.Business.DefaultCommissionPercentage = "ten" }, wantErr: "DEFAULT_COMMISSION_PERCENTAGE"},
		{name: "rates above 100", mutate: func(c *Config) { c.Business.DefaultCommissionPercentage = "98" }, wantErr: "sum to at most 100"},
		{name: "bad backoff", mutate: func(c *Config) { c.Business.TransitionRetryBackoff = "soon" }, wantErr: "TRANSITION_RETRY_BACKOFF"},
		{name: "bad cron", mutate: func(c *Config) { c.Scheduler.PayoutCron = "hourly" }, wantErr: "PAYOUT_CRON"},
		{name: "commission below a hundredth", mutate: func(c *Config) { c.Business.DefaultCommissionPercentage = "10.125" }, wantErr: "decimal places"},
		{name: "bad relay cron", mutate: func(c *Config) { c.Outbox.RelayCron = "often" }, wantErr: "OUTBOX_RELAY_CRON"},
		{name: "bad outbox backoff", mutate: func(c *Config) { c.Outbox.MaxBackoff = "later" }, wantErr: "OUTBOX_MAX_BACKOFF"},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: "SCHEDULER_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "secret", Name: "settlement", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=app password=secret dbname=settlement sslmode=disable", d.DSN())
}
