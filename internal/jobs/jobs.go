// Package jobs holds the scheduled settlement work run by cmd/scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Settler is the part of the settlement service the jobs drive.
type Settler interface {
	AccrueLateFees(ctx context.Context, asOf time.Time) (int, error)
	ProcessDuePayouts(ctx context.Context, asOf time.Time) (int, error)
	RelayOutbox(ctx context.Context, asOf time.Time) (int, error)
}

type runner struct {
	name    string
	timeout time.Duration
	now     func() time.Time
	log     *logrus.Logger
	run     func(ctx context.Context, asOf time.Time) (int, error)
}

func (r *runner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := r.now()
	entry := r.log.WithField("job", r.name)
	entry.Info("job started")

	n, err := r.run(ctx, start)
	fields := logrus.Fields{"affected": n, "duration": time.Since(start).String()}
	if err != nil {
		entry.WithFields(fields).WithError(err).Error("job failed")
		return
	}
	entry.WithFields(fields).Info("job finished")
}

// NewLateFeeJob recomputes late fees on overdue stages.
func NewLateFeeJob(s Settler, log *logrus.Logger, timeout time.Duration) cron.Job {
	return &runner{name: "late_fee_accrual", timeout: timeout, now: utcNow, log: log, run: s.AccrueLateFees}
}

// NewPayoutJob releases seller payouts whose refund window closed.
func NewPayoutJob(s Settler, log *logrus.Logger, timeout time.Duration) cron.Job {
	return &runner{name: "payout", timeout: timeout, now: utcNow, log: log, run: s.ProcessDuePayouts}
}

// NewOutboxRelayJob publishes settlement events the broker has not accepted yet.
func NewOutboxRelayJob(s Settler, log *logrus.Logger, timeout time.Duration) cron.Job {
	return &runner{name: "outbox_relay", timeout: timeout, now: utcNow, log: log, run: s.RelayOutbox}
}

func utcNow() time.Time { return time.Now().UTC() }

// CronLogger adapts logrus to the cron scheduler's logger.
type CronLogger struct {
	Log *logrus.Logger
}

func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			f[key] = keysAndValues[i+1]
		}
	}
	return f
}
