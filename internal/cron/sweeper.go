// Package cron runs the gateway's background jobs.
package cron

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"complaintdesk/internal/obs"
)

// Sweeper is the part of the session manager the sweeper calls.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// StartSweeper launches a background goroutine that runs once immediately
// and then every interval, deleting sessions whose refresh credential has
// expired. It stops when ctx is cancelled; the returned channel is closed
// once it has. A non-positive interval means ten minutes.
func StartSweeper(ctx context.Context, sessions Sweeper, interval time.Duration, logger *logrus.Logger) <-chan struct{} {
	log := logger.WithField("component", "cron")
	done := make(chan struct{})
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		defer close(done)
		runCycle(ctx, sessions, log)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("session sweeper stopped")
				return
			case <-ticker.C:
				runCycle(ctx, sessions, log)
			}
		}
	}()

	log.WithField("interval", interval.String()).Info("session sweeper started")
	return done
}

// runCycle purges expired sessions once.
func runCycle(ctx context.Context, sessions Sweeper, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := sessions.Sweep(ctx)
	if err != nil {
		log.WithError(err).Warn("session sweep failed")
		return
	}
	obs.ObserveSwept(n)
	if n > 0 {
		log.WithField("removed", n).Info("expired sessions removed")
	}
}
